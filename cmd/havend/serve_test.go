package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/havend/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: https://example.haven.app
  anon_key: anon-key
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.haven.app", cfg.Backend.URL)
}

func TestLoadConfigRejectsMalformedURL(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: "::garbage"
  anon_key: anon-key
`)

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfigRejectsBadScheme(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: ftp://example.haven.app
  anon_key: anon-key
`)

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestLoadConfigRejectsMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7420
`)

	_, err := loadConfig(path)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}

func TestLoadConfigRejectsOutOfRangeTuning(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: https://example.haven.app
  anon_key: anon-key
connectivity:
  probe_timeout: 30s
`)

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_timeout")
}
