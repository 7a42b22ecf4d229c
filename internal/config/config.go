// Package config provides configuration loading for havend.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. The backend URL and anon key are the only hard requirements:
// without them the daemon is "not configured" and every remote feature is
// blocked behind a single configuration error surfaced at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrNotConfigured indicates the backend URL or anon key is absent.
// This is distinct from a malformed value: absence means the operator
// never configured the daemon at all.
var ErrNotConfigured = errors.New("backend url and anon key are not configured")

// Config holds the complete havend configuration.
type Config struct {
	Backend      BackendConfig      `koanf:"backend"`
	Realtime     RealtimeConfig     `koanf:"realtime"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	Retry        RetryConfig        `koanf:"retry"`
	Assist       AssistConfig       `koanf:"assist"`
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// BackendConfig holds hosted-backend connection settings.
type BackendConfig struct {
	// URL is the base URL of the hosted backend (required).
	URL string `koanf:"url"`

	// AnonKey is the publishable API key sent with every request (required).
	AnonKey Secret `koanf:"anon_key"`

	// RequestTimeout bounds a single table/auth request.
	RequestTimeout Duration `koanf:"request_timeout"`

	// RatePerSecond smooths outbound request bursts.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// RateBurst is the limiter burst size.
	RateBurst int `koanf:"rate_burst"`
}

// RealtimeConfig holds change-feed subscription settings.
type RealtimeConfig struct {
	// URL is the NATS endpoint delivering per-table change events.
	// Empty disables realtime; services fall back to on-demand loads.
	URL string `koanf:"url"`

	// ReloadDebounce coalesces bursts of change events into one reload.
	ReloadDebounce Duration `koanf:"reload_debounce"`
}

// ConnectivityConfig holds reachability probe settings.
type ConnectivityConfig struct {
	// ProbeTimeout is the hard timeout for one reachability probe.
	ProbeTimeout Duration `koanf:"probe_timeout"`

	// ProbeInterval is how often the background loop wakes up.
	ProbeInterval Duration `koanf:"probe_interval"`

	// Freshness is how old the last check may be while reachable
	// before the loop re-probes anyway.
	Freshness Duration `koanf:"freshness"`
}

// RetryConfig holds the default retry policy for remote operations.
type RetryConfig struct {
	MaxAttempts int      `koanf:"max_attempts"`
	BaseDelay   Duration `koanf:"base_delay"`
	Multiplier  float64  `koanf:"multiplier"`
	MaxDelay    Duration `koanf:"max_delay"`
}

// AssistConfig holds the third-party AI service endpoints.
type AssistConfig struct {
	// TextURL is an OpenAI-compatible chat completion endpoint.
	TextURL string `koanf:"text_url"`
	// TextAPIKey authenticates against TextURL.
	TextAPIKey Secret `koanf:"text_api_key"`
	// TextModel selects the generation model.
	TextModel string `koanf:"text_model"`

	// SpeechURL is a text-to-speech endpoint returning audio bytes.
	SpeechURL string `koanf:"speech_url"`
	// SpeechAPIKey authenticates against SpeechURL.
	SpeechAPIKey Secret `koanf:"speech_api_key"`

	// TranslateURL is a text-to-text translation endpoint.
	TranslateURL string `koanf:"translate_url"`

	// RatePerSecond smooths outbound assist calls.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a config with production-ready defaults.
// Backend URL and anon key have no defaults on purpose.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			RequestTimeout: Duration(30 * time.Second),
			RatePerSecond:  10,
			RateBurst:      20,
		},
		Realtime: RealtimeConfig{
			ReloadDebounce: Duration(time.Second),
		},
		Connectivity: ConnectivityConfig{
			ProbeTimeout:  Duration(5 * time.Second),
			ProbeInterval: Duration(30 * time.Second),
			Freshness:     Duration(90 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(500 * time.Millisecond),
			Multiplier:  2.0,
			MaxDelay:    Duration(10 * time.Second),
		},
		Assist: AssistConfig{
			TextModel:     "gpt-4o-mini",
			RatePerSecond: 2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            7420,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// IsConfigured reports whether the backend credentials are present at all.
func (c *Config) IsConfigured() bool {
	return c.Backend.URL != "" && c.Backend.AnonKey.IsSet()
}

// Validate checks the configuration for errors.
// A missing backend URL or anon key returns ErrNotConfigured so callers
// can surface it as a distinct configuration-error state.
func (c *Config) Validate() error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.Backend.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry multiplier must be >= 1.0, got %v", c.Retry.Multiplier)
	}
	if c.Connectivity.ProbeTimeout.Duration() <= 0 {
		return fmt.Errorf("connectivity probe_timeout must be positive")
	}
	if c.Connectivity.ProbeTimeout.Duration() > 5*time.Second {
		return fmt.Errorf("connectivity probe_timeout must be at most 5s, got %s", c.Connectivity.ProbeTimeout.Duration())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	return nil
}
