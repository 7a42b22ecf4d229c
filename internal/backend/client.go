package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/havenmind/havend/internal/config"
)

const (
	restPath = "/rest/v1"
	authPath = "/auth/v1"

	// maxResponseSize bounds response bodies read into memory.
	maxResponseSize = 10 * 1024 * 1024
)

// Client talks to the hosted backend. Safe for concurrent use.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu      sync.RWMutex
	session *Session
}

// NewClient creates a backend client from config.
func NewClient(cfg *config.BackendConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend config is required")
	}
	if cfg.URL == "" || !cfg.AnonKey.IsSet() {
		return nil, config.ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.RequestTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey.Value(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("backend"),
	}, nil
}

// Session returns the current session, nil when signed out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// setSession swaps the held session. Internal; the session package owns
// the observable auth state and drives these transitions.
func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// ClearSession drops the held tokens without a network call.
func (c *Client) ClearSession() {
	c.setSession(nil)
}

// Probe performs a cheap reachability check against the backend.
//
// Any HTTP response proves the endpoint is alive, an auth rejection
// included; only a transport-level failure or timeout reports false.
// The caller supplies the timeout via ctx.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return true
}

// do executes one backend request and decodes the response into out
// (skipped when out is nil). Backend-reported failures come back as
// *APIError with wire content preserved.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s := c.Session(); s != nil {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// parseAPIError builds an APIError from an error response body,
// tolerating the backend's couple of body shapes.
func parseAPIError(status int, body []byte) *APIError {
	var wire struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
	}
	apiErr := &APIError{Status: status}

	if err := json.Unmarshal(body, &wire); err == nil {
		switch {
		case wire.Message != "":
			apiErr.Message = wire.Message
		case wire.Msg != "":
			apiErr.Message = wire.Msg
		case wire.ErrorDescription != "":
			apiErr.Message = wire.ErrorDescription
		}
		switch code := wire.Code.(type) {
		case string:
			apiErr.Code = code
		case float64:
			apiErr.Code = fmt.Sprintf("%d", int(code))
		}
		if apiErr.Code == "" {
			apiErr.Code = wire.ErrorCode
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
