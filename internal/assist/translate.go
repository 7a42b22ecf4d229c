package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/havenmind/havend/internal/config"
)

// Translator converts text between languages through a remote
// translation endpoint.
type Translator struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTranslator builds a translator from the assist configuration.
func NewTranslator(cfg config.AssistConfig) (*Translator, error) {
	if cfg.TranslateURL == "" {
		return nil, fmt.Errorf("assist translate url is not configured")
	}
	return &Translator{
		url:        cfg.TranslateURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newLimiter(cfg.RatePerSecond),
	}, nil
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

type translateResponse struct {
	Text string `json:"text"`
}

// Translate returns text rendered in the target language. source may
// be empty for auto-detection.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("translate text is empty")
	}
	if target == "" {
		return "", fmt.Errorf("translate target language is empty")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(translateRequest{Text: text, Source: source, Target: target})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate request failed: status %d", resp.StatusCode)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	return decoded.Text, nil
}
