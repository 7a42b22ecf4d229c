package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/havenmind/havend/internal/config"
)

// maxAudioSize bounds a synthesized clip read into memory.
const maxAudioSize = 25 << 20

// Speech converts text to spoken audio through a remote
// text-to-speech endpoint.
type Speech struct {
	url        string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpeech builds a speech client from the assist configuration.
func NewSpeech(cfg config.AssistConfig) (*Speech, error) {
	if cfg.SpeechURL == "" {
		return nil, fmt.Errorf("assist speech url is not configured")
	}
	return &Speech{
		url:        cfg.SpeechURL,
		apiKey:     cfg.SpeechAPIKey.Value(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    newLimiter(cfg.RatePerSecond),
	}, nil
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize returns audio bytes for the given text. voice may be
// empty; the service then uses its default.
func (s *Speech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("speech text is empty")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(speechRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech request failed: status %d: %s", resp.StatusCode, snippet)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech request returned no audio")
	}
	return audio, nil
}
