package assist

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/havenmind/havend/internal/config"
)

// systemPrompt frames every chat generation. The model is a wellness
// companion, not a clinician.
const systemPrompt = "You are a supportive wellness companion. Be warm and " +
	"concise. Encourage healthy habits. You are not a medical professional " +
	"and must suggest professional help for anything clinical."

const (
	generationMaxTokens   = 512
	generationTemperature = 0.7
)

// Generator produces assistant chat replies through an
// OpenAI-compatible endpoint.
type Generator struct {
	model   llms.Model
	limiter *rate.Limiter
}

// NewGenerator builds a generator from the assist configuration.
func NewGenerator(cfg config.AssistConfig) (*Generator, error) {
	if cfg.TextAPIKey.Value() == "" {
		return nil, fmt.Errorf("assist text api key is not configured")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.TextAPIKey.Value()),
		openai.WithModel(cfg.TextModel),
	}
	if cfg.TextURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.TextURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &Generator{
		model:   model,
		limiter: newLimiter(cfg.RatePerSecond),
	}, nil
}

// Generate returns the model's reply for a user prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(schema.ChatMessageTypeHuman, prompt),
		},
		llms.WithMaxTokens(generationMaxTokens),
		llms.WithTemperature(generationTemperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate reply: empty response")
	}
	return resp.Choices[0].Content, nil
}

// newLimiter builds the shared outbound limiter, defaulting to a
// conservative 1 req/s when unconfigured.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
