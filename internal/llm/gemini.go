package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrNoAPIKey is returned by generators built without credentials.
var ErrNoAPIKey = errors.New("text generation API key not configured")

// Generator produces text for a prompt. An empty string with a nil error
// means the service answered without any text.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator generates text using Google's Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator for the given model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
	}, nil
}

// GenerateText sends a single prompt and returns the concatenated text parts.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// Model returns the model identifier requests are sent to.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Unavailable is a Generator that always fails; used when no API key is set.
type Unavailable struct {
	Err error
}

func (u Unavailable) GenerateText(ctx context.Context, prompt string) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	return "", ErrNoAPIKey
}
