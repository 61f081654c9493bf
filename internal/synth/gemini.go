package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiGenerator implements Generator using Gemini text generation.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey string, modelName string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: modelName}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := genai.Text(prompt)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &CallError{Kind: ServiceFailure, Message: "model returned empty response"}
	}
	return text, nil
}

// classify maps transport and API errors onto the failure taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: Timeout, Message: err.Error()}
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		kind := ServiceFailure
		switch {
		case apiErr.Code == 429:
			kind = RateLimited
		case apiErr.Code >= 400 && apiErr.Code < 500:
			kind = InvalidRequest
		}
		return &CallError{Kind: kind, Status: apiErr.Code, Message: apiErr.Message}
	}
	s := err.Error()
	if strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota") {
		return &CallError{Kind: RateLimited, Message: s}
	}
	return &CallError{Kind: ServiceFailure, Message: s}
}
