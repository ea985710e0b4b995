package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel resolves intents with the Gemini API in JSON mode.
type GeminiModel struct {
	client      *genai.Client
	temperature float32
}

// NewGeminiModel uses a low temperature so classification is stable.
func NewGeminiModel(client *genai.Client, temperature float32) *GeminiModel {
	return &GeminiModel{client: client, temperature: temperature}
}

var _ Model = (*GeminiModel)(nil)

// Generate sends the system instructions and the user turn, returning the raw text.
func (m *GeminiModel) Generate(ctx context.Context, req ModelRequest) (string, error) {
	temperature := m.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		},
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.User}},
		},
	}

	resp, err := m.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content with %s: %w", req.Model, err)
	}
	return resp.Text(), nil
}
