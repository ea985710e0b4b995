// Package llm builds Gemini clients and the audio helpers shared by the
// expense assistant and the chatbot.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Config selects the Gemini backend. With no API key and no Vertex project the
// SDK falls back to its environment variables.
type Config struct {
	APIKey     string
	APIVersion string
	Project    string
	Location   string
	UseVertex  bool
}

// NewClient creates a genai client for cfg.
func NewClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: cfg.APIVersion},
	}
	switch {
	case cfg.UseVertex:
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	case cfg.APIKey != "":
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return client, nil
}
