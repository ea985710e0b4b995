package chatbot

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiGenerator runs chat turns with function calling on the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

var _ Generator = (*GeminiGenerator)(nil)

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	temperature := req.Temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       &temperature,
	}
	if decls := functionDeclarations(req.Functions); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toContents(req.Messages), config)
	if err != nil {
		return Reply{}, fmt.Errorf("Generate: generate content with %s: %w", req.Model, err)
	}

	var reply Reply
	for _, call := range resp.FunctionCalls() {
		reply.Calls = append(reply.Calls, FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args})
	}
	if len(reply.Calls) == 0 {
		reply.Text = strings.TrimSpace(resp.Text())
	}
	return reply, nil
}

func toContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case len(m.Calls) > 0:
			parts := make([]*genai.Part, 0, len(m.Calls))
			for _, c := range m.Calls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: c.Args}})
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
		case len(m.Results) > 0:
			parts := make([]*genai.Part, 0, len(m.Results))
			for _, r := range m.Results {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       r.ID,
					Name:     r.Name,
					Response: map[string]interface{}{"output": r.Output},
				}})
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: parts})
		default:
			role := string(genai.RoleUser)
			if m.Role == RoleAssistant {
				role = string(genai.RoleModel)
			}
			contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
		}
	}
	return contents
}

func functionDeclarations(specs []FunctionSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range spec.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Format:      p.Format,
				Description: p.Description,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema,
		})
	}
	return decls
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeString
}
