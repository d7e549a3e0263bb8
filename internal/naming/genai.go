package naming

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-3-flash-preview"

const defaultPrompt = "Suggest %d creative team names for an office event. Reply with a JSON array of strings only."

// GenAI is a Namer backed by the Gemini API.
type GenAI struct {
	Prompt string // printf template taking the group count

	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGenAI creates a Gemini client for model.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	return &GenAI{
		Prompt: defaultPrompt,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

func (g *GenAI) Suggest(ctx context.Context, count int) Result {
	if count < 1 {
		return Failed(fmt.Errorf("invalid group count %d", count))
	}
	prompt := g.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	raw, err := g.generate(ctx, fmt.Sprintf(prompt, count))
	if err != nil {
		return Failed(fmt.Errorf("generate content: %w", err))
	}
	names, err := ParseNames(raw)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(names)
}
