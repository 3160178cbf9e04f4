package msggen

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.0-flash"

// Gemini generates message text with Google's Gemini models. Errors fall
// back to the canned text so the simulation keeps flowing without the API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("msggen: missing gemini api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("msggen: create gemini client: %w", err)
	}
	model := client.GenerativeModel(geminiModel)
	model.SetTemperature(0.8)
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return FallbackText, nil
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return FallbackText, nil
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok && strings.TrimSpace(string(txt)) != "" {
			parts = append(parts, strings.TrimSpace(string(txt)))
		}
	}
	if len(parts) == 0 {
		return FallbackText, nil
	}
	return strings.Join(parts, " "), nil
}

func (g *Gemini) Close() error { return g.client.Close() }
