package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-1.5-flash"

// GeminiGenerator answers questions with a Gemini model
type GeminiGenerator struct {
	model *genai.GenerativeModel
}

// NewGeminiGenerator wraps an existing client. The client stays owned by the caller.
func NewGeminiGenerator(client *genai.Client, modelName string) *GeminiGenerator {
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	return &GeminiGenerator{model: model}
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(Build(p)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var out strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}
	answer := strings.TrimSpace(out.String())
	if answer == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	return answer, nil
}
