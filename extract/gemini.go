package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"leasecheck-backend/models"
)

// DefaultGenerationModel is used when no model name is configured
const DefaultGenerationModel = "gemini-1.5-flash"

const extractionPrompt = `You are a legal document extraction engine for Australian residential tenancy agreements.

Split the contract below into clauses. A clause is any numbered item or paragraph that expresses a distinct obligation or right.
For each clause return:
- "text": the original clause text, unchanged
- "type": one of bond, break_fee, rent_increase, pet_policy, maintenance, subletting, utilities, other
- "numeric_value": the single number that governs the clause (for example 6 for "6 weeks rent"), or null
- "unit": one of days, weeks, months, years, dollars, or "" when numeric_value is null

For bond and break fees prefer a number of weeks or months of rent over a dollar amount.
For rent increases prefer the notice period in days.

Return ONLY JSON of the form {"clauses": [{"text": "...", "type": "...", "numeric_value": 6, "unit": "weeks"}]}.

CONTRACT:
%s`

type geminiClause struct {
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	NumericValue *float64 `json:"numeric_value"`
	Unit         string   `json:"unit"`
}

type geminiResponse struct {
	Clauses []geminiClause `json:"clauses"`
}

// GeminiExtractor segments and types clauses with a Gemini model in JSON mode
type GeminiExtractor struct {
	model *genai.GenerativeModel
}

// NewGeminiExtractor wraps an existing client. The client stays owned by the caller.
func NewGeminiExtractor(client *genai.Client, modelName string) *GeminiExtractor {
	if modelName == "" {
		modelName = DefaultGenerationModel
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)
	return &GeminiExtractor{model: model}
}

// Extract implements Extractor
func (g *GeminiExtractor) Extract(ctx context.Context, rawText, jurisdictionHint string) ([]models.Clause, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(extractionPrompt, rawText)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var out strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrExtractionFailed)
	}

	return ParseGeminiResponse(out.String(), resolveJurisdiction(rawText, jurisdictionHint))
}

// ParseGeminiResponse decodes the model's JSON into clauses, normalizing
// types and units. Code fences around the JSON are tolerated.
func ParseGeminiResponse(body, jurisdiction string) ([]models.Clause, error) {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	var parsed geminiResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrExtractionFailed, err)
	}

	clauses := make([]models.Clause, 0, len(parsed.Clauses))
	for _, gc := range parsed.Clauses {
		text := strings.TrimSpace(gc.Text)
		if text == "" {
			continue
		}
		c := models.Clause{
			ID:           clauseID(len(clauses)),
			Type:         models.ParseClauseType(gc.Type),
			RawText:      text,
			Jurisdiction: jurisdiction,
		}
		if gc.NumericValue != nil && !math.IsNaN(*gc.NumericValue) && !math.IsInf(*gc.NumericValue, 0) {
			v := *gc.NumericValue
			c.NumericValue = &v
			c.Unit = models.ParseUnit(gc.Unit)
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}
