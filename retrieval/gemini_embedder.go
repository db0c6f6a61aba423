package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// DefaultEmbeddingModel produces 768-dimension vectors matching the schema
const DefaultEmbeddingModel = "text-embedding-004"

const (
	maxEmbedRetries     = 3
	initialEmbedBackoff = time.Second
	embedBatchSize      = 100 // API limit per batch request
)

// ErrEmbeddingFailed is returned when the embedding service gives no vector
var ErrEmbeddingFailed = errors.New("failed to generate embedding")

// GeminiEmbedder embeds queries with the Gemini embedding API
type GeminiEmbedder struct {
	model   *genai.EmbeddingModel
	backoff time.Duration
}

// NewGeminiEmbedder wraps an existing client. The client stays owned by the caller.
func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	em := client.EmbeddingModel(modelName)
	em.TaskType = genai.TaskTypeRetrievalQuery
	return &GeminiEmbedder{model: em, backoff: initialEmbedBackoff}
}

// NewGeminiDocumentEmbedder embeds passages for storage in the index rather
// than queries against it
func NewGeminiDocumentEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	e := NewGeminiEmbedder(client, modelName)
	e.model.TaskType = genai.TaskTypeRetrievalDocument
	return e
}

// Embed returns the unit-normalized embedding for text, retrying transient
// failures with exponential backoff
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := e.backoff
	for attempt := 0; attempt < maxEmbedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := e.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, ErrEmbeddingFailed
		}

		return normalizeVector(resp.Embedding.Values), nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrEmbeddingFailed, maxEmbedRetries, lastErr)
}

// EmbedBatch embeds many texts, in batches of up to 100 per request.
// Vectors are returned in input order.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		batch := e.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbeddingFailed, start, end, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, ErrEmbeddingFailed
			}
			out = append(out, normalizeVector(emb.Values))
		}
	}
	return out, nil
}

func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
