// Package retrieval answers similarity queries over the legislation index.
// Index backends are pluggable; the Retriever owns ranking, jurisdiction
// filtering and degraded-mode reporting so every backend behaves the same.
package retrieval

import (
	"context"

	"leasecheck-backend/models"
)

// Candidate is an unranked index hit with its cosine distance to the query
type Candidate struct {
	Chunk    models.LegalChunk
	Distance float64
}

// Index is a queryable semantic store of legislation chunks. Nearest returns
// up to limit candidates closest to the query, in the index's own order.
type Index interface {
	Nearest(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Embedder turns text into a unit-length embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SimilarityFromDistance maps cosine distance onto [0, 1]. It is monotonic:
// a smaller distance never yields a lower similarity.
func SimilarityFromDistance(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
