package retrieval

import (
	"context"
	"fmt"

	"leasecheck-backend/models"
)

// ChunkSearcher finds stored chunks nearest to an embedding.
// repository.LegalChunkRepository satisfies it.
type ChunkSearcher interface {
	Nearest(ctx context.Context, embedding []float32, limit int) ([]models.LegalChunk, error)
}

// PgIndex is the pgvector-backed index: queries are embedded, then matched
// by cosine distance in Postgres
type PgIndex struct {
	embedder Embedder
	chunks   ChunkSearcher
}

// NewPgIndex creates an index over a chunk store
func NewPgIndex(embedder Embedder, chunks ChunkSearcher) *PgIndex {
	return &PgIndex{embedder: embedder, chunks: chunks}
}

// Nearest embeds the query and returns the closest stored chunks
func (p *PgIndex) Nearest(ctx context.Context, query string, limit int) ([]Candidate, error) {
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := p.chunks.Nearest(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(chunks))
	for i, c := range chunks {
		candidates[i] = Candidate{Chunk: c, Distance: c.Distance}
	}
	return candidates, nil
}
