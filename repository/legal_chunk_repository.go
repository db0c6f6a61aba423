package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"leasecheck-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDimensions is the width of the legal_chunks.embedding column
const EmbeddingDimensions = 768

// LegalChunkRepository handles database operations for legislation chunks
type LegalChunkRepository struct {
	db *pgxpool.Pool
}

// NewLegalChunkRepository creates a new legal chunk repository
func NewLegalChunkRepository(db *pgxpool.Pool) *LegalChunkRepository {
	return &LegalChunkRepository{db: db}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 6, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Nearest returns the chunks closest to the embedding by cosine distance,
// across all jurisdictions. Jurisdiction filtering is left to the caller.
func (r *LegalChunkRepository) Nearest(ctx context.Context, embedding []float32, limit int) ([]models.LegalChunk, error) {
	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	query := `
		SELECT
			id,
			chunk_text,
			jurisdiction_tag,
			source_citation,
			COALESCE(source_document, ''),
			embedding <=> $1::vector AS distance
		FROM legal_chunks
		ORDER BY
			embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.LegalChunk
	for rows.Next() {
		var chunk models.LegalChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.Text,
			&chunk.JurisdictionTag,
			&chunk.SourceCitation,
			&chunk.SourceDocument,
			&chunk.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legal chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legal chunks: %w", err)
	}

	return chunks, nil
}

// Insert stores a chunk with its embedding, replacing any chunk with the same id
func (r *LegalChunkRepository) Insert(ctx context.Context, chunk models.LegalChunk, embedding []float32) error {
	if len(embedding) != EmbeddingDimensions {
		return fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	query := `
		INSERT INTO legal_chunks (
			id, chunk_text, jurisdiction_tag, source_citation, source_document, embedding
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::vector)
		ON CONFLICT (id) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			jurisdiction_tag = EXCLUDED.jurisdiction_tag,
			source_citation = EXCLUDED.source_citation,
			source_document = EXCLUDED.source_document,
			embedding = EXCLUDED.embedding`

	_, err := r.db.Exec(ctx, query,
		chunk.ID,
		chunk.Text,
		models.NormalizeJurisdiction(chunk.JurisdictionTag),
		chunk.SourceCitation,
		chunk.SourceDocument,
		formatVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert legal chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// Count returns the number of indexed chunks
func (r *LegalChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM legal_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count legal chunks: %w", err)
	}
	return n, nil
}
