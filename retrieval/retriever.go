package retrieval

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"leasecheck-backend/models"
)

const (
	defaultTopK       = 5
	defaultAnswerTopK = 3
	defaultOverfetch  = 4
)

// Retriever is the process-scoped query service over a legislation index.
// Construct it once at start-up with New, share it between analyses, and
// call Close on shutdown. A Retriever without an index runs in degraded
// mode: every query returns empty evidence flagged Degraded.
type Retriever struct {
	index         Index
	logger        *zap.Logger
	topK          int
	answerTopK    int
	overfetch     int
	minSimilarity float64
}

// Option is a functional option for Retriever
type Option func(*Retriever)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTopK sets the default number of results per clause query
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithAnswerTopK sets the number of results returned for free-text questions
func WithAnswerTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.answerTopK = k
		}
	}
}

// WithOverfetch sets how many candidates per requested result are pulled
// from the index before the jurisdiction filter runs
func WithOverfetch(factor int) Option {
	return func(r *Retriever) {
		if factor > 0 {
			r.overfetch = factor
		}
	}
}

// WithMinSimilarity drops results at or below the given similarity
func WithMinSimilarity(min float64) Option {
	return func(r *Retriever) {
		r.minSimilarity = min
	}
}

// New creates a Retriever. A nil index is allowed and means degraded mode.
func New(index Index, opts ...Option) *Retriever {
	r := &Retriever{
		index:      index,
		logger:     zap.NewNop(),
		topK:       defaultTopK,
		answerTopK: defaultAnswerTopK,
		overfetch:  defaultOverfetch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether an index is attached
func (r *Retriever) Available() bool {
	return r != nil && r.index != nil
}

// Close releases the index if it holds resources
func (r *Retriever) Close() error {
	if r == nil || r.index == nil {
		return nil
	}
	if c, ok := r.index.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Search returns at most topK passages sorted by descending similarity.
// The jurisdiction filter runs after retrieval; when it leaves nothing the
// unfiltered results are returned tagged CrossJurisdiction. Search never
// fails: an unavailable index yields empty, Degraded evidence.
func (r *Retriever) Search(ctx context.Context, query, jurisdiction string, topK int) models.Evidence {
	if !r.Available() {
		return models.Evidence{Degraded: true}
	}
	if topK <= 0 {
		topK = r.topK
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return models.Evidence{Results: []models.RetrievalResult{}}
	}

	candidates, err := r.index.Nearest(ctx, query, topK*r.overfetch)
	if err != nil {
		r.logger.Warn("Legislation index unavailable, continuing in degraded mode",
			zap.Error(err),
			zap.String("jurisdiction", jurisdiction))
		return models.Evidence{Degraded: true}
	}

	results := make([]models.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		sim := SimilarityFromDistance(c.Distance)
		if sim <= r.minSimilarity {
			continue
		}
		results = append(results, models.RetrievalResult{
			ChunkID:         c.Chunk.ID,
			Text:            c.Chunk.Text,
			Similarity:      sim,
			JurisdictionTag: models.NormalizeJurisdiction(c.Chunk.JurisdictionTag),
			SourceCitation:  c.Chunk.SourceCitation,
		})
	}

	// stable: equal similarities keep the index's order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	results = filterJurisdiction(results, models.NormalizeJurisdiction(jurisdiction))

	if len(results) > topK {
		results = results[:topK]
	}
	return models.Evidence{Results: results}
}

func filterJurisdiction(results []models.RetrievalResult, jurisdiction string) []models.RetrievalResult {
	if jurisdiction == "" || len(results) == 0 {
		return results
	}

	filtered := make([]models.RetrievalResult, 0, len(results))
	for _, res := range results {
		if res.JurisdictionTag == jurisdiction {
			filtered = append(filtered, res)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}

	for i := range results {
		results[i].CrossJurisdiction = true
	}
	return results
}

// ClauseQuery builds the retrieval query for a clause
func ClauseQuery(clause models.Clause) string {
	return fmt.Sprintf("%s: %s", strings.ReplaceAll(string(clause.Type), "_", " "), clause.RawText)
}

// SearchClause retrieves legislation relevant to one clause in its jurisdiction
func (r *Retriever) SearchClause(ctx context.Context, clause models.Clause, topK int) models.Evidence {
	return r.Search(ctx, ClauseQuery(clause), clause.Jurisdiction, topK)
}

// AnswerContext retrieves passages for a free-text legal question. It is
// used by the chat layer and is independent of any clause.
func (r *Retriever) AnswerContext(ctx context.Context, question, jurisdiction string) models.Evidence {
	return r.Search(ctx, question, jurisdiction, r.answerTopK)
}
