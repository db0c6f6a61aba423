package retrieval

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"leasecheck-backend/models"
)

//go:embed corpus.yaml
var defaultCorpus []byte

type corpusFile struct {
	Chunks []models.LegalChunk `yaml:"chunks"`
}

// DefaultCorpus returns the bundled sample of legislation excerpts
func DefaultCorpus() ([]models.LegalChunk, error) {
	return ParseCorpus(defaultCorpus)
}

// LoadCorpus decodes a YAML corpus file
func LoadCorpus(r io.Reader) ([]models.LegalChunk, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes YAML corpus bytes
func ParseCorpus(data []byte) ([]models.LegalChunk, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	for i, c := range f.Chunks {
		if strings.TrimSpace(c.Text) == "" {
			return nil, fmt.Errorf("corpus chunk %d has no text", i)
		}
		if c.ID == "" {
			f.Chunks[i].ID = fmt.Sprintf("chunk-%03d", i+1)
		}
		f.Chunks[i].JurisdictionTag = models.NormalizeJurisdiction(c.JurisdictionTag)
	}
	return f.Chunks, nil
}

// MemoryIndex is a term-vector index held in memory. Distances are cosine
// distances between term-frequency vectors, so it needs no embedding service.
type MemoryIndex struct {
	chunks  []models.LegalChunk
	vectors []termVector
}

// NewMemoryIndex indexes the given chunks
func NewMemoryIndex(chunks []models.LegalChunk) *MemoryIndex {
	m := &MemoryIndex{
		chunks:  make([]models.LegalChunk, len(chunks)),
		vectors: make([]termVector, len(chunks)),
	}
	copy(m.chunks, chunks)
	for i, c := range m.chunks {
		m.vectors[i] = vectorize(c.SourceCitation + " " + c.Text)
	}
	return m
}

// Len returns the number of indexed chunks
func (m *MemoryIndex) Len() int {
	return len(m.chunks)
}

// Nearest returns chunks sharing at least one term with the query, closest
// first. Ties keep corpus order.
func (m *MemoryIndex) Nearest(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := vectorize(query)
	if len(q) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, limit)
	for i, v := range m.vectors {
		cos := q.cosine(v)
		if cos <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Chunk: m.chunks[i], Distance: 1 - cos})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

type termVector map[string]float64

func (v termVector) norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func (v termVector) cosine(o termVector) float64 {
	if len(v) == 0 || len(o) == 0 {
		return 0
	}
	small, large := v, o
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for term, w := range small {
		dot += w * large[term]
	}
	if dot == 0 {
		return 0
	}
	return dot / (v.norm() * o.norm())
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "any": true, "that": true,
	"this": true, "with": true, "from": true, "into": true,
	"its": true, "has": true, "have": true, "was": true, "were": true, "will": true,
	"shall": true, "may": true, "than": true, "each": true, "per": true,
	"all": true, "which": true, "their": true, "them": true, "there": true, "under": true,
	"is": true, "of": true, "to": true, "a": true, "an": true, "in": true, "on": true,
	"by": true, "or": true, "be": true, "as": true, "at": true, "if": true, "it": true,
}

func vectorize(text string) termVector {
	v := termVector{}
	for _, tok := range tokenize(text) {
		v[tok]++
	}
	return v
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// stem strips a few English suffixes so "subletting" meets "sublet"
func stem(word string) string {
	for _, suffix := range []string{"ting", "ing", "ies", "ed", "s"} {
		if len(word) > len(suffix)+2 && strings.HasSuffix(word, suffix) {
			word = strings.TrimSuffix(word, suffix)
			if suffix == "ies" {
				word += "y"
			}
			return word
		}
	}
	return word
}
