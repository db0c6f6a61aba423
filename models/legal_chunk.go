package models

// LegalChunk represents a chunk of legislation text from the semantic index
type LegalChunk struct {
	ID              string  `json:"id" yaml:"id"`
	Text            string  `json:"text" yaml:"text"`
	JurisdictionTag string  `json:"jurisdiction_tag" yaml:"jurisdiction"`
	SourceCitation  string  `json:"source_citation" yaml:"citation"`
	SourceDocument  string  `json:"source_document,omitempty" yaml:"source_document,omitempty"`
	Distance        float64 `json:"distance,omitempty" yaml:"-"` // cosine distance to the query
}

// RetrievalResult is one ranked passage returned for a query. Results are
// ordered by descending similarity and live only as long as the query.
type RetrievalResult struct {
	ChunkID           string  `json:"chunk_id"`
	Text              string  `json:"text"`
	Similarity        float64 `json:"similarity"`
	JurisdictionTag   string  `json:"jurisdiction_tag"`
	SourceCitation    string  `json:"source_citation"`
	CrossJurisdiction bool    `json:"cross_jurisdiction"`
}

// Evidence is the retriever's answer for one query. Degraded is set when the
// semantic index was unavailable and Results is therefore empty.
type Evidence struct {
	Results  []RetrievalResult `json:"results"`
	Degraded bool              `json:"degraded"`
}

// Empty reports whether the evidence carries no passages
func (e Evidence) Empty() bool {
	return len(e.Results) == 0
}
