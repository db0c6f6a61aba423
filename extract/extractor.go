// Package extract turns raw contract text into typed clauses.
//
// Two backends share one contract: HeuristicExtractor splits paragraphs and
// types them by keyword, GeminiExtractor asks a Gemini model for structured
// JSON. Callers pick one by configuration.
package extract

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"leasecheck-backend/models"
)

// ErrExtractionFailed wraps backend failures
var ErrExtractionFailed = errors.New("clause extraction failed")

// Extractor produces the ordered clauses of a contract. jurisdictionHint is
// copied onto every clause; when empty the jurisdiction is detected from the text.
type Extractor interface {
	Extract(ctx context.Context, rawText, jurisdictionHint string) ([]models.Clause, error)
}

// DetectJurisdiction guesses the governing jurisdiction from Act names and
// place names in the text. It returns "" when nothing matches.
func DetectJurisdiction(text string) string {
	lower := strings.ToLower(text)
	checks := []struct {
		code    string
		markers []string
	}{
		{"NSW", []string{"residential tenancies act 2010", "(nsw)", "new south wales", "ncat"}},
		{"VIC", []string{"residential tenancies act 1997 (vic)", "victoria", "vcat", "consumer affairs victoria"}},
		{"QLD", []string{"rooming accommodation act", "queensland", "qcat", "residential tenancies authority"}},
		{"ACT", []string{"australian capital territory", "act standard tenancy", "(act)"}},
		{"SA", []string{"south australia", "(sa)"}},
		{"WA", []string{"western australia", "(wa)"}},
		{"TAS", []string{"tasmania", "(tas)"}},
		{"NT", []string{"northern territory", "(nt)"}},
	}
	for _, c := range checks {
		for _, m := range c.markers {
			if strings.Contains(lower, m) {
				return c.code
			}
		}
	}
	return ""
}

func resolveJurisdiction(rawText, hint string) string {
	if j := models.NormalizeJurisdiction(hint); j != "" {
		return j
	}
	return DetectJurisdiction(rawText)
}

func clauseID(i int) string {
	return strconv.Itoa(i + 1)
}
