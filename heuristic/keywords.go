// Package heuristic holds the low-confidence keyword risk layer. It is kept
// apart from the rule engine so a stronger classifier can replace it without
// touching rule evaluation or verdict precedence.
package heuristic

import (
	"regexp"
	"strings"

	"leasecheck-backend/models"
)

// Classifier raises advisory risk flags for free clause text
type Classifier interface {
	Flag(text string) []models.KeywordFlag
}

// Keyword is a risk phrase and its weight. Weight 2 marks phrases that on
// their own justify a medium-severity review.
type Keyword struct {
	Phrase string
	Weight int
}

// DefaultKeywords is the built-in risk vocabulary
var DefaultKeywords = []Keyword{
	{Phrase: "penalty", Weight: 2},
	{Phrase: "penalties", Weight: 2},
	{Phrase: "forfeit", Weight: 2},
	{Phrase: "prohibited", Weight: 2},
	{Phrase: "automatic increase", Weight: 2},
	{Phrase: "non-refundable", Weight: 2},
	{Phrase: "liquidated damages", Weight: 2},
	{Phrase: "without notice", Weight: 1},
	{Phrase: "at any time", Weight: 1},
	{Phrase: "unrestricted access", Weight: 1},
	{Phrase: "legal fees", Weight: 1},
	{Phrase: "sole discretion", Weight: 1},
	{Phrase: "fine", Weight: 1},
}

// KeywordClassifier matches whole-word phrases case-insensitively
type KeywordClassifier struct {
	keywords []Keyword
	patterns []*regexp.Regexp
}

// NewKeywordClassifier compiles the given vocabulary. A nil or empty list
// uses DefaultKeywords.
func NewKeywordClassifier(keywords []Keyword) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	c := &KeywordClassifier{
		keywords: keywords,
		patterns: make([]*regexp.Regexp, len(keywords)),
	}
	for i, k := range keywords {
		// forfeit also matches forfeits, forfeited and forfeiture
		c.patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k.Phrase) + `(s|d|ed|ure|ing)?\b`)
	}
	return c
}

// Flag returns one flag per matched phrase in vocabulary order
func (c *KeywordClassifier) Flag(text string) []models.KeywordFlag {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var flags []models.KeywordFlag
	for i, re := range c.patterns {
		if re.MatchString(text) {
			flags = append(flags, models.KeywordFlag{
				Keyword: c.keywords[i].Phrase,
				Weight:  c.keywords[i].Weight,
			})
		}
	}
	return flags
}
