// Package answer drafts a plain-English reply to a tenant's question from
// retrieved legislation and, when known, the findings of their contract.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leasecheck-backend/models"
)

// ErrGenerationFailed wraps backend failures
var ErrGenerationFailed = errors.New("answer generation failed")

const (
	maxPromptLen  = 30000
	maxExcerptLen = 1500
)

// Generator writes an answer for a prompt
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ContractContext is what is known about the tenant's contract. Document
// text is never stored, so it is drawn from the analysis report.
type ContractContext struct {
	DocID        string
	Jurisdiction string
	RiskLevel    models.RiskLevel
	Statistics   models.Statistics
	Issues       []models.Issue
}

// ContractFromReport copies the parts of a report a prompt can use
func ContractFromReport(r *models.Report) *ContractContext {
	if r == nil {
		return nil
	}
	return &ContractContext{
		DocID:        r.DocID,
		Jurisdiction: r.Jurisdiction,
		RiskLevel:    r.RiskLevel,
		Statistics:   r.Statistics,
		Issues:       r.Issues,
	}
}

// Prompt is everything a generator is given for one question
type Prompt struct {
	Question     string
	Jurisdiction string
	Passages     []models.RetrievalResult
	Contract     *ContractContext
}

// Build renders the prompt text. It is a pure function.
func Build(p Prompt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an Australian tenancy law assistant helping a tenant in %s.\n\n", p.Jurisdiction)

	if c := p.Contract; c != nil {
		b.WriteString("CONTRACT ANALYSIS:\n")
		fmt.Fprintf(&b, "- Overall risk: %s\n", strings.ToUpper(string(c.RiskLevel)))
		fmt.Fprintf(&b, "- Clauses reviewed: %d\n", c.Statistics.Total)
		fmt.Fprintf(&b, "- Illegal clauses: %d\n", c.Statistics.Illegal)
		fmt.Fprintf(&b, "- Questionable clauses: %d\n", c.Statistics.Questionable)
		b.WriteString("\nCONTRACT EXCERPT:\n")
		b.WriteString(excerpt(c.Issues))
		b.WriteString("\n")
	}

	b.WriteString("LEGAL CONTEXT:\n")
	if len(p.Passages) == 0 {
		b.WriteString("No legislation passages were found for this question.\n")
	}
	for i, r := range p.Passages {
		fmt.Fprintf(&b, "[LAW %d] %s\n%s\n\n", i+1, r.SourceCitation, strings.TrimSpace(r.Text))
	}

	fmt.Fprintf(&b, "\nQUESTION: %s\n\n", p.Question)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("- Answer in plain English in 2 to 4 short paragraphs.\n")
	b.WriteString("- Cite the legal context as [LAW n] where it supports a statement.\n")
	fmt.Fprintf(&b, "- If the legal context does not cover the question, say the answer is based on general %s tenancy law knowledge.\n", p.Jurisdiction)
	if p.Contract != nil {
		b.WriteString("- Refer to the contract findings where they are relevant.\n")
	}
	b.WriteString("- Do not present the answer as legal advice.\n")

	out := b.String()
	if len(out) > maxPromptLen {
		out = out[:maxPromptLen]
	}
	return out
}

func excerpt(issues []models.Issue) string {
	if len(issues) == 0 {
		return "No issues were found in the contract.\n"
	}

	var b strings.Builder
	for _, is := range issues {
		line := fmt.Sprintf("- %s [%s]: %s\n", is.Title, is.Severity, is.Description)
		if b.Len()+len(line) > maxExcerptLen {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
