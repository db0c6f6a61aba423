// Package report renders an Assessment into the structured report consumed
// by the UI and chat layers. It formats only; every legal decision is final
// before Build is called.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"leasecheck-backend/models"
)

// NoClausesDetected is the overall verdict for a document with no clauses
const NoClausesDetected = "No clauses detected"

const (
	maxDescriptionLen  = 200
	maxSuggestions     = 6
	notSpecified       = "Not specified"
	mismatchIssueType  = "State Mismatch"
	mismatchIssueTitle = "Document is from %s"
	minRentAmount      = 50
)

const rentPeriod = `\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*(?:per|a|each|every|/)\s*(week|fortnight|calendar month|month|year|annum)\b`

// rent stated before or after its amount, within one sentence
var rentAmount = regexp.MustCompile(`(?i)\brent\b[^.$]*?` + rentPeriod + `|` + rentPeriod + `[^.]*?\brent\b`)

var defaultQuestions = []string{
	"Explain the bond requirements",
	"Can the landlord increase rent?",
	"What are my rights as a tenant?",
}

var questionsByType = map[models.ClauseType][]string{
	models.ClauseBond: {
		"What is the maximum bond a landlord can ask for?",
		"How do I get my bond back at the end of the lease?",
	},
	models.ClauseBreakFee: {
		"How much can I be charged for ending the lease early?",
	},
	models.ClauseRentIncrease: {
		"How much notice must the landlord give before a rent increase?",
		"How often can the rent be increased?",
	},
	models.ClausePetPolicy: {
		"Can the landlord refuse to let me keep a pet?",
	},
	models.ClauseMaintenance: {
		"Who is responsible for repairs to the property?",
	},
	models.ClauseSubletting: {
		"Am I allowed to sublet with the landlord's consent?",
	},
	models.ClauseUtilities: {
		"Which utility charges can the landlord pass on to me?",
	},
	models.ClauseOther: {
		"Is this clause enforceable?",
	},
}

type options struct {
	detectedJurisdiction string
}

// Option is a functional option for Build
type Option func(*options)

// WithDetectedJurisdiction records the jurisdiction the document itself
// appears to be from. A mismatch with the assessed jurisdiction is reported
// as an issue.
func WithDetectedJurisdiction(code string) Option {
	return func(o *options) {
		o.detectedJurisdiction = models.NormalizeJurisdiction(code)
	}
}

// Build renders the report for an assessment. It is a pure function.
func Build(a *models.Assessment, opts ...Option) *models.Report {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	r := &models.Report{
		DocID:          a.DocID,
		Jurisdiction:   a.Jurisdiction,
		RiskLevel:      a.RiskLevel,
		Statistics:     a.Statistics,
		CategoryCounts: map[models.ClauseType]int{},
		Issues:         []models.Issue{},
		Verdicts:       make([]models.Verdict, len(a.Verdicts)),
		QuickFacts: models.QuickFacts{
			Bond:            bondFact(a.Clauses),
			Rent:            rentFact(a.Clauses),
			Jurisdiction:    a.Jurisdiction,
			ClausesReviewed: a.Statistics.Total,
		},
	}
	copy(r.Verdicts, a.Verdicts)

	if o.detectedJurisdiction != "" && o.detectedJurisdiction != a.Jurisdiction {
		r.QuickFacts.DetectedJurisdiction = o.detectedJurisdiction
		r.Issues = append(r.Issues, models.Issue{
			Type:  mismatchIssueType,
			Title: fmt.Sprintf(mismatchIssueTitle, o.detectedJurisdiction),
			Description: fmt.Sprintf("This document appears to be a %s agreement, analysed using %s rules.",
				o.detectedJurisdiction, a.Jurisdiction),
			Severity:      strings.ToUpper(string(models.SeverityMedium)),
			WhyItMatters:  "Tenancy law differs between jurisdictions, so some verdicts may not apply.",
			Citations:     []string{},
			PageReference: "Document header",
		})
	}

	r.Issues = append(r.Issues, issues(a)...)
	for i, v := range a.Verdicts {
		if v.Status != models.StatusLegal {
			r.CategoryCounts[a.Clauses[i].Type]++
		}
	}

	r.SuggestedQuestions = suggestions(a)
	r.Notes = notes(a)

	if len(a.Clauses) == 0 {
		r.OverallVerdict = NoClausesDetected
		r.Recommendation = "No clauses were detected in the document, so nothing could be assessed. " +
			"Check that the file is a residential tenancy agreement and try again."
		return r
	}

	r.OverallVerdict = fmt.Sprintf("Contract Analysis for %s", a.Jurisdiction)
	r.Recommendation = recommendation(a, len(r.Issues))
	return r
}

func issues(a *models.Assessment) []models.Issue {
	var out []models.Issue
	for i, v := range a.Verdicts {
		if v.Status == models.StatusLegal {
			continue
		}
		c := a.Clauses[i]
		out = append(out, models.Issue{
			ClauseID:      c.ID,
			Type:          c.Type.Label(),
			Title:         fmt.Sprintf("Clause %s: %s", c.ID, c.Type.Label()),
			Description:   truncate(c.RawText, maxDescriptionLen),
			Status:        v.Status,
			Severity:      strings.ToUpper(string(v.Severity)),
			WhyItMatters:  v.Explanation,
			Citations:     v.Citations,
			Source:        v.Source,
			PageReference: "Clause " + c.ID,
		})
	}

	// most severe first, document order within a severity
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) > severityRank(out[j].Severity)
	})
	return out
}

func severityRank(s string) int {
	return models.Severity(strings.ToLower(s)).Rank()
}

func recommendation(a *models.Assessment, issueCount int) string {
	prefix := fmt.Sprintf("Found %d potential issue(s). ", issueCount)
	switch a.RiskLevel {
	case models.RiskHigh:
		return prefix + "At least one clause appears to be illegal. Raise it with the landlord or agent before signing, " +
			"or contact a tenancy advice service."
	case models.RiskMedium:
		return prefix + "Some clauses need a closer look. Ask the landlord or agent to explain or change them before signing."
	default:
		if issueCount > 0 {
			return prefix + "Most clauses appear compliant."
		}
		return "No issues found. Clauses appear compliant with the rules checked, but this is not legal advice."
	}
}

func suggestions(a *models.Assessment) []string {
	var out []string
	seen := map[string]bool{}
	add := func(q string) {
		if !seen[q] && len(out) < maxSuggestions {
			seen[q] = true
			out = append(out, q)
		}
	}

	for i, v := range a.Verdicts {
		if v.Status == models.StatusLegal {
			continue
		}
		for _, q := range questionsByType[a.Clauses[i].Type] {
			add(q)
		}
	}
	for _, q := range defaultQuestions {
		add(q)
	}
	return out
}

func notes(a *models.Assessment) []string {
	var out []string
	if len(a.Clauses) == 0 {
		out = append(out, NoClausesDetected+"; this is not an assessment that the contract is fair.")
	}
	if a.Unverified {
		out = append(out, fmt.Sprintf("Rules for %s are unverified. Results are provisional and no clause is marked legal.", a.Jurisdiction))
	}
	if a.Degraded {
		out = append(out, "Legislation search was unavailable. Verdicts rely on rule and keyword checks only.")
	}
	return out
}

func bondFact(clauses []models.Clause) string {
	for _, c := range clauses {
		if c.Type != models.ClauseBond || !c.HasNumericValue() {
			continue
		}
		v := *c.NumericValue
		switch c.Unit {
		case models.UnitDollars:
			return "$" + strconv.FormatFloat(v, 'f', 2, 64)
		case models.UnitNone:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return strconv.FormatFloat(v, 'f', -1, 64) + " " + string(c.Unit) + " rent"
		}
	}
	return notSpecified
}

func rentFact(clauses []models.Clause) string {
	for _, c := range clauses {
		if c.Type == models.ClauseBond || c.Type == models.ClauseRentIncrease {
			continue
		}
		for _, m := range rentAmount.FindAllStringSubmatch(c.RawText, -1) {
			amount, period := m[1], m[2]
			if amount == "" {
				amount, period = m[3], m[4]
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
			if err != nil || v < minRentAmount {
				continue
			}
			return fmt.Sprintf("$%.2f per %s", v, rentPeriodName(period))
		}
	}
	return notSpecified
}

func rentPeriodName(p string) string {
	switch p = strings.ToLower(p); p {
	case "annum":
		return "year"
	case "calendar month":
		return "month"
	default:
		return p
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
