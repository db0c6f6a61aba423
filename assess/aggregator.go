// Package assess reconciles rule-engine verdicts with retrieved legislation
// into one explainable verdict per clause, and rolls those up per contract.
//
// Precedence is fixed:
//
//  1. An illegal rule finding (numeric or prohibited pattern) is final:
//     illegal, high, source rule. Retrieval only adds supporting citations.
//  2. Otherwise any weaker signal (unfair or advisory findings, missing
//     data, risk keywords, retrieval concern) yields questionable.
//  3. With no signal at all the clause is legal, which only means no
//     violation was found. An unverified jurisdiction caps this at
//     questionable.
package assess

import (
	"fmt"
	"strings"

	"leasecheck-backend/models"
)

// prohibitive cues that make a retrieved passage a concern rather than context
var concernCues = []string{
	"must not",
	"may not",
	"is void",
	"are void",
	"prohibited",
	"not permitted",
	"offence",
	"cannot",
	"no effect",
	"maximum",
}

// Coverage reports whether a jurisdiction's rules are verified.
// *rules.Table satisfies it.
type Coverage interface {
	IsVerified(jurisdiction string) bool
}

// Aggregator merges rule and retrieval signals. It holds no mutable state
// and is safe for concurrent use.
type Aggregator struct {
	coverage      Coverage
	concernMin    float64
	concernStrong float64
	citeMin       float64
	crossDiscount float64
}

// Option is a functional option for Aggregator
type Option func(*Aggregator)

// WithConcernThresholds sets the discounted similarity at which a
// prohibitive passage becomes a low and a medium concern
func WithConcernThresholds(low, medium float64) Option {
	return func(a *Aggregator) {
		a.concernMin = low
		a.concernStrong = medium
	}
}

// WithCitationThreshold sets the discounted similarity a passage needs to be cited
func WithCitationThreshold(min float64) Option {
	return func(a *Aggregator) {
		a.citeMin = min
	}
}

// WithCrossJurisdictionDiscount sets the factor applied to similarity of
// passages from another jurisdiction
func WithCrossJurisdictionDiscount(factor float64) Option {
	return func(a *Aggregator) {
		a.crossDiscount = factor
	}
}

// NewAggregator creates an aggregator. A nil coverage treats every
// jurisdiction as verified.
func NewAggregator(coverage Coverage, opts ...Option) *Aggregator {
	a := &Aggregator{
		coverage:      coverage,
		concernMin:    0.4,
		concernStrong: 0.7,
		citeMin:       0.2,
		crossDiscount: 0.5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) verified(jurisdiction string) bool {
	if a.coverage == nil {
		return true
	}
	return a.coverage.IsVerified(jurisdiction)
}

func (a *Aggregator) weight(r models.RetrievalResult) float64 {
	if r.CrossJurisdiction {
		return r.Similarity * a.crossDiscount
	}
	return r.Similarity
}

type concern struct {
	severity models.Severity
	passages []models.RetrievalResult
}

func (a *Aggregator) retrievalConcern(ev models.Evidence) concern {
	var c concern
	if ev.Degraded {
		return c
	}
	for _, r := range ev.Results {
		w := a.weight(r)
		if w < a.concernMin || !hasConcernCue(r.Text) {
			continue
		}
		c.passages = append(c.passages, r)
		sev := models.SeverityLow
		if w >= a.concernStrong {
			sev = models.SeverityMedium
		}
		if sev.Rank() > c.severity.Rank() {
			c.severity = sev
		}
	}
	return c
}

func hasConcernCue(text string) bool {
	lower := strings.ToLower(text)
	for _, cue := range concernCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// Aggregate produces the verdict for one clause. rv may be nil, meaning the
// rule engine had no opinion. Evidence marked Degraded contributes nothing
// and the resulting source is always rule or heuristic.
func (a *Aggregator) Aggregate(clause models.Clause, rv *models.RuleVerdict, ev models.Evidence) models.Verdict {
	unverified := !a.verified(clause.Jurisdiction) || (rv != nil && rv.Unverified)
	label := clause.Type.Label()
	jurisdiction := displayJurisdiction(clause.Jurisdiction)

	v := models.Verdict{ClauseID: clause.ID}
	var explanation []string

	switch {
	case rv.IsIllegal():
		v.Status = models.StatusIllegal
		v.Severity = models.SeverityHigh
		v.Source = models.SourceRule
		explanation = append(explanation, findingMessages(rv, models.RuleSeverityIllegal)...)
		explanation = append(explanation, findingMessages(rv, models.RuleSeverityUnfair)...)
		v.Citations = a.citations(rv, ev)

	case rv != nil && rv.Severity == models.RuleSeverityUnfair:
		v.Status = models.StatusQuestionable
		v.Severity = models.SeverityMedium
		v.Source = models.SourceRule
		explanation = append(explanation, findingMessages(rv, models.RuleSeverityUnfair)...)
		explanation = append(explanation, "The term may be unfair and could be challenged")
		v.Citations = a.citations(rv, ev)

	default:
		a.weakSignals(&v, &explanation, rv, ev)
	}

	if v.Status == "" {
		// no signal fired
		v.Citations = a.citations(rv, ev)
		switch {
		case unverified:
			v.Status = models.StatusQuestionable
			v.Severity = models.SeverityLow
			v.Source = models.SourceHeuristic
			if rv != nil && rv.RulesEvaluated > 0 {
				v.Source = models.SourceRule
				explanation = append(explanation, fmt.Sprintf("No violation found against the provisional %s rules", label))
			} else {
				explanation = append(explanation, fmt.Sprintf("No rule covers %s clauses in %s, so compliance could not be confirmed", strings.ToLower(label), jurisdiction))
			}
		case rv != nil && rv.RulesEvaluated > 0:
			v.Status = models.StatusLegal
			v.Severity = models.SeverityNone
			v.Source = models.SourceRule
			explanation = append(explanation, fmt.Sprintf("%s clause is within the %s limits", label, jurisdiction))
		default:
			v.Status = models.StatusLegal
			v.Severity = models.SeverityNone
			v.Source = models.SourceRule
			explanation = append(explanation, fmt.Sprintf("No rule covers %s clauses in %s and no risk indicators were found. This is not confirmation that the term is fair", strings.ToLower(label), jurisdiction))
		}
	}

	if unverified {
		explanation = append(explanation, fmt.Sprintf("Rules for %s are unverified, so this assessment is provisional", jurisdiction))
	}
	if v.Status == models.StatusIllegal {
		if refs := a.retrievalCitations(ev); len(refs) > 0 {
			explanation = append(explanation, "Supporting legislation: "+strings.Join(refs, "; "))
		}
	}

	v.Explanation = joinSentences(explanation)
	if v.Citations == nil {
		v.Citations = []string{}
	}
	return v
}

// weakSignals fills v when a questionable-level signal exists. It leaves v
// untouched when nothing fired.
func (a *Aggregator) weakSignals(v *models.Verdict, explanation *[]string, rv *models.RuleVerdict, ev models.Evidence) {
	sev := models.SeverityNone
	ruleLayer := false
	keywords := false

	if rv != nil {
		if rv.MissingNumeric {
			ruleLayer = true
			sev = maxSeverity(sev, models.SeverityMedium)
			*explanation = append(*explanation, fmt.Sprintf("Missing data (%s): %s", rv.MissingField, findingText(rv, models.FindingMissingData)))
		}
		for _, f := range rv.Findings {
			if f.Kind == models.FindingNumeric && f.Severity == models.RuleSeverityAdvisory {
				ruleLayer = true
				sev = maxSeverity(sev, models.SeverityLow)
				*explanation = append(*explanation, f.Message)
			}
		}
		if !rv.Deterministic() && len(rv.Keywords) > 0 {
			keywords = true
			kwSev := models.SeverityLow
			if rv.KeywordWeight() >= 2 {
				kwSev = models.SeverityMedium
			}
			sev = maxSeverity(sev, kwSev)
			*explanation = append(*explanation, findingText(rv, models.FindingKeyword))
		}
	}

	var c concern
	if !rv.Deterministic() {
		c = a.retrievalConcern(ev)
	}
	if c.severity != "" {
		if keywords {
			sev = maxSeverity(sev, models.SeverityMedium)
		}
		sev = maxSeverity(sev, c.severity)
		refs := make([]string, 0, len(c.passages))
		for _, p := range c.passages {
			refs = append(refs, a.citeLabel(p))
		}
		*explanation = append(*explanation, "Legislation on this topic restricts such terms: "+strings.Join(dedupe(refs), "; "))
	}

	if sev == models.SeverityNone {
		return
	}

	v.Status = models.StatusQuestionable
	v.Severity = sev
	switch {
	case c.severity != "" && (ruleLayer || keywords):
		v.Source = models.SourceHybrid
	case c.severity != "":
		v.Source = models.SourceRetrieval
	case ruleLayer:
		v.Source = models.SourceRule
	default:
		v.Source = models.SourceHeuristic
	}
	v.Citations = a.citations(rv, ev)
}

// citations lists rule citations first, then retrieved sources, de-duplicated
func (a *Aggregator) citations(rv *models.RuleVerdict, ev models.Evidence) []string {
	var out []string
	if rv != nil {
		out = append(out, rv.Citations...)
	}
	out = append(out, a.retrievalCitations(ev)...)
	return dedupe(out)
}

func (a *Aggregator) retrievalCitations(ev models.Evidence) []string {
	if ev.Degraded {
		return nil
	}
	var out []string
	for _, r := range ev.Results {
		if r.SourceCitation == "" || a.weight(r) < a.citeMin {
			continue
		}
		out = append(out, a.citeLabel(r))
	}
	return dedupe(out)
}

func (a *Aggregator) citeLabel(r models.RetrievalResult) string {
	if r.CrossJurisdiction && r.JurisdictionTag != "" {
		return fmt.Sprintf("%s (%s, other jurisdiction)", r.SourceCitation, r.JurisdictionTag)
	}
	return r.SourceCitation
}

func findingMessages(rv *models.RuleVerdict, sev models.RuleSeverity) []string {
	var out []string
	for _, f := range rv.Findings {
		if f.Severity == sev && f.Kind != models.FindingKeyword {
			out = append(out, f.Message)
		}
	}
	return out
}

func findingText(rv *models.RuleVerdict, kind models.FindingKind) string {
	for _, f := range rv.Findings {
		if f.Kind == kind {
			return f.Message
		}
	}
	return ""
}

func maxSeverity(a, b models.Severity) models.Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func displayJurisdiction(j string) string {
	j = models.NormalizeJurisdiction(j)
	if j == "" {
		return "an unspecified jurisdiction"
	}
	return j
}

func joinSentences(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
		if !strings.HasSuffix(p, ".") {
			b.WriteByte('.')
		}
	}
	return b.String()
}
