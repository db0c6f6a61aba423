package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"leasecheck-backend/heuristic"
	"leasecheck-backend/models"
)

const epsilon = 1e-9

// Engine evaluates clauses against the rule table. Evaluate is a pure
// function of its input and the read-only table: no I/O, no shared state.
type Engine struct {
	table      *Table
	classifier heuristic.Classifier
	patterns   []ProhibitedPattern
}

// EngineOption is a functional option for Engine
type EngineOption func(*Engine)

// WithClassifier replaces the keyword risk layer. Passing nil disables it.
func WithClassifier(c heuristic.Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// NewEngine creates a rule engine over a loaded table
func NewEngine(table *Table, opts ...EngineOption) *Engine {
	e := &Engine{
		table:      table,
		classifier: heuristic.NewKeywordClassifier(nil),
		patterns:   ProhibitedPatterns(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the rule table the engine evaluates against
func (e *Engine) Table() *Table {
	return e.table
}

// Evaluate returns the deterministic opinion on a clause, or nil when the
// jurisdiction has no rule for the clause type and neither prohibited
// patterns nor risk keywords fire. Nil means "no opinion", never "fair".
func (e *Engine) Evaluate(clause models.Clause) *models.RuleVerdict {
	jr, verified := e.table.Lookup(clause.Jurisdiction)
	rules := jr.RulesFor(clause.Type)

	v := &models.RuleVerdict{
		ClauseID:   clause.ID,
		Unverified: !verified,
	}

	if len(rules) > 0 {
		e.applyNumericRules(v, clause, jr, rules)
	}

	patternHits := 0
	for _, p := range e.patterns {
		if !p.Matches(clause.RawText) {
			continue
		}
		patternHits++
		basis, ok := jr.ProhibitedBasis(p.Category)
		if !ok {
			basis = genericProhibitedBasis
		}
		v.Findings = append(v.Findings, models.Finding{
			Kind:       models.FindingPattern,
			Severity:   models.RuleSeverityIllegal,
			LegalBasis: basis,
			Message:    fmt.Sprintf("Clause contains a prohibited term (%s)", p.Label),
		})
	}

	if e.classifier != nil {
		v.Keywords = e.classifier.Flag(clause.RawText)
	}

	if len(rules) == 0 && patternHits == 0 && len(v.Keywords) == 0 {
		return nil
	}

	// Keywords only speak when no deterministic check was made.
	if !v.Deterministic() && len(v.Keywords) > 0 {
		v.Findings = append(v.Findings, models.Finding{
			Kind:     models.FindingKeyword,
			Severity: models.RuleSeverityAdvisory,
			Message:  "Risk language detected: " + keywordList(v.Keywords),
		})
	}

	seen := make(map[string]bool)
	for _, f := range v.Findings {
		if f.Severity.Rank() > v.Severity.Rank() {
			v.Severity = f.Severity
		}
		if f.LegalBasis != "" && !seen[f.LegalBasis] {
			seen[f.LegalBasis] = true
			v.Citations = append(v.Citations, f.LegalBasis)
		}
	}

	return v
}

func (e *Engine) applyNumericRules(v *models.RuleVerdict, clause models.Clause, jr *JurisdictionRules, rules []models.Rule) {
	label := clause.Type.Label()

	if !clause.HasNumericValue() {
		v.MissingNumeric = true
		v.MissingField = "numeric_value"
		v.Findings = append(v.Findings, models.Finding{
			Kind:     models.FindingMissingData,
			Severity: models.RuleSeverityAdvisory,
			Message: fmt.Sprintf("%s clause has no numeric value, so the %s limit (%s) could not be checked",
				label, jr.Code, describeRules(rules)),
		})
		return
	}

	value := *clause.NumericValue
	notice := statesNoticePeriod(clause)
	for _, rule := range rules {
		if !ruleReads(rule, clause.Unit, notice) {
			continue
		}
		normalized, ok := Normalize(value, clause.Unit, rule.Unit)
		if !ok {
			continue
		}
		v.RulesEvaluated++

		if !violates(rule.Comparator, normalized, rule.Threshold) {
			continue
		}
		v.Findings = append(v.Findings, models.Finding{
			Kind:       models.FindingNumeric,
			Severity:   rule.Severity,
			LegalBasis: rule.LegalBasis,
			Message:    violationMessage(label, jr.Code, rule, value, clause.Unit, normalized),
		})
	}

	if v.RulesEvaluated == 0 {
		v.MissingNumeric = true
		v.MissingField = "unit"
		stated := formatQuantity(value, clause.Unit)
		if clause.Unit == models.UnitNone {
			stated = formatNumber(value) + " (no unit)"
		}
		v.Findings = append(v.Findings, models.Finding{
			Kind:     models.FindingMissingData,
			Severity: models.RuleSeverityAdvisory,
			Message: fmt.Sprintf("%s clause states %s, which cannot be compared with the %s limit (%s)",
				label, stated, jr.Code, describeRules(rules)),
		})
	}
}

// ruleReads reports whether rule can judge a value in unit. A notice period
// is never a frequency, and any duration can meet a minimum notice.
func ruleReads(rule models.Rule, unit models.Unit, notice bool) bool {
	if notice {
		switch rule.Comparator {
		case models.CompareFrequencyMax:
			return false
		case models.CompareAtLeast:
			return Convertible(unit, rule.Unit)
		}
	}
	return appliesTo(rule, unit)
}

func appliesTo(rule models.Rule, unit models.Unit) bool {
	if len(rule.AppliesTo) == 0 {
		return Convertible(unit, rule.Unit)
	}
	for _, u := range rule.AppliesTo {
		if u == unit {
			return true
		}
	}
	return false
}

// noticeQuantity finds durations the text gives as a notice period:
// "3 months written notice", "notice of at least 60 days"
var noticeQuantity = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?\s*|[a-z]+[\s-]+)(day|week|month|year)s?'?s?\s+(?:(?:written|prior|advance|clear)\s+)*notice\b|` +
	`\bnotice(?:\s+period)?\s+of\s+(?:at\s+least\s+|not\s+less\s+than\s+|no\s+less\s+than\s+)?(\d+(?:\.\d+)?\s*|[a-z]+[\s-]+)(day|week|month|year)s?\b`)

// statesNoticePeriod reports whether the clause's own value is stated as a
// notice period. Word numbers are matched on the unit alone.
func statesNoticePeriod(clause models.Clause) bool {
	for _, m := range noticeQuantity.FindAllStringSubmatch(clause.RawText, -1) {
		amount, unit := m[1], m[2]
		if amount == "" {
			amount, unit = m[3], m[4]
		}
		if models.ParseUnit(unit) != clause.Unit {
			continue
		}
		amount = strings.TrimSpace(strings.Trim(amount, "- "))
		if v, err := strconv.ParseFloat(amount, 64); err == nil && math.Abs(v-*clause.NumericValue) > epsilon {
			continue
		}
		return true
	}
	return false
}

func violates(cmp models.Comparator, value, threshold float64) bool {
	switch cmp {
	case models.CompareAtMost:
		return value > threshold+epsilon
	case models.CompareAtLeast, models.CompareFrequencyMax:
		return value < threshold-epsilon
	case models.CompareEqual:
		return math.Abs(value-threshold) > epsilon
	default:
		return false
	}
}

func violationMessage(label, jurisdiction string, rule models.Rule, value float64, unit models.Unit, normalized float64) string {
	stated := formatQuantity(value, unit)
	if unit != rule.Unit {
		stated += " (" + formatQuantity(normalized, rule.Unit) + ")"
	}
	limit := formatQuantity(rule.Threshold, rule.Unit)

	switch rule.Comparator {
	case models.CompareAtMost:
		return fmt.Sprintf("%s of %s exceeds the %s maximum of %s", label, stated, jurisdiction, limit)
	case models.CompareAtLeast:
		return fmt.Sprintf("%s of %s is less than the %s minimum of %s", label, stated, jurisdiction, limit)
	case models.CompareFrequencyMax:
		return fmt.Sprintf("%s every %s is more frequent than the %s limit of once per %s", label, stated, jurisdiction, limit)
	default:
		return fmt.Sprintf("%s of %s differs from the %s requirement of %s", label, stated, jurisdiction, limit)
	}
}

func describeRules(rules []models.Rule) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, fmt.Sprintf("%s %s", r.Comparator, formatQuantity(r.Threshold, r.Unit)))
	}
	return strings.Join(parts, ", ")
}

func formatQuantity(value float64, unit models.Unit) string {
	if unit == models.UnitDollars {
		return "$" + strconv.FormatFloat(value, 'f', 2, 64)
	}
	return formatNumber(value) + " " + string(unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func keywordList(flags []models.KeywordFlag) string {
	words := make([]string, len(flags))
	for i, f := range flags {
		words[i] = strconv.Quote(f.Keyword)
	}
	return strings.Join(words, ", ")
}
