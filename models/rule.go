package models

// Comparator is the check a Rule applies to a normalized clause value
type Comparator string

const (
	CompareAtMost       Comparator = "<="
	CompareAtLeast      Comparator = ">="
	CompareEqual        Comparator = "=="
	CompareFrequencyMax Comparator = "frequency-max" // at most once per Threshold
)

// Valid reports whether c is a supported comparator
func (c Comparator) Valid() bool {
	switch c {
	case CompareAtMost, CompareAtLeast, CompareEqual, CompareFrequencyMax:
		return true
	}
	return false
}

// RuleSeverity is the legal weight of a rule or finding
type RuleSeverity string

const (
	RuleSeverityNone     RuleSeverity = ""
	RuleSeverityAdvisory RuleSeverity = "advisory"
	RuleSeverityUnfair   RuleSeverity = "unfair"
	RuleSeverityIllegal  RuleSeverity = "illegal"
)

// Rank orders severities so the most severe outcome wins a tie-break
func (s RuleSeverity) Rank() int {
	switch s {
	case RuleSeverityAdvisory:
		return 1
	case RuleSeverityUnfair:
		return 2
	case RuleSeverityIllegal:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a severity a configured Rule may carry
func (s RuleSeverity) Valid() bool {
	switch s {
	case RuleSeverityAdvisory, RuleSeverityUnfair, RuleSeverityIllegal:
		return true
	}
	return false
}

// Rule is a single deterministic legal threshold for a clause type
type Rule struct {
	Jurisdiction string       `json:"jurisdiction" yaml:"-"`
	ClauseType   ClauseType   `json:"clause_type" yaml:"clause_type"`
	Comparator   Comparator   `json:"comparator" yaml:"comparator"`
	Threshold    float64      `json:"threshold" yaml:"threshold"`
	Unit         Unit         `json:"unit" yaml:"unit"`
	AppliesTo    []Unit       `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`
	LegalBasis   string       `json:"legal_basis" yaml:"legal_basis"`
	Severity     RuleSeverity `json:"severity" yaml:"severity"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// FindingKind identifies which layer of the rule engine produced a finding
type FindingKind string

const (
	FindingNumeric     FindingKind = "numeric"
	FindingPattern     FindingKind = "pattern"
	FindingMissingData FindingKind = "missing_data"
	FindingKeyword     FindingKind = "keyword"
)

// Finding is one triggered check inside a RuleVerdict
type Finding struct {
	Kind       FindingKind  `json:"kind"`
	Severity   RuleSeverity `json:"severity"`
	LegalBasis string       `json:"legal_basis,omitempty"`
	Message    string       `json:"message"`
}

// KeywordFlag is a low-confidence risk signal raised by the heuristic layer
type KeywordFlag struct {
	Keyword string `json:"keyword"`
	Weight  int    `json:"weight"`
}

// RuleVerdict is the deterministic opinion of the rule engine on one clause
type RuleVerdict struct {
	ClauseID       string        `json:"clause_id"`
	Severity       RuleSeverity  `json:"severity"`
	Findings       []Finding     `json:"findings"`
	Citations      []string      `json:"citations"`
	RulesEvaluated int           `json:"rules_evaluated"`
	MissingNumeric bool          `json:"missing_numeric"`
	MissingField   string        `json:"missing_field,omitempty"`
	Keywords       []KeywordFlag `json:"keywords,omitempty"`
	Unverified     bool          `json:"unverified"`
}

// Deterministic reports whether a numeric rule was applied or a prohibited
// pattern matched. Keyword flags never make a verdict deterministic.
func (v *RuleVerdict) Deterministic() bool {
	if v == nil {
		return false
	}
	if v.RulesEvaluated > 0 {
		return true
	}
	for _, f := range v.Findings {
		if f.Kind == FindingPattern {
			return true
		}
	}
	return false
}

// IsIllegal reports whether any deterministic check fired with illegal severity
func (v *RuleVerdict) IsIllegal() bool {
	return v != nil && v.Severity == RuleSeverityIllegal
}

// KeywordWeight sums the weight of all keyword flags
func (v *RuleVerdict) KeywordWeight() int {
	if v == nil {
		return 0
	}
	total := 0
	for _, k := range v.Keywords {
		total += k.Weight
	}
	return total
}
