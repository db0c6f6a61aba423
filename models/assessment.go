package models

// VerdictStatus is the clause-level legal outcome
type VerdictStatus string

const (
	StatusLegal        VerdictStatus = "legal"
	StatusIllegal      VerdictStatus = "illegal"
	StatusQuestionable VerdictStatus = "questionable"
)

// Severity is the clause-level severity shown to the user
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for sorting, highest first
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// VerdictSource records which evidence produced a verdict
type VerdictSource string

const (
	SourceRule      VerdictSource = "rule"
	SourceRetrieval VerdictSource = "retrieval"
	SourceHeuristic VerdictSource = "heuristic"
	SourceHybrid    VerdictSource = "hybrid"
)

// Verdict is the final, explainable outcome for one clause
type Verdict struct {
	ClauseID    string        `json:"clause_id"`
	Status      VerdictStatus `json:"status"`
	Severity    Severity      `json:"severity"`
	Explanation string        `json:"explanation"`
	Citations   []string      `json:"citations"`
	Source      VerdictSource `json:"source"`
}

// RiskLevel is the contract-wide rollup of clause verdicts
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Statistics holds exact verdict counts per status
type Statistics struct {
	Total        int `json:"total_clauses_reviewed"`
	Legal        int `json:"legal_clauses"`
	Illegal      int `json:"illegal_clauses"`
	Questionable int `json:"questionable_clauses"`
}

// Assessment is the full result of analysing one document. It is recomputed
// on every run and owned by the caller that requested it.
type Assessment struct {
	DocID        string     `json:"doc_id"`
	Jurisdiction string     `json:"jurisdiction"`
	Unverified   bool       `json:"unverified"`
	Degraded     bool       `json:"degraded"`
	Clauses      []Clause   `json:"clauses"`
	Verdicts     []Verdict  `json:"verdicts"`
	RiskLevel    RiskLevel  `json:"risk_level"`
	Statistics   Statistics `json:"statistics"`
}
