package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Issue is one flagged clause as presented to the reader
type Issue struct {
	ClauseID      string        `json:"clause_id"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Status        VerdictStatus `json:"status"`
	Severity      string        `json:"severity"`
	WhyItMatters  string        `json:"why_its_a_problem"`
	Citations     []string      `json:"citations"`
	Source        VerdictSource `json:"source"`
	PageReference string        `json:"page_reference"`
}

// QuickFacts summarises headline contract figures
type QuickFacts struct {
	Bond                 string `json:"bond"`
	Rent                 string `json:"rent"`
	Jurisdiction         string `json:"state"`
	DetectedJurisdiction string `json:"detected_state,omitempty"`
	ClausesReviewed      int    `json:"clauses_reviewed"`
}

// Report is the structured output consumed by the UI and chat layers.
// RiskLevel, statuses and citations are stable contract fields.
type Report struct {
	DocID              string             `json:"doc_id"`
	Jurisdiction       string             `json:"jurisdiction"`
	OverallVerdict     string             `json:"overall_verdict"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	Recommendation     string             `json:"recommendation"`
	Statistics         Statistics         `json:"statistics"`
	CategoryCounts     map[ClauseType]int `json:"category_counts"`
	Issues             []Issue            `json:"issues_found"`
	Verdicts           []Verdict          `json:"verdicts"`
	QuickFacts         QuickFacts         `json:"quick_facts"`
	SuggestedQuestions []string           `json:"suggested_questions"`
	Notes              []string           `json:"notes,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (r Report) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *Report) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported report column type %T", value)
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, r)
}
