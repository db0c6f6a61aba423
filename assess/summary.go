package assess

import (
	"errors"
	"fmt"

	"leasecheck-backend/models"
)

// ErrMisalignedVerdicts is returned when verdicts do not match clauses one to one
var ErrMisalignedVerdicts = errors.New("verdicts do not align with clauses")

// Summarize counts verdicts per status and derives the contract risk level.
// Zero verdicts yield zero counts and LOW.
func Summarize(verdicts []models.Verdict) (models.Statistics, models.RiskLevel) {
	stats := models.Statistics{Total: len(verdicts)}
	for _, v := range verdicts {
		switch v.Status {
		case models.StatusIllegal:
			stats.Illegal++
		case models.StatusQuestionable:
			stats.Questionable++
		default:
			stats.Legal++
		}
	}

	risk := models.RiskLow
	switch {
	case stats.Illegal > 0:
		risk = models.RiskHigh
	case stats.Questionable > 0:
		risk = models.RiskMedium
	}
	return stats, risk
}

// Assemble builds the Assessment for a document. verdicts must be in clause
// order, one per clause.
func Assemble(docID, jurisdiction string, clauses []models.Clause, verdicts []models.Verdict, unverified, degraded bool) (*models.Assessment, error) {
	if len(clauses) != len(verdicts) {
		return nil, fmt.Errorf("%w: %d clauses, %d verdicts", ErrMisalignedVerdicts, len(clauses), len(verdicts))
	}
	for i := range clauses {
		if clauses[i].ID != verdicts[i].ClauseID {
			return nil, fmt.Errorf("%w: position %d holds clause %q but verdict %q",
				ErrMisalignedVerdicts, i, clauses[i].ID, verdicts[i].ClauseID)
		}
	}

	stats, risk := Summarize(verdicts)

	a := &models.Assessment{
		DocID:        docID,
		Jurisdiction: models.NormalizeJurisdiction(jurisdiction),
		Unverified:   unverified,
		Degraded:     degraded,
		Clauses:      make([]models.Clause, len(clauses)),
		Verdicts:     make([]models.Verdict, len(verdicts)),
		RiskLevel:    risk,
		Statistics:   stats,
	}
	copy(a.Clauses, clauses)
	copy(a.Verdicts, verdicts)
	return a, nil
}
