package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecheck-backend/models"
)

func TestBuildWithoutContract(t *testing.T) {
	out := Build(Prompt{
		Question:     "How much bond can the landlord ask for?",
		Jurisdiction: "NSW",
		Passages: []models.RetrievalResult{
			{ChunkID: "nsw-rta-s159", Text: "  A landlord must not require more than 4 weeks rent as bond.  ", SourceCitation: "Residential Tenancies Act 2010 (NSW) s.159"},
			{ChunkID: "nsw-rta-s162", Text: "The bond must be lodged within 10 working days.", SourceCitation: "Residential Tenancies Act 2010 (NSW) s.162"},
		},
	})

	assert.Contains(t, out, "helping a tenant in NSW")
	assert.Contains(t, out, "[LAW 1] Residential Tenancies Act 2010 (NSW) s.159\nA landlord must not require more than 4 weeks rent as bond.\n")
	assert.Contains(t, out, "[LAW 2] Residential Tenancies Act 2010 (NSW) s.162")
	assert.Contains(t, out, "QUESTION: How much bond can the landlord ask for?")
	assert.Contains(t, out, "general NSW tenancy law knowledge")
	assert.NotContains(t, out, "CONTRACT ANALYSIS")
	assert.NotContains(t, out, "contract findings")
}

func TestBuildWithContract(t *testing.T) {
	report := &models.Report{
		DocID:        "lease-1",
		Jurisdiction: "QLD",
		RiskLevel:    models.RiskHigh,
		Statistics:   models.Statistics{Total: 5, Legal: 3, Illegal: 1, Questionable: 1},
		Issues: []models.Issue{
			{Title: "Clause 2: Bond", Severity: "HIGH", Description: "The bond is 6 weeks rent"},
			{Title: "Clause 4: Pet Policy", Severity: "LOW", Description: "No pets"},
		},
	}

	contract := ContractFromReport(report)
	require.NotNil(t, contract)
	assert.Equal(t, "lease-1", contract.DocID)

	out := Build(Prompt{Question: "Is my bond legal?", Jurisdiction: "QLD", Contract: contract})

	assert.Contains(t, out, "Overall risk: HIGH")
	assert.Contains(t, out, "Clauses reviewed: 5")
	assert.Contains(t, out, "Illegal clauses: 1")
	assert.Contains(t, out, "- Clause 2: Bond [HIGH]: The bond is 6 weeks rent")
	assert.Contains(t, out, "- Clause 4: Pet Policy [LOW]: No pets")
	assert.Contains(t, out, "No legislation passages were found")
	assert.Contains(t, out, "contract findings")
}

func TestBuildCleanContract(t *testing.T) {
	out := Build(Prompt{
		Question:     "Can I keep a cat?",
		Jurisdiction: "VIC",
		Contract:     &ContractContext{RiskLevel: models.RiskLow, Statistics: models.Statistics{Total: 3, Legal: 3}},
	})
	assert.Contains(t, out, "No issues were found in the contract.")
}

func TestBuildBoundsLength(t *testing.T) {
	long := strings.Repeat("x", 400)
	var issues []models.Issue
	for i := 0; i < 50; i++ {
		issues = append(issues, models.Issue{Title: "Clause", Severity: "MEDIUM", Description: long})
	}
	var passages []models.RetrievalResult
	for i := 0; i < 100; i++ {
		passages = append(passages, models.RetrievalResult{SourceCitation: "Act", Text: long})
	}

	out := Build(Prompt{Question: "?", Jurisdiction: "NSW", Passages: passages, Contract: &ContractContext{Issues: issues}})

	assert.LessOrEqual(t, len(out), maxPromptLen)
	assert.LessOrEqual(t, len(excerpt(issues)), maxExcerptLen)
	assert.NotEmpty(t, excerpt(issues))
}

func TestContractFromNilReport(t *testing.T) {
	assert.Nil(t, ContractFromReport(nil))
}
