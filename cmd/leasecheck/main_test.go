package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecheck-backend/rules"
)

const testTable = `version: "cli-test"
jurisdictions:
  - code: NSW
    name: New South Wales
    verified: true
    prohibited_terms:
      pet_ban: "Test Act s.2"
    rules:
      - clause_type: bond
        comparator: "<="
        threshold: 4
        unit: weeks
        legal_basis: "Test Act s.1"
        severity: illegal
      - clause_type: rent_increase
        comparator: frequency-max
        threshold: 12
        unit: months
        legal_basis: "Test Act s.3"
        severity: illegal
placeholder:
  code: UNVERIFIED
  name: Unverified
  verified: false
  rules: []
`

// isolateEnv points the CLI at a clean mock configuration
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "GEMINI_API_KEY", "RULE_TABLE_PATH", "CORPUS_PATH", "STORAGE_TYPE", "ARCHIVE_REPORTS", "RETRIEVAL_TOP_K", "ANALYSIS_CONCURRENCY"} {
		t.Setenv(k, "")
	}
	t.Setenv("ANALYSIS_BACKEND", "mock")
	t.Setenv("DEFAULT_JURISDICTION", "NSW")
	t.Setenv("STORAGE_LOCAL_PATH", t.TempDir())
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRulesValidate(t *testing.T) {
	path := writeFile(t, "rules.yaml", testTable)

	out, err := run(t, "", "rules", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "version cli-test")
	assert.Contains(t, out, "NSW")
	assert.Contains(t, out, "verified")
}

func TestRulesValidateRejectsBrokenTable(t *testing.T) {
	path := writeFile(t, "rules.yaml", "version: x\njurisdictions: []\n")

	_, err := run(t, "", "rules", "validate", path)
	assert.ErrorIs(t, err, rules.ErrInvalidRuleTable)
}

func TestRulesShowFile(t *testing.T) {
	path := writeFile(t, "rules.yaml", testTable)

	out, err := run(t, "", "rules", "show", "--file", path, "nsw")
	require.NoError(t, err)
	assert.Contains(t, out, "<= 4 weeks")
	assert.Contains(t, out, "at most once per 12 months")
	assert.Contains(t, out, "pet_ban")
	assert.Contains(t, out, "Test Act s.2")
}

func TestRulesShowConfiguredTable(t *testing.T) {
	isolateEnv(t)

	out, err := run(t, "", "rules", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "NSW")
	assert.Contains(t, out, "VIC")
	assert.Contains(t, out, "Residential Tenancies Act 2010 (NSW) s.19")
}

func TestAssessJSON(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "lease-42.txt", "Residential Tenancies Act 2010 (NSW)\n\nThe bond is 6 weeks rent\n")

	out, err := run(t, "", "assess", "--json", path)
	require.NoError(t, err)

	var report struct {
		DocID     string `json:"doc_id"`
		RiskLevel string `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "lease-42", report.DocID)
	assert.Equal(t, "HIGH", report.RiskLevel)
}

func TestAssessStdinText(t *testing.T) {
	isolateEnv(t)

	out, err := run(t, "No pets are allowed at the property.\n", "assess", "-j", "vic", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract Analysis for VIC")
	assert.Contains(t, out, "Risk level: HIGH")
	assert.Contains(t, out, "Residential Tenancies Act 1997 (Vic) s.71A")
}

func TestAsk(t *testing.T) {
	isolateEnv(t)

	out, err := run(t, "", "ask", "-j", "NSW", "The", "bond", "exceeds", "4", "weeks", "rent")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Residential Tenancies Act 2010 (NSW) s.159")
}

func TestAskInvalidJob(t *testing.T) {
	isolateEnv(t)

	_, err := run(t, "", "ask", "--job", "not-a-uuid", "Is", "my", "bond", "legal?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job id")
}

func TestAssessMissingFile(t *testing.T) {
	_, err := run(t, "", "assess", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
