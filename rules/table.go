// Package rules holds the per-jurisdiction rule table and the deterministic
// rule engine that evaluates clauses against it.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"leasecheck-backend/models"
)

//go:embed default_rules.yaml
var defaultTableYAML []byte

// ErrInvalidRuleTable is returned for any malformed or incomplete rule table.
// Callers must abort start-up rather than run with an undefined rule set.
var ErrInvalidRuleTable = errors.New("invalid rule table")

// JurisdictionRules is the rule set for one jurisdiction
type JurisdictionRules struct {
	Code            string            `yaml:"code" json:"code"`
	Name            string            `yaml:"name" json:"name"`
	Verified        bool              `yaml:"verified" json:"verified"`
	ProhibitedTerms map[string]string `yaml:"prohibited_terms" json:"prohibited_terms,omitempty"`
	Rules           []models.Rule     `yaml:"rules" json:"rules"`

	byType map[models.ClauseType][]models.Rule
}

// RulesFor returns the rules for one clause type. The slice is shared and
// must not be modified.
func (j *JurisdictionRules) RulesFor(t models.ClauseType) []models.Rule {
	return j.byType[t]
}

// ProhibitedBasis returns the configured citation for a prohibited-term category
func (j *JurisdictionRules) ProhibitedBasis(category string) (string, bool) {
	basis, ok := j.ProhibitedTerms[category]
	return basis, ok && basis != ""
}

type tableDocument struct {
	Version       string               `yaml:"version"`
	Jurisdictions []*JurisdictionRules `yaml:"jurisdictions"`
	Placeholder   *JurisdictionRules   `yaml:"placeholder"`
}

// Table is the loaded, validated rule configuration. It is immutable after
// loading and safe for any number of concurrent readers.
type Table struct {
	version       string
	jurisdictions map[string]*JurisdictionRules
	placeholder   *JurisdictionRules
}

// DefaultTable parses the embedded rule table
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTableYAML)
}

// LoadTable reads and validates a YAML rule table
func LoadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable validates a YAML rule table. It performs no I/O.
func ParseTable(data []byte) (*Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleTable, err)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidRuleTable)
	}
	if len(doc.Jurisdictions) == 0 {
		return nil, fmt.Errorf("%w: no jurisdictions configured", ErrInvalidRuleTable)
	}
	if doc.Placeholder == nil {
		return nil, fmt.Errorf("%w: missing placeholder table", ErrInvalidRuleTable)
	}
	if doc.Placeholder.Verified {
		return nil, fmt.Errorf("%w: placeholder table must not be verified", ErrInvalidRuleTable)
	}

	t := &Table{
		version:       doc.Version,
		jurisdictions: make(map[string]*JurisdictionRules, len(doc.Jurisdictions)),
	}

	for _, j := range doc.Jurisdictions {
		if j == nil {
			return nil, fmt.Errorf("%w: empty jurisdiction entry", ErrInvalidRuleTable)
		}
		if err := prepare(j); err != nil {
			return nil, err
		}
		if _, dup := t.jurisdictions[j.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate jurisdiction %s", ErrInvalidRuleTable, j.Code)
		}
		t.jurisdictions[j.Code] = j
	}

	if err := prepare(doc.Placeholder); err != nil {
		return nil, err
	}
	if _, clash := t.jurisdictions[doc.Placeholder.Code]; clash {
		return nil, fmt.Errorf("%w: placeholder code %s collides with a jurisdiction", ErrInvalidRuleTable, doc.Placeholder.Code)
	}
	t.placeholder = doc.Placeholder

	return t, nil
}

// prepare validates one jurisdiction and builds its type index
func prepare(j *JurisdictionRules) error {
	j.Code = models.NormalizeJurisdiction(j.Code)
	if j.Code == "" {
		return fmt.Errorf("%w: jurisdiction without code", ErrInvalidRuleTable)
	}

	for category := range j.ProhibitedTerms {
		if !KnownPatternCategory(category) {
			return fmt.Errorf("%w: %s: unknown prohibited term category %q", ErrInvalidRuleTable, j.Code, category)
		}
	}

	j.byType = make(map[models.ClauseType][]models.Rule)
	for i := range j.Rules {
		rule := &j.Rules[i]
		rule.Jurisdiction = j.Code
		if err := validateRule(*rule); err != nil {
			return fmt.Errorf("%w: %s rule %d: %v", ErrInvalidRuleTable, j.Code, i+1, err)
		}
		j.byType[rule.ClauseType] = append(j.byType[rule.ClauseType], *rule)
	}
	return nil
}

func validateRule(r models.Rule) error {
	if !r.ClauseType.Valid() {
		return fmt.Errorf("unknown clause type %q", r.ClauseType)
	}
	if !r.Comparator.Valid() {
		return fmt.Errorf("unknown comparator %q", r.Comparator)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.LegalBasis == "" {
		return errors.New("missing legal basis")
	}
	if r.Threshold < 0 {
		return fmt.Errorf("negative threshold %v", r.Threshold)
	}
	if _, ok := Normalize(1, r.Unit, r.Unit); !ok {
		return fmt.Errorf("unsupported unit %q", r.Unit)
	}
	for _, u := range r.AppliesTo {
		if !Convertible(u, r.Unit) {
			return fmt.Errorf("unit %q cannot be compared with %q", u, r.Unit)
		}
	}
	return nil
}

// Version returns the configured table version
func (t *Table) Version() string {
	return t.version
}

// Lookup returns the rules for a jurisdiction. Unknown jurisdictions get the
// placeholder table and verified=false.
func (t *Table) Lookup(jurisdiction string) (*JurisdictionRules, bool) {
	if j, ok := t.jurisdictions[models.NormalizeJurisdiction(jurisdiction)]; ok {
		return j, j.Verified
	}
	return t.placeholder, false
}

// IsVerified reports whether verdicts for the jurisdiction rest on a
// verified rule set
func (t *Table) IsVerified(jurisdiction string) bool {
	_, verified := t.Lookup(jurisdiction)
	return verified
}

// Jurisdictions returns the configured jurisdictions sorted by code
func (t *Table) Jurisdictions() []*JurisdictionRules {
	out := make([]*JurisdictionRules, 0, len(t.jurisdictions))
	for _, j := range t.jurisdictions {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out
}

// Placeholder returns the fallback table used for unknown jurisdictions
func (t *Table) Placeholder() *JurisdictionRules {
	return t.placeholder
}
