package models

import (
	"math"
	"strings"
)

// ClauseType represents the detected category of a contract clause
type ClauseType string

const (
	ClauseBond         ClauseType = "bond"
	ClauseBreakFee     ClauseType = "break_fee"
	ClauseRentIncrease ClauseType = "rent_increase"
	ClausePetPolicy    ClauseType = "pet_policy"
	ClauseMaintenance  ClauseType = "maintenance"
	ClauseSubletting   ClauseType = "subletting"
	ClauseUtilities    ClauseType = "utilities"
	ClauseOther        ClauseType = "other"
)

// ClauseTypes lists every supported clause type in display order
var ClauseTypes = []ClauseType{
	ClauseBond,
	ClauseBreakFee,
	ClauseRentIncrease,
	ClausePetPolicy,
	ClauseMaintenance,
	ClauseSubletting,
	ClauseUtilities,
	ClauseOther,
}

// Valid reports whether t is one of the supported clause types
func (t ClauseType) Valid() bool {
	for _, known := range ClauseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable name for the clause type
func (t ClauseType) Label() string {
	switch t {
	case ClauseBond:
		return "Bond"
	case ClauseBreakFee:
		return "Break Fee"
	case ClauseRentIncrease:
		return "Rent Increase"
	case ClausePetPolicy:
		return "Pet Policy"
	case ClauseMaintenance:
		return "Maintenance"
	case ClauseSubletting:
		return "Subletting"
	case ClauseUtilities:
		return "Utilities"
	default:
		return "Other"
	}
}

// ParseClauseType maps loose type names (including the legacy extraction
// vocabulary) onto the supported enum. Unknown names map to ClauseOther.
func ParseClauseType(s string) ClauseType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bond", "security_deposit", "deposit":
		return ClauseBond
	case "break_fee", "break_lease_fee", "early_termination":
		return ClauseBreakFee
	case "rent_increase":
		return ClauseRentIncrease
	case "pet_policy", "pets":
		return ClausePetPolicy
	case "maintenance", "repairs":
		return ClauseMaintenance
	case "subletting", "sublet":
		return ClauseSubletting
	case "utilities", "utility_charges":
		return ClauseUtilities
	default:
		return ClauseOther
	}
}

// Unit is the unit attached to a clause's numeric value or a rule threshold
type Unit string

const (
	UnitNone    Unit = ""
	UnitDays    Unit = "days"
	UnitWeeks   Unit = "weeks"
	UnitMonths  Unit = "months"
	UnitYears   Unit = "years"
	UnitDollars Unit = "dollars"
)

// ParseUnit normalizes singular/plural and common abbreviations
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days", "d":
		return UnitDays
	case "week", "weeks", "wk", "wks", "w":
		return UnitWeeks
	case "month", "months", "mo", "mos":
		return UnitMonths
	case "year", "years", "yr", "yrs":
		return UnitYears
	case "dollar", "dollars", "$", "aud", "amount":
		return UnitDollars
	default:
		return UnitNone
	}
}

// Clause represents one semantically distinct contractual provision.
// Clauses are created by extraction and never mutated afterwards.
type Clause struct {
	ID           string     `json:"id"`
	Type         ClauseType `json:"type"`
	RawText      string     `json:"raw_text"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	Unit         Unit       `json:"unit,omitempty"`
	Jurisdiction string     `json:"jurisdiction"`
}

// HasNumericValue reports whether the clause carries a usable number
func (c Clause) HasNumericValue() bool {
	if c.NumericValue == nil {
		return false
	}
	v := *c.NumericValue
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NormalizeJurisdiction upper-cases and trims a jurisdiction code
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
