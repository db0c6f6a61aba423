package extract

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"leasecheck-backend/models"
)

var (
	paragraphSplit  = regexp.MustCompile(`\n\s*\n`)
	numberingPrefix = regexp.MustCompile(`^\s*(?:(?i:clause)\s+\d+[.):]?|\d+(?:\.\d+)+[.):]?|\d+[.):]|\([a-z0-9]+\)|[a-z][.)])\s+`)
	blankDollar     = regexp.MustCompile(`\$\s*[._\s]{2,}`)
	dollarAmount    = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(\.\d{1,2})?`)
	durationAmount  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|sixty|ninety)[\s-]+(day|week|month|year)s?\b`)
)

var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"sixty": 60, "ninety": 90,
}

type typeMatcher struct {
	clauseType models.ClauseType
	re         *regexp.Regexp
}

// checked in order; the first match types the clause
var typeMatchers = []typeMatcher{
	{models.ClauseBond, regexp.MustCompile(`(?i)\b(bond|security deposit|deposit amount)\b`)},
	{models.ClauseBreakFee, regexp.MustCompile(`(?i)\b(break[\s-]lease|lease break|break fee|early termination|end(ing)? (the|this) (lease|agreement) early|break (the|this) (lease|agreement))\b`)},
	{models.ClauseRentIncrease, regexp.MustCompile(`(?i)\b(rent increases?|increases? (in|of) (the )?rent|rent (will|may|can|shall) (be )?increase[ds]?|increase the rent)\b`)},
	{models.ClauseSubletting, regexp.MustCompile(`(?i)\b(sub-?let(ting)?|assign (the|this) (lease|agreement))\b`)},
	{models.ClausePetPolicy, regexp.MustCompile(`(?i)\b(pets?|animals?)\b`)},
	{models.ClauseMaintenance, regexp.MustCompile(`(?i)\b(maintenance|repairs?|maintain)\b`)},
	{models.ClauseUtilities, regexp.MustCompile(`(?i)\b(utilit(y|ies)|electricity|water|gas|internet)\b`)},
}

// unit preference per clause type; types not listed take the first quantity in the text
var unitPriority = map[models.ClauseType][]models.Unit{
	models.ClauseBond:         {models.UnitWeeks, models.UnitMonths, models.UnitDollars},
	models.ClauseBreakFee:     {models.UnitWeeks, models.UnitMonths, models.UnitDollars},
	models.ClauseRentIncrease: {models.UnitDays, models.UnitWeeks, models.UnitMonths, models.UnitYears},
}

// HeuristicExtractor splits contracts on blank lines and types each
// paragraph by keyword. It needs no external service.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a keyword-based extractor
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract implements Extractor
func (h *HeuristicExtractor) Extract(ctx context.Context, rawText, jurisdictionHint string) ([]models.Clause, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jurisdiction := resolveJurisdiction(rawText, jurisdictionHint)
	paragraphs := splitParagraphs(rawText)

	clauses := make([]models.Clause, 0, len(paragraphs))
	for _, p := range paragraphs {
		c := ParseClause(p)
		c.ID = clauseID(len(clauses))
		c.Jurisdiction = jurisdiction
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// ParseClause types one paragraph and pulls out its governing quantity
func ParseClause(text string) models.Clause {
	text = strings.TrimSpace(numberingPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
	c := models.Clause{
		Type:    classify(text),
		RawText: text,
	}
	if value, unit, ok := quantity(text, c.Type); ok {
		c.NumericValue = &value
		c.Unit = unit
	}
	return c
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := paragraphSplit.Split(text, -1)
	if len(parts) == 1 {
		parts = strings.Split(text, "\n")
	}

	var out []string
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func classify(text string) models.ClauseType {
	for _, m := range typeMatchers {
		if m.re.MatchString(text) {
			return m.clauseType
		}
	}
	return models.ClauseOther
}

type found struct {
	value float64
	unit  models.Unit
	pos   int
}

func quantity(text string, t models.ClauseType) (float64, models.Unit, bool) {
	var all []found

	for _, m := range durationAmount.FindAllStringSubmatchIndex(text, -1) {
		raw := strings.ToLower(text[m[2]:m[3]])
		v, ok := wordNumbers[raw]
		if !ok {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			v = parsed
		}
		all = append(all, found{value: v, unit: models.ParseUnit(text[m[4]:m[5]]), pos: m[0]})
	}

	if !blankDollar.MatchString(text) {
		for _, m := range dollarAmount.FindAllStringSubmatchIndex(text, -1) {
			raw := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
			if m[4] >= 0 {
				raw += text[m[4]:m[5]]
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsInf(v, 0) {
				continue
			}
			all = append(all, found{value: v, unit: models.UnitDollars, pos: m[0]})
		}
	}

	if len(all) == 0 {
		return 0, models.UnitNone, false
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].pos < all[j].pos })

	for _, u := range unitPriority[t] {
		for _, f := range all {
			if f.unit == u {
				return f.value, f.unit, true
			}
		}
	}
	return all[0].value, all[0].unit, true
}
