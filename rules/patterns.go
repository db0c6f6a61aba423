package rules

import (
	"regexp"
	"strings"
)

// Prohibited-term categories. A match is a categorically void term, not a
// matter of degree, so it always carries illegal severity.
const (
	PatternPetBan             = "pet_ban"
	PatternMaintenanceShift   = "maintenance_shift"
	PatternSublettingBan      = "subletting_ban"
	PatternUnmeteredUtilities = "unmetered_utilities"
	PatternRightsWaiver       = "rights_waiver"
)

// genericProhibitedBasis is cited when a jurisdiction has no entry for a category
const genericProhibitedBasis = "Prohibited residential tenancy term (no jurisdiction-specific citation configured)"

// ProhibitedPattern recognises one category of void clause. Unless, when set,
// excludes sentences that would otherwise match, e.g. restrictions that are
// conditional on the landlord's consent rather than absolute.
//
// Match runs on each segment of a sentence, a segment ending where a
// conjunction hands the sentence to another party. With Sentence set it runs
// on the whole sentence instead. TenantBound patterns only count when the
// tenant is the party restricted or charged: a segment led by the landlord
// describes the landlord's own obligation unless it imposes one on the tenant.
type ProhibitedPattern struct {
	Category    string
	Label       string
	Match       *regexp.Regexp
	Unless      *regexp.Regexp
	TenantBound bool
	Sentence    bool
}

// Matches reports whether text contains the prohibited term
func (p ProhibitedPattern) Matches(text string) bool {
	for _, sentence := range splitSentences(text) {
		if p.Unless != nil && p.Unless.MatchString(sentence) {
			continue
		}
		parts := []string{sentence}
		if !p.Sentence {
			parts = splitSegments(sentence)
		}
		for _, part := range parts {
			if p.matchesPart(part) {
				return true
			}
		}
	}
	return false
}

func (p ProhibitedPattern) matchesPart(part string) bool {
	if !p.Match.MatchString(part) || negated.MatchString(part) {
		return false
	}
	return !p.TenantBound || !landlordLed(part)
}

var (
	sentenceBreak = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
	segmentBreak  = regexp.MustCompile(`(?i);|(?:,|\b(?:and|but|while|whereas|however|although))\s+((?:the\s+)?(?:landlord|lessor|owner|agent|property manager|tenant|lessee|renter)s?\b)`)

	partyWord = regexp.MustCompile(`(?i)\b(landlord|lessor|owner|agent|property manager|tenant|lessee|renter)s?\b`)

	// landlord-led text that still binds the tenant
	imposedOnTenant = regexp.MustCompile(`(?i)\b(requires?|obliges?|compels?|may require|will require|can require)\s+(?:the\s+|any\s+)?(?:tenant|lessee|renter)s?\s+to\b`)

	// statements that something is not required of the tenant, or that a
	// refusal may not be unreasonable
	negated = regexp.MustCompile(`(?i)\bnothing\b[^.]*\b(requires?|obliges?|compels?|prevents?|limits?|restricts?|affects?|excludes?|removes?)\b|` +
		`\b(is|are|be|being)\s+not\s+(required|obliged|obligated|compelled)\b|` +
		`\bnot\s+be\s+(required|obliged|obligated|compelled)\b|` +
		`\b(does|do|will|shall|must|may|can)\s*not\s+(require|oblige|compel)\b|` +
		`\bunreasonably\s+(refuse|refused|withhold|withheld)\b|` +
		`\b(may|must|will|shall|can|does|do)\s*not\s+(contract|be contracted)\s+out\b`)
)

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitSegments cuts a sentence at semicolons and at conjunctions that
// introduce a party, keeping the party with the segment it leads
func splitSegments(sentence string) []string {
	var out []string
	start := 0
	for _, m := range segmentBreak.FindAllStringSubmatchIndex(sentence, -1) {
		next := m[1]
		if m[2] >= 0 {
			next = m[2]
		}
		out = append(out, sentence[start:m[0]])
		start = next
	}
	return append(out, sentence[start:])
}

func landlordLed(segment string) bool {
	m := partyWord.FindStringSubmatch(segment)
	if m == nil {
		return false
	}
	switch strings.ToLower(m[1]) {
	case "tenant", "lessee", "renter":
		return false
	}
	return !imposedOnTenant.MatchString(segment)
}

var consentCondition = regexp.MustCompile(`(?i)\b(without|unless|except with|except where|subject to)\b[^.]*\b(consent|approval|permission|agreement)\b|` +
	`\bconsent\b[^.]*\bnot\b[^.]*\bunreasonably\b|\bunreasonably\s+(refuse|refused|withhold|withheld)\b`)

var prohibitedPatterns = []ProhibitedPattern{
	{
		Category: PatternPetBan,
		Label:    "absolute pet ban",
		Match: regexp.MustCompile(`(?i)\bno (pets|animals)\b|` +
			`\bpets? (are|is|will be) (strictly )?(not (permitted|allowed)|prohibited|forbidden)\b|` +
			`\b(must|may|shall) not (keep|have) (any )?(pets?|animals?)\b`),
		Unless:      consentCondition,
		TenantBound: true,
	},
	{
		Category: PatternMaintenanceShift,
		Label:    "maintenance cost shifted to tenant",
		Match: regexp.MustCompile(`(?i)\b(tenant|lessee|renter)s?\b[^.]*\b(responsible|liable|pay|bear|cover)\b[^.]*\b(all|any|every)\b[^.]*\b(repairs?|maintenance)\b|` +
			`\ball (structural )?repairs\b[^.]*\b(tenant|lessee|renter)\b|` +
			`\bstructural repairs?\b[^.]*\b(tenant|lessee|renter)\b`),
		Unless:      regexp.MustCompile(`(?i)\b(caused by|resulting from|arising from) (the )?(tenant|lessee|renter|their)\b|\bfair wear and tear\b`),
		TenantBound: true,
	},
	{
		Category: PatternSublettingBan,
		Label:    "absolute subletting prohibition",
		Match: regexp.MustCompile(`(?i)\b(may|must|shall|will|can) ?not\b[^.]*\bsub-?let|` +
			`\bsub-?let(ting)?\b[^.]*\b(not (be )?(permitted|allowed)|prohibited|forbidden)\b|` +
			`\bno sub-?letting\b`),
		Unless:      consentCondition,
		TenantBound: true,
	},
	{
		Category: PatternUnmeteredUtilities,
		Label:    "charge for unmetered utilities",
		Match: regexp.MustCompile(`(?i)\b(not (separately|individually) metered|unmetered)\b[^.]*\b(charge|pay|fee|cost|contribut)|` +
			`\b(charge|pay|fee|cost)\w*\b[^.]*\b(not (separately|individually) metered|unmetered)\b|` +
			`\bflat (fee|rate|charge)\b[^.]*\b(water|electricity|gas|utilit)|` +
			`\b(water|electricity|gas|utilit)\w*\b[^.]*\bflat (fee|rate|charge)\b`),
		Unless:   regexp.MustCompile(`(?i)\b(landlord|lessor|owner)s?\b[^.]*\b(pays?|will pay|bears?|covers?|is responsible|absorbs?)\b`),
		Sentence: true,
	},
	{
		Category: PatternRightsWaiver,
		Label:    "waiver of statutory rights",
		Match: regexp.MustCompile(`(?i)\bwaive[sd]?\b[^.]*\b(rights?|entitlements?|protections?|claims?)\b|` +
			`\b(tenant|lessee|renter) (agrees|acknowledges|undertakes) not to (apply|bring|make|seek|lodge)\b[^.]*\b(tribunal|ncat|vcat|qcat|court)\b|` +
			`\bcontract(s|ing)? out of\b`),
		TenantBound: true,
	},
}

// ProhibitedPatterns returns the fixed set of prohibited-term recognisers
func ProhibitedPatterns() []ProhibitedPattern {
	out := make([]ProhibitedPattern, len(prohibitedPatterns))
	copy(out, prohibitedPatterns)
	return out
}

// KnownPatternCategory reports whether category names a prohibited-term pattern
func KnownPatternCategory(category string) bool {
	for _, p := range prohibitedPatterns {
		if p.Category == category {
			return true
		}
	}
	return false
}
