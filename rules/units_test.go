package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leasecheck-backend/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		from   models.Unit
		to     models.Unit
		want   float64
		wantOK bool
	}{
		{"same unit", 6, models.UnitWeeks, models.UnitWeeks, 6, true},
		{"one month of rent in weeks", 1, models.UnitMonths, models.UnitWeeks, 52.0 / 12.0, true},
		{"weeks to days", 2, models.UnitWeeks, models.UnitDays, 14, true},
		{"year to months", 1, models.UnitYears, models.UnitMonths, 12, true},
		{"dollars to dollars", 3000, models.UnitDollars, models.UnitDollars, 3000, true},
		{"dollars to weeks", 3000, models.UnitDollars, models.UnitWeeks, 0, false},
		{"missing unit", 6, models.UnitNone, models.UnitWeeks, 0, false},
		{"unknown units", 6, models.Unit("parsecs"), models.Unit("parsecs"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.value, tt.from, tt.to)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvertible(t *testing.T) {
	assert.True(t, Convertible(models.UnitDays, models.UnitMonths))
	assert.True(t, Convertible(models.UnitDollars, models.UnitDollars))
	assert.False(t, Convertible(models.UnitDollars, models.UnitDays))
	assert.False(t, Convertible(models.UnitNone, models.UnitNone))
}
