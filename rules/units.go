package rules

import "leasecheck-backend/models"

// Durations are normalized through days. Rent multiples use the Australian
// 52/12 convention, so one month of rent is 52/12 weeks.
var daysPerUnit = map[models.Unit]float64{
	models.UnitDays:   1,
	models.UnitWeeks:  7,
	models.UnitMonths: 7 * 52.0 / 12.0,
	models.UnitYears:  7 * 52,
}

func knownUnit(u models.Unit) bool {
	_, ok := daysPerUnit[u]
	return ok || u == models.UnitDollars
}

// Convertible reports whether a value in from can be expressed in to
func Convertible(from, to models.Unit) bool {
	if from == to && knownUnit(from) {
		return true
	}
	_, okFrom := daysPerUnit[from]
	_, okTo := daysPerUnit[to]
	return okFrom && okTo
}

// Normalize converts value from one unit to another. The boolean is false
// when the units are not comparable (e.g. dollars to weeks).
func Normalize(value float64, from, to models.Unit) (float64, bool) {
	if from == to && knownUnit(from) {
		return value, true
	}
	fromDays, okFrom := daysPerUnit[from]
	toDays, okTo := daysPerUnit[to]
	if !okFrom || !okTo {
		return 0, false
	}
	return value * fromDays / toDays, true
}
