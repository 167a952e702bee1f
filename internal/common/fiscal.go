package common

import (
	"fmt"
	"time"
)

// The B+R relief regime exists since 2004; earlier fiscal years cannot carry
// qualified costs.
const MinFiscalYear = 2004

// ValidateFiscalYear checks the fiscal-year bounds. Years more than one year
// ahead of the current year are rejected unless allowFuture is set.
func ValidateFiscalYear(year int, allowFuture bool) (bool, string) {
	if year < MinFiscalYear {
		return false, fmt.Sprintf("rok podatkowy nie może być wcześniejszy niż %d", MinFiscalYear)
	}
	maxYear := time.Now().Year() + 1
	if !allowFuture && year > maxYear {
		return false, fmt.Sprintf("rok podatkowy %d wykracza w przyszłość", year)
	}
	return true, ""
}

// ValidatePercentage accepts fractional (0-1) and percent (0-100) notation.
func ValidatePercentage(v float64) (bool, string) {
	if v < 0 {
		return false, "wartość procentowa nie może być ujemna"
	}
	if v > 100 {
		return false, "wartość procentowa nie może przekraczać 100"
	}
	return true, ""
}

// NormalizePercentage returns the fractional form of a percentage: values
// above 1 are treated as percent notation and divided by 100.
func NormalizePercentage(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}
