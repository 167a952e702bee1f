// -----------------------------------------------------------------------
// Polish Locale Helpers - money and date formatting (pl_PL)
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// monthNamesPL holds nominative Polish month names, indexed by time.Month.
var monthNamesPL = map[time.Month]string{
	time.January:   "styczeń",
	time.February:  "luty",
	time.March:     "marzec",
	time.April:     "kwiecień",
	time.May:       "maj",
	time.June:      "czerwiec",
	time.July:      "lipiec",
	time.August:    "sierpień",
	time.September: "wrzesień",
	time.October:   "październik",
	time.November:  "listopad",
	time.December:  "grudzień",
}

// MonthNamePL returns the Polish name of a month ("styczeń".."grudzień").
func MonthNamePL(m time.Month) string {
	return monthNamesPL[m]
}

// FormatAmount renders a number in Polish convention: space as thousands
// separator, comma as decimal separator, two decimal places.
// 1234567.891 -> "1 234 567,89"
func FormatAmount(v float64) string {
	neg := v < 0 || (v == 0 && math.Signbit(v))
	s := strconv.FormatFloat(math.Abs(RoundPLN(v)), 'f', 2, 64)

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte(' ')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(',')
	b.WriteString(fracPart)

	return b.String()
}

// FormatPLN renders an amount with the "zł" suffix: "120 000,00 zł".
func FormatPLN(v float64) string {
	return FormatAmount(v) + " zł"
}

// RoundPLN rounds to full grosze (two decimal places), half away from zero
// on the scaled value. Whether a decimal midpoint like 2.675 lands above or
// below depends on its binary representation after scaling.
func RoundPLN(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParsePolishAmount parses amounts written in Polish convention, tolerating
// regular and non-breaking spaces as thousands separators and an optional
// "zł"/"PLN" suffix. "120 000,00 zł" -> 120000.00
func ParsePolishAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "zł")
	cleaned = strings.TrimSuffix(cleaned, "PLN")
	cleaned = strings.TrimSpace(cleaned)

	replacer := strings.NewReplacer(" ", "", " ", "", " ", "")
	cleaned = replacer.Replace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// FormatDateISO renders a date as YYYY-MM-DD.
func FormatDateISO(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDatePL renders a date in Polish convention DD.MM.YYYY.
func FormatDatePL(t time.Time) string {
	return t.Format("02.01.2006")
}
