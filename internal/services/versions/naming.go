package versions

import (
	"strings"
	"time"
	"unicode"
)

const (
	artifactDateLayout = "20060102"
	maxSegmentLen      = 40
	shortIDLen         = 8
)

// DocumentFilename builds the artifact name for a per-expense document:
// BR_DOC_<yyyymmdd>_<invoice segment>_<short id>.md. The date is the
// invoice date, the id the expense record id.
func DocumentFilename(date time.Time, invoiceNumber string, id string) string {
	return "BR_DOC_" + date.Format(artifactDateLayout) + "_" + SanitizeSegment(invoiceNumber) + "_" + ShortID(id) + ".md"
}

// SummaryFilename builds the artifact name for a project summary:
// BR_SUMMARY_<yyyymmdd>.md.
func SummaryFilename(date time.Time) string {
	return "BR_SUMMARY_" + date.Format(artifactDateLayout) + ".md"
}

// SanitizeSegment makes an invoice number filesystem-safe: every run of
// characters that are not letters or digits becomes one underscore, edges
// are trimmed and the segment is capped at 40 characters. Empty input
// yields "NA" so the artifact name keeps its shape.
func SanitizeSegment(raw string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	segment := strings.TrimRight(b.String(), "_")
	if segment == "" {
		return "NA"
	}

	runes := []rune(segment)
	if len(runes) > maxSegmentLen {
		segment = strings.TrimRight(string(runes[:maxSegmentLen]), "_")
	}
	return segment
}

// ShortID keeps the first eight lowercase alphanumeric characters of an
// identifier, enough to tell UUID-named expense documents apart. Input
// with no usable characters yields "doc".
func ShortID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= shortIDLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "doc"
	}
	return b.String()
}
