package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/scribo/internal/common"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

const (
	minDocumentChars = 100
	amountTolerance  = 0.01
	nexusTolerance   = 0.01

	structureErrWeight  = 0.2
	structureWarnWeight = 0.05
	legalErrWeight      = 0.25
	legalWarnWeight     = 0.1
	financialErrWeight  = 0.3
	financialWarnWeight = 0.1
)

// Lexical patterns over generated Polish documents. Amounts follow the
// pl_PL convention produced by common.FormatAmount: space or nbsp as
// thousands separator, comma as decimal separator, zł/PLN suffix.
var (
	nipPattern    = regexp.MustCompile(`\b\d{3}-\d{3}-\d{2}-\d{2}\b|\b\d{10}\b`)
	amountPattern = regexp.MustCompile(`-?(?:\d{1,3}(?:[ \x{00A0}]\d{3})+|\d+)(?:,\d{1,2})?\s*(?:zł|PLN)`)
	datePattern   = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b|\b(\d{4})-(\d{2})-(\d{2})\b`)
	yearPattern   = regexp.MustCompile(`\b20\d{2}\b`)
	titlePattern  = regexp.MustCompile(`(?m)^#\s+\S`)

	headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

	percentPattern = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*%`)

	// nexusLiteralPattern captures a decimal stated next to the word Nexus,
	// e.g. "Wartość wskaźnika Nexus: 0.9782". The skip class refuses digits
	// and newlines so titles like "Nexus: 2025" stay unmatched.
	nexusLiteralPattern = regexp.MustCompile(`(?i)nexus[^0-9\n-]*(-?\d+[.,]\d+)`)

	tableSepPattern  = regexp.MustCompile(`^\s*\|?[\s:|-]+\|?\s*$`)
	totalsRowPattern = regexp.MustCompile(`^(?:suma|razem|łączn|ogółem|total)`)
	sumaLinePattern  = regexp.MustCompile(`(?i)^\*{0,2}\s*(?:suma|razem|łączn|ogółem)`)

	foreignCurrencyPattern = regexp.MustCompile(`\b(EUR|USD|GBP|CHF)\b|[€$£]`)
	plnPattern             = regexp.MustCompile(`zł|\bPLN\b`)
)

func errorIssue(code, message, location, suggestion string) pkgmodels.ValidationIssue {
	return pkgmodels.ValidationIssue{
		Severity:   pkgmodels.SeverityError,
		Code:       code,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	}
}

func warningIssue(code, message, location, suggestion string) pkgmodels.ValidationIssue {
	return pkgmodels.ValidationIssue{
		Severity:   pkgmodels.SeverityWarning,
		Code:       code,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	}
}

// stageResult scores a stage: start at 1.0, deduct errWeight per error and
// warnWeight per warning, floor at 0. Valid means no error-severity issue.
func stageResult(stage string, issues []pkgmodels.ValidationIssue, errWeight, warnWeight float64) *pkgmodels.ValidationResult {
	score := 1.0
	errors := 0
	for _, issue := range issues {
		switch issue.Severity {
		case pkgmodels.SeverityError:
			score -= errWeight
			errors++
		case pkgmodels.SeverityWarning:
			score -= warnWeight
		}
	}
	if score < 0 {
		score = 0
	}
	return &pkgmodels.ValidationResult{
		Valid:       errors == 0,
		Issues:      issues,
		Score:       score,
		Stage:       stage,
		ValidatedAt: time.Now(),
	}
}

// mdTable is one pipe table lifted out of the document.
type mdTable struct {
	line  int        // 1-based line number of the header row
	span  int        // number of source lines the table occupies
	rows  [][]string // trimmed cells per row, separator row excluded
	sepOK bool       // a well-formed separator of matching width followed the header
}

// scanTables collects pipe tables, skipping fenced code blocks.
func scanTables(content string) []mdTable {
	lines := strings.Split(content, "\n")
	var tables []mdTable
	inFence := false
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			i++
			continue
		}
		if inFence || !strings.HasPrefix(trimmed, "|") {
			i++
			continue
		}

		start := i
		var block []string
		for i < len(lines) {
			row := strings.TrimSpace(lines[i])
			if !strings.HasPrefix(row, "|") {
				break
			}
			block = append(block, row)
			i++
		}

		table := mdTable{line: start + 1, span: len(block)}
		for j, row := range block {
			if j == 1 && tableSepPattern.MatchString(row) && strings.Contains(row, "-") {
				table.sepOK = len(splitTableRow(row)) == len(table.rows[0])
				continue
			}
			table.rows = append(table.rows, splitTableRow(row))
		}
		tables = append(tables, table)
	}
	return tables
}

func splitTableRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	cells := strings.Split(row, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// normCell lowers a cell and drops bold markers so "**Razem**" and "Razem"
// compare equal.
func normCell(cell string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(cell), "*"))
}

// cellAmount extracts the monetary value of a table cell. Only zł/PLN
// suffixed amounts count; ordinals and counts are left alone.
func cellAmount(cell string) (float64, bool) {
	m := amountPattern.FindString(cell)
	if m == "" {
		return 0, false
	}
	v, err := common.ParsePolishAmount(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimal parses a plain decimal accepting both comma and dot
// separators ("0,9782" and "0.9782").
func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// collectHeadings returns the text of every Markdown heading.
func collectHeadings(content string) []string {
	matches := headingPattern.FindAllStringSubmatch(content, -1)
	headings := make([]string, 0, len(matches))
	for _, m := range matches {
		headings = append(headings, strings.TrimSpace(m[2]))
	}
	return headings
}
