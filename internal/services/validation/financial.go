package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

const (
	// suspiciousAmountPLN flags single positions above this threshold
	suspiciousAmountPLN = 10_000_000

	// statutoryPersonnelRatePct is the art. 18d ust. 7 deduction rate for
	// personnel costs; it is the one percentage legitimately above 100.
	statutoryPersonnelRatePct = 200
)

// FinancialValidator cross-checks the money in a document: amount sanity,
// percentage bounds, table totals, Nexus bounds and Nexus recomputation.
type FinancialValidator struct{}

var _ interfaces.Validator = (*FinancialValidator)(nil)

func NewFinancialValidator() *FinancialValidator {
	return &FinancialValidator{}
}

func (v *FinancialValidator) Name() string {
	return StageFinancial
}

func (v *FinancialValidator) Validate(_ context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error) {
	content := vctx.Content
	var issues []pkgmodels.ValidationIssue

	issues = append(issues, checkAmounts(content)...)
	issues = append(issues, checkPercentages(content)...)

	tables := scanTables(content)
	issues = append(issues, checkNexus(content, tables, vctx)...)
	issues = append(issues, checkTotals(content, tables)...)
	issues = append(issues, checkCurrencies(content)...)

	vctx.AddIssues(issues...)
	return stageResult(StageFinancial, issues, financialErrWeight, financialWarnWeight), nil
}

// checkAmounts flags negative and implausibly large PLN amounts. A minus
// glued to a preceding digit or letter is a range dash, not a sign.
func checkAmounts(content string) []pkgmodels.ValidationIssue {
	var issues []pkgmodels.ValidationIssue
	seen := make(map[string]bool)
	for _, loc := range amountPattern.FindAllStringIndex(content, -1) {
		literal := content[loc[0]:loc[1]]
		value, err := common.ParsePolishAmount(literal)
		if err != nil {
			continue
		}
		if value < 0 && loc[0] > 0 && isAlnum(content[loc[0]-1]) {
			value = -value
		}
		if seen[literal] {
			continue
		}
		seen[literal] = true
		switch {
		case value < 0:
			issues = append(issues, errorIssue(pkgmodels.CodeNegativeAmount,
				fmt.Sprintf("ujemna kwota: %s", literal),
				literal, "koszty kwalifikowane nie mogą być ujemne"))
		case value > suspiciousAmountPLN:
			issues = append(issues, warningIssue(pkgmodels.CodeSuspiciousAmount,
				fmt.Sprintf("nietypowo wysoka kwota: %s", literal),
				literal, "zweryfikuj kwotę z dokumentem źródłowym"))
		}
	}
	return issues
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// checkPercentages flags percentage literals above 100. The statutory 200%
// personnel deduction rate is exempt.
func checkPercentages(content string) []pkgmodels.ValidationIssue {
	var issues []pkgmodels.ValidationIssue
	seen := make(map[string]bool)
	for _, m := range percentPattern.FindAllStringSubmatch(content, -1) {
		value, ok := parseDecimal(m[1])
		if !ok || value <= 100 || value == statutoryPersonnelRatePct {
			continue
		}
		if seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		issues = append(issues, warningIssue(pkgmodels.CodeInvalidPercentage,
			fmt.Sprintf("wartość procentowa przekracza 100%%: %s", strings.TrimSpace(m[0])),
			strings.TrimSpace(m[0]), "popraw wartość procentową"))
	}
	return issues
}

// checkNexus verifies every stated Nexus indicator against its [0, 1] bounds
// and, when the a..d components are discoverable, against the recomputed
// value. Components stated in the document win over context components.
func checkNexus(content string, tables []mdTable, vctx *models.ValidationContext) []pkgmodels.ValidationIssue {
	var issues []pkgmodels.ValidationIssue

	type literal struct {
		raw   string
		value float64
	}
	var literals []literal
	seen := make(map[string]bool)
	for _, m := range nexusLiteralPattern.FindAllStringSubmatch(content, -1) {
		value, ok := parseDecimal(m[1])
		if !ok || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		literals = append(literals, literal{raw: m[1], value: value})
	}

	components, tableStated, componentsOK := discoverNexus(tables)
	if tableStated != nil {
		raw := fmt.Sprintf("%.4f", *tableStated)
		if !seen[raw] {
			literals = append(literals, literal{raw: raw, value: *tableStated})
		}
	}

	for _, lit := range literals {
		switch {
		case lit.value < 0:
			issues = append(issues, errorIssue(pkgmodels.CodeNexusNegative,
				fmt.Sprintf("ujemny wskaźnik Nexus: %s", lit.raw),
				lit.raw, "wskaźnik Nexus mieści się w przedziale [0, 1]"))
		case lit.value > 1:
			issues = append(issues, errorIssue(pkgmodels.CodeNexusExceedsOne,
				fmt.Sprintf("wskaźnik Nexus przekracza 1: %s", lit.raw),
				lit.raw, "wskaźnik Nexus mieści się w przedziale [0, 1]"))
		}
	}

	if !componentsOK && vctx.Nexus != nil {
		components = *vctx.Nexus
		componentsOK = true
	}
	if componentsOK && len(literals) > 0 {
		expected := components.Calculate()
		stated := literals[0]
		if math.Abs(stated.value-expected) > nexusTolerance {
			issues = append(issues, errorIssue(pkgmodels.CodeNexusMismatch,
				fmt.Sprintf("wskaźnik Nexus %s niezgodny ze składnikami (wyliczono %.4f)", stated.raw, expected),
				stated.raw, "przelicz wskaźnik ze składników a-d"))
		}
	}

	return issues
}

// discoverNexus pulls the a..d components out of the document's tables. Two
// shapes are recognised: component per row ("| a | opis | kwota |") and
// component per column ("| a | b | c | d | Nexus |"); the column shape also
// yields the stated indicator.
func discoverNexus(tables []mdTable) (pkgmodels.NexusComponents, *float64, bool) {
	for _, t := range tables {
		if !t.sepOK || len(t.rows) < 2 {
			continue
		}

		found := make(map[string]float64)
		for _, row := range t.rows[1:] {
			if len(row) < 2 {
				continue
			}
			key := normCell(row[0])
			if key != "a" && key != "b" && key != "c" && key != "d" {
				continue
			}
			for i := len(row) - 1; i >= 1; i-- {
				if value, ok := cellAmount(row[i]); ok {
					found[key] = value
					break
				}
			}
		}
		if len(found) == 4 {
			return pkgmodels.NexusComponents{A: found["a"], B: found["b"], C: found["c"], D: found["d"]}, nil, true
		}

		header := t.rows[0]
		if len(header) >= 5 && normCell(header[0]) == "a" && normCell(header[1]) == "b" &&
			normCell(header[2]) == "c" && normCell(header[3]) == "d" {
			row := t.rows[1]
			if len(row) < 4 {
				continue
			}
			values := make([]float64, 0, 4)
			for i := 0; i < 4; i++ {
				if value, ok := cellAmount(row[i]); ok {
					values = append(values, value)
				}
			}
			if len(values) < 4 {
				continue
			}
			components := pkgmodels.NexusComponents{A: values[0], B: values[1], C: values[2], D: values[3]}
			if len(row) >= 5 && normCell(header[4]) == "nexus" {
				if stated, ok := parseDecimal(normCell(row[4])); ok {
					return components, &stated, true
				}
			}
			return components, nil, true
		}
	}
	return pkgmodels.NexusComponents{}, nil, false
}

// checkTotals verifies stated totals against the sum of preceding line
// items: totals rows inside tables (first cell "Razem"/"Suma"/...) and bold
// summary lines directly under a table. A summary line passes when it
// matches any money column of the table within the tolerance.
func checkTotals(content string, tables []mdTable) []pkgmodels.ValidationIssue {
	var issues []pkgmodels.ValidationIssue
	lines := strings.Split(content, "\n")

	for ti, t := range tables {
		if !t.sepOK || len(t.rows) < 2 {
			continue
		}
		body := t.rows[1:]
		var totalsRow []string
		if len(body) >= 2 && totalsRowPattern.MatchString(normCell(body[len(body)-1][0])) {
			totalsRow = body[len(body)-1]
			body = body[:len(body)-1]
		}

		sums := columnSums(body)

		if totalsRow != nil {
			for col, cell := range totalsRow {
				stated, ok := cellAmount(cell)
				if !ok {
					continue
				}
				sum, ok := sums[col]
				if !ok {
					continue
				}
				if math.Abs(sum-stated) > amountTolerance {
					issues = append(issues, errorIssue(pkgmodels.CodeTotalMismatch,
						fmt.Sprintf("suma w tabeli (linia %d) nie zgadza się z pozycjami: %s wobec wyliczonych %s zł",
							t.line, strings.TrimSpace(cell), common.FormatAmount(sum)),
						fmt.Sprintf("linia %d", t.line),
						"przelicz pozycje i popraw wiersz sumy"))
				}
			}
		}

		if len(sums) == 0 {
			continue
		}
		limit := len(lines)
		if ti+1 < len(tables) {
			limit = tables[ti+1].line - 1
		}
		for li := t.line + t.span - 1; li < limit; li++ {
			line := strings.TrimSpace(lines[li])
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "#") {
				break
			}
			if !sumaLinePattern.MatchString(line) {
				continue
			}
			literal := amountPattern.FindString(line)
			if literal == "" {
				continue
			}
			stated, err := common.ParsePolishAmount(literal)
			if err != nil {
				continue
			}
			matched := false
			for _, sum := range sums {
				if math.Abs(sum-stated) <= amountTolerance {
					matched = true
					break
				}
			}
			if !matched {
				issues = append(issues, errorIssue(pkgmodels.CodeTotalMismatch,
					fmt.Sprintf("podsumowanie '%s' nie zgadza się z pozycjami tabeli z linii %d", literal, t.line),
					fmt.Sprintf("linia %d", li+1),
					"przelicz pozycje tabeli i popraw podsumowanie"))
			}
		}
	}
	return issues
}

// columnSums totals the money columns of table body rows.
func columnSums(rows [][]string) map[int]float64 {
	sums := make(map[int]float64)
	for _, row := range rows {
		for col, cell := range row {
			if value, ok := cellAmount(cell); ok {
				sums[col] += value
			}
		}
	}
	return sums
}

// checkCurrencies warns when a foreign currency appears in a document with
// no PLN amounts at all.
func checkCurrencies(content string) []pkgmodels.ValidationIssue {
	foreign := foreignCurrencyPattern.FindString(content)
	if foreign == "" || plnPattern.MatchString(content) {
		return nil
	}
	return []pkgmodels.ValidationIssue{warningIssue(pkgmodels.CodeMixedCurrencies,
		fmt.Sprintf("waluta obca (%s) bez żadnej kwoty w PLN", foreign),
		foreign, "przelicz kwoty na PLN po kursie średnim NBP")}
}
