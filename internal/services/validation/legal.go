package validation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// maxListedDates bounds the date list quoted in an INCONSISTENT_DATES message
const maxListedDates = 6

var (
	legalRefPattern = regexp.MustCompile(`(?i)art\.?\s*18d|art\.?\s*24d|art\.?\s*30ca|ip\s*box`)

	// relatedPartyPattern deliberately keeps the noun-adjective order so the
	// statutory "podmiotów niepowiązanych" phrasing stays unmatched.
	relatedPartyPattern = regexp.MustCompile(`(?i)podmiot[\p{L}]*\s+powiązan[\p{L}]*|jednostk[\p{L}]*\s+powiązan[\p{L}]*`)
)

// brCategoryPhrases are the cost-category markers a B+R document is expected
// to carry at least one of: the statutory category names plus common stems.
var brCategoryPhrases = func() []string {
	phrases := []string{
		"koszty kwalifikowane",
		"kosztów kwalifikowanych",
		"badawczo-rozwojow",
		"b+r",
	}
	for _, c := range pkgmodels.AllCostCategories {
		phrases = append(phrases, strings.ToLower(c.NamePL()))
	}
	return phrases
}()

var qualificationPhrases = []string{
	"twórcz",
	"systematyczn",
	"zasobów wiedzy",
	"nowych zastosowań",
	"innowacyj",
}

var disclosurePhrases = []string{
	"cen transferowych",
	"cenach transferowych",
	"warunki rynkowe",
	"warunkach rynkowych",
	"zasadzie ceny rynkowej",
}

// LegalValidator verifies NIP checksums, statutory references and the
// qualification language a defensible B+R document needs.
type LegalValidator struct{}

var _ interfaces.Validator = (*LegalValidator)(nil)

func NewLegalValidator() *LegalValidator {
	return &LegalValidator{}
}

func (v *LegalValidator) Name() string {
	return StageLegal
}

func (v *LegalValidator) Validate(_ context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error) {
	content := vctx.Content
	lower := strings.ToLower(content)
	var issues []pkgmodels.ValidationIssue

	issues = append(issues, checkNIPs(content)...)

	if !containsAny(lower, brCategoryPhrases) {
		issues = append(issues, warningIssue(pkgmodels.CodeMissingBRCategory,
			"brak frazy wskazującej kategorię kosztów B+R",
			"", "nazwij kategorię kosztów kwalifikowanych (art. 18d ust. 2-3 CIT)"))
	}

	if vctx.DocumentType.FormalDocument() && !legalRefPattern.MatchString(content) {
		issues = append(issues, errorIssue(pkgmodels.CodeMissingLegalReference,
			"brak odwołania do art. 18d CIT lub preferencji IP Box",
			"", "dodaj podstawę prawną (np. art. 18d ustawy o CIT)"))
	}

	if requiresJustification(vctx.DocumentType) && !containsAny(lower, qualificationPhrases) {
		issues = append(issues, warningIssue(pkgmodels.CodeMissingQualification,
			"brak uzasadnienia twórczego i systematycznego charakteru prac",
			"", "opisz twórczy i systematyczny charakter prac (art. 4a pkt 26 CIT)"))
	}

	if vctx.FiscalYear > 0 {
		if offending := datesOutsideYear(content, vctx.FiscalYear); len(offending) > 0 {
			issues = append(issues, warningIssue(pkgmodels.CodeInconsistentDates,
				fmt.Sprintf("daty spoza roku podatkowego %d (±1): %s", vctx.FiscalYear, strings.Join(offending, ", ")),
				"", "zweryfikuj daty wykraczające poza okres dokumentacji"))
		}
	}

	if needsRelatedPartyDisclosure(content) && !containsAny(lower, disclosurePhrases) {
		issues = append(issues, warningIssue(pkgmodels.CodeRelatedPartyDisclosure,
			"transakcje z podmiotami powiązanymi bez ujawnienia warunków",
			"", "wskaż rynkowy charakter warunków transakcji (dokumentacja cen transferowych)"))
	}

	vctx.AddIssues(issues...)
	return stageResult(StageLegal, issues, legalErrWeight, legalWarnWeight), nil
}

// checkNIPs validates every NIP candidate in the document. Candidates are
// deduplicated on their digits so a repeated identifier reports once.
func checkNIPs(content string) []pkgmodels.ValidationIssue {
	var issues []pkgmodels.ValidationIssue
	seen := make(map[string]bool)
	for _, loc := range nipPattern.FindAllStringIndex(content, -1) {
		candidate := content[loc[0]:loc[1]]
		if !strings.Contains(candidate, "-") && partOfNumber(content, loc) {
			continue
		}
		digits := common.NormalizeDigits(candidate)
		if seen[digits] {
			continue
		}
		seen[digits] = true
		if ok, reason := common.ValidateNIP(candidate); !ok {
			issues = append(issues, errorIssue(pkgmodels.CodeInvalidNIP,
				fmt.Sprintf("NIP %s: %s", candidate, reason),
				candidate, "popraw numer NIP"))
		}
	}
	return issues
}

// partOfNumber reports whether a bare ten-digit run is glued to a decimal
// fraction and therefore part of an amount, not an identifier.
func partOfNumber(content string, loc []int) bool {
	if rest := content[loc[1]:]; len(rest) >= 2 {
		if (rest[0] == ',' || rest[0] == '.') && rest[1] >= '0' && rest[1] <= '9' {
			return true
		}
	}
	if loc[0] >= 2 {
		prev := content[loc[0]-2 : loc[0]]
		if (prev[1] == ',' || prev[1] == '.') && prev[0] >= '0' && prev[0] <= '9' {
			return true
		}
	}
	return false
}

func requiresJustification(t models.DocumentType) bool {
	switch t {
	case models.DocTypeProjectCard, models.DocTypeAnnualSummary,
		models.DocTypeInterpretation, models.DocTypeContract:
		return true
	}
	return false
}

// datesOutsideYear returns distinct date literals whose year falls outside
// fiscalYear±1, in document order.
func datesOutsideYear(content string, fiscalYear int) []string {
	var offending []string
	seen := make(map[string]bool)
	for _, m := range datePattern.FindAllStringSubmatch(content, -1) {
		year, month := dateParts(m)
		if month < 1 || month > 12 {
			continue
		}
		if year >= fiscalYear-1 && year <= fiscalYear+1 {
			continue
		}
		if seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		offending = append(offending, m[0])
	}
	if len(offending) > maxListedDates {
		offending = offending[:maxListedDates]
	}
	return offending
}

func dateParts(m []string) (year, month int) {
	if m[3] != "" { // DD.MM.YYYY
		year, _ = strconv.Atoi(m[3])
		month, _ = strconv.Atoi(m[2])
		return year, month
	}
	year, _ = strconv.Atoi(m[4]) // YYYY-MM-DD
	month, _ = strconv.Atoi(m[5])
	return year, month
}

// needsRelatedPartyDisclosure reports whether the document mentions related
// parties in a way that calls for a transfer-pricing disclosure. Formula rows
// carrying only zero amounts (the empty "c" component of the Nexus table) do
// not count.
func needsRelatedPartyDisclosure(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if !relatedPartyPattern.MatchString(line) {
			continue
		}
		amounts := amountPattern.FindAllString(line, -1)
		if len(amounts) == 0 {
			return true
		}
		for _, a := range amounts {
			if v, err := common.ParsePolishAmount(a); err == nil && v != 0 {
				return true
			}
		}
	}
	return false
}

func containsAny(lower string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
