package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// sectionRule names one required section and the pattern its heading must match.
type sectionRule struct {
	namePL  string
	pattern *regexp.Regexp
}

// typeRules lists the structural requirements of one document type. Types
// absent from the map get only the generic checks.
type typeRules struct {
	sections   []sectionRule
	needNIP    bool
	needYear   bool
	needAmount bool
	needDate   bool
}

var structureRules = map[models.DocumentType]typeRules{
	models.DocTypeProjectCard: {
		sections: []sectionRule{
			{namePL: "Identyfikacja", pattern: regexp.MustCompile(`(?i)identyfikacja`)},
			{namePL: "Opis projektu", pattern: regexp.MustCompile(`(?i)opis\s+projektu`)},
			{namePL: "Koszty", pattern: regexp.MustCompile(`(?i)koszty`)},
			{namePL: "Podstawa prawna", pattern: regexp.MustCompile(`(?i)podstawa\s+prawna`)},
		},
		needNIP: true, needYear: true, needAmount: true, needDate: true,
	},
	models.DocTypeTimesheet: {
		sections: []sectionRule{
			{namePL: "Wpisy dzienne", pattern: regexp.MustCompile(`(?i)wpisy\s+dzienne`)},
			{namePL: "Podsumowanie miesiąca", pattern: regexp.MustCompile(`(?i)podsumowanie`)},
		},
		needNIP: true, needYear: true, needDate: true,
	},
	models.DocTypeExpense: {
		sections: []sectionRule{
			{namePL: "Pozycje kosztowe", pattern: regexp.MustCompile(`(?i)pozycje\s+kosztowe`)},
			{namePL: "Podsumowanie według kategorii", pattern: regexp.MustCompile(`(?i)podsumowanie\s+według\s+kategorii`)},
		},
		needNIP: true, needYear: true, needAmount: true, needDate: true,
	},
	models.DocTypeExpenseSingle: {
		sections: []sectionRule{
			{namePL: "Dane faktury", pattern: regexp.MustCompile(`(?i)faktur`)},
		},
		needNIP: true, needYear: true, needAmount: true, needDate: true,
	},
	models.DocTypeNexus: {
		sections: []sectionRule{
			{namePL: "Składniki wzoru", pattern: regexp.MustCompile(`(?i)składniki\s+wzoru`)},
			{namePL: "Wyliczenie", pattern: regexp.MustCompile(`(?i)wyliczenie`)},
		},
		needNIP: true, needYear: true, needAmount: true,
	},
	models.DocTypeAnnualSummary: {
		sections: []sectionRule{
			{namePL: "Przedmiot i cel prac", pattern: regexp.MustCompile(`(?i)przedmiot\s+i\s+cel`)},
			{namePL: "Koszty kwalifikowane", pattern: regexp.MustCompile(`(?i)koszty\s+kwalifikowane`)},
			{namePL: "Oświadczenie", pattern: regexp.MustCompile(`(?i)oświadczenie`)},
		},
		needNIP: true, needYear: true, needAmount: true, needDate: true,
	},
	models.DocTypeIPBoxProcedure: {
		sections: []sectionRule{
			{namePL: "Cel procedury", pattern: regexp.MustCompile(`(?i)cel\s+procedury`)},
			{namePL: "Kwalifikowane prawo własności intelektualnej", pattern: regexp.MustCompile(`(?i)kwalifikowane\s+prawo`)},
			{namePL: "Wyliczenie wskaźnika Nexus", pattern: regexp.MustCompile(`(?i)nexus`)},
		},
		needNIP: true, needYear: true,
	},
	models.DocTypeInterpretation: {
		sections: []sectionRule{
			{namePL: "Opis stanu faktycznego", pattern: regexp.MustCompile(`(?i)stan\w*\s+faktyczn`)},
			{namePL: "Pytania", pattern: regexp.MustCompile(`(?i)pytani`)},
			{namePL: "Stanowisko Wnioskodawcy", pattern: regexp.MustCompile(`(?i)stanowisko`)},
		},
		needNIP: true, needYear: true,
	},
	models.DocTypeContract: {
		sections: []sectionRule{
			{namePL: "Przedmiot umowy", pattern: regexp.MustCompile(`(?i)przedmiot\s+umowy`)},
			{namePL: "Wynagrodzenie", pattern: regexp.MustCompile(`(?i)wynagrodzenie`)},
		},
		needNIP: true, needYear: true, needAmount: true, needDate: true,
	},
}

// StructureValidator checks headings, required inline fields, table shape
// and empty sections against the rules of the document type.
type StructureValidator struct{}

var _ interfaces.Validator = (*StructureValidator)(nil)

func NewStructureValidator() *StructureValidator {
	return &StructureValidator{}
}

func (v *StructureValidator) Name() string {
	return StageStructure
}

func (v *StructureValidator) Validate(_ context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error) {
	content := vctx.Content
	var issues []pkgmodels.ValidationIssue

	// A document below the minimum length cannot satisfy the section rules;
	// report the short length and the missing title only. Frontmatter is
	// metadata and never counts toward the length.
	_, body := common.SplitFrontmatter(content)
	if utf8.RuneCountInString(strings.TrimSpace(body)) < minDocumentChars {
		issues = append(issues, errorIssue(pkgmodels.CodeDocTooShort,
			fmt.Sprintf("dokument ma mniej niż %d znaków", minDocumentChars),
			"", "uzupełnij treść dokumentu"))
		if !titlePattern.MatchString(content) {
			issues = append(issues, missingTitleIssue())
		}
		vctx.AddIssues(issues...)
		return stageResult(StageStructure, issues, structureErrWeight, structureWarnWeight), nil
	}

	if !titlePattern.MatchString(content) {
		issues = append(issues, missingTitleIssue())
	}

	rules := structureRules[vctx.DocumentType]
	headings := collectHeadings(content)
	for _, rule := range rules.sections {
		if !headingMatches(headings, rule.pattern) {
			issues = append(issues, errorIssue(pkgmodels.CodeMissingSection,
				fmt.Sprintf("brak wymaganej sekcji '%s'", rule.namePL),
				"", fmt.Sprintf("dodaj sekcję '## %s'", rule.namePL)))
		}
	}

	if rules.needNIP && !nipPattern.MatchString(content) {
		issues = append(issues, missingFieldIssue("numeru NIP", "dodaj NIP podmiotu (format xxx-xxx-xx-xx)"))
	}
	if rules.needYear && !yearPattern.MatchString(content) {
		issues = append(issues, missingFieldIssue("roku podatkowego", "wskaż rok podatkowy, którego dotyczy dokument"))
	}
	if rules.needAmount && !amountPattern.MatchString(content) {
		issues = append(issues, missingFieldIssue("kwot w PLN", "podaj kwoty w formacie polskim, np. 12 345,67 zł"))
	}
	if rules.needDate && !datePattern.MatchString(content) {
		issues = append(issues, missingFieldIssue("dat", "podaj daty w formacie DD.MM.RRRR"))
	}

	for _, table := range scanTables(content) {
		if problem := tableFormatProblem(table); problem != "" {
			issues = append(issues, warningIssue(pkgmodels.CodeInvalidTableFormat,
				fmt.Sprintf("nieprawidłowa tabela w linii %d: %s", table.line, problem),
				fmt.Sprintf("linia %d", table.line),
				"wyrównaj liczbę kolumn i dodaj wiersz separatora pod nagłówkiem"))
		}
	}

	if empty := emptySections(content); len(empty) > 0 {
		issues = append(issues, warningIssue(pkgmodels.CodeEmptySections,
			fmt.Sprintf("puste sekcje: %s", strings.Join(empty, ", ")),
			"", "uzupełnij treść wymienionych sekcji lub usuń ich nagłówki"))
	}

	vctx.AddIssues(issues...)
	return stageResult(StageStructure, issues, structureErrWeight, structureWarnWeight), nil
}

func missingTitleIssue() pkgmodels.ValidationIssue {
	return errorIssue(pkgmodels.CodeMissingTitle,
		"brak tytułu dokumentu", "", "rozpocznij dokument od nagłówka '# ...'")
}

func missingFieldIssue(what, suggestion string) pkgmodels.ValidationIssue {
	return warningIssue(pkgmodels.CodeMissingField, "brak "+what+" w dokumencie", "", suggestion)
}

func headingMatches(headings []string, pattern *regexp.Regexp) bool {
	for _, h := range headings {
		if pattern.MatchString(h) {
			return true
		}
	}
	return false
}

// tableFormatProblem returns a Polish description of the defect, or "" for a
// well-formed table.
func tableFormatProblem(t mdTable) string {
	if !t.sepOK {
		return "brak wiersza separatora lub niezgodna szerokość"
	}
	width := len(t.rows[0])
	for _, row := range t.rows[1:] {
		if len(row) != width {
			return fmt.Sprintf("niezgodna liczba kolumn (%d wobec %d w nagłówku)", len(row), width)
		}
	}
	return ""
}

// emptySections lists headings with no content before the next heading.
func emptySections(content string) []string {
	lines := strings.Split(content, "\n")
	var empty []string
	name := ""
	hasContent := true
	flush := func() {
		if name != "" && !hasContent {
			empty = append(empty, name)
		}
	}
	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			name = strings.TrimSpace(m[2])
			hasContent = false
			continue
		}
		if strings.TrimSpace(line) != "" {
			hasContent = true
		}
	}
	flush()
	return empty
}
