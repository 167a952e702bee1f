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

var placeholderPattern = regexp.MustCompile(`\{\{[^{}\n]*\}\}|\{%[^{}\n]*%\}`)

// FinalValidator is the last gate before a document is accepted: no template
// placeholders may survive expansion, and the document must mention the
// company and fiscal year it was generated for.
type FinalValidator struct{}

var _ interfaces.Validator = (*FinalValidator)(nil)

func NewFinalValidator() *FinalValidator {
	return &FinalValidator{}
}

func (v *FinalValidator) Name() string {
	return StageFinal
}

func (v *FinalValidator) Validate(_ context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error) {
	var issues []pkgmodels.ValidationIssue

	seen := make(map[string]bool)
	for _, placeholder := range placeholderPattern.FindAllString(vctx.Content, -1) {
		if seen[placeholder] {
			continue
		}
		seen[placeholder] = true
		issues = append(issues, errorIssue(pkgmodels.CodeMissingField,
			fmt.Sprintf("nierozwinięty placeholder szablonu: %s", placeholder),
			placeholder, "uzupełnij brakującą zmienną w kontekście generowania"))
	}

	if nip := common.NormalizeDigits(vctx.CompanyNIP); len(nip) == 10 && !containsNIP(vctx.Content, nip) {
		issues = append(issues, warningIssue(pkgmodels.CodeMissingField,
			fmt.Sprintf("dokument nie zawiera numeru NIP podmiotu (%s)", vctx.CompanyNIP),
			"", "dodaj NIP podmiotu w nagłówku dokumentu"))
	}

	if vctx.FiscalYear > 0 && !strings.Contains(vctx.Content, strconv.Itoa(vctx.FiscalYear)) {
		issues = append(issues, warningIssue(pkgmodels.CodeMissingField,
			fmt.Sprintf("dokument nie wymienia roku podatkowego %d", vctx.FiscalYear),
			"", "dodaj rok podatkowy w treści dokumentu"))
	}

	vctx.AddIssues(issues...)
	return stageResult(StageFinal, issues, structureErrWeight, structureWarnWeight), nil
}

// containsNIP matches the bare 10-digit form and the xxx-xxx-xx-xx form.
func containsNIP(content, digits string) bool {
	if strings.Contains(content, digits) {
		return true
	}
	formatted := fmt.Sprintf("%s-%s-%s-%s", digits[0:3], digits[3:6], digits[6:8], digits[8:10])
	return strings.Contains(content, formatted)
}
