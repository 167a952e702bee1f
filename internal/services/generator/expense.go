package generator

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// ocrExcerptLimit bounds the OCR excerpt embedded in expense documents.
const ocrExcerptLimit = 500

// ensureExpenseSection appends the invoice detail table and the OCR excerpt
// to single-expense documents when the draft does not already carry them.
// Model drafts sometimes include the table; deterministic expansions of
// non-expense templates never do.
func (s *Service) ensureExpenseSection(markdown string, expense *pkgmodels.ExpenseRecord, ocr *pkgmodels.OCRResult) string {
	if !strings.Contains(markdown, expense.InvoiceNumber) {
		markdown = strings.TrimRight(markdown, "\n") + "\n\n" + expenseTable(expense)
	}
	if ocr != nil && ocr.Text != "" && !strings.Contains(markdown, "Dokument źródłowy") {
		markdown = strings.TrimRight(markdown, "\n") + "\n\n" + ocrSection(ocr)
	}
	return markdown
}

func expenseTable(e *pkgmodels.ExpenseRecord) string {
	currency := e.Currency
	if currency == "" {
		currency = "PLN"
	}

	var sb strings.Builder
	sb.WriteString("## Dane faktury\n\n")
	sb.WriteString("| Pole | Wartość |\n")
	sb.WriteString("|------|--------|\n")
	sb.WriteString(fmt.Sprintf("| Numer faktury | %s |\n", e.InvoiceNumber))
	sb.WriteString(fmt.Sprintf("| Data wystawienia | %s |\n", common.FormatDatePL(e.InvoiceDate)))
	sb.WriteString(fmt.Sprintf("| Sprzedawca | %s |\n", e.VendorName))
	if e.VendorNIP != "" {
		sb.WriteString(fmt.Sprintf("| NIP sprzedawcy | %s |\n", e.VendorNIP))
	}
	sb.WriteString(fmt.Sprintf("| Kwota netto | %s %s |\n", common.FormatAmount(e.NetAmount), currency))
	sb.WriteString(fmt.Sprintf("| Kwota brutto | %s %s |\n", common.FormatAmount(e.GrossAmount), currency))
	sb.WriteString(fmt.Sprintf("| Kategoria B+R | %s |\n", e.Category.NamePL()))
	sb.WriteString(fmt.Sprintf("| Koszt kwalifikowany | %s |\n", yesNoPL(e.Qualified)))
	if e.Qualified {
		sb.WriteString(fmt.Sprintf("| Stawka odliczenia | %.0f%% |\n", e.EffectiveDeductionRate()*100))
		sb.WriteString(fmt.Sprintf("| Kwota odliczenia | %s zł |\n", common.FormatAmount(e.DeductionAmount())))
	}
	if e.Justification != "" {
		sb.WriteString(fmt.Sprintf("\n**Uzasadnienie kwalifikacji:** %s\n", e.Justification))
	}
	return sb.String()
}

func ocrSection(ocr *pkgmodels.OCRResult) string {
	excerpt := strings.TrimSpace(ocr.Text)
	truncated := false
	if runes := []rune(excerpt); len(runes) > ocrExcerptLimit {
		excerpt = string(runes[:ocrExcerptLimit])
		truncated = true
	}

	var sb strings.Builder
	sb.WriteString("### Dokument źródłowy\n\n")
	engine := ocr.Engine
	if engine == "" {
		engine = "OCR"
	}
	sb.WriteString(fmt.Sprintf("Odczyt %s, pewność %.1f%%.\n\n", engine, ocr.Confidence))
	sb.WriteString("```\n")
	sb.WriteString(excerpt)
	if truncated {
		sb.WriteString("\n[...]")
	}
	sb.WriteString("\n```\n")
	return sb.String()
}
