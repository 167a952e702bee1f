package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// buildDraftPrompt joins the template's model instructions with the resolved
// data context. Templates without a model prompt never go through the chain.
func buildDraftPrompt(tpl *pkgmodels.Template, tplCtx map[string]interface{}) string {
	instructions := strings.TrimSpace(tpl.ModelPrompt)
	if instructions == "" {
		return ""
	}

	data, err := json.MarshalIndent(tplCtx, "", "  ")
	if err != nil {
		data = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nDane wejściowe (JSON):\n```json\n")
	sb.Write(data)
	sb.WriteString("\n```\n")
	sb.WriteString("\nZasady:\n")
	sb.WriteString("- Użyj wyłącznie wartości z danych wejściowych; niczego nie szacuj.\n")
	sb.WriteString("- Kwoty zapisuj w notacji polskiej (spacja tysięcy, przecinek dziesiętny).\n")
	sb.WriteString("- Zwróć wyłącznie dokument Markdown, bez komentarzy.\n")
	return sb.String()
}

// refinePrompt presents validation issues and the current document for one
// correction pass.
func refinePrompt(content string, issues []pkgmodels.ValidationIssue) string {
	var sb strings.Builder
	sb.WriteString("Popraw poniższy dokument tak, aby usunąć wskazane problemy. ")
	sb.WriteString("Nie zmieniaj żadnych kwot, dat ani wartości liczbowych. ")
	sb.WriteString("Zwróć wyłącznie poprawiony dokument Markdown.\n\nProblemy:\n")
	for _, issue := range issues {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", strings.ToUpper(string(issue.Severity)), issue.Message))
		if issue.Location != "" {
			sb.WriteString(fmt.Sprintf("  Lokalizacja: %s\n", issue.Location))
		}
		if issue.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("  Sugestia: %s\n", issue.Suggestion))
		}
	}
	sb.WriteString("\nDokument:\n\n")
	sb.WriteString(content)
	return sb.String()
}
