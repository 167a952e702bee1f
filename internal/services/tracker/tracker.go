package tracker

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

// maxTableValueLen bounds the value column of the verification table
const maxTableValueLen = 30

// Tracker assigns footnote ordinals to document variables and synthesises
// their verification URLs. One tracker serves exactly one generation; it is
// never shared across requests and needs no locking.
type Tracker struct {
	baseURL   string
	projectID string
	records   []models.TrackedVariable
}

// New creates a tracker bound to a request's base URL and project id.
// The base URL must be known at construction; trackers never read ambient
// request state.
func New(baseURL, projectID string) *Tracker {
	return &Tracker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
	}
}

// Track registers a project-scoped variable and returns its inline footnote
// reference of the form [^n]. Ordinals are 1-based and dense.
func (t *Tracker) Track(name string, value interface{}, source string, path string) string {
	record := models.TrackedVariable{
		Ordinal: len(t.records) + 1,
		Name:    name,
		Value:   formatValue(value),
		Source:  source,
		Path:    path,
		URL:     common.ProjectVariableURL(t.baseURL, t.projectID, source, path),
	}
	t.records = append(t.records, record)
	return fmt.Sprintf("[^%d]", record.Ordinal)
}

// TrackInvoice registers an invoice-scoped variable and returns its inline
// footnote reference.
func (t *Tracker) TrackInvoice(name string, value interface{}, invoiceID string, path string) string {
	record := models.TrackedVariable{
		Ordinal:   len(t.records) + 1,
		Name:      name,
		Value:     formatValue(value),
		Source:    "invoice",
		Path:      path,
		InvoiceID: invoiceID,
		URL:       common.InvoiceVariableURL(t.baseURL, invoiceID, path),
	}
	t.records = append(t.records, record)
	return fmt.Sprintf("[^%d]", record.Ordinal)
}

// Count returns the number of tracked variables.
func (t *Tracker) Count() int {
	return len(t.records)
}

// Records returns the tracked variables in insertion order.
func (t *Tracker) Records() []models.TrackedVariable {
	out := make([]models.TrackedVariable, len(t.records))
	copy(out, t.records)
	return out
}

// FootnotesSection renders the source-reference footnote block appended to
// generated documents. Empty when nothing was tracked.
func (t *Tracker) FootnotesSection() string {
	if len(t.records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n---\n\n")
	sb.WriteString("## Przypisy źródłowe\n\n")
	for _, record := range t.records {
		sb.WriteString(fmt.Sprintf("[^%d]: Źródło: [%s](%s)\n", record.Ordinal, record.Name, record.URL))
	}
	return sb.String()
}

// VerificationTable renders the tracked variables as a Markdown table.
// Values longer than 30 characters are truncated with an ellipsis.
func (t *Tracker) VerificationTable() string {
	if len(t.records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("| Nr | Zmienna | Wartość | Źródło | URL weryfikacji |\n")
	sb.WriteString("|----|---------|---------|--------|-----------------|\n")
	for _, record := range t.records {
		value := record.Value
		if len([]rune(value)) > maxTableValueLen {
			value = string([]rune(value)[:maxTableValueLen]) + "..."
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			record.Ordinal, record.Name, value, record.Source, record.URL))
	}
	return sb.String()
}

// formatValue renders a tracked value for footnotes and tables. Floats keep
// two decimals to match document formatting.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return common.FormatAmount(v)
	case float32:
		return common.FormatAmount(float64(v))
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
