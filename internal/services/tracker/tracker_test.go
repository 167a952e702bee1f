package tracker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackAssignsDenseOrdinals(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")

	ref1 := tr.Track("total_gross", 120000.0, "expenses_summary", "total_gross")
	ref2 := tr.Track("total_hours", 1520.5, "timesheet_summary", "total_hours")
	ref3 := tr.Track("nexus", 1.0, "nexus_calculation", "nexus")

	assert.Equal(t, "[^1]", ref1)
	assert.Equal(t, "[^2]", ref2)
	assert.Equal(t, "[^3]", ref3)
	assert.Equal(t, 3, tr.Count())

	records := tr.Records()
	require.Len(t, records, 3)
	for i, record := range records {
		assert.Equal(t, i+1, record.Ordinal)
	}
}

func TestTrackSynthesisesVerificationURL(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")

	tr.Track("total_gross", 1000.0, "expenses_summary", "total_gross")
	records := tr.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "http://localhost:81/api/project/PRJ-001/variable/expenses_summary/total_gross", records[0].URL)

	tr.Track("nexus", 0.9876, "nexus_calculation", "")
	records = tr.Records()
	assert.Equal(t, "http://localhost:81/api/project/PRJ-001/variable/nexus_calculation", records[1].URL)
}

func TestTrackInvoiceURL(t *testing.T) {
	tr := New("http://localhost:81/", "PRJ-001")

	ref := tr.TrackInvoice("gross_amount", 2460.0, "INV-42", "gross_amount")
	assert.Equal(t, "[^1]", ref)

	records := tr.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "http://localhost:81/api/invoice/INV-42/variable/gross_amount", records[0].URL)
	assert.Equal(t, "INV-42", records[0].InvoiceID)
}

func TestFootnotesSectionOrderAndShape(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")
	tr.Track("total_gross", 120000.0, "expenses_summary", "total_gross")
	tr.Track("total_hours", 1520.0, "timesheet_summary", "total_hours")

	section := tr.FootnotesSection()

	assert.Contains(t, section, "---")
	assert.Contains(t, section, "## Przypisy źródłowe")
	assert.Contains(t, section, "[^1]: Źródło: [total_gross](http://localhost:81/api/project/PRJ-001/variable/expenses_summary/total_gross)")
	assert.Contains(t, section, "[^2]: Źródło: [total_hours](http://localhost:81/api/project/PRJ-001/variable/timesheet_summary/total_hours)")

	// insertion order
	assert.Less(t, strings.Index(section, "[^1]:"), strings.Index(section, "[^2]:"))
}

func TestFootnotesSectionEmptyWithoutRecords(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")
	assert.Empty(t, tr.FootnotesSection())
	assert.Empty(t, tr.VerificationTable())
}

func TestFootnoteDefinitionCountMatchesTracks(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")
	for i := 0; i < 7; i++ {
		tr.Track(fmt.Sprintf("var_%d", i), i, "project_info", fmt.Sprintf("field_%d", i))
	}

	section := tr.FootnotesSection()
	assert.Equal(t, 7, strings.Count(section, ": Źródło:"))
}

func TestVerificationTableTruncatesLongValues(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")
	long := strings.Repeat("a", 45)
	tr.Track("description", long, "project_info", "description")

	table := tr.VerificationTable()
	assert.Contains(t, table, strings.Repeat("a", 30)+"...")
	assert.NotContains(t, table, strings.Repeat("a", 31))
	assert.Contains(t, table, "| Nr | Zmienna | Wartość | Źródło | URL weryfikacji |")
}

func TestValueFormatting(t *testing.T) {
	tr := New("http://localhost:81", "PRJ-001")
	tr.Track("amount", 120000.0, "expenses_summary", "total_gross")
	tr.Track("count", 12, "expenses_summary", "count")
	tr.Track("name", "Projekt Alfa", "project_info", "name")

	records := tr.Records()
	assert.Equal(t, "120 000,00", records[0].Value)
	assert.Equal(t, "12", records[1].Value)
	assert.Equal(t, "Projekt Alfa", records[2].Value)
}
