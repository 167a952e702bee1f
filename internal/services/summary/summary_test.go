package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scribo/pkg/models"
)

func testExpenses() []models.ExpenseRecord {
	return []models.ExpenseRecord{
		{
			InvoiceNumber: "FV/2025/01/001",
			VendorName:    "Helion SA",
			VendorNIP:     "954-18-03-387",
			Category:      models.CategoryMaterials,
			GrossAmount:   1230.00,
			Qualified:     true,
		},
		{
			InvoiceNumber: "FV/2025/01/002",
			VendorName:    "OVH Sp. z o.o.",
			VendorNIP:     "899-25-20-556",
			Category:      models.CategoryEquipment,
			GrossAmount:   4500.00,
			Qualified:     true,
		},
		{
			InvoiceNumber: "LP/2025/01",
			VendorName:    "Jan Kowalski",
			VendorNIP:     "",
			Category:      models.CategoryPersonnelEmployment,
			GrossAmount:   12000.00,
			Qualified:     true,
		},
		{
			InvoiceNumber: "FV/2025/01/003",
			VendorName:    "Helion SA",
			VendorNIP:     "9541803387",
			Category:      models.CategoryMaterials,
			GrossAmount:   770.00,
			Qualified:     false,
		},
	}
}

func TestByCategoryEnumOrder(t *testing.T) {
	rows := ByCategory(testExpenses())

	require.Len(t, rows, 3)
	// Personnel precedes materials precedes equipment in the category enum.
	assert.Equal(t, models.CategoryPersonnelEmployment, rows[0].Category)
	assert.Equal(t, models.CategoryMaterials, rows[1].Category)
	assert.Equal(t, models.CategoryEquipment, rows[2].Category)

	assert.Equal(t, 2, rows[1].Count)
	assert.InDelta(t, 2000.00, rows[1].Gross, 0.001)
	assert.NotEmpty(t, rows[0].NamePL)
}

func TestByCategoryDeductionRates(t *testing.T) {
	rows := ByCategory(testExpenses())

	// Personnel deducts at 200%, the rest at 100%. The unqualified
	// materials invoice contributes gross but no deduction.
	for _, row := range rows {
		switch row.Category {
		case models.CategoryPersonnelEmployment:
			assert.InDelta(t, 24000.00, row.Deduction, 0.001)
		case models.CategoryMaterials:
			assert.InDelta(t, 1230.00, row.Deduction, 0.001)
		case models.CategoryEquipment:
			assert.InDelta(t, 4500.00, row.Deduction, 0.001)
		}
	}
}

func TestTotals(t *testing.T) {
	totals := Totals(testExpenses())

	assert.Equal(t, 4, totals.Count)
	assert.Equal(t, 3, totals.QualifiedCount)
	assert.InDelta(t, 18500.00, totals.Gross, 0.001)
	assert.InDelta(t, 17730.00, totals.QualifiedGross, 0.001)
	// 12000*2.0 + 1230*1.0 + 4500*1.0
	assert.InDelta(t, 29730.00, totals.TotalDeduction, 0.001)
}

func TestTotalsEmpty(t *testing.T) {
	totals := Totals(nil)
	assert.Zero(t, totals.Gross)
	assert.Zero(t, totals.TotalDeduction)
	assert.Zero(t, totals.Count)
}

func TestMonthlyBreakdownOrdering(t *testing.T) {
	entries := []models.DailyTimeEntry{
		{Worker: "nowak", Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Hours: 6},
		{Worker: "kowalski", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Hours: 4},
		{Worker: "kowalski", Date: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), Hours: 8},
		{Worker: "kowalski", Date: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), Hours: 3.5},
		{Worker: "nowak", Date: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), Hours: 5},
	}

	rows := MonthlyBreakdown(entries)

	require.Len(t, rows, 4)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, time.December, rows[0].Month)
	assert.Equal(t, "nowak", rows[0].Worker)

	assert.Equal(t, 2025, rows[1].Year)
	assert.Equal(t, time.January, rows[1].Month)
	assert.Equal(t, "kowalski", rows[1].Worker)
	assert.InDelta(t, 7.5, rows[1].Hours, 0.001)
	assert.Equal(t, 2, rows[1].Entries)

	// February rows sort by worker.
	assert.Equal(t, "kowalski", rows[2].Worker)
	assert.Equal(t, "nowak", rows[3].Worker)
}

func TestMonthlyBreakdownPolishMonthNames(t *testing.T) {
	entries := []models.DailyTimeEntry{
		{Worker: "a", Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Hours: 1},
	}
	rows := MonthlyBreakdown(entries)
	require.Len(t, rows, 1)
	assert.Equal(t, "styczeń", rows[0].MonthPL)
}

func TestContractorRollupExcludesOwnNIP(t *testing.T) {
	rows := ContractorRollup(testExpenses(), "954-180-33-87")

	// Both Helion invoices match the company NIP after normalisation and
	// are dropped, regardless of their own formatting.
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotEqual(t, "9541803387", row.NIP)
	}
}

func TestContractorRollupSortsByTotalDescending(t *testing.T) {
	rows := ContractorRollup(testExpenses(), "")

	require.Len(t, rows, 3)
	assert.Equal(t, "Jan Kowalski", rows[0].Vendor)
	assert.Equal(t, "OVH Sp. z o.o.", rows[1].Vendor)
	assert.Equal(t, "Helion SA", rows[2].Vendor)
	assert.InDelta(t, 2000.00, rows[2].Total, 0.001)
	assert.Equal(t, 2, rows[2].Count)
}

func TestContractorRollupDoesNotMutateInput(t *testing.T) {
	expenses := testExpenses()
	before := expenses[0].GrossAmount
	ContractorRollup(expenses, "9541803387")
	assert.Equal(t, before, expenses[0].GrossAmount)
}

func TestHoursTotals(t *testing.T) {
	entries := []models.DailyTimeEntry{
		{Worker: "kowalski", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Hours: 4},
		{Worker: "kowalski", Date: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), Hours: 3.5},
		{Worker: "nowak", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Hours: 8},
	}

	totals := HoursTotals(entries)

	assert.InDelta(t, 15.5, totals.TotalHours, 0.001)
	assert.InDelta(t, 7.5, totals.ByWorker["kowalski"], 0.001)
	assert.InDelta(t, 8.0, totals.ByWorker["nowak"], 0.001)
	assert.Equal(t, 3, totals.Entries)
}
