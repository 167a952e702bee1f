package summary

import (
	"sort"
	"time"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/pkg/models"
)

// CategorySummary is one row of the per-category expense breakdown.
type CategorySummary struct {
	Category  models.CostCategory `json:"category"`
	NamePL    string              `json:"name_pl"`
	Count     int                 `json:"count"`
	Gross     float64             `json:"gross"`
	Deduction float64             `json:"deduction"`
}

// ExpenseTotals aggregates a project's expense list.
type ExpenseTotals struct {
	Gross          float64 `json:"gross"`
	QualifiedGross float64 `json:"qualified_gross"`
	TotalDeduction float64 `json:"total_deduction"`
	Count          int     `json:"count"`
	QualifiedCount int     `json:"qualified_count"`
}

// MonthlyRow is one (year, month, worker) slice of the time ledger.
type MonthlyRow struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	MonthPL string     `json:"month_pl"`
	Worker  string     `json:"worker"`
	Hours   float64    `json:"hours"`
	Entries int        `json:"entries"`
}

// ContractorRow is one vendor's share of the qualified spend.
type ContractorRow struct {
	Vendor string  `json:"vendor"`
	NIP    string  `json:"nip"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

// ByCategory rolls expenses up per cost category, in enum order. Inputs are
// never mutated; categories without expenses are omitted.
func ByCategory(expenses []models.ExpenseRecord) []CategorySummary {
	byCat := make(map[models.CostCategory]*CategorySummary)
	for _, exp := range expenses {
		row, ok := byCat[exp.Category]
		if !ok {
			row = &CategorySummary{
				Category: exp.Category,
				NamePL:   exp.Category.NamePL(),
			}
			byCat[exp.Category] = row
		}
		row.Count++
		row.Gross += exp.GrossAmount
		row.Deduction += exp.DeductionAmount()
	}

	var rows []CategorySummary
	for _, cat := range models.AllCostCategories {
		if row, ok := byCat[cat]; ok {
			row.Gross = common.RoundPLN(row.Gross)
			row.Deduction = common.RoundPLN(row.Deduction)
			rows = append(rows, *row)
		}
	}
	return rows
}

// Totals sums gross, qualified gross, and statutory deduction over expenses.
func Totals(expenses []models.ExpenseRecord) ExpenseTotals {
	var totals ExpenseTotals
	for _, exp := range expenses {
		totals.Count++
		totals.Gross += exp.GrossAmount
		if exp.Qualified {
			totals.QualifiedCount++
			totals.QualifiedGross += exp.GrossAmount
			totals.TotalDeduction += exp.DeductionAmount()
		}
	}
	totals.Gross = common.RoundPLN(totals.Gross)
	totals.QualifiedGross = common.RoundPLN(totals.QualifiedGross)
	totals.TotalDeduction = common.RoundPLN(totals.TotalDeduction)
	return totals
}

// MonthlyBreakdown groups time entries into (year, month, worker) rows,
// ordered by year, month, then worker.
func MonthlyBreakdown(entries []models.DailyTimeEntry) []MonthlyRow {
	type key struct {
		year   int
		month  time.Month
		worker string
	}

	byKey := make(map[key]*MonthlyRow)
	for _, entry := range entries {
		k := key{year: entry.Date.Year(), month: entry.Date.Month(), worker: entry.Worker}
		row, ok := byKey[k]
		if !ok {
			row = &MonthlyRow{
				Year:    k.year,
				Month:   k.month,
				MonthPL: common.MonthNamePL(k.month),
				Worker:  k.worker,
			}
			byKey[k] = row
		}
		row.Hours += entry.Hours
		row.Entries++
	}

	rows := make([]MonthlyRow, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Worker < rows[j].Worker
	})
	return rows
}

// ContractorRollup aggregates expenses per vendor, largest spend first.
// The reporting company's own invoices are excluded; the NIP comparison is
// strict equality after digit-only normalisation.
func ContractorRollup(expenses []models.ExpenseRecord, companyNIP string) []ContractorRow {
	ownNIP := common.NormalizeDigits(companyNIP)

	type key struct {
		vendor string
		nip    string
	}

	byKey := make(map[key]*ContractorRow)
	var order []key
	for _, exp := range expenses {
		nip := common.NormalizeDigits(exp.VendorNIP)
		if ownNIP != "" && nip == ownNIP {
			continue
		}
		k := key{vendor: exp.VendorName, nip: nip}
		row, ok := byKey[k]
		if !ok {
			row = &ContractorRow{Vendor: exp.VendorName, NIP: nip}
			byKey[k] = row
			order = append(order, k)
		}
		row.Total += exp.GrossAmount
		row.Count++
	}

	rows := make([]ContractorRow, 0, len(order))
	for _, k := range order {
		row := byKey[k]
		row.Total = common.RoundPLN(row.Total)
		rows = append(rows, *row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})
	return rows
}

// TimesheetTotals sums hours over entries, per worker and overall.
type TimesheetTotals struct {
	TotalHours float64            `json:"total_hours"`
	ByWorker   map[string]float64 `json:"by_worker"`
	Entries    int                `json:"entries"`
}

// HoursTotals aggregates a time-entry list.
func HoursTotals(entries []models.DailyTimeEntry) TimesheetTotals {
	totals := TimesheetTotals{ByWorker: make(map[string]float64)}
	for _, entry := range entries {
		totals.TotalHours += entry.Hours
		totals.ByWorker[entry.Worker] += entry.Hours
		totals.Entries++
	}
	return totals
}
