package generator

import (
	"time"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/summary"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// buildContext assembles the substitution context in precedence order:
// fetched source payloads first, then project-input values filling gaps,
// then caller params overriding everything.
func (s *Service) buildContext(req *models.GenerateRequest, results *models.SourceResults) map[string]interface{} {
	ctx := map[string]interface{}{
		"generated_at": time.Now(),
	}

	if results != nil {
		for _, name := range results.Names() {
			result, _ := results.Get(name)
			if !result.OK() {
				continue
			}
			s.mapSource(ctx, name, result)
		}
	}

	if req.Project != nil {
		s.mapProject(ctx, req.Project)
	}
	if req.Expense != nil {
		s.mapExpense(ctx, req.Expense)
	}

	for k, v := range req.Params {
		ctx[k] = v
	}

	if month, ok := intValue(ctx["month"]); ok {
		if _, set := ctx["month_pl"]; !set {
			ctx["month_pl"] = common.MonthNamePL(time.Month(month))
		}
	}

	return ctx
}

// mapSource translates one source payload into the keys templates reference.
func (s *Service) mapSource(ctx map[string]interface{}, name string, result *models.DataSourceResult) {
	switch name {
	case "project_info":
		row := result.FirstRow()
		if row == nil {
			return
		}
		ctx["project"] = map[string]interface{}{
			"name":               row["name"],
			"code":               row["code"],
			"description":        row["description"],
			"start_date":         row["start_date"],
			"end_date":           row["end_date"],
			"innovation_type_pl": pkgmodels.InnovationType(stringValue(row["innovation_type"])).NamePL(),
			"innovation_scope_pl": pkgmodels.InnovationScope(
				stringValue(row["innovation_scope"])).NamePL(),
		}
		ctx["company"] = map[string]interface{}{
			"name": row["company_name"],
			"nip":  row["company_nip"],
		}
		if _, ok := ctx["fiscal_year"]; !ok {
			ctx["fiscal_year"] = row["fiscal_year"]
		}

	case "expenses_summary":
		row := result.FirstRow()
		if row == nil {
			return
		}
		ctx["totals"] = map[string]interface{}{
			"gross":           row["total_gross"],
			"net":             row["total_net"],
			"qualified_gross": row["total_gross"],
			"total_deduction": row["total_deduction"],
			"count":           row["invoice_count"],
		}

	case "expenses_by_category":
		var categories []map[string]interface{}
		for _, row := range result.Rows() {
			category := pkgmodels.CostCategory(stringValue(row["category"]))
			gross, _ := floatValue(row["gross_amount"])
			categories = append(categories, map[string]interface{}{
				"category":  string(category),
				"name_pl":   category.NamePL(),
				"count":     row["invoice_count"],
				"gross":     gross,
				"net":       row["net_amount"],
				"deduction": common.RoundPLN(gross * category.DeductionRate()),
			})
		}
		ctx["categories"] = categories

	case "timesheet_summary":
		var monthly []map[string]interface{}
		totalHours := 0.0
		totalEntries := 0
		for _, row := range result.Rows() {
			month, _ := intValue(row["month"])
			hours, _ := floatValue(row["hours"])
			entries, _ := intValue(row["entries"])
			totalHours += hours
			totalEntries += entries
			monthly = append(monthly, map[string]interface{}{
				"year":     row["year"],
				"month":    month,
				"month_pl": common.MonthNamePL(time.Month(month)),
				"worker":   row["worker"],
				"hours":    hours,
				"entries":  entries,
			})
		}
		ctx["monthly"] = monthly
		ctx["hours"] = map[string]interface{}{
			"total_hours": totalHours,
			"entries":     totalEntries,
		}

	case "nexus_calculation":
		row := result.FirstRow()
		if row == nil {
			return
		}
		ctx["nexus"] = map[string]interface{}{
			"a":     row["a"],
			"b":     row["b"],
			"c":     row["c"],
			"d":     row["d"],
			"value": row["nexus"],
		}

	case "revenues":
		var revenues []map[string]interface{}
		for _, row := range result.Rows() {
			qualified := boolValue(row["ip_qualified"])
			revenues = append(revenues, map[string]interface{}{
				"invoice_number":  row["invoice_number"],
				"invoice_date":    row["invoice_date"],
				"client_name":     row["client_name"],
				"client_nip":      row["client_nip"],
				"net_amount":      row["net_amount"],
				"gross_amount":    row["gross_amount"],
				"currency":        row["currency"],
				"ip_qualified":    qualified,
				"ip_qualified_pl": yesNoPL(qualified),
				"ip_description":  row["ip_description"],
			})
		}
		ctx["revenues"] = revenues

	default:
		// unmapped sources expose their payload under the source name
		ctx[name] = result.Payload
	}
}

// mapProject fills context slots from the project input. Identity fields win
// over fetched rows; cost-derived aggregates only fill gaps the sources left.
func (s *Service) mapProject(ctx map[string]interface{}, project *pkgmodels.ProjectInput) {
	prj := map[string]interface{}{
		"name":                   project.Name,
		"code":                   project.InternalCode,
		"description":            project.Innovation.Description,
		"innovation_description": project.Innovation.Description,
		"start_date":             project.StartDate,
		"end_date":               project.EndDate,
		"innovation_type_pl":     project.Innovation.Type.NamePL(),
		"innovation_scope_pl":    project.Innovation.Scope.NamePL(),
		"research_methods":       project.Methodology.ResearchMethods,
		"risk_factors":           project.Methodology.RiskFactors,
	}
	if existing, ok := ctx["project"].(map[string]interface{}); ok {
		for k, v := range prj {
			if v != nil && v != "" {
				existing[k] = v
			}
		}
	} else {
		ctx["project"] = prj
	}

	ctx["company"] = map[string]interface{}{
		"name": project.CompanyName,
		"nip":  project.CompanyNIP,
	}
	ctx["fiscal_year"] = project.FiscalYear

	if len(project.Milestones) > 0 {
		var milestones []map[string]interface{}
		for _, m := range project.Milestones {
			row := map[string]interface{}{
				"name":        m.Name,
				"target_date": m.TargetDate,
				"status":      string(m.Status),
				"status_pl":   m.Status.NamePL(),
			}
			if m.ActualDate != nil {
				row["actual_date"] = *m.ActualDate
			} else {
				row["actual_date"] = ""
			}
			milestones = append(milestones, row)
		}
		ctx["milestones"] = milestones
	}

	// cost-derived aggregates fill in when no read model was fetched
	if _, ok := ctx["totals"]; !ok && project.Costs.Total() > 0 {
		total := common.RoundPLN(project.Costs.Total())
		ctx["totals"] = map[string]interface{}{
			"gross":           total,
			"qualified_gross": total,
			"total_deduction": common.RoundPLN(project.Costs.TotalDeduction()),
		}
	}
	if _, ok := ctx["categories"]; !ok {
		byCategory := project.Costs.TotalByCategory()
		if len(byCategory) > 0 {
			var categories []map[string]interface{}
			for _, cat := range pkgmodels.AllCostCategories {
				gross, ok := byCategory[cat]
				if !ok {
					continue
				}
				categories = append(categories, map[string]interface{}{
					"category":  string(cat),
					"name_pl":   cat.NamePL(),
					"count":     1,
					"gross":     common.RoundPLN(gross),
					"deduction": common.RoundPLN(gross * cat.DeductionRate()),
				})
			}
			ctx["categories"] = categories
		}
	}
	if _, ok := ctx["nexus"]; !ok && project.Documentation.IncludeNexus {
		components := project.Costs.NexusComponents()
		ctx["nexus"] = map[string]interface{}{
			"a":     common.RoundPLN(components.A),
			"b":     common.RoundPLN(components.B),
			"c":     common.RoundPLN(components.C),
			"d":     common.RoundPLN(components.D),
			"value": components.Calculate(),
		}
	}
}

// mapExpense exposes the single expense the way the registry templates list
// per-expense rows, plus a top-level "expense" map for expense_single.
func (s *Service) mapExpense(ctx map[string]interface{}, expense *pkgmodels.ExpenseRecord) {
	row := map[string]interface{}{
		"id":                 expense.ID,
		"invoice_number":     expense.InvoiceNumber,
		"invoice_date":       expense.InvoiceDate,
		"vendor_name":        expense.VendorName,
		"vendor_nip":         expense.VendorNIP,
		"net_amount":         expense.NetAmount,
		"gross_amount":       expense.GrossAmount,
		"currency":           expense.Currency,
		"category":           string(expense.Category),
		"category_pl":        expense.Category.NamePL(),
		"qualified":          expense.Qualified,
		"qualified_pl":       yesNoPL(expense.Qualified),
		"deduction_rate_pct": expense.EffectiveDeductionRate() * 100,
		"deduction_amount":   common.RoundPLN(expense.DeductionAmount()),
		"description":        expense.Justification,
	}
	ctx["expense"] = row
	if _, ok := ctx["expenses"]; !ok {
		ctx["expenses"] = []map[string]interface{}{row}
	}
	if _, ok := ctx["totals"]; !ok {
		ctx["totals"] = map[string]interface{}{
			"gross":           expense.GrossAmount,
			"net":             expense.NetAmount,
			"qualified_gross": expense.GrossAmount,
			"total_deduction": common.RoundPLN(expense.DeductionAmount()),
			"count":           1,
		}
	}
}

// ContractorContext derives the contractor rollup rows from an expense list.
// The orchestrator injects them through Params for the annual summary.
func ContractorContext(expenses []pkgmodels.ExpenseRecord, companyNIP string) []map[string]interface{} {
	var rows []map[string]interface{}
	for _, row := range summary.ContractorRollup(expenses, companyNIP) {
		rows = append(rows, map[string]interface{}{
			"vendor": row.Vendor,
			"nip":    row.NIP,
			"total":  row.Total,
			"count":  row.Count,
		})
	}
	return rows
}

func yesNoPL(v bool) string {
	if v {
		return "tak"
	}
	return "nie"
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolValue(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
