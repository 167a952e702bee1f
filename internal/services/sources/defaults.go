package sources

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/ternarybob/scribo/internal/models"
)

// nbpAPIBase is the public NBP table A endpoint.
const nbpAPIBase = "https://api.nbp.pl/api"

// registerDefaults installs the source set the generators depend on. Names
// and parameter schemas are stable API.
func (s *Service) registerDefaults(pool *pgxpool.Pool) {
	s.Register(models.DataSourceDescriptor{
		Name:        "project_info",
		Kind:        models.SourceKindSQL,
		Description: "Project master record from the read model",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "name", Type: "text"},
			{Name: "code", Type: "text"},
			{Name: "fiscal_year", Type: "numeric"},
			{Name: "company_name", Type: "text"},
			{Name: "company_nip", Type: "text"},
			{Name: "start_date", Type: "date"},
			{Name: "end_date", Type: "date"},
		},
	}, NewSQLSource(pool, `
		SELECT id::text AS id, name, code, fiscal_year::int AS fiscal_year,
		       company_name, company_nip, start_date, end_date,
		       description, innovation_type, innovation_scope
		FROM projects
		WHERE id = :project_id
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "expenses_summary",
		Kind:        models.SourceKindSQL,
		Description: "Qualified expense totals for a project",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "invoice_count", Type: "numeric"},
			{Name: "total_net", Type: "numeric"},
			{Name: "total_gross", Type: "numeric", Description: "sum of qualified gross amounts"},
			{Name: "total_deduction", Type: "numeric", Description: "gross x statutory rate, summed"},
		},
	}, NewSQLSource(pool, `
		SELECT count(*)::int AS invoice_count,
		       COALESCE(sum(net_amount), 0)::float8 AS total_net,
		       COALESCE(sum(gross_amount), 0)::float8 AS total_gross,
		       COALESCE(sum(gross_amount * CASE
		           WHEN br_category IN ('personnel_employment', 'personnel_civil') THEN 2.0
		           ELSE 1.0 END), 0)::float8 AS total_deduction
		FROM invoices
		WHERE project_id = :project_id AND br_qualified
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "expenses_by_category",
		Kind:        models.SourceKindSQL,
		Description: "Qualified expenses grouped by statutory category",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "category", Type: "text"},
			{Name: "invoice_count", Type: "numeric"},
			{Name: "gross_amount", Type: "numeric"},
			{Name: "net_amount", Type: "numeric"},
		},
	}, NewSQLSource(pool, `
		SELECT br_category AS category,
		       count(*)::int AS invoice_count,
		       COALESCE(sum(gross_amount), 0)::float8 AS gross_amount,
		       COALESCE(sum(net_amount), 0)::float8 AS net_amount
		FROM invoices
		WHERE project_id = :project_id AND br_qualified
		GROUP BY br_category
		ORDER BY br_category
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "timesheet_summary",
		Kind:        models.SourceKindSQL,
		Description: "R&D hours grouped by worker and month",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "worker", Type: "text"},
			{Name: "year", Type: "numeric"},
			{Name: "month", Type: "numeric"},
			{Name: "hours", Type: "numeric"},
			{Name: "entries", Type: "numeric"},
		},
	}, NewSQLSource(pool, `
		SELECT worker,
		       EXTRACT(YEAR FROM entry_date)::int AS year,
		       EXTRACT(MONTH FROM entry_date)::int AS month,
		       sum(hours)::float8 AS hours,
		       count(*)::int AS entries
		FROM time_entries
		WHERE project_id = :project_id
		GROUP BY worker, year, month
		ORDER BY year, month, worker
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "nexus_calculation",
		Kind:        models.SourceKindSQL,
		Description: "Nexus components a, b, c, d and the capped indicator",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "a", Type: "numeric", Description: "own direct R&D activity"},
			{Name: "b", Type: "numeric", Description: "R&D bought from unrelated parties"},
			{Name: "c", Type: "numeric", Description: "R&D bought from related parties"},
			{Name: "d", Type: "numeric", Description: "purchased qualified IP"},
			{Name: "nexus", Type: "numeric"},
		},
	}, NewSQLSource(pool, `
		SELECT a, b, c, d,
		       COALESCE(LEAST(1.0, ((a + b) * 1.3) / NULLIF(a + b + c + d, 0)), 1.0)::float8 AS nexus
		FROM (
		    SELECT
		        COALESCE(sum(gross_amount) FILTER (WHERE br_category NOT IN
		            ('expertise', 'external_services', 'related_services', 'ip_purchase')), 0)::float8 AS a,
		        COALESCE(sum(gross_amount) FILTER (WHERE br_category IN
		            ('expertise', 'external_services')), 0)::float8 AS b,
		        COALESCE(sum(gross_amount) FILTER (WHERE br_category = 'related_services'), 0)::float8 AS c,
		        COALESCE(sum(gross_amount) FILTER (WHERE br_category = 'ip_purchase'), 0)::float8 AS d
		    FROM invoices
		    WHERE project_id = :project_id AND br_qualified
		) components
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "revenues",
		Kind:        models.SourceKindSQL,
		Description: "Revenue lines of a project with IP qualification flags",
		Params:      map[string]string{"project_id": "project identifier"},
		Fields: []models.ResultField{
			{Name: "invoice_number", Type: "text"},
			{Name: "invoice_date", Type: "date"},
			{Name: "client_name", Type: "text"},
			{Name: "net_amount", Type: "numeric"},
			{Name: "gross_amount", Type: "numeric"},
			{Name: "ip_qualified", Type: "text"},
		},
	}, NewSQLSource(pool, `
		SELECT invoice_number, invoice_date, client_name, client_nip,
		       net_amount::float8 AS net_amount, gross_amount::float8 AS gross_amount,
		       currency, ip_qualified, ip_description
		FROM revenues
		WHERE project_id = :project_id
		ORDER BY invoice_date, invoice_number
	`))

	s.Register(models.DataSourceDescriptor{
		Name:        "nbp_exchange_rate",
		Kind:        models.SourceKindREST,
		Description: "NBP table A mid exchange rate for a currency and date",
		Params: map[string]string{
			"currency": "ISO currency code, e.g. EUR",
			"date":     "quote date YYYY-MM-DD",
		},
		Fields: []models.ResultField{
			{Name: "rates", Type: "text", Description: "table A quote list with mid rate"},
		},
	}, &RESTSource{
		URLTemplate: nbpAPIBase + "/exchangerates/rates/a/{currency}/{date}?format=json",
		Timeout:     15 * time.Second,
		Limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	})
}
