package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/pkg/models"
)

// InvoiceStorage implements the read-only invoice view over Postgres
type InvoiceStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

// NewInvoiceStorage creates a new InvoiceStorage instance
func NewInvoiceStorage(pool *pgxpool.Pool, logger arbor.ILogger) interfaces.InvoiceStorage {
	return &InvoiceStorage{
		pool:   pool,
		logger: logger,
	}
}

// GetInvoice returns the full read-model row for one invoice document
func (s *InvoiceStorage) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, project_id, invoice_number, invoice_date, vendor_name, vendor_nip,
		       net_amount, vat_amount, gross_amount, currency,
		       br_category, br_qualified, br_deduction_rate, br_justification,
		       status, document_ref,
		       plain_text, ocr_text, ocr_confidence, ocr_engine, ocr_page_count,
		       received_at, processed_at
		FROM invoices
		WHERE id = $1
	`

	invoice := models.Invoice{Expense: &models.ExpenseRecord{}}
	exp := invoice.Expense

	var ocrText, ocrEngine *string
	var ocrConfidence *float64
	var ocrPageCount *int
	var plainText *string

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&invoice.ID, &exp.ProjectID, &exp.InvoiceNumber, &exp.InvoiceDate, &exp.VendorName, &exp.VendorNIP,
		&exp.NetAmount, &exp.VATAmount, &exp.GrossAmount, &exp.Currency,
		&exp.Category, &exp.Qualified, &exp.DeductionRate, &exp.Justification,
		&exp.Status, &exp.DocumentRef,
		&plainText, &ocrText, &ocrConfidence, &ocrEngine, &ocrPageCount,
		&invoice.ReceivedAt, &invoice.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice: %w", err)
	}

	exp.ID = invoice.ID
	if plainText != nil {
		invoice.PlainText = *plainText
	}
	if ocrText != nil && *ocrText != "" {
		invoice.OCR = &models.OCRResult{Text: *ocrText}
		if ocrConfidence != nil {
			invoice.OCR.Confidence = *ocrConfidence
		}
		if ocrEngine != nil {
			invoice.OCR.Engine = *ocrEngine
		}
		if ocrPageCount != nil {
			invoice.OCR.PageCount = *ocrPageCount
		}
	}

	return &invoice, nil
}

// GetExpense returns the expense view of one invoice
func (s *InvoiceStorage) GetExpense(ctx context.Context, invoiceID string) (*models.ExpenseRecord, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return invoice.Expense, nil
}

// ListExpenses returns all invoice-backed expenses of a project, oldest first
func (s *InvoiceStorage) ListExpenses(ctx context.Context, projectID string) ([]models.ExpenseRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, project_id, invoice_number, invoice_date, vendor_name, vendor_nip,
		       net_amount, vat_amount, gross_amount, currency,
		       br_category, br_qualified, br_deduction_rate, br_justification,
		       status, document_ref
		FROM invoices
		WHERE project_id = $1
		ORDER BY invoice_date, invoice_number
	`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.ExpenseRecord
	for rows.Next() {
		var exp models.ExpenseRecord
		if err := rows.Scan(
			&exp.ID, &exp.ProjectID, &exp.InvoiceNumber, &exp.InvoiceDate, &exp.VendorName, &exp.VendorNIP,
			&exp.NetAmount, &exp.VATAmount, &exp.GrossAmount, &exp.Currency,
			&exp.Category, &exp.Qualified, &exp.DeductionRate, &exp.Justification,
			&exp.Status, &exp.DocumentRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}
		expenses = append(expenses, exp)
	}

	return expenses, rows.Err()
}

// ListRevenues returns all IP-relevant revenue lines of a project, oldest first
func (s *InvoiceStorage) ListRevenues(ctx context.Context, projectID string) ([]models.RevenueRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, project_id, invoice_number, invoice_date, client_name, client_nip,
		       net_amount, gross_amount, currency, ip_qualified, ip_description
		FROM revenues
		WHERE project_id = $1
		ORDER BY invoice_date, invoice_number
	`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revenues: %w", err)
	}
	defer rows.Close()

	var revenues []models.RevenueRecord
	for rows.Next() {
		var rev models.RevenueRecord
		if err := rows.Scan(
			&rev.ID, &rev.ProjectID, &rev.InvoiceNumber, &rev.InvoiceDate, &rev.ClientName, &rev.ClientNIP,
			&rev.NetAmount, &rev.GrossAmount, &rev.Currency, &rev.IPQualified, &rev.IPDescription,
		); err != nil {
			return nil, fmt.Errorf("failed to scan revenue row: %w", err)
		}
		revenues = append(revenues, rev)
	}

	return revenues, rows.Err()
}

// ListTimeEntries returns all daily time entries of a project in date order
func (s *InvoiceStorage) ListTimeEntries(ctx context.Context, projectID string) ([]models.DailyTimeEntry, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT project_id, worker, entry_date, slot, hours, task_type, description, commit_refs
		FROM time_entries
		WHERE project_id = $1
		ORDER BY entry_date, worker, slot
	`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DailyTimeEntry
	for rows.Next() {
		var entry models.DailyTimeEntry
		if err := rows.Scan(
			&entry.ProjectID, &entry.Worker, &entry.Date, &entry.Slot, &entry.Hours,
			&entry.TaskType, &entry.Description, &entry.CommitRefs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan time entry row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Ping verifies the read model is reachable
func (s *InvoiceStorage) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	return s.pool.Ping(ctx)
}
