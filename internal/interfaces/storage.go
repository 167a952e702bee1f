package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// ErrInvoiceNotFound is returned when an invoice id is absent from the read model
var ErrInvoiceNotFound = errors.New("invoice not found")

// AuditStorage - persistence for model-call audit records
type AuditStorage interface {
	RecordModelCall(ctx context.Context, record *models.ModelCallRecord) error
	GetModelCall(ctx context.Context, id string) (*models.ModelCallRecord, error)
	ListModelCalls(ctx context.Context, limit int) ([]*models.ModelCallRecord, error)
	ListModelCallsByProvider(ctx context.Context, provider string, limit int) ([]*models.ModelCallRecord, error)
	ExportJSON(ctx context.Context) ([]byte, error)
	CountModelCalls(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
}

// GenerationStorage - persistence for per-run generation records
type GenerationStorage interface {
	SaveRecord(ctx context.Context, record *models.GenerationRecord) error
	GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error)
	ListRecords(ctx context.Context, limit int) ([]*models.GenerationRecord, error)
	ListRecordsByProject(ctx context.Context, projectID string, limit int) ([]*models.GenerationRecord, error)
	CountRecords(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
}

// InvoiceStorage - read-only access to the invoice read model (Postgres)
type InvoiceStorage interface {
	GetInvoice(ctx context.Context, id string) (*pkgmodels.Invoice, error)
	GetExpense(ctx context.Context, invoiceID string) (*pkgmodels.ExpenseRecord, error)
	ListExpenses(ctx context.Context, projectID string) ([]pkgmodels.ExpenseRecord, error)
	ListRevenues(ctx context.Context, projectID string) ([]pkgmodels.RevenueRecord, error)
	ListTimeEntries(ctx context.Context, projectID string) ([]pkgmodels.DailyTimeEntry, error)
	Ping(ctx context.Context) error
}

// StorageManager - composite interface for the embedded storage layer
type StorageManager interface {
	KVStorage() KeyValueStorage
	AuditStorage() AuditStorage
	GenerationStorage() GenerationStorage
	DB() interface{}
	Close() error
}
