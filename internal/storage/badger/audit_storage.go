package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AuditStorage implements the AuditStorage interface for Badger
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{
		db:     db,
		logger: logger,
	}
}

// RecordModelCall persists one model invocation record
func (s *AuditStorage) RecordModelCall(ctx context.Context, record *models.ModelCallRecord) error {
	if record.ID == "" {
		return fmt.Errorf("model call record requires an id")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to record model call: %w", err)
	}
	return nil
}

// GetModelCall retrieves a single record by id
func (s *AuditStorage) GetModelCall(ctx context.Context, id string) (*models.ModelCallRecord, error) {
	var record models.ModelCallRecord
	err := s.db.Store().Get(id, &record)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("model call record not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model call record: %w", err)
	}
	return &record, nil
}

// ListModelCalls returns the most recent records, newest first
func (s *AuditStorage) ListModelCalls(ctx context.Context, limit int) ([]*models.ModelCallRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*models.ModelCallRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list model call records: %w", err)
	}
	return records, nil
}

// ListModelCallsByProvider returns the most recent records for one provider
func (s *AuditStorage) ListModelCallsByProvider(ctx context.Context, provider string, limit int) ([]*models.ModelCallRecord, error) {
	query := badgerhold.Where("Provider").Eq(provider).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*models.ModelCallRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list model call records by provider: %w", err)
	}
	return records, nil
}

// ExportJSON serialises all records to a JSON array, newest first
func (s *AuditStorage) ExportJSON(ctx context.Context) ([]byte, error) {
	records, err := s.ListModelCalls(ctx, 0)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.ModelCallRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model call records: %w", err)
	}
	return data, nil
}

// CountModelCalls returns the number of stored records
func (s *AuditStorage) CountModelCalls(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ModelCallRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count model call records: %w", err)
	}
	return int(count), nil
}

// ClearAll removes every audit record
func (s *AuditStorage) ClearAll(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.ModelCallRecord{}, nil); err != nil {
		return fmt.Errorf("failed to clear model call records: %w", err)
	}
	s.logger.Info().Msg("Cleared all model call records")
	return nil
}
