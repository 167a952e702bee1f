package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// GenerationStorage implements the GenerationStorage interface for Badger
type GenerationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewGenerationStorage creates a new GenerationStorage instance
func NewGenerationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.GenerationStorage {
	return &GenerationStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRecord persists one generation run record
func (s *GenerationStorage) SaveRecord(ctx context.Context, record *models.GenerationRecord) error {
	if record.ID == "" {
		return fmt.Errorf("generation record requires an id")
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save generation record: %w", err)
	}

	s.logger.Debug().
		Str("id", record.ID).
		Str("project_id", record.ProjectID).
		Str("status", string(record.Status)).
		Msg("Generation record saved")
	return nil
}

// GetRecord retrieves a single run record by id
func (s *GenerationStorage) GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	err := s.db.Store().Get(id, &record)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("generation record not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation record: %w", err)
	}
	return &record, nil
}

// ListRecords returns the most recent run records, newest first
func (s *GenerationStorage) ListRecords(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*models.GenerationRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list generation records: %w", err)
	}
	return records, nil
}

// ListRecordsByProject returns the most recent run records for one project
func (s *GenerationStorage) ListRecordsByProject(ctx context.Context, projectID string, limit int) ([]*models.GenerationRecord, error) {
	query := badgerhold.Where("ProjectID").Eq(projectID).SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*models.GenerationRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list generation records by project: %w", err)
	}
	return records, nil
}

// CountRecords returns the number of stored run records
func (s *GenerationStorage) CountRecords(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.GenerationRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count generation records: %w", err)
	}
	return int(count), nil
}

// ClearAll removes every run record
func (s *GenerationStorage) ClearAll(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.GenerationRecord{}, nil); err != nil {
		return fmt.Errorf("failed to clear generation records: %w", err)
	}
	s.logger.Info().Msg("Cleared all generation records")
	return nil
}
