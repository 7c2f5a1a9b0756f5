package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RecordStorage implements JobRecordStorage for Badger
type RecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRecordStorage creates a new RecordStorage instance
func NewRecordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobRecordStorage {
	return &RecordStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RecordStorage) SaveRecord(ctx context.Context, record *models.JobRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *RecordStorage) GetRecord(ctx context.Context, id string) (*models.JobRecord, error) {
	var record models.JobRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

// ListRecords returns records newest first.
func (s *RecordStorage) ListRecords(ctx context.Context, opts *interfaces.RecordListOptions) ([]*models.JobRecord, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil && opts.State != "" {
		query = query.And("State").Eq(opts.State)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	result := make([]*models.JobRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *RecordStorage) DeleteRecord(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.JobRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *RecordStorage) CountRecords(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}
