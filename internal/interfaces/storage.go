package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/deepscan/internal/models"
)

// JobRecordStorage - interface for job history persistence
type JobRecordStorage interface {
	SaveRecord(ctx context.Context, record *models.JobRecord) error
	GetRecord(ctx context.Context, id string) (*models.JobRecord, error)
	ListRecords(ctx context.Context, opts *RecordListOptions) ([]*models.JobRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	CountRecords(ctx context.Context) (int, error)
}

// RecordListOptions filters history listings
type RecordListOptions struct {
	State  models.JobState
	Limit  int
	Offset int
}

// ErrRecordNotFound is returned when a history record does not exist
var ErrRecordNotFound = errors.New("record not found")

// StorageManager owns the database and its storages
type StorageManager interface {
	JobRecordStorage() JobRecordStorage
	Close() error
}
