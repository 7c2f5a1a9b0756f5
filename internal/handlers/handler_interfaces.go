package handlers

import (
	"context"
	"os"

	"github.com/ternarybob/deepscan/internal/models"
)

// JobController defines the controller operations exposed over HTTP.
type JobController interface {
	Submit(path string) error
	Cancel()
	Reset()
	Job() models.Job
	Result() (*models.AnalysisResult, *models.DerivedStatistics, bool)
	LastError() error
	StageMessage() string
}

// UploadChecker defines the local pre-upload check.
type UploadChecker interface {
	Check(path string) (os.FileInfo, error)
}

// HistoryLister defines read access to job history.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]*models.JobRecord, error)
	Get(ctx context.Context, id string) (*models.JobRecord, error)
}

// HealthProber defines an on-demand health probe.
type HealthProber interface {
	Check(ctx context.Context) (models.HealthStatus, error)
}
