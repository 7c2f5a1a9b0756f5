package interfaces

import (
	"context"

	"github.com/ternarybob/deepscan/internal/models"
)

// DetectorClient is the typed boundary to the remote detection service.
// Implementations never retry; they return the most specific error.
type DetectorClient interface {
	// Submit validates the file locally and uploads it
	Submit(ctx context.Context, path string) (*models.Submission, error)

	// PollStatus returns the current snapshot of a remote job
	PollStatus(ctx context.Context, jobID string) (*models.Snapshot, error)

	// FetchResults returns the terminal payload of a completed job
	FetchResults(ctx context.Context, jobID string) (*models.AnalysisResult, error)

	// HealthCheck probes service liveness
	HealthCheck(ctx context.Context) (*models.HealthStatus, error)
}
