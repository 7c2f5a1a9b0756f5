package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/services/events"
	"github.com/ternarybob/deepscan/internal/storage/badger"
)

func newTestService(t *testing.T) (*Service, interfaces.EventService) {
	t.Helper()
	logger := arbor.NewLogger()

	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir() + "/history"})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	eventService := events.NewService(logger)
	svc := NewService(manager.JobRecordStorage(), eventService, logger)
	require.NoError(t, svc.Start())
	return svc, eventService
}

// tracked returns how many generations still have an open record
func tracked(svc *Service) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.records)
}

func publish(t *testing.T, svc interfaces.EventService, eventType interfaces.EventType, event models.JobEvent) {
	t.Helper()
	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: eventType, Payload: event}))
}

func TestHistory_RecordsCompletedJob(t *testing.T) {
	svc, bus := newTestService(t)
	submitted := time.Now()

	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 1, Job: models.Job{State: models.JobStateSubmitting, Filename: "clip.mp4", SubmittedAt: submitted}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 1, Job: models.Job{ID: "job-1", State: models.JobStateQueued, Filename: "clip.mp4"}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 1, Job: models.Job{ID: "job-1", State: models.JobStateProcessing, Progress: 50, Filename: "clip.mp4"}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{
		Generation: 1,
		Job:        models.Job{ID: "job-1", State: models.JobStateCompleted, Progress: 100, Filename: "clip.mp4"},
		Result:     &models.AnalysisResult{OverallPrediction: models.PredictionFake, FakePercentage: 75, TotalFramesAnalyzed: 4},
	})

	records, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "job-1", record.RemoteJobID)
	assert.Equal(t, "clip.mp4", record.Filename)
	assert.Equal(t, models.JobStateCompleted, record.State)
	assert.Equal(t, 100, record.Progress)
	assert.Equal(t, models.PredictionFake, record.OverallPrediction)
	assert.Equal(t, 4, record.TotalFrames)
	assert.NotNil(t, record.CompletedAt)

	got, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	assert.Equal(t, 0, tracked(svc))
}

func TestHistory_RecordsCancellationAndRejectedUpload(t *testing.T) {
	svc, bus := newTestService(t)

	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 1, Job: models.Job{State: models.JobStateSubmitting, Filename: "a.mp4", SubmittedAt: time.Now().Add(-time.Minute)}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 1, Job: models.Job{ID: "job-a", State: models.JobStateProcessing, Progress: 30}})
	publish(t, bus, interfaces.EventJobCancelled, models.JobEvent{Generation: 1, Job: models.Job{ID: "job-a", State: models.JobStateCancelled, Progress: 30}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 2, Job: models.NewIdleJob()})
	assert.Equal(t, 0, tracked(svc))

	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 3, Job: models.Job{State: models.JobStateSubmitting, Filename: "notes.txt", SubmittedAt: time.Now()}})
	publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: 3, Job: models.NewIdleJob(), Error: "unsupported file type"})

	records, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "notes.txt", records[0].Filename)
	assert.Equal(t, models.JobStateFailed, records[0].State)
	assert.Equal(t, "unsupported file type", records[0].Error)

	assert.Equal(t, "a.mp4", records[1].Filename)
	assert.Equal(t, models.JobStateCancelled, records[1].State)
	assert.Equal(t, "job-a", records[1].RemoteJobID)

	assert.Equal(t, 0, tracked(svc))
}

func TestHistory_OpenRecordsDoNotAccumulate(t *testing.T) {
	svc, bus := newTestService(t)

	for gen := uint64(1); gen <= 10; gen++ {
		publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: gen, Job: models.Job{State: models.JobStateSubmitting, Filename: "clip.mp4", SubmittedAt: time.Now()}})
		assert.Equal(t, 1, tracked(svc))
		publish(t, bus, interfaces.EventJobStateChanged, models.JobEvent{Generation: gen, Job: models.Job{ID: "job-1", State: models.JobStateFailed, Error: "Could not open video file"}})
		assert.Equal(t, 0, tracked(svc))
	}

	records, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}
