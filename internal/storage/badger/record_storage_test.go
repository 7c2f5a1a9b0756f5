package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestRecordStorage(t *testing.T) interfaces.JobRecordStorage {
	t.Helper()
	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewRecordStorage(&BadgerDB{store: store}, arbor.NewLogger())
}

func TestRecordStorage_SaveAndGet(t *testing.T) {
	storage := newTestRecordStorage(t)
	ctx := context.Background()

	record := &models.JobRecord{
		ID:          "rec_1",
		RemoteJobID: "job-1",
		Filename:    "clip.mp4",
		State:       models.JobStateProcessing,
		Progress:    40,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, storage.SaveRecord(ctx, record))

	record.State = models.JobStateCompleted
	record.Progress = 100
	record.OverallPrediction = models.PredictionFake
	require.NoError(t, storage.SaveRecord(ctx, record))

	got, err := storage.GetRecord(ctx, "rec_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, got.State)
	assert.Equal(t, models.PredictionFake, got.OverallPrediction)
	assert.Equal(t, "job-1", got.RemoteJobID)

	count, err := storage.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordStorage_GetMissing(t *testing.T) {
	storage := newTestRecordStorage(t)

	_, err := storage.GetRecord(context.Background(), "rec_missing")

	assert.True(t, errors.Is(err, interfaces.ErrRecordNotFound))
}

func TestRecordStorage_ListNewestFirstWithFilter(t *testing.T) {
	storage := newTestRecordStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		state := models.JobStateCompleted
		if i%2 == 1 {
			state = models.JobStateFailed
		}
		require.NoError(t, storage.SaveRecord(ctx, &models.JobRecord{
			ID:        fmt.Sprintf("rec_%d", i),
			State:     state,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := storage.ListRecords(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "rec_4", all[0].ID)
	assert.Equal(t, "rec_0", all[4].ID)

	limited, err := storage.ListRecords(ctx, &interfaces.RecordListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "rec_3", limited[0].ID)
	assert.Equal(t, "rec_2", limited[1].ID)

	failed, err := storage.ListRecords(ctx, &interfaces.RecordListOptions{State: models.JobStateFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestRecordStorage_Delete(t *testing.T) {
	storage := newTestRecordStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveRecord(ctx, &models.JobRecord{ID: "rec_1", CreatedAt: time.Now()}))
	require.NoError(t, storage.DeleteRecord(ctx, "rec_1"))
	require.NoError(t, storage.DeleteRecord(ctx, "rec_1"))

	count, err := storage.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Error(t, storage.SaveRecord(ctx, &models.JobRecord{}))
}
