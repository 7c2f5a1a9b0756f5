// Package history keeps a persistent record of every submission the
// controller has driven, built from job events.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Service records job events into JobRecordStorage
type Service struct {
	storage      interfaces.JobRecordStorage
	eventService interfaces.EventService
	logger       arbor.ILogger

	mu      sync.Mutex
	records map[uint64]string // generation -> record id
}

// NewService creates a history service; call Start to begin recording
func NewService(storage interfaces.JobRecordStorage, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		storage:      storage,
		eventService: eventService,
		logger:       logger,
		records:      make(map[uint64]string),
	}
}

// Start subscribes to job events
func (s *Service) Start() error {
	if err := s.eventService.Subscribe(interfaces.EventJobStateChanged, s.handleStateChanged); err != nil {
		return fmt.Errorf("failed to subscribe to job state changes: %w", err)
	}
	if err := s.eventService.Subscribe(interfaces.EventJobCancelled, s.handleCancelled); err != nil {
		return fmt.Errorf("failed to subscribe to job cancellations: %w", err)
	}
	s.logger.Debug().Msg("Job history recording started")
	return nil
}

// List returns the most recent records, newest first
func (s *Service) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.storage.ListRecords(ctx, &interfaces.RecordListOptions{Limit: limit})
}

// Get returns one record by id
func (s *Service) Get(ctx context.Context, id string) (*models.JobRecord, error) {
	return s.storage.GetRecord(ctx, id)
}

func (s *Service) handleStateChanged(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(models.JobEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event.Payload)
	}

	if payload.Job.State == models.JobStateIdle {
		// Idle with an error means the upload was rejected
		if payload.Error == "" {
			return nil
		}
		return s.update(ctx, payload.Generation, func(r *models.JobRecord) bool {
			if r.State.IsTerminal() {
				return false
			}
			r.State = models.JobStateFailed
			r.Error = payload.Error
			return true
		})
	}

	if payload.Job.State == models.JobStateSubmitting {
		return s.create(ctx, payload)
	}

	return s.update(ctx, payload.Generation, func(r *models.JobRecord) bool {
		apply(r, payload)
		return true
	})
}

func (s *Service) handleCancelled(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(models.JobEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event.Payload)
	}

	return s.update(ctx, payload.Generation, func(r *models.JobRecord) bool {
		apply(r, payload)
		return true
	})
}

func (s *Service) create(ctx context.Context, event models.JobEvent) error {
	now := event.Job.SubmittedAt
	if now.IsZero() {
		now = time.Now()
	}
	record := &models.JobRecord{
		ID:        models.NewJobRecordID(),
		Filename:  event.Job.Filename,
		State:     event.Job.State,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveRecord(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("record_id", record.ID).Msg("Failed to save job record")
		return err
	}

	s.mu.Lock()
	s.records[event.Generation] = record.ID
	s.mu.Unlock()
	return nil
}

// update loads the record for a generation, applies fn and saves it if fn reports a change.
func (s *Service) update(ctx context.Context, generation uint64, fn func(*models.JobRecord) bool) error {
	s.mu.Lock()
	id, ok := s.records[generation]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	record, err := s.storage.GetRecord(ctx, id)
	if err != nil {
		s.forget(generation)
		s.logger.Warn().Err(err).Str("record_id", id).Msg("Failed to load job record")
		return err
	}

	if !fn(record) {
		return nil
	}
	record.UpdatedAt = time.Now()

	// No further events arrive for a finished generation
	final := record.State.IsTerminal() || record.State == models.JobStateCancelled
	if final {
		s.forget(generation)
	}

	if err := s.storage.SaveRecord(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("record_id", id).Msg("Failed to save job record")
		return err
	}

	if final {
		s.logger.Debug().
			Str("record_id", id).
			Str("state", string(record.State)).
			Msg("Job record finalised")
	}
	return nil
}

// forget drops the generation's record mapping
func (s *Service) forget(generation uint64) {
	s.mu.Lock()
	delete(s.records, generation)
	s.mu.Unlock()
}

func apply(r *models.JobRecord, event models.JobEvent) {
	job := event.Job
	r.State = job.State
	r.Progress = job.Progress
	if job.ID != "" {
		r.RemoteJobID = job.ID
	}
	if job.Error != "" {
		r.Error = job.Error
	}

	switch job.State {
	case models.JobStateCompleted, models.JobStateFailed, models.JobStateCancelled:
		if r.CompletedAt == nil {
			now := time.Now()
			r.CompletedAt = &now
		}
	}

	if job.State == models.JobStateCompleted && event.Result != nil {
		r.OverallPrediction = event.Result.OverallPrediction
		r.FakePercentage = event.Result.FakePercentage
		r.TotalFrames = event.Result.TotalFramesAnalyzed
	}
}
