package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/aggregator"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
)

// DefaultPollInterval is the fixed delay between status polls.
const DefaultPollInterval = 2 * time.Second

// step tells the poll task what to do after a snapshot has been applied.
type step int

const (
	stepContinue step = iota
	stepFetch
	stepStop
)

// Controller drives one detection job at a time through
// submit -> poll -> fetch -> aggregate.
//
// Every submission runs under a generation number. Cancel and Reset bump the
// generation, so responses that arrive for an older generation are dropped
// instead of being applied to the current job.
//
// Events are published synchronously and in transition order. Handlers must
// work from the event payload and not call back into the controller.
type Controller struct {
	client       interfaces.DetectorClient
	eventService interfaces.EventService // Optional: may be nil for testing
	logger       arbor.ILogger
	interval     time.Duration
	aggregate    func(*models.AnalysisResult) (*models.DerivedStatistics, error)
	now          func() time.Time

	mu         sync.Mutex
	job        models.Job
	result     *models.AnalysisResult
	stats      *models.DerivedStatistics
	lastErr    error
	generation uint64
	cancel     context.CancelFunc
	changed    chan struct{}

	publishMu sync.Mutex
}

// ControllerOption configures the Controller.
type ControllerOption func(*Controller)

// WithPollInterval sets the delay between status polls.
func WithPollInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithEventService publishes state changes on the given bus.
func WithEventService(eventService interfaces.EventService) ControllerOption {
	return func(c *Controller) {
		c.eventService = eventService
	}
}

// WithPreviewFrames sets how many frames the derived preview carries.
func WithPreviewFrames(n int) ControllerOption {
	return func(c *Controller) {
		c.aggregate = func(result *models.AnalysisResult) (*models.DerivedStatistics, error) {
			return aggregator.AggregateWithOptions(result, aggregator.Options{PreviewFrames: n})
		}
	}
}

// NewController creates an idle controller.
func NewController(client interfaces.DetectorClient, logger arbor.ILogger, opts ...ControllerOption) *Controller {
	c := &Controller{
		client:    client,
		logger:    logger,
		interval:  DefaultPollInterval,
		aggregate: aggregator.Aggregate,
		now:       time.Now,
		job:       models.NewIdleJob(),
		changed:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Submit starts a new job for the file at path and returns immediately.
// Allowed from idle, completed and failed; a finished job is replaced.
func (c *Controller) Submit(path string) error {
	c.mu.Lock()
	if c.job.State.IsActive() {
		state := c.job.State
		c.mu.Unlock()
		return &models.PreconditionError{
			Op:      "submit",
			Message: fmt.Sprintf("job is %s; cancel it before submitting another", state),
		}
	}

	gen, ctx := c.beginGenerationLocked()
	now := c.now()
	c.job = models.Job{
		State:       models.JobStateSubmitting,
		Filename:    filepath.Base(path),
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	c.result, c.stats, c.lastErr = nil, nil, nil

	c.logger.Info().
		Str("filename", c.job.Filename).
		Int64("generation", int64(gen)).
		Msg("Submitting video for analysis")

	c.commitLocked(gen)

	common.SafeGo(c.logger, "job-run", func() {
		c.run(ctx, gen, path)
	})

	return nil
}

// Cancel abandons the current job from any state and returns to idle.
// In-flight requests are cancelled and their late responses ignored.
func (c *Controller) Cancel() {
	c.abandon("cancel")
}

// Reset discards a finished job and its results and returns to idle.
// On an active job it behaves like Cancel.
func (c *Controller) Reset() {
	c.abandon("reset")
}

// Job returns a copy of the tracked job.
func (c *Controller) Job() models.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Result returns the raw result and derived statistics once completed.
func (c *Controller) Result() (*models.AnalysisResult, *models.DerivedStatistics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.State != models.JobStateCompleted {
		return nil, nil, false
	}
	return c.result, c.stats, true
}

// LastError returns the error that ended the last submission, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// StageMessage describes the current job for display.
func (c *Controller) StageMessage() string {
	return StageMessage(c.Job())
}

// Wait blocks until no submission or poll is in progress, then returns the
// job and the error that ended it (nil on completion or cancellation).
// Subscribers have received the event for the returned state by the time
// Wait returns.
func (c *Controller) Wait(ctx context.Context) (models.Job, error) {
	for {
		c.mu.Lock()
		if !c.job.State.IsActive() {
			job, err := c.job, c.lastErr
			c.mu.Unlock()

			// The committing goroutine holds publishMu until its event is delivered
			c.publishMu.Lock()
			c.publishMu.Unlock()
			return job, err
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return c.Job(), ctx.Err()
		}
	}
}

// run performs the upload and then drives the poll task for one generation.
func (c *Controller) run(ctx context.Context, gen uint64, path string) {
	submission, err := c.client.Submit(ctx, path)

	c.mu.Lock()
	if !c.currentLocked(gen, "submit") {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if err != nil {
		c.logger.Warn().Err(err).Str("filename", c.job.Filename).Msg("Video submission failed")
		c.job = models.NewIdleJob()
		c.job.UpdatedAt = now
		c.lastErr = err
		c.commitLocked(gen)
		return
	}

	c.job.ID = submission.JobID
	c.job.State = models.JobStateQueued
	c.job.Progress = 0
	c.job.UpdatedAt = now
	c.logger.Info().Str("job_id", submission.JobID).Msg("Job queued on detection service")
	c.commitLocked(gen)

	c.pollLoop(ctx, gen, submission.JobID)
}

// pollLoop issues one poll at a time; the next is scheduled only after the
// previous response has been applied.
func (c *Controller) pollLoop(ctx context.Context, gen uint64, jobID string) {
	var delay time.Duration
	for {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		snapshot, err := c.client.PollStatus(ctx, jobID)

		switch c.applySnapshot(gen, snapshot, err) {
		case stepContinue:
			delay = c.interval
		case stepFetch:
			c.fetch(ctx, gen, jobID)
			return
		default:
			return
		}
	}
}

func (c *Controller) applySnapshot(gen uint64, snapshot *models.Snapshot, err error) step {
	c.mu.Lock()
	if !c.currentLocked(gen, "poll") {
		c.mu.Unlock()
		return stepStop
	}

	if err != nil {
		c.failLocked(err)
		c.commitLocked(gen)
		return stepStop
	}

	c.job.UpdatedAt = c.now()
	if snapshot.Filename != "" && c.job.Filename == "" {
		c.job.Filename = snapshot.Filename
	}

	next := stepContinue
	switch snapshot.State {
	case models.JobStateQueued:
		// A queued report after processing is tolerated without moving back
		c.job.Progress = snapshot.Progress
	case models.JobStateProcessing:
		c.job.State = models.JobStateProcessing
		c.job.Progress = snapshot.Progress
	case models.JobStateCompleted:
		c.job.Progress = 100
		next = stepFetch
	case models.JobStateFailed:
		message := snapshot.Error
		if message == "" {
			message = "Analysis failed"
		}
		c.failLocked(fmt.Errorf("analysis failed: %s", message))
		c.job.Error = message
		c.job.Progress = snapshot.Progress
		next = stepStop
	default:
		c.failLocked(&models.IntegrityError{Field: "status", Message: fmt.Sprintf("unexpected state %q", snapshot.State)})
		next = stepStop
	}

	c.commitLocked(gen)
	return next
}

// fetch retrieves and aggregates the results exactly once.
func (c *Controller) fetch(ctx context.Context, gen uint64, jobID string) {
	result, err := c.client.FetchResults(ctx, jobID)

	var stats *models.DerivedStatistics
	if err == nil {
		stats, err = c.aggregate(result)
	}

	c.mu.Lock()
	if !c.currentLocked(gen, "fetch") {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.failLocked(err)
		c.commitLocked(gen)
		return
	}

	c.result = result
	c.stats = stats
	c.job.State = models.JobStateCompleted
	c.job.Progress = 100
	c.job.UpdatedAt = c.now()

	c.logger.Info().
		Str("job_id", jobID).
		Str("prediction", string(result.OverallPrediction)).
		Float64("fake_percentage", result.FakePercentage).
		Int("frames", result.TotalFramesAnalyzed).
		Msg("Analysis completed")

	c.commitLocked(gen)
}

func (c *Controller) abandon(op string) {
	c.mu.Lock()
	previous := c.job
	wasActive := previous.State.IsActive()

	if previous.State == models.JobStateIdle && c.cancel == nil {
		c.result, c.stats, c.lastErr = nil, nil, nil
		c.mu.Unlock()
		return
	}

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	gen := c.generation

	c.job = models.NewIdleJob()
	c.job.UpdatedAt = c.now()
	c.result, c.stats, c.lastErr = nil, nil, nil

	c.logger.Info().
		Str("op", op).
		Str("job_id", previous.ID).
		Str("previous_state", string(previous.State)).
		Msg("Job abandoned, controller idle")

	var cancelled *models.JobEvent
	if wasActive {
		previous.State = models.JobStateCancelled
		previous.UpdatedAt = c.job.UpdatedAt
		cancelled = &models.JobEvent{Generation: gen - 1, Job: previous, Stage: StageMessage(previous)}
	}

	c.notifyLocked()
	event := c.eventLocked(gen)

	c.publishMu.Lock()
	c.mu.Unlock()
	defer c.publishMu.Unlock()

	if cancelled != nil {
		c.publish(interfaces.EventJobCancelled, *cancelled)
	}
	c.publish(interfaces.EventJobStateChanged, event)
}

// beginGenerationLocked starts a new generation with its own request context.
func (c *Controller) beginGenerationLocked() (uint64, context.Context) {
	c.generation++
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	return c.generation, ctx
}

// currentLocked reports whether gen is still the live generation.
func (c *Controller) currentLocked(gen uint64, op string) bool {
	if gen == c.generation {
		return true
	}
	c.logger.Debug().
		Str("op", op).
		Int64("generation", int64(gen)).
		Int64("current_generation", int64(c.generation)).
		Msg("Discarding response for abandoned job")
	return false
}

func (c *Controller) failLocked(err error) {
	c.logger.Warn().Err(err).Str("job_id", c.job.ID).Msg("Job failed")
	c.job.State = models.JobStateFailed
	c.job.Error = err.Error()
	c.job.UpdatedAt = c.now()
	c.lastErr = err
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// commitLocked wakes waiters and publishes the new state, then releases c.mu.
// Publication is serialised so subscribers observe transitions in order.
func (c *Controller) commitLocked(gen uint64) {
	if !c.job.State.IsActive() && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.notifyLocked()
	event := c.eventLocked(gen)

	c.publishMu.Lock()
	c.mu.Unlock()
	defer c.publishMu.Unlock()

	c.publish(interfaces.EventJobStateChanged, event)
}

func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller) eventLocked(gen uint64) models.JobEvent {
	event := models.JobEvent{
		Generation: gen,
		Job:        c.job,
		Stage:      StageMessage(c.job),
	}
	if c.lastErr != nil {
		event.Error = c.lastErr.Error()
	}
	if c.job.State == models.JobStateCompleted {
		event.Result = c.result
		event.Statistics = c.stats
	}
	return event
}

func (c *Controller) publish(eventType interfaces.EventType, payload models.JobEvent) {
	if c.eventService == nil {
		return
	}
	if err := c.eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Job event handler failed")
	}
}
