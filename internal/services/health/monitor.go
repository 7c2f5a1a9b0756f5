// Package health probes the detection service on a cron schedule.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
)

// Checker is the part of the detector client the monitor needs.
type Checker interface {
	HealthCheck(ctx context.Context) (*models.HealthStatus, error)
}

// Monitor runs health probes on a schedule and remembers the last outcome
type Monitor struct {
	checker      Checker
	eventService interfaces.EventService // Optional
	logger       arbor.ILogger
	schedule     string
	timeout      time.Duration

	cron    *cron.Cron
	mu      sync.RWMutex
	last    *models.HealthStatus
	lastErr error
	running bool
}

// NewMonitor creates a monitor for the given cron schedule, e.g. "@every 30s"
func NewMonitor(checker Checker, eventService interfaces.EventService, logger arbor.ILogger, schedule string, timeout time.Duration) *Monitor {
	return &Monitor{
		checker:      checker,
		eventService: eventService,
		logger:       logger,
		schedule:     schedule,
		timeout:      timeout,
		cron:         cron.New(),
	}
}

// Start registers the probe and runs the first one immediately
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("health monitor already running")
	}
	if err := common.ValidateHealthSchedule(m.schedule); err != nil {
		return err
	}

	if _, err := m.cron.AddFunc(m.schedule, func() {
		m.Check(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule health check: %w", err)
	}

	m.cron.Start()
	m.running = true

	common.SafeGo(m.logger, "health-initial-check", func() {
		m.Check(context.Background())
	})

	m.logger.Info().Str("schedule", m.schedule).Msg("Health monitor started")
	return nil
}

// Stop halts the schedule and waits for a running probe to finish
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	<-m.cron.Stop().Done()
	m.logger.Debug().Msg("Health monitor stopped")
}

// Check probes the service once. An unreachable service yields an
// unhealthy status together with the error.
func (m *Monitor) Check(ctx context.Context) (models.HealthStatus, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	status, err := m.checker.HealthCheck(ctx)
	if err != nil {
		status = &models.HealthStatus{Status: "unreachable", Healthy: false, CheckedAt: time.Now()}
	}

	m.mu.Lock()
	changed := m.last == nil || m.last.Healthy != status.Healthy
	m.last = status
	m.lastErr = err
	m.mu.Unlock()

	switch {
	case err != nil && changed:
		m.logger.Warn().Err(err).Msg("Detection service unreachable")
	case changed:
		m.logger.Info().Str("status", status.Status).Msg("Detection service health changed")
	}

	if m.eventService != nil {
		if pubErr := m.eventService.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventHealthChecked,
			Payload: *status,
		}); pubErr != nil {
			m.logger.Warn().Err(pubErr).Msg("Failed to publish health event")
		}
	}

	return *status, err
}

// Last returns the most recent probe outcome; ok is false before the first probe
func (m *Monitor) Last() (models.HealthStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return models.HealthStatus{}, false
	}
	return *m.last, true
}

// LastError returns the error of the most recent probe
func (m *Monitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
