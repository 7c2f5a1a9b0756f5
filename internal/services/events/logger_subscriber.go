package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs job and health events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case models.JobEvent:
			logEvent = logEvent.
				Int64("generation", int64(payload.Generation)).
				Str("state", string(payload.Job.State)).
				Int("progress", payload.Job.Progress)
			if payload.Job.ID != "" {
				logEvent = logEvent.Str("job_id", payload.Job.ID)
			}
			if payload.Job.Error != "" {
				logEvent = logEvent.Str("error", payload.Job.Error)
			}
		case models.HealthStatus:
			logEvent = logEvent.
				Str("status", payload.Status).
				Str("healthy", fmt.Sprintf("%t", payload.Healthy))
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventJobStateChanged,
		interfaces.EventJobCancelled,
		interfaces.EventHealthChecked,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
