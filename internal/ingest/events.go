package ingest

import (
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/events"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// User-visible messages published by the orchestrator
const (
	UploadFailedMessage = constants.UploadFailedMessage
	BatchFailedNotice   = constants.BatchFailedNotice
	MissingAuthWarning  = constants.MissingAuthWarning
)

// StepStartedEvent is published as a pipeline step begins for one file.
type StepStartedEvent struct {
	events.BaseEvent
	Token string
	Step  Step
}

// UploadCompleteEvent is published once per batch after every pipeline settled.
type UploadCompleteEvent struct {
	events.BaseEvent
	Results []models.IngestionResult
	Failed  int
}

// NewStepStartedEvent creates a new StepStartedEvent.
func NewStepStartedEvent(token string, step Step) *StepStartedEvent {
	return &StepStartedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventStepStarted,
			Time:      time.Now(),
		},
		Token: token,
		Step:  step,
	}
}

// NewUploadCompleteEvent creates a new UploadCompleteEvent.
func NewUploadCompleteEvent(results []models.IngestionResult, failed int) *UploadCompleteEvent {
	return &UploadCompleteEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventUploadComplete,
			Time:      time.Now(),
		},
		Results: results,
		Failed:  failed,
	}
}

// PublishSteps returns a ProgressFunc that publishes a StepStartedEvent per
// step, then calls next if set.
func PublishSteps(bus *events.EventBus, next ProgressFunc) ProgressFunc {
	return func(token string, step Step) {
		bus.Publish(NewStepStartedEvent(token, step))
		if next != nil {
			next(token, step)
		}
	}
}
