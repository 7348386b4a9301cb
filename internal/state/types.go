// Package state provides the observable ingest session: the staged file
// list, its parallel upload status list and the keyboard cursor.
// Every mutation publishes an event so any frontend can re-render.
package state

import (
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/events"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Snapshot is a consistent copy of the session. Files and Statuses always
// have the same length and order.
type Snapshot struct {
	Files    []models.StagedFile
	Statuses []models.UploadStatus
	Active   int
	Locked   bool
}

// SelectionChangedEvent is published when the staged list changes.
type SelectionChangedEvent struct {
	events.BaseEvent
	Snapshot
}

// StatusChangedEvent is published when one file's upload status changes.
type StatusChangedEvent struct {
	events.BaseEvent
	Index  int
	Status models.UploadStatus
}

// CursorMovedEvent is published when the active index changes.
type CursorMovedEvent struct {
	events.BaseEvent
	Active int
}

// RejectionEvent carries the single notice chosen for a batch's rejected files.
type RejectionEvent struct {
	events.BaseEvent
	Message    string
	Rejections []models.FileRejection
}

// NewSelectionChangedEvent creates a new SelectionChangedEvent.
func NewSelectionChangedEvent(snap Snapshot) *SelectionChangedEvent {
	return &SelectionChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventSelectionChanged,
			Time:      time.Now(),
		},
		Snapshot: snap,
	}
}

// NewStatusChangedEvent creates a new StatusChangedEvent.
func NewStatusChangedEvent(index int, status models.UploadStatus) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventStatusChanged,
			Time:      time.Now(),
		},
		Index:  index,
		Status: status,
	}
}

// NewCursorMovedEvent creates a new CursorMovedEvent.
func NewCursorMovedEvent(active int) *CursorMovedEvent {
	return &CursorMovedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventCursorMoved,
			Time:      time.Now(),
		},
		Active: active,
	}
}

// NewRejectionEvent creates a new RejectionEvent.
func NewRejectionEvent(message string, rejections []models.FileRejection) *RejectionEvent {
	return &RejectionEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventRejection,
			Time:      time.Now(),
		},
		Message:    message,
		Rejections: rejections,
	}
}
