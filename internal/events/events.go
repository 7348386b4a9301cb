package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// eventAny keys subscribers that receive every event type
	eventAny EventType = "*"

	// Selection and status events, published by the ingest session
	EventSelectionChanged EventType = "selection_changed" // Staged file list changed
	EventStatusChanged    EventType = "status_changed"    // One file's upload stage changed
	EventCursorMoved      EventType = "cursor_moved"      // Keyboard focus moved
	EventRejection        EventType = "rejection"         // A batch had rejected files

	// Orchestrator events
	EventStepStarted    EventType = "step_started"    // A pipeline step began for one file
	EventUploadComplete EventType = "upload_complete" // Every pipeline in a batch settled
	EventNotice         EventType = "notice"          // User-visible, non-blocking message
	EventWarning        EventType = "warning"         // Initialization or configuration warning
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Stage   string
	Token   string
	Error   error
}

// NoticeEvent is a user-visible message that does not block interaction
type NoticeEvent struct {
	BaseEvent
	Message string
}

// WarningEvent is published for recoverable setup problems, such as a missing token
type WarningEvent struct {
	BaseEvent
	Message string
}

// NewNoticeEvent creates a new NoticeEvent.
func NewNoticeEvent(message string) *NoticeEvent {
	return &NoticeEvent{
		BaseEvent: BaseEvent{EventType: EventNotice, Time: time.Now()},
		Message:   message,
	}
}

// NewWarningEvent creates a new WarningEvent.
func NewWarningEvent(message string) *WarningEvent {
	return &WarningEvent{
		BaseEvent: BaseEvent{EventType: EventWarning, Time: time.Now()},
		Message:   message,
	}
}

// EventBus fans events out to buffered subscriber channels. Publishing
// never blocks: an event for a full channel is dropped and counted.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[EventType][]chan Event
	bufferSize int
	closed     bool
	dropped    atomic.Int64
}

// NewEventBus creates a bus whose channels buffer bufferSize events.
// Out-of-range sizes are clamped to the package defaults.
func NewEventBus(bufferSize int) *EventBus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.EventBusDefaultBuffer
	case bufferSize > constants.EventBusMaxBuffer:
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subs:       make(map[EventType][]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel receiving events of one type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	return eb.subscribe(eventType)
}

// SubscribeAll returns a channel receiving every event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.subscribe(eventAny)
}

// subscribe registers a channel under key. After Close it returns a
// closed channel so range loops end at once.
func (eb *EventBus) subscribe(key EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.bufferSize)
	eb.subs[key] = append(eb.subs[key], ch)
	return ch
}

// Publish delivers event to its type's subscribers and to SubscribeAll
// channels. Safe on a nil bus.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	eb.deliver(eb.subs[event.Type()], event)
	eb.deliver(eb.subs[eventAny], event)
}

func (eb *EventBus) deliver(chans []chan Event, event Event) {
	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, chans := range eb.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
}

// PublishLog publishes a LogEvent.
func (eb *EventBus) PublishLog(level LogLevel, message, stage, token string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		Stage:     stage,
		Token:     token,
		Error:     err,
	})
}

// Unsubscribe detaches ch from eventType. The channel is not closed.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.removeLocked(eventType, ch)
}

// UnsubscribeAll detaches ch wherever it is registered.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for key := range eb.subs {
		eb.removeLocked(key, ch)
	}
}

func (eb *EventBus) removeLocked(key EventType, ch <-chan Event) {
	if eb.closed {
		return
	}
	chans := eb.subs[key]
	for i, c := range chans {
		if c == ch {
			eb.subs[key] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

// DroppedEvents returns how many events were dropped on full channels.
func (eb *EventBus) DroppedEvents() int64 {
	return eb.dropped.Load()
}

// ResetDroppedEvents zeroes the dropped counter and returns its old value.
func (eb *EventBus) ResetDroppedEvents() int64 {
	return eb.dropped.Swap(0)
}
