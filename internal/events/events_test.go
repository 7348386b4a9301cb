package events

import (
	"errors"
	"testing"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
)

// recv waits briefly for one event; ok is false on timeout.
func recv(ch <-chan Event, wait time.Duration) (Event, bool) {
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(wait):
		return nil, false
	}
}

func TestEventBus_Routing(t *testing.T) {
	tests := []struct {
		name      string
		subscribe EventType
		publish   Event
		want      bool
	}{
		{"notice to notice", EventNotice, NewNoticeEvent("Some files failed to upload"), true},
		{"warning to warning", EventWarning, NewWarningEvent("missing token"), true},
		{"notice not to log", EventLog, NewNoticeEvent("hello"), false},
		{"warning not to notice", EventNotice, NewWarningEvent("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewEventBus(4)
			defer bus.Close()

			ch := bus.Subscribe(tt.subscribe)
			bus.Publish(tt.publish)

			ev, got := recv(ch, 50*time.Millisecond)
			if got != tt.want {
				t.Fatalf("received = %v, want %v", got, tt.want)
			}
			if got && ev != tt.publish {
				t.Errorf("received %v, want the published event", ev)
			}
		})
	}
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	a := bus.Subscribe(EventNotice)
	b := bus.Subscribe(EventNotice)
	all := bus.SubscribeAll()

	bus.Publish(NewNoticeEvent("n"))
	bus.PublishLog(DebugLevel, "l", "", "", nil)

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		if _, ok := recv(ch, 100*time.Millisecond); !ok {
			t.Errorf("subscriber %s missed the notice", name)
		}
	}

	var types []EventType
	for {
		ev, ok := recv(all, 20*time.Millisecond)
		if !ok {
			break
		}
		types = append(types, ev.Type())
	}
	if len(types) != 2 || types[0] != EventNotice || types[1] != EventLog {
		t.Errorf("SubscribeAll received %v, want [notice log]", types)
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventNotice)
	for i := 0; i < 10; i++ {
		bus.Publish(NewNoticeEvent("x"))
	}

	count := 0
	for {
		if _, ok := recv(ch, 10*time.Millisecond); !ok {
			break
		}
		count++
	}

	if count != 2 {
		t.Errorf("received %d events, want 2", count)
	}
	if got := bus.DroppedEvents(); got != 8 {
		t.Errorf("DroppedEvents() = %d, want 8", got)
	}
	if got := bus.ResetDroppedEvents(); got != 8 {
		t.Errorf("ResetDroppedEvents() = %d, want 8", got)
	}
	if got := bus.DroppedEvents(); got != 0 {
		t.Errorf("DroppedEvents() after reset = %d, want 0", got)
	}
}

func TestNewEventBus_ClampsBuffer(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, constants.EventBusDefaultBuffer},
		{-3, constants.EventBusDefaultBuffer},
		{7, 7},
		{constants.EventBusMaxBuffer + 1, constants.EventBusMaxBuffer},
	}
	for _, tt := range tests {
		if got := NewEventBus(tt.in).bufferSize; got != tt.want {
			t.Errorf("NewEventBus(%d).bufferSize = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(4)
	typed := bus.Subscribe(EventNotice)
	all := bus.SubscribeAll()

	bus.Close()
	bus.Close()

	if _, ok := <-typed; ok {
		t.Error("typed channel still open after Close")
	}
	if _, ok := <-all; ok {
		t.Error("SubscribeAll channel still open after Close")
	}

	bus.Publish(NewNoticeEvent("late"))
	bus.Unsubscribe(EventNotice, typed)

	if _, ok := <-bus.Subscribe(EventNotice); ok {
		t.Error("Subscribe after Close returned an open channel")
	}
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(NewNoticeEvent("ignored"))
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	gone := bus.Subscribe(EventNotice)
	kept := bus.Subscribe(EventNotice)
	bus.Unsubscribe(EventNotice, gone)

	bus.Publish(NewNoticeEvent("x"))

	if _, ok := recv(gone, 20*time.Millisecond); ok {
		t.Error("unsubscribed channel received an event")
	}
	if _, ok := recv(kept, 100*time.Millisecond); !ok {
		t.Error("remaining subscriber missed the event")
	}
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	all := bus.SubscribeAll()
	bus.UnsubscribeAll(all)

	bus.Publish(NewWarningEvent("x"))
	if _, ok := recv(all, 20*time.Millisecond); ok {
		t.Error("channel received an event after UnsubscribeAll")
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestPublishLog(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	ch := bus.Subscribe(EventLog)
	cause := errors.New("connection reset")
	bus.PublishLog(ErrorLevel, "Upload failed", "transfer", "tok-1", cause)

	ev, ok := recv(ch, 100*time.Millisecond)
	if !ok {
		t.Fatal("no log event received")
	}
	log, ok := ev.(*LogEvent)
	if !ok {
		t.Fatalf("event = %T, want *LogEvent", ev)
	}
	if log.Level != ErrorLevel || log.Message != "Upload failed" || log.Stage != "transfer" || log.Token != "tok-1" {
		t.Errorf("LogEvent = %+v", log)
	}
	if !errors.Is(log.Error, cause) {
		t.Errorf("Error = %v, want %v", log.Error, cause)
	}
	if log.Timestamp().IsZero() {
		t.Error("Timestamp() is zero")
	}
}
