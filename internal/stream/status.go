package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// EventKind classifies a status event
type EventKind string

const (
	EventListening      EventKind = "listening"
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
	EventConnectFailure EventKind = "connect_failure"
	EventConnectionLost EventKind = "connection_lost"
	EventDecodeError    EventKind = "decode_error"
	EventCaptureFailure EventKind = "capture_failure"
	EventFrameTooLarge  EventKind = "frame_too_large"
	EventError          EventKind = "error"
)

// Event is a single status report from a server or client loop
type Event struct {
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	Remote  string    `json:"remote,omitempty"`
}

// StatusSink receives status events. Implementations must not block.
type StatusSink interface {
	Report(ev Event)
}

// StatusFunc adapts a function to StatusSink
type StatusFunc func(ev Event)

// Report calls f(ev)
func (f StatusFunc) Report(ev Event) {
	f(ev)
}

type discardStatus struct{}

func (discardStatus) Report(Event) {}

// KindOf maps an error to the event kind it should be reported as.
func KindOf(err error) EventKind {
	switch {
	case errors.Is(err, protocol.ErrConnectFailure):
		return EventConnectFailure
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return EventFrameTooLarge
	case errors.Is(err, protocol.ErrConnectionLost):
		return EventConnectionLost
	case errors.Is(err, protocol.ErrDecode):
		return EventDecodeError
	case errors.Is(err, protocol.ErrCaptureFailure):
		return EventCaptureFailure
	default:
		return EventError
	}
}

// ErrorEvent builds an event describing err
func ErrorEvent(err error, remote string) Event {
	return Event{
		Time:    time.Now(),
		Kind:    KindOf(err),
		Message: err.Error(),
		Remote:  remote,
	}
}

// StatusLog keeps the most recent events and fans them out to subscribers.
type StatusLog struct {
	mu          sync.RWMutex
	events      []Event
	limit       int
	subscribers map[chan Event]struct{}
}

// NewStatusLog returns a log that retains up to limit events
func NewStatusLog(limit int) *StatusLog {
	if limit <= 0 {
		limit = 100
	}
	return &StatusLog{
		limit:       limit,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Report records ev and forwards it to subscribers. Slow subscribers miss
// events rather than stall the loop.
func (l *StatusLog) Report(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	if len(l.events) > l.limit {
		l.events = l.events[len(l.events)-l.limit:]
	}
	for ch := range l.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	l.mu.Unlock()
}

// Events returns a copy of the retained events, oldest first
func (l *StatusLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Subscribe returns a channel receiving future events
func (l *StatusLog) Subscribe() chan Event {
	ch := make(chan Event, 16)
	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch
func (l *StatusLog) Unsubscribe(ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.subscribers[ch]; ok {
		delete(l.subscribers, ch)
		close(ch)
	}
}
