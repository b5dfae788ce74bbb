package stream

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want EventKind
	}{
		{fmt.Errorf("dial: %w", protocol.ErrConnectFailure), EventConnectFailure},
		{fmt.Errorf("read: %w", protocol.ErrConnectionLost), EventConnectionLost},
		{fmt.Errorf("x: %w", protocol.ErrDecode), EventDecodeError},
		{protocol.ErrCaptureFailure, EventCaptureFailure},
		{protocol.ErrFrameTooLarge, EventFrameTooLarge},
		{errors.New("other"), EventError},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStatusLogRetainsLimit(t *testing.T) {
	l := NewStatusLog(3)
	for i := 0; i < 5; i++ {
		l.Report(Event{Kind: EventError, Message: fmt.Sprint(i)})
	}

	events := l.Events()
	if len(events) != 3 {
		t.Fatalf("len(Events()) = %d, want 3", len(events))
	}
	if events[0].Message != "2" || events[2].Message != "4" {
		t.Errorf("events = %+v", events)
	}
	if events[0].Time.IsZero() {
		t.Error("Report did not stamp the event time")
	}
}

func TestStatusLogSubscribe(t *testing.T) {
	l := NewStatusLog(10)
	ch := l.Subscribe()

	l.Report(Event{Kind: EventConnected})
	ev := <-ch
	if ev.Kind != EventConnected {
		t.Errorf("received %v", ev.Kind)
	}

	l.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
	l.Unsubscribe(ch)
	l.Report(Event{Kind: EventError})
}
