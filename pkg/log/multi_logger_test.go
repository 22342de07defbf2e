package log

import (
	"testing"
	"time"
)

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	loggers := []*recordingLogger{{}, {}, {}}
	multi := NewMultiLogger(loggers[0], nil, loggers[1], loggers[2])

	if multi.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", multi.Len())
	}

	multi.Log(Event{
		Timestamp:  time.Now(),
		DeviceAddr: "02:00:00:00:00:00",
		Layer:      LayerUSD,
		Category:   CategoryState,
	})

	for i, l := range loggers {
		if len(l.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(l.events))
			continue
		}
		if l.events[0].DeviceAddr != "02:00:00:00:00:00" {
			t.Errorf("logger %d: DeviceAddr = %q", i, l.events[0].DeviceAddr)
		}
	}
}

func TestCombine(t *testing.T) {
	if got := Combine(); got != nil {
		t.Errorf("Combine() = %v, want nil", got)
	}
	if got := Combine(nil, nil); got != nil {
		t.Errorf("Combine(nil, nil) = %v, want nil", got)
	}

	single := &recordingLogger{}
	if got := Combine(nil, single); got != Logger(single) {
		t.Errorf("Combine(nil, l) = %v, want l", got)
	}

	a, b := &recordingLogger{}, &recordingLogger{}
	both := Combine(a, b)
	if _, ok := both.(*MultiLogger); !ok {
		t.Fatalf("Combine(a, b) = %T, want *MultiLogger", both)
	}
	both.Log(Event{Layer: LayerPairing})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events: a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}
}
