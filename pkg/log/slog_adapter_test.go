package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func logEntries(t *testing.T, level slog.Level, events ...Event) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	adapter := NewSlogAdapter(slog.New(handler))
	for _, ev := range events {
		adapter.Log(ev)
	}

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log output %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestSlogAdapterFrame(t *testing.T) {
	entries := logEntries(t, slog.LevelDebug, Event{
		Timestamp:  time.Now(),
		DeviceAddr: "02:00:00:00:00:01",
		PeerAddr:   "02:00:00:00:00:02",
		Direction:  DirectionOut,
		Layer:      LayerMedium,
		Category:   CategoryFrame,
		Frame:      &FrameEvent{Type: "AUTH1", Size: 96, Truncated: true},
	})
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e["msg"] != "sent AUTH1" || e["level"] != "DEBUG" {
		t.Errorf("unexpected entry: %v", e)
	}
	if e["size"] != float64(96) || e["truncated"] != true || e["peer"] != "02:00:00:00:00:02" {
		t.Errorf("unexpected attributes: %v", e)
	}
}

func TestSlogAdapterLevels(t *testing.T) {
	events := []Event{
		{Category: CategoryFrame, Direction: DirectionIn, Frame: &FrameEvent{Type: "PUBLISH"}},
		{
			TraceID: "trace-1", Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityPairing, ID: "dev1", OldState: "IDLE", NewState: "AUTHENTICATING"},
		},
		{
			TraceID: "trace-1", Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityPairing, ID: "dev1", OldState: "AUTHENTICATING", NewState: "FAILED", Reason: "auth-failed"},
		},
		{Category: CategoryNotification, Notification: &NotificationEvent{Type: "DISCOVERY_RESULT", Fields: map[string]string{"ssi": "6677"}}},
		{Category: CategoryNotification, Notification: &NotificationEvent{Type: "GROUP_FORMATION_FAILURE"}},
		{Category: CategoryError, Error: &ErrorEventData{Layer: LayerMedium, Message: "invalid frame", Context: "decode"}},
	}

	entries := logEntries(t, slog.LevelInfo, events...)
	if len(entries) != 4 {
		t.Fatalf("got %d entries at info, want 4: %v", len(entries), entries)
	}

	failed := entries[0]
	if failed["msg"] != "pairing FAILED" || failed["level"] != "WARN" {
		t.Errorf("unexpected failure entry: %v", failed)
	}
	if failed["from"] != "AUTHENTICATING" || failed["reason"] != "auth-failed" || failed["trace"] != "trace-1" {
		t.Errorf("unexpected failure attributes: %v", failed)
	}

	result := entries[1]
	fields, _ := result["fields"].(map[string]any)
	if result["msg"] != "DISCOVERY_RESULT" || result["level"] != "INFO" || fields["ssi"] != "6677" {
		t.Errorf("unexpected notification entry: %v", result)
	}

	if entries[2]["msg"] != "GROUP_FORMATION_FAILURE" || entries[2]["level"] != "WARN" {
		t.Errorf("unexpected formation entry: %v", entries[2])
	}

	if entries[3]["msg"] != "invalid frame" || entries[3]["layer"] != "MEDIUM" || entries[3]["context"] != "decode" {
		t.Errorf("unexpected error entry: %v", entries[3])
	}

	if got := logEntries(t, slog.LevelDebug, events...); len(got) != len(events) {
		t.Errorf("got %d entries at debug, want %d", len(got), len(events))
	}
}
