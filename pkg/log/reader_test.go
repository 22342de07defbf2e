package log

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, path string, q Query) []Event {
	t.Helper()
	reader, err := Open(path, q)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	var out []Event
	if err := reader.Each(func(e Event) error {
		out = append(out, e)
		return nil
	}); err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	return out
}

func frameEvent(ts time.Time, device, peer string, dir Direction, frameType string) Event {
	return Event{
		Timestamp:  ts,
		DeviceAddr: device,
		PeerAddr:   peer,
		Direction:  dir,
		Layer:      LayerMedium,
		Category:   CategoryFrame,
		Frame:      &FrameEvent{Type: frameType, Size: 32},
	}
}

func TestQueryMatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		frameEvent(base, "dev0", "dev1", DirectionOut, "PUBLISH"),
		frameEvent(base.Add(time.Second), "dev1", "dev0", DirectionIn, "AUTH1"),
		{
			Timestamp: base.Add(2 * time.Second), DeviceAddr: "dev0", TraceID: "t-1",
			Layer: LayerPairing, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityPairing, ID: "dev1", NewState: "AUTHENTICATING"},
		},
		{
			Timestamp: base.Add(3 * time.Second), DeviceAddr: "dev1", Layer: LayerUSD, Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerUSD, Message: "bad"},
		},
		{
			Timestamp: base.Add(4 * time.Second), DeviceAddr: "dev1", PeerAddr: "dev0",
			Layer: LayerPairing, Category: CategoryNotification,
			Notification: &NotificationEvent{Type: "PAIRING_FAILED"},
		},
	}
	path := createTestLogFile(t, events)

	out := DirectionOut
	in := DirectionIn
	errCat := CategoryError

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"all", Query{}, 5},
		{"device", Query{Device: "dev0"}, 2},
		{"peer", Query{Peer: "dev0"}, 2},
		{"direction out", Query{Direction: &out}, 1},
		{"direction skips non-frames", Query{Direction: &in}, 1},
		{"layers", Query{Layers: []Layer{LayerPairing, LayerUSD}}, 3},
		{"category", Query{Category: &errCat}, 1},
		{"trace", Query{TraceID: "t-1"}, 1},
		{"window", Query{Since: base.Add(time.Second), Until: base.Add(3 * time.Second)}, 2},
		{"frame type", Query{FrameTypes: []string{"publish"}}, 1},
		{"frame prefix", Query{FrameTypes: []string{"AUTH*"}}, 1},
		{"entity", Query{Entities: []StateEntity{StateEntityPairing}}, 1},
		{"entity misses group", Query{Entities: []StateEntity{StateEntityGroup}}, 0},
		{"notification", Query{Notifications: []string{"PAIRING_*"}}, 1},
		{"kinds union", Query{FrameTypes: []string{"AUTH*"}, Notifications: []string{"PAIRING_FAILED"}}, 2},
		{"kinds and device", Query{Device: "dev1", FrameTypes: []string{"*"}}, 1},
		{"no match", Query{Device: "dev9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readAll(t, path, tt.query); len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderTruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := enc.Encode(frameEvent(ts, "dev0", "dev1", DirectionOut, "AUTH1")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(frameEvent(ts, "dev0", "dev1", DirectionOut, "AUTH3")); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	r := NewReader(bytes.NewReader(data[:len(data)-4]), Query{})
	ev, err := r.Next()
	if err != nil || ev.Frame == nil || ev.Frame.Type != "AUTH1" {
		t.Fatalf("Next() = %+v, %v", ev, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after partial record, got %v", err)
	}
	if !r.Truncated() {
		t.Error("expected Truncated() after partial record")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}

	r = NewReader(bytes.NewReader(data), Query{})
	n := 0
	_ = r.Each(func(Event) error { n++; return nil })
	if n != 2 || r.Truncated() {
		t.Errorf("complete log: %d events, truncated=%v", n, r.Truncated())
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.plog"), Query{}); err == nil {
		t.Error("expected error for missing file")
	}
}
