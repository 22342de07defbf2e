package log

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:  ts,
		TraceID:    "abc12345-def6-7890-abcd-ef1234567890",
		Direction:  DirectionOut,
		Layer:      LayerPairing,
		Category:   CategoryFrame,
		DeviceAddr: "02:00:00:00:00:00",
		PeerAddr:   "02:00:00:00:01:00",
		Frame:      NewFrameEvent("BOOTSTRAP_REQUEST", []byte{0xa1, 0x01, 0x03}),
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.TraceID != original.TraceID {
		t.Errorf("TraceID: got %q, want %q", decoded.TraceID, original.TraceID)
	}
	if decoded.Layer != LayerPairing || decoded.Direction != DirectionOut {
		t.Errorf("Layer/Direction: got %v/%v", decoded.Layer, decoded.Direction)
	}
	if decoded.PeerAddr != original.PeerAddr {
		t.Errorf("PeerAddr: got %q, want %q", decoded.PeerAddr, original.PeerAddr)
	}
	if decoded.Frame == nil || decoded.Frame.Type != "BOOTSTRAP_REQUEST" || decoded.Frame.Size != 3 {
		t.Errorf("Frame: got %+v", decoded.Frame)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp: time.Now(),
		Layer:     LayerUSD,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityPublish,
			ID:       "1",
			NewState: "TERMINATED",
			Reason:   "timeout",
		},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var raw map[any]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("cbor.Unmarshal failed: %v", err)
	}
	for k := range raw {
		if _, ok := k.(uint64); !ok {
			t.Errorf("key %v (%T) is not an integer", k, k)
		}
	}
	if _, ok := raw[uint64(9)]; !ok {
		t.Error("state change payload not under key 9")
	}
}

func TestNotificationEventRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Layer:     LayerGroup,
		Category:  CategoryNotification,
		Notification: &NotificationEvent{
			Type:   "GROUP_STARTED",
			Fields: map[string]string{"role": "GO", "freq": "2437"},
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Notification == nil || decoded.Notification.Fields["freq"] != "2437" {
		t.Errorf("Notification: got %+v", decoded.Notification)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0xff}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}
