package log

import (
	"slices"
	"strings"
	"time"
)

// Query selects trace events. A zero field matches every event.
//
// FrameTypes, Entities and Notifications select event kinds. When any of
// them is set an event must be a frame, state change or notification named
// by one of them, so "AUTH*" plus PAIRING_FAILED selects the authentication
// exchange together with its failures.
type Query struct {
	// TraceID selects the events of one pairing attempt.
	TraceID string

	// Device selects events captured by one device.
	Device string

	// Peer selects events exchanged with or about one remote device.
	Peer string

	Layers    []Layer
	Category  *Category
	Direction *Direction

	// FrameTypes are frame type names. A trailing "*" matches a prefix.
	FrameTypes []string

	Entities []StateEntity

	// Notifications are notification type names. A trailing "*" matches a
	// prefix.
	Notifications []string

	// Since and Until bound the event time; Until is exclusive.
	Since time.Time
	Until time.Time
}

// Match reports whether ev satisfies every criterion of q.
func (q *Query) Match(ev Event) bool {
	if q.TraceID != "" && ev.TraceID != q.TraceID {
		return false
	}
	if q.Device != "" && ev.DeviceAddr != q.Device {
		return false
	}
	if q.Peer != "" && ev.PeerAddr != q.Peer {
		return false
	}
	if len(q.Layers) > 0 && !slices.Contains(q.Layers, ev.Layer) {
		return false
	}
	if q.Category != nil && ev.Category != *q.Category {
		return false
	}
	// Direction only exists for frames.
	if q.Direction != nil && (ev.Frame == nil || ev.Direction != *q.Direction) {
		return false
	}
	if !q.Since.IsZero() && ev.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !ev.Timestamp.Before(q.Until) {
		return false
	}
	if q.selectsKind() && !q.matchKind(ev) {
		return false
	}
	return true
}

func (q *Query) selectsKind() bool {
	return len(q.FrameTypes) > 0 || len(q.Entities) > 0 || len(q.Notifications) > 0
}

func (q *Query) matchKind(ev Event) bool {
	switch {
	case ev.Frame != nil:
		return matchName(q.FrameTypes, ev.Frame.Type)
	case ev.StateChange != nil:
		return slices.Contains(q.Entities, ev.StateChange.Entity)
	case ev.Notification != nil:
		return matchName(q.Notifications, ev.Notification.Type)
	}
	return false
}

// matchName matches name case-insensitively against patterns.
func matchName(patterns []string, name string) bool {
	name = strings.ToUpper(name)
	for _, p := range patterns {
		p = strings.ToUpper(p)
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		} else if p == name {
			return true
		}
	}
	return false
}
