package log

import (
	"time"
)

// MaxFrameData is the number of frame bytes kept in a trace event.
const MaxFrameData = 256

// Event represents a protocol trace event captured by a device.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// TraceID correlates the events of one pairing attempt (UUID).
	TraceID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates frame flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceAddr is the address of the device that captured the event.
	DeviceAddr string `cbor:"6,keyasint,omitempty"`

	// PeerAddr is the remote device, if any.
	PeerAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame        *FrameEvent        `cbor:"8,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"9,keyasint,omitempty"`
	Notification *NotificationEvent `cbor:"10,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"11,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerMedium is the frame exchange with the medium.
	LayerMedium Layer = 0
	// LayerUSD is service discovery.
	LayerUSD Layer = 1
	// LayerPairing is bootstrapping and authentication.
	LayerPairing Layer = 2
	// LayerGroup is group formation and teardown.
	LayerGroup Layer = 3
	// LayerControl is the command interface.
	LayerControl Layer = 4
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerMedium:
		return "MEDIUM"
	case LayerUSD:
		return "USD"
	case LayerPairing:
		return "PAIRING"
	case LayerGroup:
		return "GROUP"
	case LayerControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a frame sent or received.
	CategoryFrame Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryNotification indicates a notification raised to the consumer.
	CategoryNotification Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a frame exchanged with the medium.
type FrameEvent struct {
	// Type is the frame type name.
	Type string `cbor:"1,keyasint"`

	// Size is the encoded frame size in bytes.
	Size int `cbor:"2,keyasint"`

	// Data is the encoded frame (may be truncated).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent captures data, keeping at most MaxFrameData bytes.
func NewFrameEvent(frameType string, data []byte) *FrameEvent {
	fe := &FrameEvent{Type: frameType, Size: len(data)}
	if len(data) > MaxFrameData {
		fe.Data = append([]byte(nil), data[:MaxFrameData]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	return fe
}

// StateChangeEvent captures session, pairing and group lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// ID identifies the entity (session id, peer address, group id).
	ID string `cbor:"2,keyasint,omitempty"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"3,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"4,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityPublish indicates a publish session.
	StateEntityPublish StateEntity = 0
	// StateEntitySubscribe indicates a subscribe session.
	StateEntitySubscribe StateEntity = 1
	// StateEntityPairing indicates a pairing attempt.
	StateEntityPairing StateEntity = 2
	// StateEntityGroup indicates a group.
	StateEntityGroup StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityPublish:
		return "PUBLISH"
	case StateEntitySubscribe:
		return "SUBSCRIBE"
	case StateEntityPairing:
		return "PAIRING"
	case StateEntityGroup:
		return "GROUP"
	default:
		return "UNKNOWN"
	}
}

// NotificationEvent captures a notification raised to the consumer.
type NotificationEvent struct {
	// Type is the notification type name.
	Type string `cbor:"1,keyasint"`

	// Fields are the notification fields rendered as text.
	Fields map[string]string `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
