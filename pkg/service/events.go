package service

import (
	"context"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
)

// EventType identifies a device notification.
type EventType uint8

const (
	// EventPublishTerminated - a publish session ended.
	EventPublishTerminated EventType = iota

	// EventSubscribeTerminated - a subscribe session ended.
	EventSubscribeTerminated

	// EventDiscoveryResult - a subscribe session matched a publisher.
	EventDiscoveryResult

	// EventReplied - a publish session answered a subscriber.
	EventReplied

	// EventDeviceFound - a P2P2 peer was discovered.
	EventDeviceFound

	// EventBootstrapRequest - an unauthorized peer asked to pair.
	EventBootstrapRequest

	// EventPairingComplete - a pairing reached Paired.
	EventPairingComplete

	// EventPairingFailed - a pairing failed or timed out.
	EventPairingFailed

	// EventGroupStarted - the device started or joined a group.
	EventGroupStarted

	// EventGroupFormationFailure - roles could not be agreed or the group
	// was not confirmed in time.
	EventGroupFormationFailure

	// EventClientJoined - a client associated with the device's group.
	EventClientJoined

	// EventGroupRemoved - the device left or tore down its group.
	EventGroupRemoved

	// EventGroupEndingSession - the other side of the group departed.
	EventGroupEndingSession
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventPublishTerminated:
		return "PUBLISH_TERMINATED"
	case EventSubscribeTerminated:
		return "SUBSCRIBE_TERMINATED"
	case EventDiscoveryResult:
		return "DISCOVERY_RESULT"
	case EventReplied:
		return "REPLIED"
	case EventDeviceFound:
		return "DEVICE_FOUND"
	case EventBootstrapRequest:
		return "BOOTSTRAP_REQUEST"
	case EventPairingComplete:
		return "PAIRING_COMPLETE"
	case EventPairingFailed:
		return "PAIRING_FAILED"
	case EventGroupStarted:
		return "GROUP_STARTED"
	case EventGroupFormationFailure:
		return "GROUP_FORMATION_FAILURE"
	case EventClientJoined:
		return "CLIENT_JOINED"
	case EventGroupRemoved:
		return "GROUP_REMOVED"
	case EventGroupEndingSession:
		return "GROUP_ENDING_SESSION"
	default:
		return "UNKNOWN"
	}
}

// Event is a device notification. Only the fields relevant to Type are set.
type Event struct {
	// Type is the event type.
	Type EventType

	// Time is when the event was raised.
	Time time.Time

	// Device is the address of the device raising the event.
	Device string

	// Peer is the remote device, if any.
	Peer string

	// LocalID is the local publish or subscribe id (session events).
	LocalID int

	// PeerID is the peer's publish or subscribe id (match events).
	PeerID int

	// ServiceName, SrvProtoType and SSI describe the peer's service
	// (discovery results).
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte

	// Reason is the termination or failure reason.
	Reason string

	// Method is the bootstrapping method (pairing events).
	Method bootstrap.Method

	// Cached is set when a pairing reused cached key material.
	Cached bool

	// Role, Frequency, GroupID and SSID describe a group (group events).
	Role      group.Role
	Frequency int
	GroupID   string
	SSID      string
}

// Fields renders the event fields relevant to its type as text.
func (e Event) Fields() map[string]string {
	f := make(map[string]string)
	if e.Peer != "" {
		f["peer"] = e.Peer
	}
	if e.Reason != "" {
		f["reason"] = e.Reason
	}

	switch e.Type {
	case EventPublishTerminated, EventSubscribeTerminated:
		f["id"] = strconv.Itoa(e.LocalID)
	case EventDiscoveryResult, EventReplied:
		f["id"] = strconv.Itoa(e.LocalID)
		f["peer_id"] = strconv.Itoa(e.PeerID)
		if e.Type == EventDiscoveryResult {
			f["service_name"] = e.ServiceName
			f["srv_proto_type"] = strconv.Itoa(int(e.SrvProtoType))
			f["ssi"] = hex.EncodeToString(e.SSI)
		}
	case EventBootstrapRequest:
		f["method"] = e.Method.String()
	case EventPairingComplete:
		f["method"] = e.Method.String()
		f["cached"] = strconv.FormatBool(e.Cached)
	case EventGroupStarted, EventGroupRemoved:
		f["role"] = e.Role.String()
		f["freq"] = strconv.Itoa(e.Frequency)
		f["group_id"] = e.GroupID
		f["ssid"] = e.SSID
	case EventGroupEndingSession:
		f["group_id"] = e.GroupID
	}
	return f
}

// EventHandler handles device events.
type EventHandler func(Event)

// Queue is an unbounded, ordered notification queue. It is safe for
// concurrent use.
type Queue struct {
	mu     sync.Mutex
	events []Event

	// notify is closed and replaced whenever an event is appended.
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{})}
}

func (q *Queue) push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Next removes and returns the oldest event, waiting until one is queued or
// ctx is done.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	return q.Wait(ctx)
}

// Wait removes and returns the oldest event of one of the given types,
// waiting until one is queued or ctx is done. Events of other types stay
// queued. With no types any event matches.
func (q *Queue) Wait(ctx context.Context, types ...EventType) (Event, error) {
	for {
		q.mu.Lock()
		if e, ok := q.takeLocked(types); ok {
			q.mu.Unlock()
			return e, nil
		}
		notify := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-notify:
		}
	}
}

// Poll removes and returns the oldest event of one of the given types
// without waiting.
func (q *Queue) Poll(types ...EventType) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeLocked(types)
}

// Count returns the number of queued events of the given types.
func (q *Queue) Count(types ...EventType) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.events {
		if matchesType(e.Type, types) {
			n++
		}
	}
	return n
}

// Drain removes and returns every queued event.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := q.events
	q.events = nil
	return events
}

func (q *Queue) takeLocked(types []EventType) (Event, bool) {
	for i, e := range q.events {
		if matchesType(e.Type, types) {
			q.events = append(q.events[:i], q.events[i+1:]...)
			return e, true
		}
	}
	return Event{}, false
}

func matchesType(t EventType, types []EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}
