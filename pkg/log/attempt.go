package log

import (
	"cmp"
	"slices"
	"time"
)

// Pairing state names as recorded in state change events.
const (
	pairingPaired   = "PAIRED"
	pairingFailed   = "FAILED"
	pairingTimedOut = "TIMED_OUT"
)

// Attempt is one pairing attempt as recorded by the device that ran it,
// followed through group formation.
type Attempt struct {
	TraceID string
	Device  string
	Peer    string
	Start   time.Time
	End     time.Time

	// States are the pairing states entered, in order.
	States []string

	// Frames are the frame types exchanged. Sent frames are prefixed with
	// ">", received ones with "<".
	Frames []string

	// Reason explains a failed or timed out attempt.
	Reason string

	// Group is the last group state recorded for the attempt, if any.
	Group string

	Errors int
}

// Outcome returns the last pairing state entered.
func (a *Attempt) Outcome() string {
	if len(a.States) == 0 {
		return ""
	}
	return a.States[len(a.States)-1]
}

// Done reports whether the attempt reached a terminal pairing state.
func (a *Attempt) Done() bool {
	switch a.Outcome() {
	case pairingPaired, pairingFailed, pairingTimedOut:
		return true
	}
	return false
}

// Role returns "initiator" or "responder" from the frames the device sent,
// or "" when it sent none.
func (a *Attempt) Role() string {
	for _, f := range a.Frames {
		switch f {
		case ">BOOTSTRAP_REQUEST", ">AUTH1":
			return "initiator"
		case ">BOOTSTRAP_RESPONSE", ">AUTH2":
			return "responder"
		}
	}
	return ""
}

// Duration returns the time between the first and last event.
func (a *Attempt) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

func (a *Attempt) add(ev Event) {
	if a.Start.IsZero() || ev.Timestamp.Before(a.Start) {
		a.Start = ev.Timestamp
	}
	if ev.Timestamp.After(a.End) {
		a.End = ev.Timestamp
	}
	if a.Peer == "" {
		a.Peer = ev.PeerAddr
	}

	switch {
	case ev.Frame != nil:
		mark := "<"
		if ev.Direction == DirectionOut {
			mark = ">"
		}
		a.Frames = append(a.Frames, mark+ev.Frame.Type)
	case ev.StateChange != nil:
		sc := ev.StateChange
		switch sc.Entity {
		case StateEntityPairing:
			if len(a.States) == 0 && sc.OldState != "" {
				a.States = append(a.States, sc.OldState)
			}
			a.States = append(a.States, sc.NewState)
			if sc.Reason != "" {
				a.Reason = sc.Reason
			}
		case StateEntityGroup:
			a.Group = sc.NewState
		}
	case ev.Error != nil:
		a.Errors++
	}
}

// Attempts groups trace events into pairing attempts. Events without a
// trace ID are ignored.
type Attempts struct {
	byKey map[attemptKey]*Attempt
}

type attemptKey struct {
	device  string
	traceID string
}

// NewAttempts creates an empty collection.
func NewAttempts() *Attempts {
	return &Attempts{byKey: make(map[attemptKey]*Attempt)}
}

// Add records ev in the attempt it belongs to.
func (s *Attempts) Add(ev Event) {
	if ev.TraceID == "" {
		return
	}
	key := attemptKey{device: ev.DeviceAddr, traceID: ev.TraceID}
	a, ok := s.byKey[key]
	if !ok {
		a = &Attempt{TraceID: ev.TraceID, Device: ev.DeviceAddr}
		s.byKey[key] = a
	}
	a.add(ev)
}

// Len returns the number of attempts.
func (s *Attempts) Len() int {
	return len(s.byKey)
}

// List returns the attempts ordered by start time.
func (s *Attempts) List() []*Attempt {
	out := make([]*Attempt, 0, len(s.byKey))
	for _, a := range s.byKey {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *Attempt) int {
		return cmp.Or(
			x.Start.Compare(y.Start),
			cmp.Compare(x.Device, y.Device),
			cmp.Compare(x.TraceID, y.TraceID),
		)
	})
	return out
}

// CollectAttempts reads every remaining event of r into attempts.
func CollectAttempts(r *Reader) ([]*Attempt, error) {
	set := NewAttempts()
	err := r.Each(func(ev Event) error {
		set.Add(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set.List(), nil
}
