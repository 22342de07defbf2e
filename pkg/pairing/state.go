package pairing

import (
	"errors"
	"fmt"
)

// Pairing errors.
var (
	ErrBusy              = errors.New("pairing already in progress")
	ErrTimeout           = errors.New("pairing timed out")
	ErrInvalidTransition = errors.New("invalid pairing state transition")
	ErrNotInFlight       = errors.New("no pairing in flight")
	ErrCacheMiss         = errors.New("no cached pairing for peer")
)

// State is the state of one pairing attempt.
type State uint8

const (
	StateIdle State = iota
	StateBootstrapRequested
	StateAuthenticating
	StatePaired
	StateFailed
	StateTimedOut
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBootstrapRequested:
		return "BOOTSTRAP_REQUESTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StatePaired:
		return "PAIRED"
	case StateFailed:
		return "FAILED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StatePaired || s == StateFailed || s == StateTimedOut
}

var transitions = map[State][]State{
	StateIdle:               {StateBootstrapRequested, StateAuthenticating, StateFailed, StateTimedOut},
	StateBootstrapRequested: {StateAuthenticating, StateFailed, StateTimedOut},
	StateAuthenticating:     {StatePaired, StateBootstrapRequested, StateFailed, StateTimedOut},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Role is the side a device plays in a pairing attempt.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "INITIATOR"
	case RoleResponder:
		return "RESPONDER"
	default:
		return "UNKNOWN"
	}
}

// Reason explains why an attempt did not reach Paired. The values appear
// in PairingFailed notifications.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonTimeout           Reason = "timeout"
	ReasonBusy              Reason = "busy"
	ReasonAuthFailed        Reason = "auth-failed"
	ReasonUnsupportedMethod Reason = "unsupported-method"
	ReasonRejected          Reason = "rejected"
	ReasonAborted           Reason = "aborted"
)

// Status is carried in bootstrapping and authentication responses.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusComeback
	StatusUnsupported
	StatusBusy
	StatusAuthFailed
	StatusCacheMiss
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusComeback:
		return "COMEBACK"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusBusy:
		return "BUSY"
	case StatusAuthFailed:
		return "AUTH_FAILED"
	case StatusCacheMiss:
		return "CACHE_MISS"
	default:
		return "UNKNOWN"
	}
}

// Reason maps a failure status received from the peer to a local reason.
func (s Status) Reason() Reason {
	switch s {
	case StatusBusy:
		return ReasonBusy
	case StatusUnsupported:
		return ReasonUnsupportedMethod
	case StatusAuthFailed:
		return ReasonAuthFailed
	case StatusSuccess, StatusComeback, StatusCacheMiss:
		return ReasonNone
	default:
		return ReasonRejected
	}
}
