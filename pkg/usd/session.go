package usd

import (
	"errors"
	"time"
)

// Session errors.
var (
	ErrInvalidParameters = errors.New("invalid session parameters")
	ErrResourceExhausted = errors.New("maximum sessions reached")
	ErrNotFound          = errors.New("session not found")
)

// DefaultMaxSessions is the default number of concurrent sessions per role.
const DefaultMaxSessions = 256

// Role identifies the discovery role of a session.
type Role uint8

const (
	// RolePublish advertises a service.
	RolePublish Role = iota

	// RoleSubscribe looks for a service.
	RoleSubscribe
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RolePublish:
		return "PUBLISH"
	case RoleSubscribe:
		return "SUBSCRIBE"
	default:
		return "UNKNOWN"
	}
}

// State is the lifecycle state of a session.
type State uint8

const (
	// StateActive sessions take part in matching.
	StateActive State = iota

	// StateTerminated sessions never match again.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Reason explains why a session terminated.
type Reason uint8

const (
	// ReasonNone is used for sessions that have not terminated.
	ReasonNone Reason = iota

	// ReasonUserRequest is an explicit cancel.
	ReasonUserRequest

	// ReasonTimeout means the TTL elapsed.
	ReasonTimeout

	// ReasonFailure covers internal failures.
	ReasonFailure
)

// String returns the reason as reported in termination events.
func (r Reason) String() string {
	switch r {
	case ReasonUserRequest:
		return "user-request"
	case ReasonTimeout:
		return "timeout"
	case ReasonFailure:
		return "failure"
	default:
		return "none"
	}
}

// PublishParams are the parameters of a publish command.
type PublishParams struct {
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte

	// Solicited sessions answer active subscribe probes.
	Solicited bool

	// Unsolicited sessions announce without being probed.
	Unsolicited bool

	// TTL is the lifetime in time units; 0 disables auto-expiry.
	TTL uint32

	// P2P marks the session as eligible for pairing hand-off.
	P2P bool
}

// SubscribeParams are the parameters of a subscribe command.
type SubscribeParams struct {
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte

	// Active subscribes probe; passive ones only listen.
	Active bool

	TTL uint32
	P2P bool
}

// Session is a publish or subscribe discovery session.
type Session struct {
	ID           int
	Role         Role
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte

	// Publish only.
	Solicited   bool
	Unsolicited bool

	// Subscribe only.
	Active bool

	TTL uint32
	P2P bool

	State  State
	Reason Reason

	// Version increases every time the SSI is replaced.
	Version uint32

	CreatedAt time.Time
}

// IsActive reports whether the session still takes part in matching.
func (s *Session) IsActive() bool {
	return s.State == StateActive
}

func (s *Session) clone() *Session {
	c := *s
	if s.SSI != nil {
		c.SSI = append([]byte(nil), s.SSI...)
	}
	return &c
}

// Validate checks the role-specific invariants of publish parameters.
func (p PublishParams) Validate() error {
	if p.ServiceName == "" {
		return ErrInvalidParameters
	}
	if !p.Solicited && !p.Unsolicited {
		return ErrInvalidParameters
	}
	return nil
}

// Validate checks subscribe parameters.
func (p SubscribeParams) Validate() error {
	if p.ServiceName == "" {
		return ErrInvalidParameters
	}
	return nil
}
