package pairing

import (
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
)

// Intent is what a device tells its peer about its group preferences.
type Intent struct {
	GoIntent int
	Join     bool
	HasGroup bool
	Freq     int
}

// Context is one pairing attempt with one peer.
type Context struct {
	// ID correlates trace events of this attempt.
	ID string

	Local string
	Peer  string
	Role  Role

	Method   bootstrap.Method
	Outcome  bootstrap.Outcome
	Password string

	// Config is the snapshot of the local pairing configuration taken when
	// the attempt started.
	Config bootstrap.Config

	LocalIntent Intent
	PeerIntent  Intent

	NonceI []byte
	NonceR []byte
	PMK    []byte
	KCK    []byte

	State  State
	Reason Reason

	StartedAt time.Time

	// Comebacks counts comeback responses received or sent.
	Comebacks int

	// Backoff paces repeated bootstrapping requests at the initiator.
	Backoff *Backoff
}

// Transition moves the attempt to a new state.
func (c *Context) Transition(to State) error {
	if err := checkTransition(c.State, to); err != nil {
		return err
	}
	c.State = to
	return nil
}

// Fail moves the attempt to Failed with a reason.
func (c *Context) Fail(reason Reason) error {
	if err := c.Transition(StateFailed); err != nil {
		return err
	}
	c.Reason = reason
	return nil
}

// Expire moves the attempt to TimedOut.
func (c *Context) Expire() error {
	if err := c.Transition(StateTimedOut); err != nil {
		return err
	}
	c.Reason = ReasonTimeout
	return nil
}

// Initiator returns the address of the initiating device.
func (c *Context) Initiator() string {
	if c.Role == RoleInitiator {
		return c.Local
	}
	return c.Peer
}

// Responder returns the address of the responding device.
func (c *Context) Responder() string {
	if c.Role == RoleResponder {
		return c.Local
	}
	return c.Peer
}

// Cached reports whether the attempt reuses cached key material.
func (c *Context) Cached() bool {
	return c.Outcome.Cached()
}

// NeedsConfirm reports whether the attempt proves key possession with a MIC
// exchange. Only a cached pairing without verification skips it.
func (c *Context) NeedsConfirm() bool {
	return !c.Cached() || c.Outcome.Verify
}

// Entry returns the pairing cache entry for a completed attempt.
func (c *Context) Entry(now time.Time) bootstrap.Entry {
	return bootstrap.Entry{
		Peer:     c.Peer,
		PMK:      append([]byte(nil), c.PMK...),
		Method:   c.Outcome.Method,
		PairedAt: now,
	}
}
