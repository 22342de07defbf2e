package pairing

import (
	"sort"
	"sync"
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
)

// Authorization is a responder's consent to pair with one peer, recorded by
// a Connect with "auth".
type Authorization struct {
	Peer     string
	Method   bootstrap.Method
	Password string
	Intent   Intent
	At       time.Time
}

// Tracker holds the in-flight pairing attempts of one device.
type Tracker struct {
	mu sync.Mutex

	attempts map[string]*Context

	// inbound is the peer of the responder attempt in flight, if any.
	inbound string

	authorizations map[string]Authorization
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		attempts:       make(map[string]*Context),
		authorizations: make(map[string]Authorization),
	}
}

// Begin registers a new attempt. It fails with ErrBusy if an attempt with the
// same peer is in flight, or if c is a responder attempt while another peer's
// inbound attempt is in flight.
func (t *Tracker) Begin(c *Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.attempts[c.Peer]; ok && !existing.State.IsTerminal() {
		return ErrBusy
	}
	if c.Role == RoleResponder {
		if t.inbound != "" && t.inbound != c.Peer {
			return ErrBusy
		}
		t.inbound = c.Peer
	}
	t.attempts[c.Peer] = c
	return nil
}

// Get returns the attempt with a peer.
func (t *Tracker) Get(peer string) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.attempts[peer]
	return c, ok
}

// InboundBusy reports whether an inbound attempt with a different peer is in
// flight.
func (t *Tracker) InboundBusy(peer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbound != "" && t.inbound != peer
}

// End removes the attempt with a peer and returns it.
func (t *Tracker) End(peer string) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.attempts[peer]
	if !ok {
		return nil, false
	}
	delete(t.attempts, peer)
	if t.inbound == peer {
		t.inbound = ""
	}
	return c, true
}

// InFlight returns the number of attempts being tracked.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

// Peers returns the peers with an attempt in flight, sorted.
func (t *Tracker) Peers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers := make([]string, 0, len(t.attempts))
	for p := range t.attempts {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// Authorize records or replaces the authorization for a.Peer.
func (t *Tracker) Authorize(a Authorization) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authorizations[a.Peer] = a
}

// Authorization returns the authorization for a peer.
func (t *Tracker) Authorization(peer string) (Authorization, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.authorizations[peer]
	return a, ok
}

// Revoke drops the authorization for a peer.
func (t *Tracker) Revoke(peer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.authorizations[peer]; !ok {
		return false
	}
	delete(t.authorizations, peer)
	return true
}
