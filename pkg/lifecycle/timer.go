package lifecycle

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer errors.
var (
	ErrTimerStopped    = errors.New("lifecycle timer stopped")
	ErrInvalidDuration = errors.New("invalid timer duration")
)

// Kind classifies a timer entry.
type Kind uint8

const (
	KindPublish Kind = iota
	KindSubscribe
	KindProbe
	KindAnnounce
	KindPairing
	KindComeback
	KindFormation
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindPublish:
		return "PUBLISH"
	case KindSubscribe:
		return "SUBSCRIBE"
	case KindProbe:
		return "PROBE"
	case KindAnnounce:
		return "ANNOUNCE"
	case KindPairing:
		return "PAIRING"
	case KindComeback:
		return "COMEBACK"
	case KindFormation:
		return "FORMATION"
	default:
		return "UNKNOWN"
	}
}

// Key identifies a timer entry.
type Key struct {
	Kind Kind
	ID   string
}

// String returns "KIND/id".
func (k Key) String() string {
	return k.Kind.String() + "/" + k.ID
}

// SessionKey builds a key for an integer session id.
func SessionKey(kind Kind, id int) Key {
	return Key{Kind: kind, ID: strconv.Itoa(id)}
}

// PeerKey builds a key for a peer address.
func PeerKey(kind Kind, peer string) Key {
	return Key{Kind: kind, ID: peer}
}

// ExpiryFunc receives expired entries. It runs on a clock goroutine and
// must not block.
type ExpiryFunc func(key Key, gen uint64)

type entry struct {
	gen      uint64
	deadline time.Time
	timer    *clock.Timer
}

// Timer tracks deadlines for one device.
type Timer struct {
	mu sync.Mutex

	clock    clock.Clock
	entries  map[Key]*entry
	gen      uint64
	stopped  bool
	onExpire ExpiryFunc
}

// New creates a timer driven by clk. A nil clock selects the wall clock.
func New(clk clock.Clock, onExpire ExpiryFunc) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{
		clock:    clk,
		entries:  make(map[Key]*entry),
		onExpire: onExpire,
	}
}

// Schedule arms key to expire after d, replacing any pending entry for the
// same key. It returns the generation of the new entry.
func (t *Timer) Schedule(key Key, d time.Duration) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return 0, ErrTimerStopped
	}

	if old, ok := t.entries[key]; ok {
		old.timer.Stop()
	}

	t.gen++
	gen := t.gen
	e := &entry{
		gen:      gen,
		deadline: t.clock.Now().Add(d),
	}
	e.timer = t.clock.AfterFunc(d, func() {
		t.fire(key, gen)
	})
	t.entries[key] = e

	return gen, nil
}

// Cancel removes a pending entry. It reports whether one existed.
func (t *Timer) Cancel(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, key)
	return true
}

// Claim consumes an expiry. It reports true only if gen is still the
// current generation of key, removing the entry.
func (t *Timer) Claim(key Key, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || e.gen != gen {
		return false
	}
	delete(t.entries, key)
	return true
}

// Has reports whether key has a pending entry.
func (t *Timer) Has(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Remaining returns the time left until key expires, or 0.
func (t *Timer) Remaining(key Key) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return 0
	}
	remaining := e.deadline.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Pending returns the number of pending entries.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CancelKind removes every pending entry of a kind and returns how many
// were removed.
func (t *Timer) CancelKind(kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key, e := range t.entries {
		if key.Kind == kind {
			e.timer.Stop()
			delete(t.entries, key)
			n++
		}
	}
	return n
}

// Stop cancels every entry. Later Schedule calls fail with ErrTimerStopped.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, key)
	}
	t.stopped = true
}

func (t *Timer) fire(key Key, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[key]
	current := ok && e.gen == gen && !t.stopped
	fn := t.onExpire
	t.mu.Unlock()

	if current && fn != nil {
		fn(key, gen)
	}
}
