package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
)

func TestTrackerOnePerPeer(t *testing.T) {
	tr := NewTracker()

	first := &Context{Peer: "a", Role: RoleInitiator, State: StateBootstrapRequested}
	require.NoError(t, tr.Begin(first))

	err := tr.Begin(&Context{Peer: "a", Role: RoleInitiator})
	assert.ErrorIs(t, err, ErrBusy)

	got, ok := tr.Get("a")
	require.True(t, ok)
	assert.Same(t, first, got, "the first attempt must be untouched")

	// A terminal attempt does not block a new one.
	require.NoError(t, first.Fail(ReasonTimeout))
	assert.NoError(t, tr.Begin(&Context{Peer: "a", Role: RoleInitiator}))
}

func TestTrackerSingleInbound(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.Begin(&Context{Peer: "a", Role: RoleResponder, State: StateBootstrapRequested}))
	assert.True(t, tr.InboundBusy("b"))
	assert.False(t, tr.InboundBusy("a"))

	err := tr.Begin(&Context{Peer: "b", Role: RoleResponder})
	assert.ErrorIs(t, err, ErrBusy)

	// Outbound attempts are not limited by the inbound slot.
	assert.NoError(t, tr.Begin(&Context{Peer: "c", Role: RoleInitiator}))
	assert.Equal(t, []string{"a", "c"}, tr.Peers())

	_, ok := tr.End("a")
	require.True(t, ok)
	assert.False(t, tr.InboundBusy("b"))
	assert.NoError(t, tr.Begin(&Context{Peer: "b", Role: RoleResponder}))
	assert.Equal(t, 2, tr.InFlight())
}

func TestTrackerAuthorizations(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Authorization("a")
	assert.False(t, ok)

	tr.Authorize(Authorization{Peer: "a", Method: bootstrap.MethodPINDisplay, Password: "12345678", At: time.Now()})
	a, ok := tr.Authorization("a")
	require.True(t, ok)
	assert.Equal(t, bootstrap.MethodPINDisplay, a.Method)

	assert.True(t, tr.Revoke("a"))
	assert.False(t, tr.Revoke("a"))
}

func TestBackoffSequence(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial: 100 * time.Millisecond,
		Max:     time.Second,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}

	b.Reset()
	if b.Attempts() != 0 {
		t.Errorf("Attempts() after Reset = %d", b.Attempts())
	}
	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("Next() after Reset = %v", got)
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: ComebackJitter})
	base := DefaultComebackDelay
	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < base || d > base+time.Duration(float64(base)*ComebackJitter) {
			t.Fatalf("Next() = %v outside [%v, +25%%]", d, base)
		}
		base *= ComebackMultiplier
		if base > MaxComebackDelay {
			base = MaxComebackDelay
		}
	}
}
