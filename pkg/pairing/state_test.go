package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateBootstrapRequested, true},
		{StateIdle, StateAuthenticating, true},
		{StateIdle, StatePaired, false},
		{StateBootstrapRequested, StateAuthenticating, true},
		{StateBootstrapRequested, StatePaired, false},
		{StateAuthenticating, StatePaired, true},
		{StateAuthenticating, StateBootstrapRequested, true},
		{StateAuthenticating, StateTimedOut, true},
		{StatePaired, StateFailed, false},
		{StateFailed, StateIdle, false},
		{StateTimedOut, StateAuthenticating, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestContextFailAndExpire(t *testing.T) {
	c := &Context{Peer: "p"}
	require.NoError(t, c.Transition(StateBootstrapRequested))
	require.NoError(t, c.Fail(ReasonAuthFailed))
	assert.Equal(t, StateFailed, c.State)
	assert.Equal(t, ReasonAuthFailed, c.Reason)

	err := c.Expire()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, ReasonAuthFailed, c.Reason, "terminal attempt must not change")

	c = &Context{Peer: "p"}
	require.NoError(t, c.Expire())
	assert.Equal(t, StateTimedOut, c.State)
	assert.Equal(t, ReasonTimeout, c.Reason)
}

func TestStatusReason(t *testing.T) {
	assert.Equal(t, ReasonBusy, StatusBusy.Reason())
	assert.Equal(t, ReasonUnsupportedMethod, StatusUnsupported.Reason())
	assert.Equal(t, ReasonAuthFailed, StatusAuthFailed.Reason())
	assert.Equal(t, ReasonNone, StatusComeback.Reason())
	assert.Equal(t, ReasonRejected, Status(99).Reason())
}

func TestRoleAddresses(t *testing.T) {
	c := &Context{Local: "a", Peer: "b", Role: RoleInitiator}
	assert.Equal(t, "a", c.Initiator())
	assert.Equal(t, "b", c.Responder())

	c.Role = RoleResponder
	assert.Equal(t, "b", c.Initiator())
	assert.Equal(t, "a", c.Responder())
}
