package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
)

const (
	localAddr = "02:00:00:00:00:00"
	peerAddr  = "02:00:00:00:01:00"
)

func pair(initiator, responder string, outcome bootstrap.Outcome, pwI, pwR string) (*Context, *Context) {
	i := &Context{Local: initiator, Peer: responder, Role: RoleInitiator, Outcome: outcome, Password: pwI}
	r := &Context{Local: responder, Peer: initiator, Role: RoleResponder, Outcome: outcome, Password: pwR}
	return i, r
}

func runHandshake(t *testing.T, i, r *Context, cacheI, cacheR *bootstrap.Entry) error {
	t.Helper()

	nonceI, err := i.BeginAuth(cacheI)
	require.NoError(t, err)
	nonceR, micR, err := r.RespondAuth(nonceI, cacheR)
	if err != nil {
		return err
	}
	micI, err := i.ConfirmAuth(nonceR, micR)
	if err != nil {
		return err
	}
	return r.FinishAuth(micI)
}

func TestHandshakePassword(t *testing.T) {
	outcome := bootstrap.Outcome{Method: bootstrap.MethodPINKeypad, Mode: bootstrap.ModePassword}
	i, r := pair(localAddr, peerAddr, outcome, "12345678", "12345678")

	require.NoError(t, runHandshake(t, i, r, nil, nil))
	assert.Equal(t, i.PMK, r.PMK)
	assert.Equal(t, i.KCK, r.KCK)
}

func TestHandshakeWrongPassword(t *testing.T) {
	outcome := bootstrap.Outcome{Method: bootstrap.MethodPINKeypad, Mode: bootstrap.ModePassword}
	i, r := pair(localAddr, peerAddr, outcome, "12345678", "87654321")

	err := runHandshake(t, i, r, nil, nil)
	assert.ErrorIs(t, err, bootstrap.ErrAuthenticationFailed)
}

func TestHandshakeOpportunistic(t *testing.T) {
	outcome := bootstrap.Outcome{Method: bootstrap.MethodOpportunistic, Mode: bootstrap.ModeOpportunistic}
	i, r := pair(localAddr, peerAddr, outcome, "", "")

	require.NoError(t, runHandshake(t, i, r, nil, nil))
	assert.Equal(t, i.PMK, r.PMK)
}

func TestHandshakeCached(t *testing.T) {
	pmk := bootstrap.PasswordPMK("12345678", localAddr, peerAddr)
	entryI := &bootstrap.Entry{Peer: peerAddr, PMK: pmk}
	entryR := &bootstrap.Entry{Peer: localAddr, PMK: pmk}

	t.Run("without verification", func(t *testing.T) {
		outcome := bootstrap.Outcome{Mode: bootstrap.ModeCached}
		i, r := pair(localAddr, peerAddr, outcome, "", "")
		assert.False(t, i.NeedsConfirm())

		nonceI, err := i.BeginAuth(entryI)
		require.NoError(t, err)
		nonceR, mic, err := r.RespondAuth(nonceI, entryR)
		require.NoError(t, err)
		assert.Nil(t, mic)
		micI, err := i.ConfirmAuth(nonceR, nil)
		require.NoError(t, err)
		assert.Nil(t, micI)
	})

	t.Run("verified", func(t *testing.T) {
		outcome := bootstrap.Outcome{Mode: bootstrap.ModeCached, Verify: true}
		i, r := pair(localAddr, peerAddr, outcome, "", "")
		require.NoError(t, runHandshake(t, i, r, entryI, entryR))
	})

	t.Run("stale key fails verification", func(t *testing.T) {
		outcome := bootstrap.Outcome{Mode: bootstrap.ModeCached, Verify: true}
		i, r := pair(localAddr, peerAddr, outcome, "", "")
		stale := &bootstrap.Entry{Peer: localAddr, PMK: bootstrap.PasswordPMK("other", localAddr, peerAddr)}
		err := runHandshake(t, i, r, entryI, stale)
		assert.ErrorIs(t, err, bootstrap.ErrAuthenticationFailed)
	})

	t.Run("responder miss", func(t *testing.T) {
		outcome := bootstrap.Outcome{Mode: bootstrap.ModeCached}
		i, r := pair(localAddr, peerAddr, outcome, "", "")
		err := runHandshake(t, i, r, entryI, nil)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}
