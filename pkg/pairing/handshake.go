package pairing

import (
	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
)

// The authentication exchange:
//
//	initiator                         responder
//	BeginAuth        --- Auth1 --->   RespondAuth
//	ConfirmAuth      <--- Auth2 ---
//	                 --- Auth3 --->   FinishAuth
//
// Auth3 is omitted when NeedsConfirm is false.

// BeginAuth prepares the initiator's first authentication frame. cached is
// the local cache entry when the outcome is cached.
func (c *Context) BeginAuth(cached *bootstrap.Entry) (nonceI []byte, err error) {
	if c.Cached() {
		if cached == nil {
			return nil, ErrCacheMiss
		}
		c.PMK = append([]byte(nil), cached.PMK...)
	}
	c.NonceI, err = bootstrap.NewNonce()
	if err != nil {
		return nil, err
	}
	return c.NonceI, nil
}

// RespondAuth processes Auth1 at the responder and returns its nonce and
// MIC. mic is nil when NeedsConfirm is false.
func (c *Context) RespondAuth(nonceI []byte, cached *bootstrap.Entry) (nonceR, mic []byte, err error) {
	c.NonceI = append([]byte(nil), nonceI...)
	c.NonceR, err = bootstrap.NewNonce()
	if err != nil {
		return nil, nil, err
	}
	if c.Cached() {
		if cached == nil {
			return nil, nil, ErrCacheMiss
		}
		c.PMK = append([]byte(nil), cached.PMK...)
	}
	if err := c.derive(); err != nil {
		return nil, nil, err
	}
	if !c.NeedsConfirm() {
		return c.NonceR, nil, nil
	}
	return c.NonceR, bootstrap.MIC(c.KCK, bootstrap.LabelResponder, c.NonceI, c.NonceR), nil
}

// ConfirmAuth verifies the responder's MIC at the initiator and returns the
// initiator MIC for Auth3. It fails with bootstrap.ErrAuthenticationFailed
// when the two sides do not hold the same key.
func (c *Context) ConfirmAuth(nonceR, mic []byte) ([]byte, error) {
	c.NonceR = append([]byte(nil), nonceR...)
	if err := c.derive(); err != nil {
		return nil, err
	}
	if !c.NeedsConfirm() {
		return nil, nil
	}
	if err := bootstrap.VerifyMIC(c.KCK, bootstrap.LabelResponder, c.NonceI, c.NonceR, mic); err != nil {
		return nil, err
	}
	return bootstrap.MIC(c.KCK, bootstrap.LabelInitiator, c.NonceI, c.NonceR), nil
}

// FinishAuth verifies the initiator's MIC at the responder.
func (c *Context) FinishAuth(mic []byte) error {
	if !c.NeedsConfirm() {
		return nil
	}
	return bootstrap.VerifyMIC(c.KCK, bootstrap.LabelInitiator, c.NonceI, c.NonceR, mic)
}

func (c *Context) derive() error {
	switch {
	case c.Cached():
	case c.Outcome.Mode == bootstrap.ModeOpportunistic:
		pmk, err := bootstrap.OpportunisticPMK(c.NonceI, c.NonceR)
		if err != nil {
			return err
		}
		c.PMK = pmk
	default:
		c.PMK = bootstrap.PasswordPMK(c.Password, c.Local, c.Peer)
	}
	kck, err := bootstrap.DeriveKCK(c.PMK, c.NonceI, c.NonceR, c.Initiator(), c.Responder())
	if err != nil {
		return err
	}
	c.KCK = kck
	return nil
}
