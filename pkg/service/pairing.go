package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/lifecycle"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/pairing"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// Connect starts a pairing with a discovered peer or, with Auth set,
// authorizes the peer to pair with this device. Progress is reported by
// notifications; only validation and negotiation errors are returned.
func (d *Device) Connect(p ConnectParams) error {
	return d.call(func() error {
		if err := d.validateConnect(p); err != nil {
			return err
		}
		if p.Auth {
			return d.authorize(p)
		}
		return d.initiate(p)
	})
}

func (d *Device) validateConnect(p ConnectParams) error {
	if p.Peer == "" || p.Peer == d.config.Address {
		return fmt.Errorf("%w: peer %q", usd.ErrInvalidParameters, p.Peer)
	}
	if !p.Method.Single() {
		return fmt.Errorf("%w: %s", bootstrap.ErrInvalidMethod, p.Method)
	}
	if p.GoIntent != UseDefaultIntent && (p.GoIntent < 0 || p.GoIntent > group.MaxGoIntent) {
		return fmt.Errorf("%w: %d", group.ErrInvalidIntent, p.GoIntent)
	}
	if _, ok := d.peers.Peek(p.Peer); !ok {
		return ErrPeerNotFound
	}
	return nil
}

func (d *Device) connectIntent(p ConnectParams) pairing.Intent {
	intent := p.GoIntent
	if intent == UseDefaultIntent {
		intent = d.config.GoIntent
	}
	return pairing.Intent{GoIntent: intent, Join: p.Join, Freq: p.Freq}
}

// authorize records the responder side consent for a peer.
func (d *Device) authorize(p ConnectParams) error {
	cfg := d.PairingConfig()
	if !cfg.PairingSetup || !bootstrap.Supports(cfg.BootstrapMethods, p.Method) {
		return bootstrap.ErrUnsupportedMethod
	}
	if p.Method.RequiresPassword() && p.Password == "" {
		return bootstrap.ErrAuthenticationFailed
	}

	// On the responder, join means the peer may join this device's group.
	intent := d.connectIntent(p)
	intent.Join = false

	d.tracker.Authorize(pairing.Authorization{
		Peer:     p.Peer,
		Method:   p.Method,
		Password: p.Password,
		Intent:   intent,
		At:       d.clock.Now(),
	})
	d.debugLog("pairing authorized", "peer", p.Peer, "method", p.Method.String())
	return nil
}

// initiate negotiates and starts a pairing as initiator.
func (d *Device) initiate(p ConnectParams) error {
	if c, ok := d.tracker.Get(p.Peer); ok && !c.State.IsTerminal() {
		return pairing.ErrBusy
	}

	peer, _ := d.peers.Get(p.Peer)
	cfg := d.PairingConfig()

	var cached *bootstrap.Entry
	if cfg.PairingCache {
		if e, ok := d.cache.Get(p.Peer); ok {
			cached = e
		}
	}

	outcome, err := bootstrap.Negotiate(cfg, peer.Capabilities, p.Method, p.Password, cached)
	if err != nil {
		d.debugLog("negotiation failed", "peer", p.Peer, "method", p.Method.String(), "error", err)
		return err
	}

	c := &pairing.Context{
		ID:          uuid.NewString(),
		Local:       d.config.Address,
		Peer:        p.Peer,
		Role:        pairing.RoleInitiator,
		Method:      p.Method,
		Outcome:     outcome,
		Password:    p.Password,
		Config:      cfg,
		LocalIntent: d.connectIntent(p),
		State:       pairing.StateIdle,
		StartedAt:   d.clock.Now(),
		Backoff: pairing.NewBackoffWithConfig(pairing.BackoffConfig{
			Initial: d.config.ComebackDelay,
			Jitter:  pairing.ComebackJitter,
		}),
	}
	c.LocalIntent.HasGroup = d.groups.IsGroupOwner()

	if err := d.tracker.Begin(c); err != nil {
		return err
	}
	d.schedule(lifecycle.PeerKey(lifecycle.KindPairing, c.Peer), d.config.PairingTimeout)
	d.debugLog("pairing started",
		"peer", c.Peer,
		"traceID", c.ID,
		"method", c.Method.String(),
		"mode", outcome.Mode.String())

	if c.Cached() {
		err = d.startAuth(c, cached)
	} else {
		err = d.requestBootstrap(c)
	}
	if err != nil {
		d.abandon(c)
		return err
	}
	return nil
}

func (d *Device) requestBootstrap(c *pairing.Context) error {
	if err := d.transition(c, pairing.StateBootstrapRequested); err != nil {
		return err
	}
	return d.sendBootstrapRequest(c)
}

func (d *Device) sendBootstrapRequest(c *pairing.Context) error {
	return d.send(&wire.Frame{
		Type:   wire.FrameBootstrapRequest,
		Dst:    c.Peer,
		Device: d.deviceAttrs(),
		Bootstrap: &wire.Bootstrap{
			Method: uint16(c.Method),
			Intent: wireIntent(c.LocalIntent),
		},
	}, c.ID)
}

func (d *Device) sendBootstrapResponse(peer string, method bootstrap.Method, status pairing.Status, comeback time.Duration, intent *wire.Intent, traceID string) {
	_ = d.send(&wire.Frame{
		Type:   wire.FrameBootstrapResponse,
		Dst:    peer,
		Device: d.deviceAttrs(),
		Bootstrap: &wire.Bootstrap{
			Method:         uint16(method),
			Status:         uint8(status),
			ComebackMillis: uint32(comeback / time.Millisecond),
			Intent:         intent,
		},
	}, traceID)
}

// startAuth moves the initiator to Authenticating and sends Auth1.
func (d *Device) startAuth(c *pairing.Context, cached *bootstrap.Entry) error {
	if err := d.transition(c, pairing.StateAuthenticating); err != nil {
		return err
	}
	nonce, err := c.BeginAuth(cached)
	if err != nil {
		return err
	}
	return d.send(&wire.Frame{
		Type:   wire.FrameAuth1,
		Dst:    c.Peer,
		Device: d.deviceAttrs(),
		Auth: &wire.Auth{
			Cached: c.Cached(),
			Verify: c.Outcome.Verify,
			Nonce:  nonce,
			Method: uint16(c.Outcome.Method),
			Intent: wireIntent(c.LocalIntent),
		},
	}, c.ID)
}

func (d *Device) sendAuth(frameType wire.FrameType, peer string, a *wire.Auth, traceID string) {
	_ = d.send(&wire.Frame{Type: frameType, Dst: peer, Auth: a}, traceID)
}

// handleBootstrapRequest is the responder side of bootstrapping.
func (d *Device) handleBootstrapRequest(f *wire.Frame) {
	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}

	src := f.Src
	method := bootstrap.Method(f.Bootstrap.Method)
	peerIntent := intentFromWire(f.Bootstrap.Intent)
	cfg := d.PairingConfig()

	reject := func(status pairing.Status) {
		d.debugLog("bootstrap request rejected", "peer", src, "status", status.String())
		d.sendBootstrapResponse(src, method, status, 0, nil, "")
	}

	if !cfg.PairingSetup || !method.Single() || !bootstrap.Supports(cfg.BootstrapMethods, method) {
		reject(pairing.StatusUnsupported)
		return
	}
	if peerIntent.Join && !d.acceptsJoin() {
		reject(pairing.StatusUnsupported)
		return
	}

	c, ok := d.tracker.Get(src)
	switch {
	case ok && c.Role == pairing.RoleResponder && c.State == pairing.StateBootstrapRequested:
		// A repeat after comeback.
	case ok && !c.State.IsTerminal():
		reject(pairing.StatusBusy)
		return
	case d.tracker.InboundBusy(src):
		reject(pairing.StatusBusy)
		return
	default:
		c = &pairing.Context{
			ID:         uuid.NewString(),
			Local:      d.config.Address,
			Peer:       src,
			Role:       pairing.RoleResponder,
			Method:     method,
			Outcome:    bootstrap.Outcome{Method: method, Mode: method.Mode()},
			Config:     cfg,
			PeerIntent: peerIntent,
			State:      pairing.StateIdle,
			StartedAt:  d.clock.Now(),
		}
		if err := d.tracker.Begin(c); err != nil {
			reject(pairing.StatusBusy)
			return
		}
		if err := d.transition(c, pairing.StateBootstrapRequested); err != nil {
			d.abandon(c)
			return
		}
		d.schedule(lifecycle.PeerKey(lifecycle.KindPairing, src), d.config.PairingTimeout)
	}

	auth, authorized := d.tracker.Authorization(src)
	if !authorized {
		first := c.Comebacks == 0
		c.Comebacks++
		d.sendBootstrapResponse(src, method, pairing.StatusComeback, d.config.ComebackDelay, nil, c.ID)
		if first {
			d.emit(Event{Type: EventBootstrapRequest, Peer: src, Method: method})
		}
		return
	}
	if !bootstrap.Compatible(auth.Method, method) {
		d.sendBootstrapResponse(src, method, pairing.StatusUnsupported, 0, nil, c.ID)
		d.failPairing(c, pairing.ReasonUnsupportedMethod)
		return
	}

	c.Password = auth.Password
	c.LocalIntent = auth.Intent
	c.LocalIntent.HasGroup = d.groups.IsGroupOwner()
	if err := d.transition(c, pairing.StateAuthenticating); err != nil {
		return
	}
	d.sendBootstrapResponse(src, method, pairing.StatusSuccess, 0, wireIntent(c.LocalIntent), c.ID)
}

// handleBootstrapResponse is the initiator side of bootstrapping.
func (d *Device) handleBootstrapResponse(f *wire.Frame) {
	c, ok := d.tracker.Get(f.Src)
	if !ok || c.Role != pairing.RoleInitiator || c.State != pairing.StateBootstrapRequested {
		d.traceError(log.LayerPairing, f.Src, "unexpected bootstrap response", f.Type.String())
		return
	}
	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}

	status := pairing.Status(f.Bootstrap.Status)
	switch status {
	case pairing.StatusComeback:
		c.Comebacks++
		delay := c.Backoff.Next()
		if asked := time.Duration(f.Bootstrap.ComebackMillis) * time.Millisecond; asked > delay {
			delay = asked
		}
		d.debugLog("bootstrap comeback", "peer", c.Peer, "delay", delay, "attempt", c.Backoff.Attempts())
		d.schedule(lifecycle.PeerKey(lifecycle.KindComeback, c.Peer), delay)
	case pairing.StatusSuccess:
		c.PeerIntent = intentFromWire(f.Bootstrap.Intent)
		if err := d.startAuth(c, nil); err != nil {
			d.failPairing(c, pairing.ReasonRejected)
		}
	default:
		d.failPairing(c, failureReason(status))
	}
}

// retryBootstrap repeats a bootstrapping request after a comeback delay.
func (d *Device) retryBootstrap(peer string) {
	c, ok := d.tracker.Get(peer)
	if !ok || c.Role != pairing.RoleInitiator || c.State != pairing.StateBootstrapRequested {
		return
	}
	if err := d.sendBootstrapRequest(c); err != nil {
		d.failPairing(c, pairing.ReasonRejected)
	}
}

// handleAuth1 is the responder side of the first authentication frame,
// for bootstrapped and cached pairings.
func (d *Device) handleAuth1(f *wire.Frame) {
	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}
	src, a := f.Src, f.Auth

	c, ok := d.tracker.Get(src)
	if ok && c.Role == pairing.RoleResponder && c.State == pairing.StateAuthenticating && !a.Cached {
		if a.Intent != nil {
			c.PeerIntent = intentFromWire(a.Intent)
		}
		d.respondAuth(c, a.Nonce, nil)
		return
	}

	reply := func(status pairing.Status) {
		d.sendAuth(wire.FrameAuth2, src, &wire.Auth{Status: uint8(status)}, "")
	}
	if !a.Cached {
		reply(pairing.StatusUnsupported)
		return
	}

	cfg := d.PairingConfig()
	var entry *bootstrap.Entry
	if cfg.PairingSetup && cfg.PairingCache {
		if e, found := d.cache.Get(src); found {
			entry = e
		}
	}
	if entry == nil {
		reply(pairing.StatusCacheMiss)
		return
	}
	peerIntent := intentFromWire(a.Intent)
	if peerIntent.Join && !d.acceptsJoin() {
		reply(pairing.StatusUnsupported)
		return
	}
	if (ok && !c.State.IsTerminal()) || d.tracker.InboundBusy(src) {
		reply(pairing.StatusBusy)
		return
	}

	intent := pairing.Intent{GoIntent: d.config.GoIntent}
	if auth, authorized := d.tracker.Authorization(src); authorized {
		intent = auth.Intent
	}
	intent.HasGroup = d.groups.IsGroupOwner()

	c = &pairing.Context{
		ID:     uuid.NewString(),
		Local:  d.config.Address,
		Peer:   src,
		Role:   pairing.RoleResponder,
		Method: bootstrap.Method(a.Method),
		Outcome: bootstrap.Outcome{
			Method: bootstrap.Method(a.Method),
			Mode:   bootstrap.ModeCached,
			Verify: a.Verify || cfg.PairingVerification,
		},
		Config:      cfg,
		LocalIntent: intent,
		PeerIntent:  peerIntent,
		State:       pairing.StateIdle,
		StartedAt:   d.clock.Now(),
	}
	if err := d.tracker.Begin(c); err != nil {
		reply(pairing.StatusBusy)
		return
	}
	if err := d.transition(c, pairing.StateAuthenticating); err != nil {
		d.abandon(c)
		return
	}
	d.schedule(lifecycle.PeerKey(lifecycle.KindPairing, src), d.config.PairingTimeout)
	d.respondAuth(c, a.Nonce, entry)
}

func (d *Device) respondAuth(c *pairing.Context, nonceI []byte, entry *bootstrap.Entry) {
	nonceR, mic, err := c.RespondAuth(nonceI, entry)
	if err != nil {
		d.sendAuth(wire.FrameAuth2, c.Peer, &wire.Auth{Status: uint8(pairing.StatusAuthFailed)}, c.ID)
		d.failPairing(c, pairing.ReasonAuthFailed)
		return
	}
	_ = d.send(&wire.Frame{
		Type:   wire.FrameAuth2,
		Dst:    c.Peer,
		Device: d.deviceAttrs(),
		Auth: &wire.Auth{
			Cached: c.Cached(),
			Verify: c.Outcome.Verify,
			Nonce:  nonceR,
			MIC:    mic,
			Method: uint16(c.Outcome.Method),
			Intent: wireIntent(c.LocalIntent),
		},
	}, c.ID)
	if !c.NeedsConfirm() {
		d.completePairing(c)
	}
}

// handleAuth2 is the initiator side of the responder's authentication frame.
func (d *Device) handleAuth2(f *wire.Frame) {
	c, ok := d.tracker.Get(f.Src)
	if !ok || c.Role != pairing.RoleInitiator || c.State != pairing.StateAuthenticating {
		d.traceError(log.LayerPairing, f.Src, "unexpected auth frame", f.Type.String())
		return
	}
	a := f.Auth
	status := pairing.Status(a.Status)

	switch {
	case status == pairing.StatusCacheMiss && c.Cached():
		d.evict(c.Peer)
		d.fallbackToBootstrap(c)
		return
	case status != pairing.StatusSuccess:
		if c.Cached() && status == pairing.StatusAuthFailed {
			d.evict(c.Peer)
		}
		d.failPairing(c, failureReason(status))
		return
	}

	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}
	if a.Intent != nil {
		c.PeerIntent = intentFromWire(a.Intent)
	}
	// The responder may require verification of a cached key.
	if c.Cached() && a.Verify {
		c.Outcome.Verify = true
	}
	micI, err := c.ConfirmAuth(a.Nonce, a.MIC)
	if err != nil {
		d.sendAuth(wire.FrameAuth3, c.Peer, &wire.Auth{Status: uint8(pairing.StatusAuthFailed)}, c.ID)
		if c.Cached() {
			d.evict(c.Peer)
		}
		d.failPairing(c, pairing.ReasonAuthFailed)
		return
	}
	if c.NeedsConfirm() {
		d.sendAuth(wire.FrameAuth3, c.Peer, &wire.Auth{MIC: micI}, c.ID)
	}
	d.completePairing(c)
}

// fallbackToBootstrap restarts a cached attempt the peer no longer
// remembers with the method of the Connect command.
func (d *Device) fallbackToBootstrap(c *pairing.Context) {
	if c.Method.RequiresPassword() && c.Password == "" {
		d.failPairing(c, pairing.ReasonAuthFailed)
		return
	}
	c.Outcome = bootstrap.Outcome{Method: c.Method, Mode: c.Method.Mode()}
	c.PMK = nil
	c.Backoff.Reset()
	d.debugLog("cached pairing unknown to peer, bootstrapping", "peer", c.Peer)
	if err := d.requestBootstrap(c); err != nil {
		d.failPairing(c, pairing.ReasonRejected)
	}
}

// handleAuth3 completes the responder side.
func (d *Device) handleAuth3(f *wire.Frame) {
	c, ok := d.tracker.Get(f.Src)
	if !ok || c.Role != pairing.RoleResponder || c.State != pairing.StateAuthenticating {
		d.traceError(log.LayerPairing, f.Src, "unexpected auth frame", f.Type.String())
		return
	}
	a := f.Auth

	if status := pairing.Status(a.Status); status != pairing.StatusSuccess {
		if c.Cached() {
			d.evict(c.Peer)
		}
		d.failPairing(c, failureReason(status))
		return
	}
	if err := c.FinishAuth(a.MIC); err != nil {
		if c.Cached() {
			d.evict(c.Peer)
		}
		d.failPairing(c, pairing.ReasonAuthFailed)
		return
	}
	d.completePairing(c)
}

// completePairing records a successful pairing and hands it to group
// formation.
func (d *Device) completePairing(c *pairing.Context) {
	if err := d.transition(c, pairing.StatePaired); err != nil {
		return
	}
	d.endPairing(c)

	if c.Config.PairingCache {
		d.cache.Put(c.Entry(d.clock.Now()))
		d.saveState()
	}
	if c.Role == pairing.RoleResponder {
		d.tracker.Revoke(c.Peer)
	}

	d.debugLog("pairing complete", "peer", c.Peer, "traceID", c.ID, "cached", c.Cached())
	d.emit(Event{
		Type:   EventPairingComplete,
		Peer:   c.Peer,
		Method: c.Outcome.Method,
		Cached: c.Cached(),
	})

	d.formGroup(c)
}

// failPairing moves an attempt to Failed and notifies the reason.
func (d *Device) failPairing(c *pairing.Context, reason pairing.Reason) {
	old := c.State
	if err := c.Fail(reason); err != nil {
		d.debugLog("pairing already finished", "peer", c.Peer, "state", old.String())
		return
	}
	d.tracePairing(c, old)
	d.endPairing(c)

	d.debugLog("pairing failed", "peer", c.Peer, "traceID", c.ID, "reason", string(reason))
	d.emit(Event{Type: EventPairingFailed, Peer: c.Peer, Method: c.Method, Reason: string(reason)})
}

func (d *Device) expirePairing(peer string) {
	c, ok := d.tracker.Get(peer)
	if !ok || c.State.IsTerminal() {
		return
	}
	old := c.State
	if err := c.Expire(); err != nil {
		return
	}
	d.tracePairing(c, old)
	d.endPairing(c)

	d.debugLog("pairing timed out", "peer", peer, "traceID", c.ID, "state", old.String())
	d.emit(Event{Type: EventPairingFailed, Peer: peer, Method: c.Method, Reason: string(pairing.ReasonTimeout)})
}

// abandon drops an attempt whose command failed synchronously. No
// notification is raised.
func (d *Device) abandon(c *pairing.Context) {
	old := c.State
	if c.Fail(pairing.ReasonRejected) == nil {
		d.tracePairing(c, old)
	}
	d.endPairing(c)
}

func (d *Device) endPairing(c *pairing.Context) {
	d.tracker.End(c.Peer)
	d.timer.Cancel(lifecycle.PeerKey(lifecycle.KindPairing, c.Peer))
	d.timer.Cancel(lifecycle.PeerKey(lifecycle.KindComeback, c.Peer))
}

func (d *Device) evict(peer string) {
	if d.cache.Remove(peer) {
		d.debugLog("pairing cache entry evicted", "peer", peer)
		d.saveState()
	}
}

func (d *Device) transition(c *pairing.Context, to pairing.State) error {
	old := c.State
	if err := c.Transition(to); err != nil {
		d.traceError(log.LayerPairing, c.Peer, err.Error(), "transition")
		return err
	}
	d.tracePairing(c, old)
	return nil
}

func (d *Device) tracePairing(c *pairing.Context, old pairing.State) {
	d.traceState(log.LayerPairing, c.Peer, c.ID, log.StateEntityPairing, c.Peer,
		old.String(), c.State.String(), string(c.Reason))
}

// failureReason maps a failure status to the reason reported locally.
func failureReason(status pairing.Status) pairing.Reason {
	if r := status.Reason(); r != pairing.ReasonNone {
		return r
	}
	return pairing.ReasonRejected
}

func wireIntent(i pairing.Intent) *wire.Intent {
	return &wire.Intent{
		GoIntent: uint8(i.GoIntent),
		Join:     i.Join,
		HasGroup: i.HasGroup,
		Freq:     uint32(i.Freq),
	}
}

func intentFromWire(i *wire.Intent) pairing.Intent {
	if i == nil {
		return pairing.Intent{GoIntent: group.DefaultGoIntent}
	}
	return pairing.Intent{
		GoIntent: int(i.GoIntent),
		Join:     i.Join,
		HasGroup: i.HasGroup,
		Freq:     int(i.Freq),
	}
}
