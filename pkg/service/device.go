package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/lifecycle"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/medium"
	"github.com/p2p2-protocol/p2p2-go/pkg/pairing"
	"github.com/p2p2-protocol/p2p2-go/pkg/persistence"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// Device is one P2P2 device instance. All protocol state is owned by a
// single event loop goroutine; commands, received frames and timer expiries
// are executed on it one at a time.
type Device struct {
	mu sync.RWMutex

	config DeviceConfig
	state  ServiceState
	medium medium.Medium
	clock  clock.Clock

	sessions *usd.Table
	matcher  *usd.Matcher
	timer    *lifecycle.Timer
	tracker  *pairing.Tracker
	cache    *bootstrap.Cache
	peers    *lru.Cache[string, PeerInfo]
	groups   *group.Coordinator
	store    *persistence.DeviceStateStore

	// pairingConfig is guarded by mu; it is replaced by SetPairingConfig and
	// snapshotted by every pairing attempt.
	pairingConfig bootstrap.Config

	// Owned by the event loop.
	formations    map[string]*formation
	joinable      bool
	recentProbes  *lru.Cache[sighting, seenProbe]
	recentAdverts *lru.Cache[sighting, seenAdvert]

	events        *Queue
	eventHandlers []EventHandler

	inbox  *inbox
	cancel context.CancelFunc
	done   chan struct{}

	protocolLogger log.Logger
	logger         *slog.Logger
}

// NewDevice creates a device attached to m once started.
func NewDevice(config DeviceConfig, m medium.Medium) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: missing medium", ErrInvalidConfig)
	}

	cache, err := bootstrap.NewCache(config.CacheSize)
	if err != nil {
		return nil, err
	}
	matcher := usd.NewMatcher()
	peers, err := lru.NewWithEvict(config.PeerTableSize, func(addr string, _ PeerInfo) {
		matcher.ForgetPeer(addr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer table: %w", err)
	}
	probes, err := lru.New[sighting, seenProbe](recentSightings)
	if err != nil {
		return nil, err
	}
	adverts, err := lru.New[sighting, seenAdvert](recentSightings)
	if err != nil {
		return nil, err
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}

	d := &Device{
		config:         config,
		state:          StateIdle,
		medium:         m,
		clock:          clk,
		sessions:       usd.NewTable(config.MaxSessions),
		matcher:        matcher,
		tracker:        pairing.NewTracker(),
		cache:          cache,
		peers:          peers,
		groups:         group.NewCoordinator(config.Address),
		pairingConfig:  config.Pairing,
		formations:     make(map[string]*formation),
		recentProbes:   probes,
		recentAdverts:  adverts,
		events:         NewQueue(),
		protocolLogger: config.ProtocolLogger,
		logger:         config.Logger,
	}
	if config.StatePath != "" {
		d.store = persistence.NewDeviceStateStore(config.StatePath)
	}
	return d, nil
}

// Address returns the device address.
func (d *Device) Address() string {
	return d.config.Address
}

// State returns the current device state.
func (d *Device) State() ServiceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Events returns the notification queue.
func (d *Device) Events() *Queue {
	return d.events
}

// OnEvent registers a handler called for every notification, in addition
// to the queue. Handlers run on their own goroutine.
func (d *Device) OnEvent(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventHandlers = append(d.eventHandlers, handler)
}

// Start loads persisted state, attaches to the medium and starts the event
// loop.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle && d.state != StateStopped {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.state = StateStarting
	d.mu.Unlock()

	if err := d.loadState(); err != nil {
		d.setState(StateIdle)
		return err
	}

	box := newInbox()
	timer := lifecycle.New(d.clock, func(key lifecycle.Key, gen uint64) {
		box.post(func() { d.handleExpiry(key, gen) })
	})

	err := d.medium.Attach(d.config.Address, func(src string, frame []byte) {
		box.post(func() { d.handleFrame(src, frame) })
	})
	if err != nil {
		timer.Stop()
		d.setState(StateIdle)
		return fmt.Errorf("failed to attach to medium: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.timer = timer
	d.inbox = box
	d.cancel = cancel
	d.done = done
	d.state = StateRunning
	d.mu.Unlock()

	go d.run(loopCtx, box, done)

	d.debugLog("device started", "address", d.config.Address, "maxSessions", d.sessions.Capacity())
	return nil
}

// Stop ends every session, pairing attempt and group, stops the event loop,
// detaches from the medium and persists state. A restarted device begins
// with no sessions and no attempts in flight.
func (d *Device) Stop() error {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.state = StateStopping
	cancel, done, box := d.cancel, d.done, d.inbox
	d.mu.Unlock()

	finished := make(chan struct{})
	box.post(func() {
		d.shutdown()
		close(finished)
	})
	select {
	case <-finished:
	case <-done:
	}

	cancel()
	<-done

	d.timer.Stop()
	d.medium.Detach(d.config.Address)
	d.saveState()

	d.setState(StateStopped)
	d.debugLog("device stopped", "address", d.config.Address)
	return nil
}

// shutdown runs on the event loop before it exits.
func (d *Device) shutdown() {
	for _, role := range []usd.Role{usd.RolePublish, usd.RoleSubscribe} {
		for _, s := range d.sessions.Sessions(role) {
			_ = d.terminate(role, s.ID, usd.ReasonUserRequest)
		}
	}

	aborted := d.tracker.InFlight()
	for _, peer := range d.tracker.Peers() {
		if c, ok := d.tracker.Get(peer); ok && !c.State.IsTerminal() {
			d.failPairing(c, pairing.ReasonAborted)
		} else {
			d.tracker.End(peer)
		}
	}

	for peer, fm := range d.formations {
		d.dropFormation(peer)
		d.formationFailed(peer, fm.traceID, string(pairing.ReasonAborted), nil)
	}
	if d.groups.Active() {
		_ = d.removeGroup(group.ReasonRequested)
	}

	d.recentProbes.Purge()
	d.recentAdverts.Purge()

	for _, kind := range []lifecycle.Kind{lifecycle.KindComeback, lifecycle.KindProbe, lifecycle.KindAnnounce} {
		d.timer.CancelKind(kind)
	}
	d.debugLog("device shut down",
		"attempts", aborted,
		"timersLeft", d.timer.Pending())
}

func (d *Device) setState(s ServiceState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Device) run(ctx context.Context, box *inbox, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-box.wake:
			for _, task := range box.take() {
				if ctx.Err() != nil {
					return
				}
				task()
			}
		}
	}
}

// call executes fn on the event loop and returns its result.
func (d *Device) call(fn func() error) error {
	d.mu.RLock()
	if d.state != StateRunning {
		d.mu.RUnlock()
		return ErrNotStarted
	}
	box, done := d.inbox, d.done
	d.mu.RUnlock()

	result := make(chan error, 1)
	box.post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-done:
		return ErrNotStarted
	}
}

// SetPairingConfig replaces the pairing configuration. Attempts already in
// flight keep the snapshot they started with.
func (d *Device) SetPairingConfig(cfg bootstrap.Config) error {
	return d.UpdatePairingConfig(func(c *bootstrap.Config) error {
		*c = cfg
		return nil
	})
}

// UpdatePairingConfig applies fn to a copy of the pairing configuration on
// the event loop and stores the result. Concurrent updates never overwrite
// each other. An error from fn leaves the configuration unchanged.
func (d *Device) UpdatePairingConfig(fn func(*bootstrap.Config) error) error {
	return d.call(func() error {
		cfg := d.PairingConfig()
		if err := fn(&cfg); err != nil {
			return err
		}

		d.mu.Lock()
		d.pairingConfig = cfg
		d.mu.Unlock()

		d.debugLog("pairing config updated",
			"pasnType", cfg.PASNType,
			"methods", cfg.BootstrapMethods.String(),
			"setup", cfg.PairingSetup,
			"cache", cfg.PairingCache,
			"verification", cfg.PairingVerification)
		d.saveState()
		return nil
	})
}

// PairingConfig returns the current pairing configuration.
func (d *Device) PairingConfig() bootstrap.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pairingConfig
}

// FlushPairingCache forgets every cached pairing.
func (d *Device) FlushPairingCache() error {
	return d.call(func() error {
		d.cache.Purge()
		d.saveState()
		return nil
	})
}

// CachedPeers returns the peers with a cached pairing, sorted.
func (d *Device) CachedPeers() []string {
	entries := d.cache.Snapshot()
	peers := make([]string, len(entries))
	for i, e := range entries {
		peers[i] = e.Peer
	}
	return peers
}

// Peers returns the addresses of discovered peers, sorted.
func (d *Device) Peers() []string {
	peers := d.peers.Keys()
	sort.Strings(peers)
	return peers
}

// Peer returns what is known about a discovered peer.
func (d *Device) Peer(addr string) (PeerInfo, error) {
	info, ok := d.peers.Peek(addr)
	if !ok {
		return PeerInfo{}, ErrPeerNotFound
	}
	return info, nil
}

// Group returns a snapshot of the active group.
func (d *Device) Group() (*group.State, bool) {
	return d.groups.Current()
}

// PublishSession returns a snapshot of an active publish session.
func (d *Device) PublishSession(id int) (*usd.Session, error) {
	return d.sessions.Get(usd.RolePublish, id)
}

// SubscribeSession returns a snapshot of an active subscribe session.
func (d *Device) SubscribeSession(id int) (*usd.Session, error) {
	return d.sessions.Get(usd.RoleSubscribe, id)
}

// learnPeer records the capabilities a peer advertised and raises
// DeviceFound the first time the peer is seen.
func (d *Device) learnPeer(addr string, dev *wire.Device) {
	now := d.clock.Now()
	info, known := d.peers.Get(addr)
	if !known {
		info = PeerInfo{Address: addr, FirstSeen: now}
	}
	info.Capabilities = bootstrap.Capabilities{
		PASNType:            dev.PASNType,
		BootstrapMethods:    bootstrap.Method(dev.BootstrapMethods),
		PairingSetup:        dev.PairingSetup,
		PairingCache:        dev.PairingCache,
		PairingVerification: dev.PairingVerification,
	}
	info.HasGroup = dev.HasGroup
	info.LastSeen = now
	d.peers.Add(addr, info)

	if !known {
		d.debugLog("peer discovered", "peer", addr)
		d.emit(Event{Type: EventDeviceFound, Peer: addr})
	}
}

// deviceAttrs returns the P2P2 attributes this device advertises.
func (d *Device) deviceAttrs() *wire.Device {
	cfg := d.PairingConfig()
	return &wire.Device{
		PASNType:            cfg.PASNType,
		BootstrapMethods:    uint16(cfg.BootstrapMethods),
		PairingSetup:        cfg.PairingSetup,
		PairingCache:        cfg.PairingCache,
		PairingVerification: cfg.PairingVerification,
		HasGroup:            d.groups.IsGroupOwner() && d.joinable,
	}
}

// send encodes f and hands it to the medium.
func (d *Device) send(f *wire.Frame, traceID string) error {
	f.Src = d.config.Address
	data, err := wire.Encode(f)
	if err != nil {
		d.traceError(log.LayerMedium, f.Dst, err.Error(), "encode "+f.Type.String())
		return err
	}
	d.traceFrame(log.DirectionOut, f, data, traceID)

	if err := d.medium.Send(f.Src, f.Dst, data); err != nil {
		d.debugLog("send failed", "frame", f.Type.String(), "dst", f.Dst, "error", err)
		return fmt.Errorf("failed to send %s: %w", f.Type, err)
	}
	return nil
}

// handleFrame decodes and dispatches a frame received from the medium.
func (d *Device) handleFrame(src string, data []byte) {
	f, err := wire.Decode(data)
	if err != nil {
		d.traceError(log.LayerMedium, src, err.Error(), "decode")
		d.debugLog("dropping malformed frame", "src", src, "error", err)
		return
	}
	if f.Src != src {
		d.traceError(log.LayerMedium, src, "source mismatch", f.Type.String())
		return
	}
	if f.Dst != "" && f.Dst != d.config.Address {
		return
	}

	traceID := ""
	if c, ok := d.tracker.Get(src); ok {
		traceID = c.ID
	}
	d.traceFrame(log.DirectionIn, f, data, traceID)

	switch f.Type {
	case wire.FrameSubscribe:
		d.handleSubscribeFrame(f)
	case wire.FramePublish:
		d.handlePublishFrame(f)
	case wire.FrameBootstrapRequest:
		d.handleBootstrapRequest(f)
	case wire.FrameBootstrapResponse:
		d.handleBootstrapResponse(f)
	case wire.FrameAuth1:
		d.handleAuth1(f)
	case wire.FrameAuth2:
		d.handleAuth2(f)
	case wire.FrameAuth3:
		d.handleAuth3(f)
	case wire.FrameGroupConfirm:
		d.handleGroupConfirm(f)
	case wire.FrameGroupAssociated:
		d.handleGroupAssociated(f)
	case wire.FrameGroupDeauth:
		d.handleGroupDeauth(f)
	case wire.FrameGroupLeave:
		d.handleGroupLeave(f)
	}
}

// handleExpiry dispatches a timer expiry that is still current.
func (d *Device) handleExpiry(key lifecycle.Key, gen uint64) {
	if !d.timer.Claim(key, gen) {
		return
	}

	switch key.Kind {
	case lifecycle.KindPublish:
		d.expireSession(usd.RolePublish, key)
	case lifecycle.KindSubscribe:
		d.expireSession(usd.RoleSubscribe, key)
	case lifecycle.KindProbe:
		d.repeatProbe(key)
	case lifecycle.KindAnnounce:
		d.repeatAnnounce(key)
	case lifecycle.KindPairing:
		d.expirePairing(key.ID)
	case lifecycle.KindComeback:
		d.retryBootstrap(key.ID)
	case lifecycle.KindFormation:
		d.expireFormation(key.ID)
	}
}

// schedule arms a timer entry, logging failures.
func (d *Device) schedule(key lifecycle.Key, dur time.Duration) {
	if _, err := d.timer.Schedule(key, dur); err != nil {
		d.debugLog("failed to schedule timer", "key", key.String(), "error", err)
	}
}

// emit queues a notification and runs the registered handlers.
func (d *Device) emit(ev Event) {
	ev.Time = d.clock.Now()
	ev.Device = d.config.Address
	d.events.push(ev)

	d.trace(log.Event{
		Layer:    eventLayer(ev.Type),
		Category: log.CategoryNotification,
		PeerAddr: ev.Peer,
		Notification: &log.NotificationEvent{
			Type:   ev.Type.String(),
			Fields: ev.Fields(),
		},
	})

	d.mu.RLock()
	handlers := d.eventHandlers
	d.mu.RUnlock()
	for _, handler := range handlers {
		go handler(ev)
	}
}

// debugLog logs a debug message if logging is enabled.
func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

// inbox is the unbounded task queue of the event loop.
type inbox struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

func (b *inbox) post(task func()) {
	b.mu.Lock()
	b.tasks = append(b.tasks, task)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *inbox) take() []func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	tasks := b.tasks
	b.tasks = nil
	return tasks
}
