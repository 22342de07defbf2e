package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joeshaw/envdecode"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("device not started")
	ErrAlreadyStarted = errors.New("device already started")
	ErrInvalidConfig  = errors.New("invalid configuration")

	// ErrPeerNotFound is returned for commands naming a peer that was never
	// discovered.
	ErrPeerNotFound = fmt.Errorf("peer not found: %w", usd.ErrNotFound)

	// ErrNoGroup is returned by RemoveGroup when no group is active.
	ErrNoGroup = fmt.Errorf("no active group: %w", usd.ErrNotFound)
)

// ServiceState represents the device state.
type ServiceState uint8

const (
	// StateIdle - device created but not started.
	StateIdle ServiceState = iota

	// StateStarting - device is starting up.
	StateStarting

	// StateRunning - device is running normally.
	StateRunning

	// StateStopping - device is shutting down.
	StateStopping

	// StateStopped - device has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// DeviceConfig configures a P2P2 device.
type DeviceConfig struct {
	// Address is the P2P device address, e.g. "02:00:00:00:00:00".
	Address string

	// MaxSessions is the number of concurrent publish sessions and, separately,
	// subscribe sessions.
	MaxSessions int

	// TTLUnit is the duration of one session TTL unit.
	TTLUnit time.Duration

	// ProbeInterval is how often an active subscribe repeats its probe.
	ProbeInterval time.Duration

	// AnnounceInterval is how often an unsolicited publish repeats its
	// announcement.
	AnnounceInterval time.Duration

	// PairingTimeout bounds a pairing attempt from Connect to Paired.
	PairingTimeout time.Duration

	// FormationTimeout bounds the wait for group confirmation and
	// association after pairing.
	FormationTimeout time.Duration

	// ComebackDelay is the delay a responder asks for when it answers a
	// bootstrapping request with a comeback.
	ComebackDelay time.Duration

	// GoIntent is the group owner intent used when a command gives none.
	GoIntent int

	// OperatingFrequency is the frequency in MHz of groups this device owns
	// when no side forces one.
	OperatingFrequency int

	// Pairing is the initial pairing configuration.
	Pairing bootstrap.Config

	// PeerTableSize is the number of discovered peers remembered.
	PeerTableSize int

	// CacheSize is the number of pairing cache entries.
	CacheSize int

	// StatePath is the JSON file the pairing cache and configuration are
	// persisted to. Empty disables persistence.
	StatePath string

	// Clock drives session lifetimes and protocol timeouts.
	// If nil, the wall clock is used.
	Clock clock.Clock

	// ProtocolLogger receives protocol trace events.
	// If nil, no tracing is performed.
	ProtocolLogger log.Logger

	// Logger is the operational logger.
	// If nil, no logging is performed.
	Logger *slog.Logger
}

// DefaultDeviceConfig returns a DeviceConfig with sensible defaults.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		MaxSessions:        usd.DefaultMaxSessions,
		TTLUnit:            time.Second,
		ProbeInterval:      time.Second,
		AnnounceInterval:   time.Second,
		PairingTimeout:     10 * time.Second,
		FormationTimeout:   10 * time.Second,
		ComebackDelay:      100 * time.Millisecond,
		GoIntent:           group.DefaultGoIntent,
		OperatingFrequency: group.DefaultFrequency,
		Pairing:            bootstrap.DefaultConfig(),
		PeerTableSize:      64,
		CacheSize:          bootstrap.DefaultCacheSize,
	}
}

// Validate checks if the device config is valid.
func (c *DeviceConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidConfig)
	}
	if c.MaxSessions <= 0 || c.PeerTableSize <= 0 || c.CacheSize <= 0 {
		return fmt.Errorf("%w: table sizes must be positive", ErrInvalidConfig)
	}
	if c.TTLUnit <= 0 || c.ProbeInterval <= 0 || c.AnnounceInterval <= 0 {
		return fmt.Errorf("%w: discovery intervals must be positive", ErrInvalidConfig)
	}
	if c.PairingTimeout <= 0 || c.FormationTimeout <= 0 || c.ComebackDelay <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.GoIntent < 0 || c.GoIntent > group.MaxGoIntent {
		return fmt.Errorf("%w: go intent %d", ErrInvalidConfig, c.GoIntent)
	}
	if c.OperatingFrequency <= 0 {
		return fmt.Errorf("%w: operating frequency %d", ErrInvalidConfig, c.OperatingFrequency)
	}
	return nil
}

// envConfig lists the settings that can be overridden from the environment.
type envConfig struct {
	Address            string        `env:"P2P2_ADDRESS"`
	MaxSessions        int           `env:"P2P2_MAX_SESSIONS"`
	TTLUnit            time.Duration `env:"P2P2_TTL_UNIT"`
	PairingTimeout     time.Duration `env:"P2P2_PAIRING_TIMEOUT"`
	FormationTimeout   time.Duration `env:"P2P2_FORMATION_TIMEOUT"`
	GoIntent           int           `env:"P2P2_GO_INTENT"`
	OperatingFrequency int           `env:"P2P2_FREQ"`
	PASNType           uint8         `env:"P2P2_PASN_TYPE"`
	BootstrapMethods   uint16        `env:"P2P2_BOOTSTRAP_METHODS"`
	PairingSetup       bool          `env:"P2P2_PAIRING_SETUP"`
	PairingCache       bool          `env:"P2P2_PAIRING_CACHE"`
	PairingVerify      bool          `env:"P2P2_PAIRING_VERIFICATION"`
	StatePath          string        `env:"P2P2_STATE_PATH"`
}

// ApplyEnv overrides config fields from P2P2_* environment variables.
// Variables that are not set leave the field unchanged.
func (c *DeviceConfig) ApplyEnv() error {
	env := envConfig{
		Address:            c.Address,
		MaxSessions:        c.MaxSessions,
		TTLUnit:            c.TTLUnit,
		PairingTimeout:     c.PairingTimeout,
		FormationTimeout:   c.FormationTimeout,
		GoIntent:           c.GoIntent,
		OperatingFrequency: c.OperatingFrequency,
		PASNType:           c.Pairing.PASNType,
		BootstrapMethods:   uint16(c.Pairing.BootstrapMethods),
		PairingSetup:       c.Pairing.PairingSetup,
		PairingCache:       c.Pairing.PairingCache,
		PairingVerify:      c.Pairing.PairingVerification,
		StatePath:          c.StatePath,
	}
	// StrictDecode reports ErrInvalidTarget when no variable is set.
	if err := envdecode.StrictDecode(&env); err != nil {
		if errors.Is(err, envdecode.ErrInvalidTarget) || errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	c.Address = env.Address
	c.MaxSessions = env.MaxSessions
	c.TTLUnit = env.TTLUnit
	c.PairingTimeout = env.PairingTimeout
	c.FormationTimeout = env.FormationTimeout
	c.GoIntent = env.GoIntent
	c.OperatingFrequency = env.OperatingFrequency
	c.Pairing = bootstrap.Config{
		PASNType:            env.PASNType,
		BootstrapMethods:    bootstrap.Method(env.BootstrapMethods),
		PairingSetup:        env.PairingSetup,
		PairingCache:        env.PairingCache,
		PairingVerification: env.PairingVerify,
	}
	c.StatePath = env.StatePath
	return nil
}

// ConnectParams are the parameters of a Connect command.
type ConnectParams struct {
	// Peer is the address of a discovered device.
	Peer string

	// Method is the requested bootstrapping method (a single bit).
	Method bootstrap.Method

	// Auth authorizes Peer to pair with this device instead of initiating.
	Auth bool

	// Join asks to join the group the peer operates. On an Auth command it
	// authorizes the peer to join this device's group.
	Join bool

	// Password is required for password and out-of-band methods.
	Password string

	// GoIntent is the group owner intent, 0..15. UseDefaultIntent selects
	// DeviceConfig.GoIntent.
	GoIntent int

	// Freq forces the operating frequency in MHz. 0 leaves it open.
	Freq int
}

// UseDefaultIntent in ConnectParams.GoIntent selects the configured intent.
const UseDefaultIntent = -1

// GroupAddParams are the parameters of a GroupAdd command.
type GroupAddParams struct {
	// Pairing enables P2P2 pairing for joiners of the group.
	Pairing bool

	// Freq forces the operating frequency in MHz.
	Freq int
}

// PeerInfo is what the device knows about a discovered peer.
type PeerInfo struct {
	// Address is the peer's device address.
	Address string

	// Capabilities is the pairing configuration the peer advertised.
	Capabilities bootstrap.Capabilities

	// HasGroup is set when the peer advertised that it operates a group.
	HasGroup bool

	// FirstSeen is when the peer was discovered.
	FirstSeen time.Time

	// LastSeen is when the peer was last heard from.
	LastSeen time.Time
}
