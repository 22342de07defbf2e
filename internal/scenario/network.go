package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/p2p2-protocol/p2p2-go/pkg/ctrl"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/medium"
	"github.com/p2p2-protocol/p2p2-go/pkg/service"
)

// Network errors.
var (
	ErrDuplicateDevice = errors.New("duplicate device")
	ErrUnknownDevice   = errors.New("unknown device")
)

// Config configures a Network and the Runner built on it.
type Config struct {
	// Clock drives every device. If nil, the wall clock is used.
	Clock clock.Clock

	// DefaultTimeout bounds event waits of steps without a timeout.
	DefaultTimeout time.Duration

	// ProtocolLogger receives protocol traces of all devices.
	ProtocolLogger log.Logger

	// Logger is the operational logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{DefaultTimeout: 5 * time.Second}
}

// Network is a set of named devices sharing an in-memory medium.
type Network struct {
	config Config
	hub    *medium.Hub
	clock  clock.Clock
	ifaces map[string]*ctrl.Interface
}

// NewNetwork creates an empty network.
func NewNetwork(config Config) *Network {
	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Network{
		config: config,
		hub:    medium.NewHub(),
		clock:  clk,
		ifaces: make(map[string]*ctrl.Interface),
	}
}

// Hub returns the shared medium.
func (n *Network) Hub() *medium.Hub {
	return n.hub
}

// DeviceAddress returns the address generated for the i-th device.
func DeviceAddress(i int) string {
	return fmt.Sprintf("02:00:00:00:%02x:%02x", (i+1)>>8, (i+1)&0xff)
}

// Add creates and starts a device, then runs its init commands.
func (n *Network) Add(ctx context.Context, spec DeviceSpec) (*ctrl.Interface, error) {
	if _, ok := n.ifaces[spec.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, spec.Name)
	}

	cfg := service.DefaultDeviceConfig()
	cfg.Address = spec.Address
	if cfg.Address == "" {
		cfg.Address = DeviceAddress(len(n.ifaces))
	}
	if spec.GoIntent != nil {
		cfg.GoIntent = *spec.GoIntent
	}
	if spec.Freq != 0 {
		cfg.OperatingFrequency = spec.Freq
	}
	cfg.TTLUnit = parseDuration(spec.TTLUnit, cfg.TTLUnit)
	cfg.PairingTimeout = parseDuration(spec.PairingTimeout, cfg.PairingTimeout)
	cfg.FormationTimeout = parseDuration(spec.FormationTimeout, cfg.FormationTimeout)
	cfg.Clock = n.clock
	cfg.ProtocolLogger = n.config.ProtocolLogger
	if n.config.Logger != nil {
		cfg.Logger = n.config.Logger.With("device", spec.Name)
	}

	dev, err := service.NewDevice(cfg, n.hub)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", spec.Name, err)
	}
	if err := dev.Start(ctx); err != nil {
		return nil, fmt.Errorf("device %s: %w", spec.Name, err)
	}

	iface := ctrl.New(dev)
	n.ifaces[spec.Name] = iface

	for _, line := range spec.Init {
		if _, err := iface.Do(line); err != nil {
			return nil, fmt.Errorf("device %s: init %q: %w", spec.Name, line, err)
		}
	}
	return iface, nil
}

// Device returns the control interface of a named device.
func (n *Network) Device(name string) (*ctrl.Interface, error) {
	iface, ok := n.ifaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return iface, nil
}

// Names returns the device names in sorted order.
func (n *Network) Names() []string {
	names := make([]string, 0, len(n.ifaces))
	for name := range n.ifaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Advance moves a mock clock forward by d. On the wall clock it sleeps.
func (n *Network) Advance(ctx context.Context, d time.Duration) error {
	if mock, ok := n.clock.(*clock.Mock); ok {
		mock.Add(d)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.clock.After(d):
		return nil
	}
}

// Close stops all devices.
func (n *Network) Close() error {
	var errs []error
	for name, iface := range n.ifaces {
		if err := iface.Device().Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("device %s: %w", name, err))
		}
	}
	n.ifaces = make(map[string]*ctrl.Interface)
	return errors.Join(errs...)
}
