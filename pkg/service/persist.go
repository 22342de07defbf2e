package service

import (
	"fmt"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/persistence"
)

// loadState restores the pairing configuration and the pairing cache from
// the state file. A state file written for another address is ignored.
func (d *Device) loadState() error {
	if d.store == nil {
		return nil
	}

	state, err := d.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if state == nil {
		return nil
	}
	if state.Address != d.config.Address {
		d.debugLog("ignoring state of another device", "path", d.store.Path(), "address", state.Address)
		return nil
	}

	if state.Pairing != nil {
		d.mu.Lock()
		d.pairingConfig = bootstrap.Config{
			PASNType:            state.Pairing.PASNType,
			BootstrapMethods:    bootstrap.Method(state.Pairing.BootstrapMethods),
			PairingSetup:        state.Pairing.PairingSetup,
			PairingCache:        state.Pairing.PairingCache,
			PairingVerification: state.Pairing.PairingVerification,
		}
		d.mu.Unlock()
	}

	entries := make([]bootstrap.Entry, 0, len(state.Cache))
	for _, c := range state.Cache {
		entries = append(entries, bootstrap.Entry{
			Peer:     c.Peer,
			PMK:      c.PMK,
			Method:   bootstrap.Method(c.Method),
			PairedAt: c.PairedAt,
		})
	}
	d.cache.Load(entries)

	d.debugLog("state loaded", "path", d.store.Path(), "cached", len(entries))
	return nil
}

// saveState writes the pairing configuration and the pairing cache. Errors
// are logged; the runtime keeps working from memory.
func (d *Device) saveState() {
	if d.store == nil {
		return
	}

	cfg := d.PairingConfig()
	state := &persistence.DeviceState{
		Version: persistence.StateVersion,
		SavedAt: d.clock.Now(),
		Address: d.config.Address,
		Pairing: &persistence.PairingConfig{
			PASNType:            cfg.PASNType,
			BootstrapMethods:    uint16(cfg.BootstrapMethods),
			PairingSetup:        cfg.PairingSetup,
			PairingCache:        cfg.PairingCache,
			PairingVerification: cfg.PairingVerification,
		},
	}
	for _, e := range d.cache.Snapshot() {
		state.Cache = append(state.Cache, persistence.CachedPairing{
			Peer:     e.Peer,
			PMK:      e.PMK,
			Method:   uint16(e.Method),
			PairedAt: e.PairedAt,
		})
	}

	if err := d.store.Save(state); err != nil {
		d.debugLog("failed to save state", "path", d.store.Path(), "error", err)
	}
}
