package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// DeviceState contains the runtime state of a P2P2 device.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Address is the device address the state belongs to.
	Address string `json:"address"`

	// Pairing is the pairing configuration.
	Pairing *PairingConfig `json:"pairing,omitempty"`

	// Cache contains the pairing cache entries, one per peer.
	Cache []CachedPairing `json:"cache,omitempty"`
}

// PairingConfig mirrors bootstrap.Config for JSON serialization.
type PairingConfig struct {
	PASNType            uint8  `json:"pasn_type"`
	BootstrapMethods    uint16 `json:"bootstrap_methods"`
	PairingSetup        bool   `json:"pairing_setup"`
	PairingCache        bool   `json:"pairing_cache"`
	PairingVerification bool   `json:"pairing_verification"`
}

// CachedPairing mirrors bootstrap.Entry for JSON serialization.
type CachedPairing struct {
	// Peer is the address of the paired device.
	Peer string `json:"peer"`

	// PMK is the pairwise master key (base64 in JSON).
	PMK []byte `json:"pmk"`

	// Method is the bootstrapping method the pairing was made with.
	Method uint16 `json:"method"`

	// PairedAt is when the pairing completed.
	PairedAt time.Time `json:"paired_at"`
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Path returns the state file path.
func (s *DeviceStateStore) Path() string {
	return s.path
}

// Save persists the device state to disk. The file holds key material and
// is written with owner-only permissions.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("unsupported state version %d", state.Version)
	}

	return state, nil
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
