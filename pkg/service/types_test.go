package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
)

func TestDefaultDeviceConfig(t *testing.T) {
	cfg := DefaultDeviceConfig()

	if cfg.MaxSessions != usd.DefaultMaxSessions {
		t.Errorf("MaxSessions: got %d, want %d", cfg.MaxSessions, usd.DefaultMaxSessions)
	}
	if cfg.PairingTimeout != 10*time.Second {
		t.Errorf("PairingTimeout: got %v, want %v", cfg.PairingTimeout, 10*time.Second)
	}
	if cfg.GoIntent != 7 {
		t.Errorf("GoIntent: got %d, want 7", cfg.GoIntent)
	}
	if cfg.Pairing != bootstrap.DefaultConfig() {
		t.Errorf("Pairing: got %+v, want %+v", cfg.Pairing, bootstrap.DefaultConfig())
	}

	// The address is the only field without a default.
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Address = testAddr(0)
	assert.NoError(t, cfg.Validate())
}

func TestDeviceConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*DeviceConfig)
	}{
		{"zero sessions", func(c *DeviceConfig) { c.MaxSessions = 0 }},
		{"zero peer table", func(c *DeviceConfig) { c.PeerTableSize = 0 }},
		{"zero ttl unit", func(c *DeviceConfig) { c.TTLUnit = 0 }},
		{"negative probe interval", func(c *DeviceConfig) { c.ProbeInterval = -time.Second }},
		{"zero pairing timeout", func(c *DeviceConfig) { c.PairingTimeout = 0 }},
		{"zero comeback", func(c *DeviceConfig) { c.ComebackDelay = 0 }},
		{"intent too high", func(c *DeviceConfig) { c.GoIntent = 16 }},
		{"negative intent", func(c *DeviceConfig) { c.GoIntent = -1 }},
		{"no frequency", func(c *DeviceConfig) { c.OperatingFrequency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDeviceConfig()
			cfg.Address = testAddr(0)
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("P2P2_ADDRESS", "02:00:00:00:aa:bb")
	t.Setenv("P2P2_GO_INTENT", "12")
	t.Setenv("P2P2_PAIRING_TIMEOUT", "3s")
	t.Setenv("P2P2_PAIRING_CACHE", "true")
	t.Setenv("P2P2_BOOTSTRAP_METHODS", "33")

	cfg := DefaultDeviceConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "02:00:00:00:aa:bb", cfg.Address)
	assert.Equal(t, 12, cfg.GoIntent)
	assert.Equal(t, 3*time.Second, cfg.PairingTimeout)
	assert.True(t, cfg.Pairing.PairingCache)
	assert.Equal(t, bootstrap.MethodOpportunistic|bootstrap.MethodPINKeypad, cfg.Pairing.BootstrapMethods)

	// Unset variables keep their values.
	assert.Equal(t, 10*time.Second, cfg.FormationTimeout)
	assert.True(t, cfg.Pairing.PairingSetup)
	assert.Equal(t, bootstrap.DefaultPASNType, cfg.Pairing.PASNType)
}

func TestApplyEnvWithoutVariables(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.Address = testAddr(3)
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, testAddr(3), cfg.Address)
}

func TestApplyEnvInvalidValue(t *testing.T) {
	t.Setenv("P2P2_GO_INTENT", "high")

	cfg := DefaultDeviceConfig()
	assert.Error(t, cfg.ApplyEnv())
	assert.Equal(t, group.DefaultGoIntent, cfg.GoIntent)

	t.Setenv("P2P2_GO_INTENT", "7")
	t.Setenv("P2P2_PAIRING_CACHE", "sometimes")
	cfg = DefaultDeviceConfig()
	assert.Error(t, cfg.ApplyEnv())
}

func TestServiceStateString(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", ServiceState(42).String())
}
