package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p2p2-protocol/p2p2-go/internal/scenario"
)

func TestParseSimConfig(t *testing.T) {
	cfg, err := parseSimConfig([]byte(`
devices:
  - name: printer
    go_intent: 15
    init:
      - P2P_SET pairing_cache 1
  - name: phone
`))
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, "printer", cfg.Devices[0].Name)
	require.NotNil(t, cfg.Devices[0].GoIntent)
	assert.Equal(t, 15, *cfg.Devices[0].GoIntent)
	assert.Equal(t, []string{"P2P_SET pairing_cache 1"}, cfg.Devices[0].Init)
}

func TestParseSimConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "devices: ["},
		{"no devices", "devices: []"},
		{"missing name", "devices:\n  - go_intent: 3"},
		{"duplicate", "devices:\n  - name: a\n  - name: a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSimConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefaultSimConfig(t *testing.T) {
	cfg := defaultSimConfig(3)
	require.Len(t, cfg.Devices, 3)
	assert.Equal(t, "dev1", cfg.Devices[0].Name)
	assert.Equal(t, "dev3", cfg.Devices[2].Name)
}

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	net := scenario.NewNetwork(scenario.Config{Clock: clock.NewMock()})
	t.Cleanup(func() { _ = net.Close() })

	for _, spec := range defaultSimConfig(2).Devices {
		_, err := net.Add(context.Background(), spec)
		require.NoError(t, err)
	}
	return &Shell{net: net, current: "dev1"}
}

func TestShellExec(t *testing.T) {
	s := newTestShell(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.True(t, s.exec(ctx, "devices", &out))
	assert.Contains(t, out.String(), "* dev1")
	assert.Contains(t, out.String(), scenario.DeviceAddress(1))

	out.Reset()
	s.exec(ctx, "PING", &out)
	assert.Equal(t, "PONG\n", out.String())

	out.Reset()
	s.exec(ctx, "use dev2", &out)
	assert.Empty(t, out.String())
	assert.Equal(t, "dev2", s.current)

	out.Reset()
	s.exec(ctx, "use nobody", &out)
	assert.Contains(t, out.String(), "unknown device")
	assert.Equal(t, "dev2", s.current)

	out.Reset()
	s.exec(ctx, "NOT_A_COMMAND", &out)
	assert.Contains(t, out.String(), "FAIL")

	out.Reset()
	s.exec(ctx, "medium", &out)
	assert.Contains(t, out.String(), "attached: "+scenario.DeviceAddress(1)+" "+scenario.DeviceAddress(2))
	assert.Contains(t, out.String(), "dropped=0")

	out.Reset()
	assert.True(t, s.exec(ctx, "   ", &out))
	assert.Empty(t, out.String())

	assert.False(t, s.exec(ctx, "quit", &out))
}

func TestShellControlAndWait(t *testing.T) {
	s := newTestShell(t)
	ctx := context.Background()
	var out bytes.Buffer

	s.exec(ctx, "@dev1 NAN_PUBLISH service_name=_test srv_proto_type=2 ssi=6677", &out)
	assert.Equal(t, "1\n", out.String())

	out.Reset()
	s.exec(ctx, "@dev2 NAN_SUBSCRIBE service_name=_test active=1 srv_proto_type=2", &out)
	assert.Equal(t, "1\n", out.String())

	out.Reset()
	s.exec(ctx, "use dev2", &out)
	s.exec(ctx, "wait NAN-DISCOVERY-RESULT 2s", &out)
	assert.Contains(t, out.String(), "NAN-DISCOVERY-RESULT subscribe_id=1 publish_id=1")
	assert.Contains(t, out.String(), "ssi=6677")

	out.Reset()
	s.exec(ctx, "wait NAN-DISCOVERY-RESULT soon", &out)
	assert.Contains(t, out.String(), "invalid timeout")

	out.Reset()
	s.exec(ctx, "wait NO-SUCH-EVENT", &out)
	assert.Contains(t, out.String(), "unknown event")

	out.Reset()
	s.exec(ctx, "clear", &out)
	assert.Contains(t, out.String(), "Cleared")
}

func TestPrintResults(t *testing.T) {
	results := []*scenario.Result{
		{ScenarioID: "USD-001", Steps: []scenario.StepResult{{Index: 1}}, Duration: 3 * time.Millisecond},
		{ScenarioID: "PAIR-002", Err: errors.New("step 4: timeout")},
	}
	var out bytes.Buffer
	failed := printResults(&out, results)

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "PASS  USD-001")
	assert.Contains(t, out.String(), "FAIL  PAIR-002     step 4: timeout")
	assert.Contains(t, out.String(), "1 passed, 1 failed")
}
