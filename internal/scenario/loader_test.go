package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	data := `
id: TEST-001
name: Basic
devices:
  - name: a
    go_intent: 15
    ttl_unit: 100ms
    init: [P2P_SET pairing_cache 1]
  - name: b
    address: 02:00:00:00:aa:bb
steps:
  - device: a
    command: NAN_PUBLISH service_name=x
    save: id
  - advance: 1s
  - device: b
    wait: NAN-DISCOVERY-RESULT
    contains: [ssi=]
    save: pub
    field: publish_id
    timeout: 2s
`
	sc, err := ParseScenario([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "TEST-001", sc.ID)
	require.Len(t, sc.Devices, 2)
	require.NotNil(t, sc.Devices[0].GoIntent)
	assert.Equal(t, 15, *sc.Devices[0].GoIntent)
	assert.Equal(t, "100ms", sc.Devices[0].TTLUnit)
	assert.Equal(t, []string{"P2P_SET pairing_cache 1"}, sc.Devices[0].Init)
	assert.Nil(t, sc.Devices[1].GoIntent)
	assert.Equal(t, "02:00:00:00:aa:bb", sc.Devices[1].Address)

	require.Len(t, sc.Steps, 3)
	assert.Equal(t, "1s", sc.Steps[1].Advance)
	assert.Equal(t, "publish_id", sc.Steps[2].Field)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		step int
	}{
		{"bad yaml", "id: [", 0},
		{"missing id", "devices: [{name: a}]\nsteps: [{device: a, command: PING}]", 0},
		{"no devices", "id: X\nsteps: [{advance: 1s}]", 0},
		{"no steps", "id: X\ndevices: [{name: a}]", 0},
		{"unnamed device", "id: X\ndevices: [{address: x}]\nsteps: [{advance: 1s}]", 0},
		{"duplicate device", "id: X\ndevices: [{name: a}, {name: a}]\nsteps: [{advance: 1s}]", 0},
		{"bad device duration", "id: X\ndevices: [{name: a, ttl_unit: soon}]\nsteps: [{advance: 1s}]", 0},
		{"bad timeout", "id: X\ntimeout: later\ndevices: [{name: a}]\nsteps: [{advance: 1s}]", 0},
		{"empty step", "id: X\ndevices: [{name: a}]\nsteps: [{advance: 1s}, {device: a}]", 2},
		{"unknown device", "id: X\ndevices: [{name: a}]\nsteps: [{device: b, command: PING}]", 1},
		{"field without save", "id: X\ndevices: [{name: a}]\nsteps: [{device: a, wait: P2P, field: x}]", 1},
		{"bad advance", "id: X\ndevices: [{name: a}]\nsteps: [{advance: 3}]", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			require.Error(t, err)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.step, le.Step)
		})
	}
}

func TestLoadScenarioSetsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: no id\n"), 0o644))

	_, err := LoadScenario(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.File)
	assert.Contains(t, err.Error(), "bad.yaml: scenario ID is required")

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDirectory(t *testing.T) {
	scenarios, err := LoadDirectory("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	ids := make(map[string]bool)
	for _, sc := range scenarios {
		assert.False(t, ids[sc.ID], "duplicate id %s", sc.ID)
		ids[sc.ID] = true
	}
	assert.True(t, ids["USD-001"])
	assert.True(t, ids["PAIR-001"])
	assert.True(t, ids["GRP-001"])

	_, err = LoadDirectory(filepath.Join("testdata", "missing"))
	assert.Error(t, err)
}

func TestLoadErrorMessage(t *testing.T) {
	err := &LoadError{File: "x.yaml", Step: 3, Message: "unknown device"}
	assert.Equal(t, "x.yaml: step 3: unknown device", err.Error())
	assert.Nil(t, err.Unwrap())
}
