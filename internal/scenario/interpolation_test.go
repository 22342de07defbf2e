package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	vars := map[string]string{"addr": "02:00:00:00:00:01", "id": "3"}

	tests := []struct {
		input string
		want  string
	}{
		{"P2P_PEER {{ addr }}", "P2P_PEER 02:00:00:00:00:01"},
		{"NAN_CANCEL_PUBLISH publish_id={{id}}", "NAN_CANCEL_PUBLISH publish_id=3"},
		{"{{  addr  }} {{ id }}", "02:00:00:00:00:01 3"},
		{"{{ missing }}", "{{ missing }}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interpolate(tt.input, vars), tt.input)
	}
	assert.Equal(t, "{{ addr }}", Interpolate("{{ addr }}", nil))
}

func TestUnresolved(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Unresolved("{{ a }} x {{b}}"))
	assert.Empty(t, Unresolved("none"))
}

func TestField(t *testing.T) {
	line := `P2P-GROUP-STARTED p2p-ab GO ssid="DIRECT-ab" freq=2437 go_dev_addr=02:00:00:00:00:01`

	v, ok := Field(line, "ssid")
	assert.True(t, ok)
	assert.Equal(t, "DIRECT-ab", v)

	v, ok = Field(line, "freq")
	assert.True(t, ok)
	assert.Equal(t, "2437", v)

	_, ok = Field(line, "reason")
	assert.False(t, ok)
}
