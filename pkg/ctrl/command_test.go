package ctrl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("p2p_connect 02:00:00:00:00:01 pair he go_intent=15 bstrapmethod=2 auth password=975310123")
	require.NoError(t, err)

	assert.Equal(t, "P2P_CONNECT", cmd.Name)
	assert.Equal(t, []string{"02:00:00:00:00:01", "pair", "he", "auth"}, cmd.Args)
	assert.True(t, cmd.Has("auth"))
	assert.False(t, cmd.Has("join"))
	assert.Equal(t, "975310123", cmd.String("password", ""))
	assert.Equal(t, "none", cmd.String("freq", "none"))

	n, err := cmd.Int("go_intent", 7, 0, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	n, err = cmd.Int("freq", 2437, 0, 6000)
	require.NoError(t, err)
	assert.Equal(t, 2437, n)
}

func TestParseCommandErrors(t *testing.T) {
	_, err := ParseCommand("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ParseCommand("NAN_PUBLISH =1")
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestCommandTypedParams(t *testing.T) {
	cmd, err := ParseCommand("NAN_PUBLISH ttl=abc active=2 ssi=66z7 go_intent=16 p2p=1 data=cafe")
	require.NoError(t, err)

	_, err = cmd.Int("ttl", 0, 0, 100)
	assert.ErrorIs(t, err, ErrBadArgument)
	_, err = cmd.Int("go_intent", 0, 0, 15)
	assert.ErrorIs(t, err, ErrBadArgument)
	_, err = cmd.Bool("active", false)
	assert.ErrorIs(t, err, ErrBadArgument)
	_, err = cmd.Hex("ssi")
	assert.ErrorIs(t, err, ErrBadArgument)

	b, err := cmd.Bool("p2p", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = cmd.Bool("unsolicited", true)
	require.NoError(t, err)
	assert.True(t, b)

	data, err := cmd.Hex("data")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, data)
	data, err = cmd.Hex("missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}
