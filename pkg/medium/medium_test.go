package medium

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu     sync.Mutex
	frames []string
}

func (i *inbox) rx(src string, frame []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.frames = append(i.frames, src+":"+string(frame))
}

func (i *inbox) got() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.frames...)
}

func TestHubUnicastAndBroadcast(t *testing.T) {
	h := NewHub()
	var a, b, c inbox
	require.NoError(t, h.Attach("a", a.rx))
	require.NoError(t, h.Attach("b", b.rx))
	require.NoError(t, h.Attach("c", c.rx))

	require.NoError(t, h.Send("a", "b", []byte("hello")))
	assert.Equal(t, []string{"a:hello"}, b.got())
	assert.Empty(t, c.got())

	require.NoError(t, h.Send("c", "", []byte("all")))
	assert.Equal(t, []string{"c:all"}, a.got())
	assert.Equal(t, []string{"a:hello", "c:all"}, b.got())
	assert.Empty(t, c.got(), "broadcast must not loop back")

	assert.Equal(t, Stats{Sent: 2, Delivered: 3}, h.Stats())
}

func TestHubErrors(t *testing.T) {
	h := NewHub()
	var a inbox
	require.NoError(t, h.Attach("a", a.rx))

	assert.ErrorIs(t, h.Attach("a", a.rx), ErrAddressInUse)
	assert.ErrorIs(t, h.Send("x", "a", nil), ErrNotAttached)
	assert.ErrorIs(t, h.Send("a", "nobody", nil), ErrUnreachable)

	h.Detach("a")
	assert.Empty(t, h.Addresses())
}

func TestHubFilterDrops(t *testing.T) {
	h := NewHub()
	var a, b inbox
	require.NoError(t, h.Attach("a", a.rx))
	require.NoError(t, h.Attach("b", b.rx))

	h.SetFilter(func(src, dst string, frame []byte) bool { return dst != "b" })
	require.NoError(t, h.Send("a", "b", []byte("lost")))
	require.NoError(t, h.Send("a", "", []byte("lost")))
	assert.Empty(t, b.got())
	assert.Equal(t, uint64(2), h.Stats().Dropped)

	h.SetFilter(nil)
	require.NoError(t, h.Send("a", "b", []byte("ok")))
	assert.Equal(t, []string{"a:ok"}, b.got())
}

func TestHubDeliversCopies(t *testing.T) {
	h := NewHub()
	var seen []byte
	require.NoError(t, h.Attach("a", func(string, []byte) {}))
	require.NoError(t, h.Attach("b", func(_ string, f []byte) { seen = f }))

	frame := []byte("abc")
	require.NoError(t, h.Send("a", "b", frame))
	frame[0] = 'x'
	assert.Equal(t, []byte("abc"), seen)
}
