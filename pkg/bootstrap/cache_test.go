package bootstrap

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(peer string, at time.Time) Entry {
	return Entry{Peer: peer, PMK: make([]byte, PMKSize), Method: MethodOpportunistic, PairedAt: at}
}

func TestCachePutGetRemove(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	c.Put(testEntry("a", time.Now()))
	e, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.Peer)

	// Returned entries are copies.
	e.PMK[0] = 0xff
	again, _ := c.Get("a")
	assert.Equal(t, byte(0), again.PMK[0])

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	c.Put(testEntry("a", time.Now()))
	c.Put(testEntry("b", time.Now()))
	_, _ = c.Get("a")
	c.Put(testEntry("c", time.Now()))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	assert.Equal(t, 2, c.Len())
}

func TestCacheSnapshotLoad(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 3; i > 0; i-- {
		c.Put(testEntry(fmt.Sprintf("peer-%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "peer-1", snap[0].Peer)

	restored, err := NewCache(2)
	require.NoError(t, err)
	restored.Load(append(snap, Entry{Peer: "broken", PMK: []byte{1}}))

	// Loaded oldest first, so the oldest pairing was evicted.
	assert.Equal(t, 2, restored.Len())
	_, ok := restored.Get("peer-1")
	assert.False(t, ok)
	_, ok = restored.Get("peer-3")
	assert.True(t, ok)
	_, ok = restored.Get("broken")
	assert.False(t, ok)

	restored.Purge()
	assert.Equal(t, 0, restored.Len())
}
