package bootstrap

import (
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of peers remembered by the pairing cache.
const DefaultCacheSize = 32

// Entry is the key material of one completed pairing.
type Entry struct {
	Peer     string    `json:"peer"`
	PMK      []byte    `json:"pmk"`
	Method   Method    `json:"method"`
	PairedAt time.Time `json:"pairedAt"`
}

// Cache remembers completed pairings per peer address. The least recently
// used peer is evicted when the cache is full. It is safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, Entry]
}

// NewCache creates a cache holding at most size peers.
// A non-positive size selects DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pairing cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Get returns the entry for a peer.
func (c *Cache) Get(peer string) (*Entry, bool) {
	e, ok := c.lru.Get(peer)
	if !ok {
		return nil, false
	}
	e.PMK = append([]byte(nil), e.PMK...)
	return &e, true
}

// Put stores or replaces the entry for e.Peer.
func (c *Cache) Put(e Entry) {
	e.PMK = append([]byte(nil), e.PMK...)
	c.lru.Add(e.Peer, e)
}

// Remove evicts a peer. It reports whether the peer was cached.
func (c *Cache) Remove(peer string) bool {
	return c.lru.Remove(peer)
}

// Len returns the number of cached peers.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Snapshot returns all entries ordered by peer address.
func (c *Cache) Snapshot() []Entry {
	entries := c.lru.Values()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Peer < entries[j].Peer })
	return entries
}

// Load adds entries, oldest pairing first, so the most recent pairings are
// the last to be evicted.
func (c *Cache) Load(entries []Entry) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PairedAt.Before(sorted[j].PairedAt) })
	for _, e := range sorted {
		if e.Peer == "" || len(e.PMK) != PMKSize {
			continue
		}
		c.Put(e)
	}
}
