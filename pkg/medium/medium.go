package medium

import (
	"errors"
	"sort"
	"sync"
)

// Medium errors.
var (
	ErrAddressInUse = errors.New("address already attached")
	ErrNotAttached  = errors.New("sender not attached")
	ErrUnreachable  = errors.New("destination unreachable")
)

// Receiver is called for every frame delivered to an attached device.
type Receiver func(src string, frame []byte)

// Medium carries frames between devices. An empty dst broadcasts the frame
// to every other attached device.
type Medium interface {
	Attach(addr string, rx Receiver) error
	Detach(addr string)
	Send(src, dst string, frame []byte) error
}

// Filter decides whether a frame is delivered. Returning false drops it.
type Filter func(src, dst string, frame []byte) bool

// Stats counts frames handled by a hub.
type Stats struct {
	Sent      uint64
	Delivered uint64
	Dropped   uint64
}

// Hub is an in-memory Medium.
type Hub struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
	filter    Filter
	stats     Stats
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{receivers: make(map[string]Receiver)}
}

// Attach registers a device.
func (h *Hub) Attach(addr string, rx Receiver) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.receivers[addr]; ok {
		return ErrAddressInUse
	}
	h.receivers[addr] = rx
	return nil
}

// Detach removes a device. Frames in flight to it are lost.
func (h *Hub) Detach(addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.receivers, addr)
}

// SetFilter installs a delivery filter; nil delivers everything.
func (h *Hub) SetFilter(f Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = f
}

// Send delivers a copy of frame to dst, or to every other device.
func (h *Hub) Send(src, dst string, frame []byte) error {
	h.mu.Lock()
	if _, ok := h.receivers[src]; !ok {
		h.mu.Unlock()
		return ErrNotAttached
	}
	h.stats.Sent++

	var targets []Receiver
	if dst == "" {
		for addr, rx := range h.receivers {
			if addr == src {
				continue
			}
			if h.filter != nil && !h.filter(src, addr, frame) {
				h.stats.Dropped++
				continue
			}
			targets = append(targets, rx)
		}
	} else {
		rx, ok := h.receivers[dst]
		if !ok {
			h.stats.Dropped++
			h.mu.Unlock()
			return ErrUnreachable
		}
		if h.filter != nil && !h.filter(src, dst, frame) {
			h.stats.Dropped++
			h.mu.Unlock()
			return nil
		}
		targets = append(targets, rx)
	}
	h.stats.Delivered += uint64(len(targets))
	h.mu.Unlock()

	for _, rx := range targets {
		rx(src, append([]byte(nil), frame...))
	}
	return nil
}

// Addresses returns the attached addresses, sorted.
func (h *Hub) Addresses() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.receivers))
	for addr := range h.receivers {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Stats returns the frame counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}
