package group

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reason explains why a group ended.
type Reason string

const (
	ReasonRequested       Reason = "requested"
	ReasonGoEndingSession Reason = "go-ending-session"
	ReasonIdle            Reason = "idle"
	ReasonFormationFailed Reason = "formation-failed"
)

// State is the group a device operates or belongs to.
type State struct {
	ID         string
	SSID       string
	Role       Role
	Frequency  int
	GroupOwner string

	// Members are the clients for a group owner, and the group owner for a
	// client.
	Members []string

	// Persistent is set for groups created by GroupAdd. Groups formed by
	// negotiation end when their last client leaves.
	Persistent bool

	StartedAt time.Time
}

func (s *State) clone() *State {
	c := *s
	c.Members = append([]string(nil), s.Members...)
	return &c
}

// HasMember reports whether peer is a member.
func (s *State) HasMember(peer string) bool {
	for _, m := range s.Members {
		if m == peer {
			return true
		}
	}
	return false
}

const ssidChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewSSID returns a P2P group SSID, "DIRECT-" plus two random characters.
func NewSSID() string {
	id := uuid.New()
	return "DIRECT-" + string([]byte{
		ssidChars[int(id[0])%len(ssidChars)],
		ssidChars[int(id[1])%len(ssidChars)],
	})
}

// GroupID builds the identifier reported in group notifications.
func GroupID(groupOwner, ssid string) string {
	return fmt.Sprintf("%s %s", groupOwner, ssid)
}

// Coordinator tracks the single group of one device.
type Coordinator struct {
	mu sync.RWMutex

	local string
	state *State

	// expected holds peers that completed pairing towards this group owner
	// but have not associated yet.
	expected map[string]bool

	now func() time.Time
}

// NewCoordinator creates a coordinator for the device with address local.
func NewCoordinator(local string) *Coordinator {
	return &Coordinator{
		local:    local,
		expected: make(map[string]bool),
		now:      time.Now,
	}
}

// Start makes the device group owner of a new group.
func (c *Coordinator) Start(freq int, persistent bool) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil {
		return nil, ErrGroupExists
	}

	ssid := NewSSID()
	c.state = &State{
		ID:         GroupID(c.local, ssid),
		SSID:       ssid,
		Role:       RoleGroupOwner,
		Frequency:  freq,
		GroupOwner: c.local,
		Persistent: persistent,
		StartedAt:  c.now(),
	}
	return c.state.clone(), nil
}

// Join makes the device a client of the group announced by groupOwner.
func (c *Coordinator) Join(groupOwner, ssid string, freq int) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil {
		return nil, ErrGroupExists
	}

	c.state = &State{
		ID:         GroupID(groupOwner, ssid),
		SSID:       ssid,
		Role:       RoleClient,
		Frequency:  freq,
		GroupOwner: groupOwner,
		Members:    []string{groupOwner},
		StartedAt:  c.now(),
	}
	return c.state.clone(), nil
}

// Expect records that peer is about to associate with this group owner.
func (c *Coordinator) Expect(peer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ownerLocked(); err != nil {
		return err
	}
	c.expected[peer] = true
	return nil
}

// Unexpect drops a pending association. It reports whether one existed.
func (c *Coordinator) Unexpect(peer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.expected[peer] {
		return false
	}
	delete(c.expected, peer)
	return true
}

// AddMember completes the association of peer. It reports whether peer is a
// new member. Only peers recorded by Expect can become members.
func (c *Coordinator) AddMember(peer string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ownerLocked(); err != nil {
		return false, err
	}
	if c.state.HasMember(peer) {
		delete(c.expected, peer)
		return false, nil
	}
	if !c.expected[peer] {
		return false, fmt.Errorf("%w: %s", ErrNotExpected, peer)
	}
	delete(c.expected, peer)
	c.state.Members = append(c.state.Members, peer)
	sort.Strings(c.state.Members)
	return true, nil
}

// RemoveMember drops a client. It returns the number of remaining members,
// or ErrNoGroup if peer was not a member.
func (c *Coordinator) RemoveMember(peer string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ownerLocked(); err != nil {
		return 0, err
	}
	for i, m := range c.state.Members {
		if m == peer {
			c.state.Members = append(c.state.Members[:i], c.state.Members[i+1:]...)
			return len(c.state.Members), nil
		}
	}
	return len(c.state.Members), ErrNoGroup
}

// Remove ends the group and returns its final state.
func (c *Coordinator) Remove() (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return nil, ErrNoGroup
	}
	s := c.state
	c.state = nil
	c.expected = make(map[string]bool)
	return s, nil
}

// Current returns a snapshot of the active group.
func (c *Coordinator) Current() (*State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == nil {
		return nil, false
	}
	return c.state.clone(), true
}

// Active reports whether the device operates or belongs to a group.
func (c *Coordinator) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != nil
}

// IsGroupOwner reports whether the device operates a group.
func (c *Coordinator) IsGroupOwner() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != nil && c.state.Role == RoleGroupOwner
}

func (c *Coordinator) ownerLocked() error {
	if c.state == nil {
		return ErrNoGroup
	}
	if c.state.Role != RoleGroupOwner {
		return ErrNotGroupOwner
	}
	return nil
}
