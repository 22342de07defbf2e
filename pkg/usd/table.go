package usd

import (
	"container/heap"
	"sync"
	"time"
)

// freeList is a min-heap of released ids.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *freeList) Push(x any)        { *f = append(*f, x.(int)) }
func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// arena is a fixed-capacity slot array for one role.
type arena struct {
	slots []*Session
	free  freeList

	// next is the lowest id never handed out.
	next int
}

func newArena(capacity int) *arena {
	return &arena{
		slots: make([]*Session, capacity),
		next:  1,
	}
}

func (a *arena) acquire() (int, bool) {
	if a.free.Len() > 0 {
		return heap.Pop(&a.free).(int), true
	}
	if a.next > len(a.slots) {
		return 0, false
	}
	id := a.next
	a.next++
	return id, true
}

func (a *arena) release(id int) {
	a.slots[id-1] = nil
	heap.Push(&a.free, id)
}

func (a *arena) get(id int) *Session {
	if id < 1 || id > len(a.slots) {
		return nil
	}
	return a.slots[id-1]
}

// Table is the session registry of one device.
// It is safe for concurrent use; an id is never handed to two creators.
type Table struct {
	mu sync.Mutex

	capacity int
	arenas   [2]*arena

	now func() time.Time
}

// NewTable creates a table holding at most capacity sessions per role.
// A non-positive capacity selects DefaultMaxSessions.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultMaxSessions
	}
	return &Table{
		capacity: capacity,
		arenas:   [2]*arena{newArena(capacity), newArena(capacity)},
		now:      time.Now,
	}
}

// Capacity returns the per-role session limit.
func (t *Table) Capacity() int {
	return t.capacity
}

// Publish creates a publish session.
func (t *Table) Publish(p PublishParams) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return t.insert(&Session{
		Role:         RolePublish,
		ServiceName:  p.ServiceName,
		SrvProtoType: p.SrvProtoType,
		SSI:          append([]byte(nil), p.SSI...),
		Solicited:    p.Solicited,
		Unsolicited:  p.Unsolicited,
		TTL:          p.TTL,
		P2P:          p.P2P,
	})
}

// Subscribe creates a subscribe session.
func (t *Table) Subscribe(p SubscribeParams) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return t.insert(&Session{
		Role:         RoleSubscribe,
		ServiceName:  p.ServiceName,
		SrvProtoType: p.SrvProtoType,
		SSI:          append([]byte(nil), p.SSI...),
		Active:       p.Active,
		TTL:          p.TTL,
		P2P:          p.P2P,
	})
}

func (t *Table) insert(s *Session) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.arenas[s.Role]
	id, ok := a.acquire()
	if !ok {
		return nil, ErrResourceExhausted
	}

	s.ID = id
	s.State = StateActive
	s.Version = 1
	s.CreatedAt = t.now()
	a.slots[id-1] = s

	return s.clone(), nil
}

// UpdatePublish replaces the SSI of an active publish session.
func (t *Table) UpdatePublish(id int, ssi []byte) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.arenas[RolePublish].get(id)
	if s == nil || !s.IsActive() {
		return nil, ErrNotFound
	}

	s.SSI = append([]byte(nil), ssi...)
	s.Version++
	return s.clone(), nil
}

// SetTTL changes the lifetime recorded for an active session.
func (t *Table) SetTTL(role Role, id int, ttl uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.arenas[role].get(id)
	if s == nil || !s.IsActive() {
		return ErrNotFound
	}
	s.TTL = ttl
	return nil
}

// Terminate marks an active session terminated. The id stays reserved until
// Release is called, so the caller can queue the termination notification
// first.
func (t *Table) Terminate(role Role, id int, reason Reason) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.arenas[role].get(id)
	if s == nil || !s.IsActive() {
		return nil, ErrNotFound
	}

	s.State = StateTerminated
	s.Reason = reason
	return s.clone(), nil
}

// Release reclaims the id of a terminated session.
// It reports false if the slot does not hold a terminated session.
func (t *Table) Release(role Role, id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.arenas[role]
	s := a.get(id)
	if s == nil || s.State != StateTerminated {
		return false
	}
	a.release(id)
	return true
}

// Get returns a snapshot of an active session.
func (t *Table) Get(role Role, id int) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.arenas[role].get(id)
	if s == nil || !s.IsActive() {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

// Sessions returns snapshots of all active sessions of a role, ordered by id.
func (t *Table) Sessions(role Role) []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Session
	for _, s := range t.arenas[role].slots {
		if s != nil && s.IsActive() {
			out = append(out, s.clone())
		}
	}
	return out
}

// Len returns the number of occupied slots of a role, including terminated
// sessions that have not been released yet.
func (t *Table) Len(role Role) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.arenas[role].slots {
		if s != nil {
			n++
		}
	}
	return n
}
