package usd

import (
	"strings"
	"sync"
)

// Advert is a publish seen by a subscriber, either an unsolicited
// announcement or a reply to one of its probes.
type Advert struct {
	Peer         string
	PublishID    int
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte
	Version      uint32

	// ReplyTo is the subscribe id a solicited reply answers; 0 for an
	// unsolicited announcement.
	ReplyTo int

	// TTL is the publisher's remaining lifetime in TTL units, 0 if unbounded.
	TTL uint32
}

// Solicited reports whether the advert answers a probe.
func (a Advert) Solicited() bool {
	return a.ReplyTo != 0
}

// Probe is an active subscribe seen by a publisher.
type Probe struct {
	Peer         string
	SubscribeID  int
	ServiceName  string
	SrvProtoType uint8
	SSI          []byte
}

// resultKey identifies one (local session, peer session) pair.
type resultKey struct {
	role    Role
	localID int
	peer    string
	peerID  int
}

// Matcher applies the USD matching rules and de-duplicates results.
type Matcher struct {
	mu   sync.Mutex
	seen map[resultKey]uint32
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{seen: make(map[resultKey]uint32)}
}

// SameService reports whether two service names identify the same service.
// NAN service ids are derived from the lower-cased name, so the comparison
// ignores case.
func SameService(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ProtoCompatible reports whether two srv_proto_type values can match.
// Zero means unspecified.
func ProtoCompatible(a, b uint8) bool {
	if a == 0 && b == 0 {
		return true
	}
	return a == b
}

// MatchAdvert reports whether a subscribe session matches an advert.
func (m *Matcher) MatchAdvert(sub *Session, a Advert) bool {
	if sub == nil || sub.Role != RoleSubscribe || !sub.IsActive() {
		return false
	}
	if a.Solicited() {
		if !sub.Active || a.ReplyTo != sub.ID {
			return false
		}
	}
	return SameService(sub.ServiceName, a.ServiceName) &&
		ProtoCompatible(sub.SrvProtoType, a.SrvProtoType)
}

// MatchProbe reports whether a publish session answers a probe.
func (m *Matcher) MatchProbe(pub *Session, p Probe) bool {
	if pub == nil || pub.Role != RolePublish || !pub.IsActive() {
		return false
	}
	if !pub.Solicited {
		return false
	}
	return SameService(pub.ServiceName, p.ServiceName) &&
		ProtoCompatible(pub.SrvProtoType, p.SrvProtoType)
}

// ShouldReport records that a result for the pair is about to be delivered
// and reports whether it is new. A result is new the first time a pair is
// seen and whenever the peer's version changes.
func (m *Matcher) ShouldReport(role Role, localID int, peer string, peerID int, version uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := resultKey{role: role, localID: localID, peer: peer, peerID: peerID}
	if last, ok := m.seen[key]; ok && last == version {
		return false
	}
	m.seen[key] = version
	return true
}

// Forget drops the de-duplication state of a local session.
func (m *Matcher) Forget(role Role, localID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.seen {
		if k.role == role && k.localID == localID {
			delete(m.seen, k)
		}
	}
}

// ForgetPeer drops the de-duplication state of every pair involving peer.
func (m *Matcher) ForgetPeer(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.seen {
		if k.peer == peer {
			delete(m.seen, k)
		}
	}
}
