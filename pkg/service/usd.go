package service

import (
	"time"

	"github.com/p2p2-protocol/p2p2-go/pkg/lifecycle"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// recentSightings bounds the probes and announcements remembered for
// sessions created later.
const recentSightings = 256

// sighting identifies a remote session heard on the medium.
type sighting struct {
	peer string
	id   int
}

type seenProbe struct {
	probe usd.Probe
	at    time.Time
}

type seenAdvert struct {
	advert usd.Advert
	at     time.Time
}

// Publish creates a publish session and returns its id.
func (d *Device) Publish(p usd.PublishParams) (int, error) {
	var id int
	err := d.call(func() error {
		s, err := d.sessions.Publish(p)
		if err != nil {
			return err
		}
		id = s.ID
		d.traceSession(s, "", usd.StateActive.String(), "")

		if s.TTL > 0 {
			d.schedule(lifecycle.SessionKey(lifecycle.KindPublish, s.ID), d.ttl(s.TTL))
		}
		if s.Unsolicited {
			d.sendPublish(s, "", 0)
			d.schedule(lifecycle.SessionKey(lifecycle.KindAnnounce, s.ID), d.config.AnnounceInterval)
		}
		if s.Solicited {
			d.answerRecentProbes(s)
		}
		return nil
	})
	return id, err
}

// UpdatePublish replaces the service specific info of a publish session.
// The id, TTL countdown and match eligibility are unchanged.
func (d *Device) UpdatePublish(id int, ssi []byte) error {
	return d.call(func() error {
		s, err := d.sessions.UpdatePublish(id, ssi)
		if err != nil {
			return err
		}
		d.traceSession(s, usd.StateActive.String(), usd.StateActive.String(), "update")
		if s.Unsolicited {
			d.sendPublish(s, "", 0)
		}
		return nil
	})
}

// CancelPublish terminates a publish session with reason user-request.
func (d *Device) CancelPublish(id int) error {
	return d.call(func() error {
		return d.terminate(usd.RolePublish, id, usd.ReasonUserRequest)
	})
}

// Subscribe creates a subscribe session and returns its id.
func (d *Device) Subscribe(p usd.SubscribeParams) (int, error) {
	var id int
	err := d.call(func() error {
		s, err := d.sessions.Subscribe(p)
		if err != nil {
			return err
		}
		id = s.ID
		d.traceSession(s, "", usd.StateActive.String(), "")

		if s.TTL > 0 {
			d.schedule(lifecycle.SessionKey(lifecycle.KindSubscribe, s.ID), d.ttl(s.TTL))
		}
		if s.Active {
			d.sendSubscribe(s)
			d.schedule(lifecycle.SessionKey(lifecycle.KindProbe, s.ID), d.config.ProbeInterval)
		}
		d.matchRecentAdverts(s)
		return nil
	})
	return id, err
}

// CancelSubscribe terminates a subscribe session with reason user-request.
func (d *Device) CancelSubscribe(id int) error {
	return d.call(func() error {
		return d.terminate(usd.RoleSubscribe, id, usd.ReasonUserRequest)
	})
}

func (d *Device) ttl(units uint32) time.Duration {
	return time.Duration(units) * d.config.TTLUnit
}

// remainingTTL returns the lifetime left in TTL units, rounded up.
func (d *Device) remainingTTL(kind lifecycle.Kind, s *usd.Session) uint32 {
	if s.TTL == 0 {
		return 0
	}
	left := d.timer.Remaining(lifecycle.SessionKey(kind, s.ID))
	if left <= 0 {
		return 0
	}
	return uint32((left + d.config.TTLUnit - 1) / d.config.TTLUnit)
}

// terminate ends a session, queues its termination notification and then
// releases the id.
func (d *Device) terminate(role usd.Role, id int, reason usd.Reason) error {
	s, err := d.sessions.Terminate(role, id, reason)
	if err != nil {
		return err
	}

	evType := EventPublishTerminated
	lifetime, repeat := lifecycle.KindPublish, lifecycle.KindAnnounce
	if role == usd.RoleSubscribe {
		evType = EventSubscribeTerminated
		lifetime, repeat = lifecycle.KindSubscribe, lifecycle.KindProbe
	}
	d.timer.Cancel(lifecycle.SessionKey(lifetime, id))
	d.timer.Cancel(lifecycle.SessionKey(repeat, id))
	d.matcher.Forget(role, id)

	d.traceSession(s, usd.StateActive.String(), usd.StateTerminated.String(), reason.String())
	d.emit(Event{Type: evType, LocalID: id, ServiceName: s.ServiceName, Reason: reason.String()})

	if !d.sessions.Release(role, id) {
		d.debugLog("session release refused", "role", role.String(), "id", id)
	}
	return nil
}

func (d *Device) expireSession(role usd.Role, key lifecycle.Key) {
	id, err := sessionID(key)
	if err != nil {
		return
	}
	if err := d.terminate(role, id, usd.ReasonTimeout); err != nil {
		d.debugLog("expired session already gone", "key", key.String())
	}
}

func (d *Device) repeatProbe(key lifecycle.Key) {
	id, err := sessionID(key)
	if err != nil {
		return
	}
	s, err := d.sessions.Get(usd.RoleSubscribe, id)
	if err != nil {
		return
	}
	d.sendSubscribe(s)
	d.schedule(key, d.config.ProbeInterval)
}

func (d *Device) repeatAnnounce(key lifecycle.Key) {
	id, err := sessionID(key)
	if err != nil {
		return
	}
	s, err := d.sessions.Get(usd.RolePublish, id)
	if err != nil {
		return
	}
	d.sendPublish(s, "", 0)
	d.schedule(key, d.config.AnnounceInterval)
}

// sendPublish sends an announcement (dst empty, replyTo 0) or a reply to
// the probe of subscribe replyTo at dst.
func (d *Device) sendPublish(s *usd.Session, dst string, replyTo int) {
	f := &wire.Frame{
		Type: wire.FramePublish,
		Dst:  dst,
		USD: &wire.USD{
			ServiceName:  s.ServiceName,
			SrvProtoType: s.SrvProtoType,
			SSI:          s.SSI,
			LocalID:      uint32(s.ID),
			ReplyTo:      uint32(replyTo),
			Version:      s.Version,
			TTL:          d.remainingTTL(lifecycle.KindPublish, s),
		},
	}
	if s.P2P {
		f.Device = d.deviceAttrs()
	}
	_ = d.send(f, "")
}

func (d *Device) sendSubscribe(s *usd.Session) {
	f := &wire.Frame{
		Type: wire.FrameSubscribe,
		USD: &wire.USD{
			ServiceName:  s.ServiceName,
			SrvProtoType: s.SrvProtoType,
			SSI:          s.SSI,
			LocalID:      uint32(s.ID),
		},
	}
	if s.P2P {
		f.Device = d.deviceAttrs()
	}
	_ = d.send(f, "")
}

// handleSubscribeFrame answers a probe from every matching solicited publish.
func (d *Device) handleSubscribeFrame(f *wire.Frame) {
	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}

	probe := usd.Probe{
		Peer:         f.Src,
		SubscribeID:  int(f.USD.LocalID),
		ServiceName:  f.USD.ServiceName,
		SrvProtoType: f.USD.SrvProtoType,
		SSI:          f.USD.SSI,
	}
	d.recentProbes.Add(sighting{peer: probe.Peer, id: probe.SubscribeID}, seenProbe{probe: probe, at: d.clock.Now()})

	for _, pub := range d.sessions.Sessions(usd.RolePublish) {
		d.answerProbe(pub, probe)
	}
}

func (d *Device) answerProbe(pub *usd.Session, probe usd.Probe) {
	if !d.matcher.MatchProbe(pub, probe) {
		return
	}
	d.sendPublish(pub, probe.Peer, probe.SubscribeID)
	if d.matcher.ShouldReport(usd.RolePublish, pub.ID, probe.Peer, probe.SubscribeID, 0) {
		d.emit(Event{
			Type:         EventReplied,
			Peer:         probe.Peer,
			LocalID:      pub.ID,
			PeerID:       probe.SubscribeID,
			ServiceName:  probe.ServiceName,
			SrvProtoType: probe.SrvProtoType,
			SSI:          probe.SSI,
		})
	}
}

// answerRecentProbes lets a new solicited publish answer probes heard
// during the last probe interval.
func (d *Device) answerRecentProbes(pub *usd.Session) {
	cutoff := d.clock.Now().Add(-2 * d.config.ProbeInterval)
	for _, key := range d.recentProbes.Keys() {
		seen, ok := d.recentProbes.Peek(key)
		if !ok {
			continue
		}
		if seen.at.Before(cutoff) {
			d.recentProbes.Remove(key)
			continue
		}
		d.answerProbe(pub, seen.probe)
	}
}

// handlePublishFrame delivers an announcement or reply to every matching
// subscribe session.
func (d *Device) handlePublishFrame(f *wire.Frame) {
	if f.Device != nil {
		d.learnPeer(f.Src, f.Device)
	}

	advert := usd.Advert{
		Peer:         f.Src,
		PublishID:    int(f.USD.LocalID),
		ServiceName:  f.USD.ServiceName,
		SrvProtoType: f.USD.SrvProtoType,
		SSI:          f.USD.SSI,
		Version:      f.USD.Version,
		ReplyTo:      int(f.USD.ReplyTo),
		TTL:          f.USD.TTL,
	}
	if !advert.Solicited() {
		d.recentAdverts.Add(sighting{peer: advert.Peer, id: advert.PublishID}, seenAdvert{advert: advert, at: d.clock.Now()})
	}

	for _, sub := range d.sessions.Sessions(usd.RoleSubscribe) {
		d.deliverAdvert(sub, advert)
	}
}

func (d *Device) deliverAdvert(sub *usd.Session, advert usd.Advert) {
	if !d.matcher.MatchAdvert(sub, advert) {
		return
	}

	// A P2P subscribe without its own lifetime follows the publisher's.
	key := lifecycle.SessionKey(lifecycle.KindSubscribe, sub.ID)
	if sub.P2P && sub.TTL == 0 && advert.TTL > 0 && !d.timer.Has(key) {
		if err := d.sessions.SetTTL(usd.RoleSubscribe, sub.ID, advert.TTL); err == nil {
			d.schedule(key, d.ttl(advert.TTL))
		}
	}

	if !d.matcher.ShouldReport(usd.RoleSubscribe, sub.ID, advert.Peer, advert.PublishID, advert.Version) {
		return
	}
	d.emit(Event{
		Type:         EventDiscoveryResult,
		Peer:         advert.Peer,
		LocalID:      sub.ID,
		PeerID:       advert.PublishID,
		ServiceName:  advert.ServiceName,
		SrvProtoType: advert.SrvProtoType,
		SSI:          append([]byte(nil), advert.SSI...),
	})
}

// matchRecentAdverts delivers announcements heard during the last announce
// interval to a new subscribe session.
func (d *Device) matchRecentAdverts(sub *usd.Session) {
	cutoff := d.clock.Now().Add(-2 * d.config.AnnounceInterval)
	for _, key := range d.recentAdverts.Keys() {
		seen, ok := d.recentAdverts.Peek(key)
		if !ok {
			continue
		}
		if seen.at.Before(cutoff) {
			d.recentAdverts.Remove(key)
			continue
		}
		d.deliverAdvert(sub, seen.advert)
	}
}

func (d *Device) traceSession(s *usd.Session, oldState, newState, reason string) {
	entity := log.StateEntityPublish
	if s.Role == usd.RoleSubscribe {
		entity = log.StateEntitySubscribe
	}
	d.traceState(log.LayerUSD, "", "", entity, sessionKeyID(s.ID), oldState, newState, reason)
}
