package service

import (
	"errors"

	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/lifecycle"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/pairing"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// formation is a group formation waiting for confirmation (client) or
// association (group owner).
type formation struct {
	peer    string
	role    group.Role
	traceID string

	// started is set when the group owner started the group for this
	// formation.
	started bool
}

// GroupAdd starts a standalone group with this device as group owner.
func (d *Device) GroupAdd(p GroupAddParams) error {
	return d.call(func() error {
		if d.groups.Active() {
			return group.ErrGroupExists
		}
		freq := p.Freq
		if freq <= 0 {
			freq = d.config.OperatingFrequency
		}
		st, err := d.groups.Start(freq, true)
		if err != nil {
			return err
		}
		d.joinable = p.Pairing
		d.groupStarted(st, "")
		return nil
	})
}

// RemoveGroup tears down the active group. A group owner deauthenticates
// every member; a client leaves its group owner.
func (d *Device) RemoveGroup() error {
	return d.call(func() error {
		return d.removeGroup(group.ReasonRequested)
	})
}

func (d *Device) removeGroup(reason group.Reason) error {
	st, err := d.groups.Remove()
	if errors.Is(err, group.ErrNoGroup) {
		return ErrNoGroup
	}
	if err != nil {
		return err
	}
	d.joinable = false
	for peer := range d.formations {
		d.dropFormation(peer)
	}

	if st.Role == group.RoleGroupOwner {
		for _, member := range st.Members {
			_ = d.send(&wire.Frame{
				Type:  wire.FrameGroupDeauth,
				Dst:   member,
				Group: &wire.Group{SSID: st.SSID, Reason: string(reason)},
			}, "")
		}
	} else {
		_ = d.send(&wire.Frame{
			Type:  wire.FrameGroupLeave,
			Dst:   st.GroupOwner,
			Group: &wire.Group{SSID: st.SSID, Reason: string(reason)},
		}, "")
	}

	d.groupRemoved(st, reason)
	return nil
}

func (d *Device) acceptsJoin() bool {
	return d.groups.IsGroupOwner() && d.joinable
}

// formGroup resolves roles after a completed pairing. The group owner
// confirms the group to the client; the client waits for the confirmation.
func (d *Device) formGroup(c *pairing.Context) {
	local := group.Intent{
		Address:  d.config.Address,
		GoIntent: c.LocalIntent.GoIntent,
		Join:     c.LocalIntent.Join,
		HasGroup: c.LocalIntent.HasGroup,
		Freq:     c.LocalIntent.Freq,
	}
	peer := group.Intent{
		Address:  c.Peer,
		GoIntent: c.PeerIntent.GoIntent,
		Join:     c.PeerIntent.Join,
		HasGroup: c.PeerIntent.HasGroup,
		Freq:     c.PeerIntent.Freq,
	}

	role, err := group.ResolveRole(local, peer)
	if err != nil {
		d.formationFailed(c.Peer, c.ID, string(group.ReasonFormationFailed), err)
		return
	}
	d.debugLog("group role resolved", "peer", c.Peer, "role", role.String())

	fm := &formation{peer: c.Peer, role: role, traceID: c.ID}

	if role == group.RoleClient {
		if d.groups.Active() {
			d.formationFailed(c.Peer, c.ID, string(group.ReasonFormationFailed), group.ErrGroupExists)
			return
		}
		d.formations[c.Peer] = fm
		d.schedule(lifecycle.PeerKey(lifecycle.KindFormation, c.Peer), d.config.FormationTimeout)
		return
	}

	st, ok := d.groups.Current()
	switch {
	case ok && st.Role != group.RoleGroupOwner:
		d.formationFailed(c.Peer, c.ID, string(group.ReasonFormationFailed), group.ErrGroupExists)
		return
	case !ok:
		freq := group.OperatingFrequency(local.Freq, peer.Freq, d.config.OperatingFrequency)
		st, err = d.groups.Start(freq, false)
		if err != nil {
			d.formationFailed(c.Peer, c.ID, string(group.ReasonFormationFailed), err)
			return
		}
		d.joinable = true
		fm.started = true
		d.groupStarted(st, c.ID)
	}

	if err := d.groups.Expect(c.Peer); err != nil {
		d.formationFailed(c.Peer, c.ID, string(group.ReasonFormationFailed), err)
		return
	}
	d.formations[c.Peer] = fm
	d.schedule(lifecycle.PeerKey(lifecycle.KindFormation, c.Peer), d.config.FormationTimeout)

	_ = d.send(&wire.Frame{
		Type: wire.FrameGroupConfirm,
		Dst:  c.Peer,
		Group: &wire.Group{
			SSID:       st.SSID,
			Frequency:  uint32(st.Frequency),
			GroupOwner: st.GroupOwner,
		},
	}, c.ID)
}

// handleGroupConfirm joins the group a group owner confirmed.
func (d *Device) handleGroupConfirm(f *wire.Frame) {
	fm, ok := d.formations[f.Src]
	if !ok || fm.role != group.RoleClient {
		d.traceError(log.LayerGroup, f.Src, "unexpected group confirm", f.Type.String())
		return
	}
	d.dropFormation(f.Src)

	st, err := d.groups.Join(f.Src, f.Group.SSID, int(f.Group.Frequency))
	if err != nil {
		d.formationFailed(f.Src, fm.traceID, string(group.ReasonFormationFailed), err)
		return
	}
	d.groupStarted(st, fm.traceID)

	_ = d.send(&wire.Frame{
		Type:  wire.FrameGroupAssociated,
		Dst:   f.Src,
		Group: &wire.Group{SSID: st.SSID},
	}, fm.traceID)
}

// handleGroupAssociated completes the association of a client this group
// owner confirmed after pairing.
func (d *Device) handleGroupAssociated(f *wire.Frame) {
	fm, ok := d.formations[f.Src]
	if !ok || fm.role != group.RoleGroupOwner {
		d.traceError(log.LayerGroup, f.Src, "unexpected group association", f.Type.String())
		return
	}
	traceID := fm.traceID
	d.dropFormation(f.Src)

	added, err := d.groups.AddMember(f.Src)
	if err != nil {
		d.traceError(log.LayerGroup, f.Src, err.Error(), f.Type.String())
		return
	}
	if !added {
		return
	}

	if st, ok := d.groups.Current(); ok {
		d.traceState(log.LayerGroup, f.Src, traceID, log.StateEntityGroup, st.ID, "", "MEMBER_ADDED", f.Src)
	}
	d.emit(Event{Type: EventClientJoined, Peer: f.Src})
}

// handleGroupDeauth ends the membership of a client whose group owner
// removed the group.
func (d *Device) handleGroupDeauth(f *wire.Frame) {
	st, ok := d.groups.Current()
	if !ok || st.Role != group.RoleClient || st.GroupOwner != f.Src {
		return
	}
	if _, err := d.groups.Remove(); err != nil {
		return
	}

	d.emit(Event{Type: EventGroupEndingSession, Peer: f.Src, GroupID: st.ID})
	d.groupRemoved(st, group.ReasonGoEndingSession)
}

// handleGroupLeave drops a client that removed its group. A negotiated
// group ends with its last client.
func (d *Device) handleGroupLeave(f *wire.Frame) {
	st, ok := d.groups.Current()
	if !ok || st.Role != group.RoleGroupOwner || !st.HasMember(f.Src) {
		return
	}
	remaining, err := d.groups.RemoveMember(f.Src)
	if err != nil {
		return
	}

	d.traceState(log.LayerGroup, f.Src, "", log.StateEntityGroup, st.ID, "", "MEMBER_REMOVED", f.Src)
	d.emit(Event{Type: EventGroupEndingSession, Peer: f.Src, GroupID: st.ID})

	if remaining == 0 && !st.Persistent {
		if ended, err := d.groups.Remove(); err == nil {
			d.joinable = false
			d.groupRemoved(ended, group.ReasonIdle)
		}
	}
}

// expireFormation abandons a formation that was not confirmed in time and
// removes a group started for it that has no members.
func (d *Device) expireFormation(peer string) {
	fm, ok := d.formations[peer]
	if !ok {
		return
	}
	delete(d.formations, peer)

	if fm.role == group.RoleGroupOwner {
		d.groups.Unexpect(peer)
		if st, ok := d.groups.Current(); ok && fm.started && !st.Persistent && len(st.Members) == 0 {
			if ended, err := d.groups.Remove(); err == nil {
				d.joinable = false
				d.groupRemoved(ended, group.ReasonFormationFailed)
			}
		}
	}

	d.formationFailed(peer, fm.traceID, string(pairing.ReasonTimeout), nil)
}

func (d *Device) dropFormation(peer string) {
	delete(d.formations, peer)
	d.timer.Cancel(lifecycle.PeerKey(lifecycle.KindFormation, peer))
}

// formationFailed notifies a group formation that did not complete.
func (d *Device) formationFailed(peer, traceID, reason string, err error) {
	if err != nil {
		d.debugLog("group formation failed", "peer", peer, "error", err)
		d.traceError(log.LayerGroup, peer, err.Error(), reason)
	}
	d.traceState(log.LayerGroup, peer, traceID, log.StateEntityGroup, peer, "FORMING", "FAILED", reason)
	d.emit(Event{Type: EventGroupFormationFailure, Peer: peer, Reason: reason})
}

func (d *Device) groupStarted(st *group.State, traceID string) {
	d.traceState(log.LayerGroup, "", traceID, log.StateEntityGroup, st.ID, "", "STARTED", st.Role.String())
	d.debugLog("group started", "groupID", st.ID, "role", st.Role.String(), "freq", st.Frequency)
	d.emit(Event{
		Type:      EventGroupStarted,
		Peer:      st.GroupOwner,
		Role:      st.Role,
		Frequency: st.Frequency,
		GroupID:   st.ID,
		SSID:      st.SSID,
	})
}

func (d *Device) groupRemoved(st *group.State, reason group.Reason) {
	d.traceState(log.LayerGroup, "", "", log.StateEntityGroup, st.ID, "STARTED", "REMOVED", string(reason))
	d.debugLog("group removed", "groupID", st.ID, "reason", string(reason))
	d.emit(Event{
		Type:      EventGroupRemoved,
		Role:      st.Role,
		Frequency: st.Frequency,
		GroupID:   st.ID,
		SSID:      st.SSID,
		Reason:    string(reason),
	})
}
