package service

import (
	"strconv"

	"github.com/p2p2-protocol/p2p2-go/pkg/lifecycle"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
	"github.com/p2p2-protocol/p2p2-go/pkg/wire"
)

// trace stamps and records a protocol trace event.
func (d *Device) trace(ev log.Event) {
	if d.protocolLogger == nil {
		return
	}
	ev.Timestamp = d.clock.Now()
	ev.DeviceAddr = d.config.Address
	d.protocolLogger.Log(ev)
}

func (d *Device) traceFrame(dir log.Direction, f *wire.Frame, data []byte, traceID string) {
	if d.protocolLogger == nil {
		return
	}
	peer := f.Dst
	if dir == log.DirectionIn {
		peer = f.Src
	}
	d.trace(log.Event{
		TraceID:   traceID,
		Direction: dir,
		Layer:     log.LayerMedium,
		Category:  log.CategoryFrame,
		PeerAddr:  peer,
		Frame:     log.NewFrameEvent(f.Type.String(), data),
	})
}

func (d *Device) traceState(layer log.Layer, peer, traceID string, entity log.StateEntity, id, oldState, newState, reason string) {
	d.trace(log.Event{
		TraceID:  traceID,
		Layer:    layer,
		Category: log.CategoryState,
		PeerAddr: peer,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			ID:       id,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (d *Device) traceError(layer log.Layer, peer, msg, context string) {
	d.trace(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		PeerAddr: peer,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: msg,
			Context: context,
		},
	})
}

// eventLayer returns the layer a notification belongs to.
func eventLayer(t EventType) log.Layer {
	switch t {
	case EventPublishTerminated, EventSubscribeTerminated, EventDiscoveryResult, EventReplied, EventDeviceFound:
		return log.LayerUSD
	case EventBootstrapRequest, EventPairingComplete, EventPairingFailed:
		return log.LayerPairing
	default:
		return log.LayerGroup
	}
}

func sessionKeyID(id int) string {
	return strconv.Itoa(id)
}

func sessionID(key lifecycle.Key) (int, error) {
	return strconv.Atoi(key.ID)
}
