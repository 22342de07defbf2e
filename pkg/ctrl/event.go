package ctrl

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/service"
)

// Event line prefixes.
const (
	EventPublishTerminated     = "NAN-PUBLISH-TERMINATED"
	EventSubscribeTerminated   = "NAN-SUBSCRIBE-TERMINATED"
	EventDiscoveryResult       = "NAN-DISCOVERY-RESULT"
	EventReplied               = "NAN-REPLIED"
	EventDeviceFound           = "P2P-DEVICE-FOUND"
	EventBootstrapRequest      = "P2P-BOOTSTRAP-REQUEST"
	EventPairingComplete       = "P2P-PAIRING-COMPLETE"
	EventPairingFailure        = "P2P-PAIRING-FAILURE"
	EventGroupStarted          = "P2P-GROUP-STARTED"
	EventGroupFormationFailure = "P2P-GROUP-FORMATION-FAILURE"
	EventStaConnected          = "AP-STA-CONNECTED"
	EventGroupRemoved          = "P2P-GROUP-REMOVED"
	EventGroupEndingSession    = "P2P-GROUP-ENDING-SESSION"
)

var prefixes = map[service.EventType]string{
	service.EventPublishTerminated:     EventPublishTerminated,
	service.EventSubscribeTerminated:   EventSubscribeTerminated,
	service.EventDiscoveryResult:       EventDiscoveryResult,
	service.EventReplied:               EventReplied,
	service.EventDeviceFound:           EventDeviceFound,
	service.EventBootstrapRequest:      EventBootstrapRequest,
	service.EventPairingComplete:       EventPairingComplete,
	service.EventPairingFailed:         EventPairingFailure,
	service.EventGroupStarted:          EventGroupStarted,
	service.EventGroupFormationFailure: EventGroupFormationFailure,
	service.EventClientJoined:          EventStaConnected,
	service.EventGroupRemoved:          EventGroupRemoved,
	service.EventGroupEndingSession:    EventGroupEndingSession,
}

// Prefix returns the line prefix of an event type.
func Prefix(t service.EventType) string {
	return prefixes[t]
}

// EventTypes returns the event types whose lines start with one of the
// given prefixes.
func EventTypes(linePrefixes ...string) []service.EventType {
	var types []service.EventType
	for t, p := range prefixes {
		for _, want := range linePrefixes {
			if strings.HasPrefix(p, want) {
				types = append(types, t)
				break
			}
		}
	}
	return types
}

// FormatEvent renders a notification as a control interface event line.
func FormatEvent(ev service.Event) string {
	prefix := Prefix(ev.Type)
	switch ev.Type {
	case service.EventPublishTerminated:
		return fmt.Sprintf("%s publish_id=%d reason=%s", prefix, ev.LocalID, ev.Reason)
	case service.EventSubscribeTerminated:
		return fmt.Sprintf("%s subscribe_id=%d reason=%s", prefix, ev.LocalID, ev.Reason)
	case service.EventDiscoveryResult:
		return fmt.Sprintf("%s subscribe_id=%d publish_id=%d address=%s service_name=%s srv_proto_type=%d ssi=%s",
			prefix, ev.LocalID, ev.PeerID, ev.Peer, ev.ServiceName, ev.SrvProtoType, hex.EncodeToString(ev.SSI))
	case service.EventReplied:
		return fmt.Sprintf("%s publish_id=%d address=%s subscribe_id=%d srv_proto_type=%d ssi=%s",
			prefix, ev.LocalID, ev.Peer, ev.PeerID, ev.SrvProtoType, hex.EncodeToString(ev.SSI))
	case service.EventDeviceFound:
		return fmt.Sprintf("%s %s p2p_dev_addr=%s", prefix, ev.Peer, ev.Peer)
	case service.EventBootstrapRequest:
		return fmt.Sprintf("%s %s bootstrap_method=%d", prefix, ev.Peer, uint16(ev.Method))
	case service.EventPairingComplete:
		return fmt.Sprintf("%s %s bootstrap_method=%d cached=%d", prefix, ev.Peer, uint16(ev.Method), boolInt(ev.Cached))
	case service.EventPairingFailed:
		return fmt.Sprintf("%s %s reason=%s", prefix, ev.Peer, ev.Reason)
	case service.EventGroupStarted:
		return fmt.Sprintf("%s %s %s ssid=\"%s\" freq=%d go_dev_addr=%s",
			prefix, ifname(ev.SSID), ev.Role, ev.SSID, ev.Frequency, ev.Peer)
	case service.EventGroupFormationFailure:
		return fmt.Sprintf("%s %s reason=%s", prefix, ev.Peer, ev.Reason)
	case service.EventClientJoined:
		return fmt.Sprintf("%s %s p2p_dev_addr=%s", prefix, ev.Peer, ev.Peer)
	case service.EventGroupRemoved:
		return fmt.Sprintf("%s %s %s reason=%s", prefix, ifname(ev.SSID), ev.Role, removalReason(ev.Reason))
	case service.EventGroupEndingSession:
		return fmt.Sprintf("%s %s", prefix, ev.Peer)
	default:
		return fmt.Sprintf("UNKNOWN-EVENT type=%d", ev.Type)
	}
}

// ifname names the group interface after the SSID suffix.
func ifname(ssid string) string {
	return "p2p-" + strings.ToLower(strings.TrimPrefix(ssid, "DIRECT-"))
}

// removalReason maps a group removal reason to its control interface form,
// e.g. go-ending-session to GO_ENDING_SESSION.
func removalReason(reason string) string {
	switch group.Reason(reason) {
	case group.ReasonRequested, group.ReasonGoEndingSession, group.ReasonIdle, group.ReasonFormationFailed:
		return strings.ToUpper(strings.ReplaceAll(reason, "-", "_"))
	default:
		return "UNKNOWN"
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
