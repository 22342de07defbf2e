package ctrl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/p2p2-protocol/p2p2-go/pkg/bootstrap"
	"github.com/p2p2-protocol/p2p2-go/pkg/group"
	"github.com/p2p2-protocol/p2p2-go/pkg/service"
	"github.com/p2p2-protocol/p2p2-go/pkg/usd"
)

// Reply strings.
const (
	ReplyOK   = "OK"
	ReplyFail = "FAIL"
)

// maxID bounds session id and TTL arguments.
const maxID = 1<<31 - 1

// ErrUnknownEvent is returned when no event type matches a wait prefix.
var ErrUnknownEvent = errors.New("unknown event")

type handler func(*service.Device, *Command) (string, error)

var handlers = map[string]handler{
	"PING":                 handlePing,
	"STATUS":               handleStatus,
	"NAN_PUBLISH":          handlePublish,
	"NAN_UPDATE_PUBLISH":   handleUpdatePublish,
	"NAN_CANCEL_PUBLISH":   handleCancelPublish,
	"NAN_SUBSCRIBE":        handleSubscribe,
	"NAN_CANCEL_SUBSCRIBE": handleCancelSubscribe,
	"P2P_CONNECT":          handleConnect,
	"P2P_GROUP_ADD":        handleGroupAdd,
	"P2P_GROUP_REMOVE":     handleGroupRemove,
	"P2P_SET":              handleSet,
	"P2P_PEERS":            handlePeers,
	"P2P_PEER":             handlePeer,
	"PMKSA_FLUSH":          handleFlush,
}

// Commands returns the names of the supported commands.
func Commands() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	return names
}

// Interface is a text control interface to a device.
type Interface struct {
	dev *service.Device
}

// New creates a control interface for dev.
func New(dev *service.Device) *Interface {
	return &Interface{dev: dev}
}

// Device returns the controlled device.
func (i *Interface) Device() *service.Device {
	return i.dev
}

// Do executes a command line and returns its reply.
func (i *Interface) Do(line string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}
	h, ok := handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	return h(i.dev, cmd)
}

// Request executes a command line and returns its reply, or FAIL.
func (i *Interface) Request(line string) string {
	reply, err := i.Do(line)
	if err != nil {
		return ReplyFail
	}
	return reply
}

// WaitEvent waits for the next event whose line starts with one of the
// prefixes and returns the line. Without prefixes any event matches.
func (i *Interface) WaitEvent(ctx context.Context, prefixes ...string) (string, error) {
	var types []service.EventType
	if len(prefixes) > 0 {
		types = EventTypes(prefixes...)
		if len(types) == 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownEvent, strings.Join(prefixes, ","))
		}
	}
	ev, err := i.dev.Events().Wait(ctx, types...)
	if err != nil {
		return "", err
	}
	return FormatEvent(ev), nil
}

// OnEvent registers fn to receive every event as a line.
func (i *Interface) OnEvent(fn func(line string)) {
	i.dev.OnEvent(func(ev service.Event) {
		fn(FormatEvent(ev))
	})
}

func handlePing(*service.Device, *Command) (string, error) {
	return "PONG", nil
}

func handleStatus(dev *service.Device, _ *Command) (string, error) {
	lines := []string{
		"p2p_device_address=" + dev.Address(),
		"state=" + dev.State().String(),
	}
	if st, ok := dev.Group(); ok {
		lines = append(lines,
			"group_role="+st.Role.String(),
			"ssid="+st.SSID,
			"freq="+strconv.Itoa(st.Frequency),
			"members="+strconv.Itoa(len(st.Members)),
		)
	}
	return strings.Join(lines, "\n"), nil
}

func handlePublish(dev *service.Device, cmd *Command) (string, error) {
	p := usd.PublishParams{ServiceName: cmd.String("service_name", "")}
	var err error
	if p.Solicited, err = cmd.Bool("solicited", true); err != nil {
		return "", err
	}
	if p.Unsolicited, err = cmd.Bool("unsolicited", true); err != nil {
		return "", err
	}
	if p.P2P, err = cmd.Bool("p2p", false); err != nil {
		return "", err
	}
	if p.SrvProtoType, p.SSI, p.TTL, err = serviceParams(cmd); err != nil {
		return "", err
	}

	id, err := dev.Publish(p)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(id), nil
}

func handleUpdatePublish(dev *service.Device, cmd *Command) (string, error) {
	id, err := cmd.Int("publish_id", 0, 1, maxID)
	if err != nil {
		return "", err
	}
	ssi, err := cmd.Hex("ssi")
	if err != nil {
		return "", err
	}
	if err := dev.UpdatePublish(id, ssi); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func handleCancelPublish(dev *service.Device, cmd *Command) (string, error) {
	id, err := cmd.Int("publish_id", 0, 1, maxID)
	if err != nil {
		return "", err
	}
	if err := dev.CancelPublish(id); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func handleSubscribe(dev *service.Device, cmd *Command) (string, error) {
	p := usd.SubscribeParams{ServiceName: cmd.String("service_name", "")}
	var err error
	if p.Active, err = cmd.Bool("active", false); err != nil {
		return "", err
	}
	if p.P2P, err = cmd.Bool("p2p", false); err != nil {
		return "", err
	}
	if p.SrvProtoType, p.SSI, p.TTL, err = serviceParams(cmd); err != nil {
		return "", err
	}

	id, err := dev.Subscribe(p)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(id), nil
}

func handleCancelSubscribe(dev *service.Device, cmd *Command) (string, error) {
	id, err := cmd.Int("subscribe_id", 0, 1, maxID)
	if err != nil {
		return "", err
	}
	if err := dev.CancelSubscribe(id); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func serviceParams(cmd *Command) (protoType uint8, ssi []byte, ttl uint32, err error) {
	pt, err := cmd.Int("srv_proto_type", 0, 0, 255)
	if err != nil {
		return 0, nil, 0, err
	}
	if ssi, err = cmd.Hex("ssi"); err != nil {
		return 0, nil, 0, err
	}
	t, err := cmd.Int("ttl", 0, 0, maxID)
	if err != nil {
		return 0, nil, 0, err
	}
	return uint8(pt), ssi, uint32(t), nil
}

// handleConnect handles
// P2P_CONNECT <addr> pair [auth] [join] bstrapmethod=N [go_intent=N] [password=..] [freq=N].
// The he and p2p2 flags are accepted and ignored.
func handleConnect(dev *service.Device, cmd *Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", fmt.Errorf("%w: missing peer address", ErrBadArgument)
	}
	peer, err := parseAddr(cmd.Args[0])
	if err != nil {
		return "", err
	}
	if !cmd.Has("pair") {
		return "", fmt.Errorf("%w: only pairing connections are supported", ErrBadArgument)
	}
	if _, ok := cmd.Params["bstrapmethod"]; !ok {
		return "", fmt.Errorf("%w: missing bstrapmethod", ErrBadArgument)
	}
	method, err := cmd.Int("bstrapmethod", 0, 1, 0xffff)
	if err != nil {
		return "", err
	}
	intent, err := cmd.Int("go_intent", service.UseDefaultIntent, 0, group.MaxGoIntent)
	if err != nil {
		return "", err
	}
	freq, err := cmd.Int("freq", 0, 0, 1<<16)
	if err != nil {
		return "", err
	}

	err = dev.Connect(service.ConnectParams{
		Peer:     peer,
		Method:   bootstrap.Method(method),
		Auth:     cmd.Has("auth"),
		Join:     cmd.Has("join"),
		Password: cmd.String("password", ""),
		GoIntent: intent,
		Freq:     freq,
	})
	if err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func handleGroupAdd(dev *service.Device, cmd *Command) (string, error) {
	freq, err := cmd.Int("freq", 0, 0, 1<<16)
	if err != nil {
		return "", err
	}
	if err := dev.GroupAdd(service.GroupAddParams{Pairing: cmd.Has("p2p2"), Freq: freq}); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func handleGroupRemove(dev *service.Device, _ *Command) (string, error) {
	if err := dev.RemoveGroup(); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

// handleSet handles P2P_SET <name> <value> for the pairing configuration.
func handleSet(dev *service.Device, cmd *Command) (string, error) {
	if len(cmd.Args) != 2 {
		return "", fmt.Errorf("%w: expected name and value", ErrBadArgument)
	}
	name, value := cmd.Args[0], cmd.Args[1]

	var apply func(*bootstrap.Config)
	switch name {
	case "pasn_type":
		n, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%s", ErrBadArgument, name, value)
		}
		apply = func(cfg *bootstrap.Config) { cfg.PASNType = uint8(n) }
	case "supported_bootstrapmethods":
		n, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%s", ErrBadArgument, name, value)
		}
		apply = func(cfg *bootstrap.Config) { cfg.BootstrapMethods = bootstrap.Method(n) }
	case "pairing_setup", "pairing_cache", "pairing_verification":
		b, err := parseBool(name, value)
		if err != nil {
			return "", err
		}
		switch name {
		case "pairing_setup":
			apply = func(cfg *bootstrap.Config) { cfg.PairingSetup = b }
		case "pairing_cache":
			apply = func(cfg *bootstrap.Config) { cfg.PairingCache = b }
		default:
			apply = func(cfg *bootstrap.Config) { cfg.PairingVerification = b }
		}
	default:
		return "", fmt.Errorf("%w: unknown setting %s", ErrBadArgument, name)
	}

	err := dev.UpdatePairingConfig(func(cfg *bootstrap.Config) error {
		apply(cfg)
		return nil
	})
	if err != nil {
		return "", err
	}
	return ReplyOK, nil
}

func handlePeers(dev *service.Device, _ *Command) (string, error) {
	return strings.Join(dev.Peers(), "\n"), nil
}

func handlePeer(dev *service.Device, cmd *Command) (string, error) {
	if len(cmd.Args) != 1 {
		return "", fmt.Errorf("%w: missing peer address", ErrBadArgument)
	}
	addr, err := parseAddr(cmd.Args[0])
	if err != nil {
		return "", err
	}
	info, err := dev.Peer(addr)
	if err != nil {
		return "", err
	}
	caps := info.Capabilities
	lines := []string{
		info.Address,
		fmt.Sprintf("pasn_type=%d", caps.PASNType),
		fmt.Sprintf("bootstrap_methods=%d", uint16(caps.BootstrapMethods)),
		fmt.Sprintf("pairing_setup=%d", boolInt(caps.PairingSetup)),
		fmt.Sprintf("pairing_cache=%d", boolInt(caps.PairingCache)),
		fmt.Sprintf("pairing_verification=%d", boolInt(caps.PairingVerification)),
		fmt.Sprintf("has_group=%d", boolInt(info.HasGroup)),
	}
	return strings.Join(lines, "\n"), nil
}

func handleFlush(dev *service.Device, _ *Command) (string, error) {
	if err := dev.FlushPairingCache(); err != nil {
		return "", err
	}
	return ReplyOK, nil
}

// parseAddr normalizes a MAC address to lower-case colon form.
func parseAddr(s string) (string, error) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("%w: address %q", ErrBadArgument, s)
	}
	return hw.String(), nil
}
