package wire

import (
	"errors"
	"fmt"
)

// ErrInvalidFrame is returned for frames that are structurally invalid.
var ErrInvalidFrame = errors.New("invalid frame")

// FrameType identifies the purpose of a frame.
type FrameType uint8

const (
	FrameUnknown FrameType = iota
	FrameSubscribe
	FramePublish
	FrameBootstrapRequest
	FrameBootstrapResponse
	FrameAuth1
	FrameAuth2
	FrameAuth3
	FrameGroupConfirm
	FrameGroupAssociated
	FrameGroupDeauth
	FrameGroupLeave
)

// String returns a human-readable frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameSubscribe:
		return "SUBSCRIBE"
	case FramePublish:
		return "PUBLISH"
	case FrameBootstrapRequest:
		return "BOOTSTRAP_REQUEST"
	case FrameBootstrapResponse:
		return "BOOTSTRAP_RESPONSE"
	case FrameAuth1:
		return "AUTH1"
	case FrameAuth2:
		return "AUTH2"
	case FrameAuth3:
		return "AUTH3"
	case FrameGroupConfirm:
		return "GROUP_CONFIRM"
	case FrameGroupAssociated:
		return "GROUP_ASSOCIATED"
	case FrameGroupDeauth:
		return "GROUP_DEAUTH"
	case FrameGroupLeave:
		return "GROUP_LEAVE"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is a defined frame type.
func (t FrameType) IsValid() bool {
	return t >= FrameSubscribe && t <= FrameGroupLeave
}

// IsUSD reports whether t is a service discovery frame.
func (t FrameType) IsUSD() bool {
	return t == FrameSubscribe || t == FramePublish
}

// Frame is the unit exchanged over the medium.
//
// CBOR encoding:
//
//	{
//	  1: type,       // uint8
//	  2: src,        // sender address
//	  3: dst,        // destination address, absent for broadcasts
//	  4: usd,        // Subscribe, Publish
//	  5: device,     // P2P2 device attributes (USD frames with p2p)
//	  6: bootstrap,  // BootstrapRequest, BootstrapResponse
//	  7: auth,       // Auth1, Auth2, Auth3
//	  8: group       // group frames
//	}
type Frame struct {
	Type      FrameType  `cbor:"1,keyasint"`
	Src       string     `cbor:"2,keyasint"`
	Dst       string     `cbor:"3,keyasint,omitempty"`
	USD       *USD       `cbor:"4,keyasint,omitempty"`
	Device    *Device    `cbor:"5,keyasint,omitempty"`
	Bootstrap *Bootstrap `cbor:"6,keyasint,omitempty"`
	Auth      *Auth      `cbor:"7,keyasint,omitempty"`
	Group     *Group     `cbor:"8,keyasint,omitempty"`
}

// USD is a publish or subscribe service discovery body.
type USD struct {
	ServiceName  string `cbor:"1,keyasint"`
	SrvProtoType uint8  `cbor:"2,keyasint,omitempty"`
	SSI          []byte `cbor:"3,keyasint,omitempty"`

	// LocalID is the sender's publish or subscribe id.
	LocalID uint32 `cbor:"4,keyasint"`

	// ReplyTo is the subscribe id a solicited publish answers.
	ReplyTo uint32 `cbor:"5,keyasint,omitempty"`

	// Version changes whenever the publisher updates its SSI.
	Version uint32 `cbor:"6,keyasint,omitempty"`

	// TTL is the remaining lifetime of the publish in TTL units.
	TTL uint32 `cbor:"7,keyasint,omitempty"`
}

// Device carries the P2P2 capability attributes of the sender.
type Device struct {
	PASNType            uint8  `cbor:"1,keyasint,omitempty"`
	BootstrapMethods    uint16 `cbor:"2,keyasint,omitempty"`
	PairingSetup        bool   `cbor:"3,keyasint,omitempty"`
	PairingCache        bool   `cbor:"4,keyasint,omitempty"`
	PairingVerification bool   `cbor:"5,keyasint,omitempty"`
	HasGroup            bool   `cbor:"6,keyasint,omitempty"`
}

// Intent carries the group preferences of the sender.
type Intent struct {
	GoIntent uint8  `cbor:"1,keyasint"`
	Join     bool   `cbor:"2,keyasint,omitempty"`
	HasGroup bool   `cbor:"3,keyasint,omitempty"`
	Freq     uint32 `cbor:"4,keyasint,omitempty"`
}

// Bootstrap is a bootstrapping request or response body.
type Bootstrap struct {
	Method uint16 `cbor:"1,keyasint"`
	Status uint8  `cbor:"2,keyasint,omitempty"`

	// ComebackMillis is the delay a comeback response asks for.
	ComebackMillis uint32 `cbor:"3,keyasint,omitempty"`

	Intent *Intent `cbor:"4,keyasint,omitempty"`
}

// Auth is an authentication frame body.
type Auth struct {
	Status uint8  `cbor:"1,keyasint,omitempty"`
	Cached bool   `cbor:"2,keyasint,omitempty"`
	Verify bool   `cbor:"3,keyasint,omitempty"`
	Nonce  []byte `cbor:"4,keyasint,omitempty"`
	MIC    []byte `cbor:"5,keyasint,omitempty"`
	Method uint16 `cbor:"6,keyasint,omitempty"`

	Intent *Intent `cbor:"7,keyasint,omitempty"`
}

// Group is a group formation or teardown body.
type Group struct {
	SSID       string `cbor:"1,keyasint,omitempty"`
	Frequency  uint32 `cbor:"2,keyasint,omitempty"`
	GroupOwner string `cbor:"3,keyasint,omitempty"`
	Reason     string `cbor:"4,keyasint,omitempty"`
}

// Validate checks that the frame type, addresses and body agree.
func (f *Frame) Validate() error {
	if !f.Type.IsValid() {
		return fmt.Errorf("%w: type %d", ErrInvalidFrame, f.Type)
	}
	if f.Src == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidFrame)
	}
	if !f.Type.IsUSD() && f.Dst == "" {
		return fmt.Errorf("%w: %s without destination", ErrInvalidFrame, f.Type)
	}

	switch f.Type {
	case FrameSubscribe, FramePublish:
		if f.USD == nil || f.USD.ServiceName == "" || f.USD.LocalID == 0 {
			return fmt.Errorf("%w: %s without service", ErrInvalidFrame, f.Type)
		}
	case FrameBootstrapRequest, FrameBootstrapResponse:
		if f.Bootstrap == nil {
			return fmt.Errorf("%w: %s without body", ErrInvalidFrame, f.Type)
		}
	case FrameAuth1, FrameAuth2, FrameAuth3:
		if f.Auth == nil {
			return fmt.Errorf("%w: %s without body", ErrInvalidFrame, f.Type)
		}
	case FrameGroupConfirm:
		if f.Group == nil || f.Group.SSID == "" || f.Group.Frequency == 0 {
			return fmt.Errorf("%w: %s without group", ErrInvalidFrame, f.Type)
		}
	}
	return nil
}
