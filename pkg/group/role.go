package group

import (
	"errors"
	"fmt"
)

// Group errors.
var (
	ErrFormationFailed = errors.New("group formation failed")
	ErrInvalidIntent   = errors.New("invalid go intent")
	ErrGroupExists     = errors.New("group already active")
	ErrNoGroup         = errors.New("no active group")
	ErrNotGroupOwner   = errors.New("not the group owner")
	ErrNotExpected     = errors.New("peer not expected to associate")
)

// Intent limits.
const (
	MaxGoIntent     = 15
	DefaultGoIntent = 7
)

// DefaultFrequency is the operating frequency in MHz when neither side
// forces one (channel 6).
const DefaultFrequency = 2437

// Role is the part a device plays in a group.
type Role uint8

const (
	RoleGroupOwner Role = iota
	RoleClient
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleGroupOwner:
		return "GO"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Intent is one side's input to role resolution.
type Intent struct {
	Address  string
	GoIntent int

	// Join is set when the device wants to join the group the other side
	// already operates.
	Join bool

	// HasGroup is set when the device already operates a group.
	HasGroup bool

	// Freq is a forced operating frequency, 0 if none.
	Freq int
}

func (i Intent) validate() error {
	if i.GoIntent < 0 || i.GoIntent > MaxGoIntent {
		return fmt.Errorf("%w: %d", ErrInvalidIntent, i.GoIntent)
	}
	return nil
}

// ResolveRole returns the role of the local device. Called with the
// arguments swapped it returns the opposite role.
func ResolveRole(local, peer Intent) (Role, error) {
	if err := local.validate(); err != nil {
		return 0, err
	}
	if err := peer.validate(); err != nil {
		return 0, err
	}

	switch {
	case local.Join && peer.Join:
		return 0, fmt.Errorf("%w: both sides want to join", ErrFormationFailed)
	case local.Join:
		if !peer.HasGroup {
			return 0, fmt.Errorf("%w: peer operates no group", ErrFormationFailed)
		}
		return RoleClient, nil
	case peer.Join:
		if !local.HasGroup {
			return 0, fmt.Errorf("%w: no group to join", ErrFormationFailed)
		}
		return RoleGroupOwner, nil
	}

	switch {
	case local.HasGroup && peer.HasGroup:
		return 0, fmt.Errorf("%w: both sides operate a group", ErrFormationFailed)
	case local.HasGroup:
		return RoleGroupOwner, nil
	case peer.HasGroup:
		return RoleClient, nil
	}

	switch {
	case local.GoIntent == MaxGoIntent && peer.GoIntent == MaxGoIntent:
		return 0, fmt.Errorf("%w: both sides require group owner", ErrFormationFailed)
	case local.GoIntent > peer.GoIntent:
		return RoleGroupOwner, nil
	case local.GoIntent < peer.GoIntent:
		return RoleClient, nil
	case local.Address > peer.Address:
		return RoleGroupOwner, nil
	case local.Address < peer.Address:
		return RoleClient, nil
	default:
		return 0, fmt.Errorf("%w: identical addresses", ErrFormationFailed)
	}
}

// OperatingFrequency picks the group frequency: the group owner's forced
// frequency, else the client's, else def.
func OperatingFrequency(goFreq, clientFreq, def int) int {
	switch {
	case goFreq > 0:
		return goFreq
	case clientFreq > 0:
		return clientFreq
	case def > 0:
		return def
	default:
		return DefaultFrequency
	}
}
