package bootstrap

import (
	"fmt"
	"math/bits"
	"strings"
)

// Method is a bootstrapping method bit. A Methods value is a set of them.
type Method uint16

// Bootstrapping methods as advertised in the pairing bootstrapping attribute.
const (
	MethodOpportunistic     Method = 0x0001
	MethodPINDisplay        Method = 0x0002
	MethodPassphraseDisplay Method = 0x0004
	MethodQRDisplay         Method = 0x0008
	MethodNFCTag            Method = 0x0010
	MethodPINKeypad         Method = 0x0020
	MethodPassphraseKeypad  Method = 0x0040
	MethodQRScan            Method = 0x0080
	MethodNFCReader         Method = 0x0100

	// AllMethods is the set of every defined method.
	AllMethods Method = 0x01ff
)

var methodNames = []struct {
	m    Method
	name string
}{
	{MethodOpportunistic, "opportunistic"},
	{MethodPINDisplay, "pin-display"},
	{MethodPassphraseDisplay, "passphrase-display"},
	{MethodQRDisplay, "qr-display"},
	{MethodNFCTag, "nfc-tag"},
	{MethodPINKeypad, "pin-keypad"},
	{MethodPassphraseKeypad, "passphrase-keypad"},
	{MethodQRScan, "qr-scan"},
	{MethodNFCReader, "nfc-reader"},
}

// Mode is the authentication mode a negotiated method leads to.
type Mode uint8

const (
	// ModeOpportunistic authenticates without a credential.
	ModeOpportunistic Mode = iota

	// ModePassword authenticates with a PIN or passphrase.
	ModePassword

	// ModeOutOfBand authenticates with a credential exchanged by QR or NFC.
	ModeOutOfBand

	// ModeCached reuses key material from an earlier pairing.
	ModeCached
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeOpportunistic:
		return "OPPORTUNISTIC"
	case ModePassword:
		return "PASSWORD"
	case ModeOutOfBand:
		return "OUT_OF_BAND"
	case ModeCached:
		return "CACHED"
	default:
		return "UNKNOWN"
	}
}

// Single reports whether m is exactly one defined method.
func (m Method) Single() bool {
	return m != 0 && m&^AllMethods == 0 && bits.OnesCount16(uint16(m)) == 1
}

// Has reports whether the set m contains every bit of other.
func (m Method) Has(other Method) bool {
	return other != 0 && m&other == other
}

// Counterpart returns the method the peer uses to complete m.
// Opportunistic is its own counterpart.
func (m Method) Counterpart() Method {
	switch m {
	case MethodPINDisplay:
		return MethodPINKeypad
	case MethodPINKeypad:
		return MethodPINDisplay
	case MethodPassphraseDisplay:
		return MethodPassphraseKeypad
	case MethodPassphraseKeypad:
		return MethodPassphraseDisplay
	case MethodQRDisplay:
		return MethodQRScan
	case MethodQRScan:
		return MethodQRDisplay
	case MethodNFCTag:
		return MethodNFCReader
	case MethodNFCReader:
		return MethodNFCTag
	default:
		return m
	}
}

// Compatible reports whether two single methods complete each other.
func Compatible(a, b Method) bool {
	return a == b || a.Counterpart() == b
}

// Mode returns the authentication mode of a single method.
func (m Method) Mode() Mode {
	switch m {
	case MethodOpportunistic:
		return ModeOpportunistic
	case MethodPINDisplay, MethodPINKeypad, MethodPassphraseDisplay, MethodPassphraseKeypad:
		return ModePassword
	default:
		return ModeOutOfBand
	}
}

// RequiresPassword reports whether the method needs a credential.
func (m Method) RequiresPassword() bool {
	return m != MethodOpportunistic
}

// String returns the method names joined by '|', or the hex value for
// undefined bits.
func (m Method) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	rest := m
	for _, n := range methodNames {
		if m&n.m != 0 {
			parts = append(parts, n.name)
			rest &^= n.m
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseMethod parses a method name as returned by String.
func ParseMethod(name string) (Method, error) {
	for _, n := range methodNames {
		if strings.EqualFold(n.name, name) {
			return n.m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, name)
}
