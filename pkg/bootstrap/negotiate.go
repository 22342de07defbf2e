package bootstrap

import "errors"

// Negotiation errors.
var (
	ErrUnsupportedMethod    = errors.New("unsupported bootstrap method")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidMethod        = errors.New("invalid bootstrap method")
)

// Default capability values.
const (
	// DefaultPASNType enables both the ECC group 19 and the CCMP-128 bits.
	DefaultPASNType uint8 = 0x03

	// DefaultMethods is what a device advertises before P2P_SET configures it.
	DefaultMethods = MethodOpportunistic | MethodPINDisplay | MethodPassphraseDisplay |
		MethodPINKeypad | MethodPassphraseKeypad
)

// Config is the pairing configuration of a device. A copy is taken when a
// pairing starts and is never mutated while the attempt is in flight.
type Config struct {
	PASNType            uint8
	BootstrapMethods    Method
	PairingSetup        bool
	PairingCache        bool
	PairingVerification bool
}

// DefaultConfig returns the configuration of a freshly started device.
func DefaultConfig() Config {
	return Config{
		PASNType:         DefaultPASNType,
		BootstrapMethods: DefaultMethods,
		PairingSetup:     true,
	}
}

// Capabilities is what the peer advertised in its P2P2 attributes.
type Capabilities struct {
	PASNType            uint8
	BootstrapMethods    Method
	PairingSetup        bool
	PairingCache        bool
	PairingVerification bool
}

// Capabilities returns the advertisement corresponding to the config.
func (c Config) Capabilities() Capabilities {
	return Capabilities(c)
}

// Supports reports whether a device advertising methods can take part in
// bootstrapping with requested.
func Supports(methods, requested Method) bool {
	if requested == MethodOpportunistic {
		return true
	}
	return methods&(requested|requested.Counterpart()) != 0
}

// Outcome is the result of a successful negotiation.
type Outcome struct {
	// Method is the requested method. For a cached outcome it is the method
	// the cached pairing was made with.
	Method Method

	Mode Mode

	// Verify is set when a cached key must be re-validated with a MIC
	// exchange before it is trusted.
	Verify bool
}

// Cached reports whether bootstrapping is skipped.
func (o Outcome) Cached() bool {
	return o.Mode == ModeCached
}

// Negotiate decides how a pairing with the peer is authenticated. cached is
// the local cache entry for the peer, if any.
func Negotiate(local Config, peer Capabilities, requested Method, password string, cached *Entry) (Outcome, error) {
	if !requested.Single() {
		return Outcome{}, ErrInvalidMethod
	}
	if !local.PairingSetup || !peer.PairingSetup {
		return Outcome{}, ErrUnsupportedMethod
	}
	if local.PASNType != 0 && peer.PASNType != 0 && local.PASNType&peer.PASNType == 0 {
		return Outcome{}, ErrUnsupportedMethod
	}

	if cached != nil && local.PairingCache && peer.PairingCache {
		return Outcome{
			Method: cached.Method,
			Mode:   ModeCached,
			Verify: local.PairingVerification || peer.PairingVerification,
		}, nil
	}

	if !Supports(peer.BootstrapMethods, requested) || !Supports(local.BootstrapMethods, requested) {
		return Outcome{}, ErrUnsupportedMethod
	}
	if requested.RequiresPassword() && password == "" {
		return Outcome{}, ErrAuthenticationFailed
	}

	return Outcome{Method: requested, Mode: requested.Mode()}, nil
}
