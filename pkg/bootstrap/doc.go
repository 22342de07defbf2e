// Package bootstrap negotiates how two P2P2 devices authenticate each other
// before pairing.
//
// # Methods
//
// Each device advertises a bitmask of bootstrapping methods. Methods come in
// pairs: a method that shows a credential (PIN display, QR display, NFC tag)
// is the counterpart of the method that enters or reads it (PIN keypad, QR
// scan, NFC reader). A request is supported when the peer advertises the
// requested method or its counterpart. Opportunistic bootstrapping needs no
// credential and is available whenever pairing setup is enabled.
//
// # Negotiation
//
// Negotiate takes an immutable Config snapshot of the local device, the
// Capabilities the peer advertised and the requested method. It returns an
// Outcome naming the authentication mode, or ErrUnsupportedMethod /
// ErrAuthenticationFailed. When both devices enable the pairing cache and a
// prior pairing exists, the outcome is cached and bootstrapping is skipped.
//
// # Key material
//
// Password methods derive a PMK with PBKDF2-SHA256 salted by both device
// addresses. Session keys are expanded with HKDF-SHA256 over both nonces and
// each side proves possession with an HMAC-SHA256 MIC.
package bootstrap
