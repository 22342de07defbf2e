package bootstrap

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Key material sizes.
const (
	NonceSize = 32
	PMKSize   = 32
	KCKSize   = 32

	// PBKDF2Iterations is the iteration count for password derived PMKs.
	PBKDF2Iterations = 4096
)

// MIC labels distinguish the two directions of the confirmation exchange.
const (
	LabelInitiator = "P2P2 initiator"
	LabelResponder = "P2P2 responder"
)

// NewNonce returns a fresh random nonce.
func NewNonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, err
	}
	return n, nil
}

// orderedAddrs returns both addresses lowest first, so either side derives
// the same salt.
func orderedAddrs(a, b string) []byte {
	if a > b {
		a, b = b, a
	}
	out := make([]byte, 0, len(a)+len(b)+1)
	out = append(out, a...)
	out = append(out, 0)
	out = append(out, b...)
	return out
}

// PasswordPMK derives the PMK for a password method.
func PasswordPMK(password string, addrA, addrB string) []byte {
	salt := append([]byte("P2P2 PMK"), orderedAddrs(addrA, addrB)...)
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, PMKSize, sha256.New)
}

// OpportunisticPMK derives the PMK of an opportunistic pairing from the
// exchanged nonces.
func OpportunisticPMK(nonceI, nonceR []byte) ([]byte, error) {
	return expand(append(append([]byte{}, nonceI...), nonceR...), nil, "P2P2 opportunistic PMK", PMKSize)
}

// DeriveKCK expands the key confirmation key for one handshake.
func DeriveKCK(pmk, nonceI, nonceR []byte, initiator, responder string) ([]byte, error) {
	salt := append(append([]byte{}, nonceI...), nonceR...)
	info := "P2P2 KCK " + initiator + " " + responder
	return expand(pmk, salt, info, KCKSize)
}

func expand(secret, salt []byte, info string, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MIC computes the confirmation code for one direction.
func MIC(kck []byte, label string, nonceI, nonceR []byte) []byte {
	mac := hmac.New(sha256.New, kck)
	mac.Write([]byte(label))
	mac.Write(nonceI)
	mac.Write(nonceR)
	return mac.Sum(nil)
}

// VerifyMIC checks a confirmation code in constant time.
func VerifyMIC(kck []byte, label string, nonceI, nonceR, mic []byte) error {
	if !hmac.Equal(mic, MIC(kck, label, nonceI, nonceR)) {
		return ErrAuthenticationFailed
	}
	return nil
}
