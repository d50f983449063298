package securechannel

import (
	"io"

	"golang.org/x/crypto/curve25519"
)

// ChipSession is the chip-side (responder) secure channel state.
type ChipSession struct {
	session
}

// NewChipSession creates an unestablished chip session. A nil random reader
// falls back to crypto/rand.
func NewChipSession(random io.Reader) *ChipSession {
	return &ChipSession{session: newSession(random)}
}

// ProcessHandshakeRequest runs the responder side of the handshake: it
// generates the chip's ephemeral key pair, computes the three shared secrets
// against the host's keys and derives the transport keys. It returns the
// chip's ephemeral public key and the authentication tag the host verifies.
//
// On success the session is established.
func (s *ChipSession) ProcessHandshakeRequest(stPriv, shPub []byte, slot uint8, ehPub []byte) (etPub, tag []byte, err error) {
	etPriv, etPub, err := s.generateKeyPair()
	if err != nil {
		return nil, nil, ErrHandshakeFailed
	}
	stPub, err := curve25519.X25519(stPriv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, ErrHandshakeFailed
	}

	dhEhEt, err1 := curve25519.X25519(etPriv, ehPub)
	dhShEt, err2 := curve25519.X25519(etPriv, shPub)
	dhEhSt, err3 := curve25519.X25519(stPriv, ehPub)
	zeroize(etPriv)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, nil, ErrHandshakeFailed
	}

	tag, err = s.deriveKeys(slot, shPub, stPub, ehPub, etPub, dhEhEt, dhShEt, dhEhSt)
	if err != nil {
		return nil, nil, ErrHandshakeFailed
	}
	return etPub, tag, nil
}

// DecryptCommand opens a sealed command packet under the host-to-chip key.
// Any authentication failure invalidates the whole session and yields
// ErrAuthFailed, with no distinction between length and tag problems.
func (s *ChipSession) DecryptCommand(sealed []byte) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNoSession
	}
	if err := s.checkNonceSync(); err != nil {
		return nil, err
	}
	n := s.nonceCmd
	s.nonceCmd++
	plaintext, err := open(s.kCmd, n, sealed)
	if err != nil {
		s.reset()
		return nil, ErrAuthFailed
	}
	if s.nonceCmd > maxNonce {
		s.reset()
	}
	return plaintext, nil
}

// EncryptResult seals a result packet under the chip-to-host key.
func (s *ChipSession) EncryptResult(plaintext []byte) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNoSession
	}
	n := s.nonceResp
	s.nonceResp++
	sealed, err := seal(s.kResp, n, plaintext)
	if err != nil {
		return nil, err
	}
	if s.nonceResp > maxNonce {
		s.reset()
		return sealed, nil
	}
	if err := s.checkNonceSync(); err != nil {
		return nil, err
	}
	return sealed, nil
}

// Invalidate zeroizes all derived key material and returns the session to
// the unestablished state.
func (s *ChipSession) Invalidate() {
	s.reset()
}
