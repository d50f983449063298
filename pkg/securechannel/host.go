package securechannel

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/curve25519"
)

// HostSession is the host-side (initiator) secure channel state.
type HostSession struct {
	session

	// Ephemeral private key, live only between handshake request and
	// response.
	ehPriv []byte
}

// NewHostSession creates an unestablished host session. A nil random reader
// falls back to crypto/rand.
func NewHostSession(random io.Reader) *HostSession {
	return &HostSession{session: newSession(random)}
}

// CreateHandshakeRequest generates the host's ephemeral key pair and returns
// the public half to send to the chip.
func (s *HostSession) CreateHandshakeRequest() ([]byte, error) {
	priv, pub, err := s.generateKeyPair()
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	s.ehPriv = priv
	return pub, nil
}

// ProcessHandshakeResponse completes the initiator side of the handshake:
// it recomputes the three shared secrets against the chip's keys, derives
// the transport keys and verifies the chip's authentication tag.
//
// On success the session is established; any failure resets it.
func (s *HostSession) ProcessHandshakeResponse(slot uint8, stPub, shPriv, etPub, tag []byte) error {
	if s.ehPriv == nil {
		return ErrNoHandshake
	}
	ehPriv := s.ehPriv
	s.ehPriv = nil
	defer zeroize(ehPriv)

	shPub, err := curve25519.X25519(shPriv, curve25519.Basepoint)
	if err != nil {
		return ErrHandshakeFailed
	}
	ehPub, err := curve25519.X25519(ehPriv, curve25519.Basepoint)
	if err != nil {
		return ErrHandshakeFailed
	}

	dhEhEt, err1 := curve25519.X25519(ehPriv, etPub)
	dhShEt, err2 := curve25519.X25519(shPriv, etPub)
	dhEhSt, err3 := curve25519.X25519(ehPriv, stPub)
	if err1 != nil || err2 != nil || err3 != nil {
		return ErrHandshakeFailed
	}

	want, err := s.deriveKeys(slot, shPub, stPub, ehPub, etPub, dhEhEt, dhShEt, dhEhSt)
	if err != nil {
		return ErrHandshakeFailed
	}
	if subtle.ConstantTimeCompare(tag, want) != 1 {
		s.reset()
		return ErrHandshakeFailed
	}
	return nil
}

// EncryptCommand seals a command packet under the host-to-chip key.
func (s *HostSession) EncryptCommand(plaintext []byte) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNoSession
	}
	if err := s.checkNonceSync(); err != nil {
		return nil, err
	}
	n := s.nonceCmd
	s.nonceCmd++
	sealed, err := seal(s.kCmd, n, plaintext)
	if err != nil {
		return nil, err
	}
	if s.nonceCmd > maxNonce {
		s.reset()
	}
	return sealed, nil
}

// DecryptResult opens a sealed result packet under the chip-to-host key.
// An authentication failure invalidates the session.
func (s *HostSession) DecryptResult(sealed []byte) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNoSession
	}
	n := s.nonceResp
	s.nonceResp++
	plaintext, err := open(s.kResp, n, sealed)
	if err != nil {
		s.reset()
		return nil, ErrAuthFailed
	}
	if s.nonceResp > maxNonce {
		s.reset()
		return plaintext, nil
	}
	if err := s.checkNonceSync(); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// Invalidate zeroizes all derived key material and returns the session to
// the unestablished state.
func (s *HostSession) Invalidate() {
	zeroize(s.ehPriv)
	s.ehPriv = nil
	s.reset()
}
