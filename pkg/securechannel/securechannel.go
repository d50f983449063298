// Package securechannel implements the authenticated encrypted session
// between a host and the chip: a Noise KK1 pattern over X25519 with
// AES-256-GCM transport keys, one key per direction.
//
// ChipSession is the responder side owned by the device model, HostSession
// the initiator side used by the host driver. Both derive the same key
// material from the handshake transcript and keep per-direction nonce
// counters that advance in lockstep.
package securechannel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// protocolName is the Noise protocol identifier, NUL-padded to 32 bytes. It
// seeds both the transcript hash and the key derivation chain.
const protocolName = "Noise_KK1_25519_AESGCM_SHA256\x00\x00\x00"

const (
	// KeyLen is the byte length of X25519 keys and derived AES keys.
	KeyLen = 32

	// TagLen is the GCM authentication tag length.
	TagLen = 16

	nonceLen = 12
	maxNonce = 1<<32 - 1
)

// hkdfPair derives two 32-byte outputs from salt and input keying material,
// one HKDF-SHA256 extract-and-expand with empty info.
func hkdfPair(salt, ikm []byte) (out1, out2 []byte) {
	r := hkdf.New(sha256.New, ikm, salt, nil)
	out1 = make([]byte, sha256.Size)
	out2 = make([]byte, sha256.Size)
	io.ReadFull(r, out1)
	io.ReadFull(r, out2)
	return out1, out2
}

// session holds the state shared by both sides of the channel.
type session struct {
	rand io.Reader

	kCmd  []byte // host to chip
	kResp []byte // chip to host

	// Nonce counters, -1 while unestablished.
	nonceCmd  int64
	nonceResp int64

	handshakeHash []byte
}

func newSession(random io.Reader) session {
	if random == nil {
		random = rand.Reader
	}
	s := session{rand: random}
	s.reset()
	return s
}

// reset zeroizes the derived keys and returns to the unestablished state.
func (s *session) reset() {
	zeroize(s.kCmd)
	zeroize(s.kResp)
	s.kCmd = nil
	s.kResp = nil
	s.nonceCmd = -1
	s.nonceResp = -1
	s.handshakeHash = nil
}

// Established reports whether a handshake has completed and the transport
// keys are live.
func (s *session) Established() bool {
	return s.nonceCmd >= 0
}

// checkNonceSync verifies the two directional counters agree, which must
// hold at the start and end of every command/result pair.
func (s *session) checkNonceSync() error {
	if s.nonceCmd != s.nonceResp {
		s.reset()
		return ErrNonceDesync
	}
	return nil
}

// deriveKeys runs the handshake transcript and key schedule common to both
// sides and returns the chip's authentication tag.
//
// The transcript chains the protocol name, both static public keys, the
// host's ephemeral key, the pairing slot byte and the chip's ephemeral key.
// The key chain mixes the three Diffie-Hellman secrets in fixed order; the
// final expansion yields the two directional transport keys.
func (s *session) deriveKeys(slot uint8, shPub, stPub, ehPub, etPub, dhEhEt, dhShEt, dhEhSt []byte) ([]byte, error) {
	h := sha256.Sum256([]byte(protocolName))
	h = sha256.Sum256(append(h[:], shPub...))
	h = sha256.Sum256(append(h[:], stPub...))
	h = sha256.Sum256(append(h[:], ehPub...))
	h = sha256.Sum256(append(h[:], slot))
	h = sha256.Sum256(append(h[:], etPub...))
	s.handshakeHash = h[:]

	ck, _ := hkdfPair([]byte(protocolName), dhEhEt)
	ck, _ = hkdfPair(ck, dhShEt)
	ck, kAuth := hkdfPair(ck, dhEhSt)
	s.kCmd, s.kResp = hkdfPair(ck, nil)
	s.nonceCmd = 0
	s.nonceResp = 0

	// The tag proves possession of the static private key: a GCM seal of
	// the empty plaintext under the authentication key, bound to the
	// handshake transcript.
	aead, err := newGCM(kAuth)
	if err != nil {
		s.reset()
		return nil, err
	}
	return aead.Seal(nil, make([]byte, nonceLen), nil, s.handshakeHash), nil
}

// seal encrypts plaintext under key with counter n as nonce.
func seal(key []byte, n int64, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonceBytes(n), plaintext, nil), nil
}

// open decrypts ciphertext under key with counter n as nonce.
func open(key []byte, n int64, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonceBytes(n), ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// nonceBytes encodes a counter as the 12-byte little-endian GCM nonce.
func nonceBytes(n int64) []byte {
	var buf [nonceLen]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(n))
	return buf[:]
}

// generateKeyPair creates a fresh X25519 key pair from the session's
// randomness source.
func (s *session) generateKeyPair() (priv, pub []byte, err error) {
	priv = make([]byte, KeyLen)
	if _, err := io.ReadFull(s.rand, priv); err != nil {
		return nil, nil, err
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
