package message

import (
	"fmt"

	"github.com/backkem/tropic01/pkg/wire"
)

// L3 packet wire format, carried encrypted inside Encrypted_Cmd_Req/Rsp
// frames:
//
//	SIZE (2, little-endian) | CIPHERTEXT (SIZE) | TAG (16)
//
// The plaintext under CIPHERTEXT is CMD_ID (1) | CMD_DATA for commands and
// RESULT (1) | RES_DATA for results.

// EncodeCommand serializes a command message into an L3 plaintext.
func EncodeCommand(c *wire.Codec, m *Message) ([]byte, error) {
	payload, err := m.AppendPayload(c, []byte{m.Shape.ID})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// DecodeCommand resolves an L3 command plaintext against the registry. The
// leading byte selects the command shape.
func DecodeCommand(c *wire.Codec, reg *Registry, plain []byte) (*Message, error) {
	if len(plain) < 1 {
		return nil, fmt.Errorf("%w: empty command packet", ErrMalformedMessage)
	}
	shape, err := reg.Lookup(LayerCommand, plain[0])
	if err != nil {
		return nil, err
	}
	return Decode(c, shape, plain[1:])
}

// EncodeResult serializes a result message into an L3 plaintext with the
// given result code. A nil message yields a bare result byte.
func EncodeResult(c *wire.Codec, result Result, m *Message) ([]byte, error) {
	plain := []byte{byte(result)}
	if m == nil {
		return plain, nil
	}
	return m.AppendPayload(c, plain)
}

// ParseResult splits an L3 result plaintext into result code and data.
func ParseResult(plain []byte) (Result, []byte, error) {
	if len(plain) < 1 {
		return 0, nil, fmt.Errorf("%w: empty result packet", ErrMalformedMessage)
	}
	return Result(plain[0]), plain[1:], nil
}

// EncryptedPacket is the SIZE-prefixed ciphertext+tag container exchanged in
// Encrypted_Cmd frames, possibly split across several chunks.
type EncryptedPacket struct {
	Ciphertext []byte
	Tag        []byte
}

// EncodeEncrypted prefixes sealed ciphertext+tag output with its SIZE field.
// sealed is ciphertext followed by the 16-byte tag, as produced by GCM.
func EncodeEncrypted(c *wire.Codec, sealed []byte) ([]byte, error) {
	if len(sealed) < TagSize {
		return nil, fmt.Errorf("%w: sealed packet shorter than a tag", ErrMalformedMessage)
	}
	ctLen := len(sealed) - TagSize
	out, err := c.AppendUint(nil, wire.U16, uint64(ctLen))
	if err != nil {
		return nil, err
	}
	return append(out, sealed...), nil
}

// ParseEncrypted validates and splits a reassembled encrypted packet.
func ParseEncrypted(c *wire.Codec, raw []byte) (*EncryptedPacket, error) {
	if len(raw) < 2+TagSize {
		return nil, fmt.Errorf("%w: %d byte encrypted packet", ErrMalformedMessage, len(raw))
	}
	size, err := c.Uint(raw[:2], wire.U16)
	if err != nil {
		return nil, err
	}
	if len(raw) != 2+int(size)+TagSize {
		return nil, fmt.Errorf("%w: SIZE %d in a %d byte packet", ErrLengthMismatch, size, len(raw))
	}
	return &EncryptedPacket{
		Ciphertext: raw[2 : 2+size],
		Tag:        raw[2+size:],
	}, nil
}

// Sealed returns ciphertext followed by tag, the layout GCM open expects.
func (p *EncryptedPacket) Sealed() []byte {
	out := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	out = append(out, p.Ciphertext...)
	return append(out, p.Tag...)
}

// EncryptedTotalLen reads the SIZE field from the first chunk of an encrypted
// packet and returns the full packet length, so a receiver knows when the
// last chunk has arrived.
func EncryptedTotalLen(c *wire.Codec, first []byte) (int, error) {
	if len(first) < 2 {
		return 0, fmt.Errorf("%w: first chunk carries no SIZE field", ErrMalformedMessage)
	}
	size, err := c.Uint(first[:2], wire.U16)
	if err != nil {
		return 0, err
	}
	return 2 + int(size) + TagSize, nil
}

// Chunks splits a serialized packet into transmission chunks.
func Chunks(raw []byte) [][]byte {
	if len(raw) == 0 {
		return nil
	}
	var out [][]byte
	for len(raw) > ChunkSize {
		out = append(out, raw[:ChunkSize])
		raw = raw[ChunkSize:]
	}
	return append(out, raw)
}
