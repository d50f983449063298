package message

import (
	"fmt"

	"github.com/backkem/tropic01/pkg/wire"
)

// L2 frame wire format:
//
//	request:  REQ_ID (1) | REQ_LEN (1) | DATA (REQ_LEN) | CRC (2)
//	response: STATUS (1) | RSP_LEN (1) | DATA (RSP_LEN) | CRC (2)
//
// The CRC is computed over every preceding byte of the frame.

// EncodeRequest serializes a request message into a complete L2 frame.
func EncodeRequest(c *wire.Codec, m *Message) ([]byte, error) {
	payload, err := m.AppendPayload(c, nil)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFrameDataLen {
		return nil, fmt.Errorf("%w: %d byte payload", ErrMalformedMessage, len(payload))
	}
	frame := make([]byte, 0, len(payload)+frameOverhead)
	frame = append(frame, m.Shape.ID, byte(len(payload)))
	frame = append(frame, payload...)
	return appendCRC(c, frame), nil
}

// EncodeResponse serializes a response message into a complete L2 frame with
// the given status. A nil message produces a data-less frame.
func EncodeResponse(c *wire.Codec, status Status, m *Message) ([]byte, error) {
	var payload []byte
	if m != nil {
		var err error
		if payload, err = m.AppendPayload(c, nil); err != nil {
			return nil, err
		}
	}
	if len(payload) > MaxFrameDataLen {
		return nil, fmt.Errorf("%w: %d byte payload", ErrMalformedMessage, len(payload))
	}
	frame := make([]byte, 0, len(payload)+frameOverhead)
	frame = append(frame, byte(status), byte(len(payload)))
	frame = append(frame, payload...)
	return appendCRC(c, frame), nil
}

// EncodeStatus builds a data-less response frame carrying only a status.
func EncodeStatus(c *wire.Codec, status Status) []byte {
	frame, _ := EncodeResponse(c, status, nil)
	return frame
}

func appendCRC(c *wire.Codec, frame []byte) []byte {
	crc := CRC16(frame)
	frame, _ = c.AppendUint(frame, wire.U16, uint64(crc))
	return frame
}

// VerifyCRC recomputes the checksum over the frame body and compares it with
// the trailing CRC field.
func VerifyCRC(c *wire.Codec, raw []byte) bool {
	if len(raw) < frameOverhead {
		return false
	}
	body, trailer := raw[:len(raw)-2], raw[len(raw)-2:]
	got, err := c.Uint(trailer, wire.U16)
	if err != nil {
		return false
	}
	return uint16(got) == CRC16(body)
}

// FrameID returns the leading id/status byte of a raw frame.
func FrameID(raw []byte) (uint8, error) {
	if len(raw) < frameOverhead {
		return 0, ErrFrameTooShort
	}
	return raw[0], nil
}

// FramePayload extracts the DATA span of a raw frame, validating the LENGTH
// field against the actual frame size.
func FramePayload(raw []byte) ([]byte, error) {
	if len(raw) < frameOverhead {
		return nil, ErrFrameTooShort
	}
	n := int(raw[1])
	if len(raw) != n+frameOverhead {
		return nil, fmt.Errorf("%w: LENGTH %d in a %d byte frame", ErrLengthMismatch, n, len(raw))
	}
	return raw[2 : 2+n], nil
}

// DecodeRequest resolves a raw request frame against the registry and decodes
// its payload. The CRC is not verified here; callers check it first so a
// checksum failure is reported ahead of shape errors.
func DecodeRequest(c *wire.Codec, reg *Registry, raw []byte) (*Message, error) {
	id, err := FrameID(raw)
	if err != nil {
		return nil, err
	}
	shape, err := reg.Lookup(LayerRequest, id)
	if err != nil {
		return nil, err
	}
	payload, err := FramePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Decode(c, shape, payload)
}

// ParseResponse splits a raw response frame into status and payload,
// verifying size contract and CRC.
func ParseResponse(c *wire.Codec, raw []byte) (Status, []byte, error) {
	if !VerifyCRC(c, raw) {
		return 0, nil, fmt.Errorf("%w: response CRC", ErrMalformedMessage)
	}
	payload, err := FramePayload(raw)
	if err != nil {
		return 0, nil, err
	}
	return Status(raw[0]), payload, nil
}
