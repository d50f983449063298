// Package remote exposes a chip model over a TCP control connection, one
// message per chip operation, so hosts and test benches can drive a model
// running in another process.
package remote

import (
	"errors"
	"fmt"
	"io"

	"github.com/backkem/tropic01/pkg/wire"
)

// Tag identifies one control message kind.
type Tag uint8

// Control message tags.
const (
	TagCSNLow   Tag = 0x01
	TagCSNHigh  Tag = 0x02
	TagSPISend  Tag = 0x03
	TagPowerOn  Tag = 0x04
	TagPowerOff Tag = 0x05
	TagWait     Tag = 0x06

	TagResetTarget Tag = 0x10

	// TagException reports a failure while executing the operation.
	TagException Tag = 0xF0
	// TagInvalid reports a tag outside the enumeration.
	TagInvalid Tag = 0xFD
	// TagUnsupported reports a known tag the server does not serve.
	TagUnsupported Tag = 0xFE
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagCSNLow:
		return "SPI_DRIVE_CSN_LOW"
	case TagCSNHigh:
		return "SPI_DRIVE_CSN_HIGH"
	case TagSPISend:
		return "SPI_SEND"
	case TagPowerOn:
		return "POWER_ON"
	case TagPowerOff:
		return "POWER_OFF"
	case TagWait:
		return "WAIT"
	case TagResetTarget:
		return "RESET_TARGET"
	case TagException:
		return "EXCEPTION"
	case TagInvalid:
		return "INVALID"
	case TagUnsupported:
		return "UNSUPPORTED"
	default:
		return fmt.Sprintf("0x%02x", uint8(t))
	}
}

// Wire format: TAG (1) | LENGTH (2, little-endian) | PAYLOAD (LENGTH).
const (
	headerLen  = 3
	maxPayload = 1<<16 - 1
)

// ErrPayloadTooLong is returned when a payload exceeds the length field.
var ErrPayloadTooLong = errors.New("remote: payload too long")

func writeMessage(w io.Writer, tag Tag, payload []byte) error {
	if len(payload) > maxPayload {
		return ErrPayloadTooLong
	}
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, byte(tag))
	buf, err := wire.Default.AppendUint(buf, wire.U16, uint64(len(payload)))
	if err != nil {
		return err
	}
	buf = append(buf, payload...)
	_, err = w.Write(buf)
	return err
}

func readMessage(r io.Reader) (Tag, []byte, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	length, err := wire.Default.Uint(header[1:], wire.U16)
	if err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return Tag(header[0]), nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return Tag(header[0]), payload, nil
}
