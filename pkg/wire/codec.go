// Package wire converts typed field values to and from their byte
// representation. It is the lowest layer of the protocol stack: pure
// transformations, no I/O and no knowledge of message shapes.
package wire

import (
	"encoding/binary"
	"errors"
)

// Errors returned by the codec.
var (
	// ErrValueOutOfRange is returned when a scalar does not fit the
	// declared integer width.
	ErrValueOutOfRange = errors.New("wire: value out of range for dtype")

	// ErrTooManyElements is returned when an input collection exceeds the
	// declared maximum element count.
	ErrTooManyElements = errors.New("wire: too many elements")

	// ErrShortBuffer is returned when decoding from fewer bytes than the
	// dtype requires.
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrOddLength is returned when a byte span does not divide evenly
	// into the dtype's element width.
	ErrOddLength = errors.New("wire: length not a multiple of element width")
)

// Dtype identifies the integer width of a field element.
type Dtype uint8

// Supported element types.
const (
	U8 Dtype = iota
	U16
	U32
	U64
)

// Width returns the element size in bytes.
func (d Dtype) Width() int {
	switch d {
	case U8:
		return 1
	case U16:
		return 2
	case U32:
		return 4
	case U64:
		return 8
	default:
		return 0
	}
}

// Max returns the largest value an element of this dtype can hold.
func (d Dtype) Max() uint64 {
	switch d {
	case U8:
		return 1<<8 - 1
	case U16:
		return 1<<16 - 1
	case U32:
		return 1<<32 - 1
	default:
		return 1<<64 - 1
	}
}

// String returns the dtype name.
func (d Dtype) String() string {
	switch d {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	default:
		return "unknown"
	}
}

// Codec serializes field elements in a fixed byte order. The byte order is
// chosen once per protocol instance, not per message.
type Codec struct {
	order binary.ByteOrder
}

// NewCodec creates a codec with the given byte order.
func NewCodec(order binary.ByteOrder) *Codec {
	return &Codec{order: order}
}

// Default is the codec used by the chip protocol (little-endian).
var Default = NewCodec(binary.LittleEndian)

// Order returns the codec's byte order.
func (c *Codec) Order() binary.ByteOrder {
	return c.order
}

// AppendUint appends one element of the given dtype to dst.
// Returns ErrValueOutOfRange if v does not fit the dtype.
func (c *Codec) AppendUint(dst []byte, d Dtype, v uint64) ([]byte, error) {
	if v > d.Max() {
		return dst, ErrValueOutOfRange
	}
	var buf [8]byte
	switch d {
	case U8:
		dst = append(dst, byte(v))
	case U16:
		c.order.PutUint16(buf[:2], uint16(v))
		dst = append(dst, buf[:2]...)
	case U32:
		c.order.PutUint32(buf[:4], uint32(v))
		dst = append(dst, buf[:4]...)
	case U64:
		c.order.PutUint64(buf[:8], v)
		dst = append(dst, buf[:8]...)
	}
	return dst, nil
}

// Uint decodes one element of the given dtype from the front of src.
func (c *Codec) Uint(src []byte, d Dtype) (uint64, error) {
	if len(src) < d.Width() {
		return 0, ErrShortBuffer
	}
	switch d {
	case U8:
		return uint64(src[0]), nil
	case U16:
		return uint64(c.order.Uint16(src)), nil
	case U32:
		return uint64(c.order.Uint32(src)), nil
	default:
		return c.order.Uint64(src), nil
	}
}

// AppendElems appends a bounded element sequence to dst. Sequences shorter
// than min are zero-padded up to min; sequences longer than max fail with
// ErrTooManyElements before any byte is written.
func (c *Codec) AppendElems(dst []byte, d Dtype, elems []uint64, min, max int) ([]byte, error) {
	if len(elems) > max {
		return dst, ErrTooManyElements
	}
	var err error
	for _, v := range elems {
		if dst, err = c.AppendUint(dst, d, v); err != nil {
			return dst, err
		}
	}
	for i := len(elems); i < min; i++ {
		dst, _ = c.AppendUint(dst, d, 0)
	}
	return dst, nil
}

// Elems decodes the whole of src as a sequence of dtype elements.
// The span must divide evenly into the element width and hold between min
// and max elements.
func (c *Codec) Elems(src []byte, d Dtype, min, max int) ([]uint64, error) {
	w := d.Width()
	if len(src)%w != 0 {
		return nil, ErrOddLength
	}
	n := len(src) / w
	if n > max {
		return nil, ErrTooManyElements
	}
	if n < min {
		return nil, ErrShortBuffer
	}
	elems := make([]uint64, n)
	for i := range elems {
		v, err := c.Uint(src[i*w:], d)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return elems, nil
}
