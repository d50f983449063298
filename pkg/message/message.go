package message

import (
	"fmt"

	"github.com/backkem/tropic01/pkg/wire"
)

// Message is one decoded or under-construction message: a shape plus a value
// per field. Messages are built immediately before encoding or immediately
// after parsing and are not retained.
type Message struct {
	Shape *Shape

	vals [][]uint64 // parallel to Shape.Fields
}

// New creates a message with every field at its default (zero, minimum
// element count).
func New(s *Shape) *Message {
	m := &Message{Shape: s, vals: make([][]uint64, len(s.Fields))}
	for i, f := range s.Fields {
		m.vals[i] = make([]uint64, f.Min)
	}
	return m
}

// mustIndex resolves a field name. Field names are static catalog constants,
// so an unknown name is a programming error, not input-dependent.
func (m *Message) mustIndex(name string) int {
	i := m.Shape.fieldIndex(name)
	if i < 0 {
		panic(fmt.Errorf("%w: %q in shape %s", ErrUnknownField, name, m.Shape.Name))
	}
	return i
}

// SetUint sets a scalar field value. Range checking happens at encode time.
func (m *Message) SetUint(name string, v uint64) *Message {
	m.vals[m.mustIndex(name)] = []uint64{v}
	return m
}

// SetBytes sets a u8 array field from raw bytes.
func (m *Message) SetBytes(name string, b []byte) *Message {
	elems := make([]uint64, len(b))
	for i, v := range b {
		elems[i] = uint64(v)
	}
	m.vals[m.mustIndex(name)] = elems
	return m
}

// SetElems sets an array field's elements.
func (m *Message) SetElems(name string, elems []uint64) *Message {
	m.vals[m.mustIndex(name)] = elems
	return m
}

// Uint returns the first element of a field, or 0 if the field is empty.
func (m *Message) Uint(name string) uint64 {
	v := m.vals[m.mustIndex(name)]
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Bytes returns a u8 array field as a byte slice.
func (m *Message) Bytes(name string) []byte {
	v := m.vals[m.mustIndex(name)]
	b := make([]byte, len(v))
	for i, e := range v {
		b[i] = byte(e)
	}
	return b
}

// Elems returns a field's raw element values.
func (m *Message) Elems(name string) []uint64 {
	return m.vals[m.mustIndex(name)]
}

// AppendPayload serializes the message fields in shape order, applying the
// per-field padding and size bounds.
func (m *Message) AppendPayload(c *wire.Codec, dst []byte) ([]byte, error) {
	var err error
	for i, f := range m.Shape.Fields {
		min := f.Min
		if !f.Variable() {
			min = f.Max
		}
		if dst, err = c.AppendElems(dst, f.Dtype, m.vals[i], min, f.Max); err != nil {
			return dst, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return dst, nil
}

// Decode parses a payload span into a message according to the shape.
// Fixed-size fields consume their declared span; the variable-size field (if
// any) consumes the remainder. Any size violation maps to
// ErrMalformedMessage.
func Decode(c *wire.Codec, s *Shape, payload []byte) (*Message, error) {
	if len(payload) < s.MinBytes() || len(payload) > s.MaxBytes() {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, want %d..%d",
			ErrMalformedMessage, s.Name, len(payload), s.MinBytes(), s.MaxBytes())
	}

	varBytes := 0
	if s.varIndex >= 0 {
		fixed := 0
		for i, f := range s.Fields {
			if i != s.varIndex {
				fixed += f.MinBytes()
			}
		}
		varBytes = len(payload) - fixed
	}

	m := &Message{Shape: s, vals: make([][]uint64, len(s.Fields))}
	off := 0
	for i, f := range s.Fields {
		span := f.MinBytes()
		if i == s.varIndex {
			span = varBytes
		}
		if off+span > len(payload) {
			return nil, fmt.Errorf("%w: %s field %q overruns payload",
				ErrMalformedMessage, s.Name, f.Name)
		}
		elems, err := c.Elems(payload[off:off+span], f.Dtype, f.Min, f.Max)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %q: %v",
				ErrMalformedMessage, s.Name, f.Name, err)
		}
		m.vals[i] = elems
		off += span
	}
	if off != len(payload) {
		return nil, fmt.Errorf("%w: %s has %d trailing bytes",
			ErrMalformedMessage, s.Name, len(payload)-off)
	}
	return m, nil
}
