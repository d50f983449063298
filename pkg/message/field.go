package message

import "github.com/backkem/tropic01/pkg/wire"

// FieldSpec declares one field of a message shape: an element type and a
// bounded element count. A field with Min == Max is fixed-size; otherwise it
// is variable-size and consumes the remaining span of the payload.
type FieldSpec struct {
	Name  string
	Dtype wire.Dtype
	Min   int // minimum element count
	Max   int // maximum element count
}

// Variable reports whether the field holds a variable number of elements.
func (f FieldSpec) Variable() bool {
	return f.Min != f.Max
}

// MinBytes returns the smallest serialized size of the field.
func (f FieldSpec) MinBytes() int {
	return f.Min * f.Dtype.Width()
}

// MaxBytes returns the largest serialized size of the field.
func (f FieldSpec) MaxBytes() int {
	return f.Max * f.Dtype.Width()
}

// U8Field declares a single unsigned byte field.
func U8Field(name string) FieldSpec {
	return FieldSpec{Name: name, Dtype: wire.U8, Min: 1, Max: 1}
}

// U16Field declares a single u16 field.
func U16Field(name string) FieldSpec {
	return FieldSpec{Name: name, Dtype: wire.U16, Min: 1, Max: 1}
}

// U32Field declares a single u32 field.
func U32Field(name string) FieldSpec {
	return FieldSpec{Name: name, Dtype: wire.U32, Min: 1, Max: 1}
}

// U8Array declares a fixed-size byte array field.
func U8Array(name string, size int) FieldSpec {
	return FieldSpec{Name: name, Dtype: wire.U8, Min: size, Max: size}
}

// U8ArrayRange declares a variable-size byte array field.
func U8ArrayRange(name string, min, max int) FieldSpec {
	return FieldSpec{Name: name, Dtype: wire.U8, Min: min, Max: max}
}
