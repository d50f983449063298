package config

import "errors"

const (
	objectSize = 0x200
	wordSize   = 4
	numWords   = objectSize / wordSize

	// ResetValue is the content of an erased register.
	ResetValue uint32 = 0xFFFF_FFFF

	// RegisterBits is the width of one register.
	RegisterBits = 32
)

var (
	// ErrInvalidAddress is returned for an address outside the
	// configuration object space.
	ErrInvalidAddress = errors.New("config: address out of range")

	// ErrUnalignedAddress is returned for an address that is not
	// word-aligned.
	ErrUnalignedAddress = errors.New("config: address not word-aligned")

	// ErrNoFreeSpace is returned when writing a word into a register
	// that has already been written since the last erase.
	ErrNoFreeSpace = errors.New("config: register already written")

	// ErrInvalidBitIndex is returned for a bit index outside 0..31.
	ErrInvalidBitIndex = errors.New("config: bit index out of bounds")
)

// Object is one copy of the configuration address space. Registers behave
// like flash words: erased to all ones, whole-word writable only while
// erased, and bit-clearable afterwards.
type Object struct {
	words [numWords]uint32
}

// NewObject creates a fully erased configuration object.
func NewObject() *Object {
	o := &Object{}
	o.Erase()
	return o
}

// Erase resets every register to ResetValue.
func (o *Object) Erase() {
	for i := range o.words {
		o.words[i] = ResetValue
	}
}

func index(addr uint16) (int, error) {
	if int(addr) >= objectSize {
		return 0, ErrInvalidAddress
	}
	if addr%wordSize != 0 {
		return 0, ErrUnalignedAddress
	}
	return int(addr) / wordSize, nil
}

// Read returns the register word at addr.
func (o *Object) Read(addr uint16) (uint32, error) {
	i, err := index(addr)
	if err != nil {
		return 0, err
	}
	return o.words[i], nil
}

// Write stores a whole word at addr. The register must still be erased.
func (o *Object) Write(addr uint16, value uint32) error {
	i, err := index(addr)
	if err != nil {
		return err
	}
	if o.words[i] != ResetValue {
		return ErrNoFreeSpace
	}
	o.words[i] = value
	return nil
}

// Store stores a word at addr without the erased-register check. Used when
// loading a snapshot.
func (o *Object) Store(addr uint16, value uint32) error {
	i, err := index(addr)
	if err != nil {
		return err
	}
	o.words[i] = value
	return nil
}

// WriteClearBit clears one bit of the register at addr. Bits can only move
// from one to zero; an out-of-range index leaves the register untouched.
func (o *Object) WriteClearBit(addr uint16, bit int) error {
	i, err := index(addr)
	if err != nil {
		return err
	}
	if bit < 0 || bit >= RegisterBits {
		return ErrInvalidBitIndex
	}
	o.words[i] &^= 1 << bit
	return nil
}
