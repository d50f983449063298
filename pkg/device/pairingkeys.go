package device

import (
	"errors"

	"github.com/backkem/tropic01/pkg/uap"
)

// PairingKeyLen is the byte length of a stored pairing public key.
const PairingKeyLen = 32

var (
	// ErrSlotBlank is returned when reading or invalidating a slot that
	// was never written.
	ErrSlotBlank = errors.New("device: pairing key slot is blank")

	// ErrSlotWritten is returned when writing a slot that already holds
	// a key.
	ErrSlotWritten = errors.New("device: pairing key slot already written")

	// ErrSlotInvalid is returned when using a slot that was explicitly
	// invalidated.
	ErrSlotInvalid = errors.New("device: pairing key slot invalidated")

	// ErrBadSlotIndex is returned for a slot index outside 0..3.
	ErrBadSlotIndex = errors.New("device: pairing key slot index out of range")

	// ErrBadKeyLen is returned when a pairing key is not 32 bytes.
	ErrBadKeyLen = errors.New("device: bad pairing key length")
)

// SlotState is the lifecycle state of one pairing key slot.
type SlotState uint8

const (
	// SlotBlank means the slot was never written.
	SlotBlank SlotState = iota

	// SlotWritten means the slot holds a usable key.
	SlotWritten

	// SlotInvalid means the slot was explicitly invalidated and can
	// never be used again.
	SlotInvalid
)

// String returns the state name used in snapshots.
func (s SlotState) String() string {
	switch s {
	case SlotBlank:
		return "blank"
	case SlotWritten:
		return "written"
	case SlotInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// slotStateByName resolves a snapshot state name.
func slotStateByName(name string) (SlotState, bool) {
	switch name {
	case "blank":
		return SlotBlank, true
	case "written":
		return SlotWritten, true
	case "invalid":
		return SlotInvalid, true
	default:
		return 0, false
	}
}

// PairingKeySlot is one of the four host public key slots. A blank slot can
// be written once; a written slot can only be invalidated; an invalidated
// slot is dead.
type PairingKeySlot struct {
	state SlotState
	value [PairingKeyLen]byte
}

// State returns the slot's lifecycle state.
func (s *PairingKeySlot) State() SlotState {
	return s.state
}

// Valid reports whether the slot holds a usable key.
func (s *PairingKeySlot) Valid() bool {
	return s.state == SlotWritten
}

// Write stores a key into a blank slot.
func (s *PairingKeySlot) Write(key []byte) error {
	if len(key) != PairingKeyLen {
		return ErrBadKeyLen
	}
	switch s.state {
	case SlotInvalid:
		return ErrSlotInvalid
	case SlotWritten:
		return ErrSlotWritten
	}
	copy(s.value[:], key)
	s.state = SlotWritten
	return nil
}

// Read returns the stored key of a written slot.
func (s *PairingKeySlot) Read() ([]byte, error) {
	switch s.state {
	case SlotBlank:
		return nil, ErrSlotBlank
	case SlotInvalid:
		return nil, ErrSlotInvalid
	}
	out := make([]byte, PairingKeyLen)
	copy(out, s.value[:])
	return out, nil
}

// Invalidate kills a written slot. Blank slots cannot be invalidated.
func (s *PairingKeySlot) Invalidate() error {
	if s.state == SlotBlank {
		return ErrSlotBlank
	}
	s.state = SlotInvalid
	return nil
}

// PairingKeys is the bank of four pairing key slots.
type PairingKeys struct {
	slots [uap.NumSlots]PairingKeySlot
}

// NewPairingKeys creates a bank of blank slots.
func NewPairingKeys() *PairingKeys {
	return &PairingKeys{}
}

// Slot returns the slot at index.
func (p *PairingKeys) Slot(index int) (*PairingKeySlot, error) {
	if index < 0 || index >= uap.NumSlots {
		return nil, ErrBadSlotIndex
	}
	return &p.slots[index], nil
}
