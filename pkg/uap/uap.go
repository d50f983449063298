// Package uap implements the user access privilege check gating privileged
// commands: each UAP configuration register carries one permission bit per
// pairing key slot.
package uap

import "errors"

// NumSlots is the number of pairing key slots.
const NumSlots = 4

var (
	// ErrUnauthorized is returned when the active slot's permission bit
	// is clear in the consulted register.
	ErrUnauthorized = errors.New("uap: pairing key slot not authorized")

	// ErrNotPaired is returned when no slot is active, meaning the check
	// ran before a handshake completed. That is a sequencing bug in the
	// caller, not a denial.
	ErrNotPaired = errors.New("uap: no active pairing key slot")
)

// NoSlot is the active-slot sentinel while no session is established.
const NoSlot = -1

// Check verifies that the pairing key slot's bit is set in the effective
// value of a UAP register. Slot indices map to bit positions directly.
func Check(effective uint32, slot int) error {
	if slot < 0 || slot >= NumSlots {
		return ErrNotPaired
	}
	if effective&(1<<slot) == 0 {
		return ErrUnauthorized
	}
	return nil
}
