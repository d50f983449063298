package config

// Bank pairs the irreversible and reversible configuration copies and caches
// their bitwise AND, the effective configuration.
//
// The irreversible copy is populated once from a snapshot at construction
// and never mutated afterwards; all field writes target the reversible copy.
type Bank struct {
	irr *Object
	rev *Object

	// Effective values, computed on first read and dropped on write or
	// cache invalidation.
	cache map[uint16]uint32
}

// NewBank creates a bank around the given copies. Nil copies start fully
// erased.
func NewBank(irreversible, reversible *Object) *Bank {
	if irreversible == nil {
		irreversible = NewObject()
	}
	if reversible == nil {
		reversible = NewObject()
	}
	return &Bank{
		irr:   irreversible,
		rev:   reversible,
		cache: make(map[uint16]uint32),
	}
}

// Read returns the effective value at addr, irreversible AND reversible,
// cached until the register is written or the cache is invalidated.
func (b *Bank) Read(addr uint16) (uint32, error) {
	if v, ok := b.cache[addr]; ok {
		return v, nil
	}
	iv, err := b.irr.Read(addr)
	if err != nil {
		return 0, err
	}
	rv, err := b.rev.Read(addr)
	if err != nil {
		return 0, err
	}
	v := iv & rv
	b.cache[addr] = v
	return v, nil
}

// Write stores a whole word into the reversible copy. The register must
// still be erased.
func (b *Bank) Write(addr uint16, value uint32) error {
	if err := b.rev.Write(addr, value); err != nil {
		return err
	}
	delete(b.cache, addr)
	return nil
}

// WriteClearBit clears one bit of the reversible copy. A failed write has no
// effect on the register or the cache.
func (b *Bank) WriteClearBit(addr uint16, bit int) error {
	if err := b.rev.WriteClearBit(addr, bit); err != nil {
		return err
	}
	delete(b.cache, addr)
	return nil
}

// ReadReversible returns the raw reversible word at addr.
func (b *Bank) ReadReversible(addr uint16) (uint32, error) {
	return b.rev.Read(addr)
}

// Erase resets the whole reversible copy to erased.
func (b *Bank) Erase() {
	b.rev.Erase()
	b.InvalidateCache()
}

// InvalidateCache drops all cached effective values. Called on power-off so
// the next power cycle recomputes the configuration.
func (b *Bank) InvalidateCache() {
	b.cache = make(map[uint16]uint32)
}

// SnapshotIrreversible dumps the irreversible copy's known registers.
func (b *Bank) SnapshotIrreversible() map[string]uint32 {
	return snapshot(b.irr)
}

// SnapshotReversible dumps the reversible copy's known registers.
func (b *Bank) SnapshotReversible() map[string]uint32 {
	return snapshot(b.rev)
}

func snapshot(o *Object) map[string]uint32 {
	out := make(map[string]uint32, len(registerNames))
	for _, r := range Registers() {
		v, _ := o.Read(uint16(r))
		out[r.String()] = v
	}
	return out
}

// LoadObject builds a configuration object from a snapshot keyed by register
// name. Unknown names are rejected.
func LoadObject(values map[string]uint32) (*Object, error) {
	o := NewObject()
	for name, v := range values {
		r, ok := ByName(name)
		if !ok {
			return nil, ErrInvalidAddress
		}
		if err := o.Store(uint16(r), v); err != nil {
			return nil, err
		}
	}
	return o, nil
}
