package config

import (
	"errors"
	"testing"
)

func TestObjectWriteOnlyWhenErased(t *testing.T) {
	o := NewObject()

	if err := o.Write(uint16(CfgDebug), 0x0000_0001); err != nil {
		t.Fatalf("Write() into erased register error = %v", err)
	}
	if err := o.Write(uint16(CfgDebug), 0x0000_0002); !errors.Is(err, ErrNoFreeSpace) {
		t.Fatalf("second Write() error = %v, want ErrNoFreeSpace", err)
	}

	o.Erase()
	if v, _ := o.Read(uint16(CfgDebug)); v != ResetValue {
		t.Fatalf("Read() after erase = %#x, want %#x", v, ResetValue)
	}
	if err := o.Write(uint16(CfgDebug), 0x0000_0003); err != nil {
		t.Fatalf("Write() after erase error = %v", err)
	}
}

func TestObjectAddressValidation(t *testing.T) {
	o := NewObject()

	cases := []struct {
		name string
		addr uint16
		want error
	}{
		{"out of range", 0x200, ErrInvalidAddress},
		{"far out of range", 0xFFFC, ErrInvalidAddress},
		{"unaligned", 0x02, ErrUnalignedAddress},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := o.Read(c.addr); !errors.Is(err, c.want) {
				t.Errorf("Read(%#x) error = %v, want %v", c.addr, err, c.want)
			}
			if err := o.Write(c.addr, 0); !errors.Is(err, c.want) {
				t.Errorf("Write(%#x) error = %v, want %v", c.addr, err, c.want)
			}
		})
	}
}

func TestWriteClearBit(t *testing.T) {
	addr := uint16(CfgUAPPing)

	for bit := 0; bit < RegisterBits; bit++ {
		o := NewObject()
		if err := o.WriteClearBit(addr, bit); err != nil {
			t.Fatalf("WriteClearBit(%d) error = %v", bit, err)
		}
		want := ResetValue &^ (1 << bit)
		if v, _ := o.Read(addr); v != want {
			t.Fatalf("Read() after clearing bit %d = %#x, want %#x", bit, v, want)
		}
	}
}

func TestWriteClearBitOutOfRange(t *testing.T) {
	o := NewObject()
	addr := uint16(CfgUAPPing)

	for _, bit := range []int{-1, 32, 100} {
		if err := o.WriteClearBit(addr, bit); !errors.Is(err, ErrInvalidBitIndex) {
			t.Fatalf("WriteClearBit(%d) error = %v, want ErrInvalidBitIndex", bit, err)
		}
	}
	// A failed write leaves the register untouched.
	if v, _ := o.Read(addr); v != ResetValue {
		t.Fatalf("Read() after failed writes = %#x, want %#x", v, ResetValue)
	}
}

func TestBankEffectiveIsAnd(t *testing.T) {
	irr := NewObject()
	rev := NewObject()
	addr := uint16(CfgUAPConfigWrite)

	if err := irr.Store(addr, 0x0000_FF0F); err != nil {
		t.Fatal(err)
	}
	if err := rev.Store(addr, 0x0000_0FFF); err != nil {
		t.Fatal(err)
	}

	b := NewBank(irr, rev)
	v, err := b.Read(addr)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if v != 0x0000_0F0F {
		t.Fatalf("effective value = %#x, want 0x0f0f", v)
	}
}

func TestBankWriteClearBitInvalidatesCache(t *testing.T) {
	b := NewBank(nil, nil)
	addr := uint16(CfgUAPPing)

	before, _ := b.Read(addr)
	if err := b.WriteClearBit(addr, 2); err != nil {
		t.Fatalf("WriteClearBit() error = %v", err)
	}
	after, _ := b.Read(addr)
	if want := before &^ (1 << 2); after != want {
		t.Fatalf("Read() after bit clear = %#x, want %#x", after, want)
	}
}

func TestBankFailedWriteLeavesValue(t *testing.T) {
	b := NewBank(nil, nil)
	addr := uint16(CfgUAPPing)

	before, _ := b.Read(addr)
	if err := b.WriteClearBit(addr, 40); !errors.Is(err, ErrInvalidBitIndex) {
		t.Fatalf("WriteClearBit() error = %v, want ErrInvalidBitIndex", err)
	}
	after, _ := b.Read(addr)
	if after != before {
		t.Fatalf("Read() after failed write = %#x, want %#x", after, before)
	}
}

func TestBankErase(t *testing.T) {
	b := NewBank(nil, nil)
	addr := uint16(CfgSleepMode)

	if err := b.Write(addr, 0x0000_0001); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	b.Erase()
	if v, _ := b.Read(addr); v != ResetValue {
		t.Fatalf("Read() after erase = %#x, want %#x", v, ResetValue)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	o := NewObject()
	if err := o.Store(uint16(CfgSensors), 0x0003_FFFF); err != nil {
		t.Fatal(err)
	}
	if err := o.Store(uint16(CfgUAPPing), 0x0000_00FF); err != nil {
		t.Fatal(err)
	}

	b := NewBank(o, nil)
	snap := b.SnapshotIrreversible()
	loaded, err := LoadObject(snap)
	if err != nil {
		t.Fatalf("LoadObject() error = %v", err)
	}
	for _, r := range Registers() {
		want, _ := o.Read(uint16(r))
		got, _ := loaded.Read(uint16(r))
		if got != want {
			t.Errorf("register %s = %#x, want %#x", r, got, want)
		}
	}
}

func TestLoadObjectUnknownName(t *testing.T) {
	if _, err := LoadObject(map[string]uint32{"bogus": 1}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("LoadObject() error = %v, want ErrInvalidAddress", err)
	}
}

func TestByName(t *testing.T) {
	for _, r := range Registers() {
		got, ok := ByName(r.String())
		if !ok || got != r {
			t.Errorf("ByName(%q) = %v, %v", r.String(), got, ok)
		}
	}
	if _, ok := ByName("nope"); ok {
		t.Error("ByName(nope) succeeded")
	}
}
