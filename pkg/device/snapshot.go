package device

import (
	"fmt"

	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/uap"
)

// Snapshot is the persistent state of a device in a plain key-value form,
// suitable for serialization. Volatile state (session, queued responses,
// half-assembled commands) is never part of a snapshot.
type Snapshot struct {
	StaticPrivateKey []byte
	StaticPublicKey  []byte

	IrreversibleConfig map[string]uint32
	ReversibleConfig   map[string]uint32

	PairingKeys [uap.NumSlots]PairingKeySnapshot

	UserData map[int][]byte

	Certificate    []byte
	ChipID         []byte
	RiscvFwVersion []byte
	SpectFwVersion []byte
	SerialCode     []byte

	DisableEncryption bool
	DebugRandomValue  []byte
	InitByte          byte
	BusyPattern       []bool
}

// PairingKeySnapshot is the persisted form of one pairing key slot.
type PairingKeySnapshot struct {
	State string
	Key   []byte
}

// Snapshot captures the device's persistent state.
func (d *Device) Snapshot() *Snapshot {
	s := &Snapshot{
		StaticPrivateKey:   append([]byte(nil), d.stPriv...),
		StaticPublicKey:    append([]byte(nil), d.stPub...),
		IrreversibleConfig: d.bank.SnapshotIrreversible(),
		ReversibleConfig:   d.bank.SnapshotReversible(),
		UserData:           map[int][]byte{},
		Certificate:        append([]byte(nil), d.cert...),
		ChipID:             append([]byte(nil), d.chipID...),
		RiscvFwVersion:     append([]byte(nil), d.riscvFw...),
		SpectFwVersion:     append([]byte(nil), d.spectFw...),
		SerialCode:         append([]byte(nil), d.serial...),
		DisableEncryption:  !d.encryption,
	}
	for i := range d.pairingKeys.slots {
		slot := &d.pairingKeys.slots[i]
		snap := PairingKeySnapshot{State: slot.state.String()}
		if slot.state == SlotWritten {
			snap.Key = append([]byte(nil), slot.value[:]...)
		}
		s.PairingKeys[i] = snap
	}
	for _, i := range d.userData.Written() {
		data, _ := d.userData.Read(i)
		s.UserData[i] = data
	}
	return s
}

// DeviceConfig rebuilds a construction configuration from a snapshot. The
// caller supplies runtime-only fields (Rand, LoggerFactory) before calling
// NewDevice.
func (s *Snapshot) DeviceConfig() (DeviceConfig, error) {
	irr, err := config.LoadObject(s.IrreversibleConfig)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("irreversible config: %w", err)
	}
	rev, err := config.LoadObject(s.ReversibleConfig)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("reversible config: %w", err)
	}

	keys := NewPairingKeys()
	for i, snap := range s.PairingKeys {
		state, ok := slotStateByName(snap.State)
		if !ok {
			return DeviceConfig{}, fmt.Errorf("pairing key slot %d: unknown state %q", i, snap.State)
		}
		slot := &keys.slots[i]
		slot.state = state
		if state == SlotWritten {
			if len(snap.Key) != PairingKeyLen {
				return DeviceConfig{}, fmt.Errorf("pairing key slot %d: %w", i, ErrBadKeyLen)
			}
			copy(slot.value[:], snap.Key)
		}
	}

	userData := NewUserData()
	for i, data := range s.UserData {
		if err := userData.Set(i, data); err != nil {
			return DeviceConfig{}, fmt.Errorf("user data slot %d: %w", i, err)
		}
	}

	return DeviceConfig{
		StaticPrivateKey:   s.StaticPrivateKey,
		StaticPublicKey:    s.StaticPublicKey,
		IrreversibleConfig: irr,
		ReversibleConfig:   rev,
		PairingKeys:        keys,
		UserData:           userData,
		Certificate:        s.Certificate,
		ChipID:             s.ChipID,
		RiscvFwVersion:     s.RiscvFwVersion,
		SpectFwVersion:     s.SpectFwVersion,
		SerialCode:         s.SerialCode,
		DisableEncryption:  s.DisableEncryption,
		DebugRandomValue:   s.DebugRandomValue,
		InitByte:           s.InitByte,
		BusyPattern:        s.BusyPattern,
	}, nil
}
