package device

import (
	"fmt"
	"io"

	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/uap"
)

func (d *Device) commandHandlers() map[uint8]l3Handler {
	return map[uint8]l3Handler{
		api.IDPing:                 d.cmdPing,
		api.IDPairingKeyWrite:      d.cmdPairingKeyWrite,
		api.IDPairingKeyRead:       d.cmdPairingKeyRead,
		api.IDPairingKeyInvalidate: d.cmdPairingKeyInvalidate,
		api.IDConfigWrite:          d.cmdConfigWrite,
		api.IDConfigRead:           d.cmdConfigRead,
		api.IDConfigErase:          d.cmdConfigErase,
		api.IDConfigWriteBit:       d.cmdConfigWriteBit,
		api.IDMemDataWrite:         d.cmdMemDataWrite,
		api.IDMemDataRead:          d.cmdMemDataRead,
		api.IDMemDataErase:         d.cmdMemDataErase,
		api.IDRandomValueGet:       d.cmdRandomValueGet,
		api.IDSerialCodeGet:        d.cmdSerialCodeGet,
	}
}

func (d *Device) cmdPing(cmd *message.Message) (*message.Message, error) {
	if err := d.checkAccess(config.CfgUAPPing, 0); err != nil {
		return nil, err
	}
	return message.New(api.PingResult).SetBytes("data_out", cmd.Bytes("data_in")), nil
}

// pairingSlot validates a pairing key slot index from a command. A slot the
// chip does not have cannot carry a privilege for anyone.
func pairingSlot(cmd *message.Message) (int, error) {
	slot := int(cmd.Uint("slot"))
	if slot < 0 || slot >= uap.NumSlots {
		return 0, fmt.Errorf("%w: pairing key slot %d", uap.ErrUnauthorized, slot)
	}
	return slot, nil
}

func (d *Device) cmdPairingKeyWrite(cmd *message.Message) (*message.Message, error) {
	slot, err := pairingSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPPairingKeyWrite, slot); err != nil {
		return nil, err
	}
	s, err := d.pairingKeys.Slot(slot)
	if err != nil {
		return nil, err
	}
	if err := s.Write(cmd.Bytes("s_hipub")); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Device) cmdPairingKeyRead(cmd *message.Message) (*message.Message, error) {
	slot, err := pairingSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPPairingKeyRead, slot); err != nil {
		return nil, err
	}
	s, err := d.pairingKeys.Slot(slot)
	if err != nil {
		return nil, err
	}
	key, err := s.Read()
	if err != nil {
		return nil, err
	}
	return message.New(api.PairingKeyReadResult).SetBytes("s_hipub", key), nil
}

func (d *Device) cmdPairingKeyInvalidate(cmd *message.Message) (*message.Message, error) {
	slot, err := pairingSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPPairingKeyInvalidate, slot); err != nil {
		return nil, err
	}
	s, err := d.pairingKeys.Slot(slot)
	if err != nil {
		return nil, err
	}
	if err := s.Invalidate(); err != nil {
		return nil, err
	}
	return nil, nil
}

// configAddress validates that a command names a register from the closed
// register map, not just any in-range address.
func configAddress(cmd *message.Message) (uint16, error) {
	addr := uint16(cmd.Uint("address"))
	if !config.Known(config.Register(addr)) {
		return 0, fmt.Errorf("%w: %#04x", config.ErrInvalidAddress, addr)
	}
	return addr, nil
}

func (d *Device) cmdConfigWrite(cmd *message.Message) (*message.Message, error) {
	addr, err := configAddress(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPConfigWrite, 0); err != nil {
		return nil, err
	}
	if err := d.bank.Write(addr, uint32(cmd.Uint("value"))); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Device) cmdConfigRead(cmd *message.Message) (*message.Message, error) {
	addr, err := configAddress(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPConfigRead, 0); err != nil {
		return nil, err
	}
	value, err := d.bank.Read(addr)
	if err != nil {
		return nil, err
	}
	return message.New(api.ConfigReadResult).SetUint("value", uint64(value)), nil
}

func (d *Device) cmdConfigErase(_ *message.Message) (*message.Message, error) {
	if err := d.checkAccess(config.CfgUAPConfigErase, 0); err != nil {
		return nil, err
	}
	d.bank.Erase()
	return nil, nil
}

func (d *Device) cmdConfigWriteBit(cmd *message.Message) (*message.Message, error) {
	addr, err := configAddress(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPConfigWrite, 0); err != nil {
		return nil, err
	}
	if err := d.bank.WriteClearBit(addr, int(cmd.Uint("bit_index"))); err != nil {
		return nil, err
	}
	return nil, nil
}

// userSlot validates a user data slot index and returns the UAP privilege
// field covering it. Privileges are granted per range of 128 slots.
func userSlot(cmd *message.Message) (slot, field int, err error) {
	slot = int(cmd.Uint("udata_slot"))
	if slot < 0 || slot >= UserDataSlots {
		return 0, 0, fmt.Errorf("%w: %d", ErrBadUserSlot, slot)
	}
	return slot, slot / 128, nil
}

func (d *Device) cmdMemDataWrite(cmd *message.Message) (*message.Message, error) {
	slot, field, err := userSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPMemDataWrite, field); err != nil {
		return nil, err
	}
	if err := d.userData.Write(slot, cmd.Bytes("data")); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Device) cmdMemDataRead(cmd *message.Message) (*message.Message, error) {
	slot, field, err := userSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPMemDataRead, field); err != nil {
		return nil, err
	}
	data, err := d.userData.Read(slot)
	if err != nil {
		return nil, err
	}
	return message.New(api.MemDataReadResult).SetBytes("data", data), nil
}

func (d *Device) cmdMemDataErase(cmd *message.Message) (*message.Message, error) {
	slot, field, err := userSlot(cmd)
	if err != nil {
		return nil, err
	}
	if err := d.checkAccess(config.CfgUAPMemDataErase, field); err != nil {
		return nil, err
	}
	if err := d.userData.Erase(slot); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Device) cmdRandomValueGet(cmd *message.Message) (*message.Message, error) {
	if err := d.checkAccess(config.CfgUAPRandomValueGet, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, cmd.Uint("n_bytes"))
	if _, err := io.ReadFull(d.rand, buf); err != nil {
		return nil, err
	}
	return message.New(api.RandomValueGetResult).SetBytes("random_data", buf), nil
}

func (d *Device) cmdSerialCodeGet(_ *message.Message) (*message.Message, error) {
	if err := d.checkAccess(config.CfgUAPSerialCodeGet, 0); err != nil {
		return nil, err
	}
	return message.New(api.SerialCodeGetResult).SetBytes("serial_code", d.serial), nil
}
