package host

import (
	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/message"
)

// GetInfo fetches one identification object block.
func (h *Host) GetInfo(object uint64, block int) ([]byte, error) {
	return h.requestOK(message.New(api.GetInfoRequest).
		SetUint("object_id", object).
		SetUint("block_index", uint64(block)))
}

// Certificate fetches and reassembles the device certificate.
func (h *Host) Certificate() ([]byte, error) {
	cert := make([]byte, 0, api.CertificateSize)
	for block := 0; block < api.CertificateBlocks; block++ {
		part, err := h.GetInfo(api.ObjectX509Certificate, block)
		if err != nil {
			return nil, err
		}
		cert = append(cert, part...)
	}
	return cert, nil
}

// ChipID fetches the chip identification object.
func (h *Host) ChipID() ([]byte, error) {
	return h.GetInfo(api.ObjectChipID, 0)
}

// RiscvFwVersion fetches the main firmware version.
func (h *Host) RiscvFwVersion() ([]byte, error) {
	return h.GetInfo(api.ObjectRiscvFwVersion, 0)
}

// SpectFwVersion fetches the cryptographic coprocessor firmware version.
func (h *Host) SpectFwVersion() ([]byte, error) {
	return h.GetInfo(api.ObjectSpectFwVersion, 0)
}

// GetLog fetches the chip log message.
func (h *Host) GetLog() ([]byte, error) {
	return h.requestOK(message.New(api.GetLogRequest))
}

// Sleep puts the chip to sleep.
func (h *Host) Sleep(kind uint64) error {
	_, err := h.requestOK(message.New(api.SleepRequest).SetUint("sleep_kind", kind))
	return err
}

// Startup reboots the chip. Any session is gone afterwards.
func (h *Host) Startup(id uint64) error {
	_, err := h.requestOK(message.New(api.StartupRequest).SetUint("startup_id", id))
	if err != nil {
		return err
	}
	h.session.Invalidate()
	return nil
}

// Resend asks the chip to replay its most recent response frame.
func (h *Host) Resend() (message.Status, []byte, error) {
	return h.request(message.New(api.ResendRequest))
}

// Ping echoes data through the encrypted command layer.
func (h *Host) Ping(data []byte) ([]byte, error) {
	rsp, err := h.commandResult(
		message.New(api.PingCommand).SetBytes("data_in", data),
		api.PingResult)
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("data_out"), nil
}

// PairingKeyWrite stores a host public key into a blank pairing key slot.
func (h *Host) PairingKeyWrite(slot int, pub []byte) error {
	_, err := h.command(message.New(api.PairingKeyWriteCommand).
		SetUint("slot", uint64(slot)).
		SetBytes("s_hipub", pub))
	return err
}

// PairingKeyRead returns the key stored in a pairing key slot.
func (h *Host) PairingKeyRead(slot int) ([]byte, error) {
	rsp, err := h.commandResult(
		message.New(api.PairingKeyReadCommand).SetUint("slot", uint64(slot)),
		api.PairingKeyReadResult)
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("s_hipub"), nil
}

// PairingKeyInvalidate permanently disables a pairing key slot.
func (h *Host) PairingKeyInvalidate(slot int) error {
	_, err := h.command(message.New(api.PairingKeyInvalidateCommand).
		SetUint("slot", uint64(slot)))
	return err
}

// ConfigWrite writes a whole erased configuration register.
func (h *Host) ConfigWrite(reg config.Register, value uint32) error {
	_, err := h.command(message.New(api.ConfigWriteCommand).
		SetUint("address", uint64(reg)).
		SetUint("value", uint64(value)))
	return err
}

// ConfigRead returns the effective value of a configuration register.
func (h *Host) ConfigRead(reg config.Register) (uint32, error) {
	rsp, err := h.commandResult(
		message.New(api.ConfigReadCommand).SetUint("address", uint64(reg)),
		api.ConfigReadResult)
	if err != nil {
		return 0, err
	}
	return uint32(rsp.Uint("value")), nil
}

// ConfigErase resets the reversible configuration copy.
func (h *Host) ConfigErase() error {
	_, err := h.command(message.New(api.ConfigEraseCommand))
	return err
}

// ConfigWriteBit clears one bit of the reversible configuration copy.
func (h *Host) ConfigWriteBit(reg config.Register, bit int) error {
	_, err := h.command(message.New(api.ConfigWriteBitCommand).
		SetUint("address", uint64(reg)).
		SetUint("bit_index", uint64(bit)))
	return err
}

// MemDataWrite stores data into a free user data slot.
func (h *Host) MemDataWrite(slot int, data []byte) error {
	_, err := h.command(message.New(api.MemDataWriteCommand).
		SetUint("udata_slot", uint64(slot)).
		SetBytes("data", data))
	return err
}

// MemDataRead returns the contents of a user data slot.
func (h *Host) MemDataRead(slot int) ([]byte, error) {
	rsp, err := h.commandResult(
		message.New(api.MemDataReadCommand).SetUint("udata_slot", uint64(slot)),
		api.MemDataReadResult)
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("data"), nil
}

// MemDataErase frees a user data slot.
func (h *Host) MemDataErase(slot int) error {
	_, err := h.command(message.New(api.MemDataEraseCommand).
		SetUint("udata_slot", uint64(slot)))
	return err
}

// RandomValueGet fetches n random bytes from the chip.
func (h *Host) RandomValueGet(n int) ([]byte, error) {
	rsp, err := h.commandResult(
		message.New(api.RandomValueGetCommand).SetUint("n_bytes", uint64(n)),
		api.RandomValueGetResult)
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("random_data"), nil
}

// SerialCodeGet fetches the chip serial code.
func (h *Host) SerialCodeGet() ([]byte, error) {
	rsp, err := h.commandResult(
		message.New(api.SerialCodeGetCommand),
		api.SerialCodeGetResult)
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("serial_code"), nil
}
