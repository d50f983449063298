package device

import (
	"errors"

	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/securechannel"
	"github.com/backkem/tropic01/pkg/transport"
)

func (d *Device) requestHandlers() map[uint8]l2Handler {
	return map[uint8]l2Handler{
		api.IDGetInfo:      d.handleGetInfo,
		api.IDHandshake:    d.handleHandshake,
		api.IDEncryptedCmd: d.handleEncryptedCmd,
		api.IDSessionAbort: d.handleSessionAbort,
		api.IDResend:       d.handleResend,
		api.IDSleep:        d.handleSleep,
		api.IDGetLog:       d.handleGetLog,
		api.IDStartup:      d.handleStartup,
	}
}

// handleGetInfo serves the identification objects. Stored objects shorter
// than their wire size are zero-padded.
func (d *Device) handleGetInfo(req *message.Message) ([][]byte, error) {
	object := req.Uint("object_id")
	block := req.Uint("block_index")

	var data []byte
	switch object {
	case api.ObjectX509Certificate:
		if block > api.MaxCertificateBlockIndex {
			return nil, l2Errorf(message.StatusGenericErr,
				"certificate block %d out of range", block)
		}
		data = padObject(sliceBlock(d.cert, int(block)), api.CertificateBlockSize)
	case api.ObjectChipID:
		data = padObject(d.chipID, api.ChipIDSize)
	case api.ObjectRiscvFwVersion:
		data = padObject(d.riscvFw, api.FwVersionSize)
	case api.ObjectSpectFwVersion:
		data = padObject(d.spectFw, api.FwVersionSize)
	default:
		return nil, l2Errorf(message.StatusGenericErr, "unknown object %#02x", object)
	}
	m := message.New(api.GetInfoResponse).SetBytes("object", data)
	return d.respond(message.StatusRequestOK, m)
}

// sliceBlock extracts one 128-byte window of the certificate, empty when the
// block lies entirely past the stored bytes.
func sliceBlock(obj []byte, block int) []byte {
	start := block * api.CertificateBlockSize
	if start >= len(obj) {
		return nil
	}
	end := start + api.CertificateBlockSize
	if end > len(obj) {
		end = len(obj)
	}
	return obj[start:end]
}

func padObject(obj []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, obj)
	return out
}

// handleHandshake establishes a secure channel session against one of the
// pairing key slots. Every failure mode collapses into the single handshake
// error status.
func (d *Device) handleHandshake(req *message.Message) ([][]byte, error) {
	index := int(req.Uint("pkey_index"))
	slot, err := d.pairingKeys.Slot(index)
	if err != nil {
		return nil, l2Errorf(message.StatusHandshakeErr, "pairing key index %d", index)
	}
	shPub, err := slot.Read()
	if err != nil {
		return nil, l2Errorf(message.StatusHandshakeErr, "pairing key slot %d unusable", index)
	}
	etPub, tag, err := d.session.ProcessHandshakeRequest(
		d.stPriv, shPub, uint8(index), req.Bytes("e_hpub"))
	if err != nil {
		return nil, l2Errorf(message.StatusHandshakeErr, "handshake: %v", err)
	}
	d.activeSlot = index

	m := message.New(api.HandshakeResponse).
		SetBytes("e_tpub", etPub).
		SetBytes("t_tauth", tag)
	return d.respond(message.StatusRequestOK, m)
}

// handleEncryptedCmd accumulates command chunks, executes the complete
// command and returns the result as an acknowledging frame followed by
// result chunks.
func (d *Device) handleEncryptedCmd(req *message.Message) ([][]byte, error) {
	if !d.session.Established() {
		return nil, l2Errorf(message.StatusNoSession, "no secure channel session")
	}
	chunk := req.Bytes("l3_chunk")

	if d.cmdBuf.Empty() {
		total, err := message.EncryptedTotalLen(d.codec, chunk)
		if err != nil {
			return nil, l2Errorf(message.StatusGenericErr, "first chunk: %v", err)
		}
		d.cmdBuf.Initialize(total)
	}
	d.cmdBuf.AddChunk(chunk)
	if d.cmdBuf.Incomplete() {
		return d.respond(message.StatusRequestCont, nil)
	}

	packet, err := message.ParseEncrypted(d.codec, d.cmdBuf.Raw())
	if err != nil {
		return nil, l2Errorf(message.StatusGenericErr, "encrypted packet: %v", err)
	}
	plain, err := d.decryptCommand(packet.Sealed())
	if err != nil {
		switch {
		case errors.Is(err, securechannel.ErrNoSession):
			return nil, l2Errorf(message.StatusNoSession, "no secure channel session")
		case errors.Is(err, securechannel.ErrAuthFailed):
			return nil, l2Errorf(message.StatusTagErr, "command authentication failed")
		default:
			return nil, err
		}
	}

	result, err := d.execCommand(plain)
	if err != nil {
		return nil, err
	}
	sealed, err := d.encryptResult(result)
	if err != nil {
		return nil, err
	}
	encoded, err := message.EncodeEncrypted(d.codec, sealed)
	if err != nil {
		return nil, err
	}

	frames := [][]byte{message.EncodeStatus(d.codec, message.StatusRequestOK)}
	chunks := message.Chunks(encoded)
	for i, c := range chunks {
		status := message.StatusResultCont
		if i == len(chunks)-1 {
			status = message.StatusResultOK
		}
		frame, err := message.EncodeResponse(d.codec, status,
			message.New(api.EncryptedCmdResponse).SetBytes("l3_chunk", c))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// handleSessionAbort tears down the secure channel and any half-assembled
// command.
func (d *Device) handleSessionAbort(_ *message.Message) ([][]byte, error) {
	d.cmdBuf.Reset()
	d.invalidateSession()
	return d.respond(message.StatusRequestOK, nil)
}

// handleResend defers to the transport layer, which replays the most recent
// response frame.
func (d *Device) handleResend(_ *message.Message) ([][]byte, error) {
	return nil, transport.ErrResend
}

// handleSleep enters sleep or deep sleep when the corresponding mode is
// enabled in configuration. Deep sleep additionally drops queued responses
// and the effective configuration cache.
func (d *Device) handleSleep(req *message.Message) ([][]byte, error) {
	mode, err := d.bank.Read(uint16(config.CfgSleepMode))
	if err != nil {
		return nil, err
	}
	switch req.Uint("sleep_kind") {
	case api.SleepKindSleep:
		if mode&0x01 == 0 {
			return nil, l2Errorf(message.StatusRespDisabled, "sleep mode disabled")
		}
		d.cmdBuf.Reset()
		d.invalidateSession()
	case api.SleepKindDeepSleep:
		if mode&0x02 == 0 {
			return nil, l2Errorf(message.StatusRespDisabled, "deep sleep mode disabled")
		}
		d.cmdBuf.Reset()
		d.invalidateSession()
		d.fsm.Reset()
		d.bank.InvalidateCache()
	default:
		return nil, l2Errorf(message.StatusGenericErr,
			"unknown sleep kind %#02x", req.Uint("sleep_kind"))
	}
	return d.respond(message.StatusRequestOK, nil)
}

// handleGetLog returns the chip log. The model keeps none.
func (d *Device) handleGetLog(_ *message.Message) ([][]byte, error) {
	m := message.New(api.GetLogResponse).SetBytes("log_msg", nil)
	return d.respond(message.StatusRequestOK, m)
}

// handleStartup reboots the chip, clearing all volatile state.
func (d *Device) handleStartup(req *message.Message) ([][]byte, error) {
	switch req.Uint("startup_id") {
	case api.StartupReboot, api.StartupMaintenanceReboot:
	default:
		return nil, l2Errorf(message.StatusGenericErr,
			"unknown startup id %#02x", req.Uint("startup_id"))
	}
	d.cmdBuf.Reset()
	d.invalidateSession()
	d.fsm.Reset()
	d.bank.InvalidateCache()
	return d.respond(message.StatusRequestOK, nil)
}
