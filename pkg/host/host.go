// Package host implements the host side of the chip protocol: a driver that
// frames requests, polls responses through the chip-select-gated transport
// and speaks the encrypted command layer over a secure channel session.
package host

import (
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/securechannel"
	"github.com/backkem/tropic01/pkg/wire"
)

var (
	// ErrBusy is returned when the chip stays busy past the poll limit.
	ErrBusy = errors.New("host: chip busy")

	// ErrNoResponse is returned when the chip has no response frame for
	// a poll.
	ErrNoResponse = errors.New("host: no response available")

	// ErrShortExchange is returned when an exchange yields fewer bytes
	// than a response header.
	ErrShortExchange = errors.New("host: short exchange")
)

// StatusError reports a request answered with an error status.
type StatusError struct {
	Status message.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("host: chip returned status %s", e.Status)
}

// ResultError reports a command answered with a non-OK result.
type ResultError struct {
	Result message.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("host: chip returned result %s", e.Result)
}

// Chip is the host's view of the attached device: raw chip-select and byte
// exchange. Implementations may sit on a wire, so every operation can fail.
type Chip interface {
	DriveCSNLow() error
	DriveCSNHigh() error
	Exchange(tx []byte) ([]byte, error)
}

const defaultPollLimit = 32

// HostConfig configures a Host.
type HostConfig struct {
	// Chip is the attached device.
	// Required.
	Chip Chip

	// PollLimit bounds the number of busy polls per response. Defaults
	// to 32.
	PollLimit int

	// DisableEncryption selects the plaintext diagnostic command mode.
	// Must match the chip's configuration.
	DisableEncryption bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Host drives one chip. Not safe for concurrent use.
type Host struct {
	chip       Chip
	pollLimit  int
	encryption bool

	codec   *wire.Codec
	session *securechannel.HostSession

	log logging.LeveledLogger
}

// NewHost creates a host driver for the given chip.
func NewHost(config HostConfig) *Host {
	pollLimit := config.PollLimit
	if pollLimit <= 0 {
		pollLimit = defaultPollLimit
	}
	h := &Host{
		chip:       config.Chip,
		pollLimit:  pollLimit,
		encryption: !config.DisableEncryption,
		codec:      wire.Default,
		session:    securechannel.NewHostSession(nil),
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("host")
	}
	return h
}

// sendFrame clocks one request frame into the chip.
func (h *Host) sendFrame(frame []byte) error {
	if err := h.chip.DriveCSNLow(); err != nil {
		return err
	}
	if _, err := h.chip.Exchange(frame); err != nil {
		_ = h.chip.DriveCSNHigh()
		return err
	}
	return h.chip.DriveCSNHigh()
}

// pollFrame reads the next pending response frame, retrying through busy
// replies.
func (h *Host) pollFrame() ([]byte, error) {
	rx := make([]byte, 1+message.MaxFrameDataLen+4)
	rx[0] = message.GetRespID
	for attempt := 0; attempt < h.pollLimit; attempt++ {
		if err := h.chip.DriveCSNLow(); err != nil {
			return nil, err
		}
		tx, err := h.chip.Exchange(rx)
		if cerr := h.chip.DriveCSNHigh(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		if len(tx) < 5 {
			return nil, ErrShortExchange
		}
		if tx[0] != message.ChipStatusReady {
			continue
		}
		if tx[1] == byte(message.StatusNoResp) {
			return nil, ErrNoResponse
		}
		n := int(tx[2]) + 4
		if len(tx) < 1+n {
			return nil, ErrShortExchange
		}
		return tx[1 : 1+n], nil
	}
	return nil, ErrBusy
}

// request sends one request and returns the status and payload of the next
// response frame.
func (h *Host) request(m *message.Message) (message.Status, []byte, error) {
	frame, err := message.EncodeRequest(h.codec, m)
	if err != nil {
		return 0, nil, err
	}
	if h.log != nil {
		h.log.Debugf("request %s", m.Shape.Name)
	}
	if err := h.sendFrame(frame); err != nil {
		return 0, nil, err
	}
	rsp, err := h.pollFrame()
	if err != nil {
		return 0, nil, err
	}
	return message.ParseResponse(h.codec, rsp)
}

// requestOK sends a request and fails unless it is acknowledged with REQ_OK.
func (h *Host) requestOK(m *message.Message) ([]byte, error) {
	status, payload, err := h.request(m)
	if err != nil {
		return nil, err
	}
	if status != message.StatusRequestOK {
		return nil, &StatusError{Status: status}
	}
	return payload, nil
}

// EstablishSession performs the secure channel handshake over the given
// pairing key slot. stPub is the chip's static public key, shPriv the host
// private key paired into that slot.
func (h *Host) EstablishSession(slot uint8, stPub, shPriv []byte) error {
	ehPub, err := h.session.CreateHandshakeRequest()
	if err != nil {
		return err
	}
	payload, err := h.requestOK(message.New(api.HandshakeRequest).
		SetBytes("e_hpub", ehPub).
		SetUint("pkey_index", uint64(slot)))
	if err != nil {
		return err
	}
	rsp, err := message.Decode(h.codec, api.HandshakeResponse, payload)
	if err != nil {
		return err
	}
	return h.session.ProcessHandshakeResponse(slot, stPub, shPriv,
		rsp.Bytes("e_tpub"), rsp.Bytes("t_tauth"))
}

// AbortSession tears down the secure channel on both sides.
func (h *Host) AbortSession() error {
	if _, err := h.requestOK(message.New(api.SessionAbortRequest)); err != nil {
		return err
	}
	h.session.Invalidate()
	return nil
}

// sealCommand encrypts an encoded command plaintext, or passes it through
// with a zero tag in plaintext diagnostic mode.
func (h *Host) sealCommand(plain []byte) ([]byte, error) {
	if !h.encryption {
		sealed := make([]byte, 0, len(plain)+securechannel.TagLen)
		sealed = append(sealed, plain...)
		return append(sealed, make([]byte, securechannel.TagLen)...), nil
	}
	return h.session.EncryptCommand(plain)
}

func (h *Host) openResult(sealed []byte) ([]byte, error) {
	if !h.encryption {
		return sealed[:len(sealed)-securechannel.TagLen], nil
	}
	return h.session.DecryptResult(sealed)
}

// command runs one L3 command through the encrypted path and returns the
// raw result data. A non-OK result code surfaces as a ResultError.
func (h *Host) command(cmd *message.Message) ([]byte, error) {
	plain, err := message.EncodeCommand(h.codec, cmd)
	if err != nil {
		return nil, err
	}
	sealed, err := h.sealCommand(plain)
	if err != nil {
		return nil, err
	}
	encoded, err := message.EncodeEncrypted(h.codec, sealed)
	if err != nil {
		return nil, err
	}
	if h.log != nil {
		h.log.Debugf("command %s", cmd.Shape.Name)
	}

	chunks := message.Chunks(encoded)
	for i, c := range chunks {
		status, _, err := h.request(message.New(api.EncryptedCmdRequest).
			SetBytes("l3_chunk", c))
		if err != nil {
			return nil, err
		}
		last := i == len(chunks)-1
		switch {
		case !last && status == message.StatusRequestCont:
		case last && status == message.StatusRequestOK:
		default:
			return nil, &StatusError{Status: status}
		}
	}

	var raw []byte
	for {
		frame, err := h.pollFrame()
		if err != nil {
			return nil, err
		}
		status, payload, err := message.ParseResponse(h.codec, frame)
		if err != nil {
			return nil, err
		}
		switch status {
		case message.StatusResultCont, message.StatusResultOK:
			raw = append(raw, payload...)
		default:
			return nil, &StatusError{Status: status}
		}
		if status == message.StatusResultOK {
			break
		}
	}

	packet, err := message.ParseEncrypted(h.codec, raw)
	if err != nil {
		return nil, err
	}
	resultPlain, err := h.openResult(packet.Sealed())
	if err != nil {
		return nil, err
	}
	result, data, err := message.ParseResult(resultPlain)
	if err != nil {
		return nil, err
	}
	if result != message.ResultOK {
		return nil, &ResultError{Result: result}
	}
	return data, nil
}

// commandResult runs a command and decodes its result payload against the
// given shape.
func (h *Host) commandResult(cmd *message.Message, shape *message.Shape) (*message.Message, error) {
	data, err := h.command(cmd)
	if err != nil {
		return nil, err
	}
	return message.Decode(h.codec, shape, data)
}
