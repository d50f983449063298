// Package device assembles the functional chip model: transport state
// machine, request dispatcher, secure channel, configuration bank, pairing
// key slots and user data partition behind a single host-facing surface.
package device

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/pion/logging"

	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/securechannel"
	"github.com/backkem/tropic01/pkg/transport"
	"github.com/backkem/tropic01/pkg/uap"
	"github.com/backkem/tropic01/pkg/wire"
)

// ErrMissingStaticKey is returned when a device is created without its
// static X25519 key pair.
var ErrMissingStaticKey = errors.New("device: missing static key pair")

// Default identification objects for a device created without explicit
// content.
var (
	defaultCertificate    = []byte("x509_certificate")
	defaultChipID         = []byte("chip_id")
	defaultRiscvFwVersion = []byte{0x00, 0x00, 0x00, 0x00}
	defaultSpectFwVersion = []byte{0x00, 0x00, 0x00, 0x00}
	defaultSerialCode     = []byte("serial_code")
)

// DeviceConfig collects the construction-time state of a Device. The zero
// value of every optional field selects a fresh, blank part.
type DeviceConfig struct {
	// StaticPrivateKey and StaticPublicKey are the device X25519 key
	// pair used in secure channel handshakes.
	// Required.
	StaticPrivateKey []byte
	StaticPublicKey  []byte

	// IrreversibleConfig and ReversibleConfig are the two configuration
	// object copies. Nil selects a fully erased object.
	IrreversibleConfig *config.Object
	ReversibleConfig   *config.Object

	// PairingKeys is the bank of host public key slots. Nil selects
	// four blank slots.
	PairingKeys *PairingKeys

	// UserData is the general purpose data partition. Nil selects an
	// empty partition.
	UserData *UserData

	// Identification objects served by Get_Info.
	Certificate    []byte
	ChipID         []byte
	RiscvFwVersion []byte
	SpectFwVersion []byte

	// SerialCode is returned by the Serial_Code_Get command.
	SerialCode []byte

	// DisableEncryption switches the encrypted command layer to a
	// plaintext diagnostic mode: packets travel with a zero tag and
	// access privilege checks are skipped.
	DisableEncryption bool

	// Rand is the entropy source for ephemeral keys and the random
	// value command. If nil, crypto/rand is used.
	Rand io.Reader

	// DebugRandomValue, when set, replaces Rand with a reader cycling
	// this pattern so runs are reproducible.
	DebugRandomValue []byte

	// InitByte fills response bytes while a request is processed.
	InitByte byte

	// BusyPattern is the cyclic busy schedule of the transport FSM.
	BusyPattern []bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Device is the functional model of one chip. It is not safe for concurrent
// use; a host drives it one exchange at a time.
type Device struct {
	stPriv []byte
	stPub  []byte

	bank        *config.Bank
	pairingKeys *PairingKeys
	userData    *UserData

	cert    []byte
	chipID  []byte
	riscvFw []byte
	spectFw []byte
	serial  []byte

	encryption bool
	rand       io.Reader

	session    *securechannel.ChipSession
	activeSlot int
	cmdBuf     CommandBuffer
	fsm        *transport.FSM

	codec    *wire.Codec
	requests *message.Registry
	commands *message.Registry

	l2handlers map[uint8]l2Handler
	l3handlers map[uint8]l3Handler

	log logging.LeveledLogger
}

// NewDevice creates a device from its construction-time state.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if len(cfg.StaticPrivateKey) != securechannel.KeyLen ||
		len(cfg.StaticPublicKey) != securechannel.KeyLen {
		return nil, ErrMissingStaticKey
	}

	random := cfg.Rand
	if cfg.DebugRandomValue != nil {
		random = &repeatReader{pattern: cfg.DebugRandomValue}
	}
	if random == nil {
		random = rand.Reader
	}

	pairingKeys := cfg.PairingKeys
	if pairingKeys == nil {
		pairingKeys = NewPairingKeys()
	}
	userData := cfg.UserData
	if userData == nil {
		userData = NewUserData()
	}

	d := &Device{
		stPriv:      append([]byte(nil), cfg.StaticPrivateKey...),
		stPub:       append([]byte(nil), cfg.StaticPublicKey...),
		bank:        config.NewBank(cfg.IrreversibleConfig, cfg.ReversibleConfig),
		pairingKeys: pairingKeys,
		userData:    userData,
		cert:        orDefault(cfg.Certificate, defaultCertificate),
		chipID:      orDefault(cfg.ChipID, defaultChipID),
		riscvFw:     orDefault(cfg.RiscvFwVersion, defaultRiscvFwVersion),
		spectFw:     orDefault(cfg.SpectFwVersion, defaultSpectFwVersion),
		serial:      orDefault(cfg.SerialCode, defaultSerialCode),
		encryption:  !cfg.DisableEncryption,
		rand:        random,
		session:     securechannel.NewChipSession(random),
		activeSlot:  uap.NoSlot,
		codec:       wire.Default,
		requests:    api.Requests(),
		commands:    api.Commands(),
	}
	if cfg.LoggerFactory != nil {
		d.log = cfg.LoggerFactory.NewLogger("device")
	}
	d.l2handlers = d.requestHandlers()
	d.l3handlers = d.commandHandlers()
	d.fsm = transport.NewFSM(transport.FSMConfig{
		Processor:     d,
		InitByte:      cfg.InitByte,
		BusyPattern:   cfg.BusyPattern,
		LoggerFactory: cfg.LoggerFactory,
	})
	return d, nil
}

func orDefault(v, def []byte) []byte {
	if v == nil {
		v = def
	}
	return append([]byte(nil), v...)
}

// DriveCSNLow drives the chip-select line low.
func (d *Device) DriveCSNLow() {
	d.fsm.DriveCSNLow()
}

// DriveCSNHigh drives the chip-select line high.
func (d *Device) DriveCSNHigh() {
	d.fsm.DriveCSNHigh()
}

// Exchange clocks rx into the chip and returns the bytes driven back.
func (d *Device) Exchange(rx []byte) []byte {
	return d.fsm.Exchange(rx)
}

// PowerOn models applying power. Persistent state is untouched; volatile
// state was already cleared by the preceding power-off.
func (d *Device) PowerOn() {
	if d.log != nil {
		d.log.Debug("power on")
	}
}

// PowerOff clears all volatile state: the secure channel session, any
// half-assembled command, queued responses and the effective configuration
// cache.
func (d *Device) PowerOff() {
	if d.log != nil {
		d.log.Debug("power off")
	}
	d.invalidateSession()
	d.cmdBuf.Reset()
	d.fsm.Reset()
	d.bank.InvalidateCache()
}

func (d *Device) invalidateSession() {
	d.session.Invalidate()
	d.activeSlot = uap.NoSlot
}

// checkAccess verifies the paired host's privilege for a command against an
// 8-bit field of a UAP register. field selects the byte, low to high; plain
// commands use field 0, slot-ranged commands select the byte covering the
// target slot.
func (d *Device) checkAccess(reg config.Register, field int) error {
	if !d.encryption {
		return nil
	}
	value, err := d.bank.Read(uint16(reg))
	if err != nil {
		return err
	}
	priv := (value >> (8 * field)) & 0xFF
	return uap.Check(priv, d.activeSlot)
}

// decryptCommand recovers the plaintext of a sealed command packet. In
// plaintext diagnostic mode the ciphertext is the plaintext and the tag is
// ignored.
func (d *Device) decryptCommand(sealed []byte) ([]byte, error) {
	if !d.encryption {
		if !d.session.Established() {
			return nil, securechannel.ErrNoSession
		}
		return sealed[:len(sealed)-securechannel.TagLen], nil
	}
	return d.session.DecryptCommand(sealed)
}

// encryptResult seals a result plaintext. In plaintext diagnostic mode the
// packet travels as-is with a zero tag.
func (d *Device) encryptResult(plain []byte) ([]byte, error) {
	if !d.encryption {
		sealed := make([]byte, 0, len(plain)+securechannel.TagLen)
		sealed = append(sealed, plain...)
		return append(sealed, make([]byte, securechannel.TagLen)...), nil
	}
	return d.session.EncryptResult(plain)
}

// repeatReader cycles a fixed pattern. It never fails.
type repeatReader struct {
	pattern []byte
	pos     int
}

func (r *repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.pattern[r.pos]
		r.pos = (r.pos + 1) % len(r.pattern)
	}
	return len(p), nil
}
