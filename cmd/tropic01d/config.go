package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/backkem/tropic01/pkg/device"
	"github.com/backkem/tropic01/pkg/uap"
)

// Stock bench identity: a fixed X25519 key pair and a pairing key in slot 0,
// so a host can talk to a freshly started model without any provisioning.
var (
	defaultStaticPrivateKey = []byte{
		0x48, 0xb9, 0x2f, 0x05, 0x0b, 0xfb, 0x82, 0x40,
		0x22, 0xec, 0xef, 0x7b, 0xc5, 0xec, 0xbc, 0xa4,
		0x52, 0xd3, 0xfd, 0x27, 0x70, 0xe8, 0xb5, 0x54,
		0x9e, 0x93, 0x67, 0x29, 0xac, 0x78, 0xc4, 0x6d,
	}
	defaultStaticPublicKey = []byte{
		0x07, 0x7a, 0xad, 0x06, 0x0b, 0xbb, 0x38, 0x46,
		0x2d, 0x3a, 0xa5, 0x2e, 0x9e, 0xef, 0xe8, 0xfa,
		0xa7, 0x84, 0x16, 0x9b, 0x2c, 0x67, 0x3b, 0xe0,
		0x6e, 0xf3, 0xfe, 0x1f, 0xd1, 0xc1, 0x93, 0x47,
	}
	defaultPairingKey = []byte{
		0x83, 0xc3, 0x36, 0x3c, 0xff, 0x27, 0x47, 0xb7,
		0xf7, 0xeb, 0x19, 0x85, 0x17, 0x63, 0x1a, 0x71,
		0x54, 0x76, 0xb4, 0xfe, 0x22, 0x46, 0x01, 0x45,
		0x89, 0xc3, 0xac, 0x11, 0x8b, 0xb8, 0x9e, 0x51,
	}
)

// hexValue decodes TOML strings of hex digits into bytes.
type hexValue []byte

func (v *hexValue) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*v = b
	return nil
}

// modelFile is the TOML layout of a model configuration file. Every field is
// optional; omitted fields fall back to the stock bench identity.
type modelFile struct {
	Device deviceFile `toml:"device"`
}

type deviceFile struct {
	StaticPrivateKey hexValue `toml:"s_t_priv"`
	StaticPublicKey  hexValue `toml:"s_t_pub"`

	Certificate    hexValue `toml:"x509_certificate"`
	ChipID         hexValue `toml:"chip_id"`
	RiscvFwVersion hexValue `toml:"riscv_fw_version"`
	SpectFwVersion hexValue `toml:"spect_fw_version"`
	SerialCode     hexValue `toml:"serial_code"`

	DisableEncryption bool     `toml:"disable_encryption"`
	DebugRandomValue  hexValue `toml:"debug_random_value"`
	InitByte          uint8    `toml:"init_byte"`
	BusyPattern       []bool   `toml:"busy_pattern"`

	IrreversibleConfig map[string]uint32 `toml:"i_config"`
	ReversibleConfig   map[string]uint32 `toml:"r_config"`

	PairingKeys map[string]pairingKeyFile `toml:"pairing_keys"`
	UserData    map[string]hexValue       `toml:"user_data"`
}

type pairingKeyFile struct {
	State string   `toml:"state"`
	Key   hexValue `toml:"key"`
}

// defaultSnapshot is the model state served when no configuration file is
// given.
func defaultSnapshot() *device.Snapshot {
	snap := &device.Snapshot{
		StaticPrivateKey: defaultStaticPrivateKey,
		StaticPublicKey:  defaultStaticPublicKey,
	}
	for i := range snap.PairingKeys {
		snap.PairingKeys[i].State = "blank"
	}
	snap.PairingKeys[0] = device.PairingKeySnapshot{
		State: "written",
		Key:   defaultPairingKey,
	}
	return snap
}

// loadSnapshot reads a TOML model configuration, overlaying it on the stock
// defaults. An empty path selects the defaults unchanged.
func loadSnapshot(path string) (*device.Snapshot, error) {
	snap := defaultSnapshot()
	if path == "" {
		return snap, nil
	}

	var file modelFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("load model configuration: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	dev := file.Device

	if dev.StaticPrivateKey != nil {
		snap.StaticPrivateKey = dev.StaticPrivateKey
	}
	if dev.StaticPublicKey != nil {
		snap.StaticPublicKey = dev.StaticPublicKey
	}
	if dev.Certificate != nil {
		snap.Certificate = dev.Certificate
	}
	if dev.ChipID != nil {
		snap.ChipID = dev.ChipID
	}
	if dev.RiscvFwVersion != nil {
		snap.RiscvFwVersion = dev.RiscvFwVersion
	}
	if dev.SpectFwVersion != nil {
		snap.SpectFwVersion = dev.SpectFwVersion
	}
	if dev.SerialCode != nil {
		snap.SerialCode = dev.SerialCode
	}
	snap.DisableEncryption = dev.DisableEncryption
	snap.DebugRandomValue = dev.DebugRandomValue
	snap.InitByte = dev.InitByte
	snap.BusyPattern = dev.BusyPattern
	snap.IrreversibleConfig = dev.IrreversibleConfig
	snap.ReversibleConfig = dev.ReversibleConfig

	for key, entry := range dev.PairingKeys {
		slot, err := strconv.Atoi(key)
		if err != nil || slot < 0 || slot >= uap.NumSlots {
			return nil, fmt.Errorf("invalid pairing key slot %q", key)
		}
		snap.PairingKeys[slot] = device.PairingKeySnapshot{
			State: entry.State,
			Key:   entry.Key,
		}
	}

	if len(dev.UserData) > 0 {
		snap.UserData = map[int][]byte{}
		for key, data := range dev.UserData {
			slot, err := strconv.Atoi(key)
			if err != nil || slot < 0 || slot >= device.UserDataSlots {
				return nil, fmt.Errorf("invalid user data slot %q", key)
			}
			snap.UserData[slot] = data
		}
	}
	return snap, nil
}
