// Package config models the chip configuration: a bank of 32-bit registers
// kept in two parallel copies. The irreversible copy is fixed at manufacture
// time, the reversible copy can have bits cleared in the field, and the
// effective configuration any check consults is their bitwise AND.
package config

import "fmt"

// Register is a word-aligned address in the configuration object space.
type Register uint16

// Known configuration registers. The low quarter of the address space holds
// chip behavior configuration, the rest holds per-command access privilege
// (UAP) masks.
const (
	CfgStartUp   Register = 0x00
	CfgSleepMode Register = 0x04
	CfgSensors   Register = 0x08
	CfgDebug     Register = 0x10

	CfgUAPPairingKeyWrite      Register = 0x20
	CfgUAPPairingKeyRead       Register = 0x24
	CfgUAPPairingKeyInvalidate Register = 0x28
	CfgUAPConfigWrite          Register = 0x30
	CfgUAPConfigRead           Register = 0x34
	CfgUAPConfigErase          Register = 0x38

	CfgUAPPing           Register = 0x100
	CfgUAPMemDataWrite   Register = 0x110
	CfgUAPMemDataRead    Register = 0x114
	CfgUAPMemDataErase   Register = 0x118
	CfgUAPRandomValueGet Register = 0x120
	CfgUAPSerialCodeGet  Register = 0x170
)

// registerNames drives snapshots and logging. Order follows the address map.
var registerNames = []struct {
	reg  Register
	name string
}{
	{CfgStartUp, "cfg_start_up"},
	{CfgSleepMode, "cfg_sleep_mode"},
	{CfgSensors, "cfg_sensors"},
	{CfgDebug, "cfg_debug"},
	{CfgUAPPairingKeyWrite, "cfg_uap_pairing_key_write"},
	{CfgUAPPairingKeyRead, "cfg_uap_pairing_key_read"},
	{CfgUAPPairingKeyInvalidate, "cfg_uap_pairing_key_invalidate"},
	{CfgUAPConfigWrite, "cfg_uap_config_write"},
	{CfgUAPConfigRead, "cfg_uap_config_read"},
	{CfgUAPConfigErase, "cfg_uap_config_erase"},
	{CfgUAPPing, "cfg_uap_ping"},
	{CfgUAPMemDataWrite, "cfg_uap_mem_data_write"},
	{CfgUAPMemDataRead, "cfg_uap_mem_data_read"},
	{CfgUAPMemDataErase, "cfg_uap_mem_data_erase"},
	{CfgUAPRandomValueGet, "cfg_uap_random_value_get"},
	{CfgUAPSerialCodeGet, "cfg_uap_serial_code_get"},
}

// Registers returns the known registers in address order.
func Registers() []Register {
	out := make([]Register, len(registerNames))
	for i, e := range registerNames {
		out[i] = e.reg
	}
	return out
}

// String returns the register's snapshot name, or its hex address if it has
// no name.
func (r Register) String() string {
	for _, e := range registerNames {
		if e.reg == r {
			return e.name
		}
	}
	return fmt.Sprintf("0x%04x", uint16(r))
}

// Known reports whether the address names one of the registers above. The
// register map is a closed enumeration; addresses between entries are gaps.
func Known(r Register) bool {
	for _, e := range registerNames {
		if e.reg == r {
			return true
		}
	}
	return false
}

// ByName resolves a snapshot name to its register.
func ByName(name string) (Register, bool) {
	for _, e := range registerNames {
		if e.name == name {
			return e.reg, true
		}
	}
	return 0, false
}
