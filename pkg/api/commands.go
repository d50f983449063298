package api

import "github.com/backkem/tropic01/pkg/message"

// L3 command identifiers.
const (
	IDPing                 uint8 = 0x01
	IDPairingKeyWrite      uint8 = 0x10
	IDPairingKeyRead       uint8 = 0x11
	IDPairingKeyInvalidate uint8 = 0x12
	IDConfigWrite          uint8 = 0x20
	IDConfigRead           uint8 = 0x21
	IDConfigErase          uint8 = 0x22
	IDConfigWriteBit       uint8 = 0x30
	IDMemDataWrite         uint8 = 0x40
	IDMemDataRead          uint8 = 0x41
	IDMemDataErase         uint8 = 0x42
	IDRandomValueGet       uint8 = 0x50
	IDSerialCodeGet        uint8 = 0xA0
)

// MaxCommandDataLen bounds the variable data of one L3 command, the largest
// plaintext minus the command id byte.
const MaxCommandDataLen = 4095

// UserDataSlotSize is the capacity of one user-data slot.
const UserDataSlotSize = 444

// L3 command shapes.
var (
	PingCommand = message.MustShape(IDPing, "Ping_Cmd",
		message.U8ArrayRange("data_in", 0, MaxCommandDataLen),
	)
	PairingKeyWriteCommand = message.MustShape(IDPairingKeyWrite, "Pairing_Key_Write_Cmd",
		message.U8Field("slot"),
		message.U8Array("s_hipub", 32),
	)
	PairingKeyReadCommand = message.MustShape(IDPairingKeyRead, "Pairing_Key_Read_Cmd",
		message.U8Field("slot"),
	)
	PairingKeyInvalidateCommand = message.MustShape(IDPairingKeyInvalidate, "Pairing_Key_Invalidate_Cmd",
		message.U8Field("slot"),
	)
	ConfigWriteCommand = message.MustShape(IDConfigWrite, "Config_Write_Cmd",
		message.U16Field("address"),
		message.U32Field("value"),
	)
	ConfigReadCommand = message.MustShape(IDConfigRead, "Config_Read_Cmd",
		message.U16Field("address"),
	)
	ConfigEraseCommand   = message.MustShape(IDConfigErase, "Config_Erase_Cmd")
	ConfigWriteBitCommand = message.MustShape(IDConfigWriteBit, "Config_Write_Bit_Cmd",
		message.U16Field("address"),
		message.U8Field("bit_index"),
	)
	MemDataWriteCommand = message.MustShape(IDMemDataWrite, "Mem_Data_Write_Cmd",
		message.U16Field("udata_slot"),
		message.U8ArrayRange("data", 1, UserDataSlotSize),
	)
	MemDataReadCommand = message.MustShape(IDMemDataRead, "Mem_Data_Read_Cmd",
		message.U16Field("udata_slot"),
	)
	MemDataEraseCommand = message.MustShape(IDMemDataErase, "Mem_Data_Erase_Cmd",
		message.U16Field("udata_slot"),
	)
	RandomValueGetCommand = message.MustShape(IDRandomValueGet, "Random_Value_Get_Cmd",
		message.U8Field("n_bytes"),
	)
	SerialCodeGetCommand = message.MustShape(IDSerialCodeGet, "Serial_Code_Get_Cmd")
)

// L3 result shapes. The result code byte travels outside these payloads.
var (
	PingResult = message.MustShape(IDPing, "Ping_Res",
		message.U8ArrayRange("data_out", 0, MaxCommandDataLen),
	)
	PairingKeyReadResult = message.MustShape(IDPairingKeyRead, "Pairing_Key_Read_Res",
		message.U8Array("s_hipub", 32),
	)
	ConfigReadResult = message.MustShape(IDConfigRead, "Config_Read_Res",
		message.U32Field("value"),
	)
	MemDataReadResult = message.MustShape(IDMemDataRead, "Mem_Data_Read_Res",
		message.U8ArrayRange("data", 0, UserDataSlotSize),
	)
	RandomValueGetResult = message.MustShape(IDRandomValueGet, "Random_Value_Get_Res",
		message.U8ArrayRange("random_data", 0, 255),
	)
	SerialCodeGetResult = message.MustShape(IDSerialCodeGet, "Serial_Code_Get_Res",
		message.U8ArrayRange("serial_code", 0, 32),
	)
)

// Commands builds the registry of inbound L3 command shapes.
func Commands() *message.Registry {
	r := message.NewRegistry()
	for _, s := range []*message.Shape{
		PingCommand,
		PairingKeyWriteCommand,
		PairingKeyReadCommand,
		PairingKeyInvalidateCommand,
		ConfigWriteCommand,
		ConfigReadCommand,
		ConfigEraseCommand,
		ConfigWriteBitCommand,
		MemDataWriteCommand,
		MemDataReadCommand,
		MemDataEraseCommand,
		RandomValueGetCommand,
		SerialCodeGetCommand,
	} {
		r.MustRegister(message.LayerCommand, s)
	}
	return r
}
