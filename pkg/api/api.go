// Package api is the message schema catalog: the concrete shapes of every L2
// request/response frame and L3 command/result packet the chip speaks. The
// protocol core consumes these through the generic registry in pkg/message;
// nothing outside this package hardcodes a field layout.
package api

import "github.com/backkem/tropic01/pkg/message"

// L2 request identifiers.
const (
	IDGetInfo      uint8 = 0x01
	IDHandshake    uint8 = 0x02
	IDEncryptedCmd uint8 = 0x04
	IDSessionAbort uint8 = 0x08
	IDResend       uint8 = 0x10
	IDSleep        uint8 = 0x20
	IDGetLog       uint8 = 0xA2
	IDStartup      uint8 = 0xB3
)

// Get_Info object identifiers.
const (
	ObjectX509Certificate uint64 = 0x00
	ObjectChipID          uint64 = 0x01
	ObjectRiscvFwVersion  uint64 = 0x02
	ObjectSpectFwVersion  uint64 = 0x04
)

// Sleep_Req kinds.
const (
	SleepKindSleep     uint64 = 0x05
	SleepKindDeepSleep uint64 = 0x0A
)

// Startup_Req kinds.
const (
	StartupReboot            uint64 = 0x01
	StartupMaintenanceReboot uint64 = 0x03
)

// Get_Info object sizes. Shorter stored objects are zero-padded to these on
// the wire.
const (
	CertificateBlockSize = 128
	CertificateSize      = 512
	ChipIDSize           = 128
	FwVersionSize        = 4
)

// CertificateBlocks is the number of blocks covering the stock certificate
// size. Hosts read this many to assemble a full certificate.
const CertificateBlocks = CertificateSize / CertificateBlockSize

// MaxCertificateBlockIndex is the highest block_index Get_Info serves for
// the certificate object. Blocks past the stored bytes read as zeros.
const MaxCertificateBlockIndex = 29

// L2 request shapes.
var (
	GetInfoRequest = message.MustShape(IDGetInfo, "Get_Info_Req",
		message.U8Field("object_id"),
		message.U8Field("block_index"),
	)
	HandshakeRequest = message.MustShape(IDHandshake, "Handshake_Req",
		message.U8Array("e_hpub", 32),
		message.U8Field("pkey_index"),
	)
	EncryptedCmdRequest = message.MustShape(IDEncryptedCmd, "Encrypted_Cmd_Req",
		message.U8ArrayRange("l3_chunk", 1, message.MaxFrameDataLen),
	)
	SessionAbortRequest = message.MustShape(IDSessionAbort, "Encrypted_Session_Abt_Req")
	ResendRequest       = message.MustShape(IDResend, "Resend_Req")
	SleepRequest        = message.MustShape(IDSleep, "Sleep_Req",
		message.U8Field("sleep_kind"),
	)
	GetLogRequest  = message.MustShape(IDGetLog, "Get_Log_Req")
	StartupRequest = message.MustShape(IDStartup, "Startup_Req",
		message.U8Field("startup_id"),
	)
)

// L2 response shapes, keyed by the same identifiers as their requests.
var (
	GetInfoResponse = message.MustShape(IDGetInfo, "Get_Info_Rsp",
		message.U8ArrayRange("object", 1, CertificateBlockSize),
	)
	HandshakeResponse = message.MustShape(IDHandshake, "Handshake_Rsp",
		message.U8Array("e_tpub", 32),
		message.U8Array("t_tauth", 16),
	)
	EncryptedCmdResponse = message.MustShape(IDEncryptedCmd, "Encrypted_Cmd_Rsp",
		message.U8ArrayRange("l3_chunk", 1, message.MaxFrameDataLen),
	)
	GetLogResponse = message.MustShape(IDGetLog, "Get_Log_Rsp",
		message.U8ArrayRange("log_msg", 0, 255),
	)
)

// Requests builds the registry of inbound L2 request shapes.
func Requests() *message.Registry {
	r := message.NewRegistry()
	for _, s := range []*message.Shape{
		GetInfoRequest,
		HandshakeRequest,
		EncryptedCmdRequest,
		SessionAbortRequest,
		ResendRequest,
		SleepRequest,
		GetLogRequest,
		StartupRequest,
	} {
		r.MustRegister(message.LayerRequest, s)
	}
	return r
}
