package message

// Layer identifies a protocol layer in the shape registry. L2 frames travel
// in the clear on the transport; L3 packets travel inside the encrypted
// payload of an L2 Encrypted_Cmd exchange.
type Layer uint8

const (
	// LayerRequest covers L2 request/response frames.
	LayerRequest Layer = iota

	// LayerCommand covers L3 command/result packets.
	LayerCommand
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerRequest:
		return "L2"
	case LayerCommand:
		return "L3"
	default:
		return "unknown"
	}
}

// Status is the STATUS field of an L2 response frame.
type Status uint8

// L2 status codes.
const (
	StatusRequestOK    Status = 0x01 // request received, CRC valid, processed
	StatusResultOK     Status = 0x02 // final chunk of an L3 result
	StatusRequestCont  Status = 0x03 // more command chunks expected
	StatusResultCont   Status = 0x04 // more result chunks follow
	StatusRespDisabled Status = 0x78 // requested feature disabled by configuration
	StatusHandshakeErr Status = 0x79 // secure channel handshake failed
	StatusNoSession    Status = 0x7A // encrypted command without a session
	StatusTagErr       Status = 0x7B // invalid command authentication tag
	StatusCRCErr       Status = 0x7C // incorrect CRC-16 checksum
	StatusUnknownReq   Status = 0x7E // unknown request id
	StatusGenericErr   Status = 0x7F // unclassified error
	StatusNoResp       Status = 0xFF // no response frame available
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusRequestOK:
		return "REQ_OK"
	case StatusResultOK:
		return "RES_OK"
	case StatusRequestCont:
		return "REQ_CONT"
	case StatusResultCont:
		return "RES_CONT"
	case StatusRespDisabled:
		return "RESP_DISABLED"
	case StatusHandshakeErr:
		return "HSK_ERR"
	case StatusNoSession:
		return "NO_SESSION"
	case StatusTagErr:
		return "TAG_ERR"
	case StatusCRCErr:
		return "CRC_ERR"
	case StatusUnknownReq:
		return "UNKNOWN_REQ"
	case StatusGenericErr:
		return "GEN_ERR"
	case StatusNoResp:
		return "NO_RESP"
	default:
		return "unknown"
	}
}

// Result is the RESULT field of an L3 result packet.
type Result uint8

// L3 result codes.
const (
	ResultOK           Result = 0xC3 // command executed
	ResultFail         Result = 0x3C // generic failure
	ResultUnauthorized Result = 0x01 // insufficient user access privileges
	ResultInvalidCmd   Result = 0x02 // unknown command id
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultFail:
		return "FAIL"
	case ResultUnauthorized:
		return "UNAUTHORIZED"
	case ResultInvalidCmd:
		return "INVALID_CMD"
	default:
		return "unknown"
	}
}

// CHIP_STATUS flag bits, sent as the first byte of every transport exchange.
const (
	ChipStatusReady uint8 = 0x01 // ready to receive a request or command
	ChipStatusAlarm uint8 = 0x02 // alarm mode
	ChipStatusStart uint8 = 0x04 // start-up mode
)

// Wire format constants.
const (
	// GetRespID is the id byte a host sends to read the pending response.
	GetRespID uint8 = 0xAA

	// PaddingByte fills unused positions of a transport exchange.
	PaddingByte byte = 0x00

	// MaxFrameDataLen is the maximum payload length of one L2 frame.
	MaxFrameDataLen = 252

	// ChunkSize is the chunk length the chip uses when splitting an
	// encrypted result across L2 frames.
	ChunkSize = 128

	// TagSize is the AEAD authentication tag length in bytes.
	TagSize = 16

	// frameOverhead is id/status (1) + length (1) + CRC (2).
	frameOverhead = 4
)
