package device

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"golang.org/x/crypto/curve25519"

	"github.com/backkem/tropic01/pkg/api"
	"github.com/backkem/tropic01/pkg/config"
	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/securechannel"
	"github.com/backkem/tropic01/pkg/wire"
)

func testKeyPair(t *testing.T) (priv, pub []byte) {
	t.Helper()
	priv = make([]byte, securechannel.KeyLen)
	if _, err := rand.Read(priv); err != nil {
		t.Fatalf("rand: %v", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("derive public key: %v", err)
	}
	return priv, pub
}

// testEnv wires one device and the host-side key material to talk to it.
type testEnv struct {
	t     *testing.T
	dev   *Device
	codec *wire.Codec

	stPub  []byte
	shPriv []byte
	shPub  []byte

	host *securechannel.HostSession
}

type envOption func(*DeviceConfig, *testEnv)

func withIrreversible(values map[config.Register]uint32) envOption {
	return func(cfg *DeviceConfig, _ *testEnv) {
		obj := config.NewObject()
		for reg, v := range values {
			if err := obj.Store(uint16(reg), v); err != nil {
				panic(err)
			}
		}
		cfg.IrreversibleConfig = obj
	}
}

func withDisabledEncryption() envOption {
	return func(cfg *DeviceConfig, _ *testEnv) {
		cfg.DisableEncryption = true
	}
}

func withBlankSlot0() envOption {
	return func(cfg *DeviceConfig, _ *testEnv) {
		cfg.PairingKeys = NewPairingKeys()
	}
}

// newEnv creates a device with the host pairing key in slot 0.
func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{t: t, codec: wire.Default}

	stPriv, stPub := testKeyPair(t)
	env.stPub = stPub
	env.shPriv, env.shPub = testKeyPair(t)

	keys := NewPairingKeys()
	slot, _ := keys.Slot(0)
	if err := slot.Write(env.shPub); err != nil {
		t.Fatalf("seed pairing key: %v", err)
	}

	cfg := DeviceConfig{
		StaticPrivateKey: stPriv,
		StaticPublicKey:  stPub,
		PairingKeys:      keys,
		Certificate:      bytes.Repeat([]byte{0xC5}, 200),
		ChipID:           []byte("test_chip"),
		SerialCode:       []byte("SN-0001"),
	}
	for _, opt := range opts {
		opt(&cfg, env)
	}

	dev, err := NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	env.dev = dev
	env.host = securechannel.NewHostSession(nil)
	return env
}

// request runs one encoded request through the dispatcher and returns the
// response frames.
func (env *testEnv) request(m *message.Message) [][]byte {
	env.t.Helper()
	frame, err := message.EncodeRequest(env.codec, m)
	if err != nil {
		env.t.Fatalf("encode request: %v", err)
	}
	frames, err := env.dev.ProcessRequest(frame)
	if err != nil {
		env.t.Fatalf("ProcessRequest: %v", err)
	}
	return frames
}

// single runs a request expected to yield exactly one response frame.
func (env *testEnv) single(m *message.Message) (message.Status, []byte) {
	env.t.Helper()
	frames := env.request(m)
	if len(frames) != 1 {
		env.t.Fatalf("got %d response frames, want 1", len(frames))
	}
	status, payload, err := message.ParseResponse(env.codec, frames[0])
	if err != nil {
		env.t.Fatalf("parse response: %v", err)
	}
	return status, payload
}

// handshake establishes a session over the given slot.
func (env *testEnv) handshake(slot uint8) {
	env.t.Helper()
	ehPub, err := env.host.CreateHandshakeRequest()
	if err != nil {
		env.t.Fatalf("create handshake: %v", err)
	}
	status, payload := env.single(message.New(api.HandshakeRequest).
		SetBytes("e_hpub", ehPub).
		SetUint("pkey_index", uint64(slot)))
	if status != message.StatusRequestOK {
		env.t.Fatalf("handshake status = %s", status)
	}
	rsp, err := message.Decode(env.codec, api.HandshakeResponse, payload)
	if err != nil {
		env.t.Fatalf("decode handshake response: %v", err)
	}
	err = env.host.ProcessHandshakeResponse(slot, env.stPub, env.shPriv,
		rsp.Bytes("e_tpub"), rsp.Bytes("t_tauth"))
	if err != nil {
		env.t.Fatalf("verify handshake: %v", err)
	}
}

// command runs one L3 command through the encrypted path and returns its
// result code and decoded payload.
func (env *testEnv) command(cmd *message.Message) (message.Result, []byte) {
	env.t.Helper()
	plain, err := message.EncodeCommand(env.codec, cmd)
	if err != nil {
		env.t.Fatalf("encode command: %v", err)
	}
	sealed, err := env.host.EncryptCommand(plain)
	if err != nil {
		env.t.Fatalf("encrypt command: %v", err)
	}
	resultPlain := env.exchangeSealed(sealed)
	result, data, err := message.ParseResult(resultPlain)
	if err != nil {
		env.t.Fatalf("parse result: %v", err)
	}
	return result, data
}

// exchangeSealed chunks a sealed packet through Encrypted_Cmd requests and
// reassembles and decrypts the result.
func (env *testEnv) exchangeSealed(sealed []byte) []byte {
	env.t.Helper()
	encoded, err := message.EncodeEncrypted(env.codec, sealed)
	if err != nil {
		env.t.Fatalf("encode encrypted: %v", err)
	}

	chunks := message.Chunks(encoded)
	var frames [][]byte
	for i, c := range chunks {
		frames = env.request(message.New(api.EncryptedCmdRequest).SetBytes("l3_chunk", c))
		if i < len(chunks)-1 {
			if len(frames) != 1 {
				env.t.Fatalf("mid-command: got %d frames", len(frames))
			}
			status, _, err := message.ParseResponse(env.codec, frames[0])
			if err != nil || status != message.StatusRequestCont {
				env.t.Fatalf("mid-command status = %s, err = %v", status, err)
			}
		}
	}
	if len(frames) < 2 {
		env.t.Fatalf("final command exchange: got %d frames", len(frames))
	}

	status, _, err := message.ParseResponse(env.codec, frames[0])
	if err != nil || status != message.StatusRequestOK {
		env.t.Fatalf("ack status = %s, err = %v", status, err)
	}
	var raw []byte
	for i, f := range frames[1:] {
		status, payload, err := message.ParseResponse(env.codec, f)
		if err != nil {
			env.t.Fatalf("result chunk %d: %v", i, err)
		}
		want := message.StatusResultCont
		if i == len(frames)-2 {
			want = message.StatusResultOK
		}
		if status != want {
			env.t.Fatalf("result chunk %d status = %s, want %s", i, status, want)
		}
		raw = append(raw, payload...)
	}

	packet, err := message.ParseEncrypted(env.codec, raw)
	if err != nil {
		env.t.Fatalf("parse encrypted result: %v", err)
	}
	plain, err := env.host.DecryptResult(packet.Sealed())
	if err != nil {
		env.t.Fatalf("decrypt result: %v", err)
	}
	return plain
}

func TestGetInfo(t *testing.T) {
	env := newEnv(t)

	t.Run("CertificateBlock", func(t *testing.T) {
		status, payload := env.single(message.New(api.GetInfoRequest).
			SetUint("object_id", api.ObjectX509Certificate).
			SetUint("block_index", 0))
		if status != message.StatusRequestOK {
			t.Fatalf("status = %s", status)
		}
		want := bytes.Repeat([]byte{0xC5}, 128)
		if !bytes.Equal(payload, want) {
			t.Fatalf("block 0 = %x", payload)
		}
	})

	t.Run("CertificateTailPadded", func(t *testing.T) {
		// 200 byte certificate: block 1 holds 72 bytes then zeros.
		status, payload := env.single(message.New(api.GetInfoRequest).
			SetUint("object_id", api.ObjectX509Certificate).
			SetUint("block_index", 1))
		if status != message.StatusRequestOK {
			t.Fatalf("status = %s", status)
		}
		want := append(bytes.Repeat([]byte{0xC5}, 72), make([]byte, 56)...)
		if !bytes.Equal(payload, want) {
			t.Fatalf("block 1 = %x", payload)
		}
	})

	t.Run("CertificatePastEndBlocksZero", func(t *testing.T) {
		// Blocks past the 200 byte certificate up to index 29 read as
		// all zeros.
		for _, block := range []uint64{uint64(api.CertificateBlocks), api.MaxCertificateBlockIndex} {
			status, payload := env.single(message.New(api.GetInfoRequest).
				SetUint("object_id", api.ObjectX509Certificate).
				SetUint("block_index", block))
			if status != message.StatusRequestOK {
				t.Fatalf("block %d status = %s", block, status)
			}
			if !bytes.Equal(payload, make([]byte, api.CertificateBlockSize)) {
				t.Fatalf("block %d = %x", block, payload)
			}
		}
	})

	t.Run("CertificateBlockOutOfRange", func(t *testing.T) {
		status, payload := env.single(message.New(api.GetInfoRequest).
			SetUint("object_id", api.ObjectX509Certificate).
			SetUint("block_index", api.MaxCertificateBlockIndex+1))
		if status != message.StatusGenericErr {
			t.Fatalf("status = %s", status)
		}
		if len(payload) != 0 {
			t.Fatalf("payload = %x", payload)
		}
	})

	t.Run("ChipIDPadded", func(t *testing.T) {
		status, payload := env.single(message.New(api.GetInfoRequest).
			SetUint("object_id", api.ObjectChipID).
			SetUint("block_index", 0))
		if status != message.StatusRequestOK {
			t.Fatalf("status = %s", status)
		}
		if len(payload) != api.ChipIDSize || !bytes.HasPrefix(payload, []byte("test_chip")) {
			t.Fatalf("chip id = %x", payload)
		}
	})

	t.Run("UnknownObject", func(t *testing.T) {
		status, payload := env.single(message.New(api.GetInfoRequest).
			SetUint("object_id", 0x07).
			SetUint("block_index", 0))
		if status != message.StatusGenericErr || len(payload) != 0 {
			t.Fatalf("status = %s, payload = %x", status, payload)
		}
	})
}

func TestDispatchErrors(t *testing.T) {
	env := newEnv(t)

	t.Run("BadCRC", func(t *testing.T) {
		frame, err := message.EncodeRequest(env.codec, message.New(api.GetLogRequest))
		if err != nil {
			t.Fatal(err)
		}
		frame[len(frame)-1] ^= 0x01
		frames, err := env.dev.ProcessRequest(frame)
		if err != nil {
			t.Fatal(err)
		}
		status, _, err := message.ParseResponse(env.codec, frames[0])
		if err != nil || status != message.StatusCRCErr {
			t.Fatalf("status = %s, err = %v", status, err)
		}
	})

	t.Run("UnknownRequest", func(t *testing.T) {
		frame := []byte{0xB0, 0x00}
		frame = appendTestCRC(env.codec, frame)
		frames, err := env.dev.ProcessRequest(frame)
		if err != nil {
			t.Fatal(err)
		}
		status, _, err := message.ParseResponse(env.codec, frames[0])
		if err != nil || status != message.StatusUnknownReq {
			t.Fatalf("status = %s, err = %v", status, err)
		}
	})

	t.Run("MalformedRequest", func(t *testing.T) {
		// Get_Info_Req with a truncated payload.
		frame := []byte{api.IDGetInfo, 0x01, 0x00}
		frame = appendTestCRC(env.codec, frame)
		frames, err := env.dev.ProcessRequest(frame)
		if err != nil {
			t.Fatal(err)
		}
		status, _, err := message.ParseResponse(env.codec, frames[0])
		if err != nil || status != message.StatusCRCErr {
			t.Fatalf("status = %s, err = %v", status, err)
		}
	})
}

func appendTestCRC(c *wire.Codec, frame []byte) []byte {
	crc := message.CRC16(frame)
	frame, _ = c.AppendUint(frame, wire.U16, uint64(crc))
	return frame
}

func TestPingRoundTrip(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	payload := bytes.Repeat([]byte{0xA5, 0x5A}, 300)
	result, data := env.command(message.New(api.PingCommand).SetBytes("data_in", payload))
	if result != message.ResultOK {
		t.Fatalf("result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.PingResult, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(rsp.Bytes("data_out"), payload) {
		t.Fatal("echo mismatch")
	}
}

func TestHandshakeBlankSlot(t *testing.T) {
	env := newEnv(t, withBlankSlot0())
	ehPub, err := env.host.CreateHandshakeRequest()
	if err != nil {
		t.Fatal(err)
	}
	status, _ := env.single(message.New(api.HandshakeRequest).
		SetBytes("e_hpub", ehPub).
		SetUint("pkey_index", 0))
	if status != message.StatusHandshakeErr {
		t.Fatalf("status = %s", status)
	}
}

func TestHandshakeBadIndex(t *testing.T) {
	env := newEnv(t)
	ehPub, err := env.host.CreateHandshakeRequest()
	if err != nil {
		t.Fatal(err)
	}
	status, _ := env.single(message.New(api.HandshakeRequest).
		SetBytes("e_hpub", ehPub).
		SetUint("pkey_index", 9))
	if status != message.StatusHandshakeErr {
		t.Fatalf("status = %s", status)
	}
}

func TestUnauthorizedCommand(t *testing.T) {
	// Slot 0 is paired but the ping privilege field grants no slot.
	env := newEnv(t, withIrreversible(map[config.Register]uint32{
		config.CfgUAPPing: 0xFFFFFF00,
	}))
	env.handshake(0)

	result, _ := env.command(message.New(api.PingCommand).SetBytes("data_in", []byte("hi")))
	if result != message.ResultUnauthorized {
		t.Fatalf("result = %s", result)
	}
}

func TestNoSessionCommand(t *testing.T) {
	env := newEnv(t)
	status, _ := env.single(message.New(api.EncryptedCmdRequest).
		SetBytes("l3_chunk", []byte{0x01, 0x00, 0x00}))
	if status != message.StatusNoSession {
		t.Fatalf("status = %s", status)
	}
}

func TestSessionAbort(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	status, _ := env.single(message.New(api.SessionAbortRequest))
	if status != message.StatusRequestOK {
		t.Fatalf("abort status = %s", status)
	}

	status, _ = env.single(message.New(api.EncryptedCmdRequest).
		SetBytes("l3_chunk", []byte{0x01, 0x00, 0x00}))
	if status != message.StatusNoSession {
		t.Fatalf("post-abort status = %s", status)
	}
}

func TestTamperedCommandTag(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	plain, err := message.EncodeCommand(env.codec,
		message.New(api.PingCommand).SetBytes("data_in", []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := env.host.EncryptCommand(plain)
	if err != nil {
		t.Fatal(err)
	}
	sealed[0] ^= 0x80
	encoded, err := message.EncodeEncrypted(env.codec, sealed)
	if err != nil {
		t.Fatal(err)
	}

	status, _ := env.single(message.New(api.EncryptedCmdRequest).SetBytes("l3_chunk", encoded))
	if status != message.StatusTagErr {
		t.Fatalf("status = %s", status)
	}

	// The session is dropped after an authentication failure.
	status, _ = env.single(message.New(api.EncryptedCmdRequest).
		SetBytes("l3_chunk", []byte{0x01, 0x00, 0x00}))
	if status != message.StatusNoSession {
		t.Fatalf("post-tamper status = %s", status)
	}
}

func TestConfigCommands(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	read := func(reg config.Register) uint32 {
		t.Helper()
		result, data := env.command(message.New(api.ConfigReadCommand).
			SetUint("address", uint64(reg)))
		if result != message.ResultOK {
			t.Fatalf("config read result = %s", result)
		}
		rsp, err := message.Decode(env.codec, api.ConfigReadResult, data)
		if err != nil {
			t.Fatal(err)
		}
		return uint32(rsp.Uint("value"))
	}

	t.Run("WriteThenRead", func(t *testing.T) {
		result, _ := env.command(message.New(api.ConfigWriteCommand).
			SetUint("address", uint64(config.CfgStartUp)).
			SetUint("value", 0x1234_5678))
		if result != message.ResultOK {
			t.Fatalf("write result = %s", result)
		}
		if got := read(config.CfgStartUp); got != 0x1234_5678 {
			t.Fatalf("value = %#08x", got)
		}
	})

	t.Run("SecondWriteFails", func(t *testing.T) {
		result, _ := env.command(message.New(api.ConfigWriteCommand).
			SetUint("address", uint64(config.CfgStartUp)).
			SetUint("value", 0x0000_0001))
		if result != message.ResultFail {
			t.Fatalf("result = %s", result)
		}
		if got := read(config.CfgStartUp); got != 0x1234_5678 {
			t.Fatalf("value changed to %#08x", got)
		}
	})

	t.Run("WriteBit", func(t *testing.T) {
		result, _ := env.command(message.New(api.ConfigWriteBitCommand).
			SetUint("address", uint64(config.CfgStartUp)).
			SetUint("bit_index", 3))
		if result != message.ResultOK {
			t.Fatalf("result = %s", result)
		}
		if got := read(config.CfgStartUp); got != 0x1234_5670 {
			t.Fatalf("value = %#08x", got)
		}
	})

	t.Run("WriteBitOutOfRange", func(t *testing.T) {
		before := read(config.CfgStartUp)
		result, _ := env.command(message.New(api.ConfigWriteBitCommand).
			SetUint("address", uint64(config.CfgStartUp)).
			SetUint("bit_index", 32))
		if result != message.ResultFail {
			t.Fatalf("result = %s", result)
		}
		if got := read(config.CfgStartUp); got != before {
			t.Fatalf("value changed to %#08x", got)
		}
	})

	t.Run("UnknownAddress", func(t *testing.T) {
		result, _ := env.command(message.New(api.ConfigWriteCommand).
			SetUint("address", 0x0C).
			SetUint("value", 0))
		if result != message.ResultFail {
			t.Fatalf("result = %s", result)
		}
	})

	t.Run("Erase", func(t *testing.T) {
		result, _ := env.command(message.New(api.ConfigEraseCommand))
		if result != message.ResultOK {
			t.Fatalf("result = %s", result)
		}
		if got := read(config.CfgStartUp); got != config.ResetValue {
			t.Fatalf("value = %#08x", got)
		}
	})
}

func TestMemDataCommands(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	payload := bytes.Repeat([]byte{0xD7}, 100)

	result, _ := env.command(message.New(api.MemDataWriteCommand).
		SetUint("udata_slot", 5).SetBytes("data", payload))
	if result != message.ResultOK {
		t.Fatalf("write result = %s", result)
	}

	result, data := env.command(message.New(api.MemDataReadCommand).SetUint("udata_slot", 5))
	if result != message.ResultOK {
		t.Fatalf("read result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.MemDataReadResult, data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rsp.Bytes("data"), payload) {
		t.Fatal("read back mismatch")
	}

	result, _ = env.command(message.New(api.MemDataWriteCommand).
		SetUint("udata_slot", 5).SetBytes("data", []byte("again")))
	if result != message.ResultFail {
		t.Fatalf("second write result = %s", result)
	}

	result, _ = env.command(message.New(api.MemDataEraseCommand).SetUint("udata_slot", 5))
	if result != message.ResultOK {
		t.Fatalf("erase result = %s", result)
	}

	result, _ = env.command(message.New(api.MemDataWriteCommand).
		SetUint("udata_slot", 5).SetBytes("data", []byte("again")))
	if result != message.ResultOK {
		t.Fatalf("post-erase write result = %s", result)
	}
}

func TestPairingKeyCommands(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	_, newPub := testKeyPair(t)

	result, _ := env.command(message.New(api.PairingKeyWriteCommand).
		SetUint("slot", 1).SetBytes("s_hipub", newPub))
	if result != message.ResultOK {
		t.Fatalf("write result = %s", result)
	}

	result, data := env.command(message.New(api.PairingKeyReadCommand).SetUint("slot", 1))
	if result != message.ResultOK {
		t.Fatalf("read result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.PairingKeyReadResult, data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rsp.Bytes("s_hipub"), newPub) {
		t.Fatal("key mismatch")
	}

	result, _ = env.command(message.New(api.PairingKeyInvalidateCommand).SetUint("slot", 1))
	if result != message.ResultOK {
		t.Fatalf("invalidate result = %s", result)
	}
	result, _ = env.command(message.New(api.PairingKeyReadCommand).SetUint("slot", 1))
	if result != message.ResultFail {
		t.Fatalf("post-invalidate read result = %s", result)
	}

	result, _ = env.command(message.New(api.PairingKeyReadCommand).SetUint("slot", 7))
	if result != message.ResultUnauthorized {
		t.Fatalf("bad slot result = %s", result)
	}
}

func TestRandomValueGet(t *testing.T) {
	env := newEnv(t, func(cfg *DeviceConfig, _ *testEnv) {
		cfg.DebugRandomValue = []byte{0x11, 0x22, 0x33}
	})
	env.handshake(0)

	result, data := env.command(message.New(api.RandomValueGetCommand).SetUint("n_bytes", 5))
	if result != message.ResultOK {
		t.Fatalf("result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.RandomValueGetResult, data)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x11, 0x22}
	if !bytes.Equal(rsp.Bytes("random_data"), want) {
		t.Fatalf("random_data = %x", rsp.Bytes("random_data"))
	}
}

func TestSerialCodeGet(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	result, data := env.command(message.New(api.SerialCodeGetCommand))
	if result != message.ResultOK {
		t.Fatalf("result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.SerialCodeGetResult, data)
	if err != nil {
		t.Fatal(err)
	}
	if string(rsp.Bytes("serial_code")) != "SN-0001" {
		t.Fatalf("serial_code = %q", rsp.Bytes("serial_code"))
	}
}

func TestUnknownCommandID(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	sealed, err := env.host.EncryptCommand([]byte{0xEE})
	if err != nil {
		t.Fatal(err)
	}
	result, _, err := message.ParseResult(env.exchangeSealed(sealed))
	if err != nil {
		t.Fatal(err)
	}
	if result != message.ResultInvalidCmd {
		t.Fatalf("result = %s", result)
	}
}

func TestMalformedCommand(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	// Pairing_Key_Read_Cmd missing its slot byte.
	sealed, err := env.host.EncryptCommand([]byte{api.IDPairingKeyRead})
	if err != nil {
		t.Fatal(err)
	}
	result, _, err := message.ParseResult(env.exchangeSealed(sealed))
	if err != nil {
		t.Fatal(err)
	}
	if result != message.ResultFail {
		t.Fatalf("result = %s", result)
	}
}

func TestSleep(t *testing.T) {
	t.Run("InvalidatesSession", func(t *testing.T) {
		env := newEnv(t)
		env.handshake(0)

		status, _ := env.single(message.New(api.SleepRequest).
			SetUint("sleep_kind", api.SleepKindSleep))
		if status != message.StatusRequestOK {
			t.Fatalf("status = %s", status)
		}
		status, _ = env.single(message.New(api.EncryptedCmdRequest).
			SetBytes("l3_chunk", []byte{0x01, 0x00, 0x00}))
		if status != message.StatusNoSession {
			t.Fatalf("post-sleep status = %s", status)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		env := newEnv(t, withIrreversible(map[config.Register]uint32{
			config.CfgSleepMode: 0xFFFF_FFFC,
		}))
		status, _ := env.single(message.New(api.SleepRequest).
			SetUint("sleep_kind", api.SleepKindSleep))
		if status != message.StatusRespDisabled {
			t.Fatalf("status = %s", status)
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		env := newEnv(t)
		status, _ := env.single(message.New(api.SleepRequest).SetUint("sleep_kind", 0x07))
		if status != message.StatusGenericErr {
			t.Fatalf("status = %s", status)
		}
	})
}

func TestStartupClearsSession(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	status, _ := env.single(message.New(api.StartupRequest).
		SetUint("startup_id", api.StartupReboot))
	if status != message.StatusRequestOK {
		t.Fatalf("status = %s", status)
	}
	status, _ = env.single(message.New(api.EncryptedCmdRequest).
		SetBytes("l3_chunk", []byte{0x01, 0x00, 0x00}))
	if status != message.StatusNoSession {
		t.Fatalf("post-reboot status = %s", status)
	}
}

func TestGetLog(t *testing.T) {
	env := newEnv(t)
	status, payload := env.single(message.New(api.GetLogRequest))
	if status != message.StatusRequestOK || len(payload) != 0 {
		t.Fatalf("status = %s, payload = %x", status, payload)
	}
}

func TestChunkedCommandAccumulation(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	// Large enough that both the command and the result span chunks.
	payload := bytes.Repeat([]byte{0x42}, 500)
	result, data := env.command(message.New(api.PingCommand).SetBytes("data_in", payload))
	if result != message.ResultOK {
		t.Fatalf("result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.PingResult, data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rsp.Bytes("data_out"), payload) {
		t.Fatal("echo mismatch")
	}
}

func TestDisabledEncryption(t *testing.T) {
	env := newEnv(t,
		withDisabledEncryption(),
		// No slot would pass the privilege check if it ran.
		withIrreversible(map[config.Register]uint32{
			config.CfgUAPPing: 0x0000_0000,
		}))
	env.handshake(0)

	plain, err := message.EncodeCommand(env.codec,
		message.New(api.PingCommand).SetBytes("data_in", []byte("plain")))
	if err != nil {
		t.Fatal(err)
	}
	sealed := append(append([]byte(nil), plain...), make([]byte, securechannel.TagLen)...)
	encoded, err := message.EncodeEncrypted(env.codec, sealed)
	if err != nil {
		t.Fatal(err)
	}

	frames := env.request(message.New(api.EncryptedCmdRequest).SetBytes("l3_chunk", encoded))
	if len(frames) != 2 {
		t.Fatalf("got %d frames", len(frames))
	}
	_, payload, err := message.ParseResponse(env.codec, frames[1])
	if err != nil {
		t.Fatal(err)
	}
	packet, err := message.ParseEncrypted(env.codec, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(packet.Tag, make([]byte, securechannel.TagLen)) {
		t.Fatalf("tag = %x, want zeros", packet.Tag)
	}
	result, data, err := message.ParseResult(packet.Ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if result != message.ResultOK {
		t.Fatalf("result = %s", result)
	}
	rsp, err := message.Decode(env.codec, api.PingResult, data)
	if err != nil {
		t.Fatal(err)
	}
	if string(rsp.Bytes("data_out")) != "plain" {
		t.Fatalf("data_out = %q", rsp.Bytes("data_out"))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	env := newEnv(t)
	env.handshake(0)

	if result, _ := env.command(message.New(api.MemDataWriteCommand).
		SetUint("udata_slot", 7).SetBytes("data", []byte("persisted"))); result != message.ResultOK {
		t.Fatalf("seed write result = %s", result)
	}
	if result, _ := env.command(message.New(api.ConfigWriteCommand).
		SetUint("address", uint64(config.CfgStartUp)).
		SetUint("value", 0xDEAD_BEEF)); result != message.ResultOK {
		t.Fatalf("seed config result = %s", result)
	}

	snap := env.dev.Snapshot()
	cfg, err := snap.DeviceConfig()
	if err != nil {
		t.Fatalf("DeviceConfig: %v", err)
	}
	restored, err := NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}

	if v, err := restored.bank.Read(uint16(config.CfgStartUp)); err != nil || v != 0xDEAD_BEEF {
		t.Fatalf("restored config = %#08x, err = %v", v, err)
	}
	data, err := restored.userData.Read(7)
	if err != nil || string(data) != "persisted" {
		t.Fatalf("restored user data = %q, err = %v", data, err)
	}
	slot, _ := restored.pairingKeys.Slot(0)
	if !slot.Valid() {
		t.Fatal("restored pairing key slot 0 not usable")
	}
	if restored.session.Established() {
		t.Fatal("restored device has a session")
	}
}

func TestSnapshotRejectsBadState(t *testing.T) {
	env := newEnv(t)
	snap := env.dev.Snapshot()
	snap.PairingKeys[2].State = "stale"
	if _, err := snap.DeviceConfig(); err == nil {
		t.Fatal("expected error for unknown slot state")
	}
}

func TestNewDeviceRequiresKeys(t *testing.T) {
	_, err := NewDevice(DeviceConfig{})
	if !errors.Is(err, ErrMissingStaticKey) {
		t.Fatalf("err = %v", err)
	}
}
