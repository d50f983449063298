package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/tropic01/pkg/wire"
)

func TestCommandRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	shape, _ := reg.Lookup(LayerCommand, 0x20)

	m := New(shape).SetUint("address", 0x0100).SetUint("value", 0x7FFF_FFFF)
	plain, err := EncodeCommand(wire.Default, m)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if plain[0] != 0x20 {
		t.Fatalf("command id byte = %#x", plain[0])
	}

	got, err := DecodeCommand(wire.Default, reg, plain)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if got.Uint("address") != 0x0100 || got.Uint("value") != 0x7FFF_FFFF {
		t.Fatalf("decoded address=%#x value=%#x", got.Uint("address"), got.Uint("value"))
	}
}

func TestDecodeCommandUnknownID(t *testing.T) {
	reg := testRegistry(t)
	if _, err := DecodeCommand(wire.Default, reg, []byte{0x77}); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("DecodeCommand() error = %v, want ErrUnknownMessage", err)
	}
}

func TestResultRoundTrip(t *testing.T) {
	plain, err := EncodeResult(wire.Default, ResultOK, nil)
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}
	result, data, err := ParseResult(plain)
	if err != nil {
		t.Fatalf("ParseResult() error = %v", err)
	}
	if result != ResultOK || len(data) != 0 {
		t.Fatalf("ParseResult() = %v, %x", result, data)
	}
}

func TestEncryptedPacketRoundTrip(t *testing.T) {
	sealed := append(bytes.Repeat([]byte{0xC5}, 20), bytes.Repeat([]byte{0x11}, TagSize)...)
	raw, err := EncodeEncrypted(wire.Default, sealed)
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}

	total, err := EncryptedTotalLen(wire.Default, raw[:2])
	if err != nil {
		t.Fatalf("EncryptedTotalLen() error = %v", err)
	}
	if total != len(raw) {
		t.Fatalf("EncryptedTotalLen() = %d, want %d", total, len(raw))
	}

	pkt, err := ParseEncrypted(wire.Default, raw)
	if err != nil {
		t.Fatalf("ParseEncrypted() error = %v", err)
	}
	if len(pkt.Ciphertext) != 20 || len(pkt.Tag) != TagSize {
		t.Fatalf("ciphertext %d bytes, tag %d bytes", len(pkt.Ciphertext), len(pkt.Tag))
	}
	if !bytes.Equal(pkt.Sealed(), sealed) {
		t.Fatal("Sealed() does not match the original sealed bytes")
	}
}

func TestParseEncryptedSizeMismatch(t *testing.T) {
	raw, err := EncodeEncrypted(wire.Default, make([]byte, 8+TagSize))
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}
	if _, err := ParseEncrypted(wire.Default, raw[:len(raw)-1]); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("ParseEncrypted() error = %v, want ErrLengthMismatch", err)
	}
}

func TestChunks(t *testing.T) {
	cases := []struct {
		name string
		size int
		want []int
	}{
		{"empty", 0, nil},
		{"one partial", 40, []int{40}},
		{"exact boundary", ChunkSize, []int{ChunkSize}},
		{"two chunks", ChunkSize + 1, []int{ChunkSize, 1}},
		{"three chunks", 2*ChunkSize + 30, []int{ChunkSize, ChunkSize, 30}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Chunks(make([]byte, c.size))
			if len(got) != len(c.want) {
				t.Fatalf("len(Chunks()) = %d, want %d", len(got), len(c.want))
			}
			for i := range got {
				if len(got[i]) != c.want[i] {
					t.Errorf("chunk %d is %d bytes, want %d", i, len(got[i]), c.want[i])
				}
			}
		})
	}
}
