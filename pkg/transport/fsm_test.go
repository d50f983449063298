package transport

import (
	"bytes"
	"testing"

	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/wire"
)

// echoProcessor queues fixed frames for every request.
type echoProcessor struct {
	frames [][]byte
	err    error
	calls  int
}

func (p *echoProcessor) ProcessRequest(frame []byte) ([][]byte, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.frames, nil
}

func neverBusy() []bool { return []bool{false} }

func poll(f *FSM, n int) []byte {
	rx := make([]byte, n)
	rx[0] = message.GetRespID
	return f.Exchange(rx)
}

func TestExchangeIdle(t *testing.T) {
	f := NewFSM(FSMConfig{Processor: &echoProcessor{}})
	if got := f.Exchange([]byte{0x01, 0x02}); got != nil {
		t.Fatalf("Exchange() while idle = %x, want nil", got)
	}
}

func TestRequestResponseCycle(t *testing.T) {
	response := []byte{0x01, 0x02, 0xAA, 0xBB, 0x5A, 0xA5}
	proc := &echoProcessor{frames: [][]byte{response}}
	f := NewFSM(FSMConfig{Processor: proc, BusyPattern: neverBusy()})

	f.DriveCSNLow()
	ack := f.Exchange([]byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x00})
	f.DriveCSNHigh()

	if ack[0] != 0x00 {
		t.Fatalf("request ack status byte = %#x, want not-ready", ack[0])
	}
	if proc.calls != 1 {
		t.Fatalf("processor calls = %d, want 1", proc.calls)
	}

	f.DriveCSNLow()
	got := poll(f, 1+len(response))
	f.DriveCSNHigh()

	if got[0] != message.ChipStatusReady {
		t.Fatalf("poll status byte = %#x, want READY", got[0])
	}
	if !bytes.Equal(got[1:], response) {
		t.Fatalf("poll payload = %x, want %x", got[1:], response)
	}
}

func TestResponseStreamedAcrossExchanges(t *testing.T) {
	response := bytes.Repeat([]byte{0xCD}, 8)
	f := NewFSM(FSMConfig{
		Processor:   &echoProcessor{frames: [][]byte{response}},
		BusyPattern: neverBusy(),
	})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()

	f.DriveCSNLow()
	first := poll(f, 5) // READY + 4 response bytes
	rest := f.Exchange(make([]byte, 6))
	f.DriveCSNHigh()

	got := append(bytes.Clone(first[1:]), rest[:4]...)
	if !bytes.Equal(got, response) {
		t.Fatalf("streamed response = %x, want %x", got, response)
	}
	// Past the end of the response the line carries padding.
	if rest[4] != message.PaddingByte || rest[5] != message.PaddingByte {
		t.Fatalf("trailing bytes = %x, want padding", rest[4:])
	}
}

func TestBusySchedule(t *testing.T) {
	f := NewFSM(FSMConfig{
		Processor:   &echoProcessor{frames: [][]byte{{0xEE}}},
		BusyPattern: []bool{true, true, false},
	})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()

	for i := 0; i < 2; i++ {
		f.DriveCSNLow()
		got := poll(f, 2)
		f.DriveCSNHigh()
		if got[0] != 0x00 || got[1] != byte(message.StatusNoResp) {
			t.Fatalf("busy poll %d = %x, want not-ready + NO_RESP", i, got)
		}
	}

	f.DriveCSNLow()
	got := poll(f, 2)
	f.DriveCSNHigh()
	if got[0] != message.ChipStatusReady || got[1] != 0xEE {
		t.Fatalf("ready poll = %x", got)
	}
}

func TestPollWithNothingQueued(t *testing.T) {
	f := NewFSM(FSMConfig{Processor: &echoProcessor{}, BusyPattern: neverBusy()})

	f.DriveCSNLow()
	got := poll(f, 3)
	if got[0] != message.ChipStatusReady {
		t.Fatalf("status byte = %#x, want READY", got[0])
	}
	for _, b := range got[1:] {
		if b != byte(message.StatusNoResp) {
			t.Fatalf("fill = %x, want NO_RESP", got[1:])
		}
	}
}

func TestMultiFrameResponsesInOrder(t *testing.T) {
	frames := [][]byte{{0x11, 0x11}, {0x22, 0x22}, {0x33, 0x33}}
	f := NewFSM(FSMConfig{
		Processor:   &echoProcessor{frames: frames},
		BusyPattern: neverBusy(),
	})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()

	for i, want := range frames {
		f.DriveCSNLow()
		got := poll(f, 3)
		f.DriveCSNHigh()
		if got[0] != message.ChipStatusReady || !bytes.Equal(got[1:], want) {
			t.Fatalf("frame %d = %x, want READY + %x", i, got, want)
		}
	}
}

func TestResendReplaysLatest(t *testing.T) {
	proc := &echoProcessor{frames: [][]byte{{0xDE, 0xAD}}}
	f := NewFSM(FSMConfig{Processor: proc, BusyPattern: neverBusy()})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()
	f.DriveCSNLow()
	first := poll(f, 3)
	f.DriveCSNHigh()

	proc.err = ErrResend
	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()
	f.DriveCSNLow()
	replayed := poll(f, 3)
	f.DriveCSNHigh()

	if !bytes.Equal(first, replayed) {
		t.Fatalf("replayed = %x, want %x", replayed, first)
	}
	if proc.calls != 2 {
		t.Fatalf("processor calls = %d, want 2", proc.calls)
	}
}

func TestResendWithoutPreviousResponse(t *testing.T) {
	proc := &echoProcessor{err: ErrResend}
	f := NewFSM(FSMConfig{Processor: proc, BusyPattern: neverBusy()})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()
	f.DriveCSNLow()
	got := poll(f, 5)
	f.DriveCSNHigh()

	status, payload, err := message.ParseResponse(wire.Default, got[1:])
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if status != message.StatusGenericErr || len(payload) != 0 {
		t.Fatalf("status = %v payload = %x, want GEN_ERR and empty", status, payload)
	}
}

func TestCSNHighKeepsPendingResponse(t *testing.T) {
	f := NewFSM(FSMConfig{
		Processor:   &echoProcessor{frames: [][]byte{{0x42}}},
		BusyPattern: neverBusy(),
	})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()

	// Releasing chip select does not drop the queued response.
	f.DriveCSNLow()
	f.DriveCSNHigh()

	f.DriveCSNLow()
	got := poll(f, 2)
	if got[0] != message.ChipStatusReady || got[1] != 0x42 {
		t.Fatalf("poll = %x, want READY + 0x42", got)
	}
}

func TestResetDropsQueuedState(t *testing.T) {
	f := NewFSM(FSMConfig{
		Processor:   &echoProcessor{frames: [][]byte{{0x42}}},
		BusyPattern: neverBusy(),
	})

	f.DriveCSNLow()
	f.Exchange(make([]byte, 4))
	f.DriveCSNHigh()
	f.Reset()

	f.DriveCSNLow()
	got := poll(f, 2)
	if got[0] != message.ChipStatusReady || got[1] != byte(message.StatusNoResp) {
		t.Fatalf("poll after reset = %x, want READY + NO_RESP", got)
	}
}
