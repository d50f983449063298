package transport

import (
	"errors"

	"github.com/pion/logging"

	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/wire"
)

// Processor handles one complete request frame and returns the response
// frames to queue, in send order. Returning ErrResend requests a replay of
// the latest response instead.
type Processor interface {
	ProcessRequest(frame []byte) ([][]byte, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(frame []byte) ([][]byte, error)

// ProcessRequest implements Processor.
func (f ProcessorFunc) ProcessRequest(frame []byte) ([][]byte, error) {
	return f(frame)
}

// defaultBusyPattern yields five busy and five ready polls per cycle.
var defaultBusyPattern = []bool{true, false, true, false, true, false, true, false, true, false}

// FSMConfig configures the chip-select-gated transport state machine.
type FSMConfig struct {
	// Processor handles complete request frames.
	// Required.
	Processor Processor

	// InitByte fills the response while a request is being processed.
	InitByte byte

	// BusyPattern is the cyclic schedule of busy polls. One entry is
	// consumed per response poll. Defaults to a five-in-ten pattern.
	BusyPattern []bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// stateFn handles one exchange in the current state and returns the bytes
// driven back to the host.
type stateFn func(f *FSM, rx []byte) []byte

// FSM models the half-duplex chip-select-gated byte exchange. One request is
// in flight at a time: a full request frame arrives in one exchange, the
// response is polled for and streamed out in later exchanges.
type FSM struct {
	proc     Processor
	initByte byte

	busy     []bool
	busyPos  int
	csnLow   bool
	state    stateFn
	outbound []byte

	buf *ResponseBuffer

	log logging.LeveledLogger
}

// NewFSM creates a transport state machine in the idle state.
func NewFSM(config FSMConfig) *FSM {
	busy := config.BusyPattern
	if busy == nil {
		busy = defaultBusyPattern
	}
	f := &FSM{
		proc:     config.Processor,
		initByte: config.InitByte,
		busy:     busy,
		buf:      NewResponseBuffer(),
		state:    stateIdle,
	}
	if config.LoggerFactory != nil {
		f.log = config.LoggerFactory.NewLogger("transport")
	}
	return f
}

// Reset returns the FSM to its initial idle state, dropping all pending and
// remembered responses. Called on power-off.
func (f *FSM) Reset() {
	f.buf.Reset()
	f.outbound = nil
	f.state = stateIdle
}

// DriveCSNLow drives the chip-select line low, starting a transaction.
// Only effective from the idle state.
func (f *FSM) DriveCSNLow() {
	if f.log != nil {
		f.log.Debug("chip select driven low")
	}
	if !f.csnLow {
		f.state = stateFalling
	}
	f.csnLow = true
}

// DriveCSNHigh drives the chip-select line high, ending the transaction.
// Always valid; pending response frames stay queued for the next poll.
func (f *FSM) DriveCSNHigh() {
	if f.log != nil {
		f.log.Debug("chip select driven high")
	}
	f.state = stateIdle
	f.csnLow = false
}

// Exchange drives len(rx) bytes across the bus and returns the bytes the
// chip drove back. While chip select is high the bus floats and the result
// is empty.
func (f *FSM) Exchange(rx []byte) []byte {
	if len(rx) == 0 {
		return nil
	}
	return f.state(f, rx)
}

// fetch removes up to n bytes from the outbound response stream.
func (f *FSM) fetch(n int) []byte {
	if n > len(f.outbound) {
		n = len(f.outbound)
	}
	out := f.outbound[:n]
	f.outbound = f.outbound[n:]
	return out
}

// nextBusy consumes one decision from the cyclic busy schedule.
func (f *FSM) nextBusy() bool {
	v := f.busy[f.busyPos]
	f.busyPos = (f.busyPos + 1) % len(f.busy)
	return v
}

func stateIdle(_ *FSM, _ []byte) []byte {
	return nil
}

// stateFalling handles the first exchange of a transaction: either a
// response poll or a fresh request frame.
func stateFalling(f *FSM, rx []byte) []byte {
	if rx[0] == message.GetRespID {
		return f.pollResponse(rx)
	}

	if len(f.outbound) > 0 {
		// One request at a time: the previous response must be
		// drained before a new request is accepted.
		if f.log != nil {
			f.log.Error("request received with response bytes pending")
		}
		f.state = stateNoResp
		return fill(nil, byte(message.StatusNoResp), len(rx))
	}

	return f.acceptRequest(rx)
}

func (f *FSM) pollResponse(rx []byte) []byte {
	// Sporadically report not-ready to emulate processing delay.
	if f.nextBusy() {
		f.state = stateNoResp
		return fill([]byte{0x00}, byte(message.StatusNoResp), len(rx))
	}

	if len(f.outbound) == 0 && !f.buf.Empty() {
		f.outbound = f.buf.Next()
	}
	if len(f.outbound) > 0 {
		f.state = stateSending
		tx := append([]byte{message.ChipStatusReady}, f.fetch(len(rx)-1)...)
		return fill(tx, message.PaddingByte, len(rx))
	}

	// Nothing queued at all.
	f.state = stateNoResp
	return fill([]byte{message.ChipStatusReady}, byte(message.StatusNoResp), len(rx))
}

func (f *FSM) acceptRequest(rx []byte) []byte {
	frames, err := f.proc.ProcessRequest(rx)
	switch {
	case err == nil:
		f.buf.Add(frames...)
		f.outbound = f.buf.Next()
	case errors.Is(err, ErrResend):
		if f.log != nil {
			f.log.Debug("replaying latest response")
		}
		if f.outbound = f.buf.Latest(); len(f.outbound) == 0 {
			if f.log != nil {
				f.log.Warnf("resend failed: %v", ErrNoResponse)
			}
			f.outbound = message.EncodeStatus(wire.Default, message.StatusGenericErr)
		}
	default:
		// The dispatcher converts its own failures to status frames,
		// so an error here is a processor bug. Keep the bus alive.
		if f.log != nil {
			f.log.Errorf("processor failed: %v", err)
		}
		f.outbound = message.EncodeStatus(wire.Default, message.StatusGenericErr)
	}

	f.state = stateAcked
	return fill([]byte{0x00}, f.initByte, len(rx))
}

// stateSending streams the remaining response bytes.
func stateSending(f *FSM, rx []byte) []byte {
	return fill(f.fetch(len(rx)), message.PaddingByte, len(rx))
}

// stateNoResp reports no-response until a new transaction starts.
func stateNoResp(_ *FSM, rx []byte) []byte {
	return fill(nil, byte(message.StatusNoResp), len(rx))
}

// stateAcked pads with the init byte after a request has been accepted.
func stateAcked(f *FSM, rx []byte) []byte {
	return fill(nil, f.initByte, len(rx))
}

// fill pads tx with b up to n bytes.
func fill(tx []byte, b byte, n int) []byte {
	out := make([]byte, 0, n)
	out = append(out, tx...)
	for len(out) < n {
		out = append(out, b)
	}
	return out
}
