package device

import (
	"errors"
	"fmt"

	"github.com/backkem/tropic01/pkg/message"
	"github.com/backkem/tropic01/pkg/transport"
	"github.com/backkem/tropic01/pkg/uap"
)

// l2Handler processes a decoded request and returns complete response
// frames. Returning transport.ErrResend asks the FSM to replay the latest
// response instead.
type l2Handler func(req *message.Message) ([][]byte, error)

// l3Handler executes a decoded command and returns the result payload. A nil
// message with a nil error produces a bare OK result.
type l3Handler func(cmd *message.Message) (*message.Message, error)

// l2Error aborts request handling with a specific L2 status.
type l2Error struct {
	status message.Status
	msg    string
}

func (e *l2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.status, e.msg)
}

func l2Errorf(status message.Status, format string, args ...any) *l2Error {
	return &l2Error{status: status, msg: fmt.Sprintf(format, args...)}
}

// ProcessRequest implements transport.Processor. Every error raised below
// the dispatcher is converted into a status or result code here; nothing
// propagates to the transport layer except the resend sentinel.
func (d *Device) ProcessRequest(frame []byte) ([][]byte, error) {
	if !message.VerifyCRC(d.codec, frame) {
		return d.statusOnly(message.StatusCRCErr), nil
	}
	req, err := message.DecodeRequest(d.codec, d.requests, frame)
	if err != nil {
		if errors.Is(err, message.ErrUnknownMessage) {
			return d.statusOnly(message.StatusUnknownReq), nil
		}
		if d.log != nil {
			d.log.Debugf("malformed request: %v", err)
		}
		return d.statusOnly(message.StatusCRCErr), nil
	}
	if d.log != nil {
		d.log.Debugf("request %s", req.Shape.Name)
	}

	frames, err := d.l2handlers[req.Shape.ID](req)
	if err != nil {
		var l2e *l2Error
		switch {
		case errors.Is(err, transport.ErrResend):
			return nil, err
		case errors.As(err, &l2e):
			if d.log != nil {
				d.log.Debugf("%s: %s", req.Shape.Name, l2e)
			}
			return d.statusOnly(l2e.status), nil
		default:
			if d.log != nil {
				d.log.Errorf("%s: %v", req.Shape.Name, err)
			}
			return d.statusOnly(message.StatusGenericErr), nil
		}
	}
	return frames, nil
}

// respond encodes a single response frame. A nil message produces a
// data-less frame.
func (d *Device) respond(status message.Status, m *message.Message) ([][]byte, error) {
	frame, err := message.EncodeResponse(d.codec, status, m)
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (d *Device) statusOnly(status message.Status) [][]byte {
	return [][]byte{message.EncodeStatus(d.codec, status)}
}

// execCommand runs the full decrypt-free command path: decode, access
// checks, execution, result encoding. It always produces a result
// plaintext; failures become result codes.
func (d *Device) execCommand(plain []byte) ([]byte, error) {
	cmd, err := message.DecodeCommand(d.codec, d.commands, plain)
	if err != nil {
		if errors.Is(err, message.ErrUnknownMessage) {
			return message.EncodeResult(d.codec, message.ResultInvalidCmd, nil)
		}
		if d.log != nil {
			d.log.Debugf("malformed command: %v", err)
		}
		return message.EncodeResult(d.codec, message.ResultFail, nil)
	}
	if d.log != nil {
		d.log.Debugf("command %s", cmd.Shape.Name)
	}

	res, err := d.l3handlers[cmd.Shape.ID](cmd)
	if err != nil {
		if d.log != nil {
			d.log.Debugf("%s: %v", cmd.Shape.Name, err)
		}
		return message.EncodeResult(d.codec, resultFor(err), nil)
	}
	return message.EncodeResult(d.codec, message.ResultOK, res)
}

// resultFor maps a command execution error to its result code.
func resultFor(err error) message.Result {
	if errors.Is(err, uap.ErrUnauthorized) {
		return message.ResultUnauthorized
	}
	return message.ResultFail
}
