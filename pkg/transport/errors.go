package transport

import "errors"

var (
	// ErrResend is returned by a Processor to request a replay of the
	// latest response instead of queueing a new one.
	ErrResend = errors.New("transport: resend latest response")

	// ErrNoResponse is reported when a replay is requested but nothing
	// has been sent since the last reset.
	ErrNoResponse = errors.New("transport: no previous response")
)
