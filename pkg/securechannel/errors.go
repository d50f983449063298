package securechannel

import "errors"

var (
	// ErrNoSession is returned when an encrypt or decrypt operation is
	// attempted before a handshake has completed.
	ErrNoSession = errors.New("securechannel: session not established")

	// ErrAuthFailed is returned when an authenticated decryption fails.
	// It deliberately carries no detail about which check failed.
	ErrAuthFailed = errors.New("securechannel: authentication failed")

	// ErrHandshakeFailed is returned when handshake material cannot be
	// processed or the peer's authentication tag does not verify.
	ErrHandshakeFailed = errors.New("securechannel: handshake failed")

	// ErrNoHandshake is returned when a handshake response arrives
	// without a matching request in progress.
	ErrNoHandshake = errors.New("securechannel: no handshake in progress")

	// ErrNonceDesync is returned when the directional nonce counters
	// drift apart, which indicates the session was driven out of order.
	ErrNonceDesync = errors.New("securechannel: nonce counters out of sync")
)
