package remote

import (
	"fmt"
	"net"
	"time"

	"github.com/backkem/tropic01/pkg/wire"
)

// RemoteError reports an error tag returned by the server.
type RemoteError struct {
	Tag Tag
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: server returned %s", e.Tag)
}

// Client drives a remote chip model. It implements the host.Chip interface.
// Not safe for concurrent use.
type Client struct {
	conn net.Conn
}

// Dial connects to a model server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends one message and reads the matching response.
func (c *Client) call(tag Tag, payload []byte) ([]byte, error) {
	if err := writeMessage(c.conn, tag, payload); err != nil {
		return nil, err
	}
	respTag, respPayload, err := readMessage(c.conn)
	if err != nil {
		return nil, err
	}
	if respTag != tag {
		return nil, &RemoteError{Tag: respTag}
	}
	return respPayload, nil
}

// DriveCSNLow drives the remote chip-select line low.
func (c *Client) DriveCSNLow() error {
	_, err := c.call(TagCSNLow, nil)
	return err
}

// DriveCSNHigh drives the remote chip-select line high.
func (c *Client) DriveCSNHigh() error {
	_, err := c.call(TagCSNHigh, nil)
	return err
}

// Exchange clocks tx into the remote chip and returns the bytes driven back.
func (c *Client) Exchange(tx []byte) ([]byte, error) {
	return c.call(TagSPISend, tx)
}

// PowerOn powers the remote chip on.
func (c *Client) PowerOn() error {
	_, err := c.call(TagPowerOn, nil)
	return err
}

// PowerOff powers the remote chip off, clearing its volatile state.
func (c *Client) PowerOff() error {
	_, err := c.call(TagPowerOff, nil)
	return err
}

// Wait asks the server to let the given model time pass.
func (c *Client) Wait(d time.Duration) error {
	payload, err := wire.Default.AppendUint(nil, wire.U32, uint64(d.Milliseconds()))
	if err != nil {
		return err
	}
	_, err = c.call(TagWait, payload)
	return err
}

// ResetTarget rebuilds the served device from its initial state.
func (c *Client) ResetTarget() error {
	_, err := c.call(TagResetTarget, nil)
	return err
}
