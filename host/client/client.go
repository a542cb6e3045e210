// Package client drives motors on a controller over the serial link.
package client

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"smoothstep/core"
	"smoothstep/protocol"
)

// ErrUnknownMotor is returned for an oid the controller does not have.
var ErrUnknownMotor = errors.New("unknown motor")

// Info describes the controller.
type Info struct {
	Version uint32
	Motors  int
}

// Client is the host end of the remote command surface. Requests are
// serialised; a Client may be shared between goroutines.
type Client struct {
	transport *protocol.HostTransport
	ids       core.MotorCommandIDs
	timeout   time.Duration

	mu sync.Mutex
}

// New takes ownership of port.
func New(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		ids:       core.MotorCommandTable(),
		timeout:   time.Second,
	}
}

// SetTimeout bounds the wait for each response.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the transport and the port.
func (c *Client) Close() error {
	return c.transport.Close()
}

// exchange sends one command and returns the arguments of the response,
// which must be of type want.
func (c *Client) exchange(cmd, want uint16, args func(protocol.OutputBuffer)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transport.DrainResponses()
	if err := c.transport.SendCommand(cmd, args); err != nil {
		return nil, err
	}
	msg, err := c.transport.ReceiveResponse(c.timeout)
	if err != nil {
		return nil, err
	}

	data := msg.Payload
	id, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, fmt.Errorf("response header: %w", err)
	}
	if uint16(id) == want {
		return data, nil
	}
	if uint16(id) == c.ids.Result {
		// a rejection in place of the expected report
		if _, err := protocol.DecodeVLQUint(&data); err == nil {
			if code, err := protocol.DecodeVLQUint(&data); err == nil {
				if err := resultError(uint8(code)); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, fmt.Errorf("unexpected response %d to command %d", id, cmd)
}

// Info asks the controller for its version and motor count.
func (c *Client) Info() (Info, error) {
	data, err := c.exchange(c.ids.GetInfo, c.ids.Info, nil)
	if err != nil {
		return Info{}, err
	}
	version, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return Info{}, err
	}
	motors, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return Info{}, err
	}
	return Info{Version: version, Motors: int(motors)}, nil
}

// Motor returns a handle for the motor at index oid.
func (c *Client) Motor(oid uint8) *Motor {
	return &Motor{c: c, oid: oid}
}

// command sends a motor command answered by motor_result.
func (c *Client) command(cmd uint16, oid uint8, args ...int64) error {
	data, err := c.exchange(cmd, c.ids.Result, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(oid))
		for _, a := range args {
			protocol.EncodeVLQInt64(out, a)
		}
	})
	if err != nil {
		return err
	}

	got, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return err
	}
	code, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return err
	}
	if uint8(got) != oid {
		return fmt.Errorf("result for motor %d, asked %d", got, oid)
	}
	return resultError(uint8(code))
}

func resultError(code uint8) error {
	switch code {
	case core.ResultOK:
		return nil
	case core.ResultInvalid:
		return core.ErrInvalidParameter
	case core.ResultBusy:
		return core.ErrMotorBusy
	case core.ResultUnknownMotor:
		return ErrUnknownMotor
	}
	return fmt.Errorf("result code %d", code)
}
