package core

import (
	"context"
	"io"

	"smoothstep/protocol"
)

// Link is the device end of the remote command surface. It owns the frame
// transport and the registry of motor commands, and is driven by whoever
// moves bytes: the firmware's USB loop or a host serving over a port.
type Link struct {
	Registry *CommandRegistry
	IDs      MotorCommandIDs

	transport *protocol.Transport
	input     *protocol.FifoBuffer
	output    protocol.SliceOutput
}

// NewLink serves motors, addressed by index.
func NewLink(motors []*Motor) *Link {
	l := &Link{
		Registry: NewCommandRegistry(),
		input:    protocol.NewFifoBuffer(512),
	}
	l.transport = protocol.NewTransport(&l.output, l.Registry.Dispatch)
	l.transport.SetResetCallback(func() {
		DebugPrintln("link: host reset")
	})
	l.transport.SetErrorCallback(func(err error) {
		DebugPrintln("link: " + err.Error())
	})
	l.IDs = RegisterMotorCommands(l.Registry, motors, l.transport.SendCommand)
	return l
}

// Feed queues received bytes and processes every complete frame. It
// returns how many bytes were accepted.
func (l *Link) Feed(data []byte) int {
	total := 0
	for len(data) > 0 {
		n := l.input.Write(data)
		total += n
		data = data[n:]
		l.Process()
		if n == 0 && l.input.Free() == 0 {
			break
		}
	}
	return total
}

// Process handles whatever complete frames are buffered.
func (l *Link) Process() {
	l.transport.Receive(l.input)
}

// Pending returns encoded output not yet flushed.
func (l *Link) Pending() []byte {
	return l.output.Bytes()
}

// Flush writes pending output to w.
func (l *Link) Flush(w io.Writer) error {
	if l.output.Len() == 0 {
		return nil
	}
	_, err := w.Write(l.output.Bytes())
	l.output.Reset()
	return err
}

// Reset drops buffered bytes and restarts the sequence.
func (l *Link) Reset() {
	l.input.Reset()
	l.output.Reset()
	l.transport.Reset()
}

// FrameErrors counts dropped frames.
func (l *Link) FrameErrors() uint32 {
	return l.transport.FrameErrors()
}

// Serve reads from rw until ctx ends or rw fails, answering each chunk.
// Cancellation is noticed after the next read returns.
func (l *Link) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rw.Read(buf)
		if n > 0 {
			l.Feed(buf[:n])
			if werr := l.Flush(rw); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
