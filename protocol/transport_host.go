package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned once the transport has been closed.
var ErrClosed = errors.New("transport closed")

// ResponseHandler is called from the read loop for every response.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link: it sends commands, waits for
// their ACK and collects responses.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq atomic.Uint32

	readMu sync.Mutex
	input  *FifoBuffer
	reader frameReader

	// serialises whole request/ACK exchanges
	sendMu sync.Mutex

	ackChan      chan *Message
	responseChan chan *Message

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		input:        NewFifoBuffer(512),
		reader:       newFrameReader(false),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	t.currentSeq.Store(MessageDest)

	go t.readLoop()
	return t
}

// SendCommand sends a command and waits up to two seconds for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	seq := uint8(t.currentSeq.Load())
	msg, err := t.buildCommandMessage(seq, cmdID, args)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	t.drainAcks()
	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := t.waitForAck(seq, timeout); err != nil {
		return fmt.Errorf("ACK timeout or error: %w", err)
	}
	return nil
}

func (t *HostTransport) buildCommandMessage(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	var out SliceOutput
	err := EncodeFrame(&out, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (t *HostTransport) writeMessage(msg []byte) error {
	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// waitForAck expects the device to ask for the sequence after seq. Any
// other ACK is a NAK: the host adopts the device's sequence so the next
// command is accepted, and reports the mismatch.
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.ackChan:
		want := NextSequence(seq)
		t.currentSeq.Store(uint32(ack.Sequence&MessageSeqMask | MessageDest))
		if ack.Sequence != want {
			return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
		}
		return nil

	case <-timer.C:
		return fmt.Errorf("ACK timeout after %v", timeout)

	case <-t.stopChan:
		return ErrClosed
	}
}

// ReceiveResponse returns the oldest unread response.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrClosed
	}
}

// DrainResponses discards responses nobody collected.
func (t *HostTransport) DrainResponses() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackChan:
		default:
			return
		}
	}
}

// SetResponseHandler sets a callback for handling responses asynchronously
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.responseHandler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		n, err := t.port.Read(buffer)
		if n > 0 {
			t.feed(buffer[:n])
		}
		if err == nil {
			continue
		}

		select {
		case <-t.stopChan:
			return
		default:
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (t *HostTransport) feed(data []byte) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for len(data) > 0 {
		n := t.input.Write(data)
		data = data[n:]
		consumed := t.reader.scan(t.input.Data(), t.dispatch)
		t.input.Pop(consumed)
		if n == 0 && consumed == 0 {
			// a full buffer with no frame in it is garbage
			t.input.Reset()
			t.reader.lose()
		}
	}
}

func (t *HostTransport) dispatch(seq uint8, payload []byte, crc uint16) {
	msg := &Message{
		Length:   uint8(len(payload) + MessageLengthMin),
		Sequence: seq,
		Payload:  append([]byte(nil), payload...),
		CRC:      crc,
	}

	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	t.handlerMu.RLock()
	handler := t.responseHandler
	t.handlerMu.RUnlock()
	if handler != nil {
		data := append([]byte(nil), msg.Payload...)
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			_ = handler(uint16(cmdID), &data)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// full: drop the oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence and drops buffered input.
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.currentSeq.Store(MessageDest)
	t.drainAcks()
	t.DrainResponses()

	t.readMu.Lock()
	t.input.Reset()
	t.reader = newFrameReader(false)
	t.readMu.Unlock()
}

// GetCurrentSequence returns the sequence the next command will carry.
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(t.currentSeq.Load())
}

// FrameErrors counts frames dropped for bad length or CRC.
func (t *HostTransport) FrameErrors() uint32 {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	return t.reader.errors
}
