package receiver

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/soda-auto/telemon/ncom"
)

// SerialReceiver cuts NCOM frames out of a serial byte stream. There are no
// datagram boundaries on a serial line, so frames are located by the sync
// byte and bytes preceding it are discarded.
type SerialReceiver struct {
	port  io.ReadCloser
	buf   []byte
	chunk []byte

	discarded int
}

// to allow testing
var serialOpen = func(path string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(path, mode)
}

// OpenSerial opens path at baud 8N1. A read that sees no byte within
// timeout makes Receive return ErrNoData.
func OpenSerial(path string, baud int, timeout time.Duration) (*SerialReceiver, error) {
	port, err := serialOpen(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &TransportError{Op: "open", Addr: path, Err: err}
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, &TransportError{Op: "configure", Addr: path, Err: err}
	}
	log.WithField("port", path).WithField("baud", baud).Info("serial receiver opened")
	return NewSerialReceiver(port), nil
}

func NewSerialReceiver(port io.ReadCloser) *SerialReceiver {
	return &SerialReceiver{
		port:  port,
		chunk: make([]byte, 4*ncom.FrameLength),
	}
}

// Receive returns the next frame. A read returning no bytes is treated as
// the port's read timeout.
func (s *SerialReceiver) Receive(ctx context.Context) (Datagram, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Datagram{}, err
		}
		if frame, ok := s.nextFrame(); ok {
			return Datagram{Payload: frame, Arrival: now()}, nil
		}

		n, err := s.port.Read(s.chunk)
		s.buf = append(s.buf, s.chunk[:n]...)
		if err == io.EOF {
			if n > 0 {
				continue
			}
			return Datagram{}, io.EOF
		}
		if err != nil {
			return Datagram{}, errors.Wrap(err, "serial read")
		}
		if n == 0 {
			return Datagram{}, ErrNoData
		}
	}
}

func (s *SerialReceiver) nextFrame() ([]byte, bool) {
	i := bytes.IndexByte(s.buf, ncom.Sync)
	if i < 0 {
		s.discard(len(s.buf))
		return nil, false
	}
	s.discard(i)
	if len(s.buf) < ncom.FrameLength {
		return nil, false
	}
	frame := append([]byte(nil), s.buf[:ncom.FrameLength]...)
	s.buf = s.buf[ncom.FrameLength:]
	return frame, true
}

func (s *SerialReceiver) discard(n int) {
	if n == 0 {
		return
	}
	s.discarded += n
	log.WithField("bytes", n).Debug("discarding bytes before sync")
	s.buf = append(s.buf[:0], s.buf[n:]...)
}

// Discarded is the number of bytes skipped while searching for sync.
func (s *SerialReceiver) Discarded() int {
	return s.discarded
}

func (s *SerialReceiver) Close() error {
	return s.port.Close()
}
