// Package receiver delivers raw NCOM datagrams from a transport: a UDP
// socket (unicast, broadcast or multicast), a pcap capture or a serial line.
package receiver

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultReadTimeout = 100 * time.Millisecond

	// large enough that an oversized datagram is seen as oversized rather
	// than silently cut to a valid length
	maxDatagramSize = 2048
)

// ErrNoData is returned by Receive when the read timeout elapsed without a
// datagram, giving the caller a chance to observe shutdown.
var ErrNoData = errors.New("receiver: no data before timeout")

// Datagram is one received payload and the time it arrived. The receiver
// hands over ownership of Payload.
type Datagram struct {
	Payload []byte
	Arrival time.Time
	Addr    net.Addr
}

// TransportError is a setup failure (resolve, bind, join, open). These are
// fatal and never retried.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("receiver: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config describes the local endpoint. An empty MulticastGroup binds
// Address:Port for unicast and broadcast reception.
type Config struct {
	Address        string
	Port           int
	MulticastGroup string
	Interface      string

	// ReadTimeout bounds each Receive. Zero selects DefaultReadTimeout, a
	// negative value blocks until a datagram arrives.
	ReadTimeout time.Duration
	ReadBuffer  int
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout == 0 {
		return DefaultReadTimeout
	}
	return c.ReadTimeout
}

func (c Config) endpoint() string {
	return net.JoinHostPort(c.Address, fmt.Sprint(c.Port))
}
