package receiver

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/soda-auto/telemon/ncom"
)

// UDPReceiver owns one datagram socket.
type UDPReceiver struct {
	conn    net.PacketConn
	timeout time.Duration
	buf     []byte
	group   net.IP
}

// to allow testing
var now = time.Now

// ListenUDP binds the socket described by cfg. Any failure here is a
// *TransportError.
func ListenUDP(ctx context.Context, cfg Config) (*UDPReceiver, error) {
	if cfg.MulticastGroup != "" {
		return listenMulticast(ctx, cfg)
	}

	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", cfg.endpoint())
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: cfg.endpoint(), Err: err}
	}
	r := newUDPReceiver(conn, cfg)
	log.WithField("addr", conn.LocalAddr()).Info("udp receiver bound")
	return r, nil
}

func listenMulticast(ctx context.Context, cfg Config) (*UDPReceiver, error) {
	group := net.ParseIP(cfg.MulticastGroup)
	if group == nil || group.To4() == nil || !group.IsMulticast() {
		return nil, &TransportError{
			Op:   "join",
			Addr: cfg.MulticastGroup,
			Err:  errors.New("not an IPv4 multicast address"),
		}
	}

	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, &TransportError{Op: "interface", Addr: cfg.Interface, Err: err}
		}
	}

	// bind the wildcard address on the group port so every member socket
	// on the host sees the traffic
	bindCfg := cfg
	bindCfg.Address = "0.0.0.0"
	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", bindCfg.endpoint())
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: bindCfg.endpoint(), Err: err}
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "join", Addr: cfg.MulticastGroup, Err: err}
	}

	r := newUDPReceiver(conn, cfg)
	r.group = group
	log.WithField("group", group).
		WithField("addr", conn.LocalAddr()).
		Info("udp receiver joined multicast group")
	return r, nil
}

func newUDPReceiver(conn net.PacketConn, cfg Config) *UDPReceiver {
	if cfg.ReadBuffer > 0 {
		if udpConn, ok := conn.(*net.UDPConn); ok {
			if err := udpConn.SetReadBuffer(cfg.ReadBuffer); err != nil {
				log.WithField("err", err).Warnf("unable to set OS read buffer to %v", cfg.ReadBuffer)
			}
		}
	}
	return &UDPReceiver{
		conn:    conn,
		timeout: cfg.readTimeout(),
		buf:     make([]byte, maxDatagramSize),
	}
}

// Receive blocks for the next datagram, at most for the read timeout. A
// datagram whose length is not ncom.FrameLength is returned together with a
// LengthMismatch *ncom.ProtocolError so its arrival can still be accounted.
func (r *UDPReceiver) Receive(ctx context.Context) (Datagram, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, err
	}

	var deadline time.Time
	if r.timeout > 0 {
		deadline = now().Add(r.timeout)
	}
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return Datagram{}, errors.Wrap(err, "unable to set read deadline")
	}

	n, addr, err := r.conn.ReadFrom(r.buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return Datagram{}, ErrNoData
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Datagram{}, ctxErr
		}
		return Datagram{}, errors.Wrap(err, "udp read")
	}

	dg := Datagram{
		Payload: append([]byte(nil), r.buf[:n]...),
		Arrival: now(),
		Addr:    addr,
	}
	return dg, ncom.CheckLength(n)
}

func (r *UDPReceiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *UDPReceiver) Close() error {
	if r.group != nil {
		// leaving is implicit on close
		log.WithField("group", r.group).Debug("leaving multicast group")
	}
	return r.conn.Close()
}
