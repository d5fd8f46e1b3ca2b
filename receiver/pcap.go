package receiver

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon/ncom"
)

// PCAPReceiver replays the UDP payloads of a capture. Arrival times are the
// capture timestamps, so latency reflects the recorded traffic.
type PCAPReceiver struct {
	r      *pcapgo.Reader
	closer io.Closer
	port   int

	// Realtime paces the replay by the capture timestamps.
	Realtime bool

	first     time.Time
	started   time.Time
	processed int
}

// OpenPCAP opens a classic pcap file. Port selects the UDP destination port
// to replay, 0 replays every UDP payload.
func OpenPCAP(path string, port int) (*PCAPReceiver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &TransportError{Op: "open", Addr: path, Err: err}
	}
	r, err := NewPCAPReceiver(f, port)
	if err != nil {
		_ = f.Close()
		return nil, &TransportError{Op: "open", Addr: path, Err: err}
	}
	r.closer = f
	return r, nil
}

func NewPCAPReceiver(src io.Reader, port int) (*PCAPReceiver, error) {
	r, err := pcapgo.NewReader(src)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read pcap header")
	}
	return &PCAPReceiver{r: r, port: port}, nil
}

// Receive returns the next matching payload, or io.EOF at the end of the
// capture.
func (p *PCAPReceiver) Receive(ctx context.Context) (Datagram, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Datagram{}, err
		}

		data, ci, err := p.r.ReadPacketData()
		if err == io.EOF {
			log.WithField("packets", p.processed).Info("pcap replay complete")
			return Datagram{}, io.EOF
		}
		if err != nil {
			return Datagram{}, errors.Wrap(err, "pcap read")
		}

		packet := gopacket.NewPacket(data, p.r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}
		if p.port != 0 && int(udp.DstPort) != p.port {
			continue
		}
		p.processed++

		if p.Realtime {
			if err := p.pace(ctx, ci.Timestamp); err != nil {
				return Datagram{}, err
			}
		}

		dg := Datagram{
			Payload: append([]byte(nil), udp.Payload...),
			Arrival: ci.Timestamp,
		}
		if ip, ok := packet.NetworkLayer().(*layers.IPv4); ok {
			dg.Addr = &net.UDPAddr{IP: ip.SrcIP, Port: int(udp.SrcPort)}
		}
		return dg, ncom.CheckLength(len(dg.Payload))
	}
}

func (p *PCAPReceiver) pace(ctx context.Context, ts time.Time) error {
	if p.first.IsZero() {
		p.first = ts
		p.started = now()
		return nil
	}
	wait := ts.Sub(p.first) - now().Sub(p.started)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *PCAPReceiver) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
