package receiver

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-auto/telemon/ncom"
)

type capturedPacket struct {
	ts      time.Time
	dstPort uint16
	payload []byte
}

func writeCapture(t *testing.T, packets []capturedPacket) *bytes.Buffer {
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	for _, p := range packets {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 0, 10),
			DstIP:    net.IPv4(192, 168, 0, 255),
		}
		udp := &layers.UDP{
			SrcPort: 3000,
			DstPort: layers.UDPPort(p.dstPort),
		}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(p.payload)))

		data := buf.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     p.ts,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	return &out
}

func TestPCAPReplay(t *testing.T) {
	base := time.Unix(1700000000, 0)
	frame := make([]byte, ncom.FrameLength)
	frame[0] = ncom.Sync

	capture := writeCapture(t, []capturedPacket{
		{ts: base, dstPort: 8000, payload: frame},
		{ts: base.Add(5 * time.Millisecond), dstPort: 9999, payload: frame},
		{ts: base.Add(10 * time.Millisecond), dstPort: 8000, payload: frame[:40]},
		{ts: base.Add(20 * time.Millisecond), dstPort: 8000, payload: frame},
	})

	r, err := NewPCAPReceiver(capture, 8000)
	require.NoError(t, err)
	ctx := context.Background()

	dg, err := r.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame, dg.Payload)
	assert.True(t, base.Equal(dg.Arrival))
	assert.Equal(t, "192.168.0.10:3000", dg.Addr.String())

	dg, err = r.Receive(ctx)
	assert.True(t, ncom.IsKind(err, ncom.LengthMismatch), "port 9999 is skipped, short payload is next")
	assert.Len(t, dg.Payload, 40)
	assert.True(t, base.Add(10*time.Millisecond).Equal(dg.Arrival))

	dg, err = r.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, base.Add(20*time.Millisecond).Equal(dg.Arrival))

	_, err = r.Receive(ctx)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())
}

func TestPCAPAnyPort(t *testing.T) {
	frame := make([]byte, ncom.FrameLength)
	capture := writeCapture(t, []capturedPacket{
		{ts: time.Unix(1, 0), dstPort: 1, payload: frame},
		{ts: time.Unix(2, 0), dstPort: 2, payload: frame},
	})
	r, err := NewPCAPReceiver(capture, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Receive(context.Background())
		assert.NoError(t, err)
	}
	_, err = r.Receive(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestPCAPBadHeader(t *testing.T) {
	_, err := NewPCAPReceiver(bytes.NewBufferString("not a capture"), 0)
	assert.Error(t, err)

	_, err = OpenPCAP("/nonexistent/capture.pcap", 0)
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}
