package forwarder

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon"
	"github.com/soda-auto/telemon/ncom"
)

const defaultInterval = 100 * time.Millisecond

// UDPConfig is loaded from TOML, for example
//
//	Server = "192.168.1.20"
//	Port = 8001
//	Interval = "50ms"
type UDPConfig struct {
	Server   string
	Port     int
	Interval telemon.Duration
}

// UDPForwarder re-publishes accepted samples as NCOM frames, at most one per
// Interval. Samples arriving faster than that are dropped.
type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan *ncom.Sample
}

// NewUDPForwarder loads fileName, resolving a relative name against the
// directory of the running binary.
func NewUDPForwarder(fileName string) (*UDPForwarder, error) {
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return NewUDPForwarderFromReader(file)
}

func NewUDPForwarderFromReader(configReader io.Reader) (*UDPForwarder, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := UDPConfig{}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load udp forwarder configuration")
	}
	if config.Interval.Duration <= 0 {
		config.Interval.Duration = defaultInterval
	}
	udp := &UDPForwarder{
		Config:  &config,
		fwdChan: make(chan *ncom.Sample, 1),
	}
	if err = udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(sample *ncom.Sample, _ telemon.LatencySample) error {
	sampleCopy := *sample
	select {
	// copy the sample as it is encoded on another go-routine
	case udp.fwdChan <- &sampleCopy:
	default:
		// if channel is full, skip
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(udp.Config.Interval.Duration)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case s := <-udp.fwdChan:
			if err := udp.forward(s); err != nil {
				log.Error("unable to forward sample to server ", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(s *ncom.Sample) error {
	frame, err := ncom.Encode(s)
	if err != nil {
		return errors.Wrap(err, "unable to encode sample")
	}
	_, err = udp.conn.Write(frame)
	return errors.Wrap(err, "unable to write ncom udp packet")
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := ncom.FrameLength * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return err
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
