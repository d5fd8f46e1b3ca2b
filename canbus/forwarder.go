package canbus

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon"
	"github.com/soda-auto/telemon/ncom"
)

const queueSize = 16

// Forwarder mirrors accepted samples onto the CAN bus. The bus is reopened
// whenever it fails; samples arriving while it is down or backed up are
// dropped.
type Forwarder struct {
	portName string
	conn     *Connection
	samples  chan *ncom.Sample
}

func NewForwarder(portName string) *Forwarder {
	return &Forwarder{
		portName: portName,
		samples:  make(chan *ncom.Sample, queueSize),
	}
}

func (f *Forwarder) Forward(sample *ncom.Sample, _ telemon.LatencySample) error {
	select {
	case f.samples <- sample:
	default:
		log.Debug("can forwarder queue full, dropping sample")
	}
	return nil
}

// Run keeps the bus open until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	if err := telemon.Retry(ctx, f); err != nil {
		log.Errorf("canbus done: %v", err)
	}
}

func (f *Forwarder) Name() string {
	return "canbus"
}

func (f *Forwarder) Open() error {
	c, err := Connect(f.portName)
	f.conn = c
	return err
}

func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}

func (f *Forwarder) Start(ctx context.Context) error {
	busErr := make(chan error, 1)
	go func() {
		busErr <- f.conn.Start(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-busErr:
			if err == nil {
				err = errors.New("can bus closed")
			}
			return err
		case s := <-f.samples:
			if err := f.conn.SendIMU(s); err != nil {
				return err
			}
		}
	}
}
