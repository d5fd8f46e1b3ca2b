package telemon

import (
	"context"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon/ncom"
	"github.com/soda-auto/telemon/receiver"
)

// Monitor drains a Source, decodes each datagram and appends accepted
// samples to its History. Run must be called from a single goroutine;
// Snapshot may be called from any.
type Monitor struct {
	source  Source
	decoder ncom.Decoder
	strict  bool
	session string

	history *History
	latency LatencyTracker

	forwarders []Forwarder
}

func NewMonitor(source Source, cfg Config) *Monitor {
	return &Monitor{
		source:  source,
		decoder: cfg.Decoder.Decoder(),
		strict:  cfg.Monitor.Strict,
		session: uuid.NewString(),
		history: NewHistory(cfg.History.Capacity, cfg.History.TrackCapacity),
	}
}

// AddForwarder registers a side observer. Forwarders must be added before
// Run is started.
func (m *Monitor) AddForwarder(fwd Forwarder) {
	m.forwarders = append(m.forwarders, fwd)
}

func (m *Monitor) Session() string {
	return m.session
}

func (m *Monitor) Snapshot() Snapshot {
	snap := m.history.Snapshot()
	snap.Session = m.session
	return snap
}

// Run receives until ctx is done or a finite source is exhausted, both of
// which return nil. In strict mode the first malformed frame ends Run with
// its *ncom.ProtocolError.
func (m *Monitor) Run(ctx context.Context) error {
	logger := log.WithField("session", m.session)
	logger.Info("monitor started")
	defer func() {
		snap := m.history.Snapshot()
		logger.WithField("accepted", snap.Accepted).
			WithField("dropped", snap.Dropped).
			Info("monitor stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		dg, err := m.source.Receive(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == receiver.ErrNoData:
			continue
		case err == io.EOF:
			logger.Info("source exhausted")
			return nil
		case errors.Is(err, net.ErrClosed):
			return errors.Wrap(err, "receive")
		}

		var perr *ncom.ProtocolError
		if err != nil && !errors.As(err, &perr) {
			if m.strict {
				return errors.Wrap(err, "receive")
			}
			logger.WithField("err", err).Warn("receive failed")
			continue
		}

		if err := m.handle(dg, err); err != nil {
			return err
		}
	}
}

// handle accounts one datagram. Latency is observed for every datagram,
// malformed or not, but pushed only together with a decoded sample so that
// every buffer keeps the same length.
func (m *Monitor) handle(dg receiver.Datagram, recvErr error) error {
	latency := m.latency.Observe(dg.Arrival)

	err := recvErr
	var sample *ncom.Sample
	if err == nil {
		sample, err = m.decoder.Decode(dg.Payload)
	}
	if err != nil {
		m.history.Drop()
		m.logDropped(dg, err)
		if m.strict {
			return err
		}
		return nil
	}

	m.history.PushAll(sample, latency)
	for _, fwd := range m.forwarders {
		if err := fwd.Forward(sample, latency); err != nil {
			log.WithField("err", err).Warn("unable to forward sample")
		}
	}
	return nil
}

func (m *Monitor) logDropped(dg receiver.Datagram, err error) {
	entry := log.WithField("session", m.session).
		WithField("len", len(dg.Payload))
	var perr *ncom.ProtocolError
	if errors.As(err, &perr) {
		entry = entry.WithField("kind", perr.Kind.String())
		if perr.Channel >= 0 {
			entry = entry.WithField("channel", perr.Channel)
		}
	}
	entry.WithField("err", err).Warn("discarding frame")
}
