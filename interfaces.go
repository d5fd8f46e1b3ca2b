package telemon

import (
	"context"

	"github.com/soda-auto/telemon/ncom"
	"github.com/soda-auto/telemon/receiver"
)

// Source is the frame receiver the monitor drains. Receive returns
// receiver.ErrNoData on timeout and io.EOF when a finite source is
// exhausted.
type Source interface {
	Receive(ctx context.Context) (receiver.Datagram, error)
	Close() error
}

// Forwarder observes every accepted sample. Implementations must not block
// the receive loop; errors are logged and otherwise ignored.
type Forwarder interface {
	Forward(sample *ncom.Sample, latency LatencySample) error
}

// Snapshotter is implemented by anything a consumer can poll.
type Snapshotter interface {
	Snapshot() Snapshot
}
