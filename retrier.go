package telemon

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

var retrySleep = time.Second

// Retryable is a side collaborator that can drop its connection, such as a
// CAN bus. The receive path itself is never retried: a failed bind is fatal.
type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// Retry opens and starts r, and closes and reopens it whenever Open or Start
// fails, until ctx is done.
func Retry(ctx context.Context, r Retryable) error {
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retrySleep):
			}
		}
		first = false

		if err := r.Open(); err != nil {
			log.WithField("err", err).Errorf("%s: unable to open", r.Name())
			closeRetryable(r)
			continue
		}
		err := r.Start(ctx)
		if ctx.Err() != nil {
			closeRetryable(r)
			return ctx.Err()
		}
		if err != nil {
			log.WithField("err", err).Errorf("%s: reconnecting due to error", r.Name())
		} else {
			log.Warnf("%s: stopped, reconnecting", r.Name())
		}
		closeRetryable(r)
	}
}

func closeRetryable(r Retryable) {
	if err := r.Close(); err != nil {
		log.WithField("err", err).Warnf("%s: unable to close", r.Name())
	}
}
