package telemon

import (
	"time"
)

// LatencySample is the wall-clock gap between two consecutive datagram
// arrivals. It measures the transport, not the payload, so it is taken for
// every datagram whether or not it decodes.
type LatencySample struct {
	InterArrivalMs int64
	Arrival        time.Time
}

// LatencyTracker is owned by the receive loop and is not safe for
// concurrent use.
type LatencyTracker struct {
	prev    time.Time
	started bool
}

// Observe returns the gap since the previous call. The first call after
// construction or Reset reports 0 so the latency series stays aligned with
// the other channels. A clock that steps backwards yields a negative gap,
// which is reported as-is.
func (lt *LatencyTracker) Observe(now time.Time) LatencySample {
	sample := LatencySample{Arrival: now}
	if lt.started {
		sample.InterArrivalMs = now.Sub(lt.prev).Milliseconds()
	}
	lt.prev = now
	lt.started = true
	return sample
}

func (lt *LatencyTracker) Reset() {
	lt.prev = time.Time{}
	lt.started = false
}
