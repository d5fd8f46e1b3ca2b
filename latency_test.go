package telemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyFirstObservation(t *testing.T) {
	lt := LatencyTracker{}
	start := time.Unix(1700000000, 0)

	s := lt.Observe(start)
	assert.Equal(t, int64(0), s.InterArrivalMs)
	assert.True(t, start.Equal(s.Arrival))

	s = lt.Observe(start.Add(15 * time.Millisecond))
	assert.Equal(t, int64(15), s.InterArrivalMs)

	s = lt.Observe(start.Add(25*time.Millisecond + 900*time.Microsecond))
	assert.Equal(t, int64(10), s.InterArrivalMs, "truncated to whole milliseconds")
}

func TestLatencyNegative(t *testing.T) {
	lt := LatencyTracker{}
	start := time.Unix(1700000000, 0)

	lt.Observe(start)
	s := lt.Observe(start.Add(-40 * time.Millisecond))
	assert.Equal(t, int64(-40), s.InterArrivalMs)

	// the anomaly becomes the new reference
	s = lt.Observe(start)
	assert.Equal(t, int64(40), s.InterArrivalMs)
}

func TestLatencyReset(t *testing.T) {
	lt := LatencyTracker{}
	start := time.Unix(1700000000, 0)

	lt.Observe(start)
	lt.Observe(start.Add(time.Second))
	lt.Reset()

	s := lt.Observe(start.Add(time.Hour))
	assert.Equal(t, int64(0), s.InterArrivalMs)
}
