package telemon

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-auto/telemon/ncom"
)

func TestHistoryBufferEviction(t *testing.T) {
	const capacity = 7
	for _, k := range []int{1, capacity, 10 * capacity} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			b := NewHistoryBuffer[int](capacity)
			total := capacity + k
			for i := 0; i < total; i++ {
				b.Push(i)
			}

			expected := make([]int, 0, capacity)
			for i := total - capacity; i < total; i++ {
				expected = append(expected, i)
			}
			assert.Equal(t, capacity, b.Len())
			assert.Equal(t, capacity, b.Cap())
			assert.Equal(t, expected, b.Values())

			last, ok := b.Last()
			assert.True(t, ok)
			assert.Equal(t, total-1, last)
		})
	}
}

func TestHistoryBufferPartial(t *testing.T) {
	b := NewHistoryBuffer[float64](4)
	_, ok := b.Last()
	assert.False(t, ok)
	assert.Empty(t, b.Values())

	b.Push(1.5)
	b.Push(2.5)
	assert.Equal(t, []float64{1.5, 2.5}, b.Values())

	// Values is a copy
	v := b.Values()
	v[0] = 99
	assert.Equal(t, []float64{1.5, 2.5}, b.Values())
}

func TestHistoryBufferCapacityOne(t *testing.T) {
	b := NewHistoryBuffer[int](1)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{2}, b.Values())
}

func TestHistoryBufferInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() {
		NewHistoryBuffer[int](0)
	})
}

func testSample(v float64) *ncom.Sample {
	return &ncom.Sample{
		Acceleration:    ncom.Vector3{X: v, Y: v + 1, Z: v + 2},
		AngularVelocity: ncom.Vector3{X: v + 3, Y: v + 4, Z: v + 5},
		Orientation:     ncom.Orientation{Yaw: v + 6, Pitch: v + 7, Roll: v + 8},
		Latitude:        v,
		Longitude:       -v,
	}
}

func TestHistoryPushAll(t *testing.T) {
	h := NewHistory(3, 2)
	for i := 0; i < 5; i++ {
		h.PushAll(testSample(float64(i*10)), LatencySample{InterArrivalMs: int64(i)})
	}
	h.Drop()

	snap := h.Snapshot()
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 3, snap.Capacity)
	assert.Equal(t, uint64(5), snap.Accepted)
	assert.Equal(t, uint64(1), snap.Dropped)

	assert.Equal(t, []int64{2, 3, 4}, snap.Latency)
	assert.Equal(t, []float64{20, 30, 40}, snap.Channel(AccelX))
	assert.Equal(t, []float64{28, 38, 48}, snap.Channel(Roll))
	assert.Equal(t, []TrackPoint{{30, -30}, {40, -40}}, snap.Track)
	for c := Channel(0); int(c) < NumChannels; c++ {
		assert.Len(t, snap.Channel(c), snap.Len(), c.String())
	}
}

func TestHistoryNoTrack(t *testing.T) {
	h := NewHistory(3, 0)
	h.PushAll(testSample(1), LatencySample{})
	assert.Nil(t, h.Snapshot().Track)
	assert.Equal(t, 1, h.Len())
}

func TestHistoryConcurrentSnapshot(t *testing.T) {
	const pushes = 2000
	h := NewHistory(50, 0)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < pushes; i++ {
			h.PushAll(testSample(float64(i)), LatencySample{InterArrivalMs: int64(i)})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snap := h.Snapshot()
		for c := Channel(0); int(c) < NumChannels; c++ {
			series := snap.Channel(c)
			require.Len(t, series, snap.Len())
			// every channel of one sample derives from the same value
			for i, v := range series {
				require.Equal(t, float64(snap.Latency[i])+float64(c), v)
			}
		}
		select {
		case <-done:
			assert.Equal(t, uint64(pushes), h.Snapshot().Accepted)
			return
		default:
		}
	}
}

func TestChannelString(t *testing.T) {
	assert.Equal(t, "accel_x", AccelX.String())
	assert.Equal(t, "roll", Roll.String())
	assert.Equal(t, "channel(42)", Channel(42).String())
}
