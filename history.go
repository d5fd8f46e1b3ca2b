package telemon

import (
	"fmt"
	"sync"

	"github.com/soda-auto/telemon/ncom"
)

// HistoryBuffer is a fixed-capacity FIFO window. Pushing into a full buffer
// evicts the oldest value. It is not safe for concurrent use on its own;
// History guards a set of them with one lock.
type HistoryBuffer[T any] struct {
	data  []T
	start int
	n     int
}

func NewHistoryBuffer[T any](capacity int) *HistoryBuffer[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("telemon: history capacity must be positive, got %d", capacity))
	}
	return &HistoryBuffer[T]{data: make([]T, capacity)}
}

func (b *HistoryBuffer[T]) Push(v T) {
	if b.n < len(b.data) {
		b.data[(b.start+b.n)%len(b.data)] = v
		b.n++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

func (b *HistoryBuffer[T]) Len() int {
	return b.n
}

func (b *HistoryBuffer[T]) Cap() int {
	return len(b.data)
}

// Values returns a copy ordered oldest to newest.
func (b *HistoryBuffer[T]) Values() []T {
	out := make([]T, b.n)
	first := copy(out, b.data[b.start:min(b.start+b.n, len(b.data))])
	copy(out[first:], b.data[:b.n-first])
	return out
}

// Last returns the newest value.
func (b *HistoryBuffer[T]) Last() (T, bool) {
	var zero T
	if b.n == 0 {
		return zero, false
	}
	return b.data[(b.start+b.n-1)%len(b.data)], true
}

// Channel identifies one scalar history series.
type Channel int

const (
	AccelX Channel = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
	Yaw
	Pitch
	Roll

	NumChannels = int(Roll) + 1
)

var channelNames = [NumChannels]string{
	"accel_x", "accel_y", "accel_z",
	"gyro_x", "gyro_y", "gyro_z",
	"yaw", "pitch", "roll",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

func channelValues(s *ncom.Sample) [NumChannels]float64 {
	return [NumChannels]float64{
		AccelX: s.Acceleration.X,
		AccelY: s.Acceleration.Y,
		AccelZ: s.Acceleration.Z,
		GyroX:  s.AngularVelocity.X,
		GyroY:  s.AngularVelocity.Y,
		GyroZ:  s.AngularVelocity.Z,
		Yaw:    s.Orientation.Yaw,
		Pitch:  s.Orientation.Pitch,
		Roll:   s.Orientation.Roll,
	}
}

// TrackPoint is one position of the path history, in degrees.
type TrackPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// History is the set of per-channel buffers shared between the receive loop
// and one consumer. All channel buffers and the latency buffer advance
// together under a single lock, so they always have equal length. The
// position track is bounded by its own capacity.
type History struct {
	mu sync.Mutex

	channels [NumChannels]*HistoryBuffer[float64]
	latency  *HistoryBuffer[int64]
	track    *HistoryBuffer[TrackPoint]

	accepted uint64
	dropped  uint64
}

// NewHistory creates the buffer set. A trackCapacity of 0 disables the
// position track.
func NewHistory(capacity, trackCapacity int) *History {
	h := &History{
		latency: NewHistoryBuffer[int64](capacity),
	}
	for i := range h.channels {
		h.channels[i] = NewHistoryBuffer[float64](capacity)
	}
	if trackCapacity > 0 {
		h.track = NewHistoryBuffer[TrackPoint](trackCapacity)
	}
	return h
}

// PushAll appends one accepted sample to every buffer as a single step.
func (h *History) PushAll(s *ncom.Sample, latency LatencySample) {
	values := channelValues(s)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, v := range values {
		h.channels[i].Push(v)
	}
	h.latency.Push(latency.InterArrivalMs)
	if h.track != nil {
		h.track.Push(TrackPoint{Latitude: s.Latitude, Longitude: s.Longitude})
	}
	h.accepted++
}

// Drop counts a discarded frame. No buffer is touched.
func (h *History) Drop() {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latency.Len()
}

// Snapshot copies every buffer under the lock. The result corresponds to a
// prefix of the PushAll sequence and is never torn.
func (h *History) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Capacity: h.latency.Cap(),
		Accepted: h.accepted,
		Dropped:  h.dropped,
		Latency:  h.latency.Values(),
	}
	for i, b := range h.channels {
		snap.Channels[i] = b.Values()
	}
	if h.track != nil {
		snap.Track = h.track.Values()
	}
	return snap
}
