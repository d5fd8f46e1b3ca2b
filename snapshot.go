package telemon

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Snapshot is an immutable copy of the History at one instant. Every channel
// series and Latency have the same length.
type Snapshot struct {
	Session  string
	Capacity int

	// Accepted and Dropped count frames since the monitor started, including
	// those already evicted from the window.
	Accepted uint64
	Dropped  uint64

	Channels [NumChannels][]float64
	Latency  []int64
	Track    []TrackPoint
}

func (s Snapshot) Channel(c Channel) []float64 {
	if c < 0 || int(c) >= NumChannels {
		return nil
	}
	return s.Channels[c]
}

func (s Snapshot) Len() int {
	return len(s.Latency)
}

// SeriesStats summarises one series.
type SeriesStats struct {
	Count  int
	Last   float64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	P50    float64
	P95    float64
}

// Summarize computes SeriesStats; the zero value is returned for an empty
// series.
func Summarize(xs []float64) SeriesStats {
	if len(xs) == 0 {
		return SeriesStats{}
	}
	st := SeriesStats{Count: len(xs), Last: xs[len(xs)-1]}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	st.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	st.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	st.Mean, st.StdDev = stat.MeanStdDev(sorted, nil)
	if math.IsNaN(st.StdDev) {
		st.StdDev = 0
	}
	return st
}

func (s Snapshot) ChannelStats(c Channel) SeriesStats {
	return Summarize(s.Channel(c))
}

func (s Snapshot) LatencyStats() SeriesStats {
	xs := make([]float64, len(s.Latency))
	for i, v := range s.Latency {
		xs[i] = float64(v)
	}
	return Summarize(xs)
}
