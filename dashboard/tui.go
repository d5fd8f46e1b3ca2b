// Package dashboard renders monitor snapshots, either in the terminal or as
// chart pages over HTTP.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/soda-auto/telemon"
)

const sparkWidth = 60

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

type tickMsg time.Time

// TUI is a bubbletea model that redraws from a fresh snapshot on every
// refresh tick.
type TUI struct {
	src     telemon.Snapshotter
	refresh time.Duration
	snap    telemon.Snapshot
}

func NewTUI(src telemon.Snapshotter, refresh time.Duration) TUI {
	if refresh <= 0 {
		refresh = telemon.DefaultRefresh
	}
	return TUI{
		src:     src,
		refresh: refresh,
		snap:    src.Snapshot(),
	}
}

func (m TUI) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m TUI) Init() tea.Cmd {
	return m.tick()
}

func (m TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.src.Snapshot()
		return m, m.tick()
	}
	return m, nil
}

func (m TUI) View() string {
	var b strings.Builder
	snap := m.snap

	fmt.Fprintf(&b, "session %s  samples %d/%d  accepted %d  dropped %d\n\n",
		snap.Session, snap.Len(), snap.Capacity, snap.Accepted, snap.Dropped)
	fmt.Fprintf(&b, "%-9s %11s %11s %11s %11s %11s\n", "channel", "last", "mean", "stddev", "min", "max")
	for c := telemon.Channel(0); int(c) < telemon.NumChannels; c++ {
		st := snap.ChannelStats(c)
		fmt.Fprintf(&b, "%-9s %11.4f %11.4f %11.4f %11.4f %11.4f\n",
			c, st.Last, st.Mean, st.StdDev, st.Min, st.Max)
	}

	lat := snap.LatencyStats()
	fmt.Fprintf(&b, "\nlatency ms  last %.0f  mean %.1f  p50 %.0f  p95 %.0f  max %.0f\n",
		lat.Last, lat.Mean, lat.P50, lat.P95, lat.Max)
	b.WriteString(sparkline(snap.Latency, sparkWidth))
	b.WriteString("\n\nq to quit\n")
	return b.String()
}

// sparkline draws the newest width values scaled between their min and max.
func sparkline(values []int64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		level := 0
		if hi > lo {
			level = int((v - lo) * int64(len(sparkLevels)-1) / (hi - lo))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

// RunTUI blocks until the user quits or ctx is done.
func RunTUI(ctx context.Context, src telemon.Snapshotter, refresh time.Duration, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(NewTUI(src, refresh), opts...)
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
