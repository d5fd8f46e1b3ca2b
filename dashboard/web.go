package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon"
)

// WebServer serves chart pages and JSON built from one snapshot per request.
type WebServer struct {
	address string
	src     telemon.Snapshotter
	server  *http.Server
}

func NewWebServer(src telemon.Snapshotter, address string) *WebServer {
	ws := &WebServer{
		address: address,
		src:     src,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.handleCharts)
	mux.HandleFunc("/snapshot", ws.handleSnapshot)
	return mux
}

// Start serves until ctx is done.
func (ws *WebServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.WithField("addr", ws.address).Info("starting HTTP server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("HTTP server shutdown error")
		if err := ws.server.Close(); err != nil {
			log.WithField("err", err).Warn("HTTP server force close error")
		}
	}
	log.Info("HTTP server stopped")
	return nil
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type series struct {
	name   string
	values []float64
}

func lineChart(title, subtitle string, xs []string, ss ...series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)
	line.SetXAxis(xs)
	for _, s := range ss {
		data := make([]opts.LineData, len(s.values))
		for i, v := range s.values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

func channelSeries(snap telemon.Snapshot, channels ...telemon.Channel) []series {
	out := make([]series, len(channels))
	for i, c := range channels {
		out[i] = series{name: c.String(), values: snap.Channel(c)}
	}
	return out
}

func (ws *WebServer) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ws.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	snap := ws.src.Snapshot()

	// x axis counts samples back from the newest
	xs := make([]string, snap.Len())
	for i := range xs {
		xs[i] = strconv.Itoa(i - len(xs) + 1)
	}
	latency := make([]float64, len(snap.Latency))
	for i, v := range snap.Latency {
		latency[i] = float64(v)
	}
	lat := snap.LatencyStats()

	page := components.NewPage()
	page.PageTitle = "telemon"
	page.AddCharts(
		lineChart("Acceleration", "m/s²", xs,
			channelSeries(snap, telemon.AccelX, telemon.AccelY, telemon.AccelZ)...),
		lineChart("Angular velocity", "rad/s", xs,
			channelSeries(snap, telemon.GyroX, telemon.GyroY, telemon.GyroZ)...),
		lineChart("Orientation", "rad", xs,
			channelSeries(snap, telemon.Yaw, telemon.Pitch, telemon.Roll)...),
		lineChart("Latency",
			fmt.Sprintf("ms between datagrams, p50 %.0f p95 %.0f, dropped %d", lat.P50, lat.P95, snap.Dropped),
			xs, series{name: "inter-arrival", values: latency}),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type snapshotResponse struct {
	Session      string               `json:"session"`
	Capacity     int                  `json:"capacity"`
	Accepted     uint64               `json:"accepted"`
	Dropped      uint64               `json:"dropped"`
	Channels     map[string][]float64 `json:"channels"`
	Latency      []int64              `json:"latency_ms"`
	LatencyStats telemon.SeriesStats  `json:"latency_stats"`
	Track        []telemon.TrackPoint `json:"track,omitempty"`
}

func (ws *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	snap := ws.src.Snapshot()
	resp := snapshotResponse{
		Session:      snap.Session,
		Capacity:     snap.Capacity,
		Accepted:     snap.Accepted,
		Dropped:      snap.Dropped,
		Channels:     make(map[string][]float64, telemon.NumChannels),
		Latency:      snap.Latency,
		LatencyStats: snap.LatencyStats(),
		Track:        snap.Track,
	}
	for c := telemon.Channel(0); int(c) < telemon.NumChannels; c++ {
		resp.Channels[c.String()] = snap.Channel(c)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithField("err", err).Warn("unable to encode snapshot")
	}
}
