// Package telemetry carries render metrics, tracing setup and the run id.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on their own registry so that a run can dump them
// to a node_exporter textfile without any global state.
type Metrics struct {
	Registry *prometheus.Registry

	FramesRendered   prometheus.Counter
	FramesRepainted  prometheus.Counter
	ImagesDownloaded prometheus.Counter
	ImagesMissing    prometheus.Counter
	Messages         prometheus.Gauge

	// Histograms (seconds)
	LayoutDuration prometheus.Observer
	PaintDuration  prometheus.Observer
	RenderDuration prometheus.Observer
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry:         reg,
		FramesRendered:   f.NewCounter(prometheus.CounterOpts{Name: "chat2video_frames_rendered_total", Help: "Frames written to the encoder"}),
		FramesRepainted:  f.NewCounter(prometheus.CounterOpts{Name: "chat2video_frames_repainted_total", Help: "Frames that needed a new layout and repaint"}),
		ImagesDownloaded: f.NewCounter(prometheus.CounterOpts{Name: "chat2video_images_downloaded_total", Help: "Avatars and emoji fetched over HTTP"}),
		ImagesMissing:    f.NewCounter(prometheus.CounterOpts{Name: "chat2video_images_missing_total", Help: "Avatars and emoji that could not be obtained"}),
		Messages:         f.NewGauge(prometheus.GaugeOpts{Name: "chat2video_messages", Help: "Chat messages in the render window"}),
		LayoutDuration:   f.NewHistogram(prometheus.HistogramOpts{Name: "chat2video_layout_duration_seconds", Help: "Time spent computing one layout", Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8)}),
		PaintDuration:    f.NewHistogram(prometheus.HistogramOpts{Name: "chat2video_paint_duration_seconds", Help: "Time spent painting one frame", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8)}),
		RenderDuration:   f.NewHistogram(prometheus.HistogramOpts{Name: "chat2video_render_duration_seconds", Help: "Wall time of the whole render", Buckets: prometheus.DefBuckets}),
	}
}

// WriteToTextfile dumps the registry in the Prometheus text format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

type runIDKey struct{}

// NewRunID returns a fresh id for correlating logs and spans of one render.
func NewRunID() string { return uuid.NewString() }

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(runIDKey{}).(string)
	return s
}
