package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/compositor"
	"github.com/ivlev/chat2video/internal/frame"
	"github.com/ivlev/chat2video/internal/imagecache"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/telemetry"
	"github.com/ivlev/chat2video/internal/timeline"
	"github.com/ivlev/chat2video/internal/typeface"
	"github.com/ivlev/chat2video/internal/video"
)

type recordingSink struct {
	frames  [][]byte
	failAt  int
	started bool
	closed  int
}

func newRecordingSink() *recordingSink { return &recordingSink{failAt: -1} }

func (s *recordingSink) Start(context.Context) error {
	s.started = true
	return nil
}

func (s *recordingSink) WriteFrame(index int, data []byte) error {
	if index == s.failAt {
		return &video.SinkWriteError{Frame: index, Err: io.ErrClosedPipe}
	}
	s.frames = append(s.frames, bytes.Clone(data))
	return nil
}

func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

func message(ts int64, author, avatar, text string) chatlog.Event {
	return chatlog.Event{
		TimestampMs: ts,
		Author:      author,
		AvatarURL:   avatar,
		Runs:        []chatlog.Run{chatlog.TextRun{Text: text}},
	}
}

type harness struct {
	events  []chatlog.Event
	cache   *imagecache.Cache
	sink    *recordingSink
	metrics *telemetry.Metrics
}

func newHarness(events ...chatlog.Event) *harness {
	return &harness{
		events:  events,
		cache:   imagecache.New(),
		sink:    newRecordingSink(),
		metrics: telemetry.NewMetrics(),
	}
}

func (h *harness) pipeline(t *testing.T, progress func(done, total int)) *Pipeline {
	t.Helper()
	fonts, _ := typeface.LoadSet("", "", typeface.BaseSize)
	t.Cleanup(fonts.Close)

	m := layout.NewMetrics(200, 100, 10, 1)
	window, err := timeline.NewWindow(h.events, 0, 0, 10)
	require.NoError(t, err)

	le := layout.NewEngine(m, fonts.Author, fonts.Message, h.cache, true)
	comp := compositor.New(m, compositor.Options{
		Background:  color.RGBA{R: 15, G: 15, B: 15, A: 255},
		AuthorColor: color.RGBA{R: 183, G: 183, B: 183, A: 255},
		Fonts:       fonts,
	})
	rc := RenderContext{Frame: frame.New(m.Width, m.Height, false), Images: h.cache}
	return NewPipeline(h.events, window, le, comp, rc, h.sink, Options{
		Metrics:  h.metrics,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Progress: progress,
	})
}

func defaultEvents() []chatlog.Event {
	return []chatlog.Event{
		message(0, "Alice", "", "first"),
		message(500, "Bob", "https://a/bob.png", "second"),
		message(1500, "Carol", "", "third"),
	}
}

func TestPipelineRendersEveryFrame(t *testing.T) {
	h := newHarness(defaultEvents()...)
	var progress []int
	p := h.pipeline(t, func(done, total int) {
		assert.Equal(t, 15, total)
		progress = append(progress, done)
	})

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15, stats.Frames)
	assert.Len(t, h.sink.frames, 15)
	assert.Equal(t, 1, h.sink.closed)
	assert.Equal(t, Done, p.State())
	assert.Equal(t, []State{Idle, Rendering, Draining, Done}, p.Transitions())
	assert.Len(t, progress, 15)
	assert.Equal(t, 15, progress[14])

	// Repaints at t=0 and t=500ms; the 1.5s message lands on the first frame
	// after the window.
	assert.Equal(t, 2, stats.Repaints)
	assert.Equal(t, h.sink.frames[0], h.sink.frames[4])
	assert.NotEqual(t, h.sink.frames[4], h.sink.frames[5])
	assert.Equal(t, h.sink.frames[5], h.sink.frames[14])
	assert.Len(t, h.sink.frames[0], 200*100*3)

	require.Len(t, p.Context().Layouts, 2)
	assert.Equal(t, "Bob", p.Context().Layouts[0].Event.Author)
}

func TestPipelineSinkFailure(t *testing.T) {
	h := newHarness(defaultEvents()...)
	h.sink.failAt = 3
	p := h.pipeline(t, nil)

	stats, err := p.Run(context.Background())
	var werr *video.SinkWriteError
	require.True(t, errors.As(err, &werr), "got %v", err)
	assert.Equal(t, 3, werr.Frame)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, Failed, p.State())
	assert.Equal(t, 1, h.sink.closed, "sink is closed after a failure")
	assert.Equal(t, []State{Idle, Rendering, Failed}, p.Transitions())
}

func TestPipelineCacheMismatchKeepsWrittenFrames(t *testing.T) {
	h := newHarness(defaultEvents()...)
	bad := image.NewRGBA(image.Rect(0, 0, 7, 7))
	h.cache.Put(imagecache.Key("https://a/bob.png"), bad)
	p := h.pipeline(t, nil)

	_, err := p.Run(context.Background())
	var mismatch *compositor.CacheDimensionMismatch
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, imagecache.Key("https://a/bob.png"), mismatch.Key)
	assert.Contains(t, err.Error(), "frame 5")

	assert.Len(t, h.sink.frames, 5, "frames before the bad message are kept")
	assert.Equal(t, 1, h.sink.closed)
	assert.Equal(t, Failed, p.State())
}

func TestPipelineCancellation(t *testing.T) {
	h := newHarness(defaultEvents()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := h.pipeline(t, func(done, _ int) {
		if done == 3 {
			cancel()
		}
	})
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.sink.frames, 3)
	assert.Equal(t, 1, h.sink.closed)
	assert.Equal(t, Failed, p.State())
}

func TestPipelineRunsOnce(t *testing.T) {
	h := newHarness(defaultEvents()...)
	p := h.pipeline(t, nil)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
	assert.Equal(t, 1, h.sink.closed)
}

func TestPipelineMetrics(t *testing.T) {
	h := newHarness(defaultEvents()...)
	_, err := h.pipeline(t, nil).Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, h.metrics.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat2video_frames_rendered_total 15")
	assert.Contains(t, string(data), "chat2video_frames_repainted_total 2")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestStatsReport(t *testing.T) {
	s := Stats{Frames: 100, Repaints: 7, Elapsed: 2 * time.Second}
	assert.InDelta(t, 50.0, s.EffectiveFPS(), 1e-9)
	assert.Zero(t, Stats{}.EffectiveFPS())

	report := s.Report("dev")
	assert.Contains(t, report, "Frames: 100 (repainted: 7)")
	assert.Contains(t, report, "Effective FPS: 50.00")

	entry := s.LogEntry("dev", "input/chat/stream.json", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.True(t, strings.HasPrefix(entry, "[2024-01-02 03:04:05] Build: dev | Input: stream.json"))

	path := filepath.Join(t.TempDir(), "benchmark.log")
	require.NoError(t, AppendLog(path, entry))
	require.NoError(t, AppendLog(path, entry))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
