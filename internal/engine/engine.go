package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/compositor"
	"github.com/ivlev/chat2video/internal/frame"
	"github.com/ivlev/chat2video/internal/imagecache"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/telemetry"
	"github.com/ivlev/chat2video/internal/timeline"
	"github.com/ivlev/chat2video/internal/video"
)

type State int

const (
	Idle State = iota
	Rendering
	Draining
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Draining:
		return "draining"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrAlreadyRun = errors.New("pipeline already ran")

// RenderContext is the drawing state shared by every frame of one render.
// Layouts holds the most recent layout; Frame keeps its pixels until the
// next repaint.
type RenderContext struct {
	Frame   *frame.Frame
	Images  imagecache.Lookup
	Layouts []layout.MessageLayout
}

type Options struct {
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	// Progress is called after every emitted frame.
	Progress func(done, total int)
}

// Pipeline renders the frames of one window in order and streams them to a
// sink. It is single-use.
type Pipeline struct {
	window     timeline.Window
	cursor     *timeline.Cursor
	layout     *layout.Engine
	compositor *compositor.Compositor
	sink       video.FrameSink
	rc         RenderContext
	opts       Options

	state       State
	transitions []State
}

// NewPipeline expects events sorted and already cut at the window end.
func NewPipeline(
	events []chatlog.Event,
	window timeline.Window,
	le *layout.Engine,
	comp *compositor.Compositor,
	rc RenderContext,
	sink video.FrameSink,
	opts Options,
) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		window:      window,
		cursor:      timeline.NewCursor(events),
		layout:      le,
		compositor:  comp,
		sink:        sink,
		rc:          rc,
		opts:        opts,
		transitions: []State{Idle},
	}
}

func (p *Pipeline) State() State { return p.state }

// Transitions lists every state the pipeline went through, starting at Idle.
func (p *Pipeline) Transitions() []State {
	return append([]State(nil), p.transitions...)
}

// Context exposes the drawing state, mainly for inspection after a run.
func (p *Pipeline) Context() *RenderContext { return &p.rc }

func (p *Pipeline) setState(s State) {
	p.opts.Logger.Debug("pipeline state", slog.String("from", p.state.String()), slog.String("to", s.String()))
	p.state = s
	p.transitions = append(p.transitions, s)
}

// fail closes the sink so frames already written are finalized, then
// reports err.
func (p *Pipeline) fail(err error) error {
	p.setState(Failed)
	if cerr := p.sink.Close(); cerr != nil {
		p.opts.Logger.Warn("closing sink after failure", slog.Any("err", cerr))
	}
	return err
}

// Run renders every frame of the window. Compositing and sink errors stop the
// render; cancellation is checked between frames.
func (p *Pipeline) Run(ctx context.Context) (stats Stats, err error) {
	if p.state != Idle {
		return stats, ErrAlreadyRun
	}

	ctx, span := telemetry.StartSpan(ctx, "render",
		attribute.Int("frames", p.window.Frames),
		attribute.Int("fps", p.window.FPS),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		if m := p.opts.Metrics; m != nil {
			m.RenderDuration.Observe(stats.Elapsed.Seconds())
		}
	}()

	p.setState(Rendering)
	if err := p.sink.Start(ctx); err != nil {
		p.setState(Failed)
		return stats, err
	}

	total := p.window.Frames
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return stats, p.fail(err)
		}

		p.cursor.Advance(p.window.FrameTimeMs(i))
		if p.cursor.Dirty() {
			if err := p.repaint(&stats); err != nil {
				return stats, p.fail(fmt.Errorf("frame %d: %w", i, err))
			}
		}

		writeStart := time.Now()
		if err := p.sink.WriteFrame(i, p.rc.Frame.Bytes()); err != nil {
			return stats, p.fail(err)
		}
		stats.EncodeTime += time.Since(writeStart)
		stats.Frames++
		if m := p.opts.Metrics; m != nil {
			m.FramesRendered.Inc()
		}
		if p.opts.Progress != nil {
			p.opts.Progress(i+1, total)
		}
	}

	p.setState(Draining)
	drainStart := time.Now()
	if err := p.sink.Close(); err != nil {
		p.setState(Failed)
		return stats, err
	}
	stats.EncodeTime += time.Since(drainStart)
	p.setState(Done)
	return stats, nil
}

func (p *Pipeline) repaint(stats *Stats) error {
	layoutObs, paintObs := observers(p.opts.Metrics)

	stats.LayoutTime += telemetry.TimeFunc(layoutObs, func() {
		p.rc.Layouts = p.layout.Compute(p.cursor.Visible())
	})

	var err error
	stats.PaintTime += telemetry.TimeFunc(paintObs, func() {
		err = p.compositor.Paint(p.rc.Frame.RGBA, p.rc.Layouts, p.rc.Images)
	})
	if err != nil {
		return err
	}

	p.rc.Frame.Invalidate()
	p.cursor.Clean()
	stats.Repaints++
	if m := p.opts.Metrics; m != nil {
		m.FramesRepainted.Inc()
	}
	return nil
}

func observers(m *telemetry.Metrics) (layoutObs, paintObs prometheus.Observer) {
	if m == nil {
		return nil, nil
	}
	return m.LayoutDuration, m.PaintDuration
}
