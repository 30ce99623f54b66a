package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/compositor"
	"github.com/ivlev/chat2video/internal/config"
	"github.com/ivlev/chat2video/internal/engine"
	"github.com/ivlev/chat2video/internal/frame"
	"github.com/ivlev/chat2video/internal/imagecache"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/system"
	"github.com/ivlev/chat2video/internal/telemetry"
	"github.com/ivlev/chat2video/internal/timeline"
	"github.com/ivlev/chat2video/internal/typeface"
	"github.com/ivlev/chat2video/internal/video"
)

const (
	inputDir      = "input/chat"
	outputDir     = "output"
	benchmarkFile = "benchmark.log"
	rawOutput     = "-"
)

// resolveInput falls back to the newest chat log in input/chat.
func resolveInput(w io.Writer, input string) (string, error) {
	if input != "" {
		return input, nil
	}
	latest, err := system.FindLatestChat(inputDir)
	if err != nil {
		return "", config.NewError("input", "%v. Pass a chat file or put one into %s/", err, inputDir)
	}
	fmt.Fprintf(w, "[*] Selected chat: %s\n", latest)
	return latest, nil
}

// loadEvents parses the chat log and cuts it at the configured end time.
func loadEvents(ctx context.Context, cfg *config.Config) ([]chatlog.Event, error) {
	_, span := telemetry.StartSpan(ctx, "load_chat", attribute.String("path", cfg.InputPath))
	events, err := chatlog.ParseFile(cfg.InputPath)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return chatlog.Until(events, cfg.EndTime), nil
}

// renderer carries everything that is built once per render.
type renderer struct {
	cfg     *config.Config
	metrics layout.Metrics
	fonts   typeface.Set
	cache   *imagecache.Cache
}

func newRenderer(cfg *config.Config, console io.Writer) *renderer {
	fonts, warnings := typeface.LoadSet(cfg.FontRegular, cfg.FontMedium, typeface.BaseSize)
	for _, w := range warnings {
		printWarning(console, "Font could not be loaded, using the embedded fallback: %v", w)
	}
	return &renderer{
		cfg:     cfg,
		metrics: layout.NewMetrics(cfg.Width, cfg.Height, cfg.Padding, cfg.Scale),
		fonts:   fonts,
		cache:   imagecache.New(),
	}
}

func (r *renderer) Close() { r.fonts.Close() }

func (r *renderer) layoutEngine() *layout.Engine {
	return layout.NewEngine(r.metrics, r.fonts.Author, r.fonts.Message, r.cache, r.cfg.Clip)
}

func (r *renderer) compositor() *compositor.Compositor {
	bg, _ := r.cfg.BackgroundColor()
	return compositor.New(r.metrics, compositor.Options{
		Background:  bg,
		AuthorColor: r.cfg.AuthorColor(),
		Transparent: r.cfg.Transparent,
		Fonts:       r.fonts,
	})
}

// loadDiskCache reads previously downloaded images when --cache is on.
func (r *renderer) loadDiskCache(console io.Writer, logger *slog.Logger) *imagecache.Loader {
	dir := ""
	if r.cfg.DiskCache {
		dir = r.cfg.CacheDir
	}
	loader := imagecache.NewLoader(dir, r.cfg.Workers, logger)
	if dir == "" {
		return loader
	}
	n, err := loader.LoadDisk(r.cache)
	if err != nil {
		printWarning(console, "Disk cache %s is not usable: %v", dir, err)
		loader.Dir = ""
		return loader
	}
	logger.Info("disk cache loaded", slog.String("dir", dir), slog.Int("images", n))
	return loader
}

// fetchImages downloads avatars and emoji that are not cached yet.
func (r *renderer) fetchImages(ctx context.Context, loader *imagecache.Loader, events []chatlog.Event, m *telemetry.Metrics) error {
	var reqs []imagecache.Request
	if !r.cfg.SkipAvatars {
		for _, u := range chatlog.AvatarURLs(events) {
			reqs = append(reqs, imagecache.Request{URL: u, Size: r.metrics.AvatarSize})
		}
	}
	if !r.cfg.SkipEmojis {
		for _, u := range chatlog.EmojiURLs(events) {
			reqs = append(reqs, imagecache.Request{URL: u, Size: r.metrics.EmojiSize})
		}
	}
	if len(reqs) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "fetch_images", attribute.Int("requests", len(reqs)))
	res, err := loader.Populate(ctx, r.cache, reqs)
	telemetry.EndSpan(span, err)

	m.ImagesDownloaded.Add(float64(res.Downloaded))
	m.ImagesMissing.Add(float64(res.Missing))
	loader.Logger.Info("images ready",
		slog.Int("downloaded", res.Downloaded),
		slog.Int("missing", res.Missing),
		slog.Int("cached", r.cache.Len()))
	return err
}

func (a *app) render(cmd *cobra.Command, input string) error {
	ctx := telemetry.WithRunID(cmd.Context(), a.runID)

	cfg, err := a.config()
	if err != nil {
		return err
	}

	raw := cfg.OutputVideo == rawOutput
	// stdout carries the video when streaming raw frames.
	console := cmd.OutOrStdout()
	if raw {
		console = cmd.ErrOrStderr()
	}

	shutdown, err := telemetry.InitTracing("chat2video", version, a.logger)
	if err != nil {
		a.logger.Warn("tracing unavailable", slog.Any("err", err))
	} else {
		defer shutdown()
	}

	if cfg.InputPath, err = resolveInput(console, input); err != nil {
		return err
	}

	events, err := loadEvents(ctx, cfg)
	if err != nil {
		return err
	}
	window, err := timeline.NewWindow(events, cfg.StartTime, cfg.EndTime, cfg.FPS)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	metrics.Messages.Set(float64(len(events)))

	r := newRenderer(cfg, console)
	defer r.Close()

	if !cfg.DiskCache {
		printHint(console, "Image caching is disabled. Use --cache to keep avatars and emoji between runs.")
	}
	loader := r.loadDiskCache(console, a.logger)
	if err := r.fetchImages(ctx, loader, events, metrics); err != nil {
		return err
	}

	sink, err := a.sink(ctx, cmd, cfg, console)
	if err != nil {
		return err
	}

	fmt.Fprintln(console, "--- [CHAT2VIDEO] ---")
	fmt.Fprintf(console, "[*] Chat: %s | Messages: %d\n", cfg.InputPath, len(events))
	fmt.Fprintf(console, "[*] Resolution: %dx%d @ %d FPS | Frames: %d (%.2fs)\n", cfg.Width, cfg.Height, cfg.FPS, window.Frames, window.DurationSec())
	fmt.Fprintln(console, "--------------------")

	rc := engine.RenderContext{
		Frame:  frame.New(cfg.Width, cfg.Height, cfg.Transparent),
		Images: r.cache,
	}
	p := engine.NewPipeline(events, window, r.layoutEngine(), r.compositor(), rc, sink, engine.Options{
		Metrics:  metrics,
		Logger:   a.logger,
		Progress: progressPrinter(console),
	})

	stats, runErr := p.Run(ctx)
	a.logger.Info("render finished",
		slog.String("state", p.State().String()),
		slog.Int("frames", stats.Frames),
		slog.Int("repaints", stats.Repaints),
		slog.Duration("elapsed", stats.Elapsed))

	if cfg.MetricsFile != "" {
		if err := metrics.WriteToTextfile(cfg.MetricsFile); err != nil {
			printWarning(console, "Could not write metrics to %s: %v", cfg.MetricsFile, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if cfg.ShowStats {
		fmt.Fprint(console, stats.Report(cfg.BuildVersion))
		fmt.Fprintf(console, "%s\n", system.ReadUsage())
		if err := engine.AppendLog(benchmarkFile, stats.LogEntry(cfg.BuildVersion, cfg.InputPath, time.Now())); err != nil {
			printWarning(console, "Could not write %s: %v", benchmarkFile, err)
		}
	}

	if !raw {
		fmt.Fprintln(console, okStyle.Render("[+++] Done! Video saved to: "+cfg.OutputVideo))
	}
	return nil
}

// sink picks the raw stdout stream or an ffmpeg process, filling in the output
// name, encoder and quality that were not configured.
func (a *app) sink(ctx context.Context, cmd *cobra.Command, cfg *config.Config, console io.Writer) (video.FrameSink, error) {
	if cfg.OutputVideo == rawOutput {
		return video.NewWriterSink(cmd.OutOrStdout()), nil
	}

	if err := video.CheckFFmpeg("ffmpeg"); err != nil {
		return nil, err
	}

	if cfg.OutputVideo == "" {
		cfg.OutputVideo = system.OutputPath(outputDir, cfg.InputPath, video.OutputExt(cfg.Transparent), time.Now())
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputVideo), 0755); err != nil {
		return nil, err
	}

	switch {
	case cfg.Transparent:
		cfg.VideoEncoder = video.AlphaEncoder(cfg.OutputVideo)
	case cfg.VideoEncoder == "":
		cfg.VideoEncoder = system.GetBestH264Encoder(ctx, "ffmpeg")
		if cfg.VideoEncoder != "libx264" {
			fmt.Fprintf(console, "[*] Hardware encoder detected: %s\n", cfg.VideoEncoder)
		}
	}
	if cfg.Quality == 0 {
		cfg.Quality = video.DefaultQuality(cfg.VideoEncoder)
	}

	return video.NewFFmpegSink(video.Params{
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		PixelFormat: cfg.PixelFormat(),
		Encoder:     cfg.VideoEncoder,
		Quality:     cfg.Quality,
		Output:      cfg.OutputVideo,
	}), nil
}
