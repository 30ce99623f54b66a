package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ivlev/chat2video/internal/compositor"
	"github.com/ivlev/chat2video/internal/config"
	"github.com/ivlev/chat2video/internal/video"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("[!] "+fmt.Sprintf(format, args...)))
}

func printHint(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, hintStyle.Render("    "+fmt.Sprintf(format, args...)))
}

// printError reports err and, for the errors a user can act on, how to fix it.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("[-] Error: "+err.Error()))

	var cerr *config.ConfigurationError
	var mismatch *compositor.CacheDimensionMismatch
	switch {
	case errors.As(err, &cerr):
		printHint(w, "Check the flags, the config file and CHAT2VIDEO_* variables. See --help.")
	case errors.As(err, &mismatch):
		printHint(w, "The image cache was built with a different scale. Run `chat2video cache clear` and try again.")
	case errors.Is(err, video.ErrFFmpegNotFound):
		printHint(w, "ffmpeg is required. Install it (https://ffmpeg.org/download.html) and make sure it is on PATH.")
	}
}

// progressPrinter rewrites a single console line with the frame counter.
func progressPrinter(w io.Writer) func(done, total int) {
	last := -1
	return func(done, total int) {
		pct := done * 100 / total
		if pct == last && done != total {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r[>] Generating video frames... %d/%d (%d%%)", done, total, pct)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, config.NewError(config.KeyLogLevel, "unknown level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, config.NewError(config.KeyLogFormat, "must be text or json, got %q", format)
	}
	return slog.New(h), nil
}
