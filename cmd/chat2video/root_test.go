package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/chat2video/internal/compositor"
	"github.com/ivlev/chat2video/internal/config"
	"github.com/ivlev/chat2video/internal/snapshot"
	"github.com/ivlev/chat2video/internal/video"
)

const chatLine = `{"replayChatItemAction":{"videoOffsetTimeMsec":"%MS%","actions":[{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"authorPhoto":{"thumbnails":[{"url":"https://yt3.ggpht.com/a/%NAME%=s32"}]},"authorName":{"simpleText":"%NAME%"},"message":{"runs":[{"text":"hello from %NAME%"}]}}}}}]}}`

func writeChat(t *testing.T, lines ...[2]string) string {
	t.Helper()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.NewReplacer("%MS%", l[0], "%NAME%", l[1]).Replace(chatLine))
		b.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "stream.live_chat.json")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func run(t *testing.T, args ...string) (stdout, stderr *bytes.Buffer, err error) {
	t.Helper()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err = cmd.ExecuteContext(context.Background())
	return stdout, stderr, err
}

func TestRenderRawStream(t *testing.T) {
	chat := writeChat(t, [2]string{"0", "alice"}, [2]string{"1000", "bob"})
	metricsFile := filepath.Join(t.TempDir(), "metrics.prom")

	stdout, stderr, err := run(t, chat,
		"--output", "-",
		"--width", "200", "--height", "100", "--fps", "10",
		"--skip-avatars", "--skip-emojis",
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err, stderr.String())

	// The window ends at the last message: 1s at 10 fps, rgb24.
	assert.Equal(t, 10*200*100*3, stdout.Len())
	assert.Contains(t, stderr.String(), "Generating video frames... 10/10 (100%)")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat2video_frames_rendered_total 10")
	assert.Contains(t, string(data), "chat2video_messages 2")
}

func TestRenderTransparentRawStream(t *testing.T) {
	chat := writeChat(t, [2]string{"0", "alice"}, [2]string{"500", "bob"})
	stdout, stderr, err := run(t, chat,
		"--output", "-", "--transparent",
		"--width", "100", "--height", "64", "--fps", "4",
		"--skip-avatars", "--skip-emojis",
	)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, 2*100*64*4, stdout.Len())
}

func TestRenderConfigurationErrors(t *testing.T) {
	chat := writeChat(t, [2]string{"0", "alice"}, [2]string{"1000", "bob"})

	tests := []struct {
		name string
		args []string
	}{
		{"odd width", []string{"--width", "201"}},
		{"end before start", []string{"--start", "5", "--end", "2"}},
		{"bad background", []string{"--background", "tomato"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"empty window", []string{"--start", "30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{chat, "--output", "-", "--skip-avatars", "--skip-emojis"}, tt.args...)
			stdout, _, err := run(t, args...)
			var cerr *config.ConfigurationError
			assert.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Zero(t, stdout.Len(), "no frames before validation passes")
		})
	}
}

func TestRenderMissingChat(t *testing.T) {
	_, _, err := run(t, filepath.Join(t.TempDir(), "missing.json"), "--output", "-")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayoutCommand(t *testing.T) {
	chat := writeChat(t, [2]string{"0", "alice"}, [2]string{"2000", "bob"}, [2]string{"9000", "carol"})
	out := filepath.Join(t.TempDir(), "layout.yaml")

	stdout, stderr, err := run(t, "layout", chat, "--at", "2.5", "--out", out, "--width", "300")
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "2 messages visible")

	s, err := snapshot.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 300, s.Width)
	assert.Equal(t, config.DefaultHeight, s.Height)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "bob", s.Messages[0].Author)
}

func TestLayoutFromEnvAndConfigFile(t *testing.T) {
	chat := writeChat(t, [2]string{"0", "alice"})
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "chat2video.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("width: 240\npadding: 12\n"), 0644))
	out := filepath.Join(dir, "layout.yaml")

	t.Setenv("CHAT2VIDEO_HEIGHT", "300")
	_, stderr, err := run(t, "layout", chat, "--config", cfgFile, "--out", out)
	require.NoError(t, err, stderr.String())

	s, err := snapshot.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 240, s.Width)
	assert.Equal(t, 300, s.Height)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, 12, s.Messages[0].Avatar.X)
}

func TestCacheClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0644))

	stdout, _, err := run(t, "cache", "clear", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "cleared")
	assert.NoDirExists(t, dir)

	stdout, _, err = run(t, "cache", "clear", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "nothing to do")

	_, _, err = run(t, "cache", "clear", "--cache-dir", ".")
	var cerr *config.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestPrintErrorHints(t *testing.T) {
	tests := []struct {
		err  error
		hint string
	}{
		{&compositor.CacheDimensionMismatch{Key: "k"}, "cache clear"},
		{video.ErrFFmpegNotFound, "ffmpeg is required"},
		{config.NewError("width", "bad"), "--help"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printError(&buf, tt.err)
		assert.Contains(t, buf.String(), tt.err.Error())
		assert.Contains(t, buf.String(), tt.hint)
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	for i := 1; i <= 400; i++ {
		p(i, 400)
	}
	out := buf.String()
	// One update per percent.
	assert.Equal(t, 101, strings.Count(out, "\r"))
	assert.True(t, strings.HasSuffix(out, "400/400 (100%)\n"))
}
