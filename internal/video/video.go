package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary is not on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found")

// FrameSink receives packed frames in order.
type FrameSink interface {
	Start(ctx context.Context) error
	WriteFrame(index int, data []byte) error
	// Close flushes the stream and waits for the consumer to finish.
	Close() error
}

// SinkWriteError wraps a failed frame write.
type SinkWriteError struct {
	Frame int
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("writing frame %d: %v", e.Frame, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// Params describes the raw input stream and the encoded output.
type Params struct {
	Width       int
	Height      int
	FPS         int
	PixelFormat string // rgb24 or rgba
	Encoder     string
	Quality     int
	Output      string
}

type FFmpegSink struct {
	Params Params
	Binary string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

func NewFFmpegSink(p Params) *FFmpegSink {
	return &FFmpegSink{Params: p, Binary: "ffmpeg"}
}

// CheckFFmpeg reports ErrFFmpegNotFound if binary cannot be resolved.
func CheckFFmpeg(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	return nil
}

// Start launches ffmpeg. The process is not tied to ctx: a cancelled render
// stops writing and calls Close, which lets ffmpeg finish the file.
func (s *FFmpegSink) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckFFmpeg(s.Binary); err != nil {
		return err
	}

	s.cmd = exec.Command(s.Binary, buildFFmpegArgs(s.Params)...)
	s.cmd.Stderr = &s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	s.stdin = stdin

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	return nil
}

func (s *FFmpegSink) WriteFrame(index int, data []byte) error {
	if _, err := s.stdin.Write(data); err != nil {
		return &SinkWriteError{Frame: index, Err: err}
	}
	return nil
}

func (s *FFmpegSink) Close() error {
	if s.cmd == nil {
		return nil
	}
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w\n%s", err, lastLines(s.stderr.String(), 10))
	}
	return nil
}

func buildFFmpegArgs(p Params) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", p.PixelFormat,
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}

	if p.PixelFormat == "rgba" {
		args = append(args, alphaArgs(p)...)
		return append(args, p.Output)
	}

	args = append(args, "-c:v", p.Encoder, "-pix_fmt", "yuv420p")
	switch p.Encoder {
	case "h264_videotoolbox":
		// quality 75 -> 7.5 Mbit/s
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", "medium")
	}
	return append(args, p.Output)
}

// alphaArgs picks a codec that keeps the alpha channel: VP9 for .webm and
// ProRes 4444 for everything else.
func alphaArgs(p Params) []string {
	if strings.EqualFold(filepath.Ext(p.Output), ".webm") {
		return []string{
			"-c:v", "libvpx-vp9",
			"-pix_fmt", "yuva420p",
			"-crf", fmt.Sprintf("%d", p.Quality),
			"-b:v", "0",
		}
	}
	return []string{
		"-c:v", "prores_ks",
		"-profile:v", "4444",
		"-pix_fmt", "yuva444p10le",
	}
}

// AlphaEncoder names the codec alphaArgs uses for output.
func AlphaEncoder(output string) string {
	if strings.EqualFold(filepath.Ext(output), ".webm") {
		return "libvpx-vp9"
	}
	return "prores_ks"
}

// DefaultQuality is used when no quality is configured.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	case "libvpx-vp9":
		return 30
	default:
		return 23
	}
}

// OutputExt is the container extension for a new output file.
func OutputExt(transparent bool) string {
	if transparent {
		return ".mov"
	}
	return ".mp4"
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// WriterSink streams raw frames to any writer, for example stdout.
type WriterSink struct {
	W      io.Writer
	frames int
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

func (s *WriterSink) Start(context.Context) error { return nil }

func (s *WriterSink) WriteFrame(index int, data []byte) error {
	if _, err := s.W.Write(data); err != nil {
		return &SinkWriteError{Frame: index, Err: err}
	}
	s.frames++
	return nil
}

// Close leaves W open; the caller owns it.
func (s *WriterSink) Close() error { return nil }

func (s *WriterSink) Frames() int { return s.frames }
