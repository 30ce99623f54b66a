package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Stats struct {
	Frames     int
	Repaints   int
	Elapsed    time.Duration
	LayoutTime time.Duration
	PaintTime  time.Duration
	// EncodeTime is time spent blocked on the sink, including the final drain.
	EncodeTime time.Duration
}

func (s Stats) EffectiveFPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Report is the --stats summary printed after a render.
func (s Stats) Report(build string) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Frames: %d (repainted: %d)\n"+
			"Layout: %.2fs\n"+
			"Compositing: %.2fs\n"+
			"Encoding (ffmpeg): %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		build, s.Elapsed.Seconds(), s.Frames, s.Repaints,
		s.LayoutTime.Seconds(), s.PaintTime.Seconds(), s.EncodeTime.Seconds(), s.EffectiveFPS(),
	)
}

// LogEntry is one line of the benchmark log.
func (s Stats) LogEntry(build, input string, now time.Time) string {
	return fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Repaints: %d | Total: %.2fs | Paint: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		now.Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(input),
		s.Frames,
		s.Repaints,
		s.Elapsed.Seconds(),
		s.PaintTime.Seconds(),
		s.EncodeTime.Seconds(),
		s.EffectiveFPS(),
	)
}

// AppendLog appends entry to the file at path, creating it if needed.
func AppendLog(path, entry string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
