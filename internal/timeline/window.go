package timeline

import (
	"math"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/config"
)

// Window is the rendered span of the replay and its frame clock.
type Window struct {
	StartSec float64
	EndSec   float64
	FPS      int
	Frames   int
}

// NewWindow derives the frame count from the time bounds. endSec == 0 means
// the timestamp of the last event. events must already be filtered by endSec.
func NewWindow(events []chatlog.Event, startSec, endSec float64, fps int) (Window, error) {
	if len(events) == 0 {
		if endSec != 0 {
			return Window{}, config.NewError("", "no messages within selected time window")
		}
		return Window{}, config.NewError("", "no messages found in the chat file")
	}
	if fps < 1 {
		return Window{}, config.NewError("fps", "can't be less than 1, got %d", fps)
	}
	if endSec == 0 {
		endSec = float64(events[len(events)-1].TimestampMs) / 1000
	}
	if endSec < startSec {
		return Window{}, config.NewError("end", "end time %gs is before start time %gs", endSec, startSec)
	}

	frames := int(math.Round(float64(fps) * (endSec - startSec)))
	if frames < 1 {
		return Window{}, config.NewError("", "time window %gs..%gs yields no frames at %d fps", startSec, endSec, fps)
	}

	return Window{StartSec: startSec, EndSec: endSec, FPS: fps, Frames: frames}, nil
}

// FrameTimeMs is the virtual clock of frame i, truncated to whole milliseconds.
// Timestamps are integers, so comparing against the truncated value gives the
// same result as comparing against the exact time.
func (w Window) FrameTimeMs(i int) int64 {
	return int64(math.Floor(w.StartSec*1000 + float64(i)*1000/float64(w.FPS)))
}

func (w Window) DurationSec() float64 {
	return w.EndSec - w.StartSec
}
