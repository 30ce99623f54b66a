// Package timeline drives the virtual playback clock over a sorted event list.
package timeline

import "github.com/ivlev/chat2video/internal/chatlog"

// Cursor is a forward-only index into a time-sorted event list. It also owns
// the dirty flag that tells the pipeline the visible set has changed.
type Cursor struct {
	events []chatlog.Event
	index  int
	dirty  bool
}

// NewCursor starts before the first event, dirty so the first frame is painted.
func NewCursor(events []chatlog.Event) *Cursor {
	return &Cursor{events: events, index: -1, dirty: true}
}

// Advance moves past every event with a timestamp <= virtualMs and reports
// whether the index moved. The clock only runs forward: an earlier time than
// a previous call never moves the cursor back.
func (c *Cursor) Advance(virtualMs int64) bool {
	start := c.index
	for c.index+1 < len(c.events) && c.events[c.index+1].TimestampMs <= virtualMs {
		c.index++
	}
	if c.index == start {
		return false
	}
	c.dirty = true
	return true
}

// Index of the most recent visible event, -1 before the first one.
func (c *Cursor) Index() int { return c.index }

// Visible returns the events up to and including the current index.
func (c *Cursor) Visible() []chatlog.Event {
	return c.events[:c.index+1]
}

func (c *Cursor) Dirty() bool { return c.dirty }

// Clean is called once the frame for the current index has been composited.
func (c *Cursor) Clean() { c.dirty = false }
