// Package snapshot exports the chat layout at a single instant as YAML, for
// inspecting wrapping and clipping without rendering a video.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/layout"
	"github.com/ivlev/chat2video/internal/timeline"
)

const Version = "1.0"

// Snapshot is the frame at At seconds. Messages are listed newest first, like
// the layout engine returns them.
type Snapshot struct {
	Version  string    `yaml:"version"`
	At       float64   `yaml:"at"`
	Width    int       `yaml:"width"`
	Height   int       `yaml:"height"`
	Messages []Message `yaml:"messages"`
}

type Message struct {
	TimestampMs int64  `yaml:"timestamp_ms"`
	Author      string `yaml:"author"`
	Top         int    `yaml:"top"` // frame y of the message box
	Height      int    `yaml:"height"`
	Avatar      Point  `yaml:"avatar"`
	AvatarKey   string `yaml:"avatar_key,omitempty"`
	AuthorPos   Point  `yaml:"author_pos"`
	Lines       []Line `yaml:"lines"`
}

type Line struct {
	Y      int    `yaml:"y"`
	Height int    `yaml:"height"`
	Items  []Item `yaml:"items"`
}

type Item struct {
	Kind  string `yaml:"kind"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Width int    `yaml:"width"`
	Text  string `yaml:"text,omitempty"`
	Key   string `yaml:"key,omitempty"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Capture lays out the messages visible at atSec.
func Capture(events []chatlog.Event, atSec float64, le *layout.Engine) *Snapshot {
	c := timeline.NewCursor(events)
	c.Advance(int64(atSec * 1000))
	return FromLayouts(atSec, le.Metrics(), le.Compute(c.Visible()))
}

func FromLayouts(atSec float64, m layout.Metrics, layouts []layout.MessageLayout) *Snapshot {
	s := &Snapshot{
		Version:  Version,
		At:       atSec,
		Width:    m.Width,
		Height:   m.Height,
		Messages: make([]Message, 0, len(layouts)),
	}

	bottom := m.Height
	for _, ml := range layouts {
		bottom -= ml.Height
		msg := Message{
			Top:       bottom,
			Height:    ml.Height,
			Avatar:    Point{X: ml.Avatar.X, Y: ml.Avatar.Y},
			AvatarKey: ml.AvatarKey,
			AuthorPos: Point{X: ml.Author.X, Y: ml.Author.Y},
			Lines:     make([]Line, len(ml.Lines)),
		}
		if ml.Event != nil {
			msg.TimestampMs = ml.Event.TimestampMs
			msg.Author = ml.Event.Author
		}
		for i, line := range ml.Lines {
			l := Line{Y: line.Y, Height: line.Height, Items: make([]Item, len(line.Items))}
			for j, it := range line.Items {
				l.Items[j] = Item{Kind: it.Kind.String(), X: it.Pos.X, Y: it.Pos.Y, Width: it.Width, Text: it.Text, Key: it.Key}
			}
			msg.Lines[i] = l
		}
		s.Messages = append(s.Messages, msg)
	}
	return s
}

// Write writes a snapshot to a YAML file, creating parent directories.
func Write(s *Snapshot, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read reads a snapshot from a YAML file.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// DefaultPath creates a timestamped snapshot filename under dir.
func DefaultPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("layout_%s.yaml", now.Format("2006-01-02_15-04-05")))
}
