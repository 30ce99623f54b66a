// Package layout turns the visible part of the chat into positioned message
// boxes stacked upward from the bottom edge of the frame.
package layout

import (
	"fmt"
	"image"
	"strings"

	"github.com/ivlev/chat2video/internal/chatlog"
	"github.com/ivlev/chat2video/internal/imagecache"
)

// Measurer returns the pixel width of a string in some font.
type Measurer interface {
	Measure(s string) int
}

type ItemKind int

const (
	ItemText ItemKind = iota
	ItemEmoji
)

func (k ItemKind) String() string {
	if k == ItemEmoji {
		return "emoji"
	}
	return "text"
}

// Item is a word or an emoji placed relative to its message's top-left corner.
type Item struct {
	Kind  ItemKind
	Pos   image.Point
	Width int
	Text  string
	Key   string
}

type Line struct {
	Y      int
	Height int
	Items  []Item
}

// MessageLayout is one positioned message. Height includes the top and bottom
// padding; Avatar and Author are offsets from the message's top-left corner.
type MessageLayout struct {
	Event     *chatlog.Event
	Height    int
	Avatar    image.Point
	AvatarKey string
	Author    image.Point
	Lines     []Line
}

type Engine struct {
	metrics Metrics
	author  Measurer
	message Measurer
	images  imagecache.Lookup
	clip    bool
}

// NewEngine builds a layout engine. images decides which emoji are drawable;
// a nil Lookup treats every emoji as missing.
func NewEngine(m Metrics, author, message Measurer, images imagecache.Lookup, clip bool) *Engine {
	return &Engine{metrics: m, author: author, message: message, images: images, clip: clip}
}

func (e *Engine) Metrics() Metrics { return e.metrics }

// Compute lays out visible newest-first. It stops at the first message that
// crosses the top edge: with clipping that message is dropped, without
// clipping it is kept and drawn partly off-frame.
func (e *Engine) Compute(visible []chatlog.Event) []MessageLayout {
	var layouts []MessageLayout
	y := 0
	for i := len(visible) - 1; i >= 0; i-- {
		ml := e.Message(&visible[i])
		y += ml.Height
		overflow := y > e.metrics.Height
		if overflow && e.clip {
			break
		}
		layouts = append(layouts, ml)
		if overflow {
			break
		}
	}
	return layouts
}

type token struct {
	line int
	item Item
}

// Message lays out a single event with greedy word wrap.
func (e *Engine) Message(ev *chatlog.Event) MessageLayout {
	m := e.metrics
	wrapX := m.AuthorX()
	right := m.RightEdge()

	x := wrapX + e.author.Measure(ev.Author) + m.AuthorGap
	line := 0
	var tokens []token

	place := func(item Item) {
		// A wrapped line that is still empty keeps its token even if it
		// overflows; wrapping again would only add blank lines.
		if x+item.Width > right && x > wrapX {
			line++
			x = wrapX
		}
		item.Pos.X = x
		tokens = append(tokens, token{line: line, item: item})
		x += item.Width
	}

	for _, run := range ev.Runs {
		switch r := run.(type) {
		case chatlog.TextRun:
			words := strings.Fields(r.Text)
			for i, w := range words {
				text := w
				if i < len(words)-1 {
					text += " "
				}
				place(Item{Kind: ItemText, Width: e.message.Measure(w + " "), Text: text})
			}
		case chatlog.EmojiRun:
			key := imagecache.Key(r.URL)
			if e.images == nil {
				continue
			}
			if _, ok := e.images.Get(key); !ok {
				continue
			}
			place(Item{Kind: ItemEmoji, Width: m.EmojiSize, Key: key})
		default:
			panic(fmt.Sprintf("layout: unhandled run type %T", run))
		}
	}

	numLines := line + 1
	ml := MessageLayout{
		Event:     ev,
		Avatar:    image.Pt(m.AvatarX(), m.VPad),
		AvatarKey: imagecache.Key(ev.AvatarURL),
		Lines:     make([]Line, numLines),
	}

	// Single-line messages are as tall as the avatar and their text sits lower;
	// multi-line messages align everything to the top padding.
	textTop := m.VPad
	if numLines == 1 {
		ml.Height = m.AvatarSize + 2*m.VPad
		textTop = m.TextTop
		ml.Lines[0] = Line{Y: m.VPad, Height: m.AvatarSize}
	} else {
		ml.Height = numLines*m.LineHeight + 2*m.VPad
		for i := range ml.Lines {
			ml.Lines[i] = Line{Y: m.VPad + i*m.LineHeight, Height: m.LineHeight}
		}
	}
	ml.Author = image.Pt(wrapX, textTop)

	for _, t := range tokens {
		t.item.Pos.Y = textTop + t.line*m.LineHeight
		ml.Lines[t.line].Items = append(ml.Lines[t.line].Items, t.item)
	}
	return ml
}
