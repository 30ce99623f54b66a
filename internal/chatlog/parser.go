package chatlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Lines of a replay log can carry long emoji-heavy messages.
const maxLineSize = 4 << 20

type offsetMs int64

// UnmarshalJSON accepts both "12345" and 12345.
func (o *offsetMs) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*o = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("videoOffsetTimeMsec: %w", err)
	}
	// Messages sent before the stream started carry negative offsets;
	// they are shown from the first frame.
	if v < 0 {
		v = 0
	}
	*o = offsetMs(v)
	return nil
}

type thumbnails struct {
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func (t thumbnails) first() string {
	if len(t.Thumbnails) == 0 {
		return ""
	}
	return t.Thumbnails[0].URL
}

type replayLine struct {
	ReplayChatItemAction *struct {
		VideoOffsetTimeMsec offsetMs `json:"videoOffsetTimeMsec"`
		Actions             []struct {
			AddChatItemAction *struct {
				Item struct {
					LiveChatTextMessageRenderer *textMessageRenderer `json:"liveChatTextMessageRenderer"`
				} `json:"item"`
			} `json:"addChatItemAction"`
		} `json:"actions"`
	} `json:"replayChatItemAction"`
}

type textMessageRenderer struct {
	AuthorPhoto thumbnails `json:"authorPhoto"`
	AuthorName  *struct {
		SimpleText string `json:"simpleText"`
	} `json:"authorName"`
	Message struct {
		Runs []struct {
			Text  *string `json:"text"`
			Emoji *struct {
				Image thumbnails `json:"image"`
			} `json:"emoji"`
		} `json:"runs"`
	} `json:"message"`
}

// ParseFile reads a replay log from disk. See Parse.
func ParseFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one JSON object per line and returns the text messages it
// contains, sorted by timestamp. Actions other than text messages are skipped.
func Parse(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var events []Event
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rl replayLine
		if err := json.Unmarshal(line, &rl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		item := rl.ReplayChatItemAction
		if item == nil {
			continue
		}

		for _, action := range item.Actions {
			if action.AddChatItemAction == nil {
				continue
			}
			renderer := action.AddChatItemAction.Item.LiveChatTextMessageRenderer
			if renderer == nil {
				continue
			}
			events = append(events, renderer.event(int64(item.VideoOffsetTimeMsec)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
	}

	SortByTime(events)
	return events, nil
}

func (r *textMessageRenderer) event(ts int64) Event {
	ev := Event{
		TimestampMs: ts,
		AvatarURL:   r.AuthorPhoto.first(),
	}
	if r.AuthorName != nil {
		ev.Author = r.AuthorName.SimpleText
	}
	for _, run := range r.Message.Runs {
		switch {
		case run.Text != nil:
			ev.Runs = append(ev.Runs, TextRun{Text: strings.TrimSpace(*run.Text)})
		case run.Emoji != nil:
			if url := run.Emoji.Image.first(); url != "" {
				ev.Runs = append(ev.Runs, EmojiRun{URL: url})
			}
		}
	}
	return ev
}
