// Package chatlog holds the in-memory chat replay: events, their content runs,
// and the parser for YouTube live chat replay logs.
package chatlog

import "sort"

// Run is one atomic piece of message content. It is either a TextRun or an
// EmojiRun; the set is closed.
type Run interface {
	isRun()
}

type TextRun struct {
	Text string
}

type EmojiRun struct {
	URL string
}

func (TextRun) isRun()  {}
func (EmojiRun) isRun() {}

// Event is a single chat message at a point of the recording.
type Event struct {
	TimestampMs int64
	Author      string
	AvatarURL   string
	Runs        []Run
}

// SortByTime orders events by timestamp, keeping log order for equal timestamps.
func SortByTime(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimestampMs < events[j].TimestampMs
	})
}

// Until drops events that happen after endSec. endSec == 0 keeps everything.
// events must be sorted.
func Until(events []Event, endSec float64) []Event {
	if endSec == 0 {
		return events
	}
	limit := int64(endSec * 1000)
	n := sort.Search(len(events), func(i int) bool {
		return events[i].TimestampMs > limit
	})
	return events[:n]
}

// AvatarURLs returns every distinct avatar URL in first-seen order.
func AvatarURLs(events []Event) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, ev := range events {
		if ev.AvatarURL == "" {
			continue
		}
		if _, ok := seen[ev.AvatarURL]; ok {
			continue
		}
		seen[ev.AvatarURL] = struct{}{}
		urls = append(urls, ev.AvatarURL)
	}
	return urls
}

// EmojiURLs returns every distinct emoji URL in first-seen order.
func EmojiURLs(events []Event) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, ev := range events {
		for _, r := range ev.Runs {
			e, ok := r.(EmojiRun)
			if !ok || e.URL == "" {
				continue
			}
			if _, ok := seen[e.URL]; ok {
				continue
			}
			seen[e.URL] = struct{}{}
			urls = append(urls, e.URL)
		}
	}
	return urls
}
