package orchestration

import (
	"time"

	"github.com/koscakluka/ema-vision/core/events"
)

// timeline holds the timestamps the request decision is based on.
type timeline struct {
	lastTextReceived time.Time
	lastUserQuery    time.Time
	lastBackground   time.Time
}

func newTimeline(now time.Time) timeline {
	return timeline{lastTextReceived: now, lastUserQuery: now, lastBackground: now}
}

// decide picks the request to send once the user has been silent. It reports
// false when no request should be sent. The timeline is returned with the
// chosen request's timestamp updated.
//
// New text since the last user query always wins. Without new text a
// background request is sent once thinking has passed since the later of the
// last user query and the last background request.
func decide(now time.Time, t timeline, thinking time.Duration) (events.RequestKind, timeline, bool) {
	noNewText := !t.lastUserQuery.Before(t.lastTextReceived)
	backgroundDue := now.Sub(later(t.lastUserQuery, t.lastBackground)) > thinking

	switch {
	case !noNewText:
		t.lastUserQuery = now
		return events.RequestUserQuery, t, true
	case backgroundDue:
		t.lastBackground = now
		return events.RequestBackground, t, true
	default:
		return "", t, false
	}
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
