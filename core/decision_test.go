package orchestration

import (
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/events"
)

func TestDecide(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	thinking := 5 * time.Second

	testCases := []struct {
		name     string
		now      time.Time
		timeline timeline
		wantKind events.RequestKind
		wantSend bool
	}{
		{
			name:     "no new text and background not due",
			now:      start.Add(3 * time.Second),
			timeline: newTimeline(start),
		},
		{
			name:     "no new text and background due",
			now:      start.Add(6 * time.Second),
			timeline: newTimeline(start),
			wantKind: events.RequestBackground,
			wantSend: true,
		},
		{
			name: "new text before background is due",
			now:  start.Add(time.Second),
			timeline: timeline{
				lastTextReceived: start.Add(500 * time.Millisecond),
				lastUserQuery:    start,
				lastBackground:   start,
			},
			wantKind: events.RequestUserQuery,
			wantSend: true,
		},
		{
			name: "new text wins over due background",
			now:  start.Add(time.Minute),
			timeline: timeline{
				lastTextReceived: start.Add(30 * time.Second),
				lastUserQuery:    start,
				lastBackground:   start,
			},
			wantKind: events.RequestUserQuery,
			wantSend: true,
		},
		{
			name: "recent background request defers the next one",
			now:  start.Add(8 * time.Second),
			timeline: timeline{
				lastTextReceived: start,
				lastUserQuery:    start,
				lastBackground:   start.Add(6 * time.Second),
			},
		},
		{
			name:     "exactly thinking period is not due",
			now:      start.Add(thinking),
			timeline: newTimeline(start),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			kind, updated, send := decide(testCase.now, testCase.timeline, thinking)
			if send != testCase.wantSend || kind != testCase.wantKind {
				t.Fatalf("decide = (%q, %t), want (%q, %t)", kind, send, testCase.wantKind, testCase.wantSend)
			}

			switch kind {
			case events.RequestUserQuery:
				if !updated.lastUserQuery.Equal(testCase.now) {
					t.Fatalf("expected last user query to be updated, got %v", updated.lastUserQuery)
				}
				if !updated.lastBackground.Equal(testCase.timeline.lastBackground) {
					t.Fatalf("user query must not touch the background timestamp")
				}
			case events.RequestBackground:
				if !updated.lastBackground.Equal(testCase.now) {
					t.Fatalf("expected last background to be updated, got %v", updated.lastBackground)
				}
				if !updated.lastUserQuery.Equal(testCase.timeline.lastUserQuery) {
					t.Fatalf("background request must not touch the user query timestamp")
				}
			default:
				if updated != testCase.timeline {
					t.Fatalf("skipped decision changed the timeline: %+v", updated)
				}
			}
		})
	}
}

func TestDecideBackgroundOnlyOncePerThinkingPeriod(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := newTimeline(start)

	kind, state, send := decide(start.Add(6*time.Second), state, 5*time.Second)
	if !send || kind != events.RequestBackground {
		t.Fatalf("expected a background request, got (%q, %t)", kind, send)
	}
	if _, _, send := decide(start.Add(11*time.Second), state, 5*time.Second); send {
		t.Fatalf("expected no request right after a background request")
	}
	if kind, _, send := decide(start.Add(12*time.Second), state, 5*time.Second); !send || kind != events.RequestBackground {
		t.Fatalf("expected the next background request once thinking passed again")
	}
}
