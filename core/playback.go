package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

// relayPlayback writes synthesized audio to the output as it arrives. Audio
// of interrupted responses is dropped; every other event is only logged.
func (o *Orchestrator) relayPlayback(ctx context.Context) error {
	logger.Info("starting playback relay loop")
	for {
		event, err := o.speechEvents.Get(ctx)
		if isStopped(ctx, err) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read speech events: %w", err)
		}

		switch event.Type {
		case texttospeech.EventChunk:
			if o.cancelledSpeech.contains(event.ContextID) {
				continue
			}
			o.play(event)
		case texttospeech.EventError:
			logger.Warn("speech synthesis failed", "request_id", event.ContextID, "error", event.Err)
			o.cancelledSpeech.remove(event.ContextID)
		case texttospeech.EventDone:
			logger.Debug("speech synthesis done", "request_id", event.ContextID)
			o.cancelledSpeech.remove(event.ContextID)
		default:
			logger.Debug("ignoring synthesis event", "type", event.Type, "request_id", event.ContextID)
		}
	}
}

func (o *Orchestrator) play(event texttospeech.Event) {
	if o.audioOutput == nil || len(event.Audio) == 0 {
		return
	}

	n, err := o.audioOutput.Write(event.Audio)
	if err != nil {
		logger.Warn("failed to write audio output", "request_id", event.ContextID, "error", err)
	}
	o.metrics.RecordPlayback(n)
	o.emit(events.NewAssistantSpeechFrame(event.ContextID, event.Audio))
}

// maxCancelledSpeech bounds how many interrupted responses are remembered.
// Synthesizers that never confirm a cancelled context would otherwise grow
// the set for the whole session.
const maxCancelledSpeech = 64

// cancelledSet remembers request ids in insertion order and forgets the
// oldest once full.
type cancelledSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	limit int
}

func newCancelledSet(limit int) *cancelledSet {
	return &cancelledSet{ids: make(map[string]struct{}), limit: limit}
}

func (s *cancelledSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	for len(s.order) > s.limit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *cancelledSet) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *cancelledSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return
	}
	delete(s.ids, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *cancelledSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
