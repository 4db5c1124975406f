package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// speechFragment is a piece of response text on its way to synthesis. The
// last fragment of a response has end set and no text.
type speechFragment struct {
	requestID  string
	generation uint64
	text       string
	end        bool
}

type speechRequest struct {
	requestID string
	text      string
	final     bool
}

// speechBatcher groups fragments into synthesis requests. A response is
// held back until it produced threshold fragments or ended, so the first
// request carries enough text for natural prosody; afterwards every batch is
// sent as it comes.
type speechBatcher struct {
	threshold int
	pending   []speechFragment
	started   map[string]bool
}

func newSpeechBatcher(threshold int) *speechBatcher {
	return &speechBatcher{threshold: threshold, started: map[string]bool{}}
}

// add queues fragments and returns the requests that are ready. Fragments
// from another generation than the current one are dropped and counted per
// request id.
func (b *speechBatcher) add(generation uint64, fragments []speechFragment) ([]speechRequest, map[string]int) {
	var discarded map[string]int
	b.pending = append(b.pending, fragments...)

	kept := b.pending[:0]
	for _, fragment := range b.pending {
		if fragment.generation == generation {
			kept = append(kept, fragment)
			continue
		}
		if discarded == nil {
			discarded = map[string]int{}
		}
		if fragment.text != "" {
			discarded[fragment.requestID]++
		}
		delete(b.started, fragment.requestID)
	}
	b.pending = kept

	var requests []speechRequest
	for len(b.pending) > 0 {
		requestID := b.pending[0].requestID

		var (
			text      strings.Builder
			fragments int
			end       bool
			n         int
		)
		for _, fragment := range b.pending {
			if fragment.requestID != requestID {
				break
			}
			n++
			if fragment.text != "" {
				fragments++
				text.WriteString(fragment.text)
			}
			if fragment.end {
				end = true
				break
			}
		}

		started := b.started[requestID]
		if !started && !end && fragments < b.threshold {
			break
		}

		b.pending = b.pending[n:]
		if end {
			delete(b.started, requestID)
		} else {
			b.started[requestID] = true
		}

		if text.Len() == 0 && (!end || !started) {
			continue
		}
		requests = append(requests, speechRequest{requestID: requestID, text: text.String(), final: end})
	}

	return requests, discarded
}

// batchSpeech drains response text and sends it for synthesis, using the
// request id as the synthesis context so consecutive batches of one
// response are spoken as one utterance.
func (o *Orchestrator) batchSpeech(ctx context.Context) error {
	logger.Info("starting speech batching loop")
	batcher := newSpeechBatcher(o.bootstrapThreshold)
	for {
		fragment, err := o.speechFragments.Get(ctx)
		if isStopped(ctx, err) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read speech fragments: %w", err)
		}

		fragments := append([]speechFragment{fragment}, o.speechFragments.Drain()...)
		requests, discarded := batcher.add(o.generation.Load(), fragments)

		for requestID, count := range discarded {
			o.metrics.RecordSpeechDiscarded(count)
			o.emit(events.NewAssistantSpeechDiscarded(requestID, count))
		}
		for _, request := range requests {
			o.synthesize(ctx, request)
		}
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, request speechRequest) {
	o.emit(events.NewAssistantSpeechRequested(request.requestID, request.text, request.final))
	if o.textToSpeech == nil {
		return
	}

	ctx, span := tracer.Start(ctx, "request speech", trace.WithAttributes(
		attribute.String("request.id", request.requestID),
		attribute.Int("speech.text_length", len(request.text)),
		attribute.Bool("speech.final", request.final),
	))
	defer span.End()

	o.metrics.RecordSpeechRequest()
	if err := o.textToSpeech.Synthesize(ctx, texttospeech.Request{
		Text:      request.text,
		ContextID: request.requestID,
		Continue:  !request.final,
	}); err != nil {
		span.RecordError(err)
		logger.Warn("failed to request speech", "request_id", request.requestID, "error", err)
	}
}

// interruptSpeech stops audio of an abandoned response from being played.
func (o *Orchestrator) interruptSpeech(requestID string) {
	o.cancelledSpeech.add(requestID)

	if canceller, ok := o.textToSpeech.(texttospeech.Canceller); ok {
		if err := canceller.Cancel(requestID); err != nil {
			logger.Debug("failed to cancel speech", "request_id", requestID, "error", err)
		}
	}
	if clearer, ok := o.audioOutput.(interface{ ClearBuffer() }); ok {
		clearer.ClearBuffer()
	}
}
