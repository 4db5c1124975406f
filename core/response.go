package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/internal/queue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// generateResponses adds transcripts to the conversation until the user has
// been silent for the silence period, then decides whether to ask the model
// for a response.
func (o *Orchestrator) generateResponses(ctx context.Context) error {
	logger.Info("starting response generation loop")
	for {
		text, err := o.transcripts.GetWithTimeout(ctx, o.silencePeriod)
		switch {
		case err == nil:
			now := o.now()
			o.store.AddText(text, llms.RoleUser, now)
			o.timeline.lastTextReceived = now
			continue
		case errors.Is(err, queue.ErrTimeout):
		case isStopped(ctx, err):
			return nil
		default:
			return fmt.Errorf("failed to read transcripts: %w", err)
		}

		generation := o.generation.Load()
		kind, timeline, ok := decide(o.now(), o.timeline, o.thinkingPeriod)
		o.timeline = timeline
		if !ok {
			logger.Debug("no new text received, skipping request")
			continue
		}

		o.respond(ctx, kind, generation)
	}
}

// respond streams one response. Text goes to the conversation and to speech
// synthesis as it arrives; tool calls are started in the background. The
// response stops after the first delta that arrives once the input
// generation moved on.
func (o *Orchestrator) respond(ctx context.Context, kind events.RequestKind, generation uint64) {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "generate response", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.kind", string(kind)),
	))
	defer span.End()

	start := time.Now()
	fail := func(err error) {
		err = fmt.Errorf("%w: %w", ErrRequestFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("response failed", "request_id", requestID, "kind", kind, "error", err)
		o.metrics.RecordRequest(string(kind), "failed", time.Since(start))
		o.emit(events.NewAssistantResponseFailed(requestID, err))
		o.speechFragments.Put(speechFragment{requestID: requestID, generation: generation, end: true})
	}

	opts, err := o.promptOptions(kind)
	if err != nil {
		fail(err)
		return
	}

	logger.Info("sending request", "request_id", requestID, "kind", kind)
	o.emit(events.NewAssistantRequestIssued(requestID, kind))

	for batch, err := range llms.Accumulate(ctx, o.llm.PromptWithStream(ctx, opts...)) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fail(err)
			return
		}

		for _, event := range batch {
			switch event.Type {
			case llms.EventTypeToolCall:
				o.startToolCall(ctx, requestID, event.ToolCall)
			case llms.EventTypeText:
				if event.Content == "" {
					continue
				}
				o.store.AddText(event.Content, llms.RoleAssistant, o.now())
				o.speechFragments.Put(speechFragment{requestID: requestID, generation: generation, text: event.Content})
				o.emit(events.NewAssistantResponseSegment(requestID, event.Content))
			}
		}

		if o.generation.Load() != generation {
			span.AddEvent("interrupted by new input")
			logger.Info("interrupting response, new input received", "request_id", requestID)
			o.metrics.RecordRequest(string(kind), "interrupted", time.Since(start))
			o.interruptSpeech(requestID)
			o.emit(events.NewAssistantResponseInterrupted(requestID))
			return
		}
	}

	o.speechFragments.Put(speechFragment{requestID: requestID, generation: generation, end: true})
	o.metrics.RecordRequest(string(kind), "ok", time.Since(start))
	o.emit(events.NewAssistantResponseFinal(requestID))
}

func (o *Orchestrator) promptOptions(kind events.RequestKind) ([]llms.PromptOption, error) {
	messages, err := o.store.LatestFinegrainedContext()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt window: %w", err)
	}

	instructions := o.instructions
	switch kind {
	case events.RequestBackground:
		messages = append(messages, llms.NewTextMessage(llms.RoleUser, BackgroundPrompt))
	case events.RequestUserQuery:
		if !o.store.HasImages() {
			instructions = joinInstructions(instructions, NoImagesInstruction)
		}
	}

	opts := []llms.PromptOption{
		llms.WithMessages(messages...),
		llms.WithTools(o.tools...),
	}
	if instructions != "" {
		opts = append(opts, llms.WithSystemPrompt(instructions))
	}
	return opts, nil
}

func joinInstructions(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + "\n\n" + extra
}
