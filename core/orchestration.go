// Package orchestration runs the streaming assistant: it turns incoming audio
// into transcripts, decides when to ask the model for a response, streams the
// response into speech and lets new input interrupt it.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/internal/metrics"
	"github.com/koscakluka/ema-vision/internal/queue"
	"github.com/koscakluka/ema-vision/internal/tasks"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrRequestFailed  = errors.New("model request failed")
	ErrMissingLLM     = errors.New("orchestrator has no streaming llm")
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrClosed         = errors.New("orchestrator closed")
)

type Orchestrator struct {
	store        *conversations.Store
	llm          llms.StreamingLLM
	speechToText speechtotext.Transcriber
	textToSpeech texttospeech.Synthesizer
	audioOutput  io.Writer

	outputEncoding         audio.EncodingInfo
	extraTools             []llms.Tool
	tools                  []llms.Tool
	silencePeriod          time.Duration
	thinkingPeriod         time.Duration
	bootstrapThreshold     int
	maxConcurrentToolCalls int
	instructions           string
	ingestOptions          []audio.IngestOption
	emit                   events.Handler
	metrics                *metrics.Metrics
	now                    func() time.Time

	ingest          *audio.IngestBuffer
	audioBatches    *queue.Queue[[]byte]
	transcripts     *queue.Queue[string]
	speechFragments *queue.Queue[speechFragment]
	speechEvents    *queue.Queue[texttospeech.Event]
	toolTasks       *tasks.Group

	// generation counts transcripts. A response is stale once the generation
	// moved past the value captured when it was requested.
	generation atomic.Uint64
	// timeline is only touched by the response loop.
	timeline timeline
	// cancelledSpeech holds request ids whose audio is no longer wanted.
	cancelledSpeech *cancelledSet

	started   atomic.Bool
	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	loops     sync.WaitGroup
}

func NewOrchestrator(store *conversations.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:                  store,
		outputEncoding:         texttospeech.DefaultEncodingInfo(),
		silencePeriod:          DefaultSilencePeriod,
		thinkingPeriod:         DefaultThinkingPeriod,
		bootstrapThreshold:     DefaultSpeechBootstrapThreshold,
		maxConcurrentToolCalls: DefaultMaxConcurrentToolCalls,
		emit:                   noopEventEmitter,
		now:                    time.Now,
		audioBatches:           queue.New[[]byte](),
		transcripts:            queue.New[string](),
		speechFragments:        queue.New[speechFragment](),
		speechEvents:           queue.New[texttospeech.Event](),
		cancelledSpeech:        newCancelledSet(maxCancelledSpeech),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.tools = mergeTools(append([]llms.Tool{store.RecallTool()}, o.extraTools...))
	o.toolTasks = tasks.NewGroup(o.maxConcurrentToolCalls, tasks.WithErrorHandler(func(name string, err error) {
		logger.Error("tool call task failed", "task", name, "error", err)
	}))

	ingestOptions := append([]audio.IngestOption{audio.WithIngestMetrics(o.metrics)}, o.ingestOptions...)
	o.ingest = audio.NewIngestBuffer(func(batch []byte) { o.audioBatches.Put(batch) }, ingestOptions...)
	o.timeline = newTimeline(o.now())

	return o
}

// Orchestrate opens the speech sessions and starts the processing loops. It
// returns once everything is running; the loops stop when ctx is done or
// Close is called.
//
// A transcription session that cannot be opened is fatal. A synthesis
// stream that cannot be opened only disables speech.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	if o.llm == nil {
		return ErrMissingLLM
	}
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	o.emit = chainEventEmitters(o.emit, newCallbackEventEmitter(options))

	ctx, span := tracer.Start(ctx, "orchestrate")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if o.speechToText != nil {
		if err := o.speechToText.Transcribe(ctx,
			speechtotext.WithPartialTranscriptionCallback(o.onTranscript),
			speechtotext.WithEncodingInfo(o.ingest.OutputEncoding()),
		); err != nil {
			cancel()
			err = fmt.Errorf("failed to start transcription: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if o.textToSpeech != nil {
		if err := o.textToSpeech.Open(ctx,
			texttospeech.WithEventCallback(func(event texttospeech.Event) { o.speechEvents.Put(event) }),
			texttospeech.WithEncodingInfo(o.outputEncoding),
		); err != nil {
			err = fmt.Errorf("failed to open speech synthesis, continuing without speech: %w", err)
			span.RecordError(err)
			logger.Error("speech synthesis unavailable", "error", err)
			o.textToSpeech = nil
		}
	}

	o.running.Store(true)
	o.metrics.RecordSessionStart()
	o.startWorker(ctx, "captioning", o.store.Run)
	o.startWorker(ctx, "transcription relay", o.relayTranscription)
	o.startWorker(ctx, "response generation", o.generateResponses)
	o.startWorker(ctx, "speech batching", o.batchSpeech)
	o.startWorker(ctx, "playback relay", o.relayPlayback)

	go func() {
		<-ctx.Done()
		o.Close()
	}()

	logger.Info("orchestrator started",
		"silence_period", o.silencePeriod,
		"thinking_period", o.thinkingPeriod,
		"tools", len(o.tools))
	return nil
}

// startWorker runs one of the session loops until it returns. A loop that
// panics or fails is logged; the others keep running until Close.
func (o *Orchestrator) startWorker(ctx context.Context, name string, run func(context.Context) error) {
	o.loops.Add(1)
	go func() {
		defer o.loops.Done()
		err := runLoop(ctx, run)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		logger.Error("worker stopped", "worker", name, "error", err)
	}()
}

func runLoop(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panicked: %v", recovered)
		}
	}()
	return run(ctx)
}

// OnAudioPacket hands raw client audio to the ingest buffer.
func (o *Orchestrator) OnAudioPacket(pcm []byte, loudness float64) {
	o.ingest.OnAudioPacket(pcm, loudness)
}

// AddImage appends an image to the conversation and queues it for
// captioning.
func (o *Orchestrator) AddImage(img image.Image, timestamp time.Time) (int64, error) {
	id, err := o.store.AddImage(img, timestamp)
	if err != nil {
		return 0, err
	}
	o.emit(events.NewUserImageAdded(id))
	return id, nil
}

// AddImageBytes is AddImage for encoded PNG, JPEG, GIF or WebP data.
func (o *Orchestrator) AddImageBytes(data []byte, timestamp time.Time) (int64, error) {
	id, err := o.store.AddImageBytes(data, timestamp)
	if err != nil {
		return 0, err
	}
	o.emit(events.NewUserImageAdded(id))
	return id, nil
}

// Close waits for running tool calls, then stops the loops and closes the
// speech sessions. Buffered input audio is not flushed.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.toolTasks.Close()

		if o.cancel != nil {
			o.cancel()
		}
		o.audioBatches.Close()
		o.transcripts.Close()
		o.speechFragments.Close()
		o.speechEvents.Close()

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if o.speechToText != nil {
			if err := o.speechToText.Close(closeCtx); err != nil {
				logger.Warn("failed to close speech-to-text client", "error", err)
			}
		}
		if o.textToSpeech != nil {
			if err := o.textToSpeech.Close(); err != nil {
				logger.Warn("failed to close text-to-speech client", "error", err)
			}
		}

		o.loops.Wait()
		o.store.Close()
		if o.running.Load() {
			o.metrics.RecordSessionEnd()
		}
		logger.Info("orchestrator closed")
	})
}

// onTranscript is the transcription callback. Every piece of text moves the
// input generation forward, which interrupts any response in flight.
func (o *Orchestrator) onTranscript(text string) {
	if text == "" {
		return
	}
	generation := o.generation.Add(1)
	o.metrics.RecordTranscriptDelta()
	o.transcripts.Put(text)
	o.emit(events.NewUserTranscriptSegment(text, generation))
}

// relayTranscription forwards flushed audio batches to the transcription
// session.
func (o *Orchestrator) relayTranscription(ctx context.Context) error {
	for {
		batch, err := o.audioBatches.Get(ctx)
		if isStopped(ctx, err) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read audio batches: %w", err)
		}

		if o.speechToText == nil {
			continue
		}
		if err := o.speechToText.SendAudio(batch); err != nil {
			logger.Warn("failed to send audio for transcription", "bytes", len(batch), "error", err)
		}
	}
}

func isStopped(ctx context.Context, err error) bool {
	return errors.Is(err, queue.ErrClosed) || (err != nil && ctx.Err() != nil)
}
