package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/captions"
	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/llms/groq"
	"github.com/koscakluka/ema-vision/core/llms/openai"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	deepgramstt "github.com/koscakluka/ema-vision/core/speechtotext/deepgram"
	openaistt "github.com/koscakluka/ema-vision/core/speechtotext/openai"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/core/texttospeech/cartesia"
	deepgramtts "github.com/koscakluka/ema-vision/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-vision/internal/config"
	"github.com/koscakluka/ema-vision/internal/metrics"
)

// session is what a websocket connection feeds.
type session interface {
	OnAudioPacket(pcm []byte, loudness float64)
	AddImageBytes(data []byte, timestamp time.Time) (int64, error)
	Close()
}

type sessionFactory func(ctx context.Context) (session, error)

// sessions builds one orchestrator per connection. Every session gets its
// own log directory, context_<n> under the configured log dir.
type sessions struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	output  io.Writer
	logger  *slog.Logger
	counter atomic.Int64
}

type orchestratedSession struct {
	*orchestration.Orchestrator
	closers []io.Closer
}

func (s *orchestratedSession) Close() {
	s.Orchestrator.Close()
	for _, closer := range s.closers {
		_ = closer.Close()
	}
}

func (s *sessions) open(ctx context.Context) (session, error) {
	n := s.counter.Add(1) - 1
	id := uuid.NewString()
	dir := filepath.Join(s.cfg.Server.LogDir, fmt.Sprintf("context_%d", n))
	logger := s.logger.With("session", id, "dir", dir)

	var closers []io.Closer
	cache, closer, err := s.newCaptionCache(dir, id)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	providers := s.cfg.Providers
	captionClient := openai.NewClient(providers.OpenAIAPIKey, openai.WithModel(modelOr(providers.CaptionModel, openai.DefaultCaptionModel)))
	recallClient := openai.NewClient(providers.OpenAIAPIKey, openai.WithModel(modelOr(providers.RecallModel, openai.DefaultCaptionModel)))

	orchestratorCfg := s.cfg.Orchestrator
	store := conversations.NewStore(
		conversations.WithCaptionCache(cache),
		conversations.WithCaptioner(openai.NewCaptioner(captionClient, providers.CaptionModel)),
		conversations.WithCompleter(recallClient),
		conversations.WithPromptHistoryLength(orchestratorCfg.PromptHistoryLength),
		conversations.WithMaxFinegrainedLength(orchestratorCfg.MaxFinegrainedLength),
		conversations.WithRecallWindow(orchestratorCfg.RecallWindow),
		conversations.WithMaxConcurrentCaptions(orchestratorCfg.MaxConcurrentCaptions),
		conversations.WithMetrics(s.metrics),
	)

	textToSpeech, err := s.newTextToSpeech()
	if err != nil {
		closeAll()
		return nil, err
	}

	audioCfg := s.cfg.Audio
	orchestrator := orchestration.NewOrchestrator(store,
		orchestration.WithStreamingLLM(s.newStreamingLLM()),
		orchestration.WithSpeechToText(s.newSpeechToText()),
		orchestration.WithTextToSpeech(textToSpeech),
		orchestration.WithAudioOutput(s.output),
		orchestration.WithOutputEncoding(audio.EncodingInfo{
			SampleRate: audioCfg.OutputSampleRate,
			Format:     audio.EncodingLinear16,
			Channels:   1,
		}),
		orchestration.WithSilencePeriod(orchestratorCfg.SilencePeriod),
		orchestration.WithThinkingPeriod(orchestratorCfg.ThinkingPeriod),
		orchestration.WithSpeechBootstrapThreshold(orchestratorCfg.SpeechBootstrapThreshold),
		orchestration.WithMaxConcurrentToolCalls(orchestratorCfg.MaxConcurrentToolCalls),
		orchestration.WithInstructions(orchestratorCfg.Instructions),
		orchestration.WithMetrics(s.metrics),
		orchestration.WithEventHandler(logEvents(logger)),
		orchestration.WithIngestOptions(
			audio.WithInputEncoding(audio.EncodingInfo{
				SampleRate: audioCfg.InputSampleRate,
				Format:     audio.EncodingLinear16,
				Channels:   1,
			}),
			audio.WithOutputSampleRate(audioCfg.OutputSampleRate),
			audio.WithMinFlushDuration(audioCfg.MinFlushDuration),
			audio.WithMaxFlushDuration(audioCfg.MaxFlushDuration),
			audio.WithLoudnessThreshold(audioCfg.LoudnessThreshold),
		),
	)

	if err := orchestrator.Orchestrate(ctx); err != nil {
		orchestrator.Close()
		closeAll()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	logger.Info("session started")
	return &orchestratedSession{Orchestrator: orchestrator, closers: closers}, nil
}

func (s *sessions) newCaptionCache(dir, sessionID string) (captions.Cache, io.Closer, error) {
	switch s.cfg.Captions.Backend {
	case config.CaptionsMemory:
		return captions.NewMemoryCache(), nil, nil
	case config.CaptionsSQLite:
		cache, err := captions.OpenSQLiteCache(s.cfg.Captions.Path, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open caption database: %w", err)
		}
		return cache, cache, nil
	default:
		cache, err := captions.NewFileCache(dir)
		if err != nil {
			return nil, nil, err
		}
		return cache, nil, nil
	}
}

func (s *sessions) newStreamingLLM() llms.StreamingLLM {
	providers := s.cfg.Providers
	switch providers.LLM {
	case config.ProviderGroq:
		return groq.NewClient(providers.GroqAPIKey, groq.WithModel(modelOr(providers.LLMModel, groq.DefaultModel)))
	default:
		return openai.NewClient(providers.OpenAIAPIKey, openai.WithModel(modelOr(providers.LLMModel, openai.DefaultModel)))
	}
}

func (s *sessions) newSpeechToText() speechtotext.Transcriber {
	providers := s.cfg.Providers
	switch providers.SpeechToText {
	case config.ProviderDeepgram:
		return deepgramstt.NewTranscriptionClient(providers.DeepgramAPIKey)
	default:
		return openaistt.NewTranscriptionClient(providers.OpenAIAPIKey)
	}
}

func (s *sessions) newTextToSpeech() (texttospeech.Synthesizer, error) {
	providers := s.cfg.Providers
	switch providers.TextToSpeech {
	case config.ProviderDeepgram:
		var opts []deepgramtts.ClientOption
		if providers.Voice != "" {
			opts = append(opts, deepgramtts.WithVoice(providers.Voice))
		}
		client, err := deepgramtts.NewTextToSpeechClient(providers.DeepgramAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech synthesis client: %w", err)
		}
		return client, nil
	default:
		var opts []cartesia.ClientOption
		if providers.Voice != "" {
			opts = append(opts, cartesia.WithVoice(providers.Voice))
		}
		return cartesia.NewTextToSpeechClient(providers.CartesiaAPIKey, opts...), nil
	}
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

func logEvents(logger *slog.Logger) events.Handler {
	return func(event events.Event) {
		switch e := event.(type) {
		case events.UserTranscriptSegment:
			logger.Debug("transcript", "text", e.Segment)
		case events.AssistantResponseFailed:
			logger.Warn("response failed", "request", e.RequestID, "error", e.Err)
		case events.AssistantSpeechFrame:
		default:
			logger.Debug("event", "kind", event.Kind())
		}
	}
}
