// Package deepgram transcribes audio through Deepgram's live websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/internal/utils"
)

const DefaultURL = "wss://api.deepgram.com/v1/listen"

var ErrNotConnected = errors.New("transcription session not open")

type TranscriptionClient struct {
	apiKey string
	url    string

	connMu    sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	lastMsgTs time.Time

	// Only touched by the reader goroutine.
	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		c.url = url
	}
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) *TranscriptionClient {
	c := &TranscriptionClient{apiKey: apiKey, url: DefaultURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.NewTranscriptionOptions(audio.EncodingInfo{
		SampleRate: audio.DefaultOutputSampleRate,
		Format:     audio.EncodingLinear16,
	}, opts...)

	if err := checkEncoding(options.EncodingInfo); err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := s.connectWebsocket(ctx, connectionOptions{
		sampleRate: options.EncodingInfo.SampleRate,
		encoding:   options.EncodingInfo.Format.Name(),

		detectSpeechStart: options.SpeechStartedCallback != nil,
		enhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		interimResults: options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	done := make(chan struct{})
	s.connMu.Lock()
	s.conn = conn
	s.done = done
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()

	readCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		s.readAndProcessMessages(readCtx, conn, done, options)
	}()

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart            bool
	enhanceSpeechEndingDetection bool
	interimResults               bool
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	if options.enhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart || options.enhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteJSON(v)
}

func (s *TranscriptionClient) sendKeepAlive() {
	if err := s.writeJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.Warn("failed to send keep alive", "error", err)
	}
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

// Close asks Deepgram to finish the stream, which flushes the last
// transcripts, and waits for the socket to close or ctx to end.
func (s *TranscriptionClient) Close(ctx context.Context) error {
	if err := s.writeJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		logger.Warn("failed to request stream close", "error", err)
	}

	s.connMu.Lock()
	conn, done := s.conn, s.done
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	s.connMu.Lock()
	s.conn = nil
	s.connMu.Unlock()
	return conn.Close()
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, done chan struct{}, options speechtotext.TranscriptionOptions) {
	defer close(done)

	go s.generateSilence(ctx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

		if !msgResp.IsFinal {
			if len(transcript) > 0 && options.InterimTranscriptionCallback != nil {
				options.InterimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
			}
			return
		}

		if len(transcript) > 0 {
			s.accumulatedTranscript += " " + transcript
			if options.PartialTranscriptionCallback != nil {
				// Deepgram finals carry no leading space; keep words apart
				// when consumers concatenate deltas.
				options.PartialTranscriptionCallback(" " + transcript)
			}
		}
		if msgResp.SpeechFinal {
			s.onSpeechEnded(options)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(fullTranscript) > 0 && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(fullTranscript)
	}
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}

// generateSilence pads pauses in the audio with silence for a second so
// Deepgram finalises the last words, then falls back to keep alive
// messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const durationMs = 50
	const milisecondsPerSecond = 1000
	ticker := time.NewTicker(durationMs * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*durationMs/milisecondsPerSecond)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sinceLastAudio := s.sinceLastAudio()
			switch state {
			case silenceGeneratorStateWaiting:
				if sinceLastAudio > durationMs*time.Millisecond {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if sinceLastAudio < durationMs*time.Millisecond {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					logger.Debug("sending silence failed", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if sinceLastAudio < durationMs*time.Millisecond {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
