// Package openai transcribes audio through OpenAI's realtime transcription
// websocket.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

const DefaultURL = "wss://api.openai.com/v1/realtime?intent=transcription"

var ErrNotConnected = errors.New("transcription session not open")

// TranscriptionClient streams pcm16 audio to the realtime API and reports
// transcript deltas as they arrive.
type TranscriptionClient struct {
	apiKey   string
	url      string
	model    string
	language string
	vad      turnDetection

	connMu sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
}

type ClientOption func(*TranscriptionClient)

// WithURL replaces the realtime endpoint.
func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		c.url = url
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		c.model = model
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		c.language = language
	}
}

// WithVAD tunes the server side voice activity detection.
func WithVAD(threshold float64, prefixPadding, silenceDuration time.Duration) ClientOption {
	return func(c *TranscriptionClient) {
		c.vad.Threshold = threshold
		c.vad.PrefixPaddingMs = int(prefixPadding.Milliseconds())
		c.vad.SilenceDurationMs = int(silenceDuration.Milliseconds())
	}
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) *TranscriptionClient {
	c := &TranscriptionClient{
		apiKey:   apiKey,
		url:      DefaultURL,
		model:    defaultModel,
		language: defaultLanguage,
		vad: turnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe opens the session and configures it. Audio must be 24 kHz mono
// pcm16.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "open transcription session")
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(audio.EncodingInfo{
		SampleRate: audio.DefaultOutputSampleRate,
		Format:     audio.EncodingLinear16,
	}, opts...)
	if options.EncodingInfo.Format != audio.EncodingLinear16 {
		err := fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format)
		span.RecordError(err)
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		err = fmt.Errorf("failed to open realtime transcription socket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	update := sessionUpdate{
		Type: typeSessionUpdate,
		Session: session{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: inputAudioTranscription{
				Model:    c.model,
				Language: c.language,
			},
			TurnDetection:            c.vad,
			InputAudioNoiseReduction: inputAudioNoiseReduction{Type: defaultNoiseReduction},
			Include:                  []string{},
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		conn.Close()
		err = fmt.Errorf("failed to configure transcription session: %w", err)
		span.RecordError(err)
		return err
	}

	done := make(chan struct{})
	c.connMu.Lock()
	c.conn = conn
	c.done = done
	c.connMu.Unlock()

	go c.readMessages(conn, done, options)
	logger.Info("transcription session opened", "model", c.model)
	return nil
}

// SendAudio appends audio to the input buffer and commits it right away so
// every forwarded batch is transcribed.
func (c *TranscriptionClient) SendAudio(pcm []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(audioAppend{
		Type:  typeAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}); err != nil {
		return fmt.Errorf("failed to append audio: %w", err)
	}
	if err := c.conn.WriteJSON(audioCommit{Type: typeAudioCommit}); err != nil {
		return fmt.Errorf("failed to commit audio: %w", err)
	}
	return nil
}

// Close ends the session and waits, until ctx is done, for the reader to
// stop.
func (c *TranscriptionClient) Close(ctx context.Context) error {
	c.connMu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}

	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second)); err != nil {
		logger.Warn("failed to send close frame", "error", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	return conn.Close()
}

func (c *TranscriptionClient) readMessages(conn *websocket.Conn, done chan struct{}, options speechtotext.TranscriptionOptions) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("transcription socket closed", "error", err)
			}
			return
		}
		c.processMessage(msg, options)
	}
}

func (c *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var event serverEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		logger.Warn("failed to unmarshal transcription event", "error", err)
		return
	}

	switch event.Type {
	case typeTranscriptDelta:
		if event.Delta != "" && options.PartialTranscriptionCallback != nil {
			options.PartialTranscriptionCallback(event.Delta)
		}
	case typeTranscriptDone:
		if event.Transcript != "" && options.TranscriptionCallback != nil {
			options.TranscriptionCallback(event.Transcript)
		}
	case typeSpeechStarted:
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	case typeSpeechStopped:
		if options.SpeechEndedCallback != nil {
			options.SpeechEndedCallback()
		}
	case typeError:
		if event.Error != nil {
			logger.Error("transcription service error", "code", event.Error.Code, "message", event.Error.Message)
		}
	case typeSessionCreated, typeSessionUpdated:
		logger.Debug("transcription session event", "type", event.Type)
	}
}
