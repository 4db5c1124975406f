// Package cartesia synthesizes speech through Cartesia's websocket API with
// continuation contexts.
package cartesia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL     = "wss://api.cartesia.ai/tts/websocket"
	DefaultVersion = "2025-04-16"
	DefaultModel   = "sonic-3"
	DefaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

var (
	ErrNotConnected = errors.New("synthesis stream not open")
	ErrServiceError = errors.New("cartesia error")
)

type TextToSpeechClient struct {
	apiKey   string
	url      string
	version  string
	model    string
	voiceID  string
	language string

	connMu  sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	options texttospeech.TextToSpeechOptions
	format  outputFormat
}

type ClientOption func(*TextToSpeechClient)

func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.url = url
	}
}

func WithVersion(version string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.version = version
	}
}

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.model = model
	}
}

func WithVoice(id string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.voiceID = id
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.language = language
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) *TextToSpeechClient {
	c := &TextToSpeechClient{
		apiKey:   apiKey,
		url:      DefaultURL,
		version:  DefaultVersion,
		model:    DefaultModel,
		voiceID:  DefaultVoiceID,
		language: "en",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func toOutputFormat(encoding audio.EncodingInfo) (outputFormat, error) {
	format := outputFormat{Container: "raw", SampleRate: encoding.SampleRate}
	switch encoding.Format {
	case audio.EncodingLinear16:
		format.Encoding = "pcm_s16le"
	case audio.EncodingMulaw:
		format.Encoding = "pcm_mulaw"
	case audio.EncodingALaw:
		format.Encoding = "pcm_alaw"
	default:
		return format, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	return format, nil
}

// Open connects the synthesis stream. Events are delivered to the callback
// from a single reader goroutine until Close.
func (c *TextToSpeechClient) Open(ctx context.Context, opts ...texttospeech.TextToSpeechOption) error {
	ctx, span := tracer.Start(ctx, "open synthesis stream")
	defer span.End()

	options := texttospeech.NewTextToSpeechOptions(opts...)
	format, err := toOutputFormat(options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		return err
	}

	endpoint, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("invalid cartesia url: %w", err)
	}
	query := endpoint.Query()
	query.Set("api_key", c.apiKey)
	query.Set("cartesia_version", c.version)
	endpoint.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to cartesia: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	done := make(chan struct{})
	c.connMu.Lock()
	c.conn = conn
	c.done = done
	c.options = options
	c.format = format
	c.connMu.Unlock()

	go c.readMessages(conn, done, options.EventCallback)
	return nil
}

// Synthesize sends text for a context. Empty text is only sent when it
// closes the context.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, request texttospeech.Request) error {
	if request.Text == "" && request.Continue {
		return nil
	}

	_, span := tracer.Start(ctx, "synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("synthesis.context_id", request.ContextID),
		attribute.Int("synthesis.text_length", len(request.Text)),
	)

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.WriteJSON(generationRequest{
		ModelID:      c.model,
		Transcript:   request.Text,
		Voice:        voice{Mode: "id", ID: c.voiceID},
		Language:     c.language,
		ContextID:    request.ContextID,
		Continue:     request.Continue,
		OutputFormat: c.format,
	}); err != nil {
		err = fmt.Errorf("failed to send synthesis request: %w", err)
		span.RecordError(err)
		return err
	}
	return nil
}

// Cancel stops generation for a context. Audio already sent still arrives.
func (c *TextToSpeechClient) Cancel(contextID string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(cancelRequest{ContextID: contextID, Cancel: true})
}

func (c *TextToSpeechClient) Close() error {
	c.connMu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}

	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second)); err != nil {
		logger.Debug("failed to send close frame", "error", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return conn.Close()
}

func (c *TextToSpeechClient) readMessages(conn *websocket.Conn, done chan struct{}, callback func(texttospeech.Event)) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("synthesis socket closed", "error", err)
			}
			return
		}

		var resp response
		if err := json.Unmarshal(msg, &resp); err != nil {
			logger.Warn("failed to unmarshal cartesia message", "error", err)
			continue
		}

		event := texttospeech.Event{Type: texttospeech.EventType(resp.Type), ContextID: resp.ContextID}
		switch event.Type {
		case texttospeech.EventChunk:
			event.Audio, err = base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				logger.Warn("failed to decode audio chunk", "context_id", resp.ContextID, "error", err)
				continue
			}
		case texttospeech.EventError:
			event.Err = fmt.Errorf("%w: %s (status %d)", ErrServiceError, resp.Error, resp.StatusCode)
		}
		callback(event)
	}
}
