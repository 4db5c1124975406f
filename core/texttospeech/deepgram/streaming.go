package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNotConnected = errors.New("synthesis stream not open")

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = speakMessage{Type: "Flush"}
	clearMsg = speakMessage{Type: "Clear"}
	closeMsg = speakMessage{Type: "Close"}
)

func (c *TextToSpeechClient) Open(ctx context.Context, opts ...texttospeech.TextToSpeechOption) error {
	ctx, span := tracer.Start(ctx, "open synthesis stream")
	defer span.End()

	options := texttospeech.NewTextToSpeechOptions(opts...)
	conn, err := c.connectWebsocket(ctx, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.options = options
	c.pending = nil
	c.mu.Unlock()

	go c.readMessages(conn, done)
	return nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, options texttospeech.TextToSpeechOptions) (*websocket.Conn, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}

	urlValues := endpoint.Query()
	urlValues.Set("encoding", options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	endpoint.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// Synthesize queues text for speaking. Text is only sent once everything
// queued before it has been flushed, since Deepgram sometimes drops text
// sent right after a flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, request texttospeech.Request) error {
	if request.Text == "" && request.Continue {
		return nil
	}

	_, span := tracer.Start(ctx, "synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("synthesis.context_id", request.ContextID))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	c.pending = append(c.pending, segment{
		contextID: request.ContextID,
		text:      request.Text,
		final:     !request.Continue,
	})
	if len(c.pending) == 1 {
		if err := c.sendHead(); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// Cancel drops queued text for a context and clears whatever the service
// still has buffered.
func (c *TextToSpeechClient) Cancel(contextID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	headCancelled := len(c.pending) > 0 && c.pending[0].contextID == contextID
	kept := c.pending[:0]
	for _, s := range c.pending {
		if s.contextID != contextID {
			kept = append(kept, s)
		}
	}
	c.pending = kept

	if headCancelled {
		if err := c.conn.WriteJSON(clearMsg); err != nil {
			return fmt.Errorf("failed to clear deepgram buffer: %w", err)
		}
		if len(c.pending) > 0 {
			return c.sendHead()
		}
	}
	return nil
}

func (c *TextToSpeechClient) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.pending = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.WriteJSON(closeMsg); err != nil {
		logger.Debug("failed to send close message", "error", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return conn.Close()
}

// sendHead must be called with mu held.
func (c *TextToSpeechClient) sendHead() error {
	head := c.pending[0]
	if head.text != "" {
		if err := c.conn.WriteJSON(speakMessage{Type: "Speak", Text: head.text}); err != nil {
			return fmt.Errorf("failed to send text to deepgram: %w", err)
		}
	}
	if err := c.conn.WriteJSON(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

func (c *TextToSpeechClient) readMessages(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("synthesis socket closed", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			c.mu.Lock()
			callback, contextID := c.options.EventCallback, c.headContext()
			c.mu.Unlock()
			callback(texttospeech.Event{Type: texttospeech.EventChunk, ContextID: contextID, Audio: msg})

		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				callback, events := c.advance()
				for _, event := range events {
					callback(event)
				}
			case "Warning", "Error":
				c.mu.Lock()
				callback, contextID := c.options.EventCallback, c.headContext()
				c.mu.Unlock()
				callback(texttospeech.Event{
					Type:      texttospeech.EventError,
					ContextID: contextID,
					Err:       fmt.Errorf("deepgram %s: %s", parsedMsg.Type, parsedMsg.Description),
				})
			}
		}
	}
}

// advance pops the flushed head and sends the next segment.
func (c *TextToSpeechClient) advance() (func(texttospeech.Event), []texttospeech.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return c.options.EventCallback, nil
	}

	head := c.pending[0]
	c.pending = c.pending[1:]
	events := []texttospeech.Event{{Type: texttospeech.EventFlushDone, ContextID: head.contextID}}
	if head.final {
		events = append(events, texttospeech.Event{Type: texttospeech.EventDone, ContextID: head.contextID})
	}

	if len(c.pending) > 0 && c.conn != nil {
		if err := c.sendHead(); err != nil {
			logger.Warn("failed to send queued text", "error", err)
		}
	}
	return c.options.EventCallback, events
}

func (c *TextToSpeechClient) headContext() string {
	if len(c.pending) == 0 {
		return ""
	}
	return c.pending[0].contextID
}
