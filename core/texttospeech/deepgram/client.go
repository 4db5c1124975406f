// Package deepgram synthesizes speech through Deepgram's streaming speak API.
//
// The service has no notion of contexts, so segments are spoken one at a
// time and each Flushed confirmation advances to the next one.
package deepgram

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

const DefaultURL = "wss://api.deepgram.com/v1/speak"

type TextToSpeechClient struct {
	apiKey string
	url    string
	voice  deepgramVoice

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	options texttospeech.TextToSpeechOptions
	// pending holds segments waiting for synthesis. The head has been sent
	// and is waiting for its Flushed confirmation.
	pending []segment
}

type segment struct {
	contextID string
	text      string
	final     bool
}

type ClientOption func(*TextToSpeechClient) error

func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) error {
		c.url = url
		return nil
	}
}

func WithVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) error {
		if !slices.Contains(GetAvailableVoices(), deepgramVoice(voice)) {
			return fmt.Errorf("invalid voice %q", voice)
		}
		c.voice = deepgramVoice(voice)
		return nil
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{apiKey: apiKey, url: DefaultURL, voice: defaultVoice}
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}
