// Package miniaudio plays synthesized speech on a named output device and
// captures the local microphone, both through malgo.
package miniaudio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-vision/core/audio"
)

const DefaultOutputDevice = "VB-Cable"

var ErrDeviceNotFound = errors.New("audio device not found")

type Client struct {
	// audioContext is only kept so it can be uninitialized
	audioContext *malgo.AllocatedContext
	playbackClient
	microphone microphone

	outputDevice string
	inputDevice  string
	outputRate   int
	inputRate    int
	capture      bool
}

type ClientOption func(*Client)

// WithOutputDevice selects the first playback device whose name contains
// name. An empty name uses the system default.
func WithOutputDevice(name string) ClientOption {
	return func(c *Client) {
		c.outputDevice = name
	}
}

// WithCapture enables the microphone, optionally on a named device.
func WithCapture(deviceName string) ClientOption {
	return func(c *Client) {
		c.capture = true
		c.inputDevice = deviceName
	}
}

func WithOutputSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		c.outputRate = sampleRate
	}
}

func WithInputSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		c.inputRate = sampleRate
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		outputDevice: DefaultOutputDevice,
		outputRate:   audio.DefaultOutputSampleRate,
		inputRate:    audio.DefaultInputSampleRate,
	}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	outputID, err := findDevice(audioCtx, malgo.Playback, client.outputDevice)
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.playbackClient.Init(audioCtx, outputID, client.outputRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if client.capture {
		inputID, err := findDevice(audioCtx, malgo.Capture, client.inputDevice)
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := client.microphone.Init(audioCtx, inputID, client.inputRate); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize capture client: %w", err)
		}
	}

	return client, nil
}

// findDevice returns nil for an empty name, meaning the default device.
func findDevice(audioCtx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceID, error) {
	if name == "" {
		return nil, nil
	}

	devices, err := audioCtx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	names := make([]string, len(devices))
	for i, device := range devices {
		names[i] = device.Name()
	}
	i := matchDevice(names, name)
	if i < 0 {
		return nil, fmt.Errorf("%w: no device matches %q (available: %s)", ErrDeviceNotFound, name, strings.Join(names, ", "))
	}

	logger.Info("using audio device", "name", names[i])
	id := devices[i].ID
	return &id, nil
}

func matchDevice(names []string, substring string) int {
	needle := strings.ToLower(substring)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			return i
		}
	}
	return -1
}

// Write queues mono pcm16 audio for playback.
func (c *Client) Write(audio []byte) (int, error) {
	if err := c.playbackClient.SendAudio(audio); err != nil {
		return 0, err
	}
	return len(audio), nil
}

func (c *Client) StartCapture(onAudio func(audio []byte)) error {
	return c.microphone.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.microphone.Stop()
}

func (c *Client) ClearBuffer() {
	c.playbackClient.ClearBuffer()
}

// InputEncoding describes the audio delivered to the capture callback.
func (c *Client) InputEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.inputRate, Format: audio.EncodingLinear16, Channels: 1}
}

func (c *Client) Close() {
	_ = c.microphone.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
