package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	device   *malgo.Device
	channels int

	leftoverAudio []byte

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, deviceID *malgo.DeviceID, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(sampleRate)
	config.Playback.Format = malgo.FormatS16
	// Zero channels opens the device with its native channel count.
	config.Playback.Channels = 0
	if deviceID != nil {
		config.Playback.DeviceID = deviceID.Pointer()
	}
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(sampleRate / 10) // ~100ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio},
	); err != nil {
		return err
	}

	c.channels = int(c.device.PlaybackChannels())
	if c.channels < 1 {
		c.channels = 2
	}
	logger.Debug("playback device initialized", "channels", c.channels, "sample_rate", sampleRate)
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// SendAudio upmixes mono audio to the device channels and queues it.
func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	device, channels := c.device, c.channels
	c.mu.Unlock()
	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	frames := upmix(audio, channels)
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, frames...)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = c.leftoverAudio[:0]
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	return nil
}

func (c *playbackClient) processAudio(pOutput, _ []byte, _ uint32) {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	n := copy(pOutput, c.leftoverAudio)
	c.leftoverAudio = c.leftoverAudio[n:]
	clear(pOutput[n:])
}

// upmix duplicates every 16-bit mono sample across channels.
func upmix(mono []byte, channels int) []byte {
	if channels <= 1 {
		return append([]byte(nil), mono...)
	}

	samples := len(mono) / 2
	out := make([]byte, 0, samples*2*channels)
	for i := range samples {
		for range channels {
			out = append(out, mono[2*i], mono[2*i+1])
		}
	}
	return out
}
