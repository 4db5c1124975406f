package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var ErrCaptureDisabled = errors.New("microphone capture not enabled")

// captureFrameSize is one mono pcm16 frame.
const captureFrameSize = 2

// microphone delivers mono pcm16 frames from a capture device. The callback
// runs on the audio thread and receives a copy of every period.
type microphone struct {
	mu      sync.Mutex
	device  *malgo.Device
	onAudio atomic.Pointer[func(pcm []byte)]
}

func captureConfig(deviceID *malgo.DeviceID, sampleRate int) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(sampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	if deviceID != nil {
		config.Capture.DeviceID = deviceID.Pointer()
	}
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInMilliseconds = 20
	return config
}

func (m *microphone) Init(audioContext *malgo.AllocatedContext, deviceID *malgo.DeviceID, sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, err := malgo.InitDevice(audioContext.Context, captureConfig(deviceID, sampleRate), malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if onAudio := m.onAudio.Load(); onAudio != nil {
				deliverFrames(input, frameCount, *onAudio)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	m.device = device
	return nil
}

// deliverFrames copies the frameCount frames out of the device buffer, which
// malgo reuses once the callback returns. Short buffers are dropped.
func deliverFrames(input []byte, frameCount uint32, onAudio func(pcm []byte)) {
	n := int(frameCount) * captureFrameSize
	if n == 0 || len(input) < n {
		return
	}
	onAudio(append([]byte(nil), input[:n]...))
}

func (m *microphone) Start(onAudio func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return ErrCaptureDisabled
	}
	if m.device.IsStarted() {
		return nil
	}

	m.onAudio.Store(&onAudio)
	if err := m.device.Start(); err != nil {
		m.onAudio.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	logger.Info("microphone capture started")
	return nil
}

func (m *microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio.Store(nil)
	if m.device == nil || !m.device.IsStarted() {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (m *microphone) Uninit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio.Store(nil)
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	return nil
}
