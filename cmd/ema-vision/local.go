package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/koscakluka/ema-vision/core/audio"
)

type capturer interface {
	StartCapture(onAudio func(pcm []byte)) error
	StopCapture() error
}

// sharedSession lets websocket clients feed the local session without
// ending it when they disconnect.
type sharedSession struct {
	session
}

func (sharedSession) Close() {}

// captureHandler forwards mono pcm16 microphone frames with their loudness,
// the value browser clients send as sound_level.
func captureHandler(sess session) func(pcm []byte) {
	return func(pcm []byte) {
		sess.OnAudioPacket(pcm, audio.Loudness(audio.Samples(pcm, 1)))
	}
}

// startLocal opens the single local session and starts feeding it from the
// microphone. The returned stop function ends capture and then the session.
func startLocal(ctx context.Context, open sessionFactory, mic capturer, logger *slog.Logger) (session, func(), error) {
	sess, err := open(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := mic.StartCapture(captureHandler(sess)); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("failed to start microphone capture: %w", err)
	}

	stop := func() {
		if err := mic.StopCapture(); err != nil {
			logger.Warn("failed to stop microphone capture", "error", err)
		}
		sess.Close()
	}
	return sess, stop, nil
}
