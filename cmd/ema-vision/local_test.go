package main

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-vision/core/audio"
)

type micStub struct {
	onAudio  func(pcm []byte)
	startErr error
	stopped  bool
}

func (m *micStub) StartCapture(onAudio func(pcm []byte)) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.onAudio = onAudio
	return nil
}

func (m *micStub) StopCapture() error {
	m.stopped = true
	return nil
}

func TestLocalCaptureFeedsSessionWithLoudness(t *testing.T) {
	sess := newSessionStub()
	mic := &micStub{}

	local, stop, err := startLocal(context.Background(), func(context.Context) (session, error) {
		return sess, nil
	}, mic, discardLogger())
	if err != nil {
		t.Fatalf("startLocal failed: %v", err)
	}
	if local != sess {
		t.Fatalf("expected the opened session to be returned")
	}

	pcm := audio.PCM([]int16{16384, -16384, 16384, -16384})
	mic.onAudio(pcm)

	if len(sess.audio) != 1 || string(sess.audio[0]) != string(pcm) {
		t.Fatalf("expected captured audio forwarded, got %v", sess.audio)
	}
	want := audio.Loudness(audio.Samples(pcm, 1))
	if want == 0 || sess.loudness[0] != want {
		t.Fatalf("expected loudness %f, got %f", want, sess.loudness[0])
	}

	stop()
	if !mic.stopped {
		t.Fatalf("expected capture to stop")
	}
	select {
	case <-sess.closed:
	default:
		t.Fatalf("expected the local session to close after capture stops")
	}
}

func TestLocalCaptureStartFailureClosesSession(t *testing.T) {
	sess := newSessionStub()
	mic := &micStub{startErr: errors.New("no microphone")}

	_, _, err := startLocal(context.Background(), func(context.Context) (session, error) {
		return sess, nil
	}, mic, discardLogger())
	if err == nil {
		t.Fatalf("expected an error when capture cannot start")
	}
	select {
	case <-sess.closed:
	default:
		t.Fatalf("expected the session to be closed on failure")
	}
}

func TestSharedSessionSurvivesDisconnect(t *testing.T) {
	sess := newSessionStub()
	shared := sharedSession{sess}

	shared.OnAudioPacket([]byte{1, 2}, 0.1)
	shared.Close()

	select {
	case <-sess.closed:
		t.Fatalf("closing a shared session must not close the local session")
	default:
	}
	if audio, _ := sess.counts(); audio != 1 {
		t.Fatalf("expected audio forwarded through the shared session, got %d", audio)
	}
}
