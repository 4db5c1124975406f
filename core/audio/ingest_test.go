package audio

import (
	"testing"
	"time"
)

func silence(d time.Duration, sampleRate int) []byte {
	return make([]byte, 2*int(int64(sampleRate)*int64(d)/int64(time.Second)))
}

func TestIngestBufferFlushPolicy(t *testing.T) {
	tests := []struct {
		name     string
		packets  []time.Duration
		loudness float64
		want     []bool
	}{
		{name: "quiet below max", packets: []time.Duration{time.Second, 2 * time.Second}, loudness: 0.01, want: []bool{false, false}},
		{name: "loud after min", packets: []time.Duration{time.Second, time.Second}, loudness: 0.5, want: []bool{false, true}},
		{name: "loud before min", packets: []time.Duration{time.Second}, loudness: 0.5, want: []bool{false}},
		{name: "quiet reaches max", packets: []time.Duration{6 * time.Second, 4 * time.Second}, loudness: 0, want: []bool{false, true}},
		{name: "threshold is exclusive", packets: []time.Duration{3 * time.Second}, loudness: DefaultLoudnessThreshold, want: []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forwarded := 0
			buffer := NewIngestBuffer(func([]byte) { forwarded++ })

			for i, d := range tt.packets {
				if got := buffer.OnAudioPacket(silence(d, DefaultInputSampleRate), tt.loudness); got != tt.want[i] {
					t.Fatalf("packet %d: expected flush=%v, got %v", i, tt.want[i], got)
				}
			}

			flushes := 0
			for _, w := range tt.want {
				if w {
					flushes++
				}
			}
			if forwarded != flushes {
				t.Fatalf("expected %d forwards, got %d", flushes, forwarded)
			}
		})
	}
}

func TestIngestBufferResamplesOnFlush(t *testing.T) {
	var got []byte
	buffer := NewIngestBuffer(func(pcm []byte) { got = pcm })

	if !buffer.OnAudioPacket(silence(2*time.Second, DefaultInputSampleRate), 1) {
		t.Fatalf("expected flush")
	}

	want := 2 * 2 * DefaultOutputSampleRate
	if len(got) != want {
		t.Fatalf("expected %d bytes at the output rate, got %d", want, len(got))
	}
	if buffer.Buffered() != 0 {
		t.Fatalf("buffer not cleared after flush")
	}
}

func TestIngestBufferForcedFlush(t *testing.T) {
	calls := 0
	buffer := NewIngestBuffer(func([]byte) { calls++ })

	buffer.Flush()
	if calls != 0 {
		t.Fatalf("empty buffer must not be forwarded")
	}

	buffer.OnAudioPacket(silence(100*time.Millisecond, DefaultInputSampleRate), 0)
	buffer.Flush()
	if calls != 1 {
		t.Fatalf("expected forced flush to forward, got %d calls", calls)
	}
}

func TestIngestBufferStereoInput(t *testing.T) {
	var got []byte
	buffer := NewIngestBuffer(func(pcm []byte) { got = pcm },
		WithInputEncoding(EncodingInfo{SampleRate: 16000, Format: EncodingLinear16, Channels: 2}),
		WithOutputSampleRate(16000),
		WithMinFlushDuration(0),
	)

	buffer.OnAudioPacket(PCM([]int16{100, 300, -100, -300}), 1)

	samples := Samples(got, 1)
	if len(samples) != 2 || samples[0] != 200 || samples[1] != -200 {
		t.Fatalf("expected downmixed samples, got %v", samples)
	}
}
