package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Samples decodes little endian linear16 PCM, averaging interleaved
// channels down to mono. A trailing partial frame is ignored.
func Samples(pcm []byte, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	frameSize := 2 * channels
	samples := make([]int16, len(pcm)/frameSize)
	for i := range samples {
		var sum int
		for c := 0; c < channels; c++ {
			offset := i*frameSize + 2*c
			sum += int(int16(binary.LittleEndian.Uint16(pcm[offset:])))
		}
		samples[i] = int16(sum / channels)
	}
	return samples
}

// PCM encodes samples as little endian linear16.
func PCM(samples []int16) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(sample))
	}
	return pcm
}

// Resample converts samples from one rate to another with linear
// interpolation between neighbouring input samples.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return append([]int16(nil), samples...)
	}

	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]int16, n)
	step := float64(fromRate) / float64(toRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = Clamp16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// Clamp16 rounds v and saturates it to the int16 range.
func Clamp16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// Loudness is the RMS level of samples scaled to [0, 1].
func Loudness(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range samples {
		v := float64(sample) / -math.MinInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Duration is the playing time of linear16 mono pcm at the given rate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
}
