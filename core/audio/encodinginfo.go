// Package audio holds the PCM plumbing shared by the audio producers and
// consumers: encoding descriptions, resampling and the ingest buffer that
// turns small client packets into transcription sized batches.
package audio

import "time"

const (
	DefaultInputSampleRate  = 48000
	DefaultOutputSampleRate = 24000
	DefaultFormat           = EncodingLinear16
)

// DefaultInputEncoding is what browser clients send: 48 kHz mono linear16.
func DefaultInputEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultInputSampleRate, Format: DefaultFormat, Channels: 1}
}

type EncodingInfo struct {
	SampleRate int
	Format     EncodingFormat
	// Channels defaults to mono when zero.
	Channels int
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels < 1 {
		return 1
	}
	return e.Channels
}

// FrameSize is the number of bytes one sample takes across all channels.
func (e EncodingInfo) FrameSize() int {
	return e.Format.ByteSize() * e.channels()
}

// Duration is the playing time of n bytes in this encoding.
func (e EncodingInfo) Duration(n int) time.Duration {
	frameSize := e.FrameSize()
	if e.SampleRate <= 0 || frameSize <= 0 {
		return 0
	}
	frames := n / frameSize
	return time.Duration(frames) * time.Second / time.Duration(e.SampleRate)
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}
	return 0
}

type EncodingFormat string

func (e EncodingFormat) Name() string {
	return string(e)
}

func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)
