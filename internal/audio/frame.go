// Package audio provides microphone capture for the voice pipeline.
//
// Capture opens a single device at the exact parameters the downstream
// wake detector and VAD require (16kHz, mono, S16LE) and never resamples
// or mixes channels: if the device cannot deliver that format directly,
// startup fails rather than silently degrading audio quality.
package audio

import "time"

// SampleRate is the only sample rate the pipeline accepts.
const SampleRate = 16000

// FrameSamples is the frame length the keyword-spotter requires.
const FrameSamples = 512

// Frame is a fixed-length, contiguous, non-overlapping chunk of signed
// 16-bit mono PCM, carrying the wall-clock time it was captured at so
// consumers can reconstruct monotonic ordering after channel delivery.
type Frame struct {
	Samples   []int16
	Seq       uint64
	Timestamp time.Time
}
