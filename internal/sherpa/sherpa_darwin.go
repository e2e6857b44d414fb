//go:build darwin

// Package sherpa re-exports the platform-specific sherpa-onnx bindings the
// daemon needs locally: the Silero VAD and the streaming keyword spotter.
package sherpa

import impl "github.com/k2-fsa/sherpa-onnx-go-macos"

// Type aliases for VAD

type VoiceActivityDetector = impl.VoiceActivityDetector
type VadModelConfig = impl.VadModelConfig
type SpeechSegment = impl.SpeechSegment

// Type aliases for the streaming keyword spotter

type KeywordSpotter = impl.KeywordSpotter
type KeywordSpotterConfig = impl.KeywordSpotterConfig
type OnlineStream = impl.OnlineStream

// VAD functions

var NewVoiceActivityDetector = impl.NewVoiceActivityDetector
var DeleteVoiceActivityDetector = impl.DeleteVoiceActivityDetector

// Keyword spotter functions

var NewKeywordSpotter = impl.NewKeywordSpotter
var DeleteKeywordSpotter = impl.DeleteKeywordSpotter
var DeleteOnlineStream = impl.DeleteOnlineStream

// HasNvidiaGPU returns false on macOS; kept for parity with the Linux
// build tag so callers don't need per-platform branches.
func HasNvidiaGPU() bool {
	return false
}
