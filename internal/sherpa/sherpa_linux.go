//go:build linux

// Package sherpa re-exports the platform-specific sherpa-onnx bindings the
// daemon needs locally: the Silero VAD (utterance boundary detection) and
// the streaming keyword spotter (wake-word detection). Cloud ASR and TTS
// live in internal/asr and internal/tts instead — sherpa-onnx here never
// talks to the network, only to on-disk VAD/KWS models.
package sherpa

import (
	"os"

	impl "github.com/k2-fsa/sherpa-onnx-go-linux"
)

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

// HasNvidiaGPU checks for NVIDIA GPU availability on Linux. Used only to
// pick a sensible execution provider for the local VAD/KWS models —
// neither ASR nor TTS runs locally anymore, so no other provider switch
// is needed.
func HasNvidiaGPU() bool {
	nvidiaSmiPaths := []string{
		"/usr/bin/nvidia-smi",
		"/usr/local/bin/nvidia-smi",
		"/opt/nvidia/bin/nvidia-smi",
	}
	for _, path := range nvidiaSmiPaths {
		if fileExists(path) {
			return true
		}
	}
	if fileExists("/dev/nvidia0") {
		return true
	}

	jetsonIndicators := []string{
		"/dev/nvhost-gpu",
		"/dev/nvhost-ctrl-gpu",
		"/dev/nvmap",
		"/etc/nv_tegra_release",
	}
	for _, path := range jetsonIndicators {
		if fileExists(path) {
			return true
		}
	}

	if data, err := os.ReadFile("/proc/device-tree/compatible"); err == nil {
		if contains(string(data), "nvidia,tegra") || contains(string(data), "nvidia,jetson") {
			return true
		}
	}

	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
