// Package utterance implements the VAD-bounded utterance capture that
// runs between a Wake Event and a finished, WAV-encoded audio buffer
// (spec.md §4.C). It is driven frame-by-frame by the orchestrator's single
// sequential consumer rather than owning its own goroutine, so it never
// introduces a second place frames can be dropped or reordered.
package utterance

import (
	"fmt"
	"time"

	"github.com/btwd/btwd/internal/audio"
	"github.com/btwd/btwd/internal/sherpa"
	"github.com/btwd/btwd/internal/wav"
)

// ErrNoSpeech is returned when speaking is never entered within the
// pre-speech timeout.
var ErrNoSpeech = fmt.Errorf("utterance: no speech detected")

const frameDuration = 32 * time.Millisecond // FrameSamples/SampleRate

// Config tunes the capture state machine.
type Config struct {
	VADModelPath       string
	Threshold          float32
	NumThreads         int
	NStart             int           // consecutive VAD-positive frames to enter speaking (default 3)
	TrailingSilence    time.Duration // silence after which a started utterance finalises (default 700ms)
	MaxDuration        time.Duration // hard cap (default 15s)
	PreSpeechTimeout   time.Duration // abort if never speaking (default 3s)
	PreRollDuration    time.Duration // pre-roll held for the first syllable (default 200ms)
}

func (c *Config) defaults() {
	if c.NStart <= 0 {
		c.NStart = 3
	}
	if c.TrailingSilence <= 0 {
		c.TrailingSilence = 700 * time.Millisecond
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 15 * time.Second
	}
	if c.PreSpeechTimeout <= 0 {
		c.PreSpeechTimeout = 3 * time.Second
	}
	if c.PreRollDuration <= 0 {
		c.PreRollDuration = 200 * time.Millisecond
	}
}

// Result is a completed utterance.
type Result struct {
	WAV       []byte
	Duration  time.Duration
	Truncated bool
}

type captureState int

const (
	stateIdle captureState = iota
	stateArmed              // waiting for N_start consecutive positive frames
	stateSpeaking
)

// Capturer runs the pre-roll ring buffer shared with the wake detector
// and the VAD state machine that bounds a single utterance.
type Capturer struct {
	cfg Config
	vad *sherpa.VoiceActivityDetector

	preroll    []audio.Frame
	prerollCap int

	state            captureState
	collected        []int16
	consecutivePos   int
	consecutiveNeg   int
	speakingSince    time.Time
	armedSince       time.Time
}

// New constructs a Capturer with its own VAD instance, sized pre-roll
// ring buffer, and the given tuning.
func New(cfg Config) (*Capturer, error) {
	cfg.defaults()

	vadConfig := &sherpa.VadModelConfig{}
	vadConfig.SileroVad.Model = cfg.VADModelPath
	vadConfig.SileroVad.Threshold = cfg.Threshold
	vadConfig.SileroVad.MinSilenceDuration = float32(cfg.TrailingSilence.Seconds())
	vadConfig.SileroVad.MinSpeechDuration = 0.1
	vadConfig.SileroVad.MaxSpeechDuration = float32(cfg.MaxDuration.Seconds())
	vadConfig.SileroVad.WindowSize = int(audio.FrameSamples)
	vadConfig.SampleRate = audio.SampleRate
	vadConfig.NumThreads = cfg.NumThreads
	if vadConfig.NumThreads <= 0 {
		vadConfig.NumThreads = 1
	}

	vad := sherpa.NewVoiceActivityDetector(vadConfig, 60.0)
	if vad == nil {
		return nil, fmt.Errorf("utterance: failed to create VAD")
	}

	prerollFrames := int(cfg.PreRollDuration/frameDuration) + 1

	return &Capturer{
		cfg:        cfg,
		vad:        vad,
		prerollCap: prerollFrames,
		state:      stateIdle,
	}, nil
}

// Observe feeds a frame into the pre-roll ring. Call this for every frame
// while Idle so the first syllable after a wake event is never clipped.
func (c *Capturer) Observe(f audio.Frame) {
	if c.state != stateIdle {
		return
	}
	c.preroll = append(c.preroll, f)
	if len(c.preroll) > c.prerollCap {
		c.preroll = c.preroll[len(c.preroll)-c.prerollCap:]
	}
}

// Begin starts a new utterance capture, seeding it with the held pre-roll
// frames. Must only be called from Idle.
func (c *Capturer) Begin() {
	c.state = stateArmed
	c.consecutivePos = 0
	c.consecutiveNeg = 0
	c.collected = c.collected[:0]
	c.armedSince = time.Now()

	for _, f := range c.preroll {
		c.collected = append(c.collected, f.Samples...)
	}
	c.preroll = c.preroll[:0]
}

// Feed processes one frame of an in-progress capture. done is true once
// the utterance finalises, aborts, or hits its hard cap; result and err
// are mutually exclusive in that case.
func (c *Capturer) Feed(f audio.Frame) (done bool, result *Result, err error) {
	if c.state == stateIdle {
		return true, nil, fmt.Errorf("utterance: Feed called before Begin")
	}

	c.collected = append(c.collected, f.Samples...)

	floatSamples := make([]float32, len(f.Samples))
	for i, s := range f.Samples {
		floatSamples[i] = float32(s) / 32768.0
	}
	c.vad.AcceptWaveform(floatSamples)
	isSpeech := c.vad.IsSpeech()

	elapsed := time.Since(c.armedSince)
	if elapsed >= c.cfg.MaxDuration {
		return true, c.finalize(true), nil
	}

	if c.state == stateArmed {
		if isSpeech {
			c.consecutivePos++
		} else {
			c.consecutivePos = 0
		}
		if c.consecutivePos >= c.cfg.NStart {
			c.state = stateSpeaking
			c.speakingSince = time.Now()
			c.consecutiveNeg = 0
			return false, nil, nil
		}
		if elapsed >= c.cfg.PreSpeechTimeout {
			c.reset()
			return true, nil, ErrNoSpeech
		}
		return false, nil, nil
	}

	// stateSpeaking
	if isSpeech {
		c.consecutiveNeg = 0
	} else {
		c.consecutiveNeg++
		if time.Duration(c.consecutiveNeg)*frameDuration >= c.cfg.TrailingSilence {
			return true, c.finalize(false), nil
		}
	}
	return false, nil, nil
}

func (c *Capturer) finalize(truncated bool) *Result {
	samples := make([]int16, len(c.collected))
	copy(samples, c.collected)
	duration := time.Duration(len(samples)) * time.Second / audio.SampleRate
	c.reset()
	return &Result{
		WAV:       wav.Encode(samples, audio.SampleRate),
		Duration:  duration,
		Truncated: truncated,
	}
}

func (c *Capturer) reset() {
	c.state = stateIdle
	c.collected = c.collected[:0]
	c.consecutivePos = 0
	c.consecutiveNeg = 0
	c.vad.Clear()
}

// Close releases the native VAD handle.
func (c *Capturer) Close() {
	if c.vad != nil {
		sherpa.DeleteVoiceActivityDetector(c.vad)
		c.vad = nil
	}
}
