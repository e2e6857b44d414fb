// Package wake detects a configured wake word in a stream of PCM frames
// using the streaming keyword-spotter backed by sherpa-onnx.
//
// Design Notes (spec.md §9): the native spotter is known to corrupt its
// stack if initialisation arguments are omitted. This package owns the
// full argument construction and validates every path before calling into
// the library; nothing upstream is allowed to synthesise init arguments,
// and the underlying handle is released on every exit path via Close.
package wake

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btwd/btwd/internal/btwderr"
	"github.com/btwd/btwd/internal/sherpa"
)

// Cooldown is the window after a positive detection during which further
// positive returns are ignored (spec.md §4.B).
const Cooldown = 300 * time.Millisecond

// Event is emitted when the spotter reports a positive keyword index.
type Event struct {
	Timestamp time.Time
	Keyword   string
}

// Keyword carries a sensitivity for the spotter. The keywords the spotter
// listens for come from Config.KeywordFile, not from Name; only the first
// entry's Sensitivity is used, as one threshold for every keyword in the
// file.
type Keyword struct {
	Name        string  // label only; not passed to the spotter
	Sensitivity float32 // [0,1], default 0.6
}

// Config holds the wake detector's startup arguments. The two file paths
// are validated up front; AccessKey is accepted but not read by New.
// Device is passed through to the native library verbatim.
type Config struct {
	AccessKey   string // optional per-deployment license/access credential
	KeywordFile string // wake_word.ppn_path: keyword definitions, required
	ModelDir    string // wake_word.model_path: spotter model directory, required
	Device      string // default "cpu"
	Keywords    []Keyword
	NumThreads  int
}

// Detector wraps a sherpa-onnx KeywordSpotter with cooldown and an event
// channel, matching the orchestrator's need for a non-blocking source of
// Wake Events.
type Detector struct {
	kws    *sherpa.KeywordSpotter
	stream *sherpa.OnlineStream

	mu           sync.Mutex
	lastDetected time.Time

	events chan Event
}

// New validates the startup contract and constructs the native spotter.
// Both KeywordFile and ModelDir must exist, be readable, and be non-empty;
// a missing argument fails fast naming the specific field, per the Design
// Notes above.
func New(cfg Config) (*Detector, error) {
	if cfg.KeywordFile == "" {
		return nil, btwderr.NewField(btwderr.WakeInitFailure, "wake_word.ppn_path", fmt.Errorf("missing"))
	}
	if err := validateNonEmptyFile(cfg.KeywordFile); err != nil {
		return nil, btwderr.NewField(btwderr.WakeInitFailure, "wake_word.ppn_path", err)
	}
	if cfg.ModelDir == "" {
		return nil, btwderr.NewField(btwderr.WakeInitFailure, "wake_word.model_path", fmt.Errorf("missing"))
	}
	if info, err := os.Stat(cfg.ModelDir); err != nil || !info.IsDir() {
		return nil, btwderr.NewField(btwderr.WakeInitFailure, "wake_word.model_path", fmt.Errorf("not a readable directory: %w", err))
	}
	for _, p := range []string{"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt"} {
		if err := validateNonEmptyFile(cfg.ModelDir + "/" + p); err != nil {
			return nil, btwderr.NewField(btwderr.WakeInitFailure, "wake_word.model_path/"+p, err)
		}
	}

	device := cfg.Device
	if device == "" {
		device = "cpu"
	}

	threshold := float32(0.6)
	if len(cfg.Keywords) > 0 && cfg.Keywords[0].Sensitivity > 0 {
		threshold = cfg.Keywords[0].Sensitivity
	}

	kwsConfig := &sherpa.KeywordSpotterConfig{}
	kwsConfig.ModelConfig.Transducer.Encoder = cfg.ModelDir + "/encoder.onnx"
	kwsConfig.ModelConfig.Transducer.Decoder = cfg.ModelDir + "/decoder.onnx"
	kwsConfig.ModelConfig.Transducer.Joiner = cfg.ModelDir + "/joiner.onnx"
	kwsConfig.ModelConfig.Tokens = cfg.ModelDir + "/tokens.txt"
	kwsConfig.ModelConfig.Provider = device // passed through verbatim
	kwsConfig.ModelConfig.NumThreads = cfg.NumThreads
	if kwsConfig.ModelConfig.NumThreads <= 0 {
		kwsConfig.ModelConfig.NumThreads = 1
	}
	kwsConfig.KeywordsFile = cfg.KeywordFile
	kwsConfig.KeywordsThreshold = threshold
	kwsConfig.MaxActivePaths = 4

	kws := sherpa.NewKeywordSpotter(kwsConfig)
	if kws == nil {
		return nil, btwderr.New(btwderr.WakeInitFailure, fmt.Errorf("failed to initialize keyword spotter"))
	}

	d := &Detector{
		kws:    kws,
		events: make(chan Event, 4),
	}
	d.stream = d.newStream()
	return d, nil
}

func (d *Detector) newStream() *sherpa.OnlineStream {
	return d.kws.CreateStream()
}

// AcceptFrame feeds one audio.Frame worth of samples to the spotter.
// Non-blocking: a positive detection is sent to Events() without
// blocking the caller, matching the audio callback's never-block
// contract further upstream.
func (d *Detector) AcceptFrame(samples []int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	floatSamples := make([]float32, len(samples))
	for i, s := range samples {
		floatSamples[i] = float32(s) / 32768.0
	}

	d.stream.AcceptWaveform(16000, floatSamples)
	for d.kws.IsReady(d.stream) {
		d.kws.Decode(d.stream)
	}

	result := d.kws.GetResult(d.stream)
	keyword := strings.TrimSpace(result.Keyword)
	if keyword == "" {
		return
	}

	d.kws.Reset(d.stream)

	if time.Since(d.lastDetected) < Cooldown {
		return
	}
	d.lastDetected = time.Now()

	select {
	case d.events <- Event{Timestamp: d.lastDetected, Keyword: keyword}:
	default:
	}
}

// Events returns the channel of wake events.
func (d *Detector) Events() <-chan Event {
	return d.events
}

// Close releases the native spotter handle on every exit path.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		sherpa.DeleteOnlineStream(d.stream)
		d.stream = nil
	}
	if d.kws != nil {
		sherpa.DeleteKeywordSpotter(d.kws)
		d.kws = nil
	}
}

func validateNonEmptyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s not readable: %w", path, err)
	}
	return f.Close()
}
