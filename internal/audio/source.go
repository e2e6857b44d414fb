package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btwd/btwd/internal/btwderr"
	"github.com/gen2brain/malgo"
)

// QueueDepth is the depth of the bounded frame channel; spec.md §4.A
// requires a depth of at least 20 frames.
const QueueDepth = 32

// chunkRingSize is the number of raw capture chunks the lock-free
// producer/consumer ring can hold before the audio callback's writes are
// simply lost (distinct from, and upstream of, the frame-level drop
// counter below). Sized generously since the audio callback must never
// block.
const chunkRingSize = 64

// rawChunk holds one malgo callback's worth of S16LE samples.
type rawChunk struct {
	samples [malgoMaxChunkSamples]int16
	len     int
}

// malgoMaxChunkSamples bounds a single callback period; 32ms at 16kHz is
// 512 samples, so this leaves ample headroom for larger host-requested
// periods.
const malgoMaxChunkSamples = 4096

// chunkRing is a lock-free SPSC ring buffer feeding raw samples from the
// realtime audio callback to the re-framing goroutine.
type chunkRing struct {
	chunks [chunkRingSize]rawChunk
	head   atomic.Uint64
	tail   atomic.Uint64
}

func (r *chunkRing) push(samples []int16) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= chunkRingSize {
		return // audio callback must never block; silently lose the chunk
	}
	slot := &r.chunks[head%chunkRingSize]
	slot.len = copy(slot.samples[:], samples)
	r.head.Add(1)
}

func (r *chunkRing) pop() []int16 {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return nil
	}
	slot := &r.chunks[tail%chunkRingSize]
	out := slot.samples[:slot.len]
	r.tail.Add(1)
	return out
}

// Source opens the capture device and emits fixed-size frames on a
// bounded channel. It never blocks the audio callback and never
// resamples: if the device won't deliver 16kHz mono S16LE directly,
// NewSource fails.
type Source struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	frames   chan Frame
	ring     *chunkRing
	accum    []int16
	seq      uint64
	running  atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	dropCount atomic.Uint64
}

// NewSource opens the default capture device at exactly 16kHz mono S16LE.
// It fails fast (AudioDeviceUnavailable, via the returned error) if the
// device reports a different native sample rate — no resampling, no
// channel mixing, per spec.md §4.A.
func NewSource() (*Source, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	s := &Source{
		ctx:      ctx,
		frames:   make(chan Frame, QueueDepth),
		ring:     &chunkRing{},
		stopChan: make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	probe, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, btwderr.New(btwderr.AudioDeviceUnavailable, fmt.Errorf("audio: open capture device: %w", err))
	}
	actual := probe.SampleRate()
	probe.Uninit()

	if actual != SampleRate {
		ctx.Uninit()
		ctx.Free()
		return nil, btwderr.New(btwderr.AudioDeviceUnavailable, fmt.Errorf("audio: device only offers %d Hz, need exactly %d Hz (no resampling)", actual, SampleRate))
	}

	onRecvFrames := func(_, pInputSamples []byte, framecount uint32) {
		if !s.running.Load() {
			return
		}
		n := int(framecount)
		if n*2 > len(pInputSamples) {
			n = len(pInputSamples) / 2
		}
		var buf [malgoMaxChunkSamples]int16
		limit := n
		if limit > malgoMaxChunkSamples {
			limit = malgoMaxChunkSamples
		}
		for i := 0; i < limit; i++ {
			buf[i] = int16(binary.LittleEndian.Uint16(pInputSamples[i*2:]))
		}
		s.ring.push(buf[:limit])
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, btwderr.New(btwderr.AudioDeviceUnavailable, fmt.Errorf("audio: init capture device: %w", err))
	}
	s.device = device

	return s, nil
}

// Start begins capture and the re-framing goroutine.
func (s *Source) Start() error {
	s.running.Store(true)
	s.wg.Add(1)
	go s.processLoop()
	if err := s.device.Start(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("audio: start capture device: %w", err)
	}
	return nil
}

// Frames returns the channel of fixed-size frames. On queue-full, the
// oldest frame is dropped and the drop counter incremented; the capture
// callback itself never blocks.
func (s *Source) Frames() <-chan Frame {
	return s.frames
}

// DropCount returns the number of frames dropped for backpressure.
func (s *Source) DropCount() uint64 {
	return s.dropCount.Load()
}

func (s *Source) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		chunk := s.ring.pop()
		if chunk == nil {
			select {
			case <-s.stopChan:
				return
			case <-time.After(100 * time.Microsecond):
			}
			continue
		}

		s.accum = append(s.accum, chunk...)
		for len(s.accum) >= FrameSamples {
			samples := make([]int16, FrameSamples)
			copy(samples, s.accum[:FrameSamples])
			s.accum = s.accum[FrameSamples:]
			s.seq++
			s.emit(Frame{Samples: samples, Seq: s.seq, Timestamp: time.Now()})
		}
	}
}

// emit delivers a frame, dropping the oldest queued frame on overflow so
// the capture path always has headroom and never blocks.
func (s *Source) emit(f Frame) {
	select {
	case s.frames <- f:
		return
	default:
	}

	select {
	case <-s.frames:
	default:
	}

	count := s.dropCount.Add(1)
	if count%100 == 0 {
		log.Printf("⚠️  audio: frame queue full, dropped %d frames total", count)
	}

	select {
	case s.frames <- f:
	default:
	}
}

// Stop halts capture.
func (s *Source) Stop() {
	s.running.Store(false)
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
}

// Close releases all resources.
func (s *Source) Close() {
	s.Stop()
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
}
