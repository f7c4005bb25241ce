// Package capture runs the microphone pipeline: it pulls fixed-size frames
// from an audio input, detects whether the user is talking, and hands
// encoded chunks to the session for transmission.
package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nami-os/nami/pkg/audio"
)

// DefaultTalkThreshold is the mean absolute sample level above which a frame
// counts as speech.
const DefaultTalkThreshold = 0.01

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithTalkThreshold overrides the speech detection threshold.
func WithTalkThreshold(threshold float64) Option {
	return func(p *Pipeline) {
		if threshold > 0 {
			p.threshold = threshold
		}
	}
}

// WithTalkingFunc registers a callback invoked on every talking-state edge.
// The callback runs on the capture goroutine and must return quickly.
func WithTalkingFunc(fn func(talking bool)) Option {
	return func(p *Pipeline) { p.onTalking = fn }
}

// WithLogger sets the pipeline's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline captures microphone frames and emits encoded chunks. While muted,
// frames are dropped without being encoded and the talking state reads false.
// Safe for concurrent use.
type Pipeline struct {
	input     audio.Input
	emit      func(audio.Chunk)
	onTalking func(bool)
	threshold float64
	logger    *slog.Logger

	muted   atomic.Bool
	talking atomic.Bool

	mu      sync.Mutex
	running bool
}

// New creates a pipeline reading from input. Each non-muted frame is encoded
// and passed to emit on the capture goroutine.
func New(input audio.Input, emit func(audio.Chunk), opts ...Option) *Pipeline {
	p := &Pipeline{
		input:     input,
		emit:      emit,
		threshold: DefaultTalkThreshold,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start opens the input device and begins emitting chunks. Device failures
// surface as errors wrapping [audio.ErrDeviceUnavailable].
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("capture: already running")
	}
	if err := p.input.Start(p.handleFrame); err != nil {
		return fmt.Errorf("capture: start input: %w", err)
	}
	p.running = true
	p.logger.Debug("capture started", "threshold", p.threshold)
	return nil
}

// Stop closes the input device. Idempotent.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	p.setTalking(false)
	if err := p.input.Stop(); err != nil {
		return fmt.Errorf("capture: stop input: %w", err)
	}
	return nil
}

// SetMuted toggles the mute state. Muting takes effect on the next frame.
func (p *Pipeline) SetMuted(muted bool) {
	p.muted.Store(muted)
	if muted {
		p.setTalking(false)
	}
}

// Muted reports the current mute state.
func (p *Pipeline) Muted() bool { return p.muted.Load() }

// Talking reports whether the most recent non-muted frame exceeded the
// speech threshold.
func (p *Pipeline) Talking() bool { return p.talking.Load() }

func (p *Pipeline) handleFrame(frame audio.Frame) {
	if p.muted.Load() {
		return
	}
	p.setTalking(audio.Level(frame.Samples) > p.threshold)
	p.emit(audio.EncodeChunk(frame.Samples))
}

// setTalking updates the flag and fires the callback on edges only.
func (p *Pipeline) setTalking(talking bool) {
	if p.talking.Swap(talking) != talking && p.onTalking != nil {
		p.onTalking(talking)
	}
}
