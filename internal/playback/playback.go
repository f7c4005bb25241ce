// Package playback schedules synthesised speech for gapless output.
//
// Audio arrives as a stream of PCM deltas with no timing information. The
// scheduler maintains a write cursor on the sink's clock: each delta starts
// at the cursor (or immediately, if the cursor has fallen behind the clock)
// and advances the cursor by its own duration, so consecutive deltas splice
// seamlessly. A barge-in flush stops every playing voice and rewinds the
// cursor so the next delta starts immediately.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nami-os/nami/pkg/audio"
)

// ErrDecode reports a malformed audio delta. The delta is dropped; playback
// continues with the next one.
var ErrDecode = errors.New("playback: malformed audio delta")

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithSpeakingFunc registers a callback invoked on every speaking-state
// edge: true when the first voice starts, false when the last one ends or
// playback is flushed.
func WithSpeakingFunc(fn func(speaking bool)) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler splices audio deltas into a continuous output stream. Safe for
// concurrent use.
type Scheduler struct {
	sink       audio.Sink
	onSpeaking func(bool)
	logger     *slog.Logger

	mu         sync.Mutex
	cursor     time.Duration
	generation uint64
	active     map[*voiceRef]struct{}
	closed     bool
}

type voiceRef struct {
	voice audio.Voice
}

// New creates a scheduler writing to sink.
func New(sink audio.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		logger: slog.Default(),
		active: make(map[*voiceRef]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue decodes one PCM delta and schedules it at the cursor. Malformed
// deltas are dropped with an error wrapping [ErrDecode]; the cursor is left
// untouched so later deltas are unaffected.
func (s *Scheduler) Enqueue(pcm []byte) error {
	samples, duration, err := audio.DecodeDelta(pcm)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("playback: scheduler closed")
	}

	startAt := s.cursor
	if now := s.sink.Now(); now > startAt {
		startAt = now
	}
	// Reserve the slot before releasing the lock so a concurrent Enqueue
	// cannot schedule an overlapping start.
	s.cursor = startAt + duration

	ref := &voiceRef{}
	gen := s.generation
	wasIdle := len(s.active) == 0
	s.active[ref] = struct{}{}
	s.mu.Unlock()

	voice, err := s.sink.PlayAt(samples, startAt, func() { s.voiceEnded(ref, gen) })
	if err != nil {
		s.mu.Lock()
		delete(s.active, ref)
		// Give the reservation back unless a later delta already built on it.
		if s.generation == gen && s.cursor == startAt+duration {
			s.cursor = startAt
		}
		s.mu.Unlock()
		return fmt.Errorf("playback: schedule: %w", err)
	}

	s.mu.Lock()
	// A flush may have raced the PlayAt call; if so this voice belongs to a
	// dead generation and must not be resurrected.
	if s.generation != gen || s.closed {
		s.mu.Unlock()
		voice.Stop()
		return nil
	}
	ref.voice = voice
	s.mu.Unlock()

	if wasIdle && s.onSpeaking != nil {
		s.onSpeaking(true)
	}
	return nil
}

// voiceEnded removes a finished voice; stale generations are already gone.
func (s *Scheduler) voiceEnded(ref *voiceRef, gen uint64) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	delete(s.active, ref)
	idle := len(s.active) == 0
	s.mu.Unlock()

	if idle && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// Flush stops every playing voice and rewinds the cursor to zero. Idempotent;
// flushing an idle scheduler is a no-op apart from the cursor reset.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	voices := make([]audio.Voice, 0, len(s.active))
	for ref := range s.active {
		if ref.voice != nil {
			voices = append(voices, ref.voice)
		}
	}
	hadActive := len(s.active) > 0
	s.active = make(map[*voiceRef]struct{})
	s.cursor = 0
	s.generation++
	s.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}

	if hadActive {
		s.logger.Debug("playback flushed", "voices", len(voices))
		if s.onSpeaking != nil {
			s.onSpeaking(false)
		}
	}
}

// Speaking reports whether any voice is currently scheduled or playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Cursor returns the current write position on the sink's clock.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close flushes pending audio and rejects further deltas.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}
