package playback_test

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nami-os/nami/internal/playback"
	"github.com/nami-os/nami/pkg/audio"
)

// fakeSink is an audio.Sink with a hand-advanced clock. Tests inspect the
// scheduled voices and complete them manually. When playGate is set, PlayAt
// records the voice and then blocks until the gate closes.
type fakeSink struct {
	mu       sync.Mutex
	now      time.Duration
	playGate chan struct{}
	voices   []*fakeVoice
}

type fakeVoice struct {
	start   time.Duration
	samples int
	done    func()
	stopped bool
}

func (f *fakeSink) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSink) advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

func (f *fakeSink) PlayAt(samples []float32, start time.Duration, done func()) (audio.Voice, error) {
	v := &fakeVoice{start: start, samples: len(samples), done: done}
	f.mu.Lock()
	f.voices = append(f.voices, v)
	f.mu.Unlock()
	if f.playGate != nil {
		<-f.playGate
	}
	return v, nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) scheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.voices)
}

func (v *fakeVoice) Stop() { v.stopped = true }

// finish simulates natural end of playback.
func (v *fakeVoice) finish() {
	if v.done != nil {
		v.done()
	}
}

// pcmOf returns a PCM delta of the given duration at the playback rate.
func pcmOf(d time.Duration) []byte {
	samples := int(d * audio.PlaybackRate / time.Second)
	return make([]byte, samples*2)
}

func TestEnqueue_SplicesConsecutiveDeltas(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	if err := s.Enqueue(pcmOf(500 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(pcmOf(300 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if len(sink.voices) != 2 {
		t.Fatalf("scheduled %d voices; want 2", len(sink.voices))
	}
	if got := sink.voices[0].start; got != 0 {
		t.Errorf("first delta start = %v; want 0", got)
	}
	if got := sink.voices[1].start; got != 500*time.Millisecond {
		t.Errorf("second delta start = %v; want 500ms", got)
	}
	if got := s.Cursor(); got != 800*time.Millisecond {
		t.Errorf("cursor = %v; want 800ms", got)
	}
}

func TestEnqueue_CursorNeverBehindClock(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	if err := s.Enqueue(pcmOf(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The stream stalls; the clock runs past the cursor.
	sink.advance(1 * time.Second)

	if err := s.Enqueue(pcmOf(200 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := sink.voices[1].start; got != 1*time.Second {
		t.Errorf("late delta start = %v; want 1s (clamped to now)", got)
	}
	if got := s.Cursor(); got != 1200*time.Millisecond {
		t.Errorf("cursor = %v; want 1.2s", got)
	}
}

func TestEnqueue_ConcurrentCallersGetDistinctSlots(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	sink := &fakeSink{playGate: gate}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Enqueue(pcmOf(100 * time.Millisecond)); err != nil {
				t.Errorf("Enqueue: %v", err)
			}
		}()
	}

	// Hold both calls inside PlayAt so neither has returned when the other
	// picks its slot.
	deadline := time.Now().Add(2 * time.Second)
	for sink.scheduledCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := sink.scheduledCount(); got != 2 {
		t.Fatalf("scheduled %d voices; want 2", got)
	}
	close(gate)
	wg.Wait()

	starts := []time.Duration{sink.voices[0].start, sink.voices[1].start}
	if starts[0] > starts[1] {
		starts[0], starts[1] = starts[1], starts[0]
	}
	if starts[0] != 0 || starts[1] != 100*time.Millisecond {
		t.Errorf("starts = %v; want back-to-back slots at 0 and 100ms", starts)
	}
	if got := s.Cursor(); got != 200*time.Millisecond {
		t.Errorf("cursor = %v; want 200ms", got)
	}
}

func TestEnqueue_MalformedDelta(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	err := s.Enqueue([]byte{0x01, 0x02, 0x03}) // odd length
	if !errors.Is(err, playback.ErrDecode) {
		t.Fatalf("err = %v; want ErrDecode", err)
	}
	if len(sink.voices) != 0 {
		t.Error("malformed delta should not be scheduled")
	}
	if got := s.Cursor(); got != 0 {
		t.Errorf("cursor = %v; want 0 after dropped delta", got)
	}

	// The stream recovers with the next well-formed delta.
	if err := s.Enqueue(pcmOf(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue after drop: %v", err)
	}
	if len(sink.voices) != 1 {
		t.Error("well-formed delta after a drop should be scheduled")
	}
}

func TestEnqueue_EmptyDelta(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	if err := s.Enqueue(nil); err != nil {
		t.Fatalf("Enqueue(nil): %v", err)
	}
	if len(sink.voices) != 0 || s.Cursor() != 0 {
		t.Error("empty delta should be a no-op")
	}
}

func TestFlush_StopsVoicesAndRewindsCursor(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	_ = s.Enqueue(pcmOf(500 * time.Millisecond))
	_ = s.Enqueue(pcmOf(500 * time.Millisecond))

	s.Flush()

	for i, v := range sink.voices {
		if !v.stopped {
			t.Errorf("voice %d not stopped by flush", i)
		}
	}
	if got := s.Cursor(); got != 0 {
		t.Errorf("cursor after flush = %v; want 0", got)
	}
	if s.Speaking() {
		t.Error("Speaking() after flush should be false")
	}

	// The next delta starts immediately on the rewound cursor.
	sink.advance(250 * time.Millisecond)
	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	if got := sink.voices[2].start; got != 250*time.Millisecond {
		t.Errorf("post-flush delta start = %v; want 250ms", got)
	}
}

func TestFlush_Idempotent(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	var edges []bool
	s := playback.New(sink,
		playback.WithLogger(slog.New(slog.DiscardHandler)),
		playback.WithSpeakingFunc(func(speaking bool) { edges = append(edges, speaking) }),
	)

	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	s.Flush()
	s.Flush()
	s.Flush()

	// One speaking edge up, one down; repeated flushes stay silent.
	if len(edges) != 2 || edges[0] != true || edges[1] != false {
		t.Errorf("speaking edges = %v; want [true false]", edges)
	}
}

func TestSpeaking_EdgesOnNaturalEnd(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	var edges []bool
	s := playback.New(sink,
		playback.WithLogger(slog.New(slog.DiscardHandler)),
		playback.WithSpeakingFunc(func(speaking bool) { edges = append(edges, speaking) }),
	)

	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	_ = s.Enqueue(pcmOf(100 * time.Millisecond))

	if !s.Speaking() {
		t.Fatal("Speaking() should be true with scheduled voices")
	}

	sink.voices[0].finish()
	if !s.Speaking() {
		t.Error("Speaking() should stay true while a voice remains")
	}
	sink.voices[1].finish()
	if s.Speaking() {
		t.Error("Speaking() should be false after the last voice ends")
	}

	if len(edges) != 2 || edges[0] != true || edges[1] != false {
		t.Errorf("speaking edges = %v; want [true false]", edges)
	}
}

func TestFlush_StaleDoneCallbackIgnored(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	var edges []bool
	s := playback.New(sink,
		playback.WithLogger(slog.New(slog.DiscardHandler)),
		playback.WithSpeakingFunc(func(speaking bool) { edges = append(edges, speaking) }),
	)

	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	stale := sink.voices[0]
	s.Flush()

	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	edgesBefore := len(edges)

	// A done callback from the flushed generation must not end the new one.
	stale.finish()
	if s.Speaking() != true {
		t.Error("stale done callback ended the current generation")
	}
	if len(edges) != edgesBefore {
		t.Errorf("stale done callback fired speaking edges: %v", edges)
	}
}

func TestClose_RejectsFurtherDeltas(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	s := playback.New(sink, playback.WithLogger(slog.New(slog.DiscardHandler)))

	_ = s.Enqueue(pcmOf(100 * time.Millisecond))
	s.Close()

	if !sink.voices[0].stopped {
		t.Error("Close should stop playing voices")
	}
	if err := s.Enqueue(pcmOf(100 * time.Millisecond)); err == nil {
		t.Error("Enqueue after Close should fail")
	}
}
