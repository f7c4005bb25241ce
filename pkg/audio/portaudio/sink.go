package portaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/nami-os/nami/pkg/audio"
)

// Compile-time assertion that Sink satisfies the audio.Sink interface.
var _ audio.Sink = (*Sink)(nil)

// sinkBufferFrames is the PortAudio output callback size. Small enough to
// keep scheduling granularity below perceptible jitter (~10 ms at 24 kHz).
const sinkBufferFrames = 256

// Sink is a PortAudio-backed speaker [audio.Sink]. It runs a single mono
// output stream at [audio.PlaybackRate] and mixes all scheduled voices in
// the stream callback. The device clock is the count of frames rendered
// since the sink was opened, which makes Now monotonic and glitch-free even
// when the callback cadence wobbles.
type Sink struct {
	stream *portaudio.Stream

	mu       sync.Mutex
	elapsed  int64 // frames rendered since open
	voices   map[*voice]struct{}
	closed   bool
}

type voice struct {
	samples []float32
	startAt int64 // absolute frame index on the device clock
	pos     int   // next sample to render
	done    func()
	stopped bool
	sink    *Sink
}

// Stop silences the voice immediately. Its completion callback will not fire.
func (v *voice) Stop() {
	v.sink.mu.Lock()
	defer v.sink.mu.Unlock()
	if v.stopped {
		return
	}
	v.stopped = true
	delete(v.sink.voices, v)
}

// NewSink opens the default output device and starts the render stream.
func NewSink() (*Sink, error) {
	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	s := &Sink{voices: make(map[*voice]struct{})}
	stream, err := portaudio.OpenDefaultStream(
		0, 1, float64(audio.PlaybackRate), sinkBufferFrames, s.render,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: open output stream: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: start output stream: %v", audio.ErrDeviceUnavailable, err)
	}
	s.stream = stream
	return s, nil
}

// Now returns the device clock position: frames rendered since open.
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SamplesDuration(int(s.elapsed), audio.PlaybackRate)
}

// PlayAt schedules samples to begin at the given device-clock position.
// Starts in the past are clamped to "now" inside the render callback, so a
// marginally late schedule plays immediately rather than being dropped.
func (s *Sink) PlayAt(samples []float32, start time.Duration, done func()) (audio.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("portaudio: sink closed")
	}

	v := &voice{
		samples: samples,
		startAt: int64(start) * int64(audio.PlaybackRate) / int64(time.Second),
		done:    done,
		sink:    s,
	}
	s.voices[v] = struct{}{}
	return v, nil
}

// Close stops the render stream and releases the output device. Voices still
// playing are dropped without their completion callbacks firing.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for v := range s.voices {
		v.stopped = true
	}
	s.voices = make(map[*voice]struct{})
	s.mu.Unlock()

	if err := s.stream.Stop(); err != nil {
		_ = s.stream.Close()
		return fmt.Errorf("portaudio: stop sink: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close sink: %w", err)
	}
	return nil
}

// render is the PortAudio output callback. It mixes every active voice into
// out at its scheduled offset and advances the device clock. Completion
// callbacks run on a fresh goroutine so a slow consumer cannot stall the
// audio thread.
func (s *Sink) render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	s.mu.Lock()
	base := s.elapsed
	var finished []*voice
	for v := range s.voices {
		// Clamp late starts to the beginning of this render quantum.
		if v.startAt < base && v.pos == 0 {
			v.startAt = base
		}
		for i := range out {
			abs := base + int64(i)
			if abs < v.startAt {
				continue
			}
			if v.pos >= len(v.samples) {
				break
			}
			out[i] += v.samples[v.pos]
			v.pos++
		}
		if v.pos >= len(v.samples) {
			finished = append(finished, v)
			delete(s.voices, v)
		}
	}
	s.elapsed += int64(len(out))
	s.mu.Unlock()

	for _, v := range finished {
		if v.done != nil {
			go v.done()
		}
	}

	// Clamp the mix to [-1, 1]; sequential scheduling means overlap is rare
	// but a flush racing a late enqueue can briefly stack voices.
	for i, sample := range out {
		if sample > 1 {
			out[i] = 1
		} else if sample < -1 {
			out[i] = -1
		}
	}
}
