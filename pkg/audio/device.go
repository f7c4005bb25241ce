package audio

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when an audio device cannot be acquired.
// Acquiring the microphone is the first step of session establishment, so
// this error means the session never left the Idle state.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// FrameHandler receives one capture frame per device callback. It runs on
// the device's callback cadence and must return quickly.
type FrameHandler func(frame Frame)

// Input is a microphone capture device delivering fixed-size frames of
// normalized samples at [CaptureRate].
//
// Implementations must be safe for concurrent use.
type Input interface {
	// Start acquires the device and begins delivering frames of
	// [CaptureFrameSize] samples to h. Returns [ErrDeviceUnavailable]
	// (possibly wrapped) if the device cannot be acquired. Calling Start
	// on a started device is an error.
	Start(h FrameHandler) error

	// Stop stops frame delivery and releases the device. Safe to call more
	// than once; subsequent calls are no-ops and return nil.
	Stop() error
}

// Voice is a handle to one scheduled playback buffer. Stopping a voice
// silences it immediately; its completion callback does not fire after Stop.
type Voice interface {
	Stop()
}

// Sink is a speaker output clocked at [PlaybackRate]. It mirrors the
// scheduling surface the playback scheduler needs: a monotonic device clock
// and start-at-time buffer playback with completion callbacks.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Now returns the current position of the output device clock. The
	// clock starts at zero when the sink is opened and never goes backwards.
	Now() time.Duration

	// PlayAt schedules samples to start playing at the given device-clock
	// position, which must not be in the past (callers clamp with Now).
	// done is invoked exactly once when the buffer finishes playing
	// naturally; it is not invoked if the returned Voice is stopped first.
	PlayAt(samples []float32, start time.Duration, done func()) (Voice, error)

	// Close releases the output device. Voices still playing are stopped
	// without their completion callbacks firing.
	Close() error
}
