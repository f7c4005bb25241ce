package portaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/nami-os/nami/pkg/audio"
)

// Compile-time assertion that Capture satisfies the audio.Input interface.
var _ audio.Input = (*Capture)(nil)

// Capture is a PortAudio-backed microphone [audio.Input]. It opens the
// system's default input device as a mono stream at [audio.CaptureRate] and
// delivers frames of [audio.CaptureFrameSize] samples on the device's
// callback cadence.
type Capture struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	started time.Time
	running bool
}

// NewCapture returns an unstarted Capture. The device is not touched until
// [Capture.Start].
func NewCapture() *Capture {
	return &Capture{}
}

// Start acquires the default input device and begins delivering frames to h.
// A device that cannot be opened surfaces as [audio.ErrDeviceUnavailable]
// so callers can keep the session in its pre-connect state.
func (c *Capture) Start(h audio.FrameHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("portaudio: capture already started")
	}
	if err := ensureInit(); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	started := time.Now()
	stream, err := portaudio.OpenDefaultStream(
		1, 0, float64(audio.CaptureRate), audio.CaptureFrameSize,
		func(in []float32) {
			frame := audio.Frame{
				Samples:   in,
				Timestamp: time.Since(started),
			}
			h(frame)
		},
	)
	if err != nil {
		return fmt.Errorf("%w: open input stream: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: start input stream: %v", audio.ErrDeviceUnavailable, err)
	}

	c.stream = stream
	c.started = started
	c.running = true
	return nil
}

// Stop halts frame delivery and releases the input device. Idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if err := c.stream.Stop(); err != nil {
		_ = c.stream.Close()
		return fmt.Errorf("portaudio: stop capture: %w", err)
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close capture: %w", err)
	}
	c.stream = nil
	return nil
}
