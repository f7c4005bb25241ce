// Package portaudio provides the real microphone [audio.Input] and speaker
// [audio.Sink] implementations on top of PortAudio.
//
// The underlying PortAudio library is initialised lazily on first device
// acquisition and held for the lifetime of the process. The physical input
// and output devices are singletons: at most one capture stream and one
// playback stream are expected to exist at a time.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/nami-os/nami/pkg/audio"
)

var (
	initOnce sync.Once
	initErr  error
)

// ensureInit initialises the PortAudio host API once per process.
func ensureInit() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	if initErr != nil {
		return fmt.Errorf("portaudio: initialize: %w", initErr)
	}
	return nil
}
