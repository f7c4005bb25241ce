// Package audio defines the sample formats, codec helpers, and device
// interfaces for the Nami voice pipeline.
//
// All in-process audio is carried as normalized float32 samples in the range
// [-1, 1]. The wire format of the live protocol is 16-bit little-endian PCM,
// base64-framed, fixed at 16 kHz mono upstream (microphone → model) and
// 24 kHz mono downstream (model → speaker). Conversion between the two
// representations happens exactly once per direction, in [EncodeChunk] and
// [DecodeDelta].
//
// Device access goes through the [Input] and [Sink] interfaces so that the
// capture pipeline and the playback scheduler can be driven by fake devices
// in tests. The real implementations live in the audio/portaudio subpackage.
package audio

import "time"

const (
	// CaptureRate is the sample rate of microphone input sent to the model.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of synthesised audio received from
	// the model.
	PlaybackRate = 24000

	// CaptureFrameSize is the number of samples delivered per capture
	// callback.
	CaptureFrameSize = 4096

	// CaptureMIMEType tags outbound media chunks with their PCM rate.
	CaptureMIMEType = "audio/pcm;rate=16000"
)

// Chunk is one encoded frame of microphone audio ready for transmission:
// base64-framed 16-bit PCM plus the mime tag declaring its sample rate.
// Chunks are transient — produced by the capture pipeline, handed to the
// session channel, sent, and discarded.
type Chunk struct {
	// MIMEType declares the encoding and sample rate, e.g. "audio/pcm;rate=16000".
	MIMEType string

	// Data is the standard-base64 encoding of the little-endian int16 PCM.
	Data string
}

// Frame is a single capture callback's worth of normalized samples.
// Frames are ephemeral: produced once per callback, consumed immediately
// into a [Chunk], then discarded.
type Frame struct {
	// Samples holds normalized values in [-1, 1] at [CaptureRate].
	Samples []float32

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}
