package audio

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// Float32ToPCM16 converts normalized float32 samples to little-endian int16
// PCM bytes. Values outside [-1, 1] are clamped before quantisation.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat32 converts little-endian int16 PCM bytes to normalized float32
// samples. Returns an error if the byte count is odd (corrupt int16 data).
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("audio: odd byte count %d in PCM16 data", len(pcm))
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// EncodeChunk converts one capture frame into the wire encoding expected by
// the live protocol: base64-framed 16-bit PCM tagged with [CaptureMIMEType].
func EncodeChunk(samples []float32) Chunk {
	return Chunk{
		MIMEType: CaptureMIMEType,
		Data:     base64.StdEncoding.EncodeToString(Float32ToPCM16(samples)),
	}
}

// DecodeDelta converts an inbound PCM payload (raw bytes, base64 already
// stripped by the transport) into playback samples and their duration at
// [PlaybackRate]. A malformed payload yields an error; the caller is expected
// to drop that one delta and continue.
func DecodeDelta(pcm []byte) (samples []float32, duration time.Duration, err error) {
	samples, err = PCM16ToFloat32(pcm)
	if err != nil {
		return nil, 0, err
	}
	duration = SamplesDuration(len(samples), PlaybackRate)
	return samples, duration, nil
}

// SamplesDuration returns the play time of n mono samples at the given rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Level computes the mean absolute amplitude of a frame. The capture
// pipeline compares it against a fixed threshold to publish the
// talking indicator.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}
