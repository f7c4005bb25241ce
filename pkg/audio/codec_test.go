package audio_test

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/nami-os/nami/pkg/audio"
)

func TestFloat32ToPCM16_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.25, -1, 1}
	pcm := audio.Float32ToPCM16(in)
	if len(pcm) != len(in)*2 {
		t.Fatalf("pcm length = %d; want %d", len(pcm), len(in)*2)
	}

	out, err := audio.PCM16ToFloat32(pcm)
	if err != nil {
		t.Fatalf("PCM16ToFloat32: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("sample count = %d; want %d", len(out), len(in))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32767 {
			t.Errorf("sample %d: got %f, want %f (±1 LSB)", i, out[i], in[i])
		}
	}
}

func TestFloat32ToPCM16_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	pcm := audio.Float32ToPCM16([]float32{2.0, -3.0})
	out, err := audio.PCM16ToFloat32(pcm)
	if err != nil {
		t.Fatalf("PCM16ToFloat32: %v", err)
	}
	if out[0] < 0.99 {
		t.Errorf("over-range sample clamped to %f; want ~1", out[0])
	}
	if out[1] > -0.99 {
		t.Errorf("under-range sample clamped to %f; want ~-1", out[1])
	}
}

func TestPCM16ToFloat32_OddByteCount(t *testing.T) {
	t.Parallel()

	if _, err := audio.PCM16ToFloat32([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for odd byte count")
	}
}

func TestEncodeChunk_TagsAndEncodes(t *testing.T) {
	t.Parallel()

	c := audio.EncodeChunk([]float32{0, 0})
	if c.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q; want audio/pcm;rate=16000", c.MIMEType)
	}
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if len(raw) != 4 {
		t.Errorf("decoded payload = %d bytes; want 4", len(raw))
	}
}

func TestDecodeDelta_Duration(t *testing.T) {
	t.Parallel()

	// 24000 samples at 24 kHz is exactly one second.
	pcm := make([]byte, 24000*2)
	samples, dur, err := audio.DecodeDelta(pcm)
	if err != nil {
		t.Fatalf("DecodeDelta: %v", err)
	}
	if len(samples) != 24000 {
		t.Errorf("samples = %d; want 24000", len(samples))
	}
	if dur != time.Second {
		t.Errorf("duration = %v; want 1s", dur)
	}
}

func TestDecodeDelta_Malformed(t *testing.T) {
	t.Parallel()

	if _, _, err := audio.DecodeDelta([]byte{0xFF}); err == nil {
		t.Fatal("expected error for malformed delta")
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []float32{0, 0, 0, 0}, 0},
		{"mixed signs", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"quiet", []float32{0.004, -0.004}, 0.004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.Level(tt.samples)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Level = %f; want %f", got, tt.want)
			}
		})
	}
}

func TestSamplesDuration(t *testing.T) {
	t.Parallel()

	if got := audio.SamplesDuration(12000, 24000); got != 500*time.Millisecond {
		t.Errorf("12000 samples @24kHz = %v; want 500ms", got)
	}
	if got := audio.SamplesDuration(100, 0); got != 0 {
		t.Errorf("zero rate = %v; want 0", got)
	}
}
