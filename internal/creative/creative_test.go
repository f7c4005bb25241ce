package creative_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/nami-os/nami/internal/creative"
	"github.com/nami-os/nami/internal/observe"
	"github.com/nami-os/nami/internal/resilience"
)

// fakeGenerator returns canned payloads.
type fakeGenerator struct {
	imageErr error
	videoErr error
	calls    int
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	f.calls++
	if f.imageErr != nil {
		return nil, "", f.imageErr
	}
	return []byte("png:" + prompt), "image/png", nil
}

func (f *fakeGenerator) GenerateVideo(_ context.Context, prompt string) ([]byte, string, error) {
	f.calls++
	if f.videoErr != nil {
		return nil, "", f.videoErr
	}
	return []byte("mp4:" + prompt), "video/mp4", nil
}

func newStudio(t *testing.T, gen creative.Generator, opts ...creative.Option) *creative.Studio {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	opts = append(opts,
		creative.WithLogger(slog.New(slog.DiscardHandler)),
		creative.WithMetrics(m),
	)
	return creative.NewStudio(gen, opts...)
}

func TestGenerateImage_StoresAsset(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{})
	asset, err := s.GenerateImage(context.Background(), "a lighthouse at dusk")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if asset.ID == "" {
		t.Error("asset ID should be assigned")
	}
	if asset.Kind != creative.KindImage {
		t.Errorf("kind = %q; want image", asset.Kind)
	}
	if asset.MIMEType != "image/png" {
		t.Errorf("mime = %q; want image/png", asset.MIMEType)
	}

	stored, err := s.Asset(asset.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if string(stored.Data) != "png:a lighthouse at dusk" {
		t.Errorf("stored data = %q", stored.Data)
	}
}

func TestGenerateVideo_StoresAsset(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{})
	asset, err := s.GenerateVideo(context.Background(), "waves")
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if asset.Kind != creative.KindVideo || asset.MIMEType != "video/mp4" {
		t.Errorf("asset = %+v; want video/mp4", asset)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	s := newStudio(t, gen)

	if _, err := s.GenerateImage(context.Background(), ""); !errors.Is(err, creative.ErrEmptyPrompt) {
		t.Errorf("err = %v; want ErrEmptyPrompt", err)
	}
	if gen.calls != 0 {
		t.Error("empty prompt should never reach the generator")
	}
}

func TestGenerate_GeneratorError(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{imageErr: errors.New("quota exceeded")})
	if _, err := s.GenerateImage(context.Background(), "x"); err == nil {
		t.Fatal("generator error should propagate")
	}
	if got := len(s.Gallery()); got != 0 {
		t.Errorf("gallery has %d assets after failure; want 0", got)
	}
}

func TestGallery_NewestFirstWithoutPayload(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{})
	first, _ := s.GenerateImage(context.Background(), "one")
	second, _ := s.GenerateVideo(context.Background(), "two")

	gallery := s.Gallery()
	if len(gallery) != 2 {
		t.Fatalf("gallery has %d assets; want 2", len(gallery))
	}
	if gallery[0].ID != second.ID || gallery[1].ID != first.ID {
		t.Error("gallery should list newest first")
	}
	if gallery[0].Data != nil {
		t.Error("gallery listings should omit payload bytes")
	}
}

func TestGallery_EvictsOldest(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{}, creative.WithGalleryCapacity(2))
	old, _ := s.GenerateImage(context.Background(), "p0")
	for i := 1; i < 3; i++ {
		_, _ = s.GenerateImage(context.Background(), fmt.Sprintf("p%d", i))
	}

	if got := len(s.Gallery()); got != 2 {
		t.Errorf("gallery has %d assets; want 2", got)
	}
	if _, err := s.Asset(old.ID); !errors.Is(err, creative.ErrAssetNotFound) {
		t.Errorf("evicted asset lookup err = %v; want ErrAssetNotFound", err)
	}
}

func TestAsset_Unknown(t *testing.T) {
	t.Parallel()

	s := newStudio(t, &fakeGenerator{})
	if _, err := s.Asset("nope"); !errors.Is(err, creative.ErrAssetNotFound) {
		t.Errorf("err = %v; want ErrAssetNotFound", err)
	}
}

func TestGenerate_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{imageErr: errors.New("upstream down")}
	s := newStudio(t, gen)

	for range 5 {
		if _, err := s.GenerateImage(context.Background(), "anything"); err == nil {
			t.Fatal("expected generation error")
		}
	}
	callsBefore := gen.calls

	_, err := s.GenerateImage(context.Background(), "anything")
	if !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("error = %v; want circuit open", err)
	}
	if gen.calls != callsBefore {
		t.Error("open breaker should not reach the generator")
	}
}
