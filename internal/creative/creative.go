// Package creative implements the Creative Studio: prompt-driven image and
// video generation with an in-memory gallery of produced assets.
package creative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nami-os/nami/internal/observe"
	"github.com/nami-os/nami/internal/resilience"
)

// Kind distinguishes gallery asset types.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Asset is one generated artifact.
type Asset struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Prompt    string    `json:"prompt"`
	MIMEType  string    `json:"mimeType"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrEmptyPrompt rejects generation requests without a prompt.
var ErrEmptyPrompt = errors.New("creative: empty prompt")

// ErrAssetNotFound is returned by Gallery lookups for unknown IDs.
var ErrAssetNotFound = errors.New("creative: asset not found")

// Generator produces media from prompts. The production implementation is
// [GenAIGenerator]; tests substitute fakes.
type Generator interface {
	// GenerateImage returns the image bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)

	// GenerateVideo returns the video bytes and their MIME type. The call
	// blocks across operation polling and can take minutes; it must respect
	// ctx cancellation.
	GenerateVideo(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// Studio coordinates generation and retention. Safe for concurrent use.
type Studio struct {
	gen     Generator
	metrics *observe.Metrics
	logger  *slog.Logger
	breaker *resilience.Breaker

	mu     sync.Mutex
	assets map[string]Asset
	order  []string // asset IDs, newest first
	cap    int
}

// DefaultGalleryCapacity bounds the retained gallery.
const DefaultGalleryCapacity = 32

// Option is a functional option for configuring a Studio.
type Option func(*Studio)

// WithGalleryCapacity overrides the gallery bound.
func WithGalleryCapacity(n int) Option {
	return func(s *Studio) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithLogger sets the studio's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Studio) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewStudio creates a studio over the given generator.
func NewStudio(gen Generator, opts ...Option) *Studio {
	s := &Studio{
		gen:    gen,
		logger: slog.Default(),
		assets: make(map[string]Asset),
		cap:    DefaultGalleryCapacity,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Name:   "creative",
		Logger: s.logger,
	})
	return s
}

// GenerateImage produces an image and stores it in the gallery.
func (s *Studio) GenerateImage(ctx context.Context, prompt string) (Asset, error) {
	return s.generate(ctx, KindImage, prompt, s.gen.GenerateImage)
}

// GenerateVideo produces a video and stores it in the gallery.
func (s *Studio) GenerateVideo(ctx context.Context, prompt string) (Asset, error) {
	return s.generate(ctx, KindVideo, prompt, s.gen.GenerateVideo)
}

func (s *Studio) generate(
	ctx context.Context,
	kind Kind,
	prompt string,
	run func(context.Context, string) ([]byte, string, error),
) (Asset, error) {
	if prompt == "" {
		return Asset{}, ErrEmptyPrompt
	}

	var (
		data     []byte
		mimeType string
	)
	start := time.Now()
	err := s.breaker.Execute(func() error {
		var runErr error
		data, mimeType, runErr = run(ctx, prompt)
		return runErr
	})
	s.metrics.CreativeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("generation failed", "kind", kind, "error", err)
		return Asset{}, fmt.Errorf("creative: generate %s: %w", kind, err)
	}

	asset := Asset{
		ID:        uuid.NewString(),
		Kind:      kind,
		Prompt:    prompt,
		MIMEType:  mimeType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.assets[asset.ID] = asset
	s.order = append([]string{asset.ID}, s.order...)
	for len(s.order) > s.cap {
		last := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.assets, last)
	}
	s.mu.Unlock()

	s.logger.Info("asset generated", "kind", kind, "asset_id", asset.ID, "bytes", len(data))
	return asset, nil
}

// Asset returns the stored asset with the given ID.
func (s *Studio) Asset(id string) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// Gallery returns the retained assets, newest first, without payload bytes.
func (s *Studio) Gallery() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Asset, 0, len(s.order))
	for _, id := range s.order {
		a := s.assets[id]
		a.Data = nil
		out = append(out, a)
	}
	return out
}
