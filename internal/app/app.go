// Package app wires all Nami subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP control plane until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithLiveProvider,
// WithInput, WithSink, WithGenerator). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nami-os/nami/internal/config"
	"github.com/nami-os/nami/internal/creative"
	"github.com/nami-os/nami/internal/notify"
	"github.com/nami-os/nami/internal/observe"
	"github.com/nami-os/nami/internal/persona"
	"github.com/nami-os/nami/internal/session"
	"github.com/nami-os/nami/internal/tools"
	"github.com/nami-os/nami/pkg/audio"
	"github.com/nami-os/nami/pkg/audio/portaudio"
	"github.com/nami-os/nami/pkg/live"
	"github.com/nami-os/nami/pkg/live/gemini"
)

// noticeCapacity bounds the in-memory notification feed served by the API.
const noticeCapacity = 50

// App owns all subsystem lifetimes and exposes the voice channel plus the
// creative studio over an HTTP control plane.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics  *observe.Metrics
	personas *persona.Registry
	notices  *notify.Ring
	studio   *creative.Studio
	channel  *session.Channel
	server   *http.Server

	// Injected or constructed in New.
	provider  live.Provider
	input     audio.Input
	sink      audio.Sink
	generator creative.Generator

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLiveProvider injects a live provider instead of constructing the
// Gemini client from config.
func WithLiveProvider(p live.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithInput injects a microphone input instead of opening a PortAudio device.
func WithInput(in audio.Input) Option {
	return func(a *App) { a.input = in }
}

// WithSink injects a playback sink instead of opening a PortAudio device.
func WithSink(s audio.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithGenerator injects a creative generator instead of constructing the
// GenAI client from config.
func WithGenerator(g creative.Generator) Option {
	return func(a *App) { a.generator = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem; everything not injected is built
// from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.metrics = observe.DefaultMetrics()
	a.notices = notify.NewRing(a.logger, noticeCapacity)
	a.personas = persona.NewRegistry(configPersonas(cfg.Personas))

	if err := a.initDevices(); err != nil {
		return nil, fmt.Errorf("app: init audio devices: %w", err)
	}
	if err := a.initCreative(ctx); err != nil {
		return nil, fmt.Errorf("app: init creative studio: %w", err)
	}
	a.initProvider()

	if err := a.initChannel(); err != nil {
		return nil, fmt.Errorf("app: init channel: %w", err)
	}

	a.server = &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// initDevices opens the PortAudio capture and playback devices unless test
// doubles were injected.
func (a *App) initDevices() error {
	if a.input == nil {
		a.input = portaudio.NewCapture()
	}
	if a.sink == nil {
		sink, err := portaudio.NewSink()
		if err != nil {
			return err
		}
		a.sink = sink
	}
	a.closers = append(a.closers, a.sink.Close)
	return nil
}

// initCreative builds the studio. Without an API key or injected generator
// the creative tools are left unregistered; the voice channel still works.
func (a *App) initCreative(ctx context.Context) error {
	if a.generator == nil {
		if a.cfg.Live.APIKey == "" {
			a.logger.Warn("no API key configured; creative studio disabled")
			return nil
		}
		var genOpts []creative.GenAIOption
		if a.cfg.Creative.ImageModel != "" {
			genOpts = append(genOpts, creative.WithImageModel(a.cfg.Creative.ImageModel))
		}
		if a.cfg.Creative.VideoModel != "" {
			genOpts = append(genOpts, creative.WithVideoModel(a.cfg.Creative.VideoModel))
		}
		gen, err := creative.NewGenAIGenerator(ctx, a.cfg.Live.APIKey, genOpts...)
		if err != nil {
			return err
		}
		a.generator = gen
	}

	studioOpts := []creative.Option{
		creative.WithLogger(a.logger),
		creative.WithMetrics(a.metrics),
	}
	if a.cfg.Creative.GalleryCapacity > 0 {
		studioOpts = append(studioOpts, creative.WithGalleryCapacity(a.cfg.Creative.GalleryCapacity))
	}
	a.studio = creative.NewStudio(a.generator, studioOpts...)
	return nil
}

// initProvider constructs the Gemini live client unless one was injected.
func (a *App) initProvider() {
	if a.provider != nil {
		return
	}
	var opts []gemini.Option
	if a.cfg.Live.Model != "" {
		opts = append(opts, gemini.WithModel(a.cfg.Live.Model))
	}
	if a.cfg.Live.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(a.cfg.Live.BaseURL))
	}
	a.provider = gemini.New(a.cfg.Live.APIKey, opts...)
}

// initChannel registers the tool set and builds the voice channel.
func (a *App) initChannel() error {
	dispatcher := tools.NewDispatcher(a.logger)
	dispatcher.Register(tools.SwitchTheme(a.personas, a.logger, func(p persona.Persona) {
		a.notices.Notify(notify.SeverityInfo, "theme switched to "+p.Label)
	}))
	if a.studio != nil {
		dispatcher.Register(tools.GenerateImage(a.studio, a.logger))
		dispatcher.Register(tools.GenerateVideo(a.studio, a.logger))
	}

	ch, err := session.New(session.Config{
		Provider:        a.provider,
		Input:           a.input,
		Sink:            a.sink,
		Personas:        a.personas,
		Tools:           dispatcher,
		Notifier:        a.notices,
		Metrics:         a.metrics,
		Logger:          a.logger,
		ConnectTimeout:  a.cfg.Live.ConnectTimeout,
		SendQueueSize:   a.cfg.Audio.SendQueueSize,
		TalkThreshold:   a.cfg.Audio.TalkThreshold,
		HistoryCapacity: a.cfg.History.Capacity,
	})
	if err != nil {
		return err
	}
	a.channel = ch
	a.closers = append(a.closers, ch.Close)
	return nil
}

// Channel returns the voice channel. Exposed for the control-plane handlers
// and for tests.
func (a *App) Channel() *session.Channel { return a.channel }

// Handler returns the control-plane HTTP handler, for embedding and tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves the HTTP control plane and blocks until ctx is cancelled or the
// server fails. Shutdown is always attempted before returning.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("control plane listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, disconnects the voice channel, and closes
// all subsystems in reverse-init order. It respects the context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// configPersonas converts config entries to the persona set. An empty list
// falls back to the built-in defaults inside persona.NewRegistry.
func configPersonas(entries []config.PersonaConfig) []persona.Persona {
	personas := make([]persona.Persona, 0, len(entries))
	for _, e := range entries {
		personas = append(personas, persona.Persona{
			ID:           e.ID,
			Label:        e.Label,
			Voice:        e.Voice,
			Instructions: e.Instructions,
		})
	}
	return personas
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}
