// Package session implements the duplex voice channel: the lifecycle glue
// between microphone capture, the live provider, playback scheduling,
// transcription and tool dispatch.
//
// A Channel owns one session at a time. Connect starts the microphone
// before dialing so device problems surface immediately, queues outbound
// audio while the connection attempt is in flight, and drains the queue the
// moment the session opens. A single event loop applies every inbound server
// event in a fixed order, so co-occurring payloads are always handled
// consistently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nami-os/nami/internal/capture"
	"github.com/nami-os/nami/internal/notify"
	"github.com/nami-os/nami/internal/observe"
	"github.com/nami-os/nami/internal/persona"
	"github.com/nami-os/nami/internal/playback"
	"github.com/nami-os/nami/internal/tools"
	"github.com/nami-os/nami/internal/transcript"
	"github.com/nami-os/nami/pkg/audio"
	"github.com/nami-os/nami/pkg/live"
)

const (
	// DefaultConnectTimeout bounds a connection attempt when the caller's
	// context carries no deadline.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultSendQueueSize bounds the outbound audio queue while a
	// connection attempt is in flight. At one 4096-sample frame per 256 ms
	// this covers roughly eight seconds of speech.
	DefaultSendQueueSize = 32
)

// Config wires a Channel's collaborators.
type Config struct {
	// Provider establishes live sessions.
	Provider live.Provider

	// Input is the microphone device.
	Input audio.Input

	// Sink is the speaker device.
	Sink audio.Sink

	// Personas resolves the active persona for session setup.
	Personas *persona.Registry

	// Tools dispatches function calls from the model. Optional; when nil no
	// tools are offered.
	Tools *tools.Dispatcher

	// Notifier receives user-facing notices. Optional.
	Notifier notify.Notifier

	// Metrics records pipeline metrics. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ConnectTimeout defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// SendQueueSize defaults to DefaultSendQueueSize.
	SendQueueSize int

	// TalkThreshold overrides the capture speech threshold when positive.
	TalkThreshold float64

	// HistoryCapacity overrides the utterance history bound when positive.
	HistoryCapacity int
}

// Channel is the duplex voice session engine. Safe for concurrent use.
type Channel struct {
	provider live.Provider
	capture  *capture.Pipeline
	playback *playback.Scheduler
	acc      *transcript.Accumulator
	history  *transcript.History
	tools    *tools.Dispatcher
	personas *persona.Registry
	notifier notify.Notifier
	metrics  *observe.Metrics
	logger   *slog.Logger

	connectTimeout time.Duration
	queueSize      int

	mu            sync.Mutex
	state         State
	handle        live.SessionHandle
	pending       []audio.Chunk
	connectCancel context.CancelFunc
	loopDone      chan struct{}
}

// New creates a channel in the Idle state.
func New(cfg Config) (*Channel, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}
	if cfg.Input == nil {
		return nil, fmt.Errorf("session: audio input is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("session: audio sink is required")
	}
	if cfg.Personas == nil {
		cfg.Personas = persona.NewRegistry(nil)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultSendQueueSize
	}

	c := &Channel{
		provider:       cfg.Provider,
		acc:            transcript.NewAccumulator(),
		history:        transcript.NewHistory(cfg.HistoryCapacity),
		tools:          cfg.Tools,
		personas:       cfg.Personas,
		notifier:       cfg.Notifier,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		connectTimeout: cfg.ConnectTimeout,
		queueSize:      cfg.SendQueueSize,
		state:          StateIdle,
	}

	c.playback = playback.New(cfg.Sink, playback.WithLogger(cfg.Logger))

	captureOpts := []capture.Option{capture.WithLogger(cfg.Logger)}
	if cfg.TalkThreshold > 0 {
		captureOpts = append(captureOpts, capture.WithTalkThreshold(cfg.TalkThreshold))
	}
	c.capture = capture.New(cfg.Input, c.emitChunk, captureOpts...)

	return c, nil
}

// Connect starts the microphone and establishes a live session with the
// active persona. It blocks until the session is open or the attempt fails.
// Microphone frames captured while the dial is in flight are queued and
// transmitted as soon as the session opens.
//
// Device failures leave the channel Idle; dial and setup failures move it to
// Failed. Either way Connect may be called again.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen, StateClosing:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.pending = nil

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}
	ctx, c.connectCancel = context.WithCancel(ctx)
	c.mu.Unlock()

	// The microphone comes up before the dial so a missing device fails the
	// whole attempt without touching the network.
	if err := c.capture.Start(); err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateIdle
		}
		c.connectCancel = nil
		c.mu.Unlock()
		c.notifier.Notify(notify.SeverityError, "microphone unavailable")
		return err
	}

	p := c.personas.Active()
	cfg := live.SessionConfig{
		Voice:             p.Voice,
		Instructions:      p.Instructions,
		InputTranscripts:  true,
		OutputTranscripts: true,
	}
	if c.tools != nil {
		cfg.Tools = c.tools.Definitions()
	}

	start := time.Now()
	handle, err := c.provider.Connect(ctx, cfg)
	if err != nil {
		_ = c.capture.Stop()
		c.mu.Lock()
		aborted := c.state != StateConnecting
		if !aborted {
			c.state = StateFailed
		}
		c.connectCancel = nil
		c.pending = nil
		c.mu.Unlock()
		if !aborted {
			c.notifier.Notify(notify.SeverityError, "connection failed: "+err.Error())
		}
		return fmt.Errorf("session: connect: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Close raced the dial; discard the fresh session.
		c.mu.Unlock()
		_ = handle.Close()
		_ = c.capture.Stop()
		return fmt.Errorf("session: connect aborted")
	}
	c.handle = handle
	c.state = StateOpen
	c.connectCancel = nil
	queued := c.pending
	c.pending = nil
	c.loopDone = make(chan struct{})

	// Drain audio captured during the dial, oldest first, before releasing
	// the lock. A frame arriving via SendAudio during the drain blocks on
	// the mutex, so it cannot overtake the queued chunks.
	for _, chunk := range queued {
		if err := handle.SendAudio(chunk); err != nil {
			c.logger.Warn("dropped queued chunk", "error", err)
			c.metrics.RecordFrameDropped(context.Background(), "send_error")
			break
		}
		c.metrics.FramesSent.Add(context.Background(), 1)
	}
	c.mu.Unlock()

	c.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	c.metrics.ActiveSessions.Add(context.Background(), 1)
	c.logger.Info("session open",
		"persona", p.ID,
		"voice", p.Voice,
		"queued_chunks", len(queued),
	)
	c.notifier.Notify(notify.SeverityInfo, "link established")

	go c.eventLoop(handle)
	return nil
}

// SendAudio transmits one encoded chunk, queueing it while a connection
// attempt is in flight. Returns ErrNotConnected when no session is open or
// pending, ErrSendQueueFull when the pending queue is saturated.
func (c *Channel) SendAudio(chunk audio.Chunk) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		handle := c.handle
		c.mu.Unlock()
		if err := handle.SendAudio(chunk); err != nil {
			return fmt.Errorf("session: send audio: %w", err)
		}
		c.metrics.FramesSent.Add(context.Background(), 1)
		return nil
	case StateConnecting:
		defer c.mu.Unlock()
		if len(c.pending) >= c.queueSize {
			return ErrSendQueueFull
		}
		c.pending = append(c.pending, chunk)
		return nil
	default:
		c.mu.Unlock()
		return ErrNotConnected
	}
}

// emitChunk is the capture pipeline's emit callback.
func (c *Channel) emitChunk(chunk audio.Chunk) {
	switch err := c.SendAudio(chunk); {
	case err == nil:
	case errors.Is(err, ErrSendQueueFull):
		c.metrics.RecordFrameDropped(context.Background(), "queue_full")
	case errors.Is(err, ErrNotConnected):
		c.metrics.RecordFrameDropped(context.Background(), "not_connected")
	default:
		c.logger.Warn("send audio failed", "error", err)
		c.metrics.RecordFrameDropped(context.Background(), "send_error")
	}
}

// eventLoop consumes server events until the session ends.
func (c *Channel) eventLoop(handle live.SessionHandle) {
	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()
	defer close(done)

	for ev := range handle.Events() {
		c.applyEvent(handle, ev)
	}

	err := handle.Err()

	c.mu.Lock()
	closing := c.state == StateClosing || c.state == StateClosed
	if closing {
		c.state = StateClosed
	} else {
		c.state = StateFailed
	}
	c.handle = nil
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(context.Background(), -1)

	if closing {
		c.logger.Info("session closed")
		c.notifier.Notify(notify.SeverityInfo, "link closed")
		return
	}

	// Unrequested end of stream: transport failure.
	_ = c.capture.Stop()
	c.playback.Flush()
	c.acc.Reset()
	c.metrics.TransportErrors.Add(context.Background(), 1)
	msg := "connection lost"
	if err != nil {
		msg = "connection lost: " + err.Error()
		c.logger.Error("session failed", "error", err)
	} else {
		c.logger.Error("session ended unexpectedly")
	}
	c.notifier.Notify(notify.SeverityError, msg)
}

// applyEvent handles one server event. The checks run in a fixed order:
// transcript append, turn finalization, audio scheduling, tool dispatch,
// interruption flush. Each check is independent; a single event can trigger
// several of them.
func (c *Channel) applyEvent(handle live.SessionHandle, ev live.ServerEvent) {
	ctx := context.Background()

	if ev.InputTranscript != "" {
		c.acc.Append(ev.InputTranscript)
	}

	if ev.TurnComplete {
		if text, ok := c.acc.Finalize(); ok {
			c.history.Add(text)
			c.notifier.Notify(notify.SeverityInfo, text)
			c.metrics.Utterances.Add(ctx, 1)
			c.logger.Debug("utterance finalized", "text", text)
		}
	}

	if len(ev.Audio) > 0 {
		if err := c.playback.Enqueue(ev.Audio); err != nil {
			if errors.Is(err, playback.ErrDecode) {
				c.metrics.DecodeErrors.Add(ctx, 1)
				c.logger.Warn("dropped malformed audio delta", "error", err)
			} else {
				c.logger.Warn("enqueue audio delta", "error", err)
			}
		} else {
			c.metrics.DeltasScheduled.Add(ctx, 1)
		}
	}

	for _, call := range ev.ToolCalls {
		c.dispatchTool(ctx, handle, call)
	}

	if ev.Interrupted {
		c.playback.Flush()
		c.metrics.Interruptions.Add(ctx, 1)
		c.logger.Debug("playback interrupted")
	}
}

// dispatchTool runs one call and always answers it, even on rejection.
func (c *Channel) dispatchTool(ctx context.Context, handle live.SessionHandle, call live.ToolCall) {
	start := time.Now()

	var result live.ToolResult
	if c.tools != nil {
		result = c.tools.Dispatch(call)
	} else {
		result = live.ToolResult{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"ok": false, "error": "no tools registered"},
		}
	}

	status := "ok"
	if ok, _ := result.Response["ok"].(bool); !ok {
		status = "rejected"
	}
	c.metrics.RecordToolCall(ctx, call.Name, status)
	c.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())

	if err := handle.SendToolResult(result); err != nil {
		c.logger.Warn("send tool result", "tool", call.Name, "call_id", call.ID, "error", err)
	}
}

// Close tears the channel down: microphone stopped, playback flushed,
// session closed. It blocks until the event loop drains. Idempotent; closing
// an Idle channel is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateClosed, StateFailed:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		// Abort the in-flight dial; Connect handles the cleanup.
		if c.connectCancel != nil {
			c.connectCancel()
		}
		c.state = StateClosed
		c.pending = nil
		c.mu.Unlock()
		_ = c.capture.Stop()
		return nil
	}
	c.state = StateClosing
	handle := c.handle
	done := c.loopDone
	c.mu.Unlock()

	_ = c.capture.Stop()
	c.playback.Flush()
	c.acc.Reset()

	err := handle.Close()
	if done != nil {
		<-done
	}
	return err
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMuted toggles microphone muting.
func (c *Channel) SetMuted(muted bool) { c.capture.SetMuted(muted) }

// Muted reports the microphone mute state.
func (c *Channel) Muted() bool { return c.capture.Muted() }

// Talking reports whether the user is currently speaking.
func (c *Channel) Talking() bool { return c.capture.Talking() }

// Speaking reports whether synthesised audio is playing.
func (c *Channel) Speaking() bool { return c.playback.Speaking() }

// History returns the finalized utterances, most recent first.
func (c *Channel) History() []string { return c.history.Entries() }

// PendingTranscript returns the unfinalized transcript text for the current
// turn.
func (c *Channel) PendingTranscript() string { return c.acc.Current() }
