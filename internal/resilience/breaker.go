// Package resilience guards outbound generative API calls.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open). The
// creative studio wraps every image and video generation in one, so a
// misbehaving upstream degrades to fast rejections instead of a multi-minute
// timeout on every request.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: breaker open")

// State is a [Breaker]'s operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Enough
	// successes close the breaker; any failure reopens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds a [Breaker]'s tuning knobs.
type BreakerConfig struct {
	// Name labels the breaker in log lines.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before
	// probing the upstream again. Default 30s.
	ResetTimeout time.Duration

	// ProbeBudget is how many half-open probe calls may run, and how many
	// must succeed to close the breaker. Default 3.
	ProbeBudget int

	// Logger receives state transitions. Default slog.Default().
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probeBudget  int
	logger       *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// NewBreaker creates a closed [Breaker], filling zero config fields with
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		probeBudget:  cfg.ProbeBudget,
		logger:       cfg.Logger,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker rejects the call, and feeds the result
// into the failure accounting.
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.onFailure(probe)
		return err
	}
	b.onSuccess(probe)
	return nil
}

// admit decides whether a call may proceed and whether it counts against the
// probe budget.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeFails = 0
		b.logger.Info("breaker probing upstream", "name", b.name)
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.probeBudget {
			return false, ErrOpen
		}
		b.probes++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) onFailure(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	if probe {
		// One failed probe reopens immediately.
		b.probeFails++
		b.state = StateOpen
		b.failures = b.maxFailures
		b.logger.Warn("breaker reopened after failed probe", "name", b.name)
		return
	}

	b.failures++
	if b.state == StateClosed && b.failures >= b.maxFailures {
		b.state = StateOpen
		b.logger.Warn("breaker opened", "name", b.name, "failures", b.failures)
	}
}

func (b *Breaker) onSuccess(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !probe {
		b.failures = 0
		return
	}
	if b.probes-b.probeFails >= b.probeBudget {
		b.state = StateClosed
		b.failures = 0
		b.probes = 0
		b.probeFails = 0
		b.logger.Info("breaker closed after successful probes", "name", b.name)
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports half-open; the transition itself happens on the next
// Execute.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
	b.logger.Info("breaker reset", "name", b.name)
}
