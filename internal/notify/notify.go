// Package notify delivers user-facing session notices: connection failures,
// rejected tool calls, device problems. Notices are structured events rather
// than log lines so the status surface can render them, but the default sink
// also mirrors every notice to slog.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Severity classifies a notice.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Notice is one user-facing event.
type Notice struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Notifier receives user-facing notices. Implementations must be safe for
// concurrent use and must not block.
type Notifier interface {
	Notify(severity Severity, message string)
}

// DefaultRingCapacity bounds the retained notice log.
const DefaultRingCapacity = 50

// Ring is a bounded newest-first notice log that satisfies [Notifier].
// Every notice is also written to the supplied logger.
type Ring struct {
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	notices []Notice
}

// NewRing creates a ring bounded to capacity notices. A capacity of zero or
// less falls back to DefaultRingCapacity. A nil logger falls back to
// slog.Default().
func NewRing(logger *slog.Logger, capacity int) *Ring {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{logger: logger, capacity: capacity}
}

var _ Notifier = (*Ring)(nil)

// Notify records the notice at the front of the ring, evicting the oldest
// entry when full, and mirrors it to the logger.
func (r *Ring) Notify(severity Severity, message string) {
	n := Notice{Time: time.Now(), Severity: severity, Message: message}

	r.mu.Lock()
	next := make([]Notice, 0, len(r.notices)+1)
	next = append(next, n)
	next = append(next, r.notices...)
	if len(next) > r.capacity {
		next = next[:r.capacity]
	}
	r.notices = next
	r.mu.Unlock()

	switch severity {
	case SeverityError:
		r.logger.Error(message)
	case SeverityWarn:
		r.logger.Warn(message)
	default:
		r.logger.Info(message)
	}
}

// Notices returns a copy of the retained notices, newest first.
func (r *Ring) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Discard is a Notifier that drops every notice. Useful in tests.
type Discard struct{}

func (Discard) Notify(Severity, string) {}
