// Package transcript accumulates streamed transcription deltas and keeps a
// bounded history of finalized utterances.
//
// The live engine delivers the user's speech as a stream of partial text
// deltas with no stable word boundaries. An Accumulator concatenates them
// exactly as received; only at turn completion is the buffered text trimmed
// and promoted to a finalized utterance.
package transcript

import (
	"strings"
	"sync"
)

// Accumulator collects transcription deltas for the current turn. Safe for
// concurrent use.
type Accumulator struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append adds one delta to the current turn. Deltas are concatenated
// verbatim: whitespace and partial words are preserved so that fragments
// split mid-word reassemble correctly.
func (a *Accumulator) Append(delta string) {
	if delta == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(delta)
}

// Current returns the raw buffered text without consuming it.
func (a *Accumulator) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Finalize trims the buffered text, resets the accumulator and returns the
// finalized utterance. It returns ok=false when the trimmed text is empty;
// the buffer is reset either way, so finalizing an idle accumulator is a
// no-op.
func (a *Accumulator) Finalize() (text string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	text = strings.TrimSpace(a.buf.String())
	a.buf.Reset()
	return text, text != ""
}

// Reset discards any buffered text.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.Reset()
}
