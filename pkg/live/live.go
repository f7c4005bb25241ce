// Package live defines the Provider interface for realtime conversational
// voice backends.
//
// A live provider wraps a speech-to-speech service that accepts streamed
// microphone audio and returns synthesised speech, transcription deltas, and
// tool-call requests over a single long-lived duplex channel. The central
// abstraction is [SessionHandle]: one open connection, producing a stream of
// [ServerEvent] values on its Events channel and accepting encoded audio
// chunks and tool results for transmission.
//
// A ServerEvent deliberately mirrors one inbound protocol message: several
// payload kinds can co-occur in a single event (an audio delta together with
// a turn-complete signal, for example), and consumers are expected to check
// every field rather than switch on a single kind.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"

	"github.com/nami-os/nami/pkg/audio"
)

// ToolDefinition declares one callable function offered to the model at
// session setup.
type ToolDefinition struct {
	// Name is the function name the model uses to invoke the tool.
	Name string

	// Description tells the model what the tool does and when to call it.
	Description string

	// Parameters is a JSON-schema-shaped description of the arguments.
	Parameters map[string]any
}

// ToolCall is one function invocation requested by the model. Every accepted
// call must be answered with exactly one correlated [ToolResult]; an
// unanswered call can stall the model's turn.
type ToolCall struct {
	// ID correlates the call with its result.
	ID string

	// Name is the invoked function name.
	Name string

	// Args holds the decoded call arguments.
	Args map[string]any
}

// ToolResult is the correlated response to a [ToolCall].
type ToolResult struct {
	// ID must match the originating call's ID.
	ID string

	// Name echoes the invoked function name.
	Name string

	// Response is the structured result payload handed back to the model.
	Response map[string]any
}

// ServerEvent is the neutral decoding of one inbound server message. Fields
// are independent: any combination may be populated in a single event.
type ServerEvent struct {
	// InputTranscript is a partial transcription delta of the user's speech.
	InputTranscript string

	// OutputTranscript is a partial transcription delta of the model's speech.
	OutputTranscript string

	// TurnComplete signals the end of the current user turn.
	TurnComplete bool

	// Audio is a decoded synthesised-speech payload: raw little-endian
	// 16-bit PCM at [audio.PlaybackRate], mono. Empty when the message
	// carried no audio.
	Audio []byte

	// ToolCalls lists function invocations requested by the model, in
	// arrival order.
	ToolCalls []ToolCall

	// Interrupted signals barge-in: the user started speaking while
	// synthesised audio was still playing, and local playback must be
	// flushed immediately.
	Interrupted bool
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice is the provider's voice preset identifier.
	Voice string

	// Instructions is the system-level prompt defining the persona.
	Instructions string

	// Tools is the set of tool definitions offered to the model.
	Tools []ToolDefinition

	// InputTranscripts requests transcription deltas of the user's speech.
	InputTranscripts bool

	// OutputTranscripts requests transcription deltas of the model's speech.
	OutputTranscripts bool
}

// SessionHandle represents an open duplex session. It is an interface so
// test code can supply scripted implementations without a network connection.
//
// The session is the hot path of the voice pipeline — every method must
// return quickly. Callers must call Close when the session is no longer
// needed.
type SessionHandle interface {
	// SendAudio transmits one encoded microphone chunk. No acknowledgement
	// is awaited. Returns an error if the session is closed or the
	// transport rejects the write.
	SendAudio(chunk audio.Chunk) error

	// SendToolResult transmits the correlated response for a previously
	// received tool call.
	SendToolResult(result ToolResult) error

	// Events returns the channel on which inbound server events arrive.
	// The channel is closed when the session ends; after it closes, Err
	// reports whether the session ended cleanly.
	Events() <-chan ServerEvent

	// Err returns the error that terminated the session, or nil if it
	// ended cleanly (or is still open).
	Err() error

	// Close terminates the session and releases the connection. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime voice backend.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned handle is ready to accept audio immediately. The supplied
	// ctx bounds the connection attempt only.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
