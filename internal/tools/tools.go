// Package tools dispatches function calls requested by the live model.
//
// Every accepted call produces exactly one correlated result. Invalid calls
// (unknown tool, unknown argument value) are rejected but never fatal: the
// dispatcher answers them with a structured error payload so the model can
// recover, and the session stays open.
package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nami-os/nami/pkg/live"
)

// Rejection reasons. Both are answered, not escalated.
var (
	ErrUnknownTool     = errors.New("tools: unknown tool")
	ErrUnknownArgument = errors.New("tools: unknown argument")
)

// Handler executes one tool call. The returned map becomes the response
// payload. A returned error rejects the call; wrap ErrUnknownArgument for
// argument validation failures.
type Handler func(args map[string]any) (map[string]any, error)

// Tool couples a declaration with its handler.
type Tool struct {
	Definition live.ToolDefinition
	Handler    Handler
}

// Dispatcher routes tool calls to registered handlers. Safe for concurrent
// use; registration must finish before dispatching begins.
type Dispatcher struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewDispatcher creates an empty dispatcher. A nil logger falls back to
// slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		tools:  make(map[string]Tool),
	}
}

// Register adds a tool, replacing any previous registration with the same
// name.
func (d *Dispatcher) Register(t Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tools[t.Definition.Name]; !exists {
		d.order = append(d.order, t.Definition.Name)
	}
	d.tools[t.Definition.Name] = t
}

// Definitions returns the declarations of all registered tools in
// registration order, for the session setup message.
func (d *Dispatcher) Definitions() []live.ToolDefinition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defs := make([]live.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].Definition)
	}
	return defs
}

// Dispatch executes one call and returns its correlated result. The result's
// ID and Name always echo the call, even on rejection, so the caller can
// forward it unconditionally.
func (d *Dispatcher) Dispatch(call live.ToolCall) live.ToolResult {
	d.mu.RLock()
	tool, ok := d.tools[call.Name]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("rejected call for unregistered tool", "tool", call.Name, "call_id", call.ID)
		return reject(call, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name))
	}

	response, err := tool.Handler(call.Args)
	if err != nil {
		d.logger.Warn("tool call rejected", "tool", call.Name, "call_id", call.ID, "error", err)
		return reject(call, err)
	}

	d.logger.Debug("tool call handled", "tool", call.Name, "call_id", call.ID)
	if response == nil {
		response = map[string]any{}
	}
	if _, ok := response["ok"]; !ok {
		response["ok"] = true
	}
	return live.ToolResult{ID: call.ID, Name: call.Name, Response: response}
}

func reject(call live.ToolCall, err error) live.ToolResult {
	return live.ToolResult{
		ID:   call.ID,
		Name: call.Name,
		Response: map[string]any{
			"ok":    false,
			"error": err.Error(),
		},
	}
}
