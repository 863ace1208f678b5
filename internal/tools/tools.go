// Package tools defines the tool execution capability offered to agents.
// The production health-data warehouse client lives outside this module;
// agents depend only on the Executor interface here.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openrounds/rounds/internal/api"
)

// Result is the outcome of one tool execution.
type Result struct {
	// Content is the text fed back to the model.
	Content string
	// Rows holds structured records for tools that query data.
	Rows []map[string]any
	// IsError marks a failed execution. Failures are per-call: the owning
	// task keeps running with the error text substituted for the result.
	IsError bool
}

// Executor runs tool calls requested by the model. Implementations must
// return a Result rather than panicking; an error return is treated as a
// per-call failure, never a fatal one.
type Executor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (Result, error)
}

// Registry dispatches tool calls by name to registered handlers.
type Registry struct {
	handlers map[string]func(ctx context.Context, input json.RawMessage) (Result, error)
	defs     []api.ToolDef
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]func(ctx context.Context, input json.RawMessage) (Result, error)),
	}
}

// Register adds a tool definition and its handler.
func (r *Registry) Register(def api.ToolDef, handler func(ctx context.Context, input json.RawMessage) (Result, error)) {
	r.handlers[def.Name] = handler
	r.defs = append(r.defs, def)
}

// Definitions returns the schemas for every registered tool.
func (r *Registry) Definitions() []api.ToolDef {
	return r.defs
}

// Execute dispatches a tool call. Unknown tool names produce an error result,
// not an error return, so the agent loop can feed the message back to the
// model and continue.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (Result, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return Result{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}, nil
	}
	return handler(ctx, input)
}

// Compile-time verification that Registry implements Executor.
var _ Executor = (*Registry)(nil)
