// Package reasoning defines the collaborator contract between agents and the
// language-model providers that produce their decisions. Providers translate
// a normalized request (instructions, conversation thread, tool definitions)
// into a single response carrying either text, tool calls, or both.
package reasoning

import (
	"context"

	"github.com/hupe1980/rxmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the reasoner.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// reasoner. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized reasoner input produced by agents.
type Request struct {
	Instructions string           `json:"instructions"`
	Thread       []core.Turn      `json:"thread"`
	State        map[string]any   `json:"state,omitempty"` // context store snapshot
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Response is the reasoner's answer for a single round trip. A response with
// tool calls drives the dispatch loop; a response with only text ends the turn.
type Response struct {
	Text         string              `json:"text,omitempty"`
	ToolCalls    []core.FunctionCall `json:"tool_calls,omitempty"`
	FinishReason string              `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
}

// Info contains metadata about a reasoner implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Reasoner is the minimal interface required by agents to drive decisions.
type Reasoner interface {
	// Decide produces one response for the given request. Implementations
	// must respect ctx cancellation.
	Decide(ctx context.Context, req Request) (Response, error)

	// Info returns information about the reasoner implementation.
	Info() Info
}
