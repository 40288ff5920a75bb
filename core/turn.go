package core

import (
	"time"

	"github.com/google/uuid"
)

// TurnKind tags the role of a single entry in a conversation thread.
type TurnKind string

const (
	// TurnUserMessage is a message typed by the end user.
	TurnUserMessage TurnKind = "user_message"
	// TurnToolCall is a function invocation requested by an agent.
	TurnToolCall TurnKind = "tool_call"
	// TurnToolResult is the outcome (payload or error) of a prior tool call.
	TurnToolResult TurnKind = "tool_result"
	// TurnAgentReply is a natural-language reply produced by an agent.
	TurnAgentReply TurnKind = "agent_reply"
	// TurnHandoff records a transfer of conversation ownership between agents.
	TurnHandoff TurnKind = "handoff"
	// TurnError records a protocol-level error surfaced to the conversation
	// (invalid handoff target, capability violation, budget exhaustion).
	TurnError TurnKind = "error"
)

// FunctionCall describes a single tool invocation requested by an agent.
// Arguments is the serialized JSON argument payload as produced by the
// reasoning collaborator.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// FunctionResult captures the outcome of a FunctionCall. Exactly one of
// Payload / Error is meaningful; Error is the empty string on success.
type FunctionResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the call produced an error instead of a payload.
func (r FunctionResult) Failed() bool { return r.Error != "" }

// HandoffEvent records an applied transfer of conversation ownership.
type HandoffEvent struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Turn is one entry in a session's conversation thread. Turns are append-only
// and immutable after being added to a thread. Exactly one of the payload
// fields (Text, Call, Result, Handoff) is populated depending on Kind.
type Turn struct {
	ID        string          `json:"id"`
	Kind      TurnKind        `json:"kind"`
	Agent     string          `json:"agent,omitempty"` // authoring agent; empty for user turns
	Timestamp time.Time       `json:"timestamp"`
	Text      string          `json:"text,omitempty"`
	Call      *FunctionCall   `json:"call,omitempty"`
	Result    *FunctionResult `json:"result,omitempty"`
	Handoff   *HandoffEvent   `json:"handoff,omitempty"`
}

// NewID generates a unique identifier for sessions, turns and function calls.
func NewID() string { return uuid.NewString() }

func newTurn(kind TurnKind, agent string) Turn {
	return Turn{ID: NewID(), Kind: kind, Agent: agent, Timestamp: time.Now().UTC()}
}

// NewUserTurn creates a user-authored message turn.
func NewUserTurn(text string) Turn {
	t := newTurn(TurnUserMessage, "")
	t.Text = text
	return t
}

// NewToolCallTurn records an agent requesting execution of a named function.
func NewToolCallTurn(agent string, call FunctionCall) Turn {
	t := newTurn(TurnToolCall, agent)
	c := call
	t.Call = &c
	return t
}

// NewToolResultTurn records the completion (or failure) of a tool invocation.
// If err is non-nil its message is copied into the result's Error field.
func NewToolResultTurn(agent string, callID, name string, payload any, err error) Turn {
	t := newTurn(TurnToolResult, agent)
	res := FunctionResult{CallID: callID, Name: name, Payload: payload}
	if err != nil {
		res.Error = err.Error()
	}
	t.Result = &res
	return t
}

// NewReplyTurn records a final natural-language reply authored by an agent.
func NewReplyTurn(agent, text string) Turn {
	t := newTurn(TurnAgentReply, agent)
	t.Text = text
	return t
}

// NewHandoffTurn records an applied handoff between two agents.
func NewHandoffTurn(from, to, reason string) Turn {
	t := newTurn(TurnHandoff, from)
	t.Handoff = &HandoffEvent{From: from, To: to, Reason: reason}
	return t
}

// NewErrorTurn records a protocol-level error surfaced to the conversation.
func NewErrorTurn(agent, text string) Turn {
	t := newTurn(TurnError, agent)
	t.Text = text
	return t
}
