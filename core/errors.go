package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors of the coordination protocol. Callers match them with
// errors.Is; typed errors below carry additional detail and unwrap to these.
var (
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoutingFailure signals that no initial agent could be determined.
	// The coordinator recovers by falling back to the default agent.
	ErrRoutingFailure = errors.New("routing failure")
	// ErrLoopBudgetExceeded signals that a turn hit the cap on
	// tool-call/reasoning round trips. Fatal to the turn, not the session.
	ErrLoopBudgetExceeded = errors.New("loop budget exceeded")
	// ErrHandoffBudgetExceeded signals that a turn hit the cap on chained
	// handoffs. Fatal to the turn, not the session.
	ErrHandoffBudgetExceeded = errors.New("handoff budget exceeded")
	// ErrAgentMisbehavior signals repeated capability violations within a
	// single turn; the turn ends with a degraded reply.
	ErrAgentMisbehavior = errors.New("agent misbehavior")
	// ErrCollaboratorTimeout signals that the reasoning collaborator did
	// not respond within the configured deadline.
	ErrCollaboratorTimeout = errors.New("reasoning collaborator timeout")
)

// HandoffErrorCode classifies handoff validation failures.
type HandoffErrorCode string

const (
	// InvalidHandoffTarget: the target is unknown, or not among the
	// source's declared handoff targets.
	InvalidHandoffTarget HandoffErrorCode = "INVALID_HANDOFF_TARGET"
	// NoOpHandoffRejected: the target equals the source.
	NoOpHandoffRejected HandoffErrorCode = "NOOP_HANDOFF_REJECTED"
)

// HandoffError reports a rejected handoff request. The active agent is
// unchanged; the coordinator appends an error turn and resumes.
type HandoffError struct {
	Code HandoffErrorCode
	From string
	To   string
}

func (e *HandoffError) Error() string {
	return fmt.Sprintf("handoff %s -> %s rejected: %s", e.From, e.To, e.Code)
}

// CapabilityViolationError reports tool calls naming functions outside the
// active agent's capability set. The calls are rejected, not executed.
type CapabilityViolationError struct {
	Agent string
	Calls []FunctionCall
}

func (e *CapabilityViolationError) Error() string {
	parts := make([]string, len(e.Calls))
	for i, fc := range e.Calls {
		parts[i] = fc.Name
		if fc.ID != "" {
			parts[i] = fmt.Sprintf("%s (call %s)", fc.Name, fc.ID)
		}
	}
	if len(parts) == 1 {
		return fmt.Sprintf("agent %s requested function %s outside its capability set", e.Agent, parts[0])
	}
	return fmt.Sprintf("agent %s requested functions outside its capability set: %s", e.Agent, strings.Join(parts, ", "))
}
