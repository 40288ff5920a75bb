package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/rxmesh/logging"
)

// ToolContext is the constrained surface handed to function handlers by the
// dispatch loop. It exposes the session's context store for read/write
// accumulation, the invoking agent's identity and the function call id for
// correlation. Handlers never see the session itself.
type ToolContext struct {
	ctx     context.Context
	session *Session
	agent   string
	callID  string

	*loggerAdapter
}

// NewToolContext binds a tool context to a session and function call.
func NewToolContext(ctx context.Context, sess *Session, agent, callID string, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		session:       sess,
		agent:         agent,
		callID:        callID,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the cancellation context for the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the owning session's id.
func (tc *ToolContext) SessionID() string {
	if tc.session == nil {
		return ""
	}
	return tc.session.ID
}

// AgentName returns the name of the agent that issued the call.
func (tc *ToolContext) AgentName() string { return tc.agent }

// CallID returns the function call id this context is bound to.
func (tc *ToolContext) CallID() string { return tc.callID }

// GetState reads a key from the session's context store.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if tc.session == nil {
		return nil, false
	}
	return tc.session.GetState(k)
}

// SetState writes a key to the session's context store. Entries accumulate
// for the lifetime of the session and survive handoffs.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.session != nil {
		tc.session.SetState(k, v)
	}
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.session == nil || tc.session.ID == "" || tc.callID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
