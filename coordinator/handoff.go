package coordinator

import (
	"github.com/hupe1980/rxmesh/core"
)

// HandoffSummaryKey is the context-store key holding the most recent
// context summary carried along with a handoff.
const HandoffSummaryKey = "handoff_summary"

// validateHandoff applies the protocol rules in order:
//  1. unknown target               -> INVALID_HANDOFF_TARGET
//  2. target equals source         -> NOOP_HANDOFF_REJECTED
//  3. target not a declared target -> INVALID_HANDOFF_TARGET
//
// A nil return means the handoff may be applied.
func (c *Coordinator) validateHandoff(req core.HandoffRequest) *core.HandoffError {
	source, ok := c.agent(req.From)
	if !ok {
		return &core.HandoffError{Code: core.InvalidHandoffTarget, From: req.From, To: req.To}
	}
	if _, ok := c.agent(req.To); !ok {
		return &core.HandoffError{Code: core.InvalidHandoffTarget, From: req.From, To: req.To}
	}
	if req.To == req.From {
		return &core.HandoffError{Code: core.NoOpHandoffRejected, From: req.From, To: req.To}
	}
	if !source.CanHandOffTo(req.To) {
		return &core.HandoffError{Code: core.InvalidHandoffTarget, From: req.From, To: req.To}
	}
	return nil
}

// applyHandoff transfers ownership of the session. The context store is
// untouched apart from recording the carried summary; entries accumulated so
// far remain visible to the receiving agent by reference.
func (c *Coordinator) applyHandoff(sess *core.Session, req core.HandoffRequest) {
	sess.SetStatus(core.StatusHandoffInProgress)
	sess.AppendTurn(core.NewHandoffTurn(req.From, req.To, req.Reason))
	if req.Summary != "" {
		sess.SetState(HandoffSummaryKey, req.Summary)
	}
	sess.SetActiveAgent(req.To)
	sess.SetStatus(core.StatusActive)

	c.logger.Info("coordinator.handoff",
		"session_id", sess.ID,
		"from", req.From,
		"to", req.To,
		"reason", req.Reason,
	)
}
