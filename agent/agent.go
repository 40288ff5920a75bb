// Package agent implements the specialist agents of the coordination engine.
// An agent owns an instruction, a tool registry describing its capability set
// and a list of legal handoff targets. Each reasoning round trip produces a
// single decision: call tools, hand off, or reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/logging"
	"github.com/hupe1980/rxmesh/reasoning"
	"github.com/hupe1980/rxmesh/tool"
)

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Description summarizes the agent's specialty for routing decisions.
	Description string

	// Instruction is the system prompt backing every reasoning request.
	Instruction Instruction

	// Tools defines the agent's capability set. Calls naming functions
	// outside this set are rejected as capability violations.
	Tools []tool.Tool

	// HandoffTargets lists the agents this one may transfer the
	// conversation to. Empty means the agent never hands off.
	HandoffTargets []string

	// MaxHistoryTurns caps the thread window sent to the reasoner.
	// 0 sends the full thread.
	MaxHistoryTurns int

	// DecideTimeout bounds a single reasoning round trip.
	DecideTimeout time.Duration

	// RetryBackoff is the pause before the single retry of a reasoning
	// round trip that timed out.
	RetryBackoff time.Duration

	// Logger receives structured decision logs.
	Logger logging.Logger
}

// Agent is a specialist participant in the coordination engine.
//
// An Agent is immutable after construction and safe for concurrent use
// across sessions.
type Agent struct {
	name           string
	description    string
	instruction    Instruction
	registry       *tool.Registry
	handoffTargets []string
	reasoner       reasoning.Reasoner
	maxHistory     int
	decideTimeout  time.Duration
	retryBackoff   time.Duration
	logger         logging.Logger
}

// New creates an agent with sensible defaults.
func New(name string, reasoner reasoning.Reasoner, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		DecideTimeout: 60 * time.Second,
		RetryBackoff:  200 * time.Millisecond,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Agent{
		name:           name,
		description:    opts.Description,
		instruction:    opts.Instruction,
		registry:       tool.NewRegistry(opts.Tools...),
		handoffTargets: append([]string(nil), opts.HandoffTargets...),
		reasoner:       reasoner,
		maxHistory:     opts.MaxHistoryTurns,
		decideTimeout:  opts.DecideTimeout,
		retryBackoff:   opts.RetryBackoff,
		logger:         opts.Logger,
	}
}

// Name returns the unique agent name used for routing and handoffs.
func (a *Agent) Name() string { return a.name }

// Description returns the routing description.
func (a *Agent) Description() string { return a.description }

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// HandoffTargets returns the agents this one may transfer to.
func (a *Agent) HandoffTargets() []string {
	out := make([]string, len(a.handoffTargets))
	copy(out, a.handoffTargets)
	return out
}

// CanHandOffTo reports whether target is among the agent's legal handoff targets.
func (a *Agent) CanHandOffTo(target string) bool {
	for _, t := range a.handoffTargets {
		if t == target {
			return true
		}
	}
	return false
}

// Step runs one reasoning round trip against the session and translates the
// response into a decision.
//
// Translation rules:
//   - a request_handoff call becomes a handoff decision (never dispatched)
//   - calls naming functions outside the capability set return a
//     *core.CapabilityViolationError; none of the batch executes
//   - remaining tool calls become a tool-calls decision
//   - plain text becomes a reply decision
func (a *Agent) Step(ctx context.Context, sess *core.Session) (core.Decision, error) {
	instructions, err := a.instruction.Resolve(sess)
	if err != nil {
		return core.Decision{}, fmt.Errorf("resolve instruction: %w", err)
	}

	req := reasoning.Request{
		Instructions: instructions,
		Thread:       a.threadWindow(sess),
		State:        sess.StateSnapshot(),
		Tools:        a.toolDefinitions(),
	}

	start := time.Now()
	resp, err := a.decide(ctx, req)
	if err != nil {
		return core.Decision{}, err
	}

	a.logger.Debug("agent.step",
		"agent", a.name,
		"session_id", sess.ID,
		"tool_calls", len(resp.ToolCalls),
		"finish_reason", resp.FinishReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return a.translate(resp)
}

// decide runs the reasoning round trip, retrying once after a backoff when
// the collaborator times out. Other failures are not retried.
func (a *Agent) decide(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	resp, err := a.decideOnce(ctx, req)
	if err == nil || !errors.Is(err, core.ErrCollaboratorTimeout) {
		return resp, err
	}

	a.logger.Warn("agent.decide.retry", "agent", a.name, "error", err.Error())
	select {
	case <-ctx.Done():
		return reasoning.Response{}, err
	case <-time.After(a.retryBackoff):
	}
	return a.decideOnce(ctx, req)
}

func (a *Agent) decideOnce(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	decideCtx := ctx
	cancel := func() {}
	if a.decideTimeout > 0 {
		decideCtx, cancel = context.WithTimeout(ctx, a.decideTimeout)
	}
	defer cancel()

	resp, err := a.reasoner.Decide(decideCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return reasoning.Response{}, fmt.Errorf("%w: agent %s", core.ErrCollaboratorTimeout, a.name)
		}
		return reasoning.Response{}, fmt.Errorf("agent %s decide: %w", a.name, err)
	}
	return resp, nil
}

func (a *Agent) translate(resp reasoning.Response) (core.Decision, error) {
	if len(resp.ToolCalls) == 0 {
		return core.ReplyDecision(resp.Text), nil
	}

	var (
		calls      []core.FunctionCall
		violations []core.FunctionCall
	)
	for _, fc := range resp.ToolCalls {
		if fc.Name == HandoffToolName {
			req, err := parseHandoffRequest(a.name, fc)
			if err != nil {
				a.logger.Warn("agent.handoff.malformed", "agent", a.name, "error", err.Error())
				violations = append(violations, fc)
				continue
			}
			return core.HandoffDecision(req), nil
		}
		if _, ok := a.registry.Lookup(fc.Name); !ok {
			violations = append(violations, fc)
			continue
		}
		calls = append(calls, fc)
	}

	if len(violations) > 0 {
		return core.Decision{}, &core.CapabilityViolationError{Agent: a.name, Calls: violations}
	}

	return core.ToolCallsDecision(calls), nil
}

// threadWindow returns the thread trimmed to the configured history cap.
func (a *Agent) threadWindow(sess *core.Session) []core.Turn {
	thread := sess.Thread()
	if a.maxHistory > 0 && len(thread) > a.maxHistory {
		thread = thread[len(thread)-a.maxHistory:]
	}
	return thread
}

// toolDefinitions builds the reasoner-facing declarations for the agent's
// registry plus the handoff function when targets exist.
func (a *Agent) toolDefinitions() []reasoning.ToolDefinition {
	defs := make([]reasoning.ToolDefinition, 0, a.registry.Len()+1)
	for _, t := range a.registry.All() {
		defs = append(defs, reasoning.ToolDefinition{
			Type: "function",
			Function: reasoning.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	if len(a.handoffTargets) > 0 {
		defs = append(defs, handoffDefinition(a.handoffTargets))
	}
	return defs
}
