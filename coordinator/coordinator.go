// Package coordinator implements the hub of the agent coordination engine.
// It owns sessions, routes the first user message to an initial agent, drives
// the decision loop of the active agent (tool dispatch, handoffs, replies)
// and enforces the per-turn budgets of the coordination protocol.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/rxmesh/agent"
	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/dispatch"
	"github.com/hupe1980/rxmesh/logging"
)

const (
	// DefaultMaxToolRounds caps reasoning round trips within one user turn.
	DefaultMaxToolRounds = 5
	// DefaultMaxHandoffsPerTurn caps chained handoffs within one user turn.
	DefaultMaxHandoffsPerTurn = 3
)

// Options configures a Coordinator.
type Options struct {
	// Store persists sessions. Defaults to nothing; the facade wires an
	// in-memory store.
	Store core.SessionStore

	// Executor runs tool call batches. Defaults to a parallel executor
	// with standard settings.
	Executor *dispatch.Executor

	// Router selects the initial agent for a session's first message.
	// Nil means every session starts with DefaultAgent.
	Router Router

	// DefaultAgent receives the conversation when routing fails or no
	// router is configured.
	DefaultAgent string

	// MaxToolRounds caps reasoning round trips per user turn.
	MaxToolRounds int

	// MaxHandoffsPerTurn caps chained handoffs per user turn.
	MaxHandoffsPerTurn int

	// Logger receives structured coordination logs.
	Logger logging.Logger
}

// TurnResult is the outcome of one user turn. Err is non-nil when the turn
// ended degraded (budget exhaustion, repeated capability violations, a
// collaborator failure); Reply then carries the degraded reply that was
// appended to the thread.
type TurnResult struct {
	SessionID string
	Agent     string // agent that authored the final reply
	Reply     string
	Handoffs  []core.HandoffEvent // handoffs applied during this turn
	Err       error
}

// Degraded reports whether the turn completed with a degraded reply.
func (r *TurnResult) Degraded() bool { return r.Err != nil }

// Coordinator is the single owner of every session it manages. Writes to one
// session are serialized; different sessions progress concurrently.
type Coordinator struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string

	store        core.SessionStore
	executor     *dispatch.Executor
	router       Router
	defaultAgent string
	maxRounds    int
	maxHandoffs  int
	logger       logging.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a coordinator. A Store must be provided.
func New(optFns ...func(o *Options)) (*Coordinator, error) {
	opts := Options{
		MaxToolRounds:      DefaultMaxToolRounds,
		MaxHandoffsPerTurn: DefaultMaxHandoffsPerTurn,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("coordinator requires a session store")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Executor == nil {
		opts.Executor = dispatch.NewExecutor(func(o *dispatch.Options) {
			o.Logger = opts.Logger
		})
	}

	return &Coordinator{
		agents:       make(map[string]*agent.Agent),
		store:        opts.Store,
		executor:     opts.Executor,
		router:       opts.Router,
		defaultAgent: opts.DefaultAgent,
		maxRounds:    opts.MaxToolRounds,
		maxHandoffs:  opts.MaxHandoffsPerTurn,
		logger:       opts.Logger,
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// RegisterAgent adds an agent to the coordinator's roster.
func (c *Coordinator) RegisterAgent(a *agent.Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.agents[a.Name()]; exists {
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	c.agents[a.Name()] = a
	c.order = append(c.order, a.Name())
	return nil
}

// Agent returns the registered agent with the given name.
func (c *Coordinator) Agent(name string) (*agent.Agent, bool) { return c.agent(name) }

func (c *Coordinator) agent(name string) (*agent.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[name]
	return a, ok
}

// AgentNames returns the registered agent names in registration order.
func (c *Coordinator) AgentNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Coordinator) candidates() []Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Candidate, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, Candidate{Name: name, Description: c.agents[name].Description()})
	}
	return out
}

// StartSession creates a new session. Routing is deferred to the first user
// message; until then the session has no active agent. An empty id gets a
// generated one.
func (c *Coordinator) StartSession(id string) (*core.Session, error) {
	sess, err := c.store.Create(id)
	if err != nil {
		return nil, err
	}
	c.logger.Info("coordinator.session.started", "session_id", sess.ID)
	return sess, nil
}

// SubmitUserMessage appends a user turn and drives the active agent's
// decision loop until the turn yields a reply or a budget is exhausted.
// Turns on the same session are serialized; different sessions progress
// concurrently.
func (c *Coordinator) SubmitUserMessage(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	unlock := c.lockSession(sessionID)
	defer unlock()

	sess, err := c.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Closed() {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionClosed, sessionID)
	}

	sess.AppendTurn(core.NewUserTurn(text))

	if sess.GetActiveAgent() == "" {
		if err := c.routeInitial(ctx, sess, text); err != nil {
			return nil, err
		}
	}

	return c.runTurn(ctx, sess)
}

// routeInitial picks the first owner of the session, falling back to the
// default agent when the router fails or names an unknown agent.
func (c *Coordinator) routeInitial(ctx context.Context, sess *core.Session, text string) error {
	var (
		choice string
		err    error
	)
	if c.router != nil {
		choice, err = c.router.Route(ctx, sess, text, c.candidates())
		if err != nil {
			c.logger.Warn("coordinator.route.failed", "session_id", sess.ID, "error", err.Error())
		}
	}
	if _, ok := c.agent(choice); !ok {
		choice = c.defaultAgent
	}
	if _, ok := c.agent(choice); !ok {
		return fmt.Errorf("%w: no agent available for session %s", core.ErrRoutingFailure, sess.ID)
	}

	sess.SetActiveAgent(choice)
	c.logger.Info("coordinator.route", "session_id", sess.ID, "agent", choice)
	return nil
}

// runTurn drives the decision loop for one user turn.
func (c *Coordinator) runTurn(ctx context.Context, sess *core.Session) (*TurnResult, error) {
	result := &TurnResult{SessionID: sess.ID}
	limiter := core.NewRoundLimiter(c.maxRounds)
	handoffs := 0
	violationRetried := false

	for {
		active := sess.GetActiveAgent()
		ag, ok := c.agent(active)
		if !ok {
			return nil, fmt.Errorf("%w: active agent %q not registered", core.ErrRoutingFailure, active)
		}

		if err := limiter.Increment(); err != nil {
			return c.degrade(sess, result, active, err,
				"I wasn't able to finish working on that request. Could you rephrase or simplify it?"), nil
		}

		decision, err := ag.Step(ctx, sess)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.abortTurn(sess, ctx.Err())
			}
			var violation *core.CapabilityViolationError
			if errors.As(err, &violation) {
				sess.AppendTurn(core.NewErrorTurn(active, violation.Error()))
				if violationRetried {
					return c.degrade(sess, result, active,
						fmt.Errorf("%w: %v", core.ErrAgentMisbehavior, violation),
						"I ran into an internal problem handling your request. Please try again."), nil
				}
				violationRetried = true
				c.logger.Warn("coordinator.capability_violation",
					"session_id", sess.ID, "agent", active, "error", violation.Error())
				continue
			}
			return c.degrade(sess, result, active, err,
				"I'm having trouble processing your request right now. Please try again in a moment."), nil
		}

		switch decision.Kind {
		case core.DecisionReply:
			sess.AppendTurn(core.NewReplyTurn(active, decision.Reply))
			result.Agent = active
			result.Reply = decision.Reply
			return result, nil

		case core.DecisionToolCalls:
			for _, fc := range decision.ToolCalls {
				sess.AppendTurn(core.NewToolCallTurn(active, fc))
			}
			c.executor.Execute(ctx, sess, active, ag.Registry(), decision.ToolCalls, func(t core.Turn) error {
				sess.AppendTurn(t)
				return nil
			})
			if ctx.Err() != nil {
				return nil, c.abortTurn(sess, ctx.Err())
			}

		case core.DecisionHandoff:
			handoffs++
			if handoffs > c.maxHandoffs {
				return c.degrade(sess, result, active,
					fmt.Errorf("%w: %d handoffs", core.ErrHandoffBudgetExceeded, c.maxHandoffs),
					"I couldn't find the right specialist for your request. Please contact member services directly."), nil
			}
			req := *decision.Handoff
			if herr := c.validateHandoff(req); herr != nil {
				sess.AppendTurn(core.NewErrorTurn(active, herr.Error()))
				c.logger.Warn("coordinator.handoff.rejected",
					"session_id", sess.ID, "from", req.From, "to", req.To, "code", string(herr.Code))
				continue
			}
			c.applyHandoff(sess, req)
			result.Handoffs = append(result.Handoffs, core.HandoffEvent{From: req.From, To: req.To, Reason: req.Reason})
			violationRetried = false

		default:
			return nil, fmt.Errorf("agent %s returned unknown decision kind %q", active, decision.Kind)
		}
	}
}

// abortTurn ends a turn cut short by caller cancellation. Any in-flight
// dispatch has already been failed by the executor; the session is closed
// because the caller walked away mid-turn.
func (c *Coordinator) abortTurn(sess *core.Session, cause error) error {
	sess.SetStatus(core.StatusClosed)
	c.logger.Warn("coordinator.turn.aborted",
		"session_id", sess.ID, "error", cause.Error())
	return fmt.Errorf("turn aborted: %w", cause)
}

// degrade ends the turn with an error turn plus a degraded reply, keeping the
// session usable for the next user message.
func (c *Coordinator) degrade(sess *core.Session, result *TurnResult, agentName string, cause error, reply string) *TurnResult {
	c.logger.Warn("coordinator.turn.degraded",
		"session_id", sess.ID, "agent", agentName, "error", cause.Error())

	sess.AppendTurn(core.NewErrorTurn(agentName, cause.Error()))
	sess.AppendTurn(core.NewReplyTurn(agentName, reply))

	result.Agent = agentName
	result.Reply = reply
	result.Err = cause
	return result
}

// Thread returns a copy of the session's conversation thread.
func (c *Coordinator) Thread(sessionID string) ([]core.Turn, error) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Thread(), nil
}

// ActiveAgent returns the current owner of the session. Empty until the
// first user message has been routed.
func (c *Coordinator) ActiveAgent(sessionID string) (string, error) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return "", err
	}
	return sess.GetActiveAgent(), nil
}

// Summary produces a compact description of the session: turn counts,
// context store size, the handoff chain and the last agent reply.
func (c *Coordinator) Summary(sessionID string) (string, error) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return "", err
	}

	thread := sess.Thread()
	var userMsgs, toolCalls, replies int
	lastReply := ""
	for _, t := range thread {
		switch t.Kind {
		case core.TurnUserMessage:
			userMsgs++
		case core.TurnToolCall:
			toolCalls++
		case core.TurnAgentReply:
			replies++
			lastReply = t.Text
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "session %s: %d user message(s), %d tool call(s), %d repl(ies), %d context key(s)",
		sess.ID, userMsgs, toolCalls, replies, len(sess.StateSnapshot()))
	if events := sess.Handoffs(); len(events) > 0 {
		chain := make([]string, 0, len(events)+1)
		chain = append(chain, events[0].From)
		for _, ev := range events {
			chain = append(chain, ev.To)
		}
		fmt.Fprintf(&sb, "; handoffs: %s", strings.Join(chain, " -> "))
	}
	if active := sess.GetActiveAgent(); active != "" {
		fmt.Fprintf(&sb, "; active agent: %s", active)
	}
	if lastReply != "" {
		fmt.Fprintf(&sb, "; last reply: %s", lastReply)
	}
	return sb.String(), nil
}

// CloseSession marks the session closed. Closing an already closed session
// is a no-op; the thread remains readable.
func (c *Coordinator) CloseSession(sessionID string) error {
	unlock := c.lockSession(sessionID)
	defer unlock()

	sess, err := c.store.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.Closed() {
		return nil
	}
	sess.SetStatus(core.StatusClosed)
	c.logger.Info("coordinator.session.closed", "session_id", sessionID)
	return nil
}

// lockSession serializes turns per session while letting distinct sessions
// progress concurrently.
func (c *Coordinator) lockSession(id string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
