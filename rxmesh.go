// Package rxmesh provides a high-level façade over the coordination engine
// (sessions, routing, dispatch and handoffs) enabling rapid construction of
// multi-agent pharmacy-benefit assistants. Most applications interact with
// this package by:
//  1. Creating an RxMesh via New() (optionally overriding the in-memory defaults)
//  2. Registering one or more specialist agents (or the stock pbm roster)
//  3. Starting sessions and submitting user messages
//
// The façade delegates orchestration to coordinator.Coordinator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing.
package rxmesh

import (
	"context"

	"github.com/hupe1980/rxmesh/agent"
	"github.com/hupe1980/rxmesh/coordinator"
	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/dispatch"
	"github.com/hupe1980/rxmesh/logging"
	"github.com/hupe1980/rxmesh/session"
)

// Options configures the RxMesh instance.
type Options struct {
	// SessionStore persists sessions (defaults to in-memory).
	SessionStore core.SessionStore

	// Executor runs tool call batches (defaults to a parallel executor).
	Executor *dispatch.Executor

	// Router selects the initial agent for a session's first message.
	// Nil routes every session to DefaultAgent.
	Router coordinator.Router

	// DefaultAgent receives the conversation when routing fails.
	DefaultAgent string

	// MaxToolRounds caps reasoning round trips per user turn.
	MaxToolRounds int

	// MaxHandoffsPerTurn caps chained handoffs per user turn.
	MaxHandoffsPerTurn int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// RxMesh is the high-level façade aggregating the coordinator and services.
type RxMesh struct {
	opts        Options
	coordinator *coordinator.Coordinator
}

// New creates a new RxMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*RxMesh, error) {
	opts := Options{
		SessionStore:       session.NewInMemoryStore(),
		MaxToolRounds:      coordinator.DefaultMaxToolRounds,
		MaxHandoffsPerTurn: coordinator.DefaultMaxHandoffsPerTurn,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c, err := coordinator.New(func(o *coordinator.Options) {
		o.Store = opts.SessionStore
		o.Executor = opts.Executor
		o.Router = opts.Router
		o.DefaultAgent = opts.DefaultAgent
		o.MaxToolRounds = opts.MaxToolRounds
		o.MaxHandoffsPerTurn = opts.MaxHandoffsPerTurn
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &RxMesh{opts: opts, coordinator: c}, nil
}

// RegisterAgent adds an agent to the coordinator's roster.
func (m *RxMesh) RegisterAgent(a *agent.Agent) error { return m.coordinator.RegisterAgent(a) }

// RegisterAgents adds multiple agents, stopping at the first error.
func (m *RxMesh) RegisterAgents(agents ...*agent.Agent) error {
	for _, a := range agents {
		if err := m.coordinator.RegisterAgent(a); err != nil {
			return err
		}
	}
	return nil
}

// Coordinator exposes the underlying coordinator for advanced use.
func (m *RxMesh) Coordinator() *coordinator.Coordinator { return m.coordinator }

// StartSession creates a new session. An empty id gets a generated one.
func (m *RxMesh) StartSession(id string) (*core.Session, error) {
	return m.coordinator.StartSession(id)
}

// Send submits a user message to a session and drives the turn to completion.
func (m *RxMesh) Send(ctx context.Context, sessionID, text string) (*coordinator.TurnResult, error) {
	return m.coordinator.SubmitUserMessage(ctx, sessionID, text)
}

// Thread returns a copy of the session's conversation thread.
func (m *RxMesh) Thread(sessionID string) ([]core.Turn, error) {
	return m.coordinator.Thread(sessionID)
}

// ActiveAgent returns the session's current owner.
func (m *RxMesh) ActiveAgent(sessionID string) (string, error) {
	return m.coordinator.ActiveAgent(sessionID)
}

// Summary returns a compact description of the session.
func (m *RxMesh) Summary(sessionID string) (string, error) {
	return m.coordinator.Summary(sessionID)
}

// CloseSession marks the session closed. Closing twice is a no-op.
func (m *RxMesh) CloseSession(sessionID string) error {
	return m.coordinator.CloseSession(sessionID)
}
