// Package dispatch executes batches of function calls against an agent's tool
// registry. It resolves argument references between calls in the same batch,
// runs independent calls in parallel, applies per-call timeouts with a single
// retry, and emits exactly one result turn per call.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/logging"
	"github.com/hupe1980/rxmesh/tool"
)

// Options configures the parallel executor.
type Options struct {
	// MaxParallel caps concurrent tool executions within a stage.
	// 0 or negative means no explicit limit.
	MaxParallel int

	// PreserveOrder buffers results and emits them in the order the calls
	// were issued. The default emits in completion order.
	PreserveOrder bool

	// CallTimeout bounds a single tool execution attempt. 0 disables the
	// per-call deadline.
	CallTimeout time.Duration

	// RetryBackoff is the pause before the single retry of a failed call.
	RetryBackoff time.Duration

	// Logger receives structured execution logs.
	Logger logging.Logger
}

// Executor runs function call batches for the coordinator's dispatch loop.
//
// Guarantees:
//   - Respects ctx cancellation
//   - Never panics (recovers internally and reports an error result)
//   - Emits exactly one result turn per incoming call
//   - Calls referencing earlier results run only after their producers
type Executor struct {
	opts Options
}

// NewExecutor constructs an executor with the given options.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{
		CallTimeout:  30 * time.Second,
		RetryBackoff: 200 * time.Millisecond,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Executor{opts: opts}
}

// Execute runs all calls in the batch and emits one tool result turn per call
// through emit. Results for independent calls are emitted as they complete
// unless PreserveOrder is set. The agent name is recorded on every emitted
// turn; sess provides the context store surfaced to handlers.
func (e *Executor) Execute(
	ctx context.Context,
	sess *core.Session,
	agent string,
	registry *tool.Registry,
	calls []core.FunctionCall,
	emit func(core.Turn) error,
) {
	n := len(calls)
	if n == 0 {
		return
	}

	stages, planErrs := planStages(calls)

	var (
		mu       sync.Mutex
		resolved = make(map[string]any) // callID -> payload of successful calls
		ordered  = make(map[string]core.Turn)
	)

	deliver := func(t core.Turn) {
		mu.Lock()
		defer mu.Unlock()
		if e.opts.PreserveOrder {
			ordered[t.Result.CallID] = t
			return
		}
		if err := emit(t); err != nil {
			e.opts.Logger.Error("dispatch.emit.error", "call_id", t.Result.CallID, "error", err.Error())
		}
	}

	// Calls that could not be planned fail without executing.
	for _, fc := range calls {
		if perr, ok := planErrs[fc.ID]; ok {
			deliver(core.NewToolResultTurn(agent, fc.ID, fc.Name,
				nil, tool.NewToolError(fc.Name, perr.Error(), tool.CodeDependencyError)))
		}
	}

	maxPar := e.opts.MaxParallel
	batchStart := time.Now()

	for _, stage := range stages {
		if ctx.Err() != nil {
			e.failRemaining(ctx, agent, stage, resolved, &mu, deliver)
			continue
		}

		par := maxPar
		if par <= 0 || par > len(stage) {
			par = len(stage)
		}
		sem := make(chan struct{}, par)

		var wg sync.WaitGroup
		for _, fc := range stage {
			wg.Add(1)
			sem <- struct{}{}
			go func(fc core.FunctionCall) {
				defer wg.Done()
				defer func() { <-sem }()

				payload, err := e.executeCall(ctx, sess, agent, registry, fc, func(id string) (any, bool) {
					mu.Lock()
					defer mu.Unlock()
					p, ok := resolved[id]
					return p, ok
				})
				if err == nil {
					mu.Lock()
					resolved[fc.ID] = payload
					mu.Unlock()
				}
				deliver(core.NewToolResultTurn(agent, fc.ID, fc.Name, payload, err))
			}(fc)
		}
		wg.Wait()
	}

	if e.opts.PreserveOrder {
		mu.Lock()
		for _, fc := range calls {
			t, ok := ordered[fc.ID]
			if !ok {
				continue
			}
			if err := emit(t); err != nil {
				e.opts.Logger.Error("dispatch.emit.error", "call_id", fc.ID, "error", err.Error())
			}
		}
		mu.Unlock()
	}

	e.opts.Logger.Debug(
		"dispatch.batch.complete",
		"agent", agent,
		"count", n,
		"stages", len(stages),
		"preserve_order", e.opts.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// failRemaining emits cancellation results for a stage skipped because the
// batch context ended.
func (e *Executor) failRemaining(
	ctx context.Context,
	agent string,
	stage []core.FunctionCall,
	resolved map[string]any,
	mu *sync.Mutex,
	deliver func(core.Turn),
) {
	for _, fc := range stage {
		mu.Lock()
		_, done := resolved[fc.ID]
		mu.Unlock()
		if done {
			continue
		}
		deliver(core.NewToolResultTurn(agent, fc.ID, fc.Name,
			nil, tool.NewToolError(fc.Name, ctx.Err().Error(), tool.CodeExecutionError)))
	}
}

// executeCall resolves argument references, runs the tool with the configured
// timeout and retries once on a transient failure.
func (e *Executor) executeCall(
	ctx context.Context,
	sess *core.Session,
	agent string,
	registry *tool.Registry,
	fc core.FunctionCall,
	lookup func(callID string) (any, bool),
) (any, error) {
	args, err := resolveArguments(fc, lookup)
	if err != nil {
		return nil, tool.NewToolError(fc.Name, err.Error(), tool.CodeDependencyError)
	}

	impl, ok := registry.Lookup(fc.Name)
	if !ok {
		return nil, tool.NewToolError(fc.Name, "tool not registered", tool.CodeUnknownTool)
	}

	payload, err := e.runOnce(ctx, sess, agent, impl, fc, args)
	if err == nil || !retryable(err) {
		return payload, err
	}

	e.opts.Logger.Warn("dispatch.call.retry",
		"agent", agent, "tool", fc.Name, "call_id", fc.ID, "error", err.Error())

	select {
	case <-ctx.Done():
		return nil, tool.NewToolError(fc.Name, ctx.Err().Error(), tool.CodeExecutionError)
	case <-time.After(e.opts.RetryBackoff):
	}

	return e.runOnce(ctx, sess, agent, impl, fc, args)
}

// runOnce performs a single bounded tool execution attempt with panic safety.
func (e *Executor) runOnce(
	ctx context.Context,
	sess *core.Session,
	agent string,
	impl tool.Tool,
	fc core.FunctionCall,
	args string,
) (any, error) {
	callCtx := ctx
	cancel := func() {}
	if e.opts.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.opts.CallTimeout)
	}
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: tool.NewToolError(fc.Name, fmt.Sprintf("panic: %v", r), tool.CodeExecutionError)}
				e.opts.Logger.Error("dispatch.call.panic",
					"agent", agent, "tool", fc.Name, "recover", r, "stack", string(debug.Stack()))
			}
			done <- out
		}()

		toolCtx := core.NewToolContext(callCtx, sess, agent, fc.ID, e.opts.Logger)
		argMap, err := decodeArgs(args)
		if err != nil {
			out = outcome{err: tool.NewToolError(fc.Name, err.Error(), tool.CodeValidationError)}
			return
		}
		payload, err := impl.Call(toolCtx, argMap)
		out = outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		e.opts.Logger.Info("dispatch.call.executed",
			"agent", agent,
			"tool", fc.Name,
			"call_id", fc.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", out.err != nil,
		)
		return out.payload, out.err
	case <-callCtx.Done():
		e.opts.Logger.Warn("dispatch.call.timeout",
			"agent", agent, "tool", fc.Name, "call_id", fc.ID)
		return nil, tool.NewToolError(fc.Name, callCtx.Err().Error(), tool.CodeTimeout)
	}
}

func decodeArgs(args string) (map[string]any, error) {
	if args == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return m, nil
}

// retryable reports whether a single retry is worthwhile. Validation errors,
// unknown tools and unresolvable references fail the same way every time.
func retryable(err error) bool {
	toolErr, ok := err.(*tool.ToolError)
	if !ok {
		return true
	}
	switch toolErr.Code {
	case tool.CodeValidationError, tool.CodeUnknownTool, tool.CodeDependencyError:
		return false
	default:
		return true
	}
}
