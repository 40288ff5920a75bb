package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/tool"
)

func collectResults(t *testing.T, exec *Executor, registry *tool.Registry, calls []core.FunctionCall) []core.Turn {
	t.Helper()
	var turns []core.Turn
	exec.Execute(context.Background(), core.NewSession("s1"), "tester", registry, calls, func(tr core.Turn) error {
		turns = append(turns, tr)
		return nil
	})
	return turns
}

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "Echoes its input",
		map[string]any{"type": "object", "properties": map[string]any{"v": map[string]any{"type": "string"}}},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"echo": args["v"]}, nil
		})
}

func TestExecutor_OneResultPerCall(t *testing.T) {
	exec := NewExecutor()
	registry := tool.NewRegistry(echoTool("echo"))

	calls := []core.FunctionCall{
		{ID: "c1", Name: "echo", Arguments: `{"v": "one"}`},
		{ID: "c2", Name: "echo", Arguments: `{"v": "two"}`},
		{ID: "c3", Name: "echo", Arguments: `{"v": "three"}`},
	}

	turns := collectResults(t, exec, registry, calls)
	require.Len(t, turns, 3)

	seen := map[string]bool{}
	for _, tr := range turns {
		assert.Equal(t, core.TurnToolResult, tr.Kind)
		assert.False(t, tr.Result.Failed())
		seen[tr.Result.CallID] = true
	}
	assert.Len(t, seen, 3)
}

func TestExecutor_CompletionOrder(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "Sleeps briefly",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			time.Sleep(80 * time.Millisecond)
			return "slow", nil
		})
	fast := tool.NewFunctionTool("fast", "Returns immediately",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return "fast", nil
		})

	exec := NewExecutor()
	registry := tool.NewRegistry(slow, fast)

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "fast"},
	})

	require.Len(t, turns, 2)
	// The fast call finishes first even though it was issued second.
	assert.Equal(t, "c2", turns[0].Result.CallID)
	assert.Equal(t, "c1", turns[1].Result.CallID)
}

func TestExecutor_PreserveOrder(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "Sleeps briefly",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow", nil
		})
	fast := tool.NewFunctionTool("fast", "Returns immediately",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return "fast", nil
		})

	exec := NewExecutor(func(o *Options) { o.PreserveOrder = true })
	registry := tool.NewRegistry(slow, fast)

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "fast"},
	})

	require.Len(t, turns, 2)
	assert.Equal(t, "c1", turns[0].Result.CallID)
	assert.Equal(t, "c2", turns[1].Result.CallID)
}

func TestExecutor_UnknownTool(t *testing.T) {
	exec := NewExecutor()
	registry := tool.NewRegistry()

	turns := collectResults(t, exec, registry, []core.FunctionCall{{ID: "c1", Name: "missing"}})
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Result.Failed())
	assert.Contains(t, turns[0].Result.Error, tool.CodeUnknownTool)
}

func TestExecutor_RetryOnce(t *testing.T) {
	var attempts atomic.Int32
	flaky := tool.NewFunctionTool("flaky", "Fails on the first attempt",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("transient failure")
			}
			return "recovered", nil
		})

	exec := NewExecutor(func(o *Options) { o.RetryBackoff = 5 * time.Millisecond })
	registry := tool.NewRegistry(flaky)

	turns := collectResults(t, exec, registry, []core.FunctionCall{{ID: "c1", Name: "flaky"}})
	require.Len(t, turns, 1)
	assert.False(t, turns[0].Result.Failed())
	assert.Equal(t, "recovered", turns[0].Result.Payload)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestExecutor_NoRetryOnValidationError(t *testing.T) {
	var attempts atomic.Int32
	strict := tool.NewFunctionTool("strict", "Requires v",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"v": map[string]any{"type": "string"}},
			"required":   []string{"v"},
		},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			attempts.Add(1)
			return "ok", nil
		})

	exec := NewExecutor(func(o *Options) { o.RetryBackoff = time.Millisecond })
	registry := tool.NewRegistry(strict)

	turns := collectResults(t, exec, registry, []core.FunctionCall{{ID: "c1", Name: "strict", Arguments: `{}`}})
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Result.Failed())
	assert.Contains(t, turns[0].Result.Error, tool.CodeValidationError)
	assert.Equal(t, int32(0), attempts.Load())
}

func TestExecutor_Timeout(t *testing.T) {
	var attempts atomic.Int32
	hang := tool.NewFunctionTool("hang", "Never returns in time",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			attempts.Add(1)
			select {
			case <-tc.Context().Done():
				return nil, tc.Context().Err()
			case <-time.After(time.Second):
				return "late", nil
			}
		})

	exec := NewExecutor(func(o *Options) {
		o.CallTimeout = 20 * time.Millisecond
		o.RetryBackoff = time.Millisecond
	})
	registry := tool.NewRegistry(hang)

	turns := collectResults(t, exec, registry, []core.FunctionCall{{ID: "c1", Name: "hang"}})
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Result.Failed())
	assert.Contains(t, turns[0].Result.Error, tool.CodeTimeout)
	// One retry after the first timeout.
	assert.Equal(t, int32(2), attempts.Load())
}

func TestExecutor_PanicRecovery(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "Panics",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			panic("kaboom")
		})

	exec := NewExecutor(func(o *Options) { o.RetryBackoff = time.Millisecond })
	registry := tool.NewRegistry(boom)

	turns := collectResults(t, exec, registry, []core.FunctionCall{{ID: "c1", Name: "boom"}})
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Result.Failed())
	assert.Contains(t, turns[0].Result.Error, "panic")
}

// -------------------- Dependency Tests --------------------

func TestExecutor_ResultReferenceField(t *testing.T) {
	lookup := tool.NewFunctionTool("lookup", "Returns an ndc",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return map[string]any{"ndc": "00093-7155-98"}, nil
		})

	var gotNDC atomic.Value
	price := tool.NewFunctionTool("price", "Prices an ndc",
		map[string]any{"type": "object", "properties": map[string]any{"ndc": map[string]any{"type": "string"}}},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			gotNDC.Store(args["ndc"])
			return map[string]any{"price": 4.20}, nil
		})

	exec := NewExecutor()
	registry := tool.NewRegistry(lookup, price)

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "lookup"},
		{ID: "c2", Name: "price", Arguments: `{"ndc": "$result:c1.ndc"}`},
	})

	require.Len(t, turns, 2)
	for _, tr := range turns {
		assert.False(t, tr.Result.Failed(), "call %s failed: %s", tr.Result.CallID, tr.Result.Error)
	}
	assert.Equal(t, "00093-7155-98", gotNDC.Load())
}

func TestExecutor_ResultReferenceUnknownCall(t *testing.T) {
	exec := NewExecutor()
	registry := tool.NewRegistry(echoTool("echo"))

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "echo", Arguments: `{"v": "$result:nope.field"}`},
	})

	require.Len(t, turns, 1)
	assert.True(t, turns[0].Result.Failed())
	assert.Contains(t, turns[0].Result.Error, tool.CodeDependencyError)
}

func TestExecutor_ResultReferenceCycle(t *testing.T) {
	exec := NewExecutor()
	registry := tool.NewRegistry(echoTool("echo"))

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "echo", Arguments: `{"v": "$result:c2.echo"}`},
		{ID: "c2", Name: "echo", Arguments: `{"v": "$result:c1.echo"}`},
	})

	require.Len(t, turns, 2)
	for _, tr := range turns {
		assert.True(t, tr.Result.Failed())
		assert.Contains(t, tr.Result.Error, tool.CodeDependencyError)
	}
}

func TestExecutor_ResultReferenceFailedProducer(t *testing.T) {
	fail := tool.NewFunctionTool("fail", "Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, tool.NewToolError("fail", "backend down", tool.CodeExecutionError)
		})

	exec := NewExecutor(func(o *Options) { o.RetryBackoff = time.Millisecond })
	registry := tool.NewRegistry(fail, echoTool("echo"))

	turns := collectResults(t, exec, registry, []core.FunctionCall{
		{ID: "c1", Name: "fail"},
		{ID: "c2", Name: "echo", Arguments: `{"v": "$result:c1.x"}`},
	})

	require.Len(t, turns, 2)
	byID := map[string]core.Turn{}
	for _, tr := range turns {
		byID[tr.Result.CallID] = tr
	}
	assert.True(t, byID["c1"].Result.Failed())
	assert.True(t, byID["c2"].Result.Failed())
	assert.Contains(t, byID["c2"].Result.Error, tool.CodeDependencyError)
}

func TestPlanStages(t *testing.T) {
	calls := []core.FunctionCall{
		{ID: "a", Name: "t"},
		{ID: "b", Name: "t", Arguments: `{"v": "$result:a"}`},
		{ID: "c", Name: "t"},
	}

	stages, planErrs := planStages(calls)
	assert.Empty(t, planErrs)
	require.Len(t, stages, 2)
	assert.Len(t, stages[0], 2) // a and c run together
	assert.Equal(t, "b", stages[1][0].ID)
}

func TestParseResultRef(t *testing.T) {
	ref, ok := parseResultRef("$result:c1.ndc")
	assert.True(t, ok)
	assert.Equal(t, "c1", ref.callID)
	assert.Equal(t, "ndc", ref.field)

	ref, ok = parseResultRef("$result:c1")
	assert.True(t, ok)
	assert.Empty(t, ref.field)

	_, ok = parseResultRef("plain value")
	assert.False(t, ok)

	_, ok = parseResultRef("$result:")
	assert.False(t, ok)
}
