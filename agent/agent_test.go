package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/reasoning"
	"github.com/hupe1980/rxmesh/tool"
)

func noopTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "Test tool",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return "ok", nil })
}

func TestAgent_Step_Reply(t *testing.T) {
	r := reasoning.NewScriptedReasoner(reasoning.Response{Text: "hello there"})
	a := New("pricing", r)

	sess := core.NewSession("s1")
	sess.AppendTurn(core.NewUserTurn("hi"))

	decision, err := a.Step(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, core.DecisionReply, decision.Kind)
	assert.Equal(t, "hello there", decision.Reply)
}

func TestAgent_Step_ToolCalls(t *testing.T) {
	r := reasoning.NewScriptedReasoner(reasoning.Response{ToolCalls: []core.FunctionCall{
		{ID: "c1", Name: "lookup", Arguments: `{}`},
	}})
	a := New("pricing", r, func(o *Options) {
		o.Tools = []tool.Tool{noopTool("lookup")}
	})

	decision, err := a.Step(context.Background(), core.NewSession("s1"))
	require.NoError(t, err)
	assert.Equal(t, core.DecisionToolCalls, decision.Kind)
	require.Len(t, decision.ToolCalls, 1)
	assert.Equal(t, "lookup", decision.ToolCalls[0].Name)
}

func TestAgent_Step_Handoff(t *testing.T) {
	r := reasoning.NewScriptedReasoner(reasoning.Response{ToolCalls: []core.FunctionCall{
		{ID: "c1", Name: HandoffToolName, Arguments: `{"agent_type": "benefits", "reason": "coverage question", "context_summary": "member verified"}`},
	}})
	a := New("pricing", r, func(o *Options) {
		o.HandoffTargets = []string{"benefits", "clinical"}
	})

	decision, err := a.Step(context.Background(), core.NewSession("s1"))
	require.NoError(t, err)
	assert.Equal(t, core.DecisionHandoff, decision.Kind)
	require.NotNil(t, decision.Handoff)
	assert.Equal(t, "pricing", decision.Handoff.From)
	assert.Equal(t, "benefits", decision.Handoff.To)
	assert.Equal(t, "member verified", decision.Handoff.Summary)
}

func TestAgent_Step_CapabilityViolation(t *testing.T) {
	r := reasoning.NewScriptedReasoner(reasoning.Response{ToolCalls: []core.FunctionCall{
		{ID: "c1", Name: "lookup", Arguments: `{}`},
		{ID: "c2", Name: "delete_database", Arguments: `{}`},
	}})
	a := New("pricing", r, func(o *Options) {
		o.Tools = []tool.Tool{noopTool("lookup")}
	})

	_, err := a.Step(context.Background(), core.NewSession("s1"))
	var violation *core.CapabilityViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "pricing", violation.Agent)
	require.Len(t, violation.Calls, 1)
	assert.Equal(t, "delete_database", violation.Calls[0].Name)
}

func TestAgent_Step_MalformedHandoffIsViolation(t *testing.T) {
	r := reasoning.NewScriptedReasoner(reasoning.Response{ToolCalls: []core.FunctionCall{
		{ID: "c1", Name: HandoffToolName, Arguments: `{"reason": "missing target"}`},
	}})
	a := New("pricing", r, func(o *Options) {
		o.HandoffTargets = []string{"benefits"}
	})

	_, err := a.Step(context.Background(), core.NewSession("s1"))
	var violation *core.CapabilityViolationError
	assert.True(t, errors.As(err, &violation))
}

func TestAgent_Step_Timeout(t *testing.T) {
	slow := &reasoning.FuncReasoner{Fn: func(ctx context.Context, _ reasoning.Request) (reasoning.Response, error) {
		select {
		case <-ctx.Done():
			return reasoning.Response{}, ctx.Err()
		case <-time.After(time.Second):
			return reasoning.Response{Text: "late"}, nil
		}
	}}

	a := New("pricing", slow, func(o *Options) {
		o.DecideTimeout = 10 * time.Millisecond
		o.RetryBackoff = time.Millisecond
	})

	_, err := a.Step(context.Background(), core.NewSession("s1"))
	assert.ErrorIs(t, err, core.ErrCollaboratorTimeout)
}

func TestAgent_Step_TimeoutRetriesOnce(t *testing.T) {
	attempts := 0
	flaky := &reasoning.FuncReasoner{Fn: func(ctx context.Context, _ reasoning.Request) (reasoning.Response, error) {
		attempts++
		if attempts == 1 {
			<-ctx.Done()
			return reasoning.Response{}, ctx.Err()
		}
		return reasoning.Response{Text: "recovered"}, nil
	}}

	a := New("pricing", flaky, func(o *Options) {
		o.DecideTimeout = 10 * time.Millisecond
		o.RetryBackoff = time.Millisecond
	})

	decision, err := a.Step(context.Background(), core.NewSession("s1"))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, core.DecisionReply, decision.Kind)
	assert.Equal(t, "recovered", decision.Reply)
}

func TestAgent_ToolDefinitionsIncludeHandoff(t *testing.T) {
	r := reasoning.NewScriptedReasoner()
	a := New("pricing", r, func(o *Options) {
		o.Tools = []tool.Tool{noopTool("lookup")}
		o.HandoffTargets = []string{"benefits"}
	})

	defs := a.toolDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "lookup", defs[0].Function.Name)
	assert.Equal(t, HandoffToolName, defs[1].Function.Name)

	// No targets, no handoff definition.
	b := New("solo", r)
	assert.Empty(t, b.toolDefinitions())
}

func TestAgent_ThreadWindow(t *testing.T) {
	captured := &reasoning.FuncReasoner{Fn: func(_ context.Context, req reasoning.Request) (reasoning.Response, error) {
		return reasoning.Response{Text: "ok", ToolCalls: nil, FinishReason: "stop"}, nil
	}}

	a := New("pricing", captured, func(o *Options) { o.MaxHistoryTurns = 2 })

	sess := core.NewSession("s1")
	for i := 0; i < 5; i++ {
		sess.AppendTurn(core.NewUserTurn("msg"))
	}

	assert.Len(t, a.threadWindow(sess), 2)
}

func TestInstruction_Template(t *testing.T) {
	sess := core.NewSession("s1")
	sess.SetState("member", "Pat")

	inst := NewInstructionFromTemplate("Assist {{.member}} with pricing.")
	text, err := inst.Resolve(sess)
	require.NoError(t, err)
	assert.Equal(t, "Assist Pat with pricing.", text)
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static text")
	assert.True(t, inst.IsStatic())

	text, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "static text", text)
}
