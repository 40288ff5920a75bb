package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_StateAccumulates(t *testing.T) {
	sess := NewSession("s1")

	sess.SetState("member_id", "DEMO123456")
	sess.ApplyStateDelta(map[string]any{"plan_id": "PLAN-GOLD-2025", "mfa": true})

	v, ok := sess.GetState("member_id")
	assert.True(t, ok)
	assert.Equal(t, "DEMO123456", v)

	snap := sess.StateSnapshot()
	assert.Len(t, snap, 3)

	// Snapshot is a copy; mutating it never touches the store.
	snap["member_id"] = "other"
	v, _ = sess.GetState("member_id")
	assert.Equal(t, "DEMO123456", v)
}

func TestSession_ThreadIsDefensiveCopy(t *testing.T) {
	sess := NewSession("s1")
	sess.AppendTurn(NewUserTurn("hello"))
	sess.AppendTurn(NewReplyTurn("pricing", "hi"))

	thread := sess.Thread()
	assert.Len(t, thread, 2)

	thread[0].Text = "mutated"
	assert.Equal(t, "hello", sess.Thread()[0].Text)
}

func TestSession_TurnConstructors(t *testing.T) {
	call := FunctionCall{ID: "c1", Name: "ndc_lookup", Arguments: `{"drug_name": "lisinopril"}`}

	tc := NewToolCallTurn("pricing", call)
	assert.Equal(t, TurnToolCall, tc.Kind)
	assert.Equal(t, "pricing", tc.Agent)
	assert.Equal(t, "ndc_lookup", tc.Call.Name)
	assert.NotEmpty(t, tc.ID)

	ok := NewToolResultTurn("pricing", "c1", "ndc_lookup", map[string]any{"total_found": 2}, nil)
	assert.False(t, ok.Result.Failed())

	failed := NewToolResultTurn("pricing", "c1", "ndc_lookup", nil, errors.New("backend down"))
	assert.True(t, failed.Result.Failed())
	assert.Equal(t, "backend down", failed.Result.Error)

	ho := NewHandoffTurn("pricing", "benefits", "coverage question")
	assert.Equal(t, TurnHandoff, ho.Kind)
	assert.Equal(t, "pricing", ho.Handoff.From)
	assert.Equal(t, "benefits", ho.Handoff.To)
}

func TestSession_Handoffs(t *testing.T) {
	sess := NewSession("s1")
	sess.AppendTurn(NewUserTurn("hello"))
	sess.AppendTurn(NewHandoffTurn("pricing", "benefits", "coverage"))
	sess.AppendTurn(NewHandoffTurn("benefits", "clinical", "interactions"))

	events := sess.Handoffs()
	assert.Len(t, events, 2)
	assert.Equal(t, "benefits", events[0].To)
	assert.Equal(t, "clinical", events[1].To)
}

func TestSession_StatusLifecycle(t *testing.T) {
	sess := NewSession("s1")
	assert.Equal(t, StatusActive, sess.GetStatus())
	assert.False(t, sess.Closed())

	sess.SetStatus(StatusClosed)
	assert.True(t, sess.Closed())
}

func TestSession_ConcurrentAccess(t *testing.T) {
	sess := NewSession("s1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sess.SetState("k", "v")
		}()
		go func() {
			defer wg.Done()
			sess.AppendTurn(NewUserTurn("msg"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, sess.Len())
}

func TestRoundLimiter(t *testing.T) {
	rl := NewRoundLimiter(2)
	assert.NoError(t, rl.Increment())
	assert.NoError(t, rl.Increment())

	err := rl.Increment()
	assert.ErrorIs(t, err, ErrLoopBudgetExceeded)
	assert.Equal(t, 3, rl.Count())
}

func TestRoundLimiter_Unlimited(t *testing.T) {
	rl := NewRoundLimiter(0)
	for i := 0; i < 50; i++ {
		assert.NoError(t, rl.Increment())
	}
	assert.Equal(t, -1, rl.Remaining())
}

func TestHandoffError(t *testing.T) {
	err := &HandoffError{Code: NoOpHandoffRejected, From: "pricing", To: "pricing"}
	assert.Contains(t, err.Error(), "NOOP_HANDOFF_REJECTED")

	violation := &CapabilityViolationError{Agent: "pricing", Calls: []FunctionCall{{ID: "call_9", Name: "rm_rf"}}}
	assert.Contains(t, violation.Error(), "rm_rf")
	assert.Contains(t, violation.Error(), "call_9")

	multi := &CapabilityViolationError{Agent: "pricing", Calls: []FunctionCall{
		{ID: "call_1", Name: "rm_rf"},
		{Name: "drop_tables"},
	}}
	assert.Contains(t, multi.Error(), "rm_rf (call call_1)")
	assert.Contains(t, multi.Error(), "drop_tables")
}
