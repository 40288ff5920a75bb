package core

// DecisionKind discriminates the three outcomes a reasoning step can yield.
type DecisionKind string

const (
	// DecisionToolCalls requests execution of one or more functions.
	DecisionToolCalls DecisionKind = "tool_calls"
	// DecisionHandoff requests transfer of conversation ownership.
	DecisionHandoff DecisionKind = "handoff"
	// DecisionReply completes the turn with a natural-language reply.
	DecisionReply DecisionKind = "reply"
)

// HandoffRequest is an agent's request to transfer conversation ownership
// to a named target. The coordinator validates it against the handoff
// topology before applying it; the context store is carried by reference
// and never copied or reset.
type HandoffRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason"`
	Summary string `json:"summary,omitempty"` // context summary for the receiving agent
}

// Decision is the translated output of one reasoning step. Exactly one of
// ToolCalls / Handoff / Reply is meaningful, selected by Kind.
type Decision struct {
	Kind      DecisionKind
	ToolCalls []FunctionCall
	Handoff   *HandoffRequest
	Reply     string
}

// ToolCallsDecision wraps a batch of function calls.
func ToolCallsDecision(calls []FunctionCall) Decision {
	return Decision{Kind: DecisionToolCalls, ToolCalls: calls}
}

// HandoffDecision wraps a handoff request.
func HandoffDecision(req HandoffRequest) Decision {
	return Decision{Kind: DecisionHandoff, Handoff: &req}
}

// ReplyDecision wraps a terminal reply.
func ReplyDecision(text string) Decision {
	return Decision{Kind: DecisionReply, Reply: text}
}
