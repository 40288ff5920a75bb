package agent

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/reasoning"
)

// HandoffToolName is the reserved function name agents use to request a
// transfer of conversation ownership. Calls to it never reach the dispatch
// loop; they are intercepted here and translated into a handoff decision.
const HandoffToolName = "request_handoff"

// handoffDefinition exposes the transfer function to the reasoner with the
// agent's legal targets as an enum. An empty target list yields no definition,
// so agents without targets cannot be talked into handing off.
func handoffDefinition(targets []string) reasoning.ToolDefinition {
	enum := make([]any, len(targets))
	for i, t := range targets {
		enum[i] = t
	}

	return reasoning.ToolDefinition{
		Type: "function",
		Function: reasoning.FunctionDefinition{
			Name: HandoffToolName,
			Description: "Transfer the conversation to a specialist agent when the request " +
				"falls outside your own capabilities. Summarize what you learned so far " +
				"so the receiving agent can continue without re-asking the user.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_type": map[string]any{
						"type":        "string",
						"description": "The agent to transfer the conversation to.",
						"enum":        enum,
					},
					"reason": map[string]any{
						"type":        "string",
						"description": "Why the transfer is needed.",
					},
					"context_summary": map[string]any{
						"type":        "string",
						"description": "Summary of the conversation so far for the receiving agent.",
					},
				},
				"required": []string{"agent_type", "reason"},
			},
		},
	}
}

// parseHandoffRequest decodes the arguments of a request_handoff call.
func parseHandoffRequest(from string, fc core.FunctionCall) (core.HandoffRequest, error) {
	var args struct {
		AgentType      string `json:"agent_type"`
		Reason         string `json:"reason"`
		ContextSummary string `json:"context_summary"`
	}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return core.HandoffRequest{}, fmt.Errorf("decode handoff arguments: %w", err)
		}
	}
	if args.AgentType == "" {
		return core.HandoffRequest{}, fmt.Errorf("handoff request missing agent_type")
	}
	return core.HandoffRequest{
		From:    from,
		To:      args.AgentType,
		Reason:  args.Reason,
		Summary: args.ContextSummary,
	}, nil
}
