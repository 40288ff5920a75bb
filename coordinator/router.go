package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/reasoning"
)

// Candidate describes a registered agent offered to the router.
type Candidate struct {
	Name        string
	Description string
}

// Router selects the initial agent for a session's first user message.
// Returning an error signals a routing failure; the coordinator then falls
// back to its default agent.
type Router interface {
	Route(ctx context.Context, sess *core.Session, message string, candidates []Candidate) (string, error)
}

// RouterFunc adapts a plain function to the Router interface.
type RouterFunc func(ctx context.Context, sess *core.Session, message string, candidates []Candidate) (string, error)

// Route implements Router.
func (f RouterFunc) Route(ctx context.Context, sess *core.Session, message string, candidates []Candidate) (string, error) {
	return f(ctx, sess, message, candidates)
}

// StaticRouter always selects the same agent.
func StaticRouter(name string) Router {
	return RouterFunc(func(context.Context, *core.Session, string, []Candidate) (string, error) {
		return name, nil
	})
}

// ReasonerRouter asks a reasoning collaborator to pick the best-suited agent
// via a forced select_agent function call.
type ReasonerRouter struct {
	reasoner reasoning.Reasoner
}

// NewReasonerRouter constructs a router backed by the given reasoner.
func NewReasonerRouter(r reasoning.Reasoner) *ReasonerRouter {
	return &ReasonerRouter{reasoner: r}
}

// Route implements Router.
func (r *ReasonerRouter) Route(ctx context.Context, _ *core.Session, message string, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no agents registered", core.ErrRoutingFailure)
	}

	names := make([]any, len(candidates))
	var sb strings.Builder
	sb.WriteString("You route incoming pharmacy benefit requests to the best-suited specialist agent. Available agents:\n")
	for i, c := range candidates {
		names[i] = c.Name
		fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.Description)
	}
	sb.WriteString("Call select_agent exactly once with your choice.")

	req := reasoning.Request{
		Instructions: sb.String(),
		Thread:       []core.Turn{core.NewUserTurn(message)},
		Tools: []reasoning.ToolDefinition{{
			Type: "function",
			Function: reasoning.FunctionDefinition{
				Name:        "select_agent",
				Description: "Select the agent that should handle this request.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"agent": map[string]any{
							"type":        "string",
							"description": "Name of the selected agent.",
							"enum":        names,
						},
					},
					"required": []string{"agent"},
				},
			},
		}},
	}

	resp, err := r.reasoner.Decide(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrRoutingFailure, err)
	}

	if name := extractSelection(resp, candidates); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: no agent selected", core.ErrRoutingFailure)
}

func extractSelection(resp reasoning.Response, candidates []Candidate) string {
	for _, fc := range resp.ToolCalls {
		if fc.Name != "select_agent" {
			continue
		}
		var args struct {
			Agent string `json:"agent"`
		}
		if json.Unmarshal([]byte(fc.Arguments), &args) == nil && args.Agent != "" {
			return args.Agent
		}
	}

	// Some models answer in plain text despite the forced tool.
	text := strings.TrimSpace(resp.Text)
	for _, c := range candidates {
		if strings.EqualFold(text, c.Name) {
			return c.Name
		}
	}
	return ""
}
