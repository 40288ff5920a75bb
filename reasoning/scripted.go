package reasoning

import (
	"context"
	"sync"
)

// ScriptedReasoner replays a fixed sequence of responses. It is useful for
// tests and for examples that should run without provider credentials.
type ScriptedReasoner struct {
	mu       sync.Mutex
	steps    []Response
	idx      int
	fallback Response
}

// NewScriptedReasoner constructs a reasoner that returns the given responses
// in order. Once the script is exhausted every further Decide returns the
// fallback reply.
func NewScriptedReasoner(steps ...Response) *ScriptedReasoner {
	return &ScriptedReasoner{
		steps:    steps,
		fallback: Response{Text: "I have no further steps scripted.", FinishReason: "stop"},
	}
}

// WithFallback overrides the response returned after the script is exhausted.
func (s *ScriptedReasoner) WithFallback(resp Response) *ScriptedReasoner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = resp
	return s
}

// Decide returns the next scripted response.
func (s *ScriptedReasoner) Decide(ctx context.Context, _ Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.steps) {
		return s.fallback, nil
	}
	resp := s.steps[s.idx]
	s.idx++
	if resp.FinishReason == "" {
		if len(resp.ToolCalls) > 0 {
			resp.FinishReason = "tool_calls"
		} else {
			resp.FinishReason = "stop"
		}
	}
	return resp, nil
}

// Info implements Reasoner.
func (s *ScriptedReasoner) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}

// FuncReasoner adapts a plain function to the Reasoner interface. Handy for
// tests that need per-request behavior instead of a fixed script.
type FuncReasoner struct {
	Fn   func(ctx context.Context, req Request) (Response, error)
	Meta Info
}

// Decide delegates to the wrapped function.
func (f *FuncReasoner) Decide(ctx context.Context, req Request) (Response, error) {
	return f.Fn(ctx, req)
}

// Info implements Reasoner.
func (f *FuncReasoner) Info() Info {
	if f.Meta.Name == "" {
		return Info{Name: "func", Provider: "func", SupportsTools: true}
	}
	return f.Meta
}
