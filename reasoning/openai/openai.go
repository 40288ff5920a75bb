// Package openai provides a reasoning.Reasoner backed by the OpenAI Chat
// Completions API (including function/tool calling). It adapts the engine's
// normalized Request/Response structures into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/reasoning"
)

// Options configure the OpenAI reasoner adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Reasoner wraps the OpenAI Chat Completions API behind the generic
// reasoning.Reasoner interface.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

// NewReasoner creates a new OpenAI reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	client := openai.NewClient()
	return NewReasonerFromClient(&client, optFns...)
}

// NewReasonerFromClient creates a new OpenAI reasoner from an existing client.
func NewReasonerFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Decide performs a single non-streaming completion with tool calling.
func (r *Reasoner) Decide(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	params := r.buildParams(req, buildMessages(req))

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return reasoning.Response{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return reasoning.Response{}, fmt.Errorf("no choices returned")
	}

	ch0 := resp.Choices[0]
	out := reasoning.Response{
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Info implements reasoning.Reasoner.
func (r *Reasoner) Info() reasoning.Info {
	return reasoning.Info{
		Name:          r.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// buildMessages converts a conversation thread into OpenAI chat messages.
// Consecutive tool call turns by the same agent collapse into one assistant
// message carrying all tool calls, matching how the API returned them.
func buildMessages(req reasoning.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	var pendingCalls []openai.ChatCompletionMessageToolCallParam
	flushCalls := func() {
		if len(pendingCalls) == 0 {
			return
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: pendingCalls,
			},
		})
		pendingCalls = nil
	}

	for _, turn := range req.Thread {
		if turn.Kind != core.TurnToolCall {
			flushCalls()
		}

		switch turn.Kind {
		case core.TurnUserMessage:
			messages = append(messages, openai.UserMessage(turn.Text))
		case core.TurnAgentReply:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		case core.TurnToolCall:
			if turn.Call == nil {
				continue
			}
			pendingCalls = append(pendingCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   turn.Call.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      turn.Call.Name,
					Arguments: turn.Call.Arguments,
				},
			})
		case core.TurnToolResult:
			if turn.Result == nil {
				continue
			}
			messages = append(messages, openai.ToolMessage(resultText(*turn.Result), turn.Result.CallID))
		case core.TurnHandoff:
			if turn.Handoff == nil {
				continue
			}
			messages = append(messages, openai.SystemMessage(fmt.Sprintf(
				"Conversation transferred from %s to %s. Reason: %s",
				turn.Handoff.From, turn.Handoff.To, turn.Handoff.Reason,
			)))
		case core.TurnError:
			messages = append(messages, openai.SystemMessage(turn.Text))
		}
	}
	flushCalls()

	return messages
}

// resultText serializes a function result for the tool message body.
func resultText(res core.FunctionResult) string {
	if res.Failed() {
		return fmt.Sprintf(`{"error": %q}`, res.Error)
	}
	if s, ok := res.Payload.(string); ok {
		return s
	}
	raw, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Sprintf("%v", res.Payload)
	}
	return string(raw)
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (r *Reasoner) buildParams(
	req reasoning.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}
