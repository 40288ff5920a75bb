// Package anthropic provides a reasoning.Reasoner backed by the Anthropic
// Messages API with tool calling.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/reasoning"
)

// Options configures the Anthropic reasoner adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Reasoner wraps the Anthropic Messages API behind the generic
// reasoning.Reasoner interface.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

// NewReasoner creates a new Anthropic reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Reasoner{client: &client, opts: opts}
}

// NewReasonerFromClient creates a new Anthropic reasoner from an existing client.
func NewReasonerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

// Decide performs a single non-streaming Messages call with tool calling.
func (r *Reasoner) Decide(ctx context.Context, req reasoning.Request) (reasoning.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       r.opts.Model,
		Messages:    buildMessages(req.Thread),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return reasoning.Response{}, fmt.Errorf("anthropic api error: %w", err)
	}

	out := reasoning.Response{FinishReason: "stop"}
	if resp.StopReason != "" {
		out.FinishReason = string(resp.StopReason)
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(raw)
				}
			}
			out.ToolCalls = append(out.ToolCalls, core.FunctionCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	return out, nil
}

// Info returns metadata describing this Anthropic reasoner implementation.
func (r *Reasoner) Info() reasoning.Info {
	return reasoning.Info{
		Name:          string(r.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

// buildMessages converts a conversation thread into Anthropic messages.
// Tool calls become assistant tool_use blocks; each result becomes a
// tool_result block in a following user message, as the API requires.
func buildMessages(thread []core.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	var pendingUse []anthropic.ContentBlockParamUnion
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingUse) > 0 {
			messages = append(messages, anthropic.NewAssistantMessage(pendingUse...))
			pendingUse = nil
		}
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, turn := range thread {
		switch turn.Kind {
		case core.TurnUserMessage:
			flush()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		case core.TurnAgentReply:
			flush()
			if turn.Text != "" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
			}
		case core.TurnToolCall:
			if turn.Call == nil {
				continue
			}
			if len(pendingResults) > 0 {
				flush()
			}
			var input any
			if turn.Call.Arguments != "" {
				if err := json.Unmarshal([]byte(turn.Call.Arguments), &input); err != nil {
					input = turn.Call.Arguments // fallback to string
				}
			}
			pendingUse = append(pendingUse, anthropic.NewToolUseBlock(turn.Call.ID, input, turn.Call.Name))
		case core.TurnToolResult:
			if turn.Result == nil {
				continue
			}
			if len(pendingUse) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(pendingUse...))
				pendingUse = nil
			}
			pendingResults = append(pendingResults,
				anthropic.NewToolResultBlock(turn.Result.CallID, resultText(*turn.Result), turn.Result.Failed()))
		case core.TurnHandoff:
			if turn.Handoff == nil {
				continue
			}
			flush()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(
				"Conversation transferred from %s to %s. Reason: %s",
				turn.Handoff.From, turn.Handoff.To, turn.Handoff.Reason,
			))))
		case core.TurnError:
			flush()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}
	flush()

	return messages
}

func resultText(res core.FunctionResult) string {
	if res.Failed() {
		return res.Error
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

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []reasoning.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tdef.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Function.Name)
	}

	return anthropicTools
}
