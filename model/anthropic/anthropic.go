// Package anthropic provides a model.Model backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/internal/util"
	"github.com/hupe1980/studycoach/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate performs one Messages API call.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var (
		text  string
		calls []core.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			raw, err := json.Marshal(tu.Input)
			if err != nil {
				return nil, fmt.Errorf("%w: tool_use %s: %v", core.ErrModelProtocol, tu.ID, err)
			}
			args, err := model.ParseArguments(string(raw))
			if err != nil {
				return nil, fmt.Errorf("tool_use %s (%s): %w", tu.ID, tu.Name, err)
			}
			calls = append(calls, core.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}

	finish := "stop"
	if resp.StopReason != "" {
		finish = string(resp.StopReason)
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &model.Response{
		ID:           resp.ID,
		Message:      core.NewAssistantMessage(text, calls...),
		FinishReason: finish,
		Usage:        &model.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// buildMessages converts the conversation into Anthropic messages. Tool
// results become tool_result blocks; consecutive results share one user
// message so they directly follow the assistant's tool_use blocks.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var (
		out     []anthropic.MessageParam
		results []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}
	for _, msg := range msgs {
		switch mm := msg.(type) {
		case core.ToolResultMessage:
			results = append(results, anthropic.NewToolResultBlock(mm.CallID, mm.Content, mm.IsError))
		case core.UserMessage:
			flush()
			if mm.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(mm.Content)))
			}
		case core.AssistantMessage:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if mm.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(mm.Content))
			}
			for _, c := range mm.ToolCalls {
				args := c.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, args, c.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out
}

// buildTools converts tool definitions to Anthropic tool params.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := t.Function.Parameters["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = util.RequiredFields(t.Function.Parameters)
		tool := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if tool.OfTool != nil && t.Function.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Function.Description)
		}
		out[i] = tool
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == 408 || code == 429 || code >= 500:
		case code >= 400:
			return fmt.Errorf("%w: anthropic: %v", core.ErrModelProtocol, err)
		}
	}
	return model.WrapError("anthropic", err)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
