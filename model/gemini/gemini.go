// Package gemini provides a model.Model backed by the Google Gemini API
// through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/model"
)

const defaultModel = "gemini-2.5-flash"

// Options configure the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int32
	APIKey          string
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a Gemini model. An empty APIKey lets the SDK read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{Model: defaultModel, Temperature: 0.7, MaxOutputTokens: 4096}
}

// Generate performs one GenerateContent call.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, convertMessages(req.Messages), m.buildConfig(req))
	if err != nil {
		return nil, model.WrapError("gemini", err)
	}
	return fromResponse(resp)
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	temp := float32(m.opts.Temperature)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: m.opts.MaxOutputTokens,
		Temperature:     &temp,
		Tools:           convertTools(req.Tools),
	}
	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instructions}}}
	}
	return config
}

// convertMessages converts the conversation into genai contents. Consecutive
// tool results are grouped into one user content.
func convertMessages(msgs []core.Message) []*genai.Content {
	var (
		out     []*genai.Content
		pending *genai.Content
	)
	flush := func() {
		if pending != nil {
			out = append(out, pending)
			pending = nil
		}
	}
	for _, msg := range msgs {
		switch mm := msg.(type) {
		case core.UserMessage:
			flush()
			out = append(out, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: mm.Content}}})
		case core.AssistantMessage:
			flush()
			var parts []*genai.Part
			if mm.Content != "" {
				parts = append(parts, &genai.Part{Text: mm.Content})
			}
			for _, c := range mm.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: c.Arguments}})
			}
			out = append(out, &genai.Content{Role: "model", Parts: parts})
		case core.ToolResultMessage:
			if pending == nil {
				pending = &genai.Content{Role: "user"}
			}
			pending.Parts = append(pending.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       mm.CallID,
				Name:     mm.ToolName,
				Response: responseMap(mm),
			}})
		}
	}
	flush()
	return out
}

// responseMap uses the decoded outcome object when the content is JSON.
func responseMap(m core.ToolResultMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(m.Content), &obj); err == nil && obj != nil {
		return obj
	}
	if m.IsError {
		return map[string]any{"error": m.Content}
	}
	return map[string]any{"output": m.Content}
}

func convertTools(tools []model.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Function.Name,
			Description:          t.Function.Description,
			ParametersJsonSchema: t.Function.Parameters,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// fromResponse reads the first candidate. Thought parts are skipped; calls
// without an id get a generated one.
func fromResponse(resp *genai.GenerateContentResponse) (*model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", core.ErrModelProtocol)
	}
	cand := resp.Candidates[0]
	var (
		text  string
		calls []core.ToolCall
	)
	for _, p := range cand.Content.Parts {
		switch {
		case p == nil || p.Thought:
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = core.NewCallID()
			}
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, core.ToolCall{ID: id, Name: p.FunctionCall.Name, Arguments: args})
		default:
			text += p.Text
		}
	}

	out := &model.Response{
		ID:           resp.ResponseID,
		Message:      core.NewAssistantMessage(text, calls...),
		FinishReason: string(cand.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
