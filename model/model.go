package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/studycoach/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object with properties and a required list.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// ToolNames returns the names of the tools offered in the request.
func (r Request) ToolNames() []string {
	out := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		out[i] = t.Function.Name
	}
	return out
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the complete answer of one model call.
type Response struct {
	ID           string                `json:"id"`
	Message      core.AssistantMessage `json:"message"`
	FinishReason string                `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage           `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model turns a message history plus offered tools into one assistant message.
// Failures wrap core.ErrModelUnavailable or core.ErrModelProtocol.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ParseArguments decodes a provider's JSON argument payload. An empty payload
// is an empty argument map.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: malformed tool arguments: %v", core.ErrModelProtocol, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// WrapError classifies a provider failure. Context errors pass through
// unchanged so callers can recognise cancellation; errors already carrying a
// model sentinel are kept; everything else becomes core.ErrModelUnavailable.
func WrapError(provider string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, core.ErrModelUnavailable), errors.Is(err, core.ErrModelProtocol):
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrModelUnavailable, provider, err)
}

// EncodeArguments renders tool arguments as a JSON object string.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Step is one scripted MockModel reply: either a message or an error.
type Step struct {
	Message core.AssistantMessage
	Err     error
}

// Reply is a convenience constructor for a scripted assistant message.
func Reply(content string, calls ...core.ToolCall) Step {
	return Step{Message: core.NewAssistantMessage(content, calls...)}
}

// Fail is a convenience constructor for a scripted failure.
func Fail(err error) Step { return Step{Err: err} }

// MockModel is a lightweight in-memory Model useful for tests and offline runs.
// Scripted steps are consumed in order; once exhausted it echoes the latest
// user input (or a canned response registered with AddResponse).
type MockModel struct {
	info      Info
	mu        sync.Mutex
	steps     []Step
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string, steps ...Step) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true},
		steps:     steps,
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends further steps.
func (m *MockModel) Script(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.steps) > 0 {
		step := m.steps[0]
		m.steps = m.steps[1:]
		if step.Err != nil {
			return nil, step.Err
		}
		return &Response{ID: core.NewID(), Message: step.Message, FinishReason: finishReason(step.Message)}, nil
	}

	var input string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if um, ok := req.Messages[i].(core.UserMessage); ok {
			input = um.Content
			break
		}
	}
	if input == "" {
		return nil, fmt.Errorf("%w: no user input provided", core.ErrModelProtocol)
	}
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return &Response{ID: core.NewID(), Message: core.NewAssistantMessage(full), FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func finishReason(m core.AssistantMessage) string {
	if m.HasToolCalls() {
		return "tool_calls"
	}
	return "stop"
}
