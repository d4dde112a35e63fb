package core

// Message is one entry of a conversation. Concrete message types implement the
// unexported isMessage marker so the set of variants stays closed.
type Message interface {
	isMessage()
	// Role reports the conversational role ("user", "assistant", "tool").
	Role() string
}

// Role constants used by message variants and model adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall describes a tool invocation requested by the model. ID is unique
// within the assistant message that produced it.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// UserMessage carries user input.
type UserMessage struct {
	Content string `json:"content"`
}

func (UserMessage) isMessage() {}

// Role implements Message.
func (UserMessage) Role() string { return RoleUser }

// AssistantMessage is a model response. Content may be empty when ToolCalls is
// non-empty.
type AssistantMessage struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (AssistantMessage) isMessage() {}

// Role implements Message.
func (AssistantMessage) Role() string { return RoleAssistant }

// HasToolCalls reports whether the message requests any tool execution.
func (m AssistantMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// ToolResultMessage answers exactly one prior ToolCall, correlated by CallID.
type ToolResultMessage struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
	IsError  bool   `json:"is_error,omitempty"`
}

func (ToolResultMessage) isMessage() {}

// Role implements Message.
func (ToolResultMessage) Role() string { return RoleTool }

// NewUserMessage creates a user message.
func NewUserMessage(content string) UserMessage { return UserMessage{Content: content} }

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(content string, calls ...ToolCall) AssistantMessage {
	return AssistantMessage{Content: content, ToolCalls: calls}
}
