package testutil

import (
	"github.com/hupe1980/studycoach/core"
)

// ConversationBuilder provides a fluent helper for constructing message
// histories in tests.
// Example:
//
//	msgs := NewConversation().User("hi").Assistant("hello").Build()
type ConversationBuilder struct {
	msgs []core.Message
}

// NewConversation creates an empty builder.
func NewConversation() *ConversationBuilder { return &ConversationBuilder{} }

// User appends a user message (chainable).
func (b *ConversationBuilder) User(content string) *ConversationBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(content))
	return b
}

// Assistant appends an assistant message with optional tool calls (chainable).
func (b *ConversationBuilder) Assistant(content string, calls ...core.ToolCall) *ConversationBuilder {
	b.msgs = append(b.msgs, core.NewAssistantMessage(content, calls...))
	return b
}

// ToolResult appends a tool result answering callID (chainable).
func (b *ConversationBuilder) ToolResult(callID, name, content string) *ConversationBuilder {
	b.msgs = append(b.msgs, core.ToolResultMessage{CallID: callID, ToolName: name, Content: content})
	return b
}

// ToolError appends a failed tool result answering callID (chainable).
func (b *ConversationBuilder) ToolError(callID, name, content string) *ConversationBuilder {
	b.msgs = append(b.msgs, core.ToolResultMessage{CallID: callID, ToolName: name, Content: content, IsError: true})
	return b
}

// Build returns a copy of the accumulated messages.
func (b *ConversationBuilder) Build() []core.Message {
	out := make([]core.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Call builds a tool call from alternating key/value argument pairs.
func Call(id, name string, kv ...any) core.ToolCall {
	args := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			args[k] = kv[i+1]
		}
	}
	return core.ToolCall{ID: id, Name: name, Arguments: args}
}

// ToolCallIDs returns the ids of calls in order.
func ToolCallIDs(calls []core.ToolCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.ID
	}
	return out
}

// ResultIDs returns the call ids of every tool result message in msgs.
func ResultIDs(msgs []core.Message) []string {
	var out []string
	for _, m := range msgs {
		if r, ok := m.(core.ToolResultMessage); ok {
			out = append(out, r.CallID)
		}
	}
	return out
}
