package core

import "fmt"

// IndexReadiness reports whether the document retrieval index has content.
type IndexReadiness string

const (
	// IndexReady means at least one document has been indexed.
	IndexReady IndexReadiness = "READY"
	// IndexPending means no document is indexed yet.
	IndexPending IndexReadiness = "PENDING"
)

// State is the conversation threaded through one turn. It is owned by a single
// loop execution; Messages is append-only for the duration of the turn.
// PendingMemoryQuery is resolved once into MemoryContext before the first
// reasoning step.
type State struct {
	Messages           []Message
	IndexReadiness     IndexReadiness
	PendingMemoryQuery string
	MemoryContext      string
}

// NewState seeds a state with a copy of prior history.
func NewState(prior []Message, readiness IndexReadiness) *State {
	msgs := make([]Message, len(prior), len(prior)+8)
	copy(msgs, prior)
	if readiness == "" {
		readiness = IndexPending
	}
	return &State{Messages: msgs, IndexReadiness: readiness}
}

// Append adds a delta of messages to the end of the history.
func (s *State) Append(delta ...Message) {
	s.Messages = append(s.Messages, delta...)
}

// Last returns the most recent message, or nil for an empty history.
func (s *State) Last() Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastAssistant returns the latest message if it is an assistant message.
func (s *State) LastAssistant() (AssistantMessage, bool) {
	m, ok := s.Last().(AssistantMessage)
	return m, ok
}

// Snapshot returns a copy of the history safe to hand to callers.
func (s *State) Snapshot() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// ValidateCorrespondence checks that every tool result answers a call of the
// immediately preceding assistant message, once each and in call order.
func ValidateCorrespondence(messages []Message) error {
	var pending []ToolCall
	for i, m := range messages {
		switch msg := m.(type) {
		case AssistantMessage:
			if len(pending) > 0 {
				return fmt.Errorf("message %d: %d tool call(s) left unanswered (next %q)", i, len(pending), pending[0].ID)
			}
			pending = append([]ToolCall(nil), msg.ToolCalls...)
		case ToolResultMessage:
			if len(pending) == 0 {
				return fmt.Errorf("message %d: tool result %q has no matching call", i, msg.CallID)
			}
			if pending[0].ID != msg.CallID {
				return fmt.Errorf("message %d: tool result %q out of order, expected %q", i, msg.CallID, pending[0].ID)
			}
			pending = pending[1:]
		case UserMessage:
			if len(pending) > 0 {
				return fmt.Errorf("message %d: %d tool call(s) left unanswered (next %q)", i, len(pending), pending[0].ID)
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d tool call(s) left unanswered (next %q)", len(pending), pending[0].ID)
	}
	return nil
}
