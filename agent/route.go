package agent

import "github.com/hupe1980/studycoach/core"

// Decision is the outcome of the routing function.
type Decision int

const (
	// Finalize ends the think/act loop and moves on to reflection.
	Finalize Decision = iota
	// ContinueWithTools executes the requested tool calls.
	ContinueWithTools
)

// String returns the decision name.
func (d Decision) String() string {
	if d == ContinueWithTools {
		return "CONTINUE_WITH_TOOLS"
	}
	return "FINALIZE"
}

// Route decides the next step from the latest message alone: tools are
// executed iff it is an assistant message requesting at least one call.
func Route(s *core.State) Decision {
	if msg, ok := s.LastAssistant(); ok && msg.HasToolCalls() {
		return ContinueWithTools
	}
	return Finalize
}
