package core

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrModelUnavailable is returned by model adapters when the backend cannot be reached.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelProtocol is returned when a model response cannot be interpreted.
	ErrModelProtocol = errors.New("model protocol error")
	// ErrLoopBudgetExceeded is returned when the think/act cycle bound is exceeded.
	ErrLoopBudgetExceeded = errors.New("loop budget exceeded")
	// ErrCancelled reports a caller initiated cancellation.
	ErrCancelled = errors.New("turn cancelled")
	// ErrDuplicateToolName is returned when registering a name twice.
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrRegistrySealed is returned when registering after the registry was sealed.
	ErrRegistrySealed = errors.New("tool registry sealed")
	// ErrTurnConsumed is reported when a turn sequence is iterated a second time.
	ErrTurnConsumed = errors.New("turn already consumed")
)

// ErrorKind classifies failures so callers can branch without parsing strings.
type ErrorKind int

const (
	// KindNone marks the absence of an error.
	KindNone ErrorKind = iota
	// KindToolResolution is an unknown tool name.
	KindToolResolution
	// KindToolValidation is an argument/schema mismatch.
	KindToolValidation
	// KindToolExecution is a failure raised by a tool executor.
	KindToolExecution
	// KindReasoning is a model failure; fatal for the turn.
	KindReasoning
	// KindReflection is a non-fatal reflection anomaly.
	KindReflection
	// KindLoopBudget is an exceeded cycle bound; fatal for the turn.
	KindLoopBudget
	// KindCancelled is a caller cancellation; not a failure.
	KindCancelled
)

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindToolResolution:
		return "tool_resolution"
	case KindToolValidation:
		return "tool_validation"
	case KindToolExecution:
		return "tool_execution"
	case KindReasoning:
		return "reasoning"
	case KindReflection:
		return "reflection"
	case KindLoopBudget:
		return "loop_budget"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TurnError is a classified turn level failure.
type TurnError struct {
	Kind ErrorKind
	Err  error
}

// Error implements error.
func (e *TurnError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying error.
func (e *TurnError) Unwrap() error { return e.Err }

// NewTurnError wraps err with a kind.
func NewTurnError(kind ErrorKind, err error) *TurnError {
	return &TurnError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind carried by err. Context cancellation and
// deadline errors map to KindCancelled; anything else unclassified is
// KindReasoning.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrLoopBudgetExceeded):
		return KindLoopBudget
	default:
		return KindReasoning
	}
}
