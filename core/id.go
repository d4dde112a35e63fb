package core

import "github.com/google/uuid"

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

// NewCallID returns an identifier for tool calls that arrive without one.
func NewCallID() string { return "call_" + uuid.NewString() }
