package core

import (
	"fmt"
	"sync"
)

// CycleBudget enforces a maximum number of THINK/ACT cycles per turn.
type CycleBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCycleBudget creates a budget allowing max cycles.
// If max <= 0, unlimited cycles are allowed.
func NewCycleBudget(max int) *CycleBudget {
	return &CycleBudget{max: max}
}

// Increment records one more cycle and returns ErrLoopBudgetExceeded once the
// bound is passed.
func (b *CycleBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("%w: more than %d think/act cycles", ErrLoopBudgetExceeded, b.max)
	}

	return nil
}

// Count returns the number of cycles recorded so far.
func (b *CycleBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Max returns the configured bound.
func (b *CycleBudget) Max() int { return b.max }
