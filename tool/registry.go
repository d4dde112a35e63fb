package tool

import (
	"fmt"
	"sync"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/model"
)

// Resolution is the result of looking up a tool name. It is either Resolved
// or Unresolved.
type Resolution interface{ isResolution() }

// Resolved carries a registered tool.
type Resolved struct{ Tool Tool }

// Unresolved carries a name that is not registered.
type Unresolved struct{ Name string }

func (Resolved) isResolution()   {}
func (Unresolved) isResolution() {}

// Registry maps tool names to tools. It is populated at startup and sealed
// before serving turns; a sealed registry is read-only and freely shared.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	sealed bool
}

// NewRegistry creates an empty registry, optionally pre-populated.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names act as primary keys.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %q: %w", t.Name(), core.ErrRegistrySealed)
	}
	if t.Name() == "" {
		return fmt.Errorf("register: tool name must not be empty")
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("register %q: %w", t.Name(), core.ErrDuplicateToolName)
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Seal makes the registry immutable.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve looks a name up.
func (r *Registry) Resolve(name string) Resolution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tools[name]; ok {
		return Resolved{Tool: t}
	}
	return Unresolved{Name: name}
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions returns model-facing schemas for the named tools, or for every
// tool when no names are given. Unknown names are skipped.
func (r *Registry) Definitions(names ...string) []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(names) == 0 {
		names = r.order
	}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			continue
		}
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
