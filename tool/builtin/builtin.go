// Package builtin provides the study assistant's stock tools: calculator,
// time_now, google_search, rag_search, read_memory and write_memory.
package builtin

import (
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/search"
	"github.com/hupe1980/studycoach/tool"
)

// Tool names.
const (
	CalculatorName  = "calculator"
	TimeName        = "time_now"
	SearchName      = "google_search"
	RAGName         = "rag_search"
	ReadMemoryName  = "read_memory"
	WriteMemoryName = "write_memory"
)

// Deps carries the collaborators of the stock tools. A nil dependency
// disables the tools that need it.
type Deps struct {
	Search    search.Provider
	Retrieval core.RetrievalStore
	Memory    core.MemoryStore
	// Now overrides the clock of time_now.
	Now func() time.Time
}

// Tools returns every tool whose dependencies are present, in a stable order.
func Tools(deps Deps) []tool.Tool {
	tools := []tool.Tool{Calculator(), Time(deps.Now)}
	if deps.Search != nil {
		tools = append(tools, WebSearch(deps.Search))
	}
	if deps.Retrieval != nil {
		tools = append(tools, RAGSearch(deps.Retrieval))
	}
	if deps.Memory != nil {
		tools = append(tools, ReadMemory(deps.Memory), WriteMemory(deps.Memory))
	}
	return tools
}

// Register adds Tools(deps) to the registry.
func Register(r *tool.Registry, deps Deps) error {
	for _, t := range Tools(deps) {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil || *v <= 0 {
		return def
	}
	return *v
}
