package agent

import (
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s *core.State) (string, error) { return f(s) }

// Instruction is either a text/template string rendered against the turn
// state or a dynamic provider.
//
// Templates see the keys index_status, memory_context and tools.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether neither text nor provider is set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text for the given state.
func (i Instruction) Resolve(s *core.State, tools []string) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s)
	}
	return util.RenderTemplate(i.text, templateData(s, tools))
}

func templateData(s *core.State, tools []string) map[string]any {
	data := map[string]any{
		"index_status":   string(core.IndexPending),
		"memory_context": "",
		"tools":          tools,
	}
	if s != nil {
		data["index_status"] = string(s.IndexReadiness)
		data["memory_context"] = s.MemoryContext
	}
	return data
}
