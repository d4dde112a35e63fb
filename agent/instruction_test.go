package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studycoach/core"
)

func TestInstruction_Static(t *testing.T) {
	ins := NewInstructionFromText("plain prompt")
	require.True(t, ins.IsStatic())
	txt, err := ins.Resolve(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain prompt", txt)
}

func TestInstruction_Template(t *testing.T) {
	s := core.NewState(nil, core.IndexReady)
	s.MemoryContext = "Past learning records:\n1. likes examples"

	ins := NewInstructionFromText("index={{.index_status}} tools={{join \",\" .tools}}\n{{.memory_context}}")
	txt, err := ins.Resolve(s, []string{"calculator", "rag_search"})
	require.NoError(t, err)
	assert.Equal(t, "index=READY tools=calculator,rag_search\nPast learning records:\n1. likes examples", txt)

	txt, err = ins.Resolve(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, txt, "index=PENDING")
}

func TestInstruction_Provider(t *testing.T) {
	ins := NewInstructionFromFunc(func(s *core.State) (string, error) {
		return "messages=" + string(rune('0'+len(s.Messages))), nil
	})
	assert.False(t, ins.IsStatic())
	txt, err := ins.Resolve(core.NewState([]core.Message{core.NewUserMessage("x")}, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, "messages=1", txt)

	boom := NewInstructionFromFunc(func(*core.State) (string, error) { return "", errors.New("boom") })
	_, err = boom.Resolve(nil, nil)
	assert.EqualError(t, err, "boom")
}

func TestInstruction_BadTemplate(t *testing.T) {
	_, err := NewInstructionFromText("{{.index_status").Resolve(nil, nil)
	assert.Error(t, err)
}

func TestDefaultInstructionRenders(t *testing.T) {
	pending, err := NewInstructionFromText(DefaultInstruction).Resolve(core.NewState(nil, core.IndexPending), []string{"calculator"})
	require.NoError(t, err)
	assert.Contains(t, pending, "No material has been uploaded yet")
	assert.Contains(t, pending, "Available tools: calculator.")

	assert.True(t, NewInstructionFromText("").IsZero())
}
