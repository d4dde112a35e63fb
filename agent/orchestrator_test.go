package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/embedding"
	"github.com/hupe1980/studycoach/internal/testutil"
	"github.com/hupe1980/studycoach/memory"
	"github.com/hupe1980/studycoach/model"
	"github.com/hupe1980/studycoach/tool"
	"github.com/hupe1980/studycoach/tool/builtin"
	"github.com/hupe1980/studycoach/vectorstore"
)

type fixture struct {
	model    *model.MockModel
	memories *memory.Store
	orch     *Orchestrator
}

func newFixture(t *testing.T, steps []model.Step, optFns ...func(o *Options)) *fixture {
	t.Helper()
	mem := memory.New(vectorstore.NewInMemory("memories"), embedding.NewHashEmbedder(64))
	reg, err := tool.NewRegistry(builtin.Calculator(), builtin.WriteMemory(mem))
	require.NoError(t, err)
	m := model.NewMockModel("mock", "mock", steps...)
	return &fixture{model: m, memories: mem, orch: New(m, reg, optFns...)}
}

func collect(seq func(func(Snapshot) bool)) []Snapshot {
	var out []Snapshot
	for s := range seq {
		out = append(out, s)
	}
	return out
}

func phases(snaps []Snapshot) []Phase {
	out := make([]Phase, len(snaps))
	for i, s := range snaps {
		out[i] = s.Phase
	}
	return out
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		msgs []core.Message
		want Decision
	}{
		{"empty history", nil, Finalize},
		{"user last", testutil.NewConversation().User("hi").Build(), Finalize},
		{"assistant content", testutil.NewConversation().User("hi").Assistant("hello").Build(), Finalize},
		{"assistant empty", testutil.NewConversation().User("hi").Assistant("").Build(), Finalize},
		{"assistant calls", testutil.NewConversation().User("hi").Assistant("", testutil.Call("c1", "calculator")).Build(), ContinueWithTools},
		{"tool result last", testutil.NewConversation().User("hi").Assistant("", testutil.Call("c1", "calculator")).ToolResult("c1", "calculator", "{}").Build(), Finalize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(core.NewState(tt.msgs, core.IndexReady)))
		})
	}
	assert.Equal(t, "CONTINUE_WITH_TOOLS", ContinueWithTools.String())
	assert.Equal(t, "FINALIZE", Finalize.String())
}

func TestRunTurn_CalculatorRoundTrip(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("", testutil.Call("call_1", "calculator", "expression", "123+456")),
		model.Reply("123+456 = 579"),
		model.Reply("", testutil.Call("m1", "write_memory", "summary", "practised addition")),
	})

	snaps := collect(f.orch.RunTurn(context.Background(), nil, "what is 123+456"))
	require.NotEmpty(t, snaps)
	assert.Equal(t, []Phase{PhaseAct, PhaseThink, PhaseDone}, phases(snaps))
	assert.Equal(t, ToolStatusMessage, snaps[0].Status)
	assert.Equal(t, ToolStatusMessage, snaps[0].Display())
	assert.Empty(t, snaps[1].Status)

	final := snaps[len(snaps)-1]
	require.True(t, final.Final)
	require.NoError(t, final.Err)
	assert.Equal(t, OutcomeSuccess, final.Outcome)
	assert.Equal(t, "123+456 = 579", final.Answer)
	assert.Equal(t, "123+456 = 579", final.Content)
	assert.Equal(t, 1, final.Cycles)

	require.Len(t, final.History, 4)
	require.NoError(t, core.ValidateCorrespondence(final.History))
	result := final.History[2].(core.ToolResultMessage)
	assert.Equal(t, "call_1", result.CallID)
	out, err := tool.DecodeOutcome(result.Content)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "579", out.Value)

	require.NotNil(t, final.Reflection)
	assert.True(t, final.Reflection.Executed)
	assert.Empty(t, final.Reflection.Anomaly)
	n, err := f.memories.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunTurn_DirectAnswerSkipsAct(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("Photosynthesis turns light into chemical energy."),
		model.Reply("", testutil.Call("m1", "write_memory", "summary", "asked about photosynthesis")),
	})

	snaps := collect(f.orch.RunTurn(context.Background(), nil, "what is photosynthesis?"))
	assert.Equal(t, []Phase{PhaseThink, PhaseDone}, phases(snaps))
	final := snaps[1]
	assert.Equal(t, OutcomeSuccess, final.Outcome)
	assert.Equal(t, 0, final.Cycles)
	assert.Len(t, final.History, 2)
}

func TestRunTurn_UnknownToolIsObservable(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("", testutil.Call("c1", "nonexistent_tool", "x", 1)),
		model.Reply("Sorry, I could not use that tool."),
		model.Reply("", testutil.Call("m1", "write_memory", "summary", "tool failure")),
	})

	res, err := f.orch.Run(context.Background(), nil, "do something")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Sorry, I could not use that tool.", res.Answer)

	require.Len(t, res.History, 4)
	result := res.History[2].(core.ToolResultMessage)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool: nonexistent_tool")

	// The second THINK observed the failure.
	reqs := f.model.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[1].Messages, 3)
}

func TestRunTurn_ReflectionDoesNotPropagate(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("Here is how X works."),
		model.Reply("", testutil.Call("m1", "write_memory", "summary", "user struggled with X", "tags", []any{"weakness"})),
	})

	res, err := f.orch.Run(context.Background(), nil, "explain X")
	require.NoError(t, err)

	want := testutil.NewConversation().User("explain X").Assistant("Here is how X works.").Build()
	assert.Equal(t, want, res.History)
	for _, m := range res.History {
		_, isResult := m.(core.ToolResultMessage)
		assert.False(t, isResult)
	}

	require.NotNil(t, res.Reflection)
	assert.True(t, res.Reflection.Executed)
	require.NotNil(t, res.Reflection.Outcome)
	assert.True(t, res.Reflection.Outcome.OK)
	assert.NoError(t, res.Reflection.Err())

	reqs := f.model.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"write_memory"}, reqs[1].ToolNames())
	assert.Equal(t, want, reqs[1].Messages)

	recent, err := f.memories.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "user struggled with X", recent[0].Content)
}

func TestRunTurn_LoopBudgetExceeded(t *testing.T) {
	var steps []model.Step
	for i := range 10 {
		steps = append(steps, model.Reply("", testutil.Call(fmt.Sprintf("c%d", i), "calculator", "expression", "1+1")))
	}
	f := newFixture(t, steps, func(o *Options) { o.MaxCycles = 3 })

	snaps := collect(f.orch.RunTurn(context.Background(), nil, "loop forever"))
	final := snaps[len(snaps)-1]
	require.True(t, final.Final)
	assert.Equal(t, OutcomeFailed, final.Outcome)
	assert.ErrorIs(t, final.Err, core.ErrLoopBudgetExceeded)
	assert.Equal(t, core.KindLoopBudget, core.KindOf(final.Err))
	assert.Nil(t, final.Reflection)

	// Four THINKs, three ACTs.
	assert.Len(t, f.model.Requests(), 4)
	assert.Len(t, testutil.ResultIDs(final.History), 3)
}

func TestRunTurn_ReasoningErrorIsFatal(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Fail(fmt.Errorf("%w: backend down", core.ErrModelUnavailable)),
	})

	res, err := f.orch.Run(context.Background(), nil, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
	assert.Equal(t, core.KindReasoning, core.KindOf(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Nil(t, res.Reflection)
	assert.Len(t, res.History, 1)
}

func TestRunTurn_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, []model.Step{model.Reply("never")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.orch.Run(ctx, nil, "hello")
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, core.KindCancelled, core.KindOf(err))
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Empty(t, f.model.Requests())
}

func TestRunTurn_CancelledBetweenSteps(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("Let me compute.", testutil.Call("c1", "calculator", "expression", "2*3")),
		model.Reply("6"),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var final Snapshot
	for snap := range f.orch.RunTurn(ctx, nil, "2*3?") {
		if snap.Phase == PhaseAct {
			cancel()
		}
		final = snap
	}

	require.True(t, final.Final)
	assert.Equal(t, OutcomeCancelled, final.Outcome)
	assert.Equal(t, core.KindCancelled, core.KindOf(final.Err))
	assert.Nil(t, final.Reflection)
	assert.Equal(t, "Let me compute.", final.Content)

	// The partial history keeps one result per call.
	require.Len(t, final.History, 3)
	require.NoError(t, core.ValidateCorrespondence(final.History))
	assert.Len(t, f.model.Requests(), 1)
}

func TestRunTurn_ModelCancellation(t *testing.T) {
	f := newFixture(t, []model.Step{model.Fail(context.Canceled)})

	res, err := f.orch.Run(context.Background(), nil, "hello")
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestRunTurn_ConsumedOnce(t *testing.T) {
	f := newFixture(t, []model.Step{model.Reply("hi")})
	seq := f.orch.RunTurn(context.Background(), nil, "hello")

	first := collect(seq)
	require.NotEmpty(t, first)
	assert.Equal(t, OutcomeSuccess, first[len(first)-1].Outcome)

	second := collect(seq)
	require.Len(t, second, 1)
	assert.True(t, second[0].Final)
	assert.Equal(t, OutcomeFailed, second[0].Outcome)
	assert.ErrorIs(t, second[0].Err, core.ErrTurnConsumed)
	assert.Len(t, f.model.Requests(), 2)
}

func TestRunTurn_LazyUntilIterated(t *testing.T) {
	f := newFixture(t, []model.Step{model.Reply("hi")})
	_ = f.orch.RunTurn(context.Background(), nil, "hello")
	assert.Empty(t, f.model.Requests())
}

func TestRunTurn_ConsumerBreakStopsTurn(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("partial", testutil.Call("c1", "calculator", "expression", "1+1")),
		model.Reply("2"),
	})

	for snap := range f.orch.RunTurn(context.Background(), nil, "1+1") {
		assert.Equal(t, PhaseThink, snap.Phase)
		break
	}
	assert.Len(t, f.model.Requests(), 1)
}

func TestRunTurn_EmptyResponseFinalizes(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply(""),
		model.Reply("nothing to remember"),
	})

	snaps := collect(f.orch.RunTurn(context.Background(), nil, "hmm"))
	assert.Equal(t, []Phase{PhaseDone}, phases(snaps))
	final := snaps[0]
	assert.Equal(t, OutcomeSuccess, final.Outcome)
	assert.Empty(t, final.Answer)
	require.NotNil(t, final.Reflection)
	assert.False(t, final.Reflection.Executed)
	assert.Equal(t, "no memory write requested", final.Reflection.Anomaly)
	assert.Equal(t, core.KindReflection, core.KindOf(final.Reflection.Err()))
}

func TestRunTurn_CumulativeContent(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("Let me compute.", testutil.Call("c1", "calculator", "expression", "5*5")),
		model.Reply("The answer is 25."),
		model.Reply(""),
	})

	snaps := collect(f.orch.RunTurn(context.Background(), nil, "5*5"))
	require.Len(t, snaps, 4)
	assert.Equal(t, "Let me compute.", snaps[0].Content)
	assert.Equal(t, "Let me compute.\n\n"+ToolStatusMessage, snaps[1].Display())
	assert.Equal(t, "Let me compute.\n\nThe answer is 25.", snaps[2].Content)
	assert.Equal(t, "Let me compute.\n\nThe answer is 25.", snaps[3].Content)
	assert.Equal(t, "The answer is 25.", snaps[3].Answer)
}

func TestRunTurn_PriorHistoryAndInstructions(t *testing.T) {
	f := newFixture(t, []model.Step{model.Reply("again?"), model.Reply("")}, func(o *Options) {
		o.IndexStatus = func(context.Context) core.IndexReadiness { return core.IndexReady }
	})
	_, err := f.memories.Write(context.Background(), "user struggles with derivatives", []string{"weakness"})
	require.NoError(t, err)
	f.orch.opts.MemoryRecall = f.memories

	prior := testutil.NewConversation().User("hi").Assistant("hello").Build()
	res, err := f.orch.Run(context.Background(), prior, "derivatives again")
	require.NoError(t, err)
	assert.Len(t, res.History, 4)

	reqs := f.model.Requests()
	require.NotEmpty(t, reqs)
	assert.Contains(t, reqs[0].Instructions, "Lecture material index: READY")
	assert.Contains(t, reqs[0].Instructions, "rag_search")
	assert.Contains(t, reqs[0].Instructions, "user struggles with derivatives")
	assert.Contains(t, reqs[0].Instructions, "calculator, write_memory")
	assert.Len(t, reqs[0].Messages, 3)
}

func TestRunTurn_ReflectionAnomalies(t *testing.T) {
	tests := []struct {
		name    string
		step    model.Step
		anomaly string
	}{
		{"model failure", model.Fail(errors.New("boom")), "reflection model"},
		{"wrong tool", model.Reply("", testutil.Call("x", "calculator", "expression", "1")), "unexpected tool"},
		{"write rejected", model.Reply("", testutil.Call("m1", "write_memory")), "memory write failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reflector := model.NewMockModel("reflector", "mock", tt.step)
			f := newFixture(t, []model.Step{model.Reply("final answer")}, func(o *Options) {
				o.ReflectionModel = reflector
			})

			res, err := f.orch.Run(context.Background(), nil, "question")
			require.NoError(t, err)
			assert.Equal(t, OutcomeSuccess, res.Outcome)
			assert.Equal(t, "final answer", res.Answer)
			require.NotNil(t, res.Reflection)
			assert.Contains(t, res.Reflection.Anomaly, tt.anomaly)
			assert.Len(t, res.History, 2)

			n, err := f.memories.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

type panickingModel struct{}

func (panickingModel) Generate(context.Context, model.Request) (*model.Response, error) {
	panic("reflector exploded")
}

func (panickingModel) Info() model.Info { return model.Info{Name: "panicking", Provider: "mock"} }

func TestRunTurn_ReflectionPanicIsAnomaly(t *testing.T) {
	f := newFixture(t, []model.Step{model.Reply("final answer")}, func(o *Options) {
		o.ReflectionModel = panickingModel{}
	})

	res, err := f.orch.Run(context.Background(), nil, "question")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "final answer", res.Answer)
	require.NotNil(t, res.Reflection)
	assert.False(t, res.Reflection.Executed)
	assert.Contains(t, res.Reflection.Anomaly, "reflection panicked: reflector exploded")
	assert.Equal(t, core.KindReflection, core.KindOf(res.Reflection.Err()))
	assert.Len(t, res.History, 2)
}

func TestReflect_OnlyFirstCallExecuted(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("",
			testutil.Call("m1", "write_memory", "summary", "first"),
			testutil.Call("m2", "write_memory", "summary", "second"),
		),
	})
	s := core.NewState(testutil.NewConversation().User("q").Assistant("a").Build(), core.IndexPending)

	report := f.orch.Reflect(context.Background(), s)
	assert.True(t, report.Executed)
	require.NotNil(t, report.Call)
	assert.Equal(t, "m1", report.Call.ID)
	assert.Len(t, s.Messages, 2)

	n, err := f.memories.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReflect_MemoryToolMissing(t *testing.T) {
	reg, err := tool.NewRegistry(builtin.Calculator())
	require.NoError(t, err)
	m := model.NewMockModel("mock", "mock")
	orch := New(m, reg)

	report := orch.Reflect(context.Background(), core.NewState(nil, core.IndexPending))
	assert.Contains(t, report.Anomaly, "not registered")
	assert.Empty(t, m.Requests())
}

func TestThink_NormalizesCallIDs(t *testing.T) {
	f := newFixture(t, []model.Step{
		model.Reply("", testutil.Call("", "calculator"), testutil.Call("dup", "calculator"), testutil.Call("dup", "calculator")),
	})
	msg, err := f.orch.Think(context.Background(), core.NewState(testutil.NewConversation().User("x").Build(), core.IndexPending))
	require.NoError(t, err)

	ids := testutil.ToolCallIDs(msg.ToolCalls)
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, "dup", ids[1])
	assert.NotEqual(t, "dup", ids[2])
	assert.NotEqual(t, ids[0], ids[2])
}

func TestAct_NoCallsIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	s := core.NewState(testutil.NewConversation().User("x").Assistant("done").Build(), core.IndexPending)
	assert.Empty(t, f.orch.Act(context.Background(), s))
	assert.Len(t, s.Messages, 2)
}

func TestAct_ParallelPreservesOrder(t *testing.T) {
	var running, peak atomic.Int32
	slow := tool.NewFunctionTool("sleep", "sleeps", map[string]any{
		"type":       "object",
		"properties": map[string]any{"ms": map[string]any{"type": "number"}},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		ms, _ := args["ms"].(float64)
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return fmt.Sprintf("slept %v", ms), nil
	})
	reg, err := tool.NewRegistry(slow)
	require.NoError(t, err)
	orch := New(model.NewMockModel("mock", "mock"), reg, func(o *Options) { o.MaxParallelTools = 3 })

	calls := []core.ToolCall{
		testutil.Call("a", "sleep", "ms", float64(30)),
		testutil.Call("b", "sleep", "ms", float64(1)),
		testutil.Call("c", "sleep", "ms", float64(15)),
	}
	s := core.NewState(testutil.NewConversation().User("x").Assistant("", calls...).Build(), core.IndexPending)
	delta := orch.Act(context.Background(), s)

	require.Len(t, delta, 3)
	assert.Equal(t, []string{"a", "b", "c"}, testutil.ResultIDs(delta))
	assert.True(t, strings.Contains(delta[0].(core.ToolResultMessage).Content, "slept 30"))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestNew_SealsRegistry(t *testing.T) {
	f := newFixture(t, nil)
	assert.True(t, f.orch.Registry().Sealed())
	assert.ErrorIs(t, f.orch.Registry().Register(builtin.Time(time.Now)), core.ErrRegistrySealed)
	assert.Equal(t, 10, f.orch.MaxCycles())
}
