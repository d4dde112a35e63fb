package tool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
	calls    atomic.Int32
}

func (mt *mockTool) Name() string               { return mt.name }
func (mt *mockTool) Description() string        { return "mock tool" }
func (mt *mockTool) Parameters() map[string]any { return map[string]any{} }
func (mt *mockTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	mt.calls.Add(1)
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	return mt.result, mt.err
}

func newDispatcher(t *testing.T, maxPar int, tools ...Tool) *Dispatcher {
	t.Helper()
	r, err := NewRegistry(tools...)
	require.NoError(t, err)
	r.Seal()
	return NewDispatcher(r, func(o *DispatcherOptions) { o.MaxParallel = maxPar })
}

func TestDispatch_Success(t *testing.T) {
	d := newDispatcher(t, 1, &mockTool{name: "calculator", result: "579"})

	msg, out := d.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "calculator", Arguments: map[string]any{"expression": "123+456"}})

	assert.True(t, out.OK)
	assert.Equal(t, "579", out.Value)
	assert.Equal(t, "c1", msg.CallID)
	assert.Equal(t, "calculator", msg.ToolName)
	assert.False(t, msg.IsError)
	assert.JSONEq(t, `{"ok":true,"result":"579"}`, msg.Content)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newDispatcher(t, 1)

	msg, out := d.Dispatch(context.Background(), core.ToolCall{ID: "c1", Name: "nonexistent_tool"})

	assert.False(t, out.OK)
	assert.Equal(t, core.KindToolResolution, out.Kind)
	assert.Equal(t, "unknown tool: nonexistent_tool", out.Error)
	assert.True(t, msg.IsError)
	assert.Equal(t, "c1", msg.CallID)
}

func TestDispatch_ErrorAndPanicAreContained(t *testing.T) {
	d := newDispatcher(t, 1,
		&mockTool{name: "fails", err: errors.New("disk full")},
		&mockTool{name: "panics", panicMsg: "nil map"},
	)

	_, out := d.Dispatch(context.Background(), core.ToolCall{ID: "1", Name: "fails"})
	assert.False(t, out.OK)
	assert.Equal(t, core.KindToolExecution, out.Kind)
	assert.Equal(t, "disk full", out.Error)

	assert.NotPanics(t, func() {
		_, out = d.Dispatch(context.Background(), core.ToolCall{ID: "2", Name: "panics"})
	})
	assert.False(t, out.OK)
	assert.Equal(t, "tool panicked: nil map", out.Error)
}

func TestDispatch_ValidationKind(t *testing.T) {
	typed := NewTypedTool("rag", "search", func(_ *core.ToolContext, a searchArgs) (any, error) { return nil, nil })
	d := newDispatcher(t, 1, typed)

	_, out := d.Dispatch(context.Background(), core.ToolCall{ID: "1", Name: "rag", Arguments: nil})
	assert.False(t, out.OK)
	assert.Equal(t, core.KindToolValidation, out.Kind)
	assert.Contains(t, out.Error, "query")
}

func TestDispatch_SameCallTwiceSameOK(t *testing.T) {
	d := newDispatcher(t, 1, &mockTool{name: "t", result: 1})
	call := core.ToolCall{ID: "1", Name: "t"}

	_, a := d.Dispatch(context.Background(), call)
	_, b := d.Dispatch(context.Background(), call)
	assert.Equal(t, a.OK, b.OK)

	_, c := d.Dispatch(context.Background(), core.ToolCall{ID: "2", Name: "missing"})
	_, e := d.Dispatch(context.Background(), core.ToolCall{ID: "2", Name: "missing"})
	assert.Equal(t, c.OK, e.OK)
}

func TestDispatchAll_PreservesOrderUnderParallelism(t *testing.T) {
	tools := []Tool{
		&mockTool{name: "slow", delay: 40 * time.Millisecond, result: "slow"},
		&mockTool{name: "fast", result: "fast"},
		&mockTool{name: "boom", err: errors.New("x")},
	}
	d := newDispatcher(t, 3, tools...)

	calls := []core.ToolCall{
		{ID: "a", Name: "slow"},
		{ID: "b", Name: "fast"},
		{ID: "c", Name: "unknown"},
		{ID: "d", Name: "boom"},
	}
	msgs, outs := d.DispatchAll(context.Background(), calls)

	require.Len(t, msgs, len(calls))
	for i, c := range calls {
		assert.Equal(t, c.ID, msgs[i].CallID, "index %d", i)
	}
	assert.Equal(t, "slow", outs[0].Value)
	assert.Equal(t, "fast", outs[1].Value)
	assert.Equal(t, core.KindToolResolution, outs[2].Kind)
	assert.Equal(t, core.KindToolExecution, outs[3].Kind)

	history := []core.Message{core.NewAssistantMessage("", calls...)}
	for _, m := range msgs {
		history = append(history, m)
	}
	assert.NoError(t, core.ValidateCorrespondence(history))
}

func TestDispatchAll_RunsConcurrently(t *testing.T) {
	var tools []Tool
	var calls []core.ToolCall
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("t%d", i)
		tools = append(tools, &mockTool{name: name, delay: 50 * time.Millisecond})
		calls = append(calls, core.ToolCall{ID: name, Name: name})
	}
	d := newDispatcher(t, 4, tools...)

	start := time.Now()
	msgs, _ := d.DispatchAll(context.Background(), calls)
	assert.Len(t, msgs, 4)
	assert.Less(t, time.Since(start), 180*time.Millisecond)
}

func TestDispatchAll_CancelledStillAnswersEveryCall(t *testing.T) {
	mt := &mockTool{name: "t", result: 1}
	d := newDispatcher(t, 1, mt)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs, outs := d.DispatchAll(ctx, []core.ToolCall{{ID: "1", Name: "t"}, {ID: "2", Name: "t"}})

	require.Len(t, msgs, 2)
	assert.False(t, outs[0].OK)
	assert.False(t, outs[1].OK)
	assert.Zero(t, mt.calls.Load())
}

func TestDispatchAll_Empty(t *testing.T) {
	d := newDispatcher(t, 2)
	msgs, outs := d.DispatchAll(context.Background(), nil)
	assert.Empty(t, msgs)
	assert.Empty(t, outs)
}
