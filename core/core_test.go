package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type testLogger struct {
	warns    int
	lastArgs []any
}

func (l *testLogger) Debug(string, ...any) {}
func (l *testLogger) Info(string, ...any)  {}
func (l *testLogger) Warn(_ string, args ...any) {
	l.warns++
	l.lastArgs = args
}
func (l *testLogger) Error(string, ...any) {}

func TestStateAppendAndLast(t *testing.T) {
	s := NewState(nil, "")
	if s.IndexReadiness != IndexPending {
		t.Fatalf("expected default readiness PENDING, got %s", s.IndexReadiness)
	}
	if s.Last() != nil {
		t.Fatalf("expected nil last message on empty state")
	}

	s.Append(NewUserMessage("hi"))
	if _, ok := s.LastAssistant(); ok {
		t.Fatalf("last message is a user message")
	}

	s.Append(NewAssistantMessage("", ToolCall{ID: "c1", Name: "calculator"}))
	am, ok := s.LastAssistant()
	if !ok || !am.HasToolCalls() {
		t.Fatalf("expected assistant message with calls, got %#v", s.Last())
	}
}

func TestNewStateCopiesPrior(t *testing.T) {
	prior := []Message{NewUserMessage("a"), NewAssistantMessage("b")}
	s := NewState(prior, IndexReady)
	s.Append(NewUserMessage("c"))
	prior[0] = NewUserMessage("mutated")

	if got := s.Messages[0].(UserMessage).Content; got != "a" {
		t.Fatalf("state shares backing array with prior: %q", got)
	}
	if len(s.Snapshot()) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(s.Snapshot()))
	}
}

func TestValidateCorrespondence(t *testing.T) {
	call := func(id string) ToolCall { return ToolCall{ID: id, Name: "t"} }
	res := func(id string) ToolResultMessage { return ToolResultMessage{CallID: id, ToolName: "t"} }

	tests := []struct {
		name    string
		msgs    []Message
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []Message{NewUserMessage("q"), NewAssistantMessage("", call("a"), call("b")), res("a"), res("b"), NewAssistantMessage("done")}, false},
		{"reordered", []Message{NewAssistantMessage("", call("a"), call("b")), res("b"), res("a")}, true},
		{"orphan", []Message{NewUserMessage("q"), res("x")}, true},
		{"missing", []Message{NewAssistantMessage("", call("a"), call("b")), res("a"), NewAssistantMessage("done")}, true},
		{"trailing", []Message{NewAssistantMessage("", call("a"))}, true},
		{"stale id", []Message{NewAssistantMessage("", call("a")), res("a"), NewAssistantMessage("", call("b")), res("a")}, true},
	}
	for _, tt := range tests {
		err := ValidateCorrespondence(tt.msgs)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err=%v wantErr=%v", tt.name, err, tt.wantErr)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{NewTurnError(KindLoopBudget, ErrLoopBudgetExceeded), KindLoopBudget},
		{fmt.Errorf("wrapped: %w", context.Canceled), KindCancelled},
		{context.DeadlineExceeded, KindCancelled},
		{fmt.Errorf("x: %w", ErrLoopBudgetExceeded), KindLoopBudget},
		{fmt.Errorf("x: %w", ErrModelUnavailable), KindReasoning},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestTurnErrorUnwrap(t *testing.T) {
	err := NewTurnError(KindReasoning, fmt.Errorf("openai: %w", ErrModelUnavailable))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected errors.Is to see through TurnError")
	}
	if err.Error() != "reasoning: openai: model unavailable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCycleBudget(t *testing.T) {
	b := NewCycleBudget(3)
	for i := 0; i < 3; i++ {
		if err := b.Increment(); err != nil {
			t.Fatalf("cycle %d: unexpected error %v", i+1, err)
		}
	}
	err := b.Increment()
	if !errors.Is(err, ErrLoopBudgetExceeded) {
		t.Fatalf("expected ErrLoopBudgetExceeded, got %v", err)
	}
	if b.Count() != 4 {
		t.Fatalf("expected count 4, got %d", b.Count())
	}

	unlimited := NewCycleBudget(0)
	for i := 0; i < 100; i++ {
		if err := unlimited.Increment(); err != nil {
			t.Fatalf("unlimited budget failed: %v", err)
		}
	}
}

func TestToolContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &testLogger{}
	tc := NewToolContext(ctx, ToolCall{ID: "c1", Name: "calculator"}, l)

	if tc.CallID() != "c1" || tc.ToolName() != "calculator" {
		t.Fatalf("unexpected identity %s/%s", tc.CallID(), tc.ToolName())
	}
	tc.LogWarn("x", "error", "boom")
	if l.warns != 1 {
		t.Fatalf("expected warn forwarded to logger")
	}
	want := []any{"tool", "calculator", "call_id", "c1", "error", "boom"}
	if !reflect.DeepEqual(l.lastArgs, want) {
		t.Fatalf("expected tool and call id prefix, got %v", l.lastArgs)
	}
	cancel()
	if !errors.Is(tc.Err(), context.Canceled) {
		t.Fatalf("expected cancellation visible through tool context")
	}

	nilLogger := NewToolContext(context.Background(), ToolCall{ID: "c2"}, nil)
	nilLogger.LogInfo("does not panic")
}
