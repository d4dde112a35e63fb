package server

import (
	"github.com/hupe1980/studycoach/agent"
)

type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Frame is a message sent from the server to a websocket client.
type Frame struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"session_id,omitempty"`
	RunID      string           `json:"run_id,omitempty"`
	Phase      string           `json:"phase,omitempty"`
	Content    string           `json:"content,omitempty"`
	Status     string           `json:"status,omitempty"`
	Display    string           `json:"display,omitempty"`
	Cycles     int              `json:"cycles,omitempty"`
	Final      bool             `json:"final,omitempty"`
	Outcome    string           `json:"outcome,omitempty"`
	Answer     string           `json:"answer,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	Reflection *ReflectionFrame `json:"reflection,omitempty"`
}

// ReflectionFrame summarises the reflection step of a finished turn.
type ReflectionFrame struct {
	Executed bool   `json:"executed"`
	Anomaly  string `json:"anomaly,omitempty"`
}

func snapshotFrame(runID string, s agent.Snapshot) Frame {
	f := Frame{
		Type:    "snapshot",
		RunID:   runID,
		Phase:   string(s.Phase),
		Content: s.Content,
		Status:  s.Status,
		Display: s.Display(),
		Cycles:  s.Cycles,
		Final:   s.Final,
		Outcome: string(s.Outcome),
		Answer:  s.Answer,
	}
	if s.Err != nil {
		f.Error = s.Err.Error()
		f.ErrorKind = kindOf(s.Err)
	}
	if s.Reflection != nil {
		f.Reflection = &ReflectionFrame{Executed: s.Reflection.Executed, Anomaly: s.Reflection.Anomaly}
	}
	return f
}

func errorFrame(msg string) Frame { return Frame{Type: "error", Error: msg} }
