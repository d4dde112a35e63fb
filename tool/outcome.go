package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/studycoach/core"
)

// Outcome is the normalized result of one dispatch. When OK is false, Error
// is set and Kind classifies the failure.
type Outcome struct {
	OK    bool           `json:"ok"`
	Value any            `json:"result,omitempty"`
	Error string         `json:"error,omitempty"`
	Kind  core.ErrorKind `json:"-"`
}

// Success builds a successful outcome.
func Success(v any) Outcome { return Outcome{OK: true, Value: v} }

// Failure builds a failed outcome.
func Failure(kind core.ErrorKind, msg string) Outcome {
	return Outcome{OK: false, Error: msg, Kind: kind}
}

// MarshalJSON omits "result" only when Value is nil, so zero results such as
// "", 0 or false are still encoded.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error string `json:"error,omitempty"`
		}{OK: o.OK, Error: o.Error})
	}
	return json.Marshal(struct {
		OK     bool   `json:"ok"`
		Result any    `json:"result"`
		Error  string `json:"error,omitempty"`
	}{OK: o.OK, Result: o.Value, Error: o.Error})
}

// Encode renders the outcome as the JSON content of a tool result message.
func (o Outcome) Encode() string {
	content, _ := o.encode()
	return content
}

// encode reports whether the outcome could be rendered as-is; when it could
// not, the content is a failure describing the encoding error.
func (o Outcome) encode() (string, bool) {
	b, err := json.Marshal(o)
	if err != nil {
		fallback, _ := json.Marshal(Outcome{OK: false, Error: fmt.Sprintf("unencodable tool result: %v", err)})
		return string(fallback), false
	}
	return string(b), true
}

// Message wraps the outcome into the result message answering call. An
// outcome that cannot be encoded is delivered as an error.
func (o Outcome) Message(call core.ToolCall) core.ToolResultMessage {
	content, encoded := o.encode()
	return core.ToolResultMessage{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		IsError:  !o.OK || !encoded,
	}
}

// DecodeOutcome parses the content of a tool result message.
func DecodeOutcome(content string) (Outcome, error) {
	var o Outcome
	if err := json.Unmarshal([]byte(content), &o); err != nil {
		return Outcome{}, err
	}
	return o, nil
}
