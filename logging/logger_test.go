package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = NoOpLogger{}
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*CoachLogger)(nil)
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestCoachLogger_KeyValueAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("agent").
		WithSession("s1", "r1")

	l.Info("agent.think.start", "cycle", 2, "tools", 6)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "agent.think.start", lines[0]["msg"])
	assert.Equal(t, "agent", lines[0]["component"])
	assert.Equal(t, "s1", lines[0]["session_id"])
	assert.Equal(t, "r1", lines[0]["run_id"])
	assert.EqualValues(t, 2, lines[0]["cycle"])
}

func TestCoachLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "json", Output: &buf})

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
}

func TestCoachLogger_DanglingKey(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.Info("odd", "lonely")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "lonely", lines[0]["!BADKEY"])
}

func TestCoachLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.LogToolCall("calculator", 3*time.Millisecond, false, "bad expression")
	l.LogModelCall("gpt-4o-mini", 2, time.Second, nil)
	l.LogTurn("failed", 3, time.Second, errors.New("loop budget exceeded"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "Tool execution failed", lines[0]["msg"])
	assert.Equal(t, "bad expression", lines[0]["error"])
	assert.Equal(t, "Model call completed", lines[1]["msg"])
	assert.Equal(t, "ERROR", lines[2]["level"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", LogLevelInfo, false},
		{"DEBUG", LogLevelDebug, false},
		{" warning ", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCoachLogger_TintFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "tint", Output: &buf, NoColor: true})

	l.Info("server.start", "address", ":8080")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF server.start")
	assert.Contains(t, out, "address=:8080")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "\x1b[")
}
