package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.NewUserMessage("compare"),
		core.NewAssistantMessage("checking",
			core.ToolCall{ID: "t1", Name: "calculator", Arguments: map[string]any{"expression": "1+1"}},
			core.ToolCall{ID: "t2", Name: "time_now"},
		),
		core.ToolResultMessage{CallID: "t1", ToolName: "calculator", Content: `{"ok":true,"result":"2"}`},
		core.ToolResultMessage{CallID: "t2", ToolName: "time_now", Content: `{"ok":false,"error":"boom"}`, IsError: true},
		core.NewAssistantMessage("done"),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	require.Len(t, msgs[1].Content, 3)
	require.NotNil(t, msgs[1].Content[2].OfToolUse)
	assert.Equal(t, "t2", msgs[1].Content[2].OfToolUse.ID)

	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[1].OfToolResult)
	assert.Equal(t, "t2", msgs[2].Content[1].OfToolResult.ToolUseID)

	assert.Equal(t, "assistant", string(msgs[3].Role))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
		Name:        "calculator",
		Description: "evaluate",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"expression": map[string]any{"type": "string"}},
			"required":   []string{"expression"},
		},
	}}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "calculator", tools[0].OfTool.Name)
	assert.Equal(t, []string{"expression"}, tools[0].OfTool.InputSchema.Required)
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [
				{"type": "text", "text": "Let me compute."},
				{"type": "tool_use", "id": "toolu_1", "name": "calculator", "input": {"expression": "1+2"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`))
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "be brief",
		Messages:     []core.Message{core.NewUserMessage("1+2?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me compute.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, core.ToolCall{ID: "toolu_1", Name: "calculator", Arguments: map[string]any{"expression": "1+2"}}, resp.Message.ToolCalls[0])
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	system := body["system"].([]any)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}

func TestGenerate_Errors(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
	})
	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("x")}})
	assert.ErrorIs(t, err, core.ErrModelUnavailable)

	bad := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	})
	_, err = bad.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("x")}})
	assert.ErrorIs(t, err, core.ErrModelProtocol)
}
