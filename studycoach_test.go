package studycoach

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studycoach/agent"
	"github.com/hupe1980/studycoach/config"
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/internal/testutil"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/model"
)

func quiet(o *Options) { o.Logger = logging.NoOpLogger{} }

func TestNew_Defaults(t *testing.T) {
	c, err := New(context.Background(), nil, quiet)
	require.NoError(t, err)
	defer c.Close()

	assert.ElementsMatch(t,
		[]string{"calculator", "time_now", "google_search", "rag_search", "read_memory", "write_memory"},
		c.Orchestrator().Registry().Names())
	assert.Equal(t, core.IndexPending, c.IndexStatus(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = "nope"
	_, err := New(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "invalid config")
}

func TestNewModel(t *testing.T) {
	for _, p := range []string{"openai", "anthropic", "mock"} {
		m, err := NewModel(context.Background(), config.ModelConfig{Provider: p, Name: "custom", APIKey: "k", Temperature: 0.1, MaxTokens: 10})
		require.NoError(t, err, p)
		assert.Equal(t, "custom", m.Info().Name, p)
	}
	_, err := NewModel(context.Background(), config.ModelConfig{Provider: "other"})
	assert.Error(t, err)
}

func TestCoach_TurnWithDocumentsAndMemory(t *testing.T) {
	m := model.NewMockModel("scripted", "mock",
		model.Reply("", testutil.Call("r1", "rag_search", "query", "mitochondria")),
		model.Reply("Mitochondria produce ATP."),
		model.Reply("", testutil.Call("m1", "write_memory", "summary", "studied cell biology", "tags", []any{"topic:biology"})),
	)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "coach.db")}

	c, err := New(context.Background(), cfg, quiet, func(o *Options) {
		o.Model = m
		o.Now = func() time.Time { return fixed }
	})
	require.NoError(t, err)
	defer c.Close()

	n, err := c.Indexer().IndexReader(context.Background(), "cells.md", strings.NewReader("# Cells\n\nThe mitochondria is the powerhouse of the cell and produces ATP."))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, core.IndexReady, c.IndexStatus(context.Background()))

	res, err := c.InvokeSync(context.Background(), "learner", "what do mitochondria do?")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Mitochondria produce ATP.", res.Answer)
	require.NoError(t, core.ValidateCorrespondence(res.History))

	result := res.History[2].(core.ToolResultMessage)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "powerhouse")
	assert.Contains(t, m.Requests()[0].Instructions, "READY")

	count, err := c.Memory().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	sess, err := c.Runner().Sessions().Get("learner")
	require.NoError(t, err)
	assert.Len(t, sess.GetExchanges(), 1)
}
