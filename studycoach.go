// Package studycoach assembles a study coach from configuration: chat and
// reflection models, embeddings, memory and document stores, the stock tool
// registry, the turn orchestrator and the session runner. Everything is
// built once in New and owned by the returned Coach.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (config.Load or config.Default)
//  2. Creating a Coach via New()
//  3. Indexing course material (Indexer) and serving turns (Invoke / InvokeSync)
package studycoach

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/hupe1980/studycoach/agent"
	"github.com/hupe1980/studycoach/config"
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/embedding"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/memory"
	"github.com/hupe1980/studycoach/model"
	anthropicmodel "github.com/hupe1980/studycoach/model/anthropic"
	geminimodel "github.com/hupe1980/studycoach/model/gemini"
	openaimodel "github.com/hupe1980/studycoach/model/openai"
	"github.com/hupe1980/studycoach/retrieval"
	"github.com/hupe1980/studycoach/runner"
	"github.com/hupe1980/studycoach/search"
	"github.com/hupe1980/studycoach/session"
	"github.com/hupe1980/studycoach/tool"
	"github.com/hupe1980/studycoach/tool/builtin"
	"github.com/hupe1980/studycoach/vectorstore"
	"github.com/hupe1980/studycoach/vectorstore/sqlite"
)

// Collection names used for the two vector stores.
const (
	MemoryCollection   = "memories"
	DocumentCollection = "documents"
)

// Options overrides collaborators that New would otherwise build from the
// configuration.
type Options struct {
	// Model replaces the configured reasoning model.
	Model model.Model
	// ReflectionModel replaces the configured reflection model.
	ReflectionModel model.Model
	// Embedder replaces the configured embedder.
	Embedder embedding.Embedder
	// SearchProvider replaces the configured web search provider.
	SearchProvider search.Provider
	// Now overrides the clock of the time tool.
	Now func() time.Time
	// HTTPClient is used by HTTP based providers.
	HTTPClient *http.Client
	// Logger (defaults to a logger built from the configuration).
	Logger logging.Logger
}

// Coach is the assembled application. It is safe for concurrent use.
type Coach struct {
	cfg          *config.Config
	logger       logging.Logger
	orchestrator *agent.Orchestrator
	runner       *runner.Runner
	memory       *memory.Store
	documents    *retrieval.Store
	indexer      *retrieval.Indexer
	db           *sql.DB
}

// New validates cfg and builds a Coach.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Coach, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		opts.Logger = logging.NewSlogLogger(level, cfg.LogFormat, false)
	}

	c := &Coach{cfg: cfg, logger: opts.Logger}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	reasoner := opts.Model
	if reasoner == nil {
		m, err := NewModel(ctx, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		reasoner = m
	}
	reflector := opts.ReflectionModel
	if reflector == nil && cfg.ReflectionModel != nil {
		m, err := NewModel(ctx, *cfg.ReflectionModel)
		if err != nil {
			return nil, fmt.Errorf("reflection model: %w", err)
		}
		reflector = m
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder = NewEmbedder(cfg.Embeddings)
	}

	memories, documents, err := c.openCollections()
	if err != nil {
		return nil, err
	}
	c.memory = memory.New(memories, embedder, func(o *memory.Options) { o.Logger = opts.Logger })
	c.documents = retrieval.NewStore(documents, embedder)
	c.indexer = retrieval.NewIndexer(c.documents, func(o *retrieval.IndexerOptions) {
		o.ChunkSize = cfg.RAG.ChunkSize
		o.ChunkOverlap = cfg.RAG.ChunkOverlap
		o.Logger = opts.Logger
	})

	provider := opts.SearchProvider
	if provider == nil {
		provider = NewSearchProvider(cfg.Search, opts.HTTPClient)
	}

	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}
	if err := builtin.Register(registry, builtin.Deps{
		Search:    provider,
		Retrieval: c.documents,
		Memory:    c.memory,
		Now:       opts.Now,
	}); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	c.orchestrator = agent.New(reasoner, registry, func(o *agent.Options) {
		if cfg.Agent.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instruction)
		}
		if cfg.Agent.ReflectionInstruction != "" {
			o.ReflectionInstruction = agent.NewInstructionFromText(cfg.Agent.ReflectionInstruction)
		}
		o.ReflectionModel = reflector
		o.MaxCycles = cfg.Agent.MaxCycles
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.MemoryToolName = builtin.WriteMemoryName
		o.MemoryRecall = c.memory
		o.RecallTopK = cfg.Agent.MemoryRecallTopK
		o.IndexStatus = c.IndexStatus
		o.Logger = opts.Logger
	})
	c.runner = runner.New(c.orchestrator, func(o *runner.Options) {
		o.MaxConcurrentRuns = cfg.Agent.MaxConcurrentRuns
		o.HistoryLimit = cfg.Agent.HistoryLimit
		o.SessionStore = session.NewInMemoryStore()
		o.Logger = opts.Logger
	})

	opts.Logger.Info("studycoach.ready",
		"model", reasoner.Info().Name,
		"provider", reasoner.Info().Provider,
		"tools", registry.Len(),
		"storage", cfg.Storage.Driver,
	)
	ok = true
	return c, nil
}

func (c *Coach) openCollections() (vectorstore.Collection, vectorstore.Collection, error) {
	if c.cfg.Storage.Driver != "sqlite" {
		return vectorstore.NewInMemory(MemoryCollection), vectorstore.NewInMemory(DocumentCollection), nil
	}
	db, err := sqlite.Open(c.cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	c.db = db
	memories, err := sqlite.New(db, MemoryCollection)
	if err != nil {
		return nil, nil, fmt.Errorf("memory collection: %w", err)
	}
	documents, err := sqlite.New(db, DocumentCollection)
	if err != nil {
		return nil, nil, fmt.Errorf("document collection: %w", err)
	}
	return memories, documents, nil
}

// NewModel builds a chat model from its configuration section.
func NewModel(ctx context.Context, mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "openai":
		var clientOpts []openaioption.RequestOption
		if mc.APIKey != "" {
			clientOpts = append(clientOpts, openaioption.WithAPIKey(mc.APIKey))
		}
		if mc.BaseURL != "" {
			clientOpts = append(clientOpts, openaioption.WithBaseURL(mc.BaseURL))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openaimodel.NewModelFromClient(&client, func(o *openaimodel.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(mc.MaxTokens)
			}
		}), nil
	case "anthropic":
		var clientOpts []anthropicoption.RequestOption
		if mc.APIKey != "" {
			clientOpts = append(clientOpts, anthropicoption.WithAPIKey(mc.APIKey))
		}
		if mc.BaseURL != "" {
			clientOpts = append(clientOpts, anthropicoption.WithBaseURL(mc.BaseURL))
		}
		client := anthropicsdk.NewClient(clientOpts...)
		return anthropicmodel.NewModelFromClient(&client, func(o *anthropicmodel.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
		}), nil
	case "gemini":
		return geminimodel.NewModel(ctx, func(o *geminimodel.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.APIKey = mc.APIKey
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxOutputTokens = int32(mc.MaxTokens)
			}
		})
	case "mock":
		name := mc.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// NewEmbedder builds the embedder from its configuration section.
func NewEmbedder(ec config.EmbeddingsConfig) embedding.Embedder {
	if ec.Provider != "openai" {
		return embedding.NewHashEmbedder(ec.Dimensions)
	}
	var clientOpts []openaioption.RequestOption
	if ec.APIKey != "" {
		clientOpts = append(clientOpts, openaioption.WithAPIKey(ec.APIKey))
	}
	client := openaisdk.NewClient(clientOpts...)
	return embedding.NewOpenAIFromClient(&client, func(o *embedding.OpenAIOptions) {
		if ec.Model != "" {
			o.Model = ec.Model
		}
		if ec.Dimensions > 0 {
			o.Dimensions = ec.Dimensions
		}
	})
}

// NewSearchProvider builds the web search provider from its configuration section.
func NewSearchProvider(sc config.SearchConfig, client *http.Client) search.Provider {
	if sc.Provider == "searxng" {
		return search.NewSearXNG(sc.BaseURL, client)
	}
	return search.NewMock()
}

// IndexStatus reports READY once at least one document chunk is indexed.
func (c *Coach) IndexStatus(ctx context.Context) core.IndexReadiness {
	n, err := c.documents.Count(ctx)
	if err != nil {
		c.logger.Warn("studycoach.index_status.failed", "error", err.Error())
		return core.IndexPending
	}
	if n > 0 {
		return core.IndexReady
	}
	return core.IndexPending
}

// Invoke starts a turn for the session; see runner.Runner.Run.
func (c *Coach) Invoke(ctx context.Context, sessionID, input string) (string, iter.Seq[agent.Snapshot], error) {
	return c.runner.Run(ctx, sessionID, input)
}

// InvokeSync runs a turn to completion.
func (c *Coach) InvokeSync(ctx context.Context, sessionID, input string) (*agent.TurnResult, error) {
	return c.runner.RunSync(ctx, sessionID, input)
}

// Cancel cancels an in-flight run.
func (c *Coach) Cancel(runID string) error { return c.runner.Cancel(runID) }

// Config returns the configuration the coach was built from.
func (c *Coach) Config() *config.Config { return c.cfg }

// Logger returns the coach's logger.
func (c *Coach) Logger() logging.Logger { return c.logger }

// Orchestrator returns the turn orchestrator.
func (c *Coach) Orchestrator() *agent.Orchestrator { return c.orchestrator }

// Runner returns the session runner.
func (c *Coach) Runner() *runner.Runner { return c.runner }

// Memory returns the long-term memory store.
func (c *Coach) Memory() *memory.Store { return c.memory }

// Documents returns the document retrieval store.
func (c *Coach) Documents() *retrieval.Store { return c.documents }

// Indexer returns the document indexer.
func (c *Coach) Indexer() *retrieval.Indexer { return c.indexer }

// Close releases the database, if any.
func (c *Coach) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
