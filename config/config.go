// Package config handles studycoach configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/studycoach/logging"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from the -config flag) is checked first.
// Then: ./studycoach.yaml, ~/.config/studycoach/config.yaml, /etc/studycoach/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"studycoach.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "studycoach", "config.yaml"))
	}

	paths = append(paths, "/etc/studycoach/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all studycoach configuration.
type Config struct {
	Listen          ListenConfig     `yaml:"listen"`
	Model           ModelConfig      `yaml:"model"`
	ReflectionModel *ModelConfig     `yaml:"reflection_model"`
	Agent           AgentConfig      `yaml:"agent"`
	Embeddings      EmbeddingsConfig `yaml:"embeddings"`
	Storage         StorageConfig    `yaml:"storage"`
	RAG             RAGConfig        `yaml:"rag"`
	Search          SearchConfig     `yaml:"search"`
	LogLevel        string           `yaml:"log_level"`
	LogFormat       string           `yaml:"log_format"`
}

// ListenConfig defines the HTTP/websocket server address.
type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Addr returns host:port.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Address, l.Port)
}

// ModelConfig selects and tunes a chat model backend.
type ModelConfig struct {
	// Provider is one of openai, anthropic, gemini or mock.
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig tunes the orchestrator.
type AgentConfig struct {
	MaxCycles             int    `yaml:"max_cycles"`
	MaxParallelTools      int    `yaml:"max_parallel_tools"`
	Instruction           string `yaml:"instruction"`
	ReflectionInstruction string `yaml:"reflection_instruction"`
	MemoryRecallTopK      int    `yaml:"memory_recall_top_k"`
	HistoryLimit          int    `yaml:"history_limit"`
	MaxConcurrentRuns     int    `yaml:"max_concurrent_runs"`
}

// EmbeddingsConfig selects the embedder used by the memory and retrieval stores.
type EmbeddingsConfig struct {
	// Provider is hash (offline, deterministic) or openai.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
}

// StorageConfig selects where vector collections live.
type StorageConfig struct {
	// Driver is memory or sqlite.
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// RAGConfig tunes document chunking.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	// Provider is mock or searxng.
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
}

// Load reads, env-expands and parses a YAML config file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a default configuration: offline mock model, hash
// embeddings and in-memory storage.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Model: ModelConfig{
			Provider:    "mock",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxCycles:         10,
			MaxParallelTools:  1,
			MemoryRecallTopK:  3,
			HistoryLimit:      20,
			MaxConcurrentRuns: 10,
		},
		Embeddings: EmbeddingsConfig{Provider: "hash", Dimensions: 256},
		Storage:    StorageConfig{Driver: "memory"},
		RAG:        RAGConfig{ChunkSize: 500, ChunkOverlap: 50},
		Search:     SearchConfig{Provider: "mock"},
		LogLevel:   "info",
		LogFormat:  "json",
	}
}

var (
	modelProviders     = []string{"openai", "anthropic", "gemini", "mock"}
	embeddingProviders = []string{"hash", "openai"}
	storageDrivers     = []string{"memory", "sqlite"}
	searchProviders    = []string{"mock", "searxng"}
	logFormats         = []string{"json", "text", "tint"}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	errs = append(errs, c.Model.validate("model")...)
	if c.ReflectionModel != nil {
		errs = append(errs, c.ReflectionModel.validate("reflection_model")...)
	}
	if c.Agent.MaxCycles < 1 {
		errs = append(errs, fmt.Errorf("agent.max_cycles must be at least 1"))
	}
	if c.Agent.MaxParallelTools < 0 {
		errs = append(errs, fmt.Errorf("agent.max_parallel_tools must not be negative"))
	}
	if !oneOf(c.Embeddings.Provider, embeddingProviders) {
		errs = append(errs, fmt.Errorf("embeddings.provider %q not one of %v", c.Embeddings.Provider, embeddingProviders))
	}
	if c.Embeddings.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimensions must be positive"))
	}
	if !oneOf(c.Storage.Driver, storageDrivers) {
		errs = append(errs, fmt.Errorf("storage.driver %q not one of %v", c.Storage.Driver, storageDrivers))
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required for the sqlite driver"))
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive and rag.chunk_overlap not negative"))
	}
	if !oneOf(c.Search.Provider, searchProviders) {
		errs = append(errs, fmt.Errorf("search.provider %q not one of %v", c.Search.Provider, searchProviders))
	}
	if c.Search.Provider == "searxng" && c.Search.BaseURL == "" {
		errs = append(errs, fmt.Errorf("search.base_url is required for searxng"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "" && !oneOf(f, logFormats) {
		errs = append(errs, fmt.Errorf("log_format %q not one of %v", c.LogFormat, logFormats))
	}
	return errors.Join(errs...)
}

func (m ModelConfig) validate(section string) []error {
	var errs []error
	if !oneOf(m.Provider, modelProviders) {
		errs = append(errs, fmt.Errorf("%s.provider %q not one of %v", section, m.Provider, modelProviders))
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%s.temperature %.2f out of range [0,2]", section, m.Temperature))
	}
	if m.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s.max_tokens must not be negative", section))
	}
	return errs
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
