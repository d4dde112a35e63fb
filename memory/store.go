package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/embedding"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/vectorstore"
)

// NoContextMessage is rendered by FormatContext when nothing was recalled.
const NoContextMessage = "No related past learning records."

// ErrEmptySummary is returned when Write is called without content.
var ErrEmptySummary = errors.New("memory summary is empty")

// Options configure a Store.
type Options struct {
	Now    func() time.Time
	Logger logging.Logger
}

// Store is a long-term memory backed by a vector collection.
type Store struct {
	collection vectorstore.Collection
	embedder   embedding.Embedder
	opts       Options
}

var _ core.MemoryStore = (*Store)(nil)

// New creates a memory store.
func New(collection vectorstore.Collection, embedder embedding.Embedder, optFns ...func(o *Options)) *Store {
	opts := Options{
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{collection: collection, embedder: embedder, opts: opts}
}

// Write embeds and stores a summary and returns its id.
func (s *Store) Write(ctx context.Context, summary string, tags []string) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptySummary
	}
	vec, err := embedding.EmbedOne(ctx, s.embedder, summary)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}

	md := map[string]any{"timestamp": s.opts.Now().Format(time.RFC3339)}
	if len(tags) > 0 {
		md["tags"] = append([]string(nil), tags...)
	}
	id := core.NewID()
	if err := s.collection.Add(ctx, vectorstore.Record{ID: id, Content: summary, Metadata: md, Vector: vec}); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	s.opts.Logger.Debug("memory.write", "memory_id", id, "tags", len(tags))
	return id, nil
}

// Search returns up to topK memories most similar to query.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error) {
	if topK <= 0 {
		return []core.SearchResult{}, nil
	}
	vec, err := embedding.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.collection.Query(ctx, vec, topK)
}

// Recent returns up to limit memories, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.SearchResult, error) {
	records, err := s.collection.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.SearchResult, 0, len(records))
	for _, r := range records {
		out = append(out, core.SearchResult{ID: r.ID, Content: r.Content, Metadata: r.Metadata})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timestamp(out[i]) > timestamp(out[j])
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Clear deletes every memory.
func (s *Store) Clear(ctx context.Context) error {
	return s.collection.Clear(ctx)
}

// Count returns the number of stored memories.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(ctx)
}

// FormatContext renders recalled memories as a numbered block suitable for
// an instruction template.
func FormatContext(results []core.SearchResult) string {
	if len(results) == 0 {
		return NoContextMessage
	}
	var b strings.Builder
	b.WriteString("Past learning records:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Content)
	}
	return b.String()
}

func timestamp(r core.SearchResult) string {
	ts, _ := r.Metadata["timestamp"].(string)
	return ts
}
