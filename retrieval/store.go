package retrieval

import (
	"context"
	"fmt"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/embedding"
	"github.com/hupe1980/studycoach/vectorstore"
)

// embedBatch bounds the number of texts sent to the embedder at once.
const embedBatch = 64

// Store is a core.RetrievalStore over a vector collection.
type Store struct {
	collection vectorstore.Collection
	embedder   embedding.Embedder
}

var _ core.RetrievalStore = (*Store)(nil)

// NewStore creates a retrieval store.
func NewStore(collection vectorstore.Collection, embedder embedding.Embedder) *Store {
	return &Store{collection: collection, embedder: embedder}
}

// Index embeds and stores docs and returns how many were stored.
func (s *Store) Index(ctx context.Context, docs []core.Document) (int, error) {
	stored := 0
	for start := 0; start < len(docs); start += embedBatch {
		end := min(start+embedBatch, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("embed documents: %w", err)
		}
		if len(vecs) != len(batch) {
			return stored, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vecs), len(batch))
		}

		records := make([]vectorstore.Record, len(batch))
		for i, d := range batch {
			records[i] = vectorstore.Record{
				ID:       core.NewID(),
				Content:  d.Content,
				Metadata: d.Metadata,
				Vector:   vecs[i],
			}
		}
		if err := s.collection.Add(ctx, records...); err != nil {
			return stored, fmt.Errorf("store documents: %w", err)
		}
		stored += len(batch)
	}
	return stored, nil
}

// Search returns up to topK chunks most similar to query.
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

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(ctx)
}

// Clear removes every indexed chunk.
func (s *Store) Clear(ctx context.Context) error {
	return s.collection.Clear(ctx)
}
