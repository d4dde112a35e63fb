// Package vectorstore holds embedded records and answers nearest-neighbour
// queries by cosine similarity. The memory and retrieval stores are built on
// top of a Collection.
package vectorstore

import (
	"context"
	"errors"
	"sort"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/embedding"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// collection's established dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one stored item.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]any
	Vector   []float32
}

// Collection stores records and ranks them against a query vector.
// Implementations must be safe for concurrent use.
type Collection interface {
	Name() string
	Add(ctx context.Context, records ...Record) error
	Query(ctx context.Context, vector []float32, k int) ([]core.SearchResult, error)
	List(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, ids ...string) error
	Clear(ctx context.Context) error
}

// rank scores records against vector and returns the best k, highest first.
// Ties keep insertion order.
func rank(records []Record, vector []float32, k int) []core.SearchResult {
	if k <= 0 {
		return []core.SearchResult{}
	}
	results := make([]core.SearchResult, 0, len(records))
	for _, r := range records {
		results = append(results, core.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(embedding.CosineSimilarity(vector, r.Vector)),
			Metadata: copyMetadata(r.Metadata),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
