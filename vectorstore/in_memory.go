package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/studycoach/core"
)

// InMemory is a process-local Collection.
//
// Concurrency: protected by RWMutex.
// Query: linear scan with cosine scoring. Suitable for tests, demos and small
// corpora; use the sqlite collection for persistence.
type InMemory struct {
	name    string
	mu      sync.RWMutex
	records []Record
	index   map[string]int // id -> position in records
	dims    int
}

// NewInMemory creates an empty in-memory collection.
func NewInMemory(name string) *InMemory {
	return &InMemory{name: name, index: make(map[string]int)}
}

// Name implements Collection.
func (m *InMemory) Name() string { return m.name }

// Add inserts records, replacing existing ones with the same id.
func (m *InMemory) Add(ctx context.Context, records ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = core.NewID()
		}
		if m.dims == 0 {
			m.dims = len(r.Vector)
		} else if len(r.Vector) != m.dims {
			return fmt.Errorf("%s: record %s has %d dimensions, want %d: %w", m.name, r.ID, len(r.Vector), m.dims, ErrDimensionMismatch)
		}
		r.Metadata = copyMetadata(r.Metadata)
		if pos, ok := m.index[r.ID]; ok {
			m.records[pos] = r
			continue
		}
		m.index[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
	return nil
}

// Query implements Collection.
func (m *InMemory) Query(ctx context.Context, vector []float32, k int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rank(m.records, vector, k), nil
}

// List returns all records in insertion order.
func (m *InMemory) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		r.Metadata = copyMetadata(r.Metadata)
		out[i] = r
	}
	return out, nil
}

// Count implements Collection.
func (m *InMemory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Delete removes records by id. Unknown ids are ignored.
func (m *InMemory) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	m.records = kept
	m.index = make(map[string]int, len(kept))
	for i, r := range kept {
		m.index[r.ID] = i
	}
	if len(kept) == 0 {
		m.dims = 0
	}
	return nil
}

// Clear removes every record.
func (m *InMemory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.index = make(map[string]int)
	m.dims = 0
	return nil
}
