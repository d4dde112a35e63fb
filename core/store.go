package core

import "context"

// SearchResult represents a retrieved item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Document is a unit of text handed to a retrieval store for indexing.
type Document struct {
	Content  string
	Metadata map[string]any
}

// MemoryStore persists long-term learning records and searches them by
// similarity. Implementations must be safe for concurrent use.
type MemoryStore interface {
	Write(ctx context.Context, summary string, tags []string) (string, error)
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Recent(ctx context.Context, limit int) ([]SearchResult, error)
}

// RetrievalStore indexes document chunks and searches them by similarity.
// Implementations must be safe for concurrent use.
type RetrievalStore interface {
	Index(ctx context.Context, docs []Document) (int, error)
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
}
