// Package retrieval backs the book handler with ranked passages from a
// pre-ingested corpus stored in Postgres + pgvector.
package retrieval

import (
	"context"
	"errors"
)

// Retriever is the query-in, ranked-passages-out boundary the dispatcher
// depends on. Passages are opaque text blocks, ordered most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// Passage is one embedded chunk keyed by a stable id.
type Passage struct {
	ID        string
	Content   string
	Embedding []float32
}

// ErrNotConfigured reports that no passage index was wired at startup.
var ErrNotConfigured = errors.New("retrieval index not configured")

// Unavailable satisfies Retriever when no index is configured; every
// lookup fails, which the dispatcher surfaces as an internal error for
// that request only.
type Unavailable struct{}

func (Unavailable) Retrieve(ctx context.Context, query string) ([]string, error) {
	return nil, ErrNotConfigured
}
