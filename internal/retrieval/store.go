package retrieval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	logx "github.com/bookpal-ai/server/pkg/logger"
)

// Querier is the database surface the store needs, defined here so tests
// can substitute a fake and production can hand in a pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store performs vector search and batch upserts against one passage table.
// The table (the "index name") is fixed at construction.
type Store struct {
	db       Querier
	embedder Embedder
	table    string
	topK     int
}

// NewStore validates the index name and builds the store. topK bounds how
// many passages Retrieve returns.
func NewStore(db Querier, embedder Embedder, table string, topK int) (*Store, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid index name %q", table)
	}
	if topK <= 0 {
		topK = 4
	}
	return &Store{db: db, embedder: embedder, table: table, topK: topK}, nil
}

// EnsureSchema creates the extension and passage table if missing. dim must
// match the embedding model's output width.
func (s *Store) EnsureSchema(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}
	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	sql := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, content text NOT NULL, embedding vector(%d) NOT NULL)`,
		s.table, dim)
	if _, err := s.db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create passage table: %w", err)
	}
	return nil
}

// Retrieve embeds the query and returns the topK closest passages by
// cosine distance, most relevant first.
func (s *Store) Retrieve(ctx context.Context, query string) ([]string, error) {
	return s.search(ctx, query, s.topK)
}

// Probe reports whether the index already answers a representative query.
// The ingestion pipeline uses this for its idempotency check.
func (s *Store) Probe(ctx context.Context, query string) (bool, error) {
	passages, err := s.search(ctx, query, 1)
	if err != nil {
		return false, err
	}
	return len(passages) > 0, nil
}

func (s *Store) search(ctx context.Context, query string, limit int) ([]string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sql := fmt.Sprintf(`SELECT content FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table)
	rows, err := s.db.Query(ctx, sql, pgvector.NewVector(vectors[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var passages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		passages = append(passages, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}

	logx.Debug().Int("passages", len(passages)).Msg("Vector search complete")
	return passages, nil
}

// UpsertBatch writes one batch of embedded passages, keyed by stable ids so
// re-ingestion overwrites instead of duplicating.
func (s *Store) UpsertBatch(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		s.table)

	batch := &pgx.Batch{}
	for _, p := range passages {
		batch.Queue(sql, p.ID, p.Content, pgvector.NewVector(p.Embedding))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range passages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert passage: %w", err)
		}
	}
	return nil
}
