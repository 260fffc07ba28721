// Package ingest implements the offline chunk/embed/upsert pipeline that
// populates the passage index ahead of serving time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/retrieval"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// ErrRateLimited marks an upstream rate-limit rejection. Only this class of
// failure is retried; anything else aborts the batch immediately.
var ErrRateLimited = errors.New("rate limited")

// Uploader is the index surface the pipeline writes to.
type Uploader interface {
	// Probe reports whether a representative query already returns results.
	Probe(ctx context.Context, query string) (bool, error)

	// UpsertBatch writes one batch of embedded passages.
	UpsertBatch(ctx context.Context, passages []retrieval.Passage) error
}

// Option tweaks pipeline construction, mainly for tests.
type Option func(*Pipeline)

// WithBackOffFactory replaces the retry policy used per batch.
func WithBackOffFactory(factory func() backoff.BackOff) Option {
	return func(p *Pipeline) { p.newBackOff = factory }
}

// WithLimiter replaces the inter-batch pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// Pipeline chunks a source text, embeds the chunks, and upserts them into
// the index in batches. Re-running against a populated index is a no-op:
// idempotency is by probe, not by content hash.
type Pipeline struct {
	embedder   retrieval.Embedder
	uploader   Uploader
	cfg        model.IngestConfig
	newBackOff func() backoff.BackOff
	limiter    *rate.Limiter
}

func NewPipeline(embedder retrieval.Embedder, uploader Uploader, cfg model.IngestConfig, opts ...Option) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	p := &Pipeline{
		embedder: embedder,
		uploader: uploader,
		cfg:      cfg,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.Multiplier = 2
			b.RandomizationFactor = 0
			return backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
		},
		// Small pause between batches keeps well under upstream limits.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests the given text. Returns the number of chunks uploaded; zero
// with a nil error means the probe found the index already populated.
func (p *Pipeline) Run(ctx context.Context, text string) (int, error) {
	chunks := Chunk(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("source text produced no chunks")
	}
	logx.Info().Int("chunks", len(chunks)).Msg("Source text chunked")

	populated, err := p.uploader.Probe(ctx, p.cfg.ProbeQuery)
	if err != nil {
		return 0, fmt.Errorf("probe index: %w", err)
	}
	if populated {
		logx.Info().Str("probe_query", p.cfg.ProbeQuery).Msg("Embeddings already exist in the index; skipping upload")
		return 0, nil
	}

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return start, err
		}

		if err := p.uploadBatch(ctx, chunks[start:end], start); err != nil {
			return start, fmt.Errorf("upload batch starting at chunk %d: %w", start, err)
		}
		logx.Info().Int("batch_start", start).Int("batch_size", end-start).Msg("Uploaded batch")
	}

	return len(chunks), nil
}

// uploadBatch embeds and upserts one batch, retrying only that batch on
// rate-limit errors with doubling delay up to the retry cap.
func (p *Pipeline) uploadBatch(ctx context.Context, batch []string, offset int) error {
	vectors, err := p.embedder.Embed(ctx, batch)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
	}

	passages := make([]retrieval.Passage, len(batch))
	for i, content := range batch {
		passages[i] = retrieval.Passage{
			ID:        fmt.Sprintf("chunk-%d", offset+i),
			Content:   content,
			Embedding: vectors[i],
		}
	}

	op := func() error {
		err := p.uploader.UpsertBatch(ctx, passages)
		if err == nil {
			return nil
		}
		if isRateLimited(err) {
			logx.Warn().Err(err).Int("batch_start", offset).Msg("Rate limit reached; retrying batch")
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(p.newBackOff(), ctx))
}

func isRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return strings.Contains(err.Error(), "429")
}
