package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/retrieval"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	short   bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	n := len(texts)
	if e.short {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

type fakeUploader struct {
	mu        sync.Mutex
	populated bool
	probeErr  error
	probes    []string
	batches   [][]retrieval.Passage
	// failures maps a batch's first passage id to how many times the upsert
	// should fail before succeeding.
	failures map[string]int
	failWith error
}

func (u *fakeUploader) Probe(ctx context.Context, query string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.probes = append(u.probes, query)
	return u.populated, u.probeErr
}

func (u *fakeUploader) UpsertBatch(ctx context.Context, passages []retrieval.Passage) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.batches = append(u.batches, passages)
	if len(passages) > 0 && u.failures[passages[0].ID] > 0 {
		u.failures[passages[0].ID]--
		return u.failWith
	}
	return nil
}

// recordingBackOff doubles tiny delays and remembers each one handed out.
type recordingBackOff struct {
	next   time.Duration
	max    int
	given  int
	delays []time.Duration
}

func (b *recordingBackOff) NextBackOff() time.Duration {
	if b.given >= b.max {
		return backoff.Stop
	}
	b.given++
	d := b.next
	b.next *= 2
	b.delays = append(b.delays, d)
	return d
}

func (b *recordingBackOff) Reset() {}

func testIngestConfig() model.IngestConfig {
	return model.IngestConfig{
		ChunkSize:  10,
		BatchSize:  2,
		MaxRetries: 5,
		ProbeQuery: "who is adam?",
	}
}

// fiveChunks yields five single-paragraph chunks under the test chunk size.
const fiveChunks = "alpha\n\nbravo\n\ncharli\n\ndelta\n\nechoes"

func fastOptions(factory func() backoff.BackOff) []Option {
	return []Option{
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithBackOffFactory(factory),
	}
}

func zeroBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{}
	uploader := &fakeUploader{}
	p := NewPipeline(embedder, uploader, testIngestConfig(), fastOptions(zeroBackOff)...)

	uploaded, err := p.Run(context.Background(), fiveChunks)
	require.NoError(t, err)
	assert.Equal(t, 5, uploaded)

	require.Equal(t, []string{"who is adam?"}, uploader.probes)

	// Five chunks at batch size two: [0,1] [2,3] [4].
	require.Len(t, uploader.batches, 3)
	assert.Len(t, uploader.batches[0], 2)
	assert.Len(t, uploader.batches[1], 2)
	assert.Len(t, uploader.batches[2], 1)

	// Ids are stable positions, so re-ingestion overwrites in place.
	var ids []string
	for _, batch := range uploader.batches {
		for _, p := range batch {
			ids = append(ids, p.ID)
			assert.NotEmpty(t, p.Content)
			assert.Equal(t, []float32{1, 2, 3}, p.Embedding)
		}
	}
	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2", "chunk-3", "chunk-4"}, ids)
}

func TestPipeline_SkipsWhenPopulated(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{}
	uploader := &fakeUploader{populated: true}
	p := NewPipeline(embedder, uploader, testIngestConfig(), fastOptions(zeroBackOff)...)

	uploaded, err := p.Run(context.Background(), fiveChunks)
	require.NoError(t, err)
	assert.Zero(t, uploaded)
	assert.Empty(t, uploader.batches, "no upserts against a populated index")
	assert.Empty(t, embedder.batches, "no embedding work either")
}

func TestPipeline_RetriesOnlyTheRateLimitedBatch(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{}
	uploader := &fakeUploader{
		failures: map[string]int{"chunk-2": 2}, // second batch fails twice
		failWith: ErrRateLimited,
	}

	var created []*recordingBackOff
	factory := func() backoff.BackOff {
		b := &recordingBackOff{next: time.Millisecond, max: 5}
		created = append(created, b)
		return b
	}

	p := NewPipeline(embedder, uploader, testIngestConfig(), fastOptions(factory)...)

	uploaded, err := p.Run(context.Background(), fiveChunks)
	require.NoError(t, err)
	assert.Equal(t, 5, uploaded)

	// One attempt for batches one and three, three for the throttled one.
	require.Len(t, uploader.batches, 5)
	attempts := map[string]int{}
	for _, batch := range uploader.batches {
		attempts[batch[0].ID]++
	}
	assert.Equal(t, map[string]int{"chunk-0": 1, "chunk-2": 3, "chunk-4": 1}, attempts)

	// Each batch gets a fresh policy; only the throttled one slept, doubling.
	require.Len(t, created, 3)
	assert.Empty(t, created[0].delays)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, created[1].delays)
	assert.Empty(t, created[2].delays)

	// The rate-limited batch was embedded once per attempt, not re-chunked.
	assert.Len(t, embedder.batches, 3)
}

func TestPipeline_RetriesExhausted(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{}
	uploader := &fakeUploader{
		failures: map[string]int{"chunk-0": 100},
		failWith: fmt.Errorf("upstream said 429 too many requests"),
	}
	factory := func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}

	p := NewPipeline(embedder, uploader, testIngestConfig(), fastOptions(factory)...)

	_, err := p.Run(context.Background(), fiveChunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	// Initial attempt plus two retries, then the run stops at that batch.
	assert.Len(t, uploader.batches, 3)
}

func TestPipeline_NonRetryableAbortsImmediately(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{}
	uploader := &fakeUploader{
		failures: map[string]int{"chunk-0": 100},
		failWith: errors.New("schema mismatch"),
	}

	var created []*recordingBackOff
	factory := func() backoff.BackOff {
		b := &recordingBackOff{next: time.Millisecond, max: 5}
		created = append(created, b)
		return b
	}

	p := NewPipeline(embedder, uploader, testIngestConfig(), fastOptions(factory)...)

	_, err := p.Run(context.Background(), fiveChunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")

	// A permanent failure never retries.
	assert.Len(t, uploader.batches, 1)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].delays)
}

func TestPipeline_ProbeFailure(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{probeErr: errors.New("index unreachable")}
	p := NewPipeline(&fakeEmbedder{}, uploader, testIngestConfig(), fastOptions(zeroBackOff)...)

	_, err := p.Run(context.Background(), fiveChunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe index")
}

func TestPipeline_EmbeddingCountMismatch(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{short: true}
	p := NewPipeline(embedder, &fakeUploader{}, testIngestConfig(), fastOptions(zeroBackOff)...)

	_, err := p.Run(context.Background(), fiveChunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestPipeline_NoChunks(t *testing.T) {
	t.Parallel()

	p := NewPipeline(&fakeEmbedder{}, &fakeUploader{}, testIngestConfig(), fastOptions(zeroBackOff)...)
	_, err := p.Run(context.Background(), "   ")
	require.Error(t, err)
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	assert.True(t, isRateLimited(ErrRateLimited))
	assert.True(t, isRateLimited(fmt.Errorf("batch: %w", ErrRateLimited)))
	assert.True(t, isRateLimited(errors.New("HTTP 429 from upstream")))
	assert.False(t, isRateLimited(errors.New("connection refused")))
}
