// Package stream provides the producer side of an incremental text
// response. Handlers produce chunks into a Stream; the HTTP layer drains
// Chunks and writes them out as they arrive. A response synthesized in one
// shot is just a stream that carries a single chunk before closing.
package stream

import "context"

// Stream is a bounded channel of text chunks. Send blocks when the consumer
// lags, giving natural backpressure; Close signals completion.
type Stream struct {
	ch chan string
}

// New creates a stream with the given buffer capacity.
func New(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan string, buffer)}
}

// Single wraps already-complete content as a one-chunk, closed stream.
func Single(content string) *Stream {
	s := New(1)
	s.ch <- content
	s.Close()
	return s
}

// Send enqueues one chunk, honoring context cancellation while blocked.
func (s *Stream) Send(ctx context.Context, chunk string) error {
	select {
	case s.ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the stream complete. The producer must not Send afterwards.
func (s *Stream) Close() {
	close(s.ch)
}

// Chunks exposes the consumer side; it drains until the stream is closed.
func (s *Stream) Chunks() <-chan string {
	return s.ch
}

// Collect drains the whole stream into one string. Mainly for tests and
// non-streaming consumers.
func (s *Stream) Collect() string {
	var out string
	for chunk := range s.ch {
		out += chunk
	}
	return out
}
