package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// sseWriter frames response chunks as Server-Sent Events so clients can
// consume content incrementally.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets stream headers and verifies flushing support.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent writes one named event. Multi-line content gets a "data: "
// prefix per line, per the SSE framing rules.
func (s *sseWriter) writeEvent(event, content string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}
	for _, line := range strings.Split(content, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// writeChunk sends one partial-content event.
func (s *sseWriter) writeChunk(text string) error {
	return s.writeEvent("chunk", text)
}

// writeDone signals completion and echoes the session id so the client can
// thread follow-up turns.
func (s *sseWriter) writeDone(sessionID string) error {
	payload, err := json.Marshal(map[string]string{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("marshal done payload: %w", err)
	}
	return s.writeEvent("done", string(payload))
}
