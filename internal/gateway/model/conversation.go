package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository stores the bounded per-session history window.
// Implementations enforce the FIFO cap themselves so callers can append
// without counting.
type ConversationRepository interface {
	// AddMessage appends a message to the session's window, evicting the
	// oldest entries once the cap is exceeded.
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the current window for a session, oldest first.
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all history for a session.
	ClearHistory(ctx context.Context, sessionID string) error

	// MessageCount returns the number of messages currently retained.
	MessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded window contents with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
