package conversations

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
)

// MemoryRepository keeps session windows in process memory. Windows are
// keyed per session id so concurrent sessions never bleed into each other;
// everything resets on process restart.
type MemoryRepository struct {
	mu          sync.RWMutex
	sessions    map[string][]*schema.Message
	maxMessages int
}

// NewMemoryRepository creates an in-memory store capped at maxExchanges
// user/assistant pairs per session.
func NewMemoryRepository(maxExchanges int) *MemoryRepository {
	if maxExchanges <= 0 {
		maxExchanges = DefaultExchanges
	}
	return &MemoryRepository{
		sessions:    make(map[string][]*schema.Message),
		maxMessages: maxExchanges * 2,
	}
}

func (r *MemoryRepository) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	window := append(r.sessions[sessionID], message)
	if len(window) > r.maxMessages {
		window = window[len(window)-r.maxMessages:]
	}
	r.sessions[sessionID] = window
	return nil
}

func (r *MemoryRepository) LoadHistory(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window := r.sessions[sessionID]
	messages := make([]*schema.Message, len(window))
	copy(messages, window)

	return &model.ConversationHistory{
		SessionID: sessionID,
		Messages:  messages,
	}, nil
}

func (r *MemoryRepository) ClearHistory(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemoryRepository) MessageCount(ctx context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID]), nil
}
