package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
)

// DefaultExchanges caps the window at four user/assistant pairs.
const DefaultExchanges = 4

// Manager wraps a ConversationRepository with the context-building helpers
// the classifier and handlers share.
type Manager struct {
	repo model.ConversationRepository
}

func NewManager(repo model.ConversationRepository) *Manager {
	return &Manager{repo: repo}
}

// RecordUser appends the user's message for this turn.
func (m *Manager) RecordUser(ctx context.Context, sessionID, query string) error {
	return m.repo.AddMessage(ctx, sessionID, schema.UserMessage(query))
}

// RecordAssistant appends the assistant's final content for this turn.
func (m *Manager) RecordAssistant(ctx context.Context, sessionID, content string) error {
	return m.repo.AddMessage(ctx, sessionID, schema.AssistantMessage(content, nil))
}

// HistoryBlock renders the current window as a plain-text transcript for
// prompt templates. Empty windows render as an empty string.
func (m *Manager) HistoryBlock(ctx context.Context, sessionID string) (string, error) {
	history, err := m.repo.LoadHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, msg := range history.Messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("Human: " + msg.Content + "\n")
		case schema.Assistant:
			b.WriteString("AI: " + msg.Content + "\n")
		}
	}
	return b.String(), nil
}

// Window exposes the raw message window for handlers that pass history as
// structured messages rather than transcript text.
func (m *Manager) Window(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	history, err := m.repo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return history.Messages, nil
}

// Repository returns the underlying store, mainly for tests inspecting
// window contents.
func (m *Manager) Repository() model.ConversationRepository {
	return m.repo
}
