// Package intent maps a free-text query to exactly one member of the
// closed intent set, using the generation engine plus the bounded
// conversation window as context.
package intent

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/bookpal-ai/server/internal/core/error"
	"github.com/bookpal-ai/server/internal/gateway/conversations"
	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/gateway/prompts"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// Classifier runs the single-word classification exchange. The exchange is
// itself conversational: the query and the resolved label are appended to
// the session window, so history grows even for this step.
type Classifier struct {
	engine  einomodel.BaseChatModel
	manager *conversations.Manager
}

func NewClassifier(engine einomodel.BaseChatModel, manager *conversations.Manager) *Classifier {
	return &Classifier{engine: engine, manager: manager}
}

// Classify resolves the query to one intent. Output outside the closed set
// is an unknown-intent error, never a silent coercion.
func (c *Classifier) Classify(ctx context.Context, sessionID, query string) (model.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return "", errx.Invalid(fmt.Errorf("empty query"))
	}

	history, err := c.manager.HistoryBlock(ctx, sessionID)
	if err != nil {
		return "", errx.Internal(fmt.Errorf("load history: %w", err))
	}

	prompt := prompts.RenderClassifier(history, query)
	out, err := c.engine.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", errx.Internal(fmt.Errorf("classification generate: %w", err))
	}
	if out == nil {
		return "", errx.Internal(fmt.Errorf("classification returned nil message"))
	}

	label, err := model.ParseIntent(out.Content)
	if err != nil {
		logx.Warn().Str("session_id", sessionID).Str("raw_label", out.Content).Msg("Unrecognized classification label")
		return "", errx.UnknownIntent(err)
	}

	if err := c.manager.RecordUser(ctx, sessionID, query); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Recording user turn failed")
	}
	if err := c.manager.RecordAssistant(ctx, sessionID, label.String()); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Recording classification turn failed")
	}

	logx.Debug().Str("session_id", sessionID).Str("intent", label.String()).Msg("Query classified")
	return label, nil
}
