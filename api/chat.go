package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	errx "github.com/bookpal-ai/server/internal/core/error"
	"github.com/bookpal-ai/server/internal/gateway/dispatch"
	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// chatMessage is one inbound message. Content may be a plain string or a
// structured array whose first element carries {"text": ...}, so it decodes
// lazily.
type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type chatRequest struct {
	SessionID string        `json:"sessionId"`
	Messages  []chatMessage `json:"messages"`
}

// ChatHandler serves POST /api/chat: extract the latest user message, run
// the dispatcher, and stream the response.
type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewChatHandler(dispatcher *dispatch.Dispatcher) *ChatHandler {
	return &ChatHandler{dispatcher: dispatcher}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logx.Warn().Err(err).Msg("Invalid chat request body")
		http.Error(w, errx.InvalidInputMessage, http.StatusBadRequest)
		return
	}

	query := extractQuery(req.Messages)
	if query == "" {
		logx.Warn().Msg("Chat request carried no usable user message")
		http.Error(w, errx.InvalidInputMessage, http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := r.Context()
	out, err := h.dispatcher.Handle(ctx, model.QueryInput{SessionID: sessionID, Query: query})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Dispatch failed")
		http.Error(w, errx.MessageOf(err), errx.StatusOf(err))
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		logx.Error().Err(err).Msg("Streaming not supported")
		http.Error(w, errx.SystemErrorMessage, http.StatusInternalServerError)
		return
	}

	for chunk := range out.Chunks() {
		select {
		case <-ctx.Done():
			logx.Info().Str("session_id", sessionID).Msg("Client disconnected mid-stream")
			return
		default:
		}
		if err := sse.writeChunk(chunk); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("Writing chunk failed")
			return
		}
	}

	if err := sse.writeDone(sessionID); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Writing done event failed")
	}
}

// extractQuery pulls the latest user message's text. Structured content
// falls back to the first element's text field.
func extractQuery(messages []chatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]

	var text string
	if err := json.Unmarshal(last.Content, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(last.Content, &parts); err == nil && len(parts) > 0 {
		return strings.TrimSpace(parts[0].Text)
	}

	return ""
}
