// Package engine constructs the generation engine behind the gateway.
// Consumers hold the eino ToolCallingChatModel interface, so tests swap in
// fakes and the Gemini wiring stays contained here.
package engine

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// Config holds provider credentials and generation parameters.
type Config struct {
	APIKey  string
	BaseURL string
	Chat    model.EngineConfig
}

// New creates the Gemini-backed chat engine.
func New(ctx context.Context, cfg Config) (einomodel.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Chat.Model,
		Temperature: &cfg.Chat.Temperature,
		MaxTokens:   &cfg.Chat.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	return chatModel, nil
}
