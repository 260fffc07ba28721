package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// ToolImageGeneration is the capability name for image synthesis.
const ToolImageGeneration = "ImageGenerationTool"

type imageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imagePayload struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ImageAdapter calls an image-synthesis endpoint and extracts the generated
// URL. Its contract differs from the text adapters: any failure returns the
// empty string, which callers must treat as "no image produced".
type ImageAdapter struct {
	cfg    model.ImageConfig
	client *http.Client
}

func NewImageAdapter(cfg model.ImageConfig, client *http.Client) *ImageAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1024"
	}
	return &ImageAdapter{cfg: cfg, client: client}
}

// Invoke generates an image for the prompt and returns its URL, or "" on
// any failure (missing credential, network, non-2xx, malformed JSON,
// missing URL field).
func (a *ImageAdapter) Invoke(ctx context.Context, prompt string) string {
	if a.cfg.APIKey == "" || a.cfg.Endpoint == "" {
		logx.Warn().Str("tool", ToolImageGeneration).Msg("Missing image generation credential or endpoint")
		return ""
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/images/generations?api-version=%s",
		a.cfg.Endpoint, a.cfg.Deployment, a.cfg.APIVersion)

	body, err := json.Marshal(imageRequest{Prompt: prompt, N: 1, Size: a.cfg.Size})
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolImageGeneration).Msg("Encoding image request failed")
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolImageGeneration).Msg("Building image request failed")
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolImageGeneration).Msg("Image generation request failed")
		return ""
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolImageGeneration).Msg("Reading image response failed")
		return ""
	}

	if resp.StatusCode != http.StatusOK {
		logx.Error().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Image generation request rejected")
		return ""
	}

	var payload imagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logx.Error().Err(err).Str("tool", ToolImageGeneration).Msg("Image response not valid JSON")
		return ""
	}

	if len(payload.Data) == 0 || payload.Data[0].URL == "" {
		logx.Error().Str("tool", ToolImageGeneration).Msg("No image URL in the response")
		return ""
	}

	return payload.Data[0].URL
}

// Descriptor exposes the capability to the generation engine.
func (a *ImageAdapter) Descriptor() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolImageGeneration,
		Desc: "Generates an image based on a user's prompt",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"prompt": {
				Type:     "string",
				Desc:     "The detailed description for image generation",
				Required: true,
			},
		}),
	}
}
