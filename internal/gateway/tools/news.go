package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// ToolGeneralNews is the capability name for keyword news lookups.
const ToolGeneralNews = "GeneralNewsTool"

type newsPayload struct {
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
	Message string `json:"message"`
}

// NewsAdapter fetches a bounded number of recent articles for a keyword and
// formats them as a numbered, blank-line-separated digest. An empty result
// set is an error surfaced as an apology string.
type NewsAdapter struct {
	cfg    model.NewsConfig
	client *http.Client
}

func NewNewsAdapter(cfg model.NewsConfig, client *http.Client) *NewsAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &NewsAdapter{cfg: cfg, client: client}
}

func (a *NewsAdapter) apology(keyword string) string {
	return fmt.Sprintf("Sorry, I couldn't fetch news for %q. Please try again later.", keyword)
}

// Invoke searches articles for the keyword, which may be the raw user query.
func (a *NewsAdapter) Invoke(ctx context.Context, keyword string) string {
	if a.cfg.APIKey == "" {
		logx.Warn().Str("tool", ToolGeneralNews).Msg("Missing news API credential")
		return a.apology(keyword)
	}

	endpoint := fmt.Sprintf("%s/everything?q=%s&apiKey=%s&language=%s&pageSize=%d",
		a.cfg.BaseURL, url.QueryEscape(keyword), url.QueryEscape(a.cfg.APIKey), a.cfg.Language, a.cfg.PageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolGeneralNews).Msg("Building news request failed")
		return a.apology(keyword)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolGeneralNews).Msg("News API request failed")
		return a.apology(keyword)
	}
	defer resp.Body.Close()

	var payload newsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logx.Error().Err(err).Str("tool", ToolGeneralNews).Msg("News API payload malformed")
		return a.apology(keyword)
	}

	if resp.StatusCode != http.StatusOK || len(payload.Articles) == 0 {
		logx.Error().
			Int("status", resp.StatusCode).
			Str("upstream_message", payload.Message).
			Str("keyword", keyword).
			Msg("News API returned no articles")
		return a.apology(keyword)
	}

	entries := make([]string, 0, len(payload.Articles))
	for i, article := range payload.Articles {
		entries = append(entries, fmt.Sprintf("%d. %s - %s\n%s\nRead more: %s",
			i+1, article.Title, article.Source.Name, article.Description, article.URL))
	}

	return fmt.Sprintf("Here are the top news articles for %q:\n\n%s", keyword, strings.Join(entries, "\n\n"))
}

// Descriptor exposes the capability to the generation engine. News is also
// dispatched directly without a tool-call round trip, but the descriptor
// keeps the registry uniform.
func (a *NewsAdapter) Descriptor() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGeneralNews,
		Desc: "Fetches the latest general news based on a given keyword or topic.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword": {
				Type:     "string",
				Desc:     "The topic or keyword to search for in the news, e.g., 'technology', 'sports', or 'economy'.",
				Required: true,
			},
		}),
	}
}
