package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// ToolGetWeather is the capability name the engine selects for weather lookups.
const ToolGetWeather = "GetWeather"

type weatherPayload struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// WeatherAdapter maps a location string to a human-readable current-weather
// line. Every failure path returns an apology string instead of an error:
// a degraded tool result is still a valid one to fold back into synthesis.
type WeatherAdapter struct {
	cfg    model.WeatherConfig
	client *http.Client
}

func NewWeatherAdapter(cfg model.WeatherConfig, client *http.Client) *WeatherAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &WeatherAdapter{cfg: cfg, client: client}
}

func (a *WeatherAdapter) apology(location string) string {
	return fmt.Sprintf("Sorry, I couldn't fetch the weather for %q. Please try again later.", location)
}

// Invoke fetches current conditions for the given city. Missing credential,
// HTTP failure, or a payload without the expected fields all degrade to the
// apology string.
func (a *WeatherAdapter) Invoke(ctx context.Context, location string) string {
	if a.cfg.APIKey == "" {
		logx.Warn().Str("tool", ToolGetWeather).Msg("Missing weather API credential")
		return a.apology(location)
	}

	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric",
		a.cfg.BaseURL, url.QueryEscape(location), url.QueryEscape(a.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolGetWeather).Msg("Building weather request failed")
		return a.apology(location)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolGetWeather).Msg("Weather API request failed")
		return a.apology(location)
	}
	defer resp.Body.Close()

	var payload weatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logx.Error().Err(err).Str("tool", ToolGetWeather).Msg("Weather API payload malformed")
		return a.apology(location)
	}

	if resp.StatusCode != http.StatusOK || len(payload.Weather) == 0 || payload.Main.Temp == nil {
		logx.Error().
			Int("status", resp.StatusCode).
			Str("upstream_message", payload.Message).
			Str("location", location).
			Msg("Weather API returned no usable data")
		return a.apology(location)
	}

	temp := strconv.FormatFloat(*payload.Main.Temp, 'f', -1, 64)
	return fmt.Sprintf("The current weather in %s is %s with a temperature of %s°C.",
		payload.Name, payload.Weather[0].Description, temp)
}

// Descriptor exposes the capability to the generation engine.
func (a *WeatherAdapter) Descriptor() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGetWeather,
		Desc: "Fetches the current weather for a given location using a weather-by-city API.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location": {
				Type:     "string",
				Desc:     "The city and country code, e.g., Los Angeles, US or Tokyo, JP",
				Required: true,
			},
		}),
	}
}
