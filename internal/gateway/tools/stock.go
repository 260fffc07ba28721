package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/bookpal-ai/server/internal/gateway/model"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

// ToolGetStockPrice is the capability name for quote lookups.
const ToolGetStockPrice = "GetStockPrice"

type quotePayload struct {
	Current       *float64 `json:"c"`
	PreviousClose *float64 `json:"pc"`
	ChangePercent *float64 `json:"dp"`
}

type profilePayload struct {
	Name string `json:"name"`
}

// StockAdapter combines a quote and a company profile into one summary
// string. The two upstream reads are independent, so they run concurrently
// and join before formatting.
type StockAdapter struct {
	cfg    model.StockConfig
	client *http.Client
}

func NewStockAdapter(cfg model.StockConfig, client *http.Client) *StockAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &StockAdapter{cfg: cfg, client: client}
}

func (a *StockAdapter) apology(symbol string) string {
	return fmt.Sprintf("Sorry, I couldn't fetch stock information for %q. Please check the symbol and try again.", symbol)
}

func (a *StockAdapter) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Invoke fetches quote and profile for the ticker. A missing company name
// renders as "Unknown Company", missing numerics as "N/A"; the percent
// change rounds to 2 decimal places. Quote failure degrades to the apology
// string; a failed profile alone only costs the company name.
func (a *StockAdapter) Invoke(ctx context.Context, symbol string) string {
	if a.cfg.APIKey == "" {
		logx.Warn().Str("tool", ToolGetStockPrice).Msg("Missing stock API credential")
		return a.apology(symbol)
	}

	quoteURL := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		a.cfg.BaseURL, url.QueryEscape(symbol), url.QueryEscape(a.cfg.APIKey))
	profileURL := fmt.Sprintf("%s/stock/profile2?symbol=%s&token=%s",
		a.cfg.BaseURL, url.QueryEscape(symbol), url.QueryEscape(a.cfg.APIKey))

	var (
		wg         sync.WaitGroup
		quote      quotePayload
		profile    profilePayload
		quoteErr   error
		profileErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		quoteErr = a.get(ctx, quoteURL, &quote)
	}()
	go func() {
		defer wg.Done()
		profileErr = a.get(ctx, profileURL, &profile)
	}()
	wg.Wait()

	if quoteErr != nil {
		logx.Error().Err(quoteErr).Str("symbol", symbol).Msg("Stock quote request failed")
		return a.apology(symbol)
	}
	if profileErr != nil {
		logx.Warn().Err(profileErr).Str("symbol", symbol).Msg("Stock profile request failed")
	}

	companyName := profile.Name
	if companyName == "" {
		companyName = "Unknown Company"
	}

	return fmt.Sprintf("Stock Information for %s (%s):\n- Current Price: $%s\n- Previous Close: $%s\n- Change: %s%%",
		symbol,
		companyName,
		formatPrice(quote.Current),
		formatPrice(quote.PreviousClose),
		formatPercent(quote.ChangePercent))
}

func formatPrice(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatPercent(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Descriptor exposes the capability to the generation engine.
func (a *StockAdapter) Descriptor() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolGetStockPrice,
		Desc: "Fetches current stock price and basic information for a given stock symbol",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"symbol": {
				Type:     "string",
				Desc:     "The stock ticker symbol (e.g., AAPL, GOOGL, MSFT)",
				Required: true,
			},
		}),
	}
}
