// Package alphavantage provides a last-price client for the Alpha Vantage GLOBAL_QUOTE API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client for alphavantage.co
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// WithBaseURL points the client at a different host (used by tests).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Name returns the provider name recorded on quotes
func (c *Client) Name() string {
	return "alphavantage"
}

// apiSymbol maps NSE/BSE suffixed tickers to the Alpha Vantage BSE form.
func apiSymbol(symbol string) string {
	for _, suffix := range []string{".NS", ".BO"} {
		if strings.HasSuffix(symbol, suffix) {
			return strings.TrimSuffix(symbol, suffix) + ".BSE"
		}
	}
	return symbol
}

// globalQuote is the GLOBAL_QUOTE payload. Throttled responses carry Note or Information instead.
type globalQuote struct {
	Quote       map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	Error       string            `json:"Error Message"`
}

// FetchPrices returns the latest price for each symbol Alpha Vantage can price.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PricePoint, error) {
	prices := make(map[string]domain.PricePoint, len(symbols))

	for _, symbol := range symbols {
		price, ok, err := c.fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			prices[symbol] = domain.PricePoint{Price: price}
		}
	}

	return prices, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	params := url.Values{}
	params.Add("function", "GLOBAL_QUOTE")
	params.Add("symbol", apiSymbol(symbol))
	params.Add("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("alphavantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	var result globalQuote
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse alphavantage response: %w", err)
	}

	if result.Note != "" || result.Information != "" {
		return decimal.Zero, false, fmt.Errorf("alphavantage rate limited: %s%s", result.Note, result.Information)
	}
	if result.Error != "" {
		c.log.Debug().Str("symbol", symbol).Str("error", result.Error).Msg("Symbol rejected")
		return decimal.Zero, false, nil
	}

	raw, ok := result.Quote["05. price"]
	if !ok || raw == "" {
		return decimal.Zero, false, nil
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid price %q for %s: %w", raw, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, false, nil
	}

	return price, true, nil
}
