// Package finnhub provides a last-price client for the Finnhub quote API.
package finnhub

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

// Client for finnhub.io
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://finnhub.io/api/v1",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "finnhub").Logger(),
	}
}

// WithBaseURL points the client at a different host (used by tests).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// Name returns the provider name recorded on quotes
func (c *Client) Name() string {
	return "finnhub"
}

// quoteResponse is the /quote payload. c is the current price, pc the previous close.
type quoteResponse struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// FetchPrices returns the current price for each symbol Finnhub can price.
// Finnhub answers unknown symbols with a zero price; those are left out.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PricePoint, error) {
	prices := make(map[string]domain.PricePoint, len(symbols))

	for _, symbol := range symbols {
		params := url.Values{}
		params.Add("symbol", symbol)
		params.Add("token", c.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("finnhub request failed: %w", err)
		}

		var quote quoteResponse
		err = decodeQuote(resp, &quote)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if quote.Current <= 0 {
			c.log.Debug().Str("symbol", symbol).Msg("No price returned")
			continue
		}

		prices[symbol] = domain.PricePoint{Price: decimal.NewFromFloat(quote.Current)}
	}

	return prices, nil
}

func decodeQuote(resp *http.Response, quote *quoteResponse) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finnhub returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(quote); err != nil {
		return fmt.Errorf("failed to parse finnhub response: %w", err)
	}
	return nil
}
