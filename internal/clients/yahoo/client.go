// Package yahoo provides a last-price client for the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Client for the Yahoo Finance chart endpoint
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// WithBaseURL points the client at a different host (used by tests).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// Name returns the provider name recorded on quotes
func (c *Client) Name() string {
	return "yahoo"
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices returns the regular market price for each symbol Yahoo knows.
// Unknown symbols are left out of the result; transport and server errors fail the call.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PricePoint, error) {
	prices := make(map[string]domain.PricePoint, len(symbols))

	for _, symbol := range symbols {
		point, ok, err := c.fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			prices[symbol] = point
		}
	}

	return prices, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (domain.PricePoint, bool, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", "1d")
	reqURL := c.baseURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.log.Debug().Str("symbol", symbol).Msg("Symbol not found")
		return domain.PricePoint{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.PricePoint{}, false, fmt.Errorf("yahoo returned status %d: %s", resp.StatusCode, string(body))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("failed to parse yahoo response: %w", err)
	}
	if result.Chart.Error != nil {
		return domain.PricePoint{}, false, fmt.Errorf("yahoo error %s: %s", result.Chart.Error.Code, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return domain.PricePoint{}, false, nil
	}

	meta := result.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 {
		return domain.PricePoint{}, false, nil
	}

	return domain.PricePoint{
		Price:    decimal.NewFromFloat(*meta.RegularMarketPrice),
		Currency: strings.ToUpper(meta.Currency),
	}, true, nil
}
