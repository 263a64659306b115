package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))

		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			_, _ = w.Write([]byte(`{"c":189.5,"d":1.2,"dp":0.6,"pc":188.3,"t":1700000000}`))
		default:
			_, _ = w.Write([]byte(`{"c":0,"d":null,"dp":null,"pc":0,"t":0}`))
		}
	}))
	defer server.Close()

	client := NewClient("secret", zerolog.Nop()).WithBaseURL(server.URL)

	prices, err := client.FetchPrices(context.Background(), []string{"AAPL", "UNKNOWN"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, decimal.RequireFromString("189.5").Equal(prices["AAPL"].Price))
	assert.Empty(t, prices["AAPL"].Currency)
}

func TestFetchPrices_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad", zerolog.Nop()).WithBaseURL(server.URL)

	_, err := client.FetchPrices(context.Background(), []string{"AAPL"})
	assert.ErrorContains(t, err, "status 401")
}

func TestFetchPrices_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient("k", zerolog.Nop()).WithBaseURL(server.URL)

	_, err := client.FetchPrices(context.Background(), []string{"AAPL"})
	assert.ErrorContains(t, err, "failed to parse")
}
