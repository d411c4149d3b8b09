package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_FetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC", r.URL.Query().Get("from"))
		assert.Equal(t, "USD", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rate":"50000.12","bid":"49990","ask":"50010","volume_24h":"1200.5","change_24h":"-0.021"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("primary", srv.URL, srv.Client())
	quote, err := p.FetchRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	assert.Equal(t, "primary", quote.Provider)
	assert.Equal(t, "BTC", quote.From)
	assert.Equal(t, "USD", quote.To)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("50000.12")))
	assert.True(t, quote.Bid.Equal(decimal.NewFromInt(49_990)))
	assert.True(t, quote.Ask.Equal(decimal.NewFromInt(50_010)))
	require.NotNil(t, quote.Volume24h)
	assert.True(t, quote.Volume24h.Equal(decimal.RequireFromString("1200.5")))
	require.NotNil(t, quote.Change24h)
	assert.True(t, quote.Change24h.Equal(decimal.RequireFromString("-0.021")))
	assert.False(t, quote.FetchedAt.IsZero())
}

func TestHTTPProvider_MissingBidAskDefaultsToMid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate":"50000"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("primary", srv.URL, srv.Client())
	quote, err := p.FetchRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	assert.True(t, quote.Bid.Equal(quote.Rate))
	assert.True(t, quote.Ask.Equal(quote.Rate))
	assert.Nil(t, quote.Volume24h)
}

func TestHTTPProvider_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider("primary", srv.URL, srv.Client())
	_, err := p.FetchRate(context.Background(), "BTC", "USD")
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestHTTPProvider_RejectsBadRate(t *testing.T) {
	for name, payload := range map[string]string{
		"malformed":     `{"rate":"not-a-number"}`,
		"non_positive":  `{"rate":"-1"}`,
		"crossed_quote": `{"rate":"50000","bid":"50010","ask":"49990"}`,
		"zero_bid":      `{"rate":"50000","bid":"0","ask":"50010"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(payload))
			}))
			defer srv.Close()

			p := NewHTTPProvider("primary", srv.URL, srv.Client())
			_, err := p.FetchRate(context.Background(), "BTC", "USD")
			assert.Error(t, err)
		})
	}
}
