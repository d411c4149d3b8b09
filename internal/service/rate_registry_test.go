package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func registryOptions() RateRegistryOptions {
	return RateRegistryOptions{
		AnchorCurrency: "USD",
		CacheTTL:       15 * time.Minute,
		MaxAge:         time.Hour,
		FetchTimeout:   2 * time.Second,
		Aggregation:    AggregationMedian,
	}
}

func newProvider(t *testing.T, ctrl *gomock.Controller, name string) *mocks.MockRateProvider {
	t.Helper()
	p := mocks.NewMockRateProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	return p
}

func quoteOf(from, to, rate, provider string) domain.RateQuote {
	mid := decimal.RequireFromString(rate)
	return domain.RateQuote{
		From:      from,
		To:        to,
		Rate:      mid,
		Bid:       mid,
		Ask:       mid,
		Provider:  provider,
		FetchedAt: time.Now().UTC(),
	}
}

func quoteWithSpread(from, to, bid, rate, ask, provider string) domain.RateQuote {
	q := quoteOf(from, to, rate, provider)
	q.Bid = decimal.RequireFromString(bid)
	q.Ask = decimal.RequireFromString(ask)
	return q
}

func TestRateRegistry_IdentityPair(t *testing.T) {
	registry := NewRateRegistry(nil, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "identity", quote.Provider)
}

func TestRateRegistry_FreshCacheSkipsProviders(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	// No FetchRate expectation: a provider call would fail the controller.

	cache := memory.NewRateCache()
	require.NoError(t, cache.Set(context.Background(), quoteOf("BTC", "USD", "50000", "primary"), time.Hour))

	registry := NewRateRegistry([]ports.RateProvider{provider}, cache, registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("50000")))
}

func TestRateRegistry_MedianOfThreeProviders(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newProvider(t, ctrl, "a")
	b := newProvider(t, ctrl, "b")
	c := newProvider(t, ctrl, "c")
	a.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50200", "a"), nil)
	b.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "49800", "b"), nil)
	c.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50000", "c"), nil)

	registry := NewRateRegistry([]ports.RateProvider{a, b, c}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("50000")))
	assert.Equal(t, "c", quote.Provider)
}

func TestRateRegistry_MedianOfEvenCountAveragesMiddle(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newProvider(t, ctrl, "a")
	b := newProvider(t, ctrl, "b")
	a.EXPECT().FetchRate(gomock.Any(), "EUR", "USD").Return(quoteOf("EUR", "USD", "1.10", "a"), nil)
	b.EXPECT().FetchRate(gomock.Any(), "EUR", "USD").Return(quoteOf("EUR", "USD", "1.20", "b"), nil)

	registry := NewRateRegistry([]ports.RateProvider{a, b}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("1.15")))
	assert.Equal(t, "median", quote.Provider)
}

func TestRateRegistry_MedianCarriesBidAsk(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newProvider(t, ctrl, "a")
	b := newProvider(t, ctrl, "b")
	a.EXPECT().FetchRate(gomock.Any(), "EUR", "USD").
		Return(quoteWithSpread("EUR", "USD", "1.09", "1.10", "1.11", "a"), nil)
	b.EXPECT().FetchRate(gomock.Any(), "EUR", "USD").
		Return(quoteWithSpread("EUR", "USD", "1.19", "1.20", "1.21", "b"), nil)

	registry := NewRateRegistry([]ports.RateProvider{a, b}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Bid.Equal(decimal.RequireFromString("1.14")))
	assert.True(t, quote.Ask.Equal(decimal.RequireFromString("1.16")))
	assert.True(t, quote.Ask.GreaterThanOrEqual(quote.Bid))
}

func TestRateRegistry_FailedProviderIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	broken := newProvider(t, ctrl, "broken")
	healthy := newProvider(t, ctrl, "healthy")
	broken.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(domain.RateQuote{}, errors.New("timeout"))
	healthy.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50000", "healthy"), nil)

	registry := NewRateRegistry([]ports.RateProvider{broken, healthy}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.Equal(t, "healthy", quote.Provider)
}

func TestRateRegistry_PriorityTakesFirstSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := newProvider(t, ctrl, "first")
	second := newProvider(t, ctrl, "second")
	first.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(domain.RateQuote{}, errors.New("down"))
	second.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50100", "second"), nil)

	opts := registryOptions()
	opts.Aggregation = AggregationPriority
	registry := NewRateRegistry([]ports.RateProvider{first, second}, memory.NewRateCache(), opts, zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.Equal(t, "second", quote.Provider)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("50100")))
}

func TestRateRegistry_TriangulatesThroughAnchor(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	provider.EXPECT().FetchRate(gomock.Any(), "BTC", "EUR").Return(domain.RateQuote{}, errors.New("unsupported pair"))
	provider.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50000", "primary"), nil)
	provider.EXPECT().FetchRate(gomock.Any(), "USD", "EUR").Return(quoteOf("USD", "EUR", "0.9", "primary"), nil)

	registry := NewRateRegistry([]ports.RateProvider{provider}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "EUR")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("45000")))
	assert.Equal(t, "triangulated:USD", quote.Provider)
}

func TestRateRegistry_StaleCacheServedWhenProvidersFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	provider.EXPECT().FetchRate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.RateQuote{}, errors.New("down")).AnyTimes()

	stale := quoteOf("BTC", "USD", "49500", "primary")
	stale.FetchedAt = time.Now().UTC().Add(-30 * time.Minute)

	cache := memory.NewRateCache()
	require.NoError(t, cache.Set(context.Background(), stale, time.Hour))

	registry := NewRateRegistry([]ports.RateProvider{provider}, cache, registryOptions(), zerolog.Nop())

	quote, err := registry.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("49500")), "stale quote within the hard ceiling is still served")
}

func TestRateRegistry_NoRateAvailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	provider.EXPECT().FetchRate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.RateQuote{}, errors.New("down")).AnyTimes()

	registry := NewRateRegistry([]ports.RateProvider{provider}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	_, err := registry.GetRate(context.Background(), "BTC", "USD")
	assert.Equal(t, "RATE_001", appCode(t, err))
}

func TestRateRegistry_Convert(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	provider.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "50000", "primary"), nil)

	registry := NewRateRegistry([]ports.RateProvider{provider}, memory.NewRateCache(), registryOptions(), zerolog.Nop())

	converted, err := registry.Convert(context.Background(), "BTC", "USD", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.True(t, converted.Equal(decimal.RequireFromString("25000")))
}

func TestRateRegistry_RefreshStaleRates(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newProvider(t, ctrl, "primary")
	provider.EXPECT().FetchRate(gomock.Any(), "BTC", "USD").Return(quoteOf("BTC", "USD", "51000", "primary"), nil)

	stale := quoteOf("BTC", "USD", "49500", "primary")
	stale.FetchedAt = time.Now().UTC().Add(-30 * time.Minute)
	fresh := quoteOf("EUR", "USD", "1.1", "primary")

	cache := memory.NewRateCache()
	require.NoError(t, cache.Set(context.Background(), stale, time.Hour))
	require.NoError(t, cache.Set(context.Background(), fresh, time.Hour))

	registry := NewRateRegistry([]ports.RateProvider{provider}, cache, registryOptions(), zerolog.Nop())
	require.NoError(t, registry.RefreshStaleRates(context.Background()))

	// Only the stale pair was re-fetched; the fresh pair stays untouched.
	refreshed, err := cache.Get(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.True(t, refreshed.Rate.Equal(decimal.RequireFromString("51000")))
}
