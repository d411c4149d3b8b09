package service

import (
	"context"
	"sort"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/metrics"
	"ledger-core/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Aggregation strategies for combining quotes from multiple providers.
const (
	AggregationMedian   = "median"
	AggregationPriority = "priority"
)

// RateRegistryOptions tunes freshness and aggregation behavior.
type RateRegistryOptions struct {
	// AnchorCurrency is the triangulation pivot for unsupported direct pairs.
	AnchorCurrency string
	// CacheTTL is how long a cached quote counts as fresh.
	CacheTTL time.Duration
	// MaxAge is the hard ceiling: beyond it a cached quote is never served.
	MaxAge time.Duration
	// FetchTimeout bounds each individual provider call.
	FetchTimeout time.Duration
	Aggregation  string
}

// RateRegistry implements ports.RateService over a prioritized provider list
// and a shared cache. Provider order is the priority order.
type RateRegistry struct {
	providers []ports.RateProvider
	cache     ports.RateCache
	opts      RateRegistryOptions
	log       zerolog.Logger
}

// NewRateRegistry creates a new RateRegistry.
func NewRateRegistry(providers []ports.RateProvider, cache ports.RateCache, opts RateRegistryOptions, log zerolog.Logger) *RateRegistry {
	return &RateRegistry{
		providers: providers,
		cache:     cache,
		opts:      opts,
		log:       log,
	}
}

// GetRate resolves one pair: identity, fresh cache, live fetch, triangulation
// through the anchor currency, then stale-but-tolerable cache, in that order.
func (r *RateRegistry) GetRate(ctx context.Context, from, to string) (domain.RateQuote, error) {
	if from == to {
		one := decimal.NewFromInt(1)
		return domain.RateQuote{
			From: from, To: to,
			Rate: one, Bid: one, Ask: one,
			Provider:  "identity",
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	now := time.Now().UTC()
	cached := r.cachedQuote(ctx, from, to)
	if cached != nil && cached.Age(now) <= r.opts.CacheTTL {
		return *cached, nil
	}

	if quote, ok := r.fetchAggregate(ctx, from, to); ok {
		r.storeQuote(ctx, quote)
		return quote, nil
	}

	if quote, ok := r.triangulate(ctx, from, to); ok {
		r.storeQuote(ctx, quote)
		return quote, nil
	}

	// All sources failed; a stale quote inside the hard ceiling still beats
	// no answer.
	if cached != nil && cached.Age(now) <= r.opts.MaxAge {
		r.log.Warn().
			Str("from", from).
			Str("to", to).
			Dur("age", cached.Age(now)).
			Msg("serving stale exchange rate")
		return *cached, nil
	}

	return domain.RateQuote{}, apperror.ErrNoRateAvailable(from, to)
}

// Convert applies the resolved rate to an amount at 8 decimal places.
func (r *RateRegistry) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	quote, err := r.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(quote.Rate).RoundDown(8), nil
}

// RefreshStaleRates re-fetches every cached pair older than the fresh TTL.
// Pairs that cannot be refreshed keep their cached value.
func (r *RateRegistry) RefreshStaleRates(ctx context.Context) error {
	pairs, err := r.cache.Keys(ctx)
	if err != nil {
		return apperror.InternalError(err)
	}

	now := time.Now().UTC()
	refreshed := 0
	for _, pair := range pairs {
		from, to := pair[0], pair[1]
		cached := r.cachedQuote(ctx, from, to)
		if cached != nil && cached.Age(now) <= r.opts.CacheTTL {
			continue
		}
		if quote, ok := r.fetchAggregate(ctx, from, to); ok {
			r.storeQuote(ctx, quote)
			refreshed++
		}
	}

	r.log.Info().
		Int("pairs", len(pairs)).
		Int("refreshed", refreshed).
		Msg("stale rate refresh completed")
	return nil
}

func (r *RateRegistry) cachedQuote(ctx context.Context, from, to string) *domain.RateQuote {
	quote, err := r.cache.Get(ctx, from, to)
	if err != nil {
		r.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("rate cache read failed")
		return nil
	}
	return quote
}

func (r *RateRegistry) storeQuote(ctx context.Context, quote domain.RateQuote) {
	if err := r.cache.Set(ctx, quote, r.opts.MaxAge); err != nil {
		r.log.Warn().Err(err).Str("from", quote.From).Str("to", quote.To).Msg("rate cache write failed")
	}
}

// fetchAggregate queries all providers and combines the successful quotes.
// A failing provider is skipped, never fatal.
func (r *RateRegistry) fetchAggregate(ctx context.Context, from, to string) (domain.RateQuote, bool) {
	quotes := make([]domain.RateQuote, 0, len(r.providers))
	for _, provider := range r.providers {
		fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
		quote, err := provider.FetchRate(fetchCtx, from, to)
		cancel()
		if err != nil {
			metrics.RateFetches.WithLabelValues(provider.Name(), "error").Inc()
			r.log.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Str("from", from).
				Str("to", to).
				Msg("rate provider fetch failed")
			continue
		}
		metrics.RateFetches.WithLabelValues(provider.Name(), "ok").Inc()

		if r.opts.Aggregation == AggregationPriority {
			return quote, true
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return domain.RateQuote{}, false
	}
	return medianQuote(quotes), true
}

// triangulate derives from→to as from→anchor times anchor→to.
func (r *RateRegistry) triangulate(ctx context.Context, from, to string) (domain.RateQuote, bool) {
	anchor := r.opts.AnchorCurrency
	if anchor == "" || from == anchor || to == anchor {
		return domain.RateQuote{}, false
	}

	first, ok := r.fetchAggregate(ctx, from, anchor)
	if !ok {
		return domain.RateQuote{}, false
	}
	second, ok := r.fetchAggregate(ctx, anchor, to)
	if !ok {
		return domain.RateQuote{}, false
	}

	return domain.RateQuote{
		From:      from,
		To:        to,
		Rate:      first.Rate.Mul(second.Rate),
		Bid:       first.Bid.Mul(second.Bid),
		Ask:       first.Ask.Mul(second.Ask),
		Provider:  "triangulated:" + anchor,
		FetchedAt: time.Now().UTC(),
	}, true
}

// medianQuote returns the quote whose rate is the median. For an even count
// rate, bid and ask are each the mean of the two middle quotes' values.
func medianQuote(quotes []domain.RateQuote) domain.RateQuote {
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Rate.LessThan(quotes[j].Rate)
	})

	n := len(quotes)
	if n%2 == 1 {
		return quotes[n/2]
	}

	two := decimal.NewFromInt(2)
	lo, hi := quotes[n/2-1], quotes[n/2]
	mid := hi
	mid.Rate = lo.Rate.Add(hi.Rate).Div(two)
	mid.Bid = lo.Bid.Add(hi.Bid).Div(two)
	mid.Ask = lo.Ask.Add(hi.Ask).Div(two)
	mid.Provider = "median"
	return mid
}
