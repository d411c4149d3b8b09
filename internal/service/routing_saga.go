package service

import (
	"context"
	"math"
	"sort"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/metrics"
	"ledger-core/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	reasonNoLiquidity  = "No liquidity available for trading pair"
	reasonCannotSplit  = "Unable to split order within price impact limits"
	routedGuardTTL     = 24 * time.Hour
	splitReserveFactor = 0.8

	// Pools whose liquidity is within 10% of each other count as comparable;
	// among those the lower fee tier wins.
	comparableLiquidityRatio = 0.9
)

// RoutingOptions are the router's safety limits. Notional limits are in
// quote currency units.
type RoutingOptions struct {
	// MaxPriceImpact caps the estimated relative price impact per pool,
	// e.g. 0.05 for 5%.
	MaxPriceImpact float64
	// MinPoolLiquidity excludes pools below this total liquidity.
	MinPoolLiquidity decimal.Decimal
	// MinSplitNotional drops split legs smaller than this.
	MinSplitNotional decimal.Decimal
	MaxRoutes        int
	// DecisionBudget bounds the whole routing decision; zero disables the
	// deadline. On expiry the order fails closed instead of hanging.
	DecisionBudget time.Duration
}

// RoutingSaga implements ports.OrderRouter. Each order is routed exactly
// once: a guard entry claims the order before any decision is recorded, so
// retried deliveries are no-ops.
type RoutingSaga struct {
	directory ports.PoolDirectory
	guard     ports.RoutedOrderGuard
	store     ports.EventStore
	bus       ports.EventBus
	opts      RoutingOptions
	log       zerolog.Logger
}

// NewRoutingSaga creates a new RoutingSaga.
func NewRoutingSaga(
	directory ports.PoolDirectory,
	guard ports.RoutedOrderGuard,
	store ports.EventStore,
	bus ports.EventBus,
	opts RoutingOptions,
	log zerolog.Logger,
) *RoutingSaga {
	return &RoutingSaga{
		directory: directory,
		guard:     guard,
		store:     store,
		bus:       bus,
		opts:      opts,
		log:       log,
	}
}

// routeCandidate is one eligible pool with its derived routing limits.
type routeCandidate struct {
	pool          ports.PoolState
	price         decimal.Decimal
	liquidity     decimal.Decimal
	maxImpactSize decimal.Decimal
}

// RouteOrder records the routing decision for one order: a single pool when
// it can absorb the full size under the impact cap, a split across up to
// MaxRoutes pools otherwise, or a failure event.
func (s *RoutingSaga) RouteOrder(ctx context.Context, req ports.OrderRequest) error {
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	if s.opts.DecisionBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DecisionBudget)
		defer cancel()
	}

	acquired, err := s.guard.Acquire(ctx, req.OrderID, routedGuardTTL)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !acquired {
		s.log.Debug().Str("order_id", req.OrderID.String()).Msg("order already routed, skipping")
		return nil
	}

	candidates, err := s.eligiblePools(ctx, req)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return s.recordFailure(ctx, req, reasonNoLiquidity)
	}

	// Largest pools first; they absorb size with the least impact. Fee tier
	// breaks exact liquidity ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].liquidity.Equal(candidates[j].liquidity) {
			return candidates[i].pool.FeeRate.LessThan(candidates[j].pool.FeeRate)
		}
		return candidates[i].liquidity.GreaterThan(candidates[j].liquidity)
	})

	if best := pickSingleRoute(req.Amount, candidates); best != nil {
		return s.recordSingle(ctx, req, *best)
	}

	return s.recordSplit(ctx, req, candidates)
}

// pickSingleRoute returns the pool that should take the whole order, or nil
// when no pool can absorb it under the impact cap. Among comparably liquid
// absorbers the lower fee tier is preferred.
func pickSingleRoute(amount decimal.Decimal, candidates []routeCandidate) *routeCandidate {
	var best *routeCandidate
	for i := range candidates {
		c := &candidates[i]
		if amount.GreaterThan(c.maxImpactSize) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		if comparablyLiquid(c.liquidity, best.liquidity) && c.pool.FeeRate.LessThan(best.pool.FeeRate) {
			best = c
		}
	}
	return best
}

func comparablyLiquid(a, b decimal.Decimal) bool {
	lo, hi := a, b
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	return lo.GreaterThanOrEqual(hi.Mul(decimal.NewFromFloat(comparableLiquidityRatio)))
}

// eligiblePools filters the directory down to active pools with enough
// liquidity and computes per-pool limits.
func (s *RoutingSaga) eligiblePools(ctx context.Context, req ports.OrderRequest) ([]routeCandidate, error) {
	pools, err := s.directory.ListByPair(ctx, req.BaseCurrency, req.QuoteCurrency)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	// maxImpactSize solves impact(size) = cap for the quadratic impact model
	// impact = 2 * (size/liquidity * price)^2.
	maxRelSize := decimal.NewFromFloat(math.Sqrt(s.opts.MaxPriceImpact / 2))

	candidates := make([]routeCandidate, 0, len(pools))
	for _, pool := range pools {
		if !pool.IsActive || !pool.BaseReserve.IsPositive() || !pool.QuoteReserve.IsPositive() {
			continue
		}
		price := pool.QuoteReserve.DivRound(pool.BaseReserve, 18)
		liquidity := pool.BaseReserve.Mul(price).Add(pool.QuoteReserve)
		if liquidity.LessThan(s.opts.MinPoolLiquidity) {
			continue
		}
		candidates = append(candidates, routeCandidate{
			pool:          pool,
			price:         price,
			liquidity:     liquidity,
			maxImpactSize: maxRelSize.Mul(liquidity).DivRound(price, 18),
		})
	}
	return candidates, nil
}

func (s *RoutingSaga) recordSingle(ctx context.Context, req ports.OrderRequest, c routeCandidate) error {
	routed := &domain.OrderRouted{
		OrderID:        req.OrderID,
		PoolID:         c.pool.ID,
		Amount:         req.Amount,
		EstimatedPrice: c.price,
		FeeRate:        c.pool.FeeRate,
	}
	if err := s.recordDecision(ctx, req, routed); err != nil {
		return err
	}

	metrics.OrdersRouted.WithLabelValues("routed").Inc()
	s.log.Info().
		Str("order_id", req.OrderID.String()).
		Str("pool_id", c.pool.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("order routed to single pool")
	return nil
}

func (s *RoutingSaga) recordSplit(ctx context.Context, req ports.OrderRequest, candidates []routeCandidate) error {
	factor := decimal.NewFromFloat(splitReserveFactor)
	remaining := req.Amount
	allocations := make([]domain.RouteAllocation, 0, s.opts.MaxRoutes)

	for _, c := range candidates {
		if len(allocations) >= s.opts.MaxRoutes || !remaining.IsPositive() {
			break
		}

		// Only commit 80% of a pool's impact capacity per leg, leaving room
		// for concurrent flow against the same pool.
		allocation := decimal.Min(remaining, c.maxImpactSize.Mul(factor))
		if allocation.Mul(c.price).LessThan(s.opts.MinSplitNotional) {
			continue
		}

		allocations = append(allocations, domain.RouteAllocation{
			PoolID:         c.pool.ID,
			Amount:         allocation,
			EstimatedPrice: c.price,
			FeeRate:        c.pool.FeeRate,
		})
		remaining = remaining.Sub(allocation)
	}

	if len(allocations) == 0 {
		return s.recordFailure(ctx, req, reasonCannotSplit)
	}

	totalAllocated := req.Amount.Sub(remaining)
	split := &domain.OrderSplit{
		OrderID:        req.OrderID,
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
	}

	// The split is followed by one routing event per leg, so downstream
	// consumers see the same event they get for single-pool orders.
	decisions := make([]domain.EventPayload, 0, len(allocations)+1)
	decisions = append(decisions, split)
	for _, allocation := range allocations {
		decisions = append(decisions, &domain.OrderRouted{
			OrderID:        req.OrderID,
			PoolID:         allocation.PoolID,
			Amount:         allocation.Amount,
			EstimatedPrice: allocation.EstimatedPrice,
			FeeRate:        allocation.FeeRate,
		})
	}
	if err := s.recordDecision(ctx, req, decisions...); err != nil {
		return err
	}

	metrics.OrdersRouted.WithLabelValues("split").Inc()
	s.log.Info().
		Str("order_id", req.OrderID.String()).
		Int("routes", len(allocations)).
		Str("allocated", totalAllocated.String()).
		Str("requested", req.Amount.String()).
		Msg("order split across pools")
	return nil
}

func (s *RoutingSaga) recordFailure(ctx context.Context, req ports.OrderRequest, reason string) error {
	failed := &domain.RoutingFailed{OrderID: req.OrderID, Reason: reason}
	if err := s.recordDecision(ctx, req, failed); err != nil {
		return err
	}

	metrics.OrdersRouted.WithLabelValues("failed").Inc()
	s.log.Warn().
		Str("order_id", req.OrderID.String()).
		Str("pair", req.BaseCurrency+"/"+req.QuoteCurrency).
		Str("reason", reason).
		Msg("order routing failed")
	return nil
}

// recordDecision opens the order stream with the placement and its routing
// outcome in one append.
func (s *RoutingSaga) recordDecision(ctx context.Context, req ports.OrderRequest, decisions ...domain.EventPayload) error {
	placed := &domain.OrderPlaced{
		OrderID:       req.OrderID,
		BaseCurrency:  req.BaseCurrency,
		QuoteCurrency: req.QuoteCurrency,
		Side:          req.Side,
		Amount:        req.Amount,
	}

	now := time.Now().UTC()
	events := make([]domain.Event, 0, len(decisions)+1)
	events = append(events, domain.Event{AggregateID: req.OrderID, Version: 1, Type: placed.EventType(), Payload: placed, OccurredAt: now})
	for i, decision := range decisions {
		events = append(events, domain.Event{
			AggregateID: req.OrderID,
			Version:     int64(i + 2),
			Type:        decision.EventType(),
			Payload:     decision,
			OccurredAt:  now,
		})
	}

	if err := s.store.Append(ctx, req.OrderID, 0, events); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events...)
	}
	return nil
}

var _ ports.OrderRouter = (*RoutingSaga)(nil)
