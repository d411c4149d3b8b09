package ports

import (
	"context"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateProvider fetches one exchange-rate quote from an external source.
// Implementations must respect the context deadline.
type RateProvider interface {
	Name() string
	FetchRate(ctx context.Context, from, to string) (domain.RateQuote, error)
}

// RateCache is the Redis-layer quote cache (fast path).
type RateCache interface {
	// Get returns the cached quote or nil on a miss.
	Get(ctx context.Context, from, to string) (*domain.RateQuote, error)
	Set(ctx context.Context, quote domain.RateQuote, ttl time.Duration) error
	// Keys lists the cached pairs, for the stale-rate refresh sweep.
	Keys(ctx context.Context) ([][2]string, error)
}

// SpreadStateStore keeps the adaptive spread and volatility inputs the spread
// controller works from between runs.
type SpreadStateStore interface {
	GetSpread(ctx context.Context, poolID uuid.UUID) (float64, bool, error)
	SetSpread(ctx context.Context, poolID uuid.UUID, spreadBps float64) error
	GetVolatility(ctx context.Context, assetCode string) (domain.VolatilityLevel, error)
	SetVolatility(ctx context.Context, assetCode string, level domain.VolatilityLevel) error
}

// RoutedOrderGuard deduplicates routing work. Acquire returns false when the
// order was already routed, making the routing saga idempotent under retries.
type RoutedOrderGuard interface {
	Acquire(ctx context.Context, orderID uuid.UUID, ttl time.Duration) (bool, error)
}

// TransferRiskRequest describes a transfer submitted for risk review.
type TransferRiskRequest struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	AssetCode     string
	Amount        int64
}

// RiskDecision is the assessor's verdict on a transfer.
type RiskDecision struct {
	Approved bool
	Level    string
	Reason   string
}

// RiskAssessor reviews high-value transfers before the debit leg runs.
type RiskAssessor interface {
	AssessTransfer(ctx context.Context, req TransferRiskRequest) (RiskDecision, error)
}

// EventHandler consumes one committed event. Errors are logged, not retried;
// handlers needing delivery guarantees must be idempotent against replays.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus fans committed events out to projections and sagas.
type EventBus interface {
	Subscribe(eventType string, handler EventHandler)
	Publish(ctx context.Context, events ...domain.Event)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the account command surface.
type LedgerService interface {
	OpenAccount(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	Credit(ctx context.Context, req EntryRequest) error
	Debit(ctx context.Context, req EntryRequest) error
	Transfer(ctx context.Context, req TransferRequest) error
	Freeze(ctx context.Context, accountID uuid.UUID, reason, authorizedBy string) error
	Unfreeze(ctx context.Context, accountID uuid.UUID, reason, authorizedBy string) error
	GetBalances(ctx context.Context, accountID uuid.UUID) (map[string]int64, error)
	GetHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Event, error)
}

// EntryRequest is a single credit or debit in minor units.
type EntryRequest struct {
	AccountID uuid.UUID
	AssetCode string
	Amount    int64
	Reason    string
}

// TransferRequest moves funds between two accounts of the same asset.
type TransferRequest struct {
	TransferID    uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	AssetCode     string
	Amount        int64
}

// LoanService drives the application and servicing lifecycles.
type LoanService interface {
	SubmitApplication(ctx context.Context, req ApplicationRequest) (uuid.UUID, error)
	ApproveApplication(ctx context.Context, applicationID uuid.UUID, interestRate float64, riskLevel, approvedBy string) error
	RejectApplication(ctx context.Context, applicationID uuid.UUID, reason string) error
	WithdrawApplication(ctx context.Context, applicationID uuid.UUID, reason string) error
	OriginateLoan(ctx context.Context, applicationID uuid.UUID) (uuid.UUID, error)
	FundLoan(ctx context.Context, loanID uuid.UUID, investorIDs []uuid.UUID, amount decimal.Decimal) error
	DisburseLoan(ctx context.Context, loanID uuid.UUID) error
	RecordRepayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) error
	MissPayment(ctx context.Context, loanID uuid.UUID) error
	MarkDefaulted(ctx context.Context, loanID uuid.UUID, reason string) error
	SettleEarly(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, settledBy string) error
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
}

// ApplicationRequest holds validated input for a new loan application.
type ApplicationRequest struct {
	BorrowerID uuid.UUID
	Principal  decimal.Decimal
	TermMonths int
	Purpose    string
}

// RateService answers conversion queries against the provider registry.
type RateService interface {
	GetRate(ctx context.Context, from, to string) (domain.RateQuote, error)
	Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error)
	RefreshStaleRates(ctx context.Context) error
}

// PoolService is the liquidity pool command surface.
type PoolService interface {
	CreatePool(ctx context.Context, baseCurrency, quoteCurrency string, feeRate decimal.Decimal, spreadBps float64) (uuid.UUID, error)
	AddLiquidity(ctx context.Context, req LiquidityRequest) error
	RemoveLiquidity(ctx context.Context, poolID uuid.UUID, providerID string, shares, minBase, minQuote decimal.Decimal) error
	Swap(ctx context.Context, poolID uuid.UUID, inputCurrency string, amount, minOutput decimal.Decimal) (*domain.SwapResult, error)
	GetPool(ctx context.Context, poolID uuid.UUID) (*domain.LiquidityPool, error)
}

// LiquidityRequest holds validated input for adding liquidity.
type LiquidityRequest struct {
	PoolID      uuid.UUID
	ProviderID  string
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
	MinShares   decimal.Decimal
}

// SpreadManager reacts to market moves and inspects pool inventory health.
type SpreadManager interface {
	OnPriceMove(ctx context.Context, assetCode string, delta float64) error
	CheckInventory(ctx context.Context, poolID uuid.UUID) (*domain.InventoryImbalanceDetected, error)
}

// OrderRouter decides how an order is allocated across pools.
type OrderRouter interface {
	RouteOrder(ctx context.Context, req OrderRequest) error
}

// OrderRequest holds validated input for routing one order.
type OrderRequest struct {
	OrderID       uuid.UUID
	BaseCurrency  string
	QuoteCurrency string
	Side          domain.OrderSide
	Amount        decimal.Decimal
}
