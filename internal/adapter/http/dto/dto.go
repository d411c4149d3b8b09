package dto

// OpenAccountRequest is the request body for opening a ledger account.
type OpenAccountRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// OpenAccountResponse returns the new account's id.
type OpenAccountResponse struct {
	AccountID string `json:"account_id"`
}

// EntryRequest is the request body for a single credit or debit.
// Amounts are in minor units of the asset.
type EntryRequest struct {
	AssetCode string `json:"asset_code" binding:"required,min=3,max=10,safe_id"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"max=200"`
}

// TransferRequest is the request body for an account-to-account transfer.
type TransferRequest struct {
	TransferID    string `json:"transfer_id" binding:"omitempty,uuid"`
	FromAccountID string `json:"from_account_id" binding:"required,uuid"`
	ToAccountID   string `json:"to_account_id" binding:"required,uuid"`
	AssetCode     string `json:"asset_code" binding:"required,min=3,max=10,safe_id"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
}

// FreezeRequest is the request body for freezing or unfreezing an account.
type FreezeRequest struct {
	Reason       string `json:"reason" binding:"required,max=200"`
	AuthorizedBy string `json:"authorized_by" binding:"required,max=100"`
}

// BalancesResponse maps asset codes to balances in minor units.
type BalancesResponse struct {
	AccountID string           `json:"account_id"`
	Balances  map[string]int64 `json:"balances"`
}

// EventResponse is one event in an aggregate's history.
type EventResponse struct {
	Type       string            `json:"type"`
	Version    int64             `json:"version"`
	OccurredAt string            `json:"occurred_at"`
	Payload    interface{}       `json:"payload"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// HistoryResponse wraps an aggregate's event stream.
type HistoryResponse struct {
	AggregateID string          `json:"aggregate_id"`
	Events      []EventResponse `json:"events"`
}

// ApplicationRequest is the request body for submitting a loan application.
// Principal is a decimal string.
type ApplicationRequest struct {
	BorrowerID string `json:"borrower_id" binding:"required,uuid"`
	Principal  string `json:"principal" binding:"required"`
	TermMonths int    `json:"term_months" binding:"required,gt=0"`
	Purpose    string `json:"purpose" binding:"required,max=500"`
}

// ApproveApplicationRequest fixes the offered rate on an application.
type ApproveApplicationRequest struct {
	InterestRate float64 `json:"interest_rate" binding:"gte=0,lte=100"`
	RiskLevel    string  `json:"risk_level" binding:"required,max=20"`
	ApprovedBy   string  `json:"approved_by" binding:"required,max=100"`
}

// ReasonRequest carries a free-form reason for terminal transitions.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// FundLoanRequest records investor funding for a loan.
type FundLoanRequest struct {
	InvestorIDs []string `json:"investor_ids" binding:"required,min=1,dive,uuid"`
	Amount      string   `json:"amount" binding:"required"`
}

// RepaymentRequest records one repayment. Amount is a decimal string.
type RepaymentRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// SettleRequest closes a loan early against its outstanding balance.
type SettleRequest struct {
	Amount    string `json:"amount" binding:"required"`
	SettledBy string `json:"settled_by" binding:"required,max=100"`
}

// ScheduleEntryResponse is one amortization schedule row.
type ScheduleEntryResponse struct {
	PaymentNumber    int    `json:"payment_number"`
	DueDate          string `json:"due_date"`
	Payment          string `json:"payment"`
	Principal        string `json:"principal"`
	Interest         string `json:"interest"`
	RemainingBalance string `json:"remaining_balance"`
}

// LoanResponse is the current servicing state of a loan.
type LoanResponse struct {
	LoanID             string                  `json:"loan_id"`
	ApplicationID      string                  `json:"application_id"`
	BorrowerID         string                  `json:"borrower_id"`
	Principal          string                  `json:"principal"`
	InterestRate       float64                 `json:"interest_rate"`
	TermMonths         int                     `json:"term_months"`
	Status             string                  `json:"status"`
	OutstandingBalance string                  `json:"outstanding_balance"`
	TotalPrincipalPaid string                  `json:"total_principal_paid"`
	TotalInterestPaid  string                  `json:"total_interest_paid"`
	PaymentsReceived   int                     `json:"payments_received"`
	MissedPayments     int                     `json:"missed_payments"`
	Schedule           []ScheduleEntryResponse `json:"schedule,omitempty"`
}

// CreatePoolRequest opens a new liquidity pool. FeeRate is a decimal string;
// empty means the default fee.
type CreatePoolRequest struct {
	BaseCurrency  string  `json:"base_currency" binding:"required,min=3,max=10,safe_id"`
	QuoteCurrency string  `json:"quote_currency" binding:"required,min=3,max=10,safe_id"`
	FeeRate       string  `json:"fee_rate" binding:"omitempty"`
	SpreadBps     float64 `json:"spread_bps" binding:"gte=0"`
}

// AddLiquidityRequest contributes reserves to a pool. Amounts are decimal
// strings.
type AddLiquidityRequest struct {
	ProviderID  string `json:"provider_id" binding:"required,max=100,safe_id"`
	BaseAmount  string `json:"base_amount" binding:"required"`
	QuoteAmount string `json:"quote_amount" binding:"required"`
	MinShares   string `json:"min_shares" binding:"omitempty"`
}

// RemoveLiquidityRequest burns shares for proportional reserves.
type RemoveLiquidityRequest struct {
	ProviderID string `json:"provider_id" binding:"required,max=100,safe_id"`
	Shares     string `json:"shares" binding:"required"`
	MinBase    string `json:"min_base" binding:"omitempty"`
	MinQuote   string `json:"min_quote" binding:"omitempty"`
}

// SwapRequest executes one swap against a pool.
type SwapRequest struct {
	InputCurrency string `json:"input_currency" binding:"required,min=3,max=10,safe_id"`
	Amount        string `json:"amount" binding:"required"`
	MinOutput     string `json:"min_output" binding:"omitempty"`
}

// PoolResponse is the current state of a pool.
type PoolResponse struct {
	PoolID        string  `json:"pool_id"`
	BaseCurrency  string  `json:"base_currency"`
	QuoteCurrency string  `json:"quote_currency"`
	BaseReserve   string  `json:"base_reserve"`
	QuoteReserve  string  `json:"quote_reserve"`
	TotalShares   string  `json:"total_shares"`
	FeeRate       string  `json:"fee_rate"`
	SpreadBps     float64 `json:"spread_bps"`
	IsActive      bool    `json:"is_active"`
}

// SwapResponse is the executed swap outcome.
type SwapResponse struct {
	PoolID         string `json:"pool_id"`
	InputCurrency  string `json:"input_currency"`
	OutputCurrency string `json:"output_currency"`
	InputAmount    string `json:"input_amount"`
	OutputAmount   string `json:"output_amount"`
	FeeAmount      string `json:"fee_amount"`
	PriceImpactPct string `json:"price_impact_pct"`
}

// QuoteResponse is one resolved exchange rate.
type QuoteResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rate      string `json:"rate"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Provider  string `json:"provider"`
	FetchedAt string `json:"fetched_at"`
}

// ConvertResponse is one converted amount.
type ConvertResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Converted string `json:"converted"`
}

// PlaceOrderRequest submits an order for routing. Amount is a decimal string
// in base currency units.
type PlaceOrderRequest struct {
	OrderID       string `json:"order_id" binding:"omitempty,uuid"`
	BaseCurrency  string `json:"base_currency" binding:"required,min=3,max=10,safe_id"`
	QuoteCurrency string `json:"quote_currency" binding:"required,min=3,max=10,safe_id"`
	Side          string `json:"side" binding:"required,oneof=buy sell"`
	Amount        string `json:"amount" binding:"required"`
}

// PlaceOrderResponse returns the order id the decision was recorded under.
type PlaceOrderResponse struct {
	OrderID string `json:"order_id"`
}

// PriceMoveRequest reports a relative price move for an asset.
type PriceMoveRequest struct {
	AssetCode string  `json:"asset_code" binding:"required,min=3,max=10,safe_id"`
	Delta     float64 `json:"delta" binding:"required"`
}

// ImbalanceResponse grades a pool's inventory skew.
type ImbalanceResponse struct {
	PoolID            string `json:"pool_id"`
	Balanced          bool   `json:"balanced"`
	BaseRatio         string `json:"base_ratio,omitempty"`
	Severity          string `json:"severity,omitempty"`
	RecommendedAction string `json:"recommended_action,omitempty"`
}
