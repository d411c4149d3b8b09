package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger / Account (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient balance for asset", http.StatusUnprocessableEntity)
}

func ErrAccountFrozen() *AppError {
	return New("LED_002", "Account is frozen", http.StatusForbidden)
}

func ErrAccountNotFrozen() *AppError {
	return New("LED_003", "Account is not frozen", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("LED_004", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_005", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAlreadyExists(entity string) *AppError {
	return New("LED_006", fmt.Sprintf("%s already exists", entity), http.StatusConflict)
}

func ErrTransferBlocked(reason string) *AppError {
	return New("LED_007", fmt.Sprintf("Transfer blocked by compliance: %s", reason), http.StatusForbidden)
}

func ErrSelfTransfer() *AppError {
	return New("LED_008", "Source and destination accounts must differ", http.StatusBadRequest)
}

// ---- Event store (EVT) ----

// ErrConcurrencyConflict signals an optimistic-concurrency append failure.
// Callers reload the aggregate and retry before surfacing it.
func ErrConcurrencyConflict(expected, actual int64) *AppError {
	return New("EVT_001",
		fmt.Sprintf("Version conflict: expected %d, store has %d", expected, actual),
		http.StatusConflict)
}

func ErrAggregateNotFound(id string) *AppError {
	return New("EVT_002", fmt.Sprintf("Aggregate %s has no events", id), http.StatusNotFound)
}

func ErrUnknownEventType(eventType string) *AppError {
	return New("EVT_003", fmt.Sprintf("Unknown event type %q", eventType), http.StatusInternalServerError)
}

// ---- Lending (LOAN) ----

func ErrInvalidTransition(from, action string) *AppError {
	return New("LOAN_001",
		fmt.Sprintf("Cannot %s a loan in %s status", action, from),
		http.StatusConflict)
}

func ErrInvalidPrincipal() *AppError {
	return New("LOAN_002", "Principal must be greater than zero", http.StatusBadRequest)
}

func ErrInvalidInterestRate() *AppError {
	return New("LOAN_003", "Interest rate must be between 0 and 100", http.StatusBadRequest)
}

func ErrInvalidTerm() *AppError {
	return New("LOAN_004", "Term must be between 1 and 360 months", http.StatusBadRequest)
}

func ErrFundingMismatch() *AppError {
	return New("LOAN_005", "Funded amount must equal principal", http.StatusBadRequest)
}

func ErrSettlementTooLow() *AppError {
	return New("LOAN_006", "Settlement amount must cover outstanding balance", http.StatusBadRequest)
}

// ---- Exchange rates (RATE) ----

func ErrNoRateAvailable(from, to string) *AppError {
	return New("RATE_001",
		fmt.Sprintf("No rate available for %s/%s", from, to),
		http.StatusServiceUnavailable)
}

func ErrProviderNotFound(name string) *AppError {
	return New("RATE_002", fmt.Sprintf("Rate provider %q not registered", name), http.StatusInternalServerError)
}

func ErrUnknownAggregation(method string) *AppError {
	return New("RATE_003", fmt.Sprintf("Unknown aggregation method %q", method), http.StatusBadRequest)
}

// ---- Liquidity pools & routing (POOL) ----

func ErrPoolInactive() *AppError {
	return New("POOL_001", "Pool is not active", http.StatusConflict)
}

func ErrSlippageExceeded() *AppError {
	return New("POOL_002", "Slippage tolerance exceeded", http.StatusUnprocessableEntity)
}

func ErrRatioDeviation() *AppError {
	return New("POOL_003", "Input amounts deviate too much from pool ratio", http.StatusUnprocessableEntity)
}

func ErrInsufficientShares() *AppError {
	return New("POOL_004", "Insufficient pool shares", http.StatusUnprocessableEntity)
}

func ErrNoLiquidity() *AppError {
	return New("POOL_005", "No liquidity available for trading pair", http.StatusUnprocessableEntity)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("POOL_006", fmt.Sprintf("Currency %s is not part of this pool", currency), http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_002", "Internal database error", http.StatusInternalServerError, err)
}

// Validation returns a request-validation error.
func Validation(message string) *AppError {
	return New("LED_004", message, http.StatusBadRequest)
}
