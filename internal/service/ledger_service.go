package service

import (
	"context"
	"errors"
	"fmt"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Metadata keys stamped on transfer legs so both sides of a transfer can be
// correlated in the event log.
const (
	metaTransferID = "transfer_id"
	metaReason     = "reason"

	reasonTransferCompensation = "transfer_compensation"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	accounts     *Repository[*domain.Account]
	store        ports.EventStore
	balances     ports.BalanceReadModel
	risk         ports.RiskAssessor
	maxRetries   int
	highValueMin int64
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accounts *Repository[*domain.Account],
	store ports.EventStore,
	balances ports.BalanceReadModel,
	risk ports.RiskAssessor,
	maxRetries int,
	highValueMin int64,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accounts:     accounts,
		store:        store,
		balances:     balances,
		risk:         risk,
		maxRetries:   maxRetries,
		highValueMin: highValueMin,
		log:          log,
	}
}

// OpenAccount starts a new account stream.
func (s *LedgerServiceImpl) OpenAccount(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	account := domain.NewAccount(uuid.New())
	if err := account.Open(userID); err != nil {
		return uuid.Nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return uuid.Nil, err
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("user_id", userID.String()).
		Msg("account opened")
	return account.ID, nil
}

// Credit adds funds to one asset balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.EntryRequest) error {
	return s.withAccount(ctx, req.AccountID, func(a *domain.Account) error {
		return a.Credit(req.AssetCode, req.Amount, entryMetadata(req.Reason))
	})
}

// Debit removes funds from one asset balance.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.EntryRequest) error {
	return s.withAccount(ctx, req.AccountID, func(a *domain.Account) error {
		return a.Debit(req.AssetCode, req.Amount, entryMetadata(req.Reason))
	})
}

// Freeze blocks an account.
func (s *LedgerServiceImpl) Freeze(ctx context.Context, accountID uuid.UUID, reason, authorizedBy string) error {
	return s.withAccount(ctx, accountID, func(a *domain.Account) error {
		return a.Freeze(reason, authorizedBy)
	})
}

// Unfreeze lifts a freeze.
func (s *LedgerServiceImpl) Unfreeze(ctx context.Context, accountID uuid.UUID, reason, authorizedBy string) error {
	return s.withAccount(ctx, accountID, func(a *domain.Account) error {
		return a.Unfreeze(reason, authorizedBy)
	})
}

// Transfer moves funds between two accounts as separate debit and credit
// appends. There is no cross-stream transaction: if the credit leg fails
// after the debit committed, a compensating credit restores the source.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) error {
	if req.FromAccountID == req.ToAccountID {
		return apperror.ErrSelfTransfer()
	}
	if req.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	if s.risk != nil && req.Amount >= s.highValueMin {
		decision, err := s.risk.AssessTransfer(ctx, ports.TransferRiskRequest{
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			AssetCode:     req.AssetCode,
			Amount:        req.Amount,
		})
		if err != nil {
			return apperror.InternalError(fmt.Errorf("risk assessment: %w", err))
		}
		if !decision.Approved {
			s.log.Warn().
				Str("transfer_id", req.TransferID.String()).
				Str("risk_level", decision.Level).
				Str("reason", decision.Reason).
				Msg("transfer blocked by risk assessment")
			return apperror.ErrTransferBlocked(decision.Reason)
		}
	}

	meta := map[string]string{metaTransferID: req.TransferID.String()}

	// Debit leg.
	if err := s.withAccount(ctx, req.FromAccountID, func(a *domain.Account) error {
		return a.Debit(req.AssetCode, req.Amount, meta)
	}); err != nil {
		return err
	}

	// Credit leg; compensate the debit if it cannot be committed.
	if err := s.withAccount(ctx, req.ToAccountID, func(a *domain.Account) error {
		return a.Credit(req.AssetCode, req.Amount, meta)
	}); err != nil {
		s.compensateDebit(ctx, req)
		return err
	}

	s.log.Info().
		Str("transfer_id", req.TransferID.String()).
		Str("from", req.FromAccountID.String()).
		Str("to", req.ToAccountID.String()).
		Str("asset", req.AssetCode).
		Int64("amount", req.Amount).
		Msg("transfer completed")
	return nil
}

// GetBalances reads the balance projection.
func (s *LedgerServiceImpl) GetBalances(ctx context.Context, accountID uuid.UUID) (map[string]int64, error) {
	return s.balances.GetBalances(ctx, accountID)
}

// GetHistory returns the full event stream of an account.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Event, error) {
	events, err := s.store.Read(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("read history: %w", err))
	}
	if len(events) == 0 {
		return nil, apperror.ErrAggregateNotFound(accountID.String())
	}
	return events, nil
}

// withAccount runs one command against a freshly loaded account and saves it,
// retrying on concurrency conflicts with the latest state.
func (s *LedgerServiceImpl) withAccount(ctx context.Context, accountID uuid.UUID, command func(*domain.Account) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		account, err := s.accounts.Load(ctx, accountID)
		if err != nil {
			return err
		}
		if err := command(account); err != nil {
			return err
		}

		err = s.accounts.Save(ctx, account)
		if err == nil {
			return nil
		}
		if !isConcurrencyConflict(err) {
			return err
		}
		lastErr = err
		s.log.Debug().
			Str("account_id", accountID.String()).
			Int("attempt", attempt+1).
			Msg("append conflict, retrying command")
	}
	return lastErr
}

func (s *LedgerServiceImpl) compensateDebit(ctx context.Context, req ports.TransferRequest) {
	meta := map[string]string{
		metaTransferID: req.TransferID.String(),
		metaReason:     reasonTransferCompensation,
	}
	err := s.withAccount(ctx, req.FromAccountID, func(a *domain.Account) error {
		return a.Credit(req.AssetCode, req.Amount, meta)
	})
	if err != nil {
		// Funds are now in limbo; this is the one path needing manual review.
		s.log.Error().
			Err(err).
			Str("transfer_id", req.TransferID.String()).
			Str("from", req.FromAccountID.String()).
			Int64("amount", req.Amount).
			Msg("transfer compensation failed")
		return
	}
	s.log.Warn().
		Str("transfer_id", req.TransferID.String()).
		Msg("transfer credit leg failed, debit compensated")
}

func entryMetadata(reason string) map[string]string {
	if reason == "" {
		return nil
	}
	return map[string]string{metaReason: reason}
}

func isConcurrencyConflict(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == "EVT_001"
}
