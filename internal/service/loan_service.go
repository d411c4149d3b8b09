package service

import (
	"context"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LoanServiceImpl implements ports.LoanService.
type LoanServiceImpl struct {
	applications *Repository[*domain.LoanApplication]
	loans        *Repository[*domain.Loan]
	log          zerolog.Logger
}

// NewLoanService creates a new LoanServiceImpl.
func NewLoanService(
	applications *Repository[*domain.LoanApplication],
	loans *Repository[*domain.Loan],
	log zerolog.Logger,
) *LoanServiceImpl {
	return &LoanServiceImpl{
		applications: applications,
		loans:        loans,
		log:          log,
	}
}

// SubmitApplication starts a new application stream.
func (s *LoanServiceImpl) SubmitApplication(ctx context.Context, req ports.ApplicationRequest) (uuid.UUID, error) {
	application := domain.NewLoanApplication(uuid.New())
	if err := application.Submit(req.BorrowerID, req.Principal, req.TermMonths, req.Purpose); err != nil {
		return uuid.Nil, err
	}
	if err := s.applications.Save(ctx, application); err != nil {
		return uuid.Nil, err
	}

	s.log.Info().
		Str("application_id", application.ID.String()).
		Str("borrower_id", req.BorrowerID.String()).
		Str("principal", req.Principal.String()).
		Msg("loan application submitted")
	return application.ID, nil
}

// ApproveApplication fixes the offered rate on a submitted application.
func (s *LoanServiceImpl) ApproveApplication(ctx context.Context, applicationID uuid.UUID, interestRate float64, riskLevel, approvedBy string) error {
	return s.withApplication(ctx, applicationID, func(a *domain.LoanApplication) error {
		return a.Approve(interestRate, riskLevel, approvedBy)
	})
}

// RejectApplication is terminal.
func (s *LoanServiceImpl) RejectApplication(ctx context.Context, applicationID uuid.UUID, reason string) error {
	return s.withApplication(ctx, applicationID, func(a *domain.LoanApplication) error {
		return a.Reject(reason)
	})
}

// WithdrawApplication is terminal.
func (s *LoanServiceImpl) WithdrawApplication(ctx context.Context, applicationID uuid.UUID, reason string) error {
	return s.withApplication(ctx, applicationID, func(a *domain.LoanApplication) error {
		return a.Withdraw(reason)
	})
}

// OriginateLoan creates the servicing loan from an approved application.
func (s *LoanServiceImpl) OriginateLoan(ctx context.Context, applicationID uuid.UUID) (uuid.UUID, error) {
	application, err := s.applications.Load(ctx, applicationID)
	if err != nil {
		return uuid.Nil, err
	}
	if application.Status != domain.ApplicationStatusApproved {
		return uuid.Nil, apperror.ErrInvalidTransition(string(application.Status), "originate a loan from")
	}

	loan := domain.NewLoan(uuid.New())
	if err := loan.Create(application.ID, application.BorrowerID, application.Principal,
		application.InterestRate, application.TermMonths, time.Now().UTC()); err != nil {
		return uuid.Nil, err
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		return uuid.Nil, err
	}

	s.log.Info().
		Str("loan_id", loan.ID.String()).
		Str("application_id", applicationID.String()).
		Msg("loan originated")
	return loan.ID, nil
}

// FundLoan records investor funding. The amount must match the principal.
func (s *LoanServiceImpl) FundLoan(ctx context.Context, loanID uuid.UUID, investorIDs []uuid.UUID, amount decimal.Decimal) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		return l.Fund(investorIDs, amount)
	})
}

// DisburseLoan releases the principal and activates the loan.
func (s *LoanServiceImpl) DisburseLoan(ctx context.Context, loanID uuid.UUID) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		return l.Disburse(l.Principal)
	})
}

// RecordRepayment splits the payment into interest first, principal second,
// following the amortization schedule row for the next due payment.
func (s *LoanServiceImpl) RecordRepayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		if !amount.IsPositive() {
			return apperror.ErrInvalidAmount()
		}

		interest := l.OutstandingBalance.
			Mul(decimal.NewFromFloat(l.InterestRate)).
			Div(decimal.NewFromInt(1200)).
			RoundUp(2)
		if interest.GreaterThan(amount) {
			interest = amount
		}
		principalPortion := amount.Sub(interest).RoundDown(2)
		if principalPortion.GreaterThan(l.OutstandingBalance) {
			principalPortion = l.OutstandingBalance
		}

		return l.RecordRepayment(l.PaymentsReceived+1, amount, principalPortion, interest)
	})
}

// MissPayment marks the next scheduled payment as missed.
func (s *LoanServiceImpl) MissPayment(ctx context.Context, loanID uuid.UUID) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		return l.MissPayment(l.PaymentsReceived + l.MissedPayments + 1)
	})
}

// MarkDefaulted is allowed from active or delinquent only.
func (s *LoanServiceImpl) MarkDefaulted(ctx context.Context, loanID uuid.UUID, reason string) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		return l.MarkAsDefaulted(reason)
	})
}

// SettleEarly closes the loan against its full outstanding balance.
func (s *LoanServiceImpl) SettleEarly(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, settledBy string) error {
	return s.withLoan(ctx, loanID, func(l *domain.Loan) error {
		return l.SettleEarly(amount, settledBy)
	})
}

// GetLoan rebuilds the loan from its stream.
func (s *LoanServiceImpl) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.loans.Load(ctx, loanID)
}

func (s *LoanServiceImpl) withApplication(ctx context.Context, id uuid.UUID, command func(*domain.LoanApplication) error) error {
	application, err := s.applications.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := command(application); err != nil {
		return err
	}
	return s.applications.Save(ctx, application)
}

func (s *LoanServiceImpl) withLoan(ctx context.Context, id uuid.UUID, command func(*domain.Loan) error) error {
	loan, err := s.loans.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := command(loan); err != nil {
		return err
	}
	return s.loans.Save(ctx, loan)
}
