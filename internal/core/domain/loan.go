package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-core/pkg/apperror"
)

// Loan event type tags.
const (
	TypeLoanCreated       = "loan.created"
	TypeLoanFunded        = "loan.funded"
	TypeLoanDisbursed     = "loan.disbursed"
	TypeLoanRepaymentMade = "loan.repayment_made"
	TypeLoanPaymentMissed = "loan.payment_missed"
	TypeLoanDefaulted     = "loan.defaulted"
	TypeLoanCompleted     = "loan.completed"
	TypeLoanSettledEarly  = "loan.settled_early"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusCreated    LoanStatus = "created"
	LoanStatusFunded     LoanStatus = "funded"
	LoanStatusActive     LoanStatus = "active"
	LoanStatusDelinquent LoanStatus = "delinquent"
	LoanStatusDefaulted  LoanStatus = "defaulted"
	LoanStatusCompleted  LoanStatus = "completed"
	LoanStatusSettled    LoanStatus = "settled"
)

// ScheduleEntry is one row of an amortization schedule.
type ScheduleEntry struct {
	PaymentNumber    int             `json:"payment_number"`
	DueDate          time.Time       `json:"due_date"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Total            decimal.Decimal `json:"total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// GenerateSchedule builds a standard amortization schedule. Interest rounds
// up to 2 decimals, principal portions round down, and the final period's
// principal absorbs the rounding residue so the balance closes to exactly zero.
func GenerateSchedule(principal decimal.Decimal, annualRatePct float64, termMonths int, start time.Time) []ScheduleEntry {
	one := decimal.NewFromInt(1)
	months := decimal.NewFromInt(int64(termMonths))
	rate := decimal.NewFromFloat(annualRatePct).Div(decimal.NewFromInt(1200))

	var payment decimal.Decimal
	if rate.IsPositive() {
		// payment = P * r * (1+r)^n / ((1+r)^n - 1)
		factor := one.Add(rate).Pow(months)
		payment = principal.Mul(rate).Mul(factor).Div(factor.Sub(one)).RoundUp(2)
	} else {
		payment = principal.Div(months).RoundUp(2)
	}

	entries := make([]ScheduleEntry, 0, termMonths)
	remaining := principal

	for i := 1; i <= termMonths; i++ {
		interest := remaining.Mul(rate).RoundUp(2)
		principalPortion := payment.Sub(interest).RoundDown(2)
		total := payment

		if i == termMonths {
			principalPortion = remaining
			total = principalPortion.Add(interest)
		}

		remaining = remaining.Sub(principalPortion)

		entries = append(entries, ScheduleEntry{
			PaymentNumber:    i,
			DueDate:          start.AddDate(0, i, 0),
			Principal:        principalPortion,
			Interest:         interest,
			Total:            total,
			RemainingBalance: remaining,
		})
	}

	return entries
}

// LoanCreated opens a loan stream with its generated repayment schedule.
type LoanCreated struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	ApplicationID uuid.UUID       `json:"application_id"`
	BorrowerID    uuid.UUID       `json:"borrower_id"`
	Principal     decimal.Decimal `json:"principal"`
	InterestRate  float64         `json:"interest_rate"`
	TermMonths    int             `json:"term_months"`
	Schedule      []ScheduleEntry `json:"schedule"`
}

func (*LoanCreated) EventType() string { return TypeLoanCreated }

type LoanFunded struct {
	InvestorIDs []uuid.UUID     `json:"investor_ids"`
	Amount      decimal.Decimal `json:"amount"`
}

func (*LoanFunded) EventType() string { return TypeLoanFunded }

type LoanDisbursed struct {
	Amount decimal.Decimal `json:"amount"`
}

func (*LoanDisbursed) EventType() string { return TypeLoanDisbursed }

type LoanRepaymentMade struct {
	PaymentNumber    int             `json:"payment_number"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

func (*LoanRepaymentMade) EventType() string { return TypeLoanRepaymentMade }

type LoanPaymentMissed struct {
	PaymentNumber int `json:"payment_number"`
}

func (*LoanPaymentMissed) EventType() string { return TypeLoanPaymentMissed }

type LoanDefaulted struct {
	Reason             string          `json:"reason"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

func (*LoanDefaulted) EventType() string { return TypeLoanDefaulted }

type LoanCompleted struct {
	TotalPrincipalPaid decimal.Decimal `json:"total_principal_paid"`
	TotalInterestPaid  decimal.Decimal `json:"total_interest_paid"`
}

func (*LoanCompleted) EventType() string { return TypeLoanCompleted }

type LoanSettledEarly struct {
	Amount             decimal.Decimal `json:"amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	SettledBy          string          `json:"settled_by"`
}

func (*LoanSettledEarly) EventType() string { return TypeLoanSettledEarly }

// Loan is the event-sourced loan servicing aggregate. Status transitions
// follow a strict state machine; the outstanding balance only decreases
// after creation.
type Loan struct {
	ID                 uuid.UUID
	ApplicationID      uuid.UUID
	BorrowerID         uuid.UUID
	Principal          decimal.Decimal
	InterestRate       float64
	TermMonths         int
	Status             LoanStatus
	InvestorIDs        []uuid.UUID
	Schedule           []ScheduleEntry
	OutstandingBalance decimal.Decimal
	TotalPrincipalPaid decimal.Decimal
	TotalInterestPaid  decimal.Decimal
	PaymentsReceived   int
	MissedPayments     int

	Version int64
	changes []Event
}

// NewLoan returns an empty aggregate ready for replay.
func NewLoan(id uuid.UUID) *Loan {
	return &Loan{
		ID:                 id,
		TotalPrincipalPaid: decimal.Zero,
		TotalInterestPaid:  decimal.Zero,
		OutstandingBalance: decimal.Zero,
	}
}

func (l *Loan) Changes() []Event { return l.changes }

func (l *Loan) MarkCommitted() {
	l.Version += int64(len(l.changes))
	l.changes = nil
}

// Create validates loan terms, generates the amortization schedule and
// records the opening event.
func (l *Loan) Create(applicationID, borrowerID uuid.UUID, principal decimal.Decimal, interestRate float64, termMonths int, now time.Time) error {
	if l.Version > 0 || len(l.changes) > 0 {
		return apperror.ErrAlreadyExists("Loan")
	}
	if !principal.IsPositive() {
		return apperror.ErrInvalidPrincipal()
	}
	if interestRate < 0 || interestRate > 100 {
		return apperror.ErrInvalidInterestRate()
	}
	if termMonths < 1 || termMonths > 360 {
		return apperror.ErrInvalidTerm()
	}

	l.recordThat(&LoanCreated{
		LoanID:        l.ID,
		ApplicationID: applicationID,
		BorrowerID:    borrowerID,
		Principal:     principal,
		InterestRate:  interestRate,
		TermMonths:    termMonths,
		Schedule:      GenerateSchedule(principal, interestRate, termMonths, now),
	}, nil)
	return nil
}

// Fund moves the loan to funded. The funded amount must equal the principal
// exactly.
func (l *Loan) Fund(investorIDs []uuid.UUID, amount decimal.Decimal) error {
	if l.Status != LoanStatusCreated {
		return apperror.ErrInvalidTransition(string(l.Status), "fund")
	}
	if !amount.Equal(l.Principal) {
		return apperror.ErrFundingMismatch()
	}
	l.recordThat(&LoanFunded{InvestorIDs: investorIDs, Amount: amount}, nil)
	return nil
}

// Disburse releases the funds to the borrower and activates the loan.
func (l *Loan) Disburse(amount decimal.Decimal) error {
	if l.Status != LoanStatusFunded {
		return apperror.ErrInvalidTransition(string(l.Status), "disburse")
	}
	l.recordThat(&LoanDisbursed{Amount: amount}, nil)
	return nil
}

// RecordRepayment applies a scheduled payment. A repayment on a delinquent
// loan cures the delinquency; a repayment that zeroes the balance completes
// the loan in the same command.
func (l *Loan) RecordRepayment(paymentNumber int, amount, principalPortion, interestPortion decimal.Decimal) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent {
		return apperror.ErrInvalidTransition(string(l.Status), "repay")
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	remaining := l.OutstandingBalance.Sub(principalPortion).RoundDown(2)
	l.recordThat(&LoanRepaymentMade{
		PaymentNumber:    paymentNumber,
		Amount:           amount,
		PrincipalPortion: principalPortion,
		InterestPortion:  interestPortion,
		RemainingBalance: remaining,
	}, nil)

	if remaining.IsZero() {
		l.recordThat(&LoanCompleted{
			TotalPrincipalPaid: l.TotalPrincipalPaid,
			TotalInterestPaid:  l.TotalInterestPaid,
		}, nil)
	}
	return nil
}

// MissPayment marks a scheduled payment as missed; any miss makes the loan
// delinquent.
func (l *Loan) MissPayment(paymentNumber int) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent {
		return apperror.ErrInvalidTransition(string(l.Status), "miss a payment on")
	}
	l.recordThat(&LoanPaymentMissed{PaymentNumber: paymentNumber}, nil)
	return nil
}

// MarkAsDefaulted is allowed from active or delinquent only.
func (l *Loan) MarkAsDefaulted(reason string) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent {
		return apperror.ErrInvalidTransition(string(l.Status), "default")
	}
	l.recordThat(&LoanDefaulted{Reason: reason, OutstandingBalance: l.OutstandingBalance}, nil)
	return nil
}

// SettleEarly closes the loan with a payment covering the full outstanding
// balance.
func (l *Loan) SettleEarly(amount decimal.Decimal, settledBy string) error {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDelinquent {
		return apperror.ErrInvalidTransition(string(l.Status), "settle")
	}
	if amount.LessThan(l.OutstandingBalance) {
		return apperror.ErrSettlementTooLow()
	}
	l.recordThat(&LoanSettledEarly{
		Amount:             amount,
		OutstandingBalance: l.OutstandingBalance,
		SettledBy:          settledBy,
	}, nil)
	return nil
}

// Apply folds one event payload into state.
func (l *Loan) Apply(payload EventPayload) {
	switch p := payload.(type) {
	case *LoanCreated:
		l.ApplicationID = p.ApplicationID
		l.BorrowerID = p.BorrowerID
		l.Principal = p.Principal
		l.InterestRate = p.InterestRate
		l.TermMonths = p.TermMonths
		l.Schedule = p.Schedule
		l.OutstandingBalance = p.Principal
		l.Status = LoanStatusCreated
	case *LoanFunded:
		l.InvestorIDs = p.InvestorIDs
		l.Status = LoanStatusFunded
	case *LoanDisbursed:
		l.Status = LoanStatusActive
	case *LoanRepaymentMade:
		l.PaymentsReceived++
		l.TotalPrincipalPaid = l.TotalPrincipalPaid.Add(p.PrincipalPortion)
		l.TotalInterestPaid = l.TotalInterestPaid.Add(p.InterestPortion)
		l.OutstandingBalance = p.RemainingBalance
		l.Status = LoanStatusActive
	case *LoanPaymentMissed:
		l.MissedPayments++
		l.Status = LoanStatusDelinquent
	case *LoanDefaulted:
		l.Status = LoanStatusDefaulted
	case *LoanCompleted:
		l.Status = LoanStatusCompleted
	case *LoanSettledEarly:
		l.Status = LoanStatusSettled
		l.OutstandingBalance = decimal.Zero
	}
}

// Replay folds committed history into the aggregate without recording.
func (l *Loan) Replay(events []Event) {
	for _, e := range events {
		l.Apply(e.Payload)
		l.Version = e.Version
	}
}

func (l *Loan) CurrentVersion() int64 { return l.Version }

func (l *Loan) SnapshotState() ([]byte, error) { return json.Marshal(l) }

func (l *Loan) RestoreSnapshot(state []byte, version int64) error {
	if err := json.Unmarshal(state, l); err != nil {
		return err
	}
	l.Version = version
	return nil
}

func (l *Loan) recordThat(payload EventPayload, metadata map[string]string) {
	l.changes = append(l.changes, Event{
		AggregateID: l.ID,
		Version:     l.Version + int64(len(l.changes)) + 1,
		Type:        payload.EventType(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
		Metadata:    metadata,
	})
	l.Apply(payload)
}
