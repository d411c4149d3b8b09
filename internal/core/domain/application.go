package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-core/pkg/apperror"
)

// Loan application event type tags.
const (
	TypeLoanApplicationSubmitted = "loan_application.submitted"
	TypeLoanApplicationApproved  = "loan_application.approved"
	TypeLoanApplicationRejected  = "loan_application.rejected"
	TypeLoanApplicationWithdrawn = "loan_application.withdrawn"
)

// ApplicationStatus is the lifecycle state of a loan application.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

type LoanApplicationSubmitted struct {
	ApplicationID uuid.UUID       `json:"application_id"`
	BorrowerID    uuid.UUID       `json:"borrower_id"`
	Principal     decimal.Decimal `json:"principal"`
	TermMonths    int             `json:"term_months"`
	Purpose       string          `json:"purpose,omitempty"`
}

func (*LoanApplicationSubmitted) EventType() string { return TypeLoanApplicationSubmitted }

type LoanApplicationApproved struct {
	InterestRate float64 `json:"interest_rate"`
	RiskLevel    string  `json:"risk_level"`
	ApprovedBy   string  `json:"approved_by,omitempty"`
}

func (*LoanApplicationApproved) EventType() string { return TypeLoanApplicationApproved }

type LoanApplicationRejected struct {
	Reason string `json:"reason"`
}

func (*LoanApplicationRejected) EventType() string { return TypeLoanApplicationRejected }

type LoanApplicationWithdrawn struct {
	Reason string `json:"reason,omitempty"`
}

func (*LoanApplicationWithdrawn) EventType() string { return TypeLoanApplicationWithdrawn }

// LoanApplication is the origination-stage state machine feeding Loan.
// submitted → approved | rejected | withdrawn; approved → withdrawn.
type LoanApplication struct {
	ID           uuid.UUID
	BorrowerID   uuid.UUID
	Principal    decimal.Decimal
	TermMonths   int
	Purpose      string
	Status       ApplicationStatus
	InterestRate float64
	RiskLevel    string

	Version int64
	changes []Event
}

// NewLoanApplication returns an empty aggregate ready for replay.
func NewLoanApplication(id uuid.UUID) *LoanApplication {
	return &LoanApplication{ID: id}
}

func (ap *LoanApplication) Changes() []Event { return ap.changes }

func (ap *LoanApplication) MarkCommitted() {
	ap.Version += int64(len(ap.changes))
	ap.changes = nil
}

// Submit opens the application stream.
func (ap *LoanApplication) Submit(borrowerID uuid.UUID, principal decimal.Decimal, termMonths int, purpose string) error {
	if ap.Version > 0 || len(ap.changes) > 0 {
		return apperror.ErrAlreadyExists("Loan application")
	}
	if !principal.IsPositive() {
		return apperror.ErrInvalidPrincipal()
	}
	if termMonths < 1 || termMonths > 360 {
		return apperror.ErrInvalidTerm()
	}
	ap.recordThat(&LoanApplicationSubmitted{
		ApplicationID: ap.ID,
		BorrowerID:    borrowerID,
		Principal:     principal,
		TermMonths:    termMonths,
		Purpose:       purpose,
	}, nil)
	return nil
}

// Approve fixes the offered interest rate after the risk check.
func (ap *LoanApplication) Approve(interestRate float64, riskLevel, approvedBy string) error {
	if ap.Status != ApplicationStatusSubmitted {
		return apperror.ErrInvalidTransition(string(ap.Status), "approve")
	}
	if interestRate < 0 || interestRate > 100 {
		return apperror.ErrInvalidInterestRate()
	}
	ap.recordThat(&LoanApplicationApproved{
		InterestRate: interestRate,
		RiskLevel:    riskLevel,
		ApprovedBy:   approvedBy,
	}, nil)
	return nil
}

// Reject is terminal.
func (ap *LoanApplication) Reject(reason string) error {
	if ap.Status != ApplicationStatusSubmitted {
		return apperror.ErrInvalidTransition(string(ap.Status), "reject")
	}
	ap.recordThat(&LoanApplicationRejected{Reason: reason}, nil)
	return nil
}

// Withdraw is terminal and allowed from submitted or approved.
func (ap *LoanApplication) Withdraw(reason string) error {
	if ap.Status != ApplicationStatusSubmitted && ap.Status != ApplicationStatusApproved {
		return apperror.ErrInvalidTransition(string(ap.Status), "withdraw")
	}
	ap.recordThat(&LoanApplicationWithdrawn{Reason: reason}, nil)
	return nil
}

// Apply folds one event payload into state.
func (ap *LoanApplication) Apply(payload EventPayload) {
	switch p := payload.(type) {
	case *LoanApplicationSubmitted:
		ap.BorrowerID = p.BorrowerID
		ap.Principal = p.Principal
		ap.TermMonths = p.TermMonths
		ap.Purpose = p.Purpose
		ap.Status = ApplicationStatusSubmitted
	case *LoanApplicationApproved:
		ap.InterestRate = p.InterestRate
		ap.RiskLevel = p.RiskLevel
		ap.Status = ApplicationStatusApproved
	case *LoanApplicationRejected:
		ap.Status = ApplicationStatusRejected
	case *LoanApplicationWithdrawn:
		ap.Status = ApplicationStatusWithdrawn
	}
}

// Replay folds committed history into the aggregate without recording.
func (ap *LoanApplication) Replay(events []Event) {
	for _, e := range events {
		ap.Apply(e.Payload)
		ap.Version = e.Version
	}
}

func (ap *LoanApplication) CurrentVersion() int64 { return ap.Version }

func (ap *LoanApplication) SnapshotState() ([]byte, error) { return json.Marshal(ap) }

func (ap *LoanApplication) RestoreSnapshot(state []byte, version int64) error {
	if err := json.Unmarshal(state, ap); err != nil {
		return err
	}
	ap.Version = version
	return nil
}

func (ap *LoanApplication) recordThat(payload EventPayload, metadata map[string]string) {
	ap.changes = append(ap.changes, Event{
		AggregateID: ap.ID,
		Version:     ap.Version + int64(len(ap.changes)) + 1,
		Type:        payload.EventType(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
		Metadata:    metadata,
	})
	ap.Apply(payload)
}
