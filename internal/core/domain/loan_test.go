package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-core/pkg/apperror"
)

func TestGenerateSchedule_ClosesToZero(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      float64
		term      int
	}{
		{"12% over 12 months", "1000.00", 12.0, 12},
		{"5.5% over 36 months", "25000.00", 5.5, 36},
		{"zero rate", "1000.00", 0, 12},
		{"one month", "500.00", 10.0, 1},
		{"awkward principal", "333.33", 7.77, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal := decimal.RequireFromString(tt.principal)
			start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

			schedule := GenerateSchedule(principal, tt.rate, tt.term, start)
			require.Len(t, schedule, tt.term)

			// Balance decreases monotonically and closes at exactly zero.
			prev := principal
			totalPrincipal := decimal.Zero
			for _, entry := range schedule {
				assert.True(t, entry.RemainingBalance.LessThan(prev),
					"balance must strictly decrease at payment %d", entry.PaymentNumber)
				assert.True(t, entry.Total.Equal(entry.Principal.Add(entry.Interest)))
				prev = entry.RemainingBalance
				totalPrincipal = totalPrincipal.Add(entry.Principal)
			}
			assert.True(t, schedule[tt.term-1].RemainingBalance.IsZero(),
				"final balance = %s", schedule[tt.term-1].RemainingBalance)
			assert.True(t, totalPrincipal.Equal(principal))
		})
	}
}

func TestGenerateSchedule_DueDates(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	schedule := GenerateSchedule(decimal.NewFromInt(1200), 6.0, 3, start)

	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), schedule[2].DueDate)
}

func newActiveLoan(t *testing.T, principal string) *Loan {
	t.Helper()
	l := NewLoan(uuid.New())
	p := decimal.RequireFromString(principal)
	require.NoError(t, l.Create(uuid.New(), uuid.New(), p, 12.0, 12, time.Now()))
	require.NoError(t, l.Fund([]uuid.UUID{uuid.New()}, p))
	require.NoError(t, l.Disburse(p))
	return l
}

func TestLoan_CreateValidation(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      float64
		term      int
		wantCode  string
	}{
		{"zero principal", "0", 10, 12, "LOAN_002"},
		{"negative principal", "-5", 10, 12, "LOAN_002"},
		{"negative rate", "1000", -1, 12, "LOAN_003"},
		{"rate above 100", "1000", 101, 12, "LOAN_003"},
		{"zero term", "1000", 10, 0, "LOAN_004"},
		{"term above 360", "1000", 10, 361, "LOAN_004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoan(uuid.New())
			err := l.Create(uuid.New(), uuid.New(), decimal.RequireFromString(tt.principal), tt.rate, tt.term, time.Now())
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestLoan_Lifecycle(t *testing.T) {
	l := NewLoan(uuid.New())
	principal := decimal.NewFromInt(1000)

	require.NoError(t, l.Create(uuid.New(), uuid.New(), principal, 12.0, 12, time.Now()))
	assert.Equal(t, LoanStatusCreated, l.Status)
	assert.True(t, l.OutstandingBalance.Equal(principal))
	require.Len(t, l.Schedule, 12)

	// Funding must match the principal exactly.
	var appErr *apperror.AppError
	require.ErrorAs(t, l.Fund([]uuid.UUID{uuid.New()}, decimal.NewFromInt(999)), &appErr)
	assert.Equal(t, "LOAN_005", appErr.Code)

	require.NoError(t, l.Fund([]uuid.UUID{uuid.New(), uuid.New()}, principal))
	assert.Equal(t, LoanStatusFunded, l.Status)

	require.NoError(t, l.Disburse(principal))
	assert.Equal(t, LoanStatusActive, l.Status)
}

func TestLoan_InvalidTransitions(t *testing.T) {
	principal := decimal.NewFromInt(1000)

	t.Run("fund before create", func(t *testing.T) {
		l := NewLoan(uuid.New())
		var appErr *apperror.AppError
		require.ErrorAs(t, l.Fund(nil, principal), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
	})

	t.Run("disburse before fund", func(t *testing.T) {
		l := NewLoan(uuid.New())
		require.NoError(t, l.Create(uuid.New(), uuid.New(), principal, 12, 12, time.Now()))
		var appErr *apperror.AppError
		require.ErrorAs(t, l.Disburse(principal), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
	})

	t.Run("repay before disburse", func(t *testing.T) {
		l := NewLoan(uuid.New())
		require.NoError(t, l.Create(uuid.New(), uuid.New(), principal, 12, 12, time.Now()))
		var appErr *apperror.AppError
		require.ErrorAs(t, l.RecordRepayment(1, decimal.NewFromInt(100), decimal.NewFromInt(90), decimal.NewFromInt(10)), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
	})

	t.Run("default after settle", func(t *testing.T) {
		l := newActiveLoan(t, "1000")
		require.NoError(t, l.SettleEarly(decimal.NewFromInt(1000), "borrower"))
		var appErr *apperror.AppError
		require.ErrorAs(t, l.MarkAsDefaulted("late"), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
	})
}

func TestLoan_RepaymentCuresDelinquency(t *testing.T) {
	l := newActiveLoan(t, "1000")

	require.NoError(t, l.MissPayment(1))
	assert.Equal(t, LoanStatusDelinquent, l.Status)
	assert.Equal(t, 1, l.MissedPayments)

	require.NoError(t, l.RecordRepayment(1, decimal.NewFromInt(100), decimal.NewFromInt(90), decimal.NewFromInt(10)))
	assert.Equal(t, LoanStatusActive, l.Status)
	assert.True(t, l.OutstandingBalance.Equal(decimal.NewFromInt(910)))
}

func TestLoan_FinalRepaymentCompletes(t *testing.T) {
	l := newActiveLoan(t, "1000")

	require.NoError(t, l.RecordRepayment(1, decimal.NewFromInt(1010), decimal.NewFromInt(1000), decimal.NewFromInt(10)))

	assert.Equal(t, LoanStatusCompleted, l.Status)
	assert.True(t, l.OutstandingBalance.IsZero())

	// The completion event was recorded right after the repayment.
	changes := l.Changes()
	last := changes[len(changes)-1]
	require.Equal(t, TypeLoanCompleted, last.Type)
	completed := last.Payload.(*LoanCompleted)
	assert.True(t, completed.TotalPrincipalPaid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, completed.TotalInterestPaid.Equal(decimal.NewFromInt(10)))
}

func TestLoan_SettleEarly(t *testing.T) {
	l := newActiveLoan(t, "1000")
	require.NoError(t, l.RecordRepayment(1, decimal.NewFromInt(100), decimal.NewFromInt(90), decimal.NewFromInt(10)))

	var appErr *apperror.AppError
	require.ErrorAs(t, l.SettleEarly(decimal.NewFromInt(909), "borrower"), &appErr)
	assert.Equal(t, "LOAN_006", appErr.Code)

	require.NoError(t, l.SettleEarly(decimal.NewFromInt(910), "borrower"))
	assert.Equal(t, LoanStatusSettled, l.Status)
	assert.True(t, l.OutstandingBalance.IsZero())
}

func TestLoan_DefaultCapturesOutstanding(t *testing.T) {
	l := newActiveLoan(t, "1000")
	require.NoError(t, l.MissPayment(1))
	require.NoError(t, l.MissPayment(2))
	require.NoError(t, l.MissPayment(3))

	require.NoError(t, l.MarkAsDefaulted("three consecutive misses"))
	assert.Equal(t, LoanStatusDefaulted, l.Status)

	changes := l.Changes()
	defaulted := changes[len(changes)-1].Payload.(*LoanDefaulted)
	assert.True(t, defaulted.OutstandingBalance.Equal(decimal.NewFromInt(1000)))
}
