package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-core/pkg/apperror"
)

func newSubmittedApplication(t *testing.T) *LoanApplication {
	t.Helper()
	ap := NewLoanApplication(uuid.New())
	require.NoError(t, ap.Submit(uuid.New(), decimal.NewFromInt(5000), 24, "equipment"))
	return ap
}

func TestLoanApplication_Submit(t *testing.T) {
	ap := newSubmittedApplication(t)
	assert.Equal(t, ApplicationStatusSubmitted, ap.Status)
	assert.Equal(t, 24, ap.TermMonths)

	var appErr *apperror.AppError
	require.ErrorAs(t, ap.Submit(uuid.New(), decimal.NewFromInt(1), 12, ""), &appErr)
	assert.Equal(t, "LED_006", appErr.Code)
}

func TestLoanApplication_SubmitValidation(t *testing.T) {
	tests := []struct {
		name      string
		principal decimal.Decimal
		term      int
		wantCode  string
	}{
		{"zero principal", decimal.Zero, 12, "LOAN_002"},
		{"zero term", decimal.NewFromInt(100), 0, "LOAN_004"},
		{"term above 360", decimal.NewFromInt(100), 400, "LOAN_004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap := NewLoanApplication(uuid.New())
			err := ap.Submit(uuid.New(), tt.principal, tt.term, "")
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestLoanApplication_Decisions(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		ap := newSubmittedApplication(t)
		require.NoError(t, ap.Approve(8.5, "low", "underwriter-1"))
		assert.Equal(t, ApplicationStatusApproved, ap.Status)
		assert.Equal(t, 8.5, ap.InterestRate)
	})

	t.Run("approve out-of-range rate", func(t *testing.T) {
		ap := newSubmittedApplication(t)
		var appErr *apperror.AppError
		require.ErrorAs(t, ap.Approve(150, "low", ""), &appErr)
		assert.Equal(t, "LOAN_003", appErr.Code)
	})

	t.Run("reject is terminal", func(t *testing.T) {
		ap := newSubmittedApplication(t)
		require.NoError(t, ap.Reject("insufficient credit history"))
		assert.Equal(t, ApplicationStatusRejected, ap.Status)

		var appErr *apperror.AppError
		require.ErrorAs(t, ap.Approve(8.5, "low", ""), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
		require.ErrorAs(t, ap.Withdraw(""), &appErr)
		assert.Equal(t, "LOAN_001", appErr.Code)
	})

	t.Run("withdraw after approval", func(t *testing.T) {
		ap := newSubmittedApplication(t)
		require.NoError(t, ap.Approve(8.5, "low", ""))
		require.NoError(t, ap.Withdraw("found a better offer"))
		assert.Equal(t, ApplicationStatusWithdrawn, ap.Status)
	})
}
