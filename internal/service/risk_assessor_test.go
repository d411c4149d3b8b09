package service

import (
	"context"
	"testing"

	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdRiskAssessor(t *testing.T) {
	a := NewThresholdRiskAssessor(1_000_000, zerolog.Nop())

	assess := func(amount int64) ports.RiskDecision {
		decision, err := a.AssessTransfer(context.Background(), ports.TransferRiskRequest{
			FromAccountID: uuid.New(),
			ToAccountID:   uuid.New(),
			AssetCode:     "USD",
			Amount:        amount,
		})
		require.NoError(t, err)
		return decision
	}

	low := assess(100)
	assert.True(t, low.Approved)
	assert.Equal(t, "low", low.Level)

	elevated := assess(600_000)
	assert.True(t, elevated.Approved)
	assert.Equal(t, "elevated", elevated.Level)

	blocked := assess(1_000_000)
	assert.False(t, blocked.Approved)
	assert.Equal(t, "critical", blocked.Level)
	assert.NotEmpty(t, blocked.Reason)
}

func TestThresholdRiskAssessor_Disabled(t *testing.T) {
	a := NewThresholdRiskAssessor(0, zerolog.Nop())

	decision, err := a.AssessTransfer(context.Background(), ports.TransferRiskRequest{
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		AssetCode:     "USD",
		Amount:        1 << 40,
	})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "low", decision.Level)
}
