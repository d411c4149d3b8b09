package service

import (
	"context"

	"ledger-core/internal/core/ports"

	"github.com/rs/zerolog"
)

// ThresholdRiskAssessor implements ports.RiskAssessor with a static notional
// ceiling. Transfers at or above the ceiling are blocked outright; transfers
// in the upper half of the allowed range are approved at an elevated level.
type ThresholdRiskAssessor struct {
	blockOverMinor int64
	log            zerolog.Logger
}

// NewThresholdRiskAssessor creates the assessor. blockOverMinor <= 0 disables
// blocking entirely.
func NewThresholdRiskAssessor(blockOverMinor int64, log zerolog.Logger) *ThresholdRiskAssessor {
	return &ThresholdRiskAssessor{
		blockOverMinor: blockOverMinor,
		log:            log.With().Str("component", "risk_assessor").Logger(),
	}
}

func (a *ThresholdRiskAssessor) AssessTransfer(_ context.Context, req ports.TransferRiskRequest) (ports.RiskDecision, error) {
	if a.blockOverMinor > 0 && req.Amount >= a.blockOverMinor {
		a.log.Warn().
			Str("from_account", req.FromAccountID.String()).
			Str("asset", req.AssetCode).
			Int64("amount", req.Amount).
			Msg("transfer blocked by notional ceiling")
		return ports.RiskDecision{
			Approved: false,
			Level:    "critical",
			Reason:   "amount exceeds compliance ceiling",
		}, nil
	}

	level := "low"
	if a.blockOverMinor > 0 && req.Amount >= a.blockOverMinor/2 {
		level = "elevated"
	}
	return ports.RiskDecision{Approved: true, Level: level}, nil
}
