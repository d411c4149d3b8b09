package handler

import (
	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// PoolHandler handles liquidity pool endpoints.
type PoolHandler struct {
	poolSvc   ports.PoolService
	spreadMgr ports.SpreadManager
}

// NewPoolHandler creates a new PoolHandler.
func NewPoolHandler(poolSvc ports.PoolService, spreadMgr ports.SpreadManager) *PoolHandler {
	return &PoolHandler{poolSvc: poolSvc, spreadMgr: spreadMgr}
}

// CreatePool handles POST /api/v1/pools.
func (h *PoolHandler) CreatePool(c *gin.Context) {
	var req dto.CreatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	feeRate, err := dto.ParseOptionalDecimal("fee_rate", req.FeeRate)
	if err != nil {
		response.Error(c, err)
		return
	}

	poolID, err := h.poolSvc.CreatePool(c.Request.Context(), req.BaseCurrency, req.QuoteCurrency, feeRate, req.SpreadBps)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"pool_id": poolID.String()})
}

// GetPool handles GET /api/v1/pools/:id.
func (h *PoolHandler) GetPool(c *gin.Context) {
	poolID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	pool, err := h.poolSvc.GetPool(c.Request.Context(), poolID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPoolResponse(pool))
}

// AddLiquidity handles POST /api/v1/pools/:id/liquidity.
func (h *PoolHandler) AddLiquidity(c *gin.Context) {
	poolID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AddLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	baseAmount, err := dto.ParseDecimal("base_amount", req.BaseAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	quoteAmount, err := dto.ParseDecimal("quote_amount", req.QuoteAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	minShares, err := dto.ParseOptionalDecimal("min_shares", req.MinShares)
	if err != nil {
		response.Error(c, err)
		return
	}

	err = h.poolSvc.AddLiquidity(c.Request.Context(), ports.LiquidityRequest{
		PoolID:      poolID,
		ProviderID:  req.ProviderID,
		BaseAmount:  baseAmount,
		QuoteAmount: quoteAmount,
		MinShares:   minShares,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"pool_id": poolID.String()})
}

// RemoveLiquidity handles POST /api/v1/pools/:id/liquidity/remove.
func (h *PoolHandler) RemoveLiquidity(c *gin.Context) {
	poolID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RemoveLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	shares, err := dto.ParseDecimal("shares", req.Shares)
	if err != nil {
		response.Error(c, err)
		return
	}
	minBase, err := dto.ParseOptionalDecimal("min_base", req.MinBase)
	if err != nil {
		response.Error(c, err)
		return
	}
	minQuote, err := dto.ParseOptionalDecimal("min_quote", req.MinQuote)
	if err != nil {
		response.Error(c, err)
		return
	}

	err = h.poolSvc.RemoveLiquidity(c.Request.Context(), poolID, req.ProviderID, shares, minBase, minQuote)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"pool_id": poolID.String()})
}

// Swap handles POST /api/v1/pools/:id/swap.
func (h *PoolHandler) Swap(c *gin.Context) {
	poolID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := dto.ParseDecimal("amount", req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	minOutput, err := dto.ParseOptionalDecimal("min_output", req.MinOutput)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.poolSvc.Swap(c.Request.Context(), poolID, req.InputCurrency, amount, minOutput)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SwapResponse{
		PoolID:         poolID.String(),
		InputCurrency:  req.InputCurrency,
		OutputCurrency: result.OutputCurrency,
		InputAmount:    amount.String(),
		OutputAmount:   result.OutputAmount.String(),
		FeeAmount:      result.FeeAmount.String(),
		PriceImpactPct: result.PriceImpactPct.String(),
	})
}

// CheckImbalance handles GET /api/v1/pools/:id/imbalance.
func (h *PoolHandler) CheckImbalance(c *gin.Context) {
	poolID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	detected, err := h.spreadMgr.CheckInventory(c.Request.Context(), poolID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.ImbalanceResponse{PoolID: poolID.String(), Balanced: detected == nil}
	if detected != nil {
		resp.BaseRatio = detected.BaseRatio.String()
		resp.Severity = string(detected.Severity)
		resp.RecommendedAction = detected.RecommendedAction
	}
	response.OK(c, resp)
}

func toPoolResponse(pool *domain.LiquidityPool) dto.PoolResponse {
	return dto.PoolResponse{
		PoolID:        pool.ID.String(),
		BaseCurrency:  pool.BaseCurrency,
		QuoteCurrency: pool.QuoteCurrency,
		BaseReserve:   pool.BaseReserve.String(),
		QuoteReserve:  pool.QuoteReserve.String(),
		TotalShares:   pool.TotalShares.String(),
		FeeRate:       pool.FeeRate.String(),
		SpreadBps:     pool.SpreadBps,
		IsActive:      pool.IsActive,
	}
}
