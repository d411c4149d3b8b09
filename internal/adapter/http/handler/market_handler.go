package handler

import (
	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketHandler handles exchange rate, order routing, and market signal
// endpoints.
type MarketHandler struct {
	rateSvc   ports.RateService
	router    ports.OrderRouter
	spreadMgr ports.SpreadManager
	events    ports.EventStore
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(rateSvc ports.RateService, router ports.OrderRouter, spreadMgr ports.SpreadManager, events ports.EventStore) *MarketHandler {
	return &MarketHandler{rateSvc: rateSvc, router: router, spreadMgr: spreadMgr, events: events}
}

// GetRate handles GET /api/v1/rates/:from/:to.
func (h *MarketHandler) GetRate(c *gin.Context) {
	from := c.Param("from")
	to := c.Param("to")

	quote, err := h.rateSvc.GetRate(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.QuoteResponse{
		From:      quote.From,
		To:        quote.To,
		Rate:      quote.Rate.String(),
		Bid:       quote.Bid.String(),
		Ask:       quote.Ask.String(),
		Provider:  quote.Provider,
		FetchedAt: quote.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Convert handles GET /api/v1/rates/:from/:to/convert?amount=Z.
func (h *MarketHandler) Convert(c *gin.Context) {
	from := c.Param("from")
	to := c.Param("to")

	amount, err := dto.ParseDecimal("amount", c.Query("amount"))
	if err != nil {
		response.Error(c, err)
		return
	}

	converted, err := h.rateSvc.Convert(c.Request.Context(), from, to, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ConvertResponse{
		From:      from,
		To:        to,
		Amount:    amount.String(),
		Converted: converted.String(),
	})
}

// PlaceOrder handles POST /api/v1/orders.
func (h *MarketHandler) PlaceOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
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

	orderID := uuid.New()
	if req.OrderID != "" {
		orderID = uuid.MustParse(req.OrderID)
	}

	err = h.router.RouteOrder(c.Request.Context(), ports.OrderRequest{
		OrderID:       orderID,
		BaseCurrency:  req.BaseCurrency,
		QuoteCurrency: req.QuoteCurrency,
		Side:          domain.OrderSide(req.Side),
		Amount:        amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.PlaceOrderResponse{OrderID: orderID.String()})
}

// GetOrder handles GET /api/v1/orders/:id. The routing decision is the
// order's event stream.
func (h *MarketHandler) GetOrder(c *gin.Context) {
	orderID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.events.ReadFrom(c.Request.Context(), orderID, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(events) == 0 {
		response.Error(c, apperror.ErrAggregateNotFound(orderID.String()))
		return
	}

	response.OK(c, toHistoryResponse(orderID, events))
}

// ReportPriceMove handles POST /api/v1/market/volatility.
func (h *MarketHandler) ReportPriceMove(c *gin.Context) {
	var req dto.PriceMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.spreadMgr.OnPriceMove(c.Request.Context(), req.AssetCode, req.Delta); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"asset_code": req.AssetCode})
}
