package handler

import (
	"context"

	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles account and transfer endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// OpenAccount handles POST /api/v1/accounts.
func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	accountID, err := h.ledgerSvc.OpenAccount(c.Request.Context(), uuid.MustParse(req.UserID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.OpenAccountResponse{AccountID: accountID.String()})
}

// Credit handles POST /api/v1/accounts/:id/credit.
func (h *LedgerHandler) Credit(c *gin.Context) {
	h.entry(c, h.ledgerSvc.Credit)
}

// Debit handles POST /api/v1/accounts/:id/debit.
func (h *LedgerHandler) Debit(c *gin.Context) {
	h.entry(c, h.ledgerSvc.Debit)
}

// Freeze handles POST /api/v1/accounts/:id/freeze.
func (h *LedgerHandler) Freeze(c *gin.Context) {
	h.freeze(c, h.ledgerSvc.Freeze)
}

// Unfreeze handles POST /api/v1/accounts/:id/unfreeze.
func (h *LedgerHandler) Unfreeze(c *gin.Context) {
	h.freeze(c, h.ledgerSvc.Unfreeze)
}

// Transfer handles POST /api/v1/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	transferID := uuid.New()
	if req.TransferID != "" {
		transferID = uuid.MustParse(req.TransferID)
	}

	err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		TransferID:    transferID,
		FromAccountID: uuid.MustParse(req.FromAccountID),
		ToAccountID:   uuid.MustParse(req.ToAccountID),
		AssetCode:     req.AssetCode,
		Amount:        req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"transfer_id": transferID.String()})
}

// GetBalances handles GET /api/v1/accounts/:id/balances.
func (h *LedgerHandler) GetBalances(c *gin.Context) {
	accountID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	balances, err := h.ledgerSvc.GetBalances(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalancesResponse{AccountID: accountID.String(), Balances: balances})
}

// GetHistory handles GET /api/v1/accounts/:id/history.
func (h *LedgerHandler) GetHistory(c *gin.Context) {
	accountID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.ledgerSvc.GetHistory(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toHistoryResponse(accountID, events))
}

func (h *LedgerHandler) entry(c *gin.Context, op func(ctx context.Context, req ports.EntryRequest) error) {
	accountID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	err = op(c.Request.Context(), ports.EntryRequest{
		AccountID: accountID,
		AssetCode: req.AssetCode,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"account_id": accountID.String()})
}

func (h *LedgerHandler) freeze(c *gin.Context, op func(ctx context.Context, accountID uuid.UUID, reason, authorizedBy string) error) {
	accountID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := op(c.Request.Context(), accountID, req.Reason, req.AuthorizedBy); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"account_id": accountID.String()})
}

func toHistoryResponse(aggregateID uuid.UUID, events []domain.Event) dto.HistoryResponse {
	out := dto.HistoryResponse{
		AggregateID: aggregateID.String(),
		Events:      make([]dto.EventResponse, 0, len(events)),
	}
	for _, e := range events {
		out.Events = append(out.Events, dto.EventResponse{
			Type:       e.Type,
			Version:    e.Version,
			OccurredAt: e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
			Payload:    e.Payload,
			Metadata:   e.Metadata,
		})
	}
	return out
}

// pathUUID parses a uuid path parameter.
func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name + " must be a valid uuid")
	}
	return id, nil
}
