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

// LoanHandler handles application and loan servicing endpoints.
type LoanHandler struct {
	loanSvc ports.LoanService
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanSvc ports.LoanService) *LoanHandler {
	return &LoanHandler{loanSvc: loanSvc}
}

// SubmitApplication handles POST /api/v1/applications.
func (h *LoanHandler) SubmitApplication(c *gin.Context) {
	var req dto.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	principal, err := dto.ParseDecimal("principal", req.Principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	applicationID, err := h.loanSvc.SubmitApplication(c.Request.Context(), ports.ApplicationRequest{
		BorrowerID: uuid.MustParse(req.BorrowerID),
		Principal:  principal,
		TermMonths: req.TermMonths,
		Purpose:    req.Purpose,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"application_id": applicationID.String()})
}

// ApproveApplication handles POST /api/v1/applications/:id/approve.
func (h *LoanHandler) ApproveApplication(c *gin.Context) {
	applicationID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ApproveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	err = h.loanSvc.ApproveApplication(c.Request.Context(), applicationID, req.InterestRate, req.RiskLevel, req.ApprovedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"application_id": applicationID.String()})
}

// RejectApplication handles POST /api/v1/applications/:id/reject.
func (h *LoanHandler) RejectApplication(c *gin.Context) {
	h.terminal(c, h.loanSvc.RejectApplication)
}

// WithdrawApplication handles POST /api/v1/applications/:id/withdraw.
func (h *LoanHandler) WithdrawApplication(c *gin.Context) {
	h.terminal(c, h.loanSvc.WithdrawApplication)
}

// OriginateLoan handles POST /api/v1/applications/:id/originate.
func (h *LoanHandler) OriginateLoan(c *gin.Context) {
	applicationID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	loanID, err := h.loanSvc.OriginateLoan(c.Request.Context(), applicationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"loan_id": loanID.String()})
}

// FundLoan handles POST /api/v1/loans/:id/fund.
func (h *LoanHandler) FundLoan(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.FundLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.ParseDecimal("amount", req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	investorIDs := make([]uuid.UUID, 0, len(req.InvestorIDs))
	for _, raw := range req.InvestorIDs {
		investorIDs = append(investorIDs, uuid.MustParse(raw))
	}

	if err := h.loanSvc.FundLoan(c.Request.Context(), loanID, investorIDs, amount); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// DisburseLoan handles POST /api/v1/loans/:id/disburse.
func (h *LoanHandler) DisburseLoan(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.loanSvc.DisburseLoan(c.Request.Context(), loanID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// RecordRepayment handles POST /api/v1/loans/:id/repayments.
func (h *LoanHandler) RecordRepayment(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := dto.ParseDecimal("amount", req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.loanSvc.RecordRepayment(c.Request.Context(), loanID, amount); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// MissPayment handles POST /api/v1/loans/:id/miss.
func (h *LoanHandler) MissPayment(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.loanSvc.MissPayment(c.Request.Context(), loanID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// MarkDefaulted handles POST /api/v1/loans/:id/default.
func (h *LoanHandler) MarkDefaulted(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.loanSvc.MarkDefaulted(c.Request.Context(), loanID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// SettleEarly handles POST /api/v1/loans/:id/settle.
func (h *LoanHandler) SettleEarly(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SettleRequest
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

	if err := h.loanSvc.SettleEarly(c.Request.Context(), loanID, amount, req.SettledBy); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"loan_id": loanID.String()})
}

// GetLoan handles GET /api/v1/loans/:id.
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	loan, err := h.loanSvc.GetLoan(c.Request.Context(), loanID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toLoanResponse(loan))
}

func (h *LoanHandler) terminal(c *gin.Context, op func(ctx context.Context, id uuid.UUID, reason string) error) {
	applicationID, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := op(c.Request.Context(), applicationID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"application_id": applicationID.String()})
}

func toLoanResponse(loan *domain.Loan) dto.LoanResponse {
	resp := dto.LoanResponse{
		LoanID:             loan.ID.String(),
		ApplicationID:      loan.ApplicationID.String(),
		BorrowerID:         loan.BorrowerID.String(),
		Principal:          loan.Principal.String(),
		InterestRate:       loan.InterestRate,
		TermMonths:         loan.TermMonths,
		Status:             string(loan.Status),
		OutstandingBalance: loan.OutstandingBalance.String(),
		TotalPrincipalPaid: loan.TotalPrincipalPaid.String(),
		TotalInterestPaid:  loan.TotalInterestPaid.String(),
		PaymentsReceived:   loan.PaymentsReceived,
		MissedPayments:     loan.MissedPayments,
	}
	for _, entry := range loan.Schedule {
		resp.Schedule = append(resp.Schedule, dto.ScheduleEntryResponse{
			PaymentNumber:    entry.PaymentNumber,
			DueDate:          entry.DueDate.Format("2006-01-02"),
			Payment:          entry.Total.String(),
			Principal:        entry.Principal.String(),
			Interest:         entry.Interest.String(),
			RemainingBalance: entry.RemainingBalance.String(),
		})
	}
	return resp
}
