package handler

import (
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	LoanSvc        ports.LoanService
	PoolSvc        ports.PoolService
	RateSvc        ports.RateService
	OrderRouter    ports.OrderRouter
	SpreadMgr      ports.SpreadManager
	EventStore     ports.EventStore
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	accounts := v1.Group("/accounts")
	{
		accounts.POST("", ledgerHandler.OpenAccount)
		accounts.POST("/:id/credit", ledgerHandler.Credit)
		accounts.POST("/:id/debit", ledgerHandler.Debit)
		accounts.POST("/:id/freeze", ledgerHandler.Freeze)
		accounts.POST("/:id/unfreeze", ledgerHandler.Unfreeze)
		accounts.GET("/:id/balances", ledgerHandler.GetBalances)
		accounts.GET("/:id/history", ledgerHandler.GetHistory)
	}
	v1.POST("/transfers", ledgerHandler.Transfer)

	loanHandler := NewLoanHandler(deps.LoanSvc)
	applications := v1.Group("/applications")
	{
		applications.POST("", loanHandler.SubmitApplication)
		applications.POST("/:id/approve", loanHandler.ApproveApplication)
		applications.POST("/:id/reject", loanHandler.RejectApplication)
		applications.POST("/:id/withdraw", loanHandler.WithdrawApplication)
		applications.POST("/:id/originate", loanHandler.OriginateLoan)
	}
	loans := v1.Group("/loans")
	{
		loans.GET("/:id", loanHandler.GetLoan)
		loans.POST("/:id/fund", loanHandler.FundLoan)
		loans.POST("/:id/disburse", loanHandler.DisburseLoan)
		loans.POST("/:id/repayments", loanHandler.RecordRepayment)
		loans.POST("/:id/miss", loanHandler.MissPayment)
		loans.POST("/:id/default", loanHandler.MarkDefaulted)
		loans.POST("/:id/settle", loanHandler.SettleEarly)
	}

	poolHandler := NewPoolHandler(deps.PoolSvc, deps.SpreadMgr)
	pools := v1.Group("/pools")
	{
		pools.POST("", poolHandler.CreatePool)
		pools.GET("/:id", poolHandler.GetPool)
		pools.POST("/:id/liquidity", poolHandler.AddLiquidity)
		pools.POST("/:id/liquidity/remove", poolHandler.RemoveLiquidity)
		pools.POST("/:id/swap", poolHandler.Swap)
		pools.GET("/:id/imbalance", poolHandler.CheckImbalance)
	}

	marketHandler := NewMarketHandler(deps.RateSvc, deps.OrderRouter, deps.SpreadMgr, deps.EventStore)
	rates := v1.Group("/rates")
	{
		rates.GET("/:from/:to", marketHandler.GetRate)
		rates.GET("/:from/:to/convert", marketHandler.Convert)
	}
	orders := v1.Group("/orders")
	{
		orders.POST("", marketHandler.PlaceOrder)
		orders.GET("/:id", marketHandler.GetOrder)
	}
	v1.POST("/market/volatility", marketHandler.ReportPriceMove)

	return r
}
