// Package api is the HTTP boundary. Handlers validate and decode, delegate
// to the assembler, aggregator, ledger, and faucet, and translate failure
// kinds to status codes. No handler ever holds a key or submits a
// transaction on a client's behalf.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"insuranceGateway/internal/assembler"
	"insuranceGateway/internal/model"
)

// Planner prepares unsigned transaction plans. assembler.Builder satisfies
// it.
type Planner interface {
	IssueInsurance(ctx context.Context, p assembler.IssueParams) (model.Plan, error)
	CreateInsuranceOrder(ctx context.Context, p assembler.OrderParams) (model.Plan, error)
	CreateClaimTokenOrder(ctx context.Context, p assembler.OrderParams) (model.Plan, error)
	FillOrder(ctx context.Context, p assembler.FillParams) (model.Plan, error)
	CancelOrder(ctx context.Context, orderID uint64) (model.Plan, error)
	DepositCollateral(ctx context.Context, amount string) (model.Plan, error)
	WithdrawCollateral(ctx context.Context, amount string) (model.Plan, error)
	SettleInsurance(ctx context.Context, strikePrices []string) (model.Plan, error)
	RedeemInsurance(ctx context.Context, p assembler.OrderParams) (model.Plan, error)
	Finalize(ctx context.Context, price string) (model.Plan, error)
}

// OrderSource serves open-order reads. Both the chain scanner and the
// Postgres index satisfy it.
type OrderSource interface {
	OpenOrders(ctx context.Context, limit uint64) ([]model.OrderView, error)
	Order(ctx context.Context, id uint64) (model.OrderView, error)
}

// LedgerReader serves the read-only program views.
type LedgerReader interface {
	Balances(ctx context.Context, account common.Address) (model.Balances, error)
	StrikeInfo(ctx context.Context, strikePrice string) (model.StrikeInfo, bool, error)
	StrikeBalances(ctx context.Context, strikePrice string, account common.Address) (model.StrikeBalances, bool, error)
	PoolStatus(ctx context.Context) (model.PoolStatus, error)
	Contracts(ctx context.Context) (ContractsView, error)
}

// Dispenser hands out test funds. faucet.Faucet satisfies it.
type Dispenser interface {
	RequestFunds(ctx context.Context, recipient string) (model.FaucetReceipt, error)
}

// Server wires the gateway's HTTP surface.
type Server struct {
	planner        Planner
	orders         OrderSource
	ledger         LedgerReader
	faucet         Dispenser
	metrics        *Metrics
	logger         *zap.Logger
	requestTimeout time.Duration
}

func NewServer(planner Planner, orders OrderSource, ledger LedgerReader, faucet Dispenser, metrics *Metrics, logger *zap.Logger, requestTimeout time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		planner:        planner,
		orders:         orders,
		ledger:         ledger,
		faucet:         faucet,
		metrics:        metrics,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/tx", func(r chi.Router) {
			r.Post("/issue-insurance", s.handleIssueInsurance)
			r.Post("/create-insurance-order", s.handleCreateInsuranceOrder)
			r.Post("/create-claim-token-order", s.handleCreateClaimTokenOrder)
			r.Post("/fill-order", s.handleFillOrder)
			r.Post("/cancel-order", s.handleCancelOrder)
			r.Post("/deposit-collateral", s.handleDepositCollateral)
			r.Post("/withdraw-collateral", s.handleWithdrawCollateral)
			r.Post("/settle-insurance", s.handleSettleInsurance)
			r.Post("/redeem-insurance", s.handleRedeemInsurance)
			r.Post("/finalize", s.handleFinalize)
		})

		r.Get("/orders", s.handleOrders)
		r.Get("/orders/batch", s.handleOrderBatch)
		r.Get("/orders/{id}", s.handleOrder)

		r.Get("/balances/{address}", s.handleBalances)
		r.Get("/strikes/{strike}", s.handleStrikeInfo)
		r.Get("/strikes/{strike}/balances/{address}", s.handleStrikeBalances)
		r.Get("/pool/status", s.handlePoolStatus)
		r.Get("/contracts", s.handleContracts)

		r.Post("/faucet", s.handleFaucet)
	})

	return r
}

func (s *Server) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
