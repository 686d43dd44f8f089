package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"insuranceGateway/internal/assembler"
	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/orders"
)

func (s *Server) writePlan(w http.ResponseWriter, plan model.Plan, err error) {
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": newRequestID(),
		"plan":       plan,
	})
}

type issueRequest struct {
	StrikePrice         string `json:"strikePrice"`
	Amount              string `json:"amount"`
	CollateralRecipient string `json:"collateralRecipient"`
	ClaimRecipient      string `json:"claimRecipient"`
}

func (s *Server) handleIssueInsurance(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.IssueInsurance(ctx, assembler.IssueParams{
		StrikePrice:         req.StrikePrice,
		Amount:              req.Amount,
		CollateralRecipient: req.CollateralRecipient,
		ClaimRecipient:      req.ClaimRecipient,
	})
	s.writePlan(w, plan, err)
}

type orderRequest struct {
	StrikePrice string `json:"strikePrice"`
	Amount      string `json:"amount"`
	Price       string `json:"price,omitempty"`
}

func (r orderRequest) params() assembler.OrderParams {
	return assembler.OrderParams{StrikePrice: r.StrikePrice, Amount: r.Amount, Price: r.Price}
}

func (s *Server) handleCreateInsuranceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.CreateInsuranceOrder(ctx, req.params())
	s.writePlan(w, plan, err)
}

func (s *Server) handleCreateClaimTokenOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.CreateClaimTokenOrder(ctx, req.params())
	s.writePlan(w, plan, err)
}

type fillRequest struct {
	OrderID uint64 `json:"orderId"`
	Amount  string `json:"amount"`
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.FillOrder(ctx, assembler.FillParams{OrderID: req.OrderID, Amount: req.Amount})
	s.writePlan(w, plan, err)
}

type cancelRequest struct {
	OrderID uint64 `json:"orderId"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.CancelOrder(ctx, req.OrderID)
	s.writePlan(w, plan, err)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.DepositCollateral(ctx, req.Amount)
	s.writePlan(w, plan, err)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.WithdrawCollateral(ctx, req.Amount)
	s.writePlan(w, plan, err)
}

type settleRequest struct {
	StrikePrices []string `json:"strikePrices"`
}

func (s *Server) handleSettleInsurance(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.SettleInsurance(ctx, req.StrikePrices)
	s.writePlan(w, plan, err)
}

func (s *Server) handleRedeemInsurance(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.RedeemInsurance(ctx, req.params())
	s.writePlan(w, plan, err)
}

type finalizeRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	plan, err := s.planner.Finalize(ctx, req.Price)
	s.writePlan(w, plan, err)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	limit := uint64(0)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(fault.Validation), "limit must be a non-negative integer", nil)
			return
		}
		limit = parsed
	}

	ctx, cancel := s.context(r)
	defer cancel()
	book, err := orders.Book(ctx, s.orders, limit)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(fault.Validation), "order id must be a positive integer", nil)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	view, err := s.orders.Order(ctx, id)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleOrderBatch resolves a comma-separated id list. Orders that are gone
// are omitted from the response rather than failing the whole batch.
func (s *Server) handleOrderBatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, string(fault.Validation), "ids query parameter is required", nil)
		return
	}

	parts := strings.Split(raw, ",")
	if len(parts) > int(orders.MaxScanLimit) {
		writeError(w, http.StatusBadRequest, string(fault.Validation), "too many ids requested", nil)
		return
	}
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(fault.Validation), "ids must be positive integers", nil)
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := s.context(r)
	defer cancel()
	views := make([]model.OrderView, 0, len(ids))
	for _, id := range ids {
		view, err := s.orders.Order(ctx, id)
		if err != nil {
			if fault.IsKind(err, fault.OrderNotFound) {
				continue
			}
			writeFault(w, err, nil)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views, "requested": len(ids)})
}

func (s *Server) parseAddressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, string(fault.Validation), "invalid address "+strconv.Quote(raw), nil)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	account, ok := s.parseAddressParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	balances, err := s.ledger.Balances(ctx, account)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleStrikeInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	info, found, err := s.ledger.StrikeInfo(ctx, chi.URLParam(r, "strike"))
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no instruments issued at this strike price", nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleStrikeBalances(w http.ResponseWriter, r *http.Request) {
	account, ok := s.parseAddressParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	balances, found, err := s.ledger.StrikeBalances(ctx, chi.URLParam(r, "strike"), account)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no instruments issued at this strike price", nil)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	status, err := s.ledger.PoolStatus(ctx)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	view, err := s.ledger.Contracts(ctx)
	if err != nil {
		writeFault(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type faucetRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if s.faucet == nil {
		writeError(w, http.StatusNotFound, "not_found", "faucet is not enabled on this gateway", nil)
		return
	}
	var req faucetRequest
	if err := readJSON(r, &req); err != nil {
		writeFault(w, err, nil)
		return
	}

	receipt, err := s.faucet.RequestFunds(r.Context(), req.Address)
	if err != nil {
		// An ambiguous submission still carries the hash; the caller can
		// track the transaction on their own.
		if receipt.TxHash != "" {
			writeFault(w, err, receipt)
			return
		}
		writeFault(w, err, nil)
		return
	}
	s.logger.Info("faucet dispensed",
		zap.String("to", receipt.To),
		zap.String("tx", receipt.TxHash),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": newRequestID(),
		"receipt":    receipt,
	})
}
