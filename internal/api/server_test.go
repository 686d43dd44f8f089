package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"insuranceGateway/internal/assembler"
	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/orders"
)

type fakePlanner struct {
	plan model.Plan
	err  error

	lastIssue assembler.IssueParams
	lastFill  assembler.FillParams
}

func (f *fakePlanner) IssueInsurance(_ context.Context, p assembler.IssueParams) (model.Plan, error) {
	f.lastIssue = p
	return f.plan, f.err
}

func (f *fakePlanner) CreateInsuranceOrder(context.Context, assembler.OrderParams) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) CreateClaimTokenOrder(context.Context, assembler.OrderParams) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) FillOrder(_ context.Context, p assembler.FillParams) (model.Plan, error) {
	f.lastFill = p
	return f.plan, f.err
}

func (f *fakePlanner) CancelOrder(context.Context, uint64) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) DepositCollateral(context.Context, string) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) WithdrawCollateral(context.Context, string) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) SettleInsurance(context.Context, []string) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) RedeemInsurance(context.Context, assembler.OrderParams) (model.Plan, error) {
	return f.plan, f.err
}

func (f *fakePlanner) Finalize(context.Context, string) (model.Plan, error) {
	return f.plan, f.err
}

type fakeOrders struct {
	views     map[uint64]model.OrderView
	lastLimit uint64
	err       error
}

func (f *fakeOrders) OpenOrders(_ context.Context, limit uint64) ([]model.OrderView, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.OrderView, 0, len(f.views))
	for id := uint64(1); id <= limit; id++ {
		if v, ok := f.views[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeOrders) Order(_ context.Context, id uint64) (model.OrderView, error) {
	if f.err != nil {
		return model.OrderView{}, f.err
	}
	v, ok := f.views[id]
	if !ok {
		return model.OrderView{}, fault.New(fault.OrderNotFound, "order %d does not exist", id)
	}
	return v, nil
}

type fakeLedger struct {
	balances model.Balances
	status   model.PoolStatus
	err      error
}

func (f *fakeLedger) Balances(context.Context, common.Address) (model.Balances, error) {
	return f.balances, f.err
}

func (f *fakeLedger) StrikeInfo(context.Context, string) (model.StrikeInfo, bool, error) {
	return model.StrikeInfo{}, false, f.err
}

func (f *fakeLedger) StrikeBalances(context.Context, string, common.Address) (model.StrikeBalances, bool, error) {
	return model.StrikeBalances{}, false, f.err
}

func (f *fakeLedger) PoolStatus(context.Context) (model.PoolStatus, error) {
	return f.status, f.err
}

func (f *fakeLedger) Contracts(context.Context) (ContractsView, error) {
	return ContractsView{Pool: "0xpool"}, f.err
}

type fakeFaucet struct {
	receipt model.FaucetReceipt
	err     error
}

func (f *fakeFaucet) RequestFunds(context.Context, string) (model.FaucetReceipt, error) {
	return f.receipt, f.err
}

func testServer(planner Planner, source OrderSource, ledger LedgerReader, faucet Dispenser) *Server {
	if planner == nil {
		planner = &fakePlanner{}
	}
	if source == nil {
		source = &fakeOrders{}
	}
	if ledger == nil {
		ledger = &fakeLedger{}
	}
	return NewServer(planner, source, ledger, faucet, NewMetrics(), nil, 0)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestIssueInsurancePlanEncodesBigIntsAsStrings(t *testing.T) {
	planner := &fakePlanner{plan: model.Plan{
		Preparatory: []model.TxDescriptor{{To: "0xToken", Data: "0xdead", Value: "0x0"}},
		Transaction: model.TxDescriptor{To: "0xPool", Data: "0xbeef", Value: "0x0"},
		GasLimit:    5_000_000,
		Payment:     model.NewBigInt(big.NewInt(20_000_000)),
	}}
	s := testServer(planner, nil, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/tx/issue-insurance",
		`{"strikePrice":"20000","amount":"0.001","collateralRecipient":"0x1111111111111111111111111111111111111111","claimRecipient":"0x2222222222222222222222222222222222222222"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if _, ok := body["request_id"]; !ok {
		t.Fatalf("missing request_id: %v", body)
	}
	plan := body["plan"].(map[string]any)
	if got := plan["payment"]; got != "20000000" {
		t.Fatalf("payment = %v (%T), want the string \"20000000\"", got, got)
	}
	if planner.lastIssue.Amount != "0.001" {
		t.Fatalf("amount not forwarded: %+v", planner.lastIssue)
	}
}

func TestFaultKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		kind fault.Kind
		want int
	}{
		{fault.Validation, http.StatusBadRequest},
		{fault.OrderNotFound, http.StatusNotFound},
		{fault.OrderNotFillable, http.StatusConflict},
		{fault.InsufficientPrerequisite, http.StatusConflict},
		{fault.RateLimited, http.StatusTooManyRequests},
		{fault.Connection, http.StatusBadGateway},
		{fault.UnsupportedProgramVersion, http.StatusBadGateway},
		{fault.Timeout, http.StatusGatewayTimeout},
		{fault.AmbiguousSubmission, http.StatusGatewayTimeout},
		{fault.Internal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		planner := &fakePlanner{err: fault.New(tc.kind, "boom")}
		s := testServer(planner, nil, nil, nil)
		rec := do(t, s, http.MethodPost, "/api/tx/fill-order", `{"orderId":1,"amount":"1"}`)
		if rec.Code != tc.want {
			t.Fatalf("kind %s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
		body := decode(t, rec)
		errObj := body["error"].(map[string]any)
		if errObj["code"] != string(tc.kind) {
			t.Fatalf("kind %s: code = %v", tc.kind, errObj["code"])
		}
	}
}

func TestOrdersAppliesDefaultLimit(t *testing.T) {
	source := &fakeOrders{views: map[uint64]model.OrderView{
		1: {ID: 1, StrikePrice: model.NewBigInt(big.NewInt(1)), Amount: model.NewBigInt(big.NewInt(5))},
	}}
	s := testServer(nil, source, nil, nil)

	rec := do(t, s, http.MethodGet, "/api/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if source.lastLimit != orders.DefaultScanLimit {
		t.Fatalf("limit = %d, want default %d", source.lastLimit, orders.DefaultScanLimit)
	}
	body := decode(t, rec)
	if body["totalOrders"] != float64(1) {
		t.Fatalf("totalOrders = %v", body["totalOrders"])
	}
}

func TestOrdersRejectsBadLimit(t *testing.T) {
	s := testServer(nil, nil, nil, nil)
	rec := do(t, s, http.MethodGet, "/api/orders?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSingleOrderNotFound(t *testing.T) {
	s := testServer(nil, &fakeOrders{views: map[uint64]model.OrderView{}}, nil, nil)
	rec := do(t, s, http.MethodGet, "/api/orders/42", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOrderBatchSkipsMissing(t *testing.T) {
	source := &fakeOrders{views: map[uint64]model.OrderView{
		1: {ID: 1},
		3: {ID: 3},
	}}
	s := testServer(nil, source, nil, nil)

	rec := do(t, s, http.MethodGet, "/api/orders/batch?ids=1,2,3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	got := body["orders"].([]any)
	if len(got) != 2 {
		t.Fatalf("returned %d orders, want 2: %v", len(got), got)
	}
	if body["requested"] != float64(3) {
		t.Fatalf("requested = %v", body["requested"])
	}
}

func TestBalancesRejectsBadAddress(t *testing.T) {
	s := testServer(nil, nil, nil, nil)
	rec := do(t, s, http.MethodGet, "/api/balances/zzz", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStrikeInfoUnknownStrikeIs404(t *testing.T) {
	s := testServer(nil, nil, &fakeLedger{}, nil)
	rec := do(t, s, http.MethodGet, "/api/strikes/20000", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFaucetDisabledIs404(t *testing.T) {
	s := testServer(nil, nil, nil, nil)
	rec := do(t, s, http.MethodPost, "/api/faucet", `{"address":"0x1111111111111111111111111111111111111111"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFaucetRateLimitedIs429(t *testing.T) {
	s := testServer(nil, nil, nil, &fakeFaucet{err: fault.New(fault.RateLimited, "slow down")})
	rec := do(t, s, http.MethodPost, "/api/faucet", `{"address":"0x1111111111111111111111111111111111111111"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFaucetAmbiguousSubmissionCarriesHash(t *testing.T) {
	s := testServer(nil, nil, nil, &fakeFaucet{
		receipt: model.FaucetReceipt{TxHash: "0xabc"},
		err:     fault.New(fault.AmbiguousSubmission, "confirmation timeout"),
	})
	rec := do(t, s, http.MethodPost, "/api/faucet", `{"address":"0x1111111111111111111111111111111111111111"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	if details["txHash"] != "0xabc" {
		t.Fatalf("details = %v", details)
	}
}

func TestHealth(t *testing.T) {
	s := testServer(nil, nil, nil, nil)
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	s := testServer(nil, nil, nil, nil)
	do(t, s, http.MethodGet, "/health", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gateway_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}
