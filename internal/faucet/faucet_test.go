package faucet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/fault"
)

var testToken = common.HexToAddress("0x00000000000000000000000000000000000000aa")

// fakeBackend emulates the node surface the faucet talks to. Mints credit
// an in-memory balance map at submission time and receipts appear
// immediately unless neverMine is set.
type fakeBackend struct {
	mu        sync.Mutex
	nonce     uint64
	balances  map[common.Address]*big.Int
	receipts  map[common.Hash]*types.Receipt
	sent      []uint64
	neverMine bool
	sendErr   error
}

func newFakeBackend(startNonce uint64) *fakeBackend {
	return &fakeBackend{
		nonce:    startNonce,
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (b *fakeBackend) balance(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := contracts.TokenABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != "balanceOf" {
		return nil, ethereum.NotFound
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(b.balance(args[0].(common.Address)))
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(31337), nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}

	parsed, err := contracts.TokenABI()
	if err != nil {
		return err
	}
	data := tx.Data()
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return err
	}
	if method.Name != "mint" {
		return ethereum.NotFound
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return err
	}
	to := args[0].(common.Address)
	amount := args[1].(*big.Int)

	prev, ok := b.balances[to]
	if !ok {
		prev = new(big.Int)
	}
	b.balances[to] = new(big.Int).Add(prev, amount)
	b.sent = append(b.sent, tx.Nonce())
	b.nonce = tx.Nonce() + 1

	if !b.neverMine {
		b.receipts[tx.Hash()] = &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(int64(len(b.sent)) + 100),
		}
	}
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func testFaucet(t *testing.T, backend Backend, cfg Config) *Faucet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if cfg.Token == (common.Address{}) {
		cfg.Token = testToken
	}
	if cfg.Amount == nil {
		cfg.Amount = big.NewInt(5_000_000)
	}
	if cfg.BaseDecimals == 0 {
		cfg.BaseDecimals = 6
	}
	return New(cfg, backend, key, nil)
}

func TestConcurrentRequestsGetDistinctNonces(t *testing.T) {
	backend := newFakeBackend(7)
	f := testFaucet(t, backend, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	recipients := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}
	receipts := make([]struct {
		txHash string
		err    error
	}, len(recipients))

	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r string) {
			defer wg.Done()
			rec, err := f.RequestFunds(ctx, r)
			receipts[i].txHash = rec.TxHash
			receipts[i].err = err
			if err != nil {
				return
			}
			if rec.BlockNumber == 0 {
				t.Errorf("recipient %s: receipt not confirmed", r)
			}
			if got := rec.Received.String(); got != "5000000" {
				t.Errorf("recipient %s: received %s, want 5000000", r, got)
			}
			if rec.ReceivedFormatted != "5" {
				t.Errorf("recipient %s: formatted %s, want 5", r, rec.ReceivedFormatted)
			}
		}(i, r)
	}
	wg.Wait()

	for i := range receipts {
		if receipts[i].err != nil {
			t.Fatalf("request %d: %v", i, receipts[i].err)
		}
	}

	backend.mu.Lock()
	sent := append([]uint64(nil), backend.sent...)
	backend.mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("sent %d transactions, want 2", len(sent))
	}
	if sent[0] == sent[1] {
		t.Fatalf("nonce reused: both transactions carried %d", sent[0])
	}
	for _, n := range sent {
		if n != 7 && n != 8 {
			t.Fatalf("unexpected nonce %d", n)
		}
	}
}

func TestRequestFundsRejectsBadAddress(t *testing.T) {
	f := testFaucet(t, newFakeBackend(0), Config{})

	_, err := f.RequestFunds(context.Background(), "not-an-address")
	if fault.KindOf(err) != fault.Validation {
		t.Fatalf("kind = %v, want validation", fault.KindOf(err))
	}
}

func TestRequestFundsRateLimitsRecipient(t *testing.T) {
	backend := newFakeBackend(0)
	f := testFaucet(t, backend, Config{
		PollInterval:  5 * time.Millisecond,
		RatePerSecond: 0.001,
		RateBurst:     1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	recipient := "0x3333333333333333333333333333333333333333"
	if _, err := f.RequestFunds(ctx, recipient); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := f.RequestFunds(ctx, recipient)
	if fault.KindOf(err) != fault.RateLimited {
		t.Fatalf("kind = %v, want rate_limited", fault.KindOf(err))
	}
}

func TestConfirmationTimeoutReturnsHash(t *testing.T) {
	backend := newFakeBackend(0)
	backend.neverMine = true
	f := testFaucet(t, backend, Config{
		ConfirmTimeout: 30 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	rec, err := f.RequestFunds(ctx, "0x4444444444444444444444444444444444444444")
	if fault.KindOf(err) != fault.AmbiguousSubmission {
		t.Fatalf("kind = %v, want ambiguous_submission", fault.KindOf(err))
	}
	if rec.TxHash == "" || !strings.HasPrefix(rec.TxHash, "0x") {
		t.Fatalf("receipt carries no submission hash: %+v", rec)
	}
	if rec.Received != nil {
		t.Fatalf("unconfirmed mint reported a received amount: %s", rec.Received)
	}
}

func TestSubmissionFailureResyncsNonce(t *testing.T) {
	backend := newFakeBackend(3)
	backend.sendErr = errors.New("connection refused")
	f := testFaucet(t, backend, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := f.RequestFunds(ctx, "0x5555555555555555555555555555555555555555")
	if fault.KindOf(err) != fault.Connection {
		t.Fatalf("kind = %v, want connection", fault.KindOf(err))
	}

	backend.mu.Lock()
	backend.sendErr = nil
	backend.mu.Unlock()

	rec, err := f.RequestFunds(ctx, "0x5555555555555555555555555555555555555555")
	if err != nil {
		t.Fatalf("retry after resync: %v", err)
	}
	if rec.BlockNumber == 0 {
		t.Fatalf("retry not confirmed")
	}
	backend.mu.Lock()
	sent := append([]uint64(nil), backend.sent...)
	backend.mu.Unlock()
	if len(sent) != 1 || sent[0] != 3 {
		t.Fatalf("sent nonces %v, want [3]", sent)
	}
}
