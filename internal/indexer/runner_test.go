package indexer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/storage/postgres"
)

func createdLog(t *testing.T, id uint64, maker common.Address, strike, amount, price *big.Int, claimSide bool, block uint64) types.Log {
	t.Helper()
	parsed, err := contracts.OrderbookABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	event := parsed.Events["OrderCreated"]
	data, err := event.Inputs.NonIndexed().Pack(strike, amount, price, claimSide)
	if err != nil {
		t.Fatalf("pack event data: %v", err)
	}
	return types.Log{
		Address: common.HexToAddress("0xbb"),
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(id)),
			common.BytesToHash(common.LeftPadBytes(maker.Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0x01"),
		Index:       uint(id),
	}
}

func filledLog(t *testing.T, id uint64, taker common.Address, amount, remaining *big.Int, block uint64) types.Log {
	t.Helper()
	parsed, _ := contracts.OrderbookABI()
	event := parsed.Events["OrderFilled"]
	data, err := event.Inputs.NonIndexed().Pack(amount, remaining)
	if err != nil {
		t.Fatalf("pack event data: %v", err)
	}
	return types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(id)),
			common.BytesToHash(common.LeftPadBytes(taker.Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0x02"),
		Index:       uint(id),
	}
}

func cancelledLog(t *testing.T, id uint64, block uint64) types.Log {
	t.Helper()
	parsed, _ := contracts.OrderbookABI()
	event := parsed.Events["OrderCancelled"]
	return types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(id)),
		},
		BlockNumber: block,
		TxHash:      common.HexToHash("0x03"),
		Index:       uint(id),
	}
}

func TestDecodeOrderEvents(t *testing.T) {
	maker := common.HexToAddress("0x7000000000000000000000000000000000000001")
	strike := big.NewInt(100)
	amount := big.NewInt(42)
	price := big.NewInt(7)

	event, err := DecodeOrderEvent(createdLog(t, 9, maker, strike, amount, price, true, 12))
	if err != nil {
		t.Fatalf("decode created: %v", err)
	}
	created, ok := event.(OrderCreated)
	if !ok {
		t.Fatalf("expected OrderCreated, got %T", event)
	}
	if created.ID != 9 || created.Maker != maker || !created.ClaimSide || created.Block != 12 {
		t.Fatalf("created mismatch: %+v", created)
	}
	if created.Amount.Cmp(amount) != 0 || created.Price.Cmp(price) != 0 || created.StrikePrice.Cmp(strike) != 0 {
		t.Fatalf("created values mismatch: %+v", created)
	}

	event, err = DecodeOrderEvent(filledLog(t, 9, maker, big.NewInt(40), big.NewInt(2), 13))
	if err != nil {
		t.Fatalf("decode filled: %v", err)
	}
	filled := event.(OrderFilled)
	if filled.ID != 9 || filled.Remaining.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("filled mismatch: %+v", filled)
	}

	event, err = DecodeOrderEvent(cancelledLog(t, 9, 14))
	if err != nil {
		t.Fatalf("decode cancelled: %v", err)
	}
	if cancelled := event.(OrderCancelled); cancelled.ID != 9 || cancelled.Block != 14 {
		t.Fatalf("cancelled mismatch: %+v", cancelled)
	}
}

func TestDecodeUnknownTopicFails(t *testing.T) {
	_, err := DecodeOrderEvent(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	if err == nil {
		t.Fatalf("expected error for unknown topic")
	}
}

type fakeChain struct {
	latest uint64
	logs   []types.Log
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	out := make([]types.Log, 0)
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type sinkOp struct {
	kind      string
	id        uint64
	remaining string
}

type fakeSink struct {
	ops []sinkOp
}

func (f *fakeSink) UpsertOrders(_ context.Context, rows []postgres.Row) error {
	for _, row := range rows {
		f.ops = append(f.ops, sinkOp{kind: "upsert", id: row.ID, remaining: row.Amount})
	}
	return nil
}

func (f *fakeSink) SetRemaining(_ context.Context, id uint64, remaining string, _ uint64) error {
	f.ops = append(f.ops, sinkOp{kind: "fill", id: id, remaining: remaining})
	return nil
}

func (f *fakeSink) MarkCancelled(_ context.Context, id uint64, _ uint64) error {
	f.ops = append(f.ops, sinkOp{kind: "cancel", id: id})
	return nil
}

func TestRunnerAppliesEventsInOrder(t *testing.T) {
	maker := common.HexToAddress("0x7000000000000000000000000000000000000001")
	chain := &fakeChain{
		latest: 20,
		logs: []types.Log{
			createdLog(t, 1, maker, big.NewInt(100), big.NewInt(10), big.NewInt(1), false, 5),
			createdLog(t, 2, maker, big.NewInt(100), big.NewInt(10), big.NewInt(1), true, 6),
			filledLog(t, 1, maker, big.NewInt(10), big.NewInt(0), 7),
			cancelledLog(t, 2, 8),
		},
	}
	sink := &fakeSink{}

	runner := NewRunner(RunConfig{
		Orderbook: common.HexToAddress("0xbb"),
		FromBlock: 1,
		BatchSize: 100,
	}, chain, nil, nil, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []sinkOp{
		{kind: "upsert", id: 1, remaining: "10"},
		{kind: "upsert", id: 2, remaining: "10"},
		{kind: "fill", id: 1, remaining: "0"},
		{kind: "cancel", id: 2},
	}
	if len(sink.ops) != len(want) {
		t.Fatalf("got %d ops, want %d: %+v", len(sink.ops), len(want), sink.ops)
	}
	for i, op := range sink.ops {
		if op != want[i] {
			t.Fatalf("op %d = %+v, want %+v", i, op, want[i])
		}
	}
}

func TestRunnerSkipsDuplicates(t *testing.T) {
	maker := common.HexToAddress("0x7000000000000000000000000000000000000001")
	log := createdLog(t, 1, maker, big.NewInt(100), big.NewInt(10), big.NewInt(1), false, 5)
	chain := &fakeChain{latest: 10, logs: []types.Log{log, log}}
	sink := &fakeSink{}

	runner := NewRunner(RunConfig{
		Orderbook: common.HexToAddress("0xbb"),
		FromBlock: 1,
		BatchSize: 100,
	}, chain, nil, nil, sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.ops) != 1 {
		t.Fatalf("duplicate not skipped: %+v", sink.ops)
	}
}
