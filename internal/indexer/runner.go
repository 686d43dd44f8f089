// Package indexer builds the order index incrementally from the
// orderbook's change events. It replaces repeated brute-force scans once a
// deployment's history has been backfilled; the scan stays available as
// the bootstrap path behind the same aggregator interface.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/orders"
	"insuranceGateway/internal/storage/postgres"
)

// RunConfig holds runtime settings for an index run.
type RunConfig struct {
	Orderbook         common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	CallTimeout       time.Duration
}

// ChainSource is the log read surface the runner needs.
type ChainSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Sink receives index mutations in event order.
type Sink interface {
	UpsertOrders(ctx context.Context, rows []postgres.Row) error
	SetRemaining(ctx context.Context, id uint64, remaining string, block uint64) error
	MarkCancelled(ctx context.Context, id uint64, block uint64) error
}

// Runner streams order events from the chain into the sink.
type Runner struct {
	cfg        RunConfig
	chain      ChainSource
	book       orders.OrderbookReader
	pool       orders.PoolReader
	sink       Sink
	logger     *zap.Logger
	checkpoint *CheckpointStore
	seen       map[string]struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chain ChainSource, book orders.OrderbookReader, pool orders.PoolReader, sink Sink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Runner{
		cfg:        cfg,
		chain:      chain,
		book:       book,
		pool:       pool,
		sink:       sink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		seen:       make(map[string]struct{}),
	}
}

// Run executes the indexing loop over the configured block range.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Orderbook == (common.Address{}) {
		return fmt.Errorf("orderbook address is required")
	}

	topics, err := EventTopics()
	if err != nil {
		return fmt.Errorf("event topics: %w", err)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("index up to date", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		applied := 0
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			if err := r.apply(ctx, log); err != nil {
				// An undecodable log means the deployed program emits a
				// shape this version does not recognize; continuing would
				// corrupt the index.
				if fault.IsKind(err, fault.UnsupportedProgramVersion) {
					return err
				}
				return fmt.Errorf("apply event at block %d: %w", log.BlockNumber, err)
			}
			applied++
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("events", applied),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

// apply folds one event into the sink, preserving log order.
func (r *Runner) apply(ctx context.Context, log types.Log) error {
	event, err := DecodeOrderEvent(log)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case OrderCreated:
		row := postgres.Row{
			ID:          e.ID,
			Maker:       e.Maker.Hex(),
			StrikePrice: e.StrikePrice.String(),
			Amount:      e.Amount.String(),
			Price:       e.Price.String(),
			ClaimSide:   e.ClaimSide,
			Block:       e.Block,
		}
		r.enrich(ctx, &row, e)
		return r.sink.UpsertOrders(ctx, []postgres.Row{row})

	case OrderFilled:
		return r.sink.SetRemaining(ctx, e.ID, e.Remaining.String(), e.Block)

	case OrderCancelled:
		return r.sink.MarkCancelled(ctx, e.ID, e.Block)

	default:
		return fault.New(fault.Internal, "unhandled event type %T", event)
	}
}

// enrich joins the current fillability flag and strike token pair onto a
// freshly created order. Both are best-effort: a miss leaves the zero
// value and the next index pass corrects it.
func (r *Runner) enrich(ctx context.Context, row *postgres.Row, e OrderCreated) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	if r.book != nil {
		fillable, err := r.book.IsOrderFillable(cctx, e.ID)
		if err != nil {
			r.logger.Debug("fillability read failed", zap.Uint64("order_id", e.ID), zap.Error(err))
		} else {
			row.Fillable = fillable
		}
	}
	if r.pool != nil {
		collateral, claim, err := r.pool.InsuranceTokens(cctx, e.StrikePrice)
		if err != nil {
			r.logger.Debug("token pair read failed", zap.String("strike", e.StrikePrice.String()), zap.Error(err))
		} else {
			row.CollateralToken = collateral.Hex()
			row.ClaimToken = claim.Hex()
		}
	}
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.Orderbook}, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
