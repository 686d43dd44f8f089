// Package orders reconstructs the open-order view. The orderbook program
// offers no order count or index, so the bootstrap path is a best-effort
// scan over the dense id space; an incrementally built index (fed by the
// order-event indexer) can serve the same interface.
package orders

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/units"
)

const (
	// DefaultScanLimit bounds a scan when the caller supplies none.
	DefaultScanLimit uint64 = 100
	// MaxScanLimit caps caller-supplied bounds.
	MaxScanLimit uint64 = 1000

	instrumentDecimals uint8 = 18
)

// Source produces the open orders up to a scan bound. Results are bounded
// by limit and may omit orders with higher identifiers.
type Source interface {
	OpenOrders(ctx context.Context, limit uint64) ([]model.OrderView, error)
}

// OrderbookReader is the orderbook read surface the scanner needs.
type OrderbookReader interface {
	GetOrder(ctx context.Context, id uint64) (model.Order, error)
	IsOrderFillable(ctx context.Context, id uint64) (bool, error)
}

// PoolReader resolves strike token pairs.
type PoolReader interface {
	InsuranceTokens(ctx context.Context, strikePrice *big.Int) (common.Address, common.Address, error)
}

// Scanner is the brute-force Source: it reads ids 1..limit directly from
// the program, skipping dead and unreadable records.
type Scanner struct {
	book        OrderbookReader
	pool        PoolReader
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewScanner builds a scanner. callTimeout bounds each per-id read so one
// unreachable record cannot stall the scan beyond its own budget.
func NewScanner(book OrderbookReader, pool PoolReader, callTimeout time.Duration, logger *zap.Logger) *Scanner {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{book: book, pool: pool, callTimeout: callTimeout, logger: logger}
}

// OpenOrders scans ids 1..limit in ascending order. Records whose remaining
// amount is zero are dead; records that cannot be read are skipped. When
// every single read fails on transport, the scan as a whole failed and an
// error is returned instead of a misleading empty book.
func (s *Scanner) OpenOrders(ctx context.Context, limit uint64) ([]model.OrderView, error) {
	limit = ClampLimit(limit)

	views := make([]model.OrderView, 0)
	pairs := make(map[string]model.TokenPair)
	transportFailures := uint64(0)

	for id := uint64(1); id <= limit; id++ {
		select {
		case <-ctx.Done():
			return nil, fault.Wrap(fault.Timeout, ctx.Err(), "order scan interrupted at id %d", id)
		default:
		}

		order, err := s.readOrder(ctx, id)
		if err != nil {
			// A revert is a missing record, not a transport failure.
			err = contracts.ClassifyOrderReadError(err, id)
			kind := fault.KindOf(err)
			if kind == fault.Connection || kind == fault.Timeout {
				transportFailures++
			}
			s.logger.Debug("order read skipped", zap.Uint64("order_id", id), zap.Error(err))
			continue
		}
		if !order.Live() {
			continue
		}

		fillable, err := s.readFillable(ctx, id)
		if err != nil {
			s.logger.Debug("fillability read skipped", zap.Uint64("order_id", id), zap.Error(err))
			continue
		}

		pair := s.tokenPair(ctx, order.StrikePrice, pairs)
		views = append(views, View(order, fillable, pair))
	}

	if limit > 0 && transportFailures == limit {
		return nil, fault.New(fault.Connection, "order scan failed: all %d reads unreachable", limit)
	}
	return views, nil
}

func (s *Scanner) readOrder(ctx context.Context, id uint64) (model.Order, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.book.GetOrder(cctx, id)
}

func (s *Scanner) readFillable(ctx context.Context, id uint64) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.book.IsOrderFillable(cctx, id)
}

func (s *Scanner) tokenPair(ctx context.Context, strike *big.Int, cache map[string]model.TokenPair) model.TokenPair {
	key := strike.String()
	if pair, ok := cache[key]; ok {
		return pair
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	collateral, claim, err := s.pool.InsuranceTokens(cctx, strike)
	if err != nil {
		s.logger.Debug("token pair read failed", zap.String("strike", key), zap.Error(err))
		return model.TokenPair{}
	}

	pair := model.TokenPair{
		CollateralToken: collateral.Hex(),
		ClaimToken:      claim.Hex(),
	}
	cache[key] = pair
	return pair
}

// Order reads a single order directly from the program. Dead and missing
// records both surface as OrderNotFound.
func (s *Scanner) Order(ctx context.Context, id uint64) (model.OrderView, error) {
	if id == 0 {
		return model.OrderView{}, fault.New(fault.Validation, "order id must be positive")
	}
	order, err := s.readOrder(ctx, id)
	if err != nil {
		return model.OrderView{}, contracts.ClassifyOrderReadError(err, id)
	}
	if !order.Live() {
		return model.OrderView{}, fault.New(fault.OrderNotFound, "order %d is no longer open", id)
	}

	fillable, err := s.readFillable(ctx, id)
	if err != nil {
		return model.OrderView{}, err
	}
	pair := s.tokenPair(ctx, order.StrikePrice, make(map[string]model.TokenPair))
	return View(order, fillable, pair), nil
}

// ClampLimit applies the default and maximum scan bounds.
func ClampLimit(limit uint64) uint64 {
	if limit == 0 {
		return DefaultScanLimit
	}
	if limit > MaxScanLimit {
		return MaxScanLimit
	}
	return limit
}

// View joins a raw order with its fillability and strike token pair.
func View(order model.Order, fillable bool, pair model.TokenPair) model.OrderView {
	return model.OrderView{
		ID:                   order.ID,
		Maker:                order.Maker.Hex(),
		StrikePrice:          model.NewBigInt(order.StrikePrice),
		StrikePriceFormatted: units.FromFixedPoint(order.StrikePrice, instrumentDecimals),
		Amount:               model.NewBigInt(order.Amount),
		AmountFormatted:      units.FromFixedPoint(order.Amount, instrumentDecimals),
		Price:                model.NewBigInt(order.Price),
		PriceFormatted:       units.FromFixedPoint(order.Price, instrumentDecimals),
		ClaimSide:            order.ClaimSide,
		Fillable:             fillable,
		Tokens:               pair,
	}
}

// Group buckets views by strike price, preserving first-seen strike order,
// with claim-side and collateral-side sub-lists.
func Group(views []model.OrderView) []model.StrikeGroup {
	groups := make([]model.StrikeGroup, 0)
	index := make(map[string]int)

	for _, v := range views {
		key := v.StrikePrice.String()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, model.StrikeGroup{
				StrikePrice:          v.StrikePrice,
				StrikePriceFormatted: v.StrikePriceFormatted,
				Tokens:               v.Tokens,
				ClaimTokenOrders:     []model.OrderView{},
				InsuranceOrders:      []model.OrderView{},
			})
		}
		if v.ClaimSide {
			groups[i].ClaimTokenOrders = append(groups[i].ClaimTokenOrders, v)
		} else {
			groups[i].InsuranceOrders = append(groups[i].InsuranceOrders, v)
		}
	}

	return groups
}

// Book aggregates a source's output into the full presentation view.
func Book(ctx context.Context, source Source, limit uint64) (model.OrderBook, error) {
	limit = ClampLimit(limit)
	views, err := source.OpenOrders(ctx, limit)
	if err != nil {
		return model.OrderBook{}, err
	}
	return model.OrderBook{
		TotalOrders:         len(views),
		ScanLimit:           limit,
		OrdersByStrikePrice: Group(views),
		AllOrders:           views,
	}, nil
}
