// Package postgres persists the incrementally built order index. It serves
// the same read interface as the brute-force chain scan, so the aggregator
// can switch between them without callers noticing.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/orders"
)

// Row is one indexed order record.
type Row struct {
	ID              uint64
	Maker           string
	StrikePrice     string
	Amount          string
	Price           string
	ClaimSide       bool
	Fillable        bool
	CollateralToken string
	ClaimToken      string
	Block           uint64
}

// Store provides Postgres persistence for the order index.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the index table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS insurance_orders (
			order_id BIGINT PRIMARY KEY,
			maker TEXT NOT NULL,
			strike_price NUMERIC(78,0) NOT NULL,
			amount NUMERIC(78,0) NOT NULL,
			price NUMERIC(78,0) NOT NULL,
			claim_side BOOLEAN NOT NULL,
			fillable BOOLEAN NOT NULL DEFAULT false,
			collateral_token TEXT NOT NULL DEFAULT '',
			claim_token TEXT NOT NULL DEFAULT '',
			last_block BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertOrders inserts or updates order rows in one batch. A replayed row
// whose block is not newer than last_block cannot roll the remaining amount
// back to an earlier value.
func (s *Store) UpsertOrders(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO insurance_orders (
				order_id, maker, strike_price, amount, price, claim_side,
				fillable, collateral_token, claim_token, last_block, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now())
			ON CONFLICT (order_id)
			DO UPDATE SET
				amount = CASE
					WHEN EXCLUDED.last_block > insurance_orders.last_block
					THEN EXCLUDED.amount
					ELSE insurance_orders.amount
				END,
				fillable = EXCLUDED.fillable,
				collateral_token = EXCLUDED.collateral_token,
				claim_token = EXCLUDED.claim_token,
				last_block = GREATEST(insurance_orders.last_block, EXCLUDED.last_block),
				updated_at = now()
		`,
			int64(row.ID),
			row.Maker,
			row.StrikePrice,
			row.Amount,
			row.Price,
			row.ClaimSide,
			row.Fillable,
			row.CollateralToken,
			row.ClaimToken,
			int64(row.Block),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert orders: %w", err)
		}
	}
	return nil
}

// SetRemaining records a fill's remaining amount. A remaining amount of
// zero retires the order, matching the on-chain tombstone convention.
func (s *Store) SetRemaining(ctx context.Context, id uint64, remaining string, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE insurance_orders
		SET amount = $2, last_block = GREATEST(last_block, $3), updated_at = now()
		WHERE order_id = $1
	`, int64(id), remaining, int64(block))
	if err != nil {
		return fmt.Errorf("set remaining for order %d: %w", id, err)
	}
	return nil
}

// MarkCancelled retires an order.
func (s *Store) MarkCancelled(ctx context.Context, id uint64, block uint64) error {
	return s.SetRemaining(ctx, id, "0", block)
}

// OpenOrders implements orders.Source over the index.
func (s *Store) OpenOrders(ctx context.Context, limit uint64) ([]model.OrderView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, maker, strike_price::text, amount::text, price::text,
		       claim_side, fillable, collateral_token, claim_token
		FROM insurance_orders
		WHERE amount > 0 AND order_id <= $1
		ORDER BY order_id ASC
	`, int64(limit))
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "query order index")
	}
	defer rows.Close()

	views := make([]model.OrderView, 0)
	for rows.Next() {
		var (
			id                           int64
			maker, strike, amount, price string
			claimSide, fillable          bool
			collateralToken, claimToken  string
		)
		if err := rows.Scan(&id, &maker, &strike, &amount, &price, &claimSide, &fillable, &collateralToken, &claimToken); err != nil {
			return nil, fault.Wrap(fault.Internal, err, "scan order row")
		}

		order := model.Order{
			ID:          uint64(id),
			StrikePrice: mustBig(strike),
			Amount:      mustBig(amount),
			Price:       mustBig(price),
			ClaimSide:   claimSide,
		}
		view := orders.View(order, fillable, model.TokenPair{
			CollateralToken: collateralToken,
			ClaimToken:      claimToken,
		})
		view.Maker = maker
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.Connection, err, "iterate order index")
	}
	return views, nil
}

// Order reads a single indexed order. Retired and unknown orders both
// surface as OrderNotFound.
func (s *Store) Order(ctx context.Context, id uint64) (model.OrderView, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT order_id, maker, strike_price::text, amount::text, price::text,
		       claim_side, fillable, collateral_token, claim_token
		FROM insurance_orders
		WHERE order_id = $1 AND amount > 0
	`, int64(id))

	var (
		rowID                        int64
		maker, strike, amount, price string
		claimSide, fillable          bool
		collateralToken, claimToken  string
	)
	err := row.Scan(&rowID, &maker, &strike, &amount, &price, &claimSide, &fillable, &collateralToken, &claimToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.OrderView{}, fault.New(fault.OrderNotFound, "order %d is not in the index", id)
	}
	if err != nil {
		return model.OrderView{}, fault.Wrap(fault.Connection, err, "query order %d", id)
	}

	order := model.Order{
		ID:          uint64(rowID),
		StrikePrice: mustBig(strike),
		Amount:      mustBig(amount),
		Price:       mustBig(price),
		ClaimSide:   claimSide,
	}
	view := orders.View(order, fillable, model.TokenPair{
		CollateralToken: collateralToken,
		ClaimToken:      claimToken,
	})
	view.Maker = maker
	return view, nil
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
