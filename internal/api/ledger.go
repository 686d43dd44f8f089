package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/units"
)

const instrumentDecimals uint8 = 18

// ContractsView lists the deployed program addresses the gateway mediates.
type ContractsView struct {
	BaseToken model.TokenMeta `json:"usdc"`
	Pool      string          `json:"insurancePool"`
	Orderbook string          `json:"orderBook"`
}

// Ledger serves the read-only views over the deployed programs. Base-token
// metadata is read once at bootstrap and held for the process lifetime.
type Ledger struct {
	conn     *contracts.Connector
	baseMeta model.TokenMeta
}

func NewLedger(conn *contracts.Connector, baseMeta model.TokenMeta) *Ledger {
	return &Ledger{conn: conn, baseMeta: baseMeta}
}

func (l *Ledger) Balances(ctx context.Context, account common.Address) (model.Balances, error) {
	base, err := l.conn.BaseToken().BalanceOf(ctx, account)
	if err != nil {
		return model.Balances{}, err
	}
	escrowed, err := l.conn.Orderbook().UserCollateralBalance(ctx, account)
	if err != nil {
		return model.Balances{}, err
	}
	return model.Balances{
		Base:                base.String(),
		Collateral:          escrowed.String(),
		BaseFormatted:       units.FromFixedPoint(base, l.baseMeta.Decimals),
		CollateralFormatted: units.FromFixedPoint(escrowed, l.baseMeta.Decimals),
	}, nil
}

// StrikeInfo resolves the instrument pair issued at a strike. found is
// false when nothing has been issued there yet.
func (l *Ledger) StrikeInfo(ctx context.Context, strikePrice string) (model.StrikeInfo, bool, error) {
	strike, err := units.ToFixedPoint(strikePrice, instrumentDecimals)
	if err != nil {
		return model.StrikeInfo{}, false, err
	}
	collateral, claim, err := l.conn.Pool().InsuranceTokens(ctx, strike)
	if err != nil {
		return model.StrikeInfo{}, false, err
	}
	if collateral == (common.Address{}) {
		return model.StrikeInfo{}, false, nil
	}

	info := model.StrikeInfo{StrikePrice: strike.String()}
	if info.CollateralToken, err = l.conn.TokenAt(collateral).Meta(ctx); err != nil {
		return model.StrikeInfo{}, false, err
	}
	if info.ClaimToken, err = l.conn.TokenAt(claim).Meta(ctx); err != nil {
		return model.StrikeInfo{}, false, err
	}
	return info, true, nil
}

// StrikeBalances reads an account's holdings of both instruments at a
// strike. found is false when nothing has been issued there yet.
func (l *Ledger) StrikeBalances(ctx context.Context, strikePrice string, account common.Address) (model.StrikeBalances, bool, error) {
	strike, err := units.ToFixedPoint(strikePrice, instrumentDecimals)
	if err != nil {
		return model.StrikeBalances{}, false, err
	}
	collateral, claim, err := l.conn.Pool().InsuranceTokens(ctx, strike)
	if err != nil {
		return model.StrikeBalances{}, false, err
	}
	if collateral == (common.Address{}) {
		return model.StrikeBalances{}, false, nil
	}

	collateralBalance, err := l.conn.TokenAt(collateral).BalanceOf(ctx, account)
	if err != nil {
		return model.StrikeBalances{}, false, err
	}
	claimBalance, err := l.conn.TokenAt(claim).BalanceOf(ctx, account)
	if err != nil {
		return model.StrikeBalances{}, false, err
	}

	return model.StrikeBalances{
		StrikePrice: strike.String(),
		CollateralToken: model.TokenBalance{
			Address:          collateral.Hex(),
			Balance:          collateralBalance.String(),
			BalanceFormatted: units.FromFixedPoint(collateralBalance, instrumentDecimals),
		},
		ClaimToken: model.TokenBalance{
			Address:          claim.Hex(),
			Balance:          claimBalance.String(),
			BalanceFormatted: units.FromFixedPoint(claimBalance, instrumentDecimals),
		},
	}, true, nil
}

func (l *Ledger) PoolStatus(ctx context.Context) (model.PoolStatus, error) {
	finalized, err := l.conn.Pool().Finalized(ctx)
	if err != nil {
		return model.PoolStatus{}, err
	}
	status := model.PoolStatus{Finalized: finalized}
	if feeRate, err := l.conn.Orderbook().FeeRate(ctx); err == nil {
		status.FeeRate = model.NewBigInt(feeRate)
	}
	if !finalized {
		return status, nil
	}

	price, err := l.conn.Pool().FinalPrice(ctx)
	if err != nil {
		return model.PoolStatus{}, err
	}
	status.FinalPrice = model.NewBigInt(price)
	status.FinalPriceFormatted = units.FromFixedPoint(price, instrumentDecimals)
	return status, nil
}

// Contracts reports the mediated program addresses.
func (l *Ledger) Contracts(context.Context) (ContractsView, error) {
	addrs := l.conn.Addresses()
	return ContractsView{
		BaseToken: l.baseMeta,
		Pool:      addrs.Pool.Hex(),
		Orderbook: addrs.Orderbook.Hex(),
	}, nil
}
