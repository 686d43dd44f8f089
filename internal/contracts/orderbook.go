package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
)

// Orderbook is a typed handle on the orderbook program.
type Orderbook struct {
	caller  Caller
	Address common.Address
}

// NewOrderbook binds an orderbook wrapper to an address.
func NewOrderbook(caller Caller, address common.Address) *Orderbook {
	return &Orderbook{caller: caller, Address: address}
}

// GetOrder reads the record for an order id. Reverts and transport errors
// surface as-is; the caller decides whether an unreadable record means
// "gone" or "unreachable".
func (o *Orderbook) GetOrder(ctx context.Context, id uint64) (model.Order, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return model.Order{}, err
	}
	values, err := call(ctx, o.caller, o.Address, parsed, "getOrder", new(big.Int).SetUint64(id))
	if err != nil {
		return model.Order{}, err
	}

	maker, err := asAddress(values[0])
	if err != nil {
		return model.Order{}, err
	}
	strike, err := asBigInt(values[1])
	if err != nil {
		return model.Order{}, err
	}
	amount, err := asBigInt(values[2])
	if err != nil {
		return model.Order{}, err
	}
	price, err := asBigInt(values[3])
	if err != nil {
		return model.Order{}, err
	}
	claimSide, err := asBool(values[4])
	if err != nil {
		return model.Order{}, err
	}

	return model.Order{
		ID:          id,
		Maker:       maker,
		StrikePrice: strike,
		Amount:      amount,
		Price:       price,
		ClaimSide:   claimSide,
	}, nil
}

// ClassifyOrderReadError maps a revert on getOrder to OrderNotFound. The order
// record space has no tombstone distinct from a missing record, so a read the
// program itself rejects means the order is gone. Transport failures keep
// their connection or timeout kind.
func ClassifyOrderReadError(err error, id uint64) error {
	if err == nil {
		return nil
	}
	if fault.IsKind(err, fault.Timeout) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "revert") {
		return fault.Wrap(fault.OrderNotFound, err, "order %d does not exist", id)
	}
	return err
}

// IsOrderFillable reads the order's externally computed fillability flag.
func (o *Orderbook) IsOrderFillable(ctx context.Context, id uint64) (bool, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return false, err
	}
	values, err := call(ctx, o.caller, o.Address, parsed, "isOrderFillable", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	return asBool(values[0])
}

// UserCollateralBalance reads the collateral a user has escrowed in the
// orderbook.
func (o *Orderbook) UserCollateralBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	values, err := call(ctx, o.caller, o.Address, parsed, "userCollateralBalance", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (o *Orderbook) FeeRate(ctx context.Context) (*big.Int, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	values, err := call(ctx, o.caller, o.Address, parsed, "feeRate")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// DepositCollateralCalldata encodes depositCollateral(amount).
func (o *Orderbook) DepositCollateralCalldata(amount *big.Int) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "depositCollateral", amount)
}

// WithdrawCollateralCalldata encodes withdrawCollateral(amount).
func (o *Orderbook) WithdrawCollateralCalldata(amount *big.Int) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "withdrawCollateral", amount)
}

// CreateInsuranceOrderCalldata encodes createInsuranceOrder(strike, amount, price).
func (o *Orderbook) CreateInsuranceOrderCalldata(strikePrice, amount, price *big.Int) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "createInsuranceOrder", strikePrice, amount, price)
}

// CreateClaimTokenOrderCalldata encodes createClaimTokenOrder(strike, amount, price).
func (o *Orderbook) CreateClaimTokenOrderCalldata(strikePrice, amount, price *big.Int) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "createClaimTokenOrder", strikePrice, amount, price)
}

// CancelOrderCalldata encodes cancelOrder(id).
func (o *Orderbook) CancelOrderCalldata(id uint64) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "cancelOrder", new(big.Int).SetUint64(id))
}

// FillOrderCalldata encodes fillOrder(id, amount).
func (o *Orderbook) FillOrderCalldata(id uint64, amount *big.Int) ([]byte, error) {
	parsed, err := OrderbookABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "fillOrder", new(big.Int).SetUint64(id), amount)
}
