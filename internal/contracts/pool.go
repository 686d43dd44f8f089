package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a typed handle on the insurance-pool program.
type Pool struct {
	caller  Caller
	Address common.Address
}

// NewPool binds a pool wrapper to an address.
func NewPool(caller Caller, address common.Address) *Pool {
	return &Pool{caller: caller, Address: address}
}

func (p *Pool) CollateralToken(ctx context.Context) (common.Address, error) {
	parsed, err := PoolABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := call(ctx, p.caller, p.Address, parsed, "COLLATERAL_TOKEN")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

func (p *Pool) Finalized(ctx context.Context) (bool, error) {
	parsed, err := PoolABI()
	if err != nil {
		return false, err
	}
	values, err := call(ctx, p.caller, p.Address, parsed, "finalized")
	if err != nil {
		return false, err
	}
	return asBool(values[0])
}

func (p *Pool) FinalPrice(ctx context.Context) (*big.Int, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	values, err := call(ctx, p.caller, p.Address, parsed, "FinalPrice")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// InsuranceTokens resolves the instrument pair for a strike price. Both
// addresses are the zero address until the first issuance against that
// strike.
func (p *Pool) InsuranceTokens(ctx context.Context, strikePrice *big.Int) (common.Address, common.Address, error) {
	parsed, err := PoolABI()
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	values, err := call(ctx, p.caller, p.Address, parsed, "getInsuranceTokens", strikePrice)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	collateral, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	claim, err := asAddress(values[1])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return collateral, claim, nil
}

// IssueInsuranceCalldata encodes issueInsurance(strike, amount, collateralRecipient, claimRecipient).
func (p *Pool) IssueInsuranceCalldata(strikePrice, amount *big.Int, collateralRecipient, claimRecipient common.Address) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "issueInsurance", strikePrice, amount, collateralRecipient, claimRecipient)
}

// RedeemInsuranceCalldata encodes redeemInsurance(strike, amount).
func (p *Pool) RedeemInsuranceCalldata(strikePrice, amount *big.Int) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "redeemInsurance", strikePrice, amount)
}

// FinalizeCalldata encodes the administrative finalize(price).
func (p *Pool) FinalizeCalldata(price *big.Int) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "finalize", price)
}

// SettleInsuranceCalldata encodes settleInsurance(strikes).
func (p *Pool) SettleInsuranceCalldata(strikePrices []*big.Int) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "settleInsurance", strikePrices)
}
