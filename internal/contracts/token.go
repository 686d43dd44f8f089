package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"insuranceGateway/internal/model"
)

// MaxUint256 is the effectively-unlimited allowance sentinel. Approvals are
// always sized to it instead of an exact delta, which removes the race
// between reading the current allowance and the user's own submission.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Token is a typed handle on a fungible-asset program.
type Token struct {
	caller  Caller
	Address common.Address
}

// NewToken binds a token wrapper to an address.
func NewToken(caller Caller, address common.Address) *Token {
	return &Token{caller: caller, Address: address}
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	values, err := call(ctx, t.caller, t.Address, parsed, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	values, err := call(ctx, t.caller, t.Address, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	parsed, err := TokenABI()
	if err != nil {
		return 0, err
	}
	values, err := call(ctx, t.caller, t.Address, parsed, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(values[0])
}

// Meta reads name/symbol/decimals in one pass. Decimals is required; name
// and symbol failures are tolerated since display metadata is optional on
// some deployments.
func (t *Token) Meta(ctx context.Context) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: t.Address.Hex()}

	decimals, err := t.Decimals(ctx)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	parsed, err := TokenABI()
	if err != nil {
		return meta, err
	}
	if values, err := call(ctx, t.caller, t.Address, parsed, "symbol"); err == nil {
		if s, ok := values[0].(string); ok {
			meta.Symbol = s
		}
	}
	if values, err := call(ctx, t.caller, t.Address, parsed, "name"); err == nil {
		if s, ok := values[0].(string); ok {
			meta.Name = s
		}
	}
	return meta, nil
}

// ApproveCalldata encodes approve(spender, amount).
func (t *Token) ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "approve", spender, amount)
}

// MintCalldata encodes mint(to, amount). Only the faucet identity may
// execute it; the gateway never prepares it for users.
func (t *Token) MintCalldata(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	return pack(parsed, "mint", to, amount)
}
