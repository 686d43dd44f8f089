package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"insuranceGateway/internal/fault"
)

// Caller is the read connection a typed wrapper calls through. chain.Client
// satisfies it; tests substitute fakes.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// call packs a method, performs an eth_call, and unpacks the outputs.
// Pack/unpack mismatches indicate the deployed program does not expose the
// expected signature; transport errors indicate connectivity.
func call(ctx context.Context, caller Caller, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fault.Wrap(fault.UnsupportedProgramVersion, err, "pack %s", method)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "call %s on %s", method, target.Hex())
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fault.Wrap(fault.UnsupportedProgramVersion, err, "unpack %s", method)
	}
	return values, nil
}

// pack encodes calldata for a state-changing method without calling it.
func pack(parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fault.Wrap(fault.UnsupportedProgramVersion, err, "pack %s", method)
	}
	return data, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fault.New(fault.UnsupportedProgramVersion, "unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fault.New(fault.UnsupportedProgramVersion, "unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fault.New(fault.UnsupportedProgramVersion, "unsupported uint8 type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fault.New(fault.UnsupportedProgramVersion, "unsupported bool type %T", value)
	}
	return v, nil
}
