package indexer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/fault"
)

// OrderCreated is a decoded order-creation event.
type OrderCreated struct {
	ID          uint64
	Maker       common.Address
	StrikePrice *big.Int
	Amount      *big.Int
	Price       *big.Int
	ClaimSide   bool
	Block       uint64
}

// OrderFilled is a decoded fill event carrying the remaining amount after
// the fill.
type OrderFilled struct {
	ID        uint64
	Taker     common.Address
	Amount    *big.Int
	Remaining *big.Int
	Block     uint64
}

// OrderCancelled is a decoded cancellation event.
type OrderCancelled struct {
	ID    uint64
	Block uint64
}

// EventTopics returns the topic0 hashes of the three order events, in the
// order created, filled, cancelled.
func EventTopics() ([]common.Hash, error) {
	parsed, err := contracts.OrderbookABI()
	if err != nil {
		return nil, err
	}
	return []common.Hash{
		parsed.Events["OrderCreated"].ID,
		parsed.Events["OrderFilled"].ID,
		parsed.Events["OrderCancelled"].ID,
	}, nil
}

// DecodeOrderEvent decodes a log emitted by the orderbook into one of the
// three event types. Logs with an unknown topic0 are not an error upstream
// of the filter; they indicate an unrecognized program version.
func DecodeOrderEvent(log types.Log) (interface{}, error) {
	parsed, err := contracts.OrderbookABI()
	if err != nil {
		return nil, err
	}
	if len(log.Topics) == 0 {
		return nil, fault.New(fault.UnsupportedProgramVersion, "log without topics")
	}

	switch log.Topics[0] {
	case parsed.Events["OrderCreated"].ID:
		if len(log.Topics) < 3 {
			return nil, fault.New(fault.UnsupportedProgramVersion, "OrderCreated with %d topics", len(log.Topics))
		}
		values, err := parsed.Events["OrderCreated"].Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, fault.Wrap(fault.UnsupportedProgramVersion, err, "decode OrderCreated")
		}
		return OrderCreated{
			ID:          new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
			Maker:       common.BytesToAddress(log.Topics[2].Bytes()),
			StrikePrice: values[0].(*big.Int),
			Amount:      values[1].(*big.Int),
			Price:       values[2].(*big.Int),
			ClaimSide:   values[3].(bool),
			Block:       log.BlockNumber,
		}, nil

	case parsed.Events["OrderFilled"].ID:
		if len(log.Topics) < 3 {
			return nil, fault.New(fault.UnsupportedProgramVersion, "OrderFilled with %d topics", len(log.Topics))
		}
		values, err := parsed.Events["OrderFilled"].Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, fault.Wrap(fault.UnsupportedProgramVersion, err, "decode OrderFilled")
		}
		return OrderFilled{
			ID:        new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
			Taker:     common.BytesToAddress(log.Topics[2].Bytes()),
			Amount:    values[0].(*big.Int),
			Remaining: values[1].(*big.Int),
			Block:     log.BlockNumber,
		}, nil

	case parsed.Events["OrderCancelled"].ID:
		if len(log.Topics) < 2 {
			return nil, fault.New(fault.UnsupportedProgramVersion, "OrderCancelled with %d topics", len(log.Topics))
		}
		return OrderCancelled{
			ID:    new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
			Block: log.BlockNumber,
		}, nil

	default:
		return nil, fault.New(fault.UnsupportedProgramVersion, "unknown event topic %s", log.Topics[0].Hex())
	}
}
