package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is the raw orderbook record for one order id. A remaining Amount of
// zero is the only signal that the order is no longer live; the record space
// has no separate deleted flag.
type Order struct {
	ID          uint64
	Maker       common.Address
	StrikePrice *big.Int
	Amount      *big.Int
	Price       *big.Int
	ClaimSide   bool
}

// Live reports whether the order can still be part of the open book.
func (o Order) Live() bool {
	return o.Amount != nil && o.Amount.Sign() > 0
}

// TokenPair is the pair of complementary instrument tokens for a strike.
type TokenPair struct {
	CollateralToken string `json:"collateralToken"`
	ClaimToken      string `json:"claimToken"`
}

// OrderView is an order joined with its fillability flag and strike token
// pair, shaped for the API.
type OrderView struct {
	ID                   uint64    `json:"orderId"`
	Maker                string    `json:"maker"`
	StrikePrice          *BigInt   `json:"strikePrice"`
	StrikePriceFormatted string    `json:"strikePriceFormatted"`
	Amount               *BigInt   `json:"amount"`
	AmountFormatted      string    `json:"amountFormatted"`
	Price                *BigInt   `json:"price"`
	PriceFormatted       string    `json:"priceFormatted"`
	ClaimSide            bool      `json:"isClaimTokenOrder"`
	Fillable             bool      `json:"isFillable"`
	Tokens               TokenPair `json:"tokens"`
}

// StrikeGroup buckets open orders sharing a strike price.
type StrikeGroup struct {
	StrikePrice          *BigInt     `json:"strikePrice"`
	StrikePriceFormatted string      `json:"strikePriceFormatted"`
	Tokens               TokenPair   `json:"tokens"`
	ClaimTokenOrders     []OrderView `json:"claimTokenOrders"`
	InsuranceOrders      []OrderView `json:"insuranceOrders"`
}

// OrderBook is the aggregated open-order view. AllOrders preserves scan
// order (ascending id); completeness is bounded by the scan limit.
type OrderBook struct {
	TotalOrders         int           `json:"totalOrders"`
	ScanLimit           uint64        `json:"scanLimit"`
	OrdersByStrikePrice []StrikeGroup `json:"ordersByStrikePrice"`
	AllOrders           []OrderView   `json:"allOrders"`
}
