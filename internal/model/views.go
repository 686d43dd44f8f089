package model

// TokenMeta is ERC20 metadata read once and cached for the process lifetime.
type TokenMeta struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// PoolStatus reports whether the pool has been finalized and at what price,
// plus the orderbook's fill fee rate.
type PoolStatus struct {
	Finalized           bool    `json:"isFinalized"`
	FinalPrice          *BigInt `json:"finalPrice"`
	FinalPriceFormatted string  `json:"finalPriceFormatted,omitempty"`
	FeeRate             *BigInt `json:"orderbookFeeRate,omitempty"`
}

// Balances is a user's base-asset and escrowed collateral position.
type Balances struct {
	Base                string `json:"usdc"`
	Collateral          string `json:"collateral"`
	BaseFormatted       string `json:"usdcFormatted"`
	CollateralFormatted string `json:"collateralFormatted"`
}

// TokenBalance is one instrument-token holding.
type TokenBalance struct {
	Address          string `json:"address"`
	Balance          string `json:"balance"`
	BalanceFormatted string `json:"balanceFormatted,omitempty"`
}

// StrikeBalances is a user's holdings of both instruments at one strike.
type StrikeBalances struct {
	StrikePrice     string       `json:"strikePrice"`
	CollateralToken TokenBalance `json:"collateralToken"`
	ClaimToken      TokenBalance `json:"claimToken"`
}

// StrikeInfo describes the instrument pair issued against a strike price.
type StrikeInfo struct {
	StrikePrice     string    `json:"strikePrice"`
	CollateralToken TokenMeta `json:"collateralToken"`
	ClaimToken      TokenMeta `json:"claimToken"`
}

// FaucetReceipt reports a confirmed faucet mint. Received is measured as the
// recipient's balance delta, in case the program caps the mint below the
// requested amount.
type FaucetReceipt struct {
	TxHash             string  `json:"txHash"`
	BlockNumber        uint64  `json:"blockNumber"`
	From               string  `json:"from"`
	To                 string  `json:"to"`
	Requested          *BigInt `json:"requested"`
	RequestedFormatted string  `json:"requestedFormatted"`
	Received           *BigInt `json:"received"`
	ReceivedFormatted  string  `json:"receivedFormatted"`
}
