package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABIJSON = `[
  {"inputs": [{"type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "address"}, {"type": "uint256"}], "name": "mint", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

const poolABIJSON = `[
  {"inputs": [], "name": "COLLATERAL_TOKEN", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "finalized", "outputs": [{"type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "FinalPrice", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "getInsuranceTokens", "outputs": [{"type": "address"}, {"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}, {"type": "address"}, {"type": "address"}], "name": "issueInsurance", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}], "name": "redeemInsurance", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "finalize", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256[]"}], "name": "settleInsurance", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"}
]`

const orderbookABIJSON = `[
  {"inputs": [], "name": "insurancePool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "collateralToken", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "feeRate", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "depositCollateral", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "withdrawCollateral", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}, {"type": "uint256"}], "name": "createClaimTokenOrder", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}, {"type": "uint256"}], "name": "createInsuranceOrder", "outputs": [{"type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "cancelOrder", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}, {"type": "uint256"}], "name": "fillOrder", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "getOrder", "outputs": [{"type": "address"}, {"type": "uint256"}, {"type": "uint256"}, {"type": "uint256"}, {"type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "uint256"}], "name": "isOrderFillable", "outputs": [{"type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"type": "address"}], "name": "userCollateralBalance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "maker", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "strikePrice", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "isClaimTokenOrder", "type": "bool"}
    ],
    "name": "OrderCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "taker", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "remaining", "type": "uint256"}
    ],
    "name": "OrderFilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"}
    ],
    "name": "OrderCancelled",
    "type": "event"
  }
]`

var (
	tokenABI         abi.ABI
	tokenABIOnce     sync.Once
	tokenABIErr      error
	poolABI          abi.ABI
	poolABIOnce      sync.Once
	poolABIErr       error
	orderbookABI     abi.ABI
	orderbookABIOnce sync.Once
	orderbookABIErr  error
)

// TokenABI returns the parsed fungible-asset ABI.
func TokenABI() (abi.ABI, error) {
	tokenABIOnce.Do(func() {
		tokenABI, tokenABIErr = abi.JSON(strings.NewReader(tokenABIJSON))
	})
	return tokenABI, tokenABIErr
}

// PoolABI returns the parsed insurance-pool ABI.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

// OrderbookABI returns the parsed orderbook ABI.
func OrderbookABI() (abi.ABI, error) {
	orderbookABIOnce.Do(func() {
		orderbookABI, orderbookABIErr = abi.JSON(strings.NewReader(orderbookABIJSON))
	})
	return orderbookABI, orderbookABIErr
}
