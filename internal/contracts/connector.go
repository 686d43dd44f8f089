package contracts

import (
	"github.com/ethereum/go-ethereum/common"
)

// Addresses holds the deployed program addresses.
type Addresses struct {
	BaseToken common.Address
	Pool      common.Address
	Orderbook common.Address
}

// Connector binds typed program wrappers to one shared read connection.
// Constructed once at bootstrap and injected into components; immutable
// afterwards, so no synchronization is needed.
type Connector struct {
	caller Caller
	addrs  Addresses

	baseToken *Token
	pool      *Pool
	orderbook *Orderbook
}

// NewConnector builds a connector over a caller and the deployed addresses.
func NewConnector(caller Caller, addrs Addresses) *Connector {
	return &Connector{
		caller:    caller,
		addrs:     addrs,
		baseToken: NewToken(caller, addrs.BaseToken),
		pool:      NewPool(caller, addrs.Pool),
		orderbook: NewOrderbook(caller, addrs.Orderbook),
	}
}

// BaseToken returns the base collateral asset handle.
func (c *Connector) BaseToken() *Token {
	return c.baseToken
}

// Pool returns the insurance-pool handle.
func (c *Connector) Pool() *Pool {
	return c.pool
}

// Orderbook returns the orderbook handle.
func (c *Connector) Orderbook() *Orderbook {
	return c.orderbook
}

// TokenAt returns a handle for an arbitrary instrument token.
func (c *Connector) TokenAt(address common.Address) *Token {
	return NewToken(c.caller, address)
}

// Addresses returns the deployed program addresses.
func (c *Connector) Addresses() Addresses {
	return c.addrs
}
