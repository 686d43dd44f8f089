// Package assembler turns validated user intents into ordered unsigned
// transaction plans: zero or more approval prerequisites followed by one
// primary action. It performs only reads; signing and submission belong to
// the client-held key.
//
// The price or fillability it reads can change between assembly and the
// user's own submission. That check-then-act window is inherent to the
// non-custodial design and is documented rather than eliminated; the
// external programs expose no expiry or price-bound parameter to narrow it.
package assembler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/units"
)

// Instrument tokens, prices, and strike keys are fixed at 18 decimals by
// the deployed programs. The base collateral precision is read once at
// bootstrap and injected.
const InstrumentDecimals uint8 = 18

const (
	gasIssue    = 5_000_000
	gasCreate   = 5_000_000
	gasFill     = 5_000_000
	gasCancel   = 2_000_000
	gasDeposit  = 2_000_000
	gasWithdraw = 2_000_000
	gasSettle   = 3_000_000
	gasFinalize = 3_000_000
	gasRedeem   = 3_000_000
)

// PoolReader is the subset of pool reads the assembler needs.
type PoolReader interface {
	InsuranceTokens(ctx context.Context, strikePrice *big.Int) (common.Address, common.Address, error)
}

// OrderbookReader is the subset of orderbook reads the assembler needs.
type OrderbookReader interface {
	GetOrder(ctx context.Context, id uint64) (model.Order, error)
	IsOrderFillable(ctx context.Context, id uint64) (bool, error)
}

// Builder assembles plans against one protocol deployment.
type Builder struct {
	addrs        contracts.Addresses
	pool         PoolReader
	book         OrderbookReader
	baseDecimals uint8
	logger       *zap.Logger
}

// NewBuilder wires a Builder. pool and book are normally the connector's
// typed handles; tests substitute fakes.
func NewBuilder(addrs contracts.Addresses, pool PoolReader, book OrderbookReader, baseDecimals uint8, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		addrs:        addrs,
		pool:         pool,
		book:         book,
		baseDecimals: baseDecimals,
		logger:       logger,
	}
}

// IssueParams is the issue-insurance intent.
type IssueParams struct {
	StrikePrice         string
	Amount              string
	CollateralRecipient string
	ClaimRecipient      string
}

// IssueInsurance prepares an approval for the pool plus the issuance call.
// Payment carries the ceiling-rounded collateral obligation at base-asset
// precision for client preview.
func (b *Builder) IssueInsurance(ctx context.Context, p IssueParams) (model.Plan, error) {
	strike, err := units.ToFixedPoint(p.StrikePrice, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	amount, err := units.ToFixedPoint(p.Amount, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	collateralRecipient, err := parseAddress(p.CollateralRecipient)
	if err != nil {
		return model.Plan{}, err
	}
	claimRecipient, err := parseAddress(p.ClaimRecipient)
	if err != nil {
		return model.Plan{}, err
	}

	approve, err := b.approval(b.addrs.BaseToken, b.addrs.Pool)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewPool(nil, b.addrs.Pool).IssueInsuranceCalldata(strike, amount, collateralRecipient, claimRecipient)
	if err != nil {
		return model.Plan{}, err
	}

	payment := units.MulScaleCeil(amount, strike, InstrumentDecimals, InstrumentDecimals, b.baseDecimals)
	return b.plan([]model.TxDescriptor{approve}, descriptor(b.addrs.Pool, data), gasIssue, payment), nil
}

// OrderParams is a create-order intent for either side.
type OrderParams struct {
	StrikePrice string
	Amount      string
	Price       string
}

// CreateInsuranceOrder prepares a collateral-side order. The order is
// funded from collateral already escrowed in the orderbook, so there is no
// approval prerequisite.
func (b *Builder) CreateInsuranceOrder(ctx context.Context, p OrderParams) (model.Plan, error) {
	strike, amount, price, err := parseOrderParams(p)
	if err != nil {
		return model.Plan{}, err
	}

	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).CreateInsuranceOrderCalldata(strike, amount, price)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan(nil, descriptor(b.addrs.Orderbook, data), gasCreate, nil), nil
}

// CreateClaimTokenOrder prepares a claim-side order. The maker's claim
// tokens move into escrow, so the orderbook needs an approval on the
// strike's claim token, which must already exist.
func (b *Builder) CreateClaimTokenOrder(ctx context.Context, p OrderParams) (model.Plan, error) {
	strike, amount, price, err := parseOrderParams(p)
	if err != nil {
		return model.Plan{}, err
	}

	_, claimToken, err := b.pool.InsuranceTokens(ctx, strike)
	if err != nil {
		return model.Plan{}, err
	}
	if claimToken == (common.Address{}) {
		return model.Plan{}, fault.New(fault.InsufficientPrerequisite, "no instruments issued at strike %s", p.StrikePrice)
	}

	approve, err := b.approval(claimToken, b.addrs.Orderbook)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).CreateClaimTokenOrderCalldata(strike, amount, price)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan([]model.TxDescriptor{approve}, descriptor(b.addrs.Orderbook, data), gasCreate, nil), nil
}

// FillParams is the fill-order intent.
type FillParams struct {
	OrderID uint64
	Amount  string
}

// FillOrder reads the target order's current price and fillability, then
// prepares an approval for the orderbook plus the fill call. No descriptors
// are emitted when the order is gone or not fillable.
func (b *Builder) FillOrder(ctx context.Context, p FillParams) (model.Plan, error) {
	if p.OrderID == 0 {
		return model.Plan{}, fault.New(fault.Validation, "order id must be positive")
	}
	amount, err := units.ToFixedPoint(p.Amount, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	if amount.Sign() == 0 {
		return model.Plan{}, fault.New(fault.Validation, "fill amount must be positive")
	}

	order, err := b.book.GetOrder(ctx, p.OrderID)
	if err != nil {
		return model.Plan{}, contracts.ClassifyOrderReadError(err, p.OrderID)
	}
	// A zero remaining amount is the record space's only tombstone.
	if !order.Live() {
		return model.Plan{}, fault.New(fault.OrderNotFound, "order %d is already filled or cancelled", p.OrderID)
	}

	fillable, err := b.book.IsOrderFillable(ctx, p.OrderID)
	if err != nil {
		return model.Plan{}, err
	}
	if !fillable {
		return model.Plan{}, fault.New(fault.OrderNotFillable, "order %d is not fillable", p.OrderID)
	}
	b.logger.Debug("fill order checked",
		zap.Uint64("order_id", p.OrderID),
		zap.String("remaining", order.Amount.String()),
		zap.Bool("fillable", fillable))

	approve, err := b.approval(b.addrs.BaseToken, b.addrs.Orderbook)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).FillOrderCalldata(p.OrderID, amount)
	if err != nil {
		return model.Plan{}, err
	}

	payment := units.MulScaleCeil(amount, order.Price, InstrumentDecimals, InstrumentDecimals, b.baseDecimals)
	return b.plan([]model.TxDescriptor{approve}, descriptor(b.addrs.Orderbook, data), gasFill, payment), nil
}

// CancelOrder prepares a cancel call for an order the caller made.
func (b *Builder) CancelOrder(ctx context.Context, orderID uint64) (model.Plan, error) {
	if orderID == 0 {
		return model.Plan{}, fault.New(fault.Validation, "order id must be positive")
	}
	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).CancelOrderCalldata(orderID)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan(nil, descriptor(b.addrs.Orderbook, data), gasCancel, nil), nil
}

// DepositCollateral prepares an approval plus the deposit call. The amount
// is base-asset precision.
func (b *Builder) DepositCollateral(ctx context.Context, amount string) (model.Plan, error) {
	value, err := units.ToFixedPoint(amount, b.baseDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	if value.Sign() == 0 {
		return model.Plan{}, fault.New(fault.Validation, "deposit amount must be positive")
	}

	approve, err := b.approval(b.addrs.BaseToken, b.addrs.Orderbook)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).DepositCollateralCalldata(value)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan([]model.TxDescriptor{approve}, descriptor(b.addrs.Orderbook, data), gasDeposit, nil), nil
}

// WithdrawCollateral prepares the withdraw call. Funds flow back to the
// user, so no approval is needed and no rounding is applied beyond exact
// parsing.
func (b *Builder) WithdrawCollateral(ctx context.Context, amount string) (model.Plan, error) {
	value, err := units.ToFixedPoint(amount, b.baseDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	if value.Sign() == 0 {
		return model.Plan{}, fault.New(fault.Validation, "withdraw amount must be positive")
	}

	data, err := contracts.NewOrderbook(nil, b.addrs.Orderbook).WithdrawCollateralCalldata(value)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan(nil, descriptor(b.addrs.Orderbook, data), gasWithdraw, nil), nil
}

// SettleInsurance prepares a settlement call over the given strikes.
func (b *Builder) SettleInsurance(ctx context.Context, strikePrices []string) (model.Plan, error) {
	if len(strikePrices) == 0 {
		return model.Plan{}, fault.New(fault.Validation, "at least one strike price is required")
	}
	strikes := make([]*big.Int, 0, len(strikePrices))
	for _, s := range strikePrices {
		strike, err := units.ToFixedPoint(s, InstrumentDecimals)
		if err != nil {
			return model.Plan{}, err
		}
		strikes = append(strikes, strike)
	}

	data, err := contracts.NewPool(nil, b.addrs.Pool).SettleInsuranceCalldata(strikes)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan(nil, descriptor(b.addrs.Pool, data), gasSettle, nil), nil
}

// RedeemInsurance prepares approvals for both instrument tokens plus the
// redeem call, returning escrowed collateral for a matched pair.
func (b *Builder) RedeemInsurance(ctx context.Context, p OrderParams) (model.Plan, error) {
	strike, err := units.ToFixedPoint(p.StrikePrice, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	amount, err := units.ToFixedPoint(p.Amount, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}

	collateralToken, claimToken, err := b.pool.InsuranceTokens(ctx, strike)
	if err != nil {
		return model.Plan{}, err
	}
	if collateralToken == (common.Address{}) {
		return model.Plan{}, fault.New(fault.InsufficientPrerequisite, "no instruments issued at strike %s", p.StrikePrice)
	}

	approveCollateral, err := b.approval(collateralToken, b.addrs.Pool)
	if err != nil {
		return model.Plan{}, err
	}
	approveClaim, err := b.approval(claimToken, b.addrs.Pool)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewPool(nil, b.addrs.Pool).RedeemInsuranceCalldata(strike, amount)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan([]model.TxDescriptor{approveCollateral, approveClaim}, descriptor(b.addrs.Pool, data), gasRedeem, nil), nil
}

// Finalize prepares the administrative finalize call at the given reference
// price.
func (b *Builder) Finalize(ctx context.Context, price string) (model.Plan, error) {
	value, err := units.ToFixedPoint(price, InstrumentDecimals)
	if err != nil {
		return model.Plan{}, err
	}
	data, err := contracts.NewPool(nil, b.addrs.Pool).FinalizeCalldata(value)
	if err != nil {
		return model.Plan{}, err
	}
	return b.plan(nil, descriptor(b.addrs.Pool, data), gasFinalize, nil), nil
}

func (b *Builder) approval(token, spender common.Address) (model.TxDescriptor, error) {
	data, err := contracts.NewToken(nil, token).ApproveCalldata(spender, contracts.MaxUint256)
	if err != nil {
		return model.TxDescriptor{}, err
	}
	return descriptor(token, data), nil
}

func (b *Builder) plan(prep []model.TxDescriptor, primary model.TxDescriptor, gasLimit uint64, payment *big.Int) model.Plan {
	p := model.Plan{
		Preparatory: prep,
		Transaction: primary,
		GasLimit:    gasLimit,
	}
	if payment != nil {
		p.Payment = model.NewBigInt(payment)
		p.PaymentFormatted = units.FromFixedPoint(payment, b.baseDecimals)
	}
	return p
}

func descriptor(to common.Address, data []byte) model.TxDescriptor {
	return model.TxDescriptor{
		To:    to.Hex(),
		Data:  hexutil.Encode(data),
		Value: "0x0",
	}
}

func parseOrderParams(p OrderParams) (strike, amount, price *big.Int, err error) {
	strike, err = units.ToFixedPoint(p.StrikePrice, InstrumentDecimals)
	if err != nil {
		return nil, nil, nil, err
	}
	amount, err = units.ToFixedPoint(p.Amount, InstrumentDecimals)
	if err != nil {
		return nil, nil, nil, err
	}
	price, err = units.ToFixedPoint(p.Price, InstrumentDecimals)
	if err != nil {
		return nil, nil, nil, err
	}
	if amount.Sign() == 0 {
		return nil, nil, nil, fault.New(fault.Validation, "order amount must be positive")
	}
	return strike, amount, price, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fault.New(fault.Validation, "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
