// Package faucet operates the service's one custodial signing identity. A
// single goroutine owns the key, the job queue, and the transaction nonce,
// so exactly one submission is ever in flight: nonce collisions are ruled
// out structurally rather than by convention around a lock.
package faucet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/fault"
	"insuranceGateway/internal/model"
	"insuranceGateway/internal/units"
)

// Backend is the chain surface the faucet needs. chain.Client satisfies it.
type Backend interface {
	contracts.Caller
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config holds faucet settings.
type Config struct {
	Token          common.Address
	Amount         *big.Int // base-asset units per request
	BaseDecimals   uint8
	GasLimit       uint64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	QueueSize      int
	RatePerSecond  float64 // per-recipient; 0 disables limiting
	RateBurst      int
}

type job struct {
	recipient common.Address
	reply     chan result
}

type result struct {
	receipt model.FaucetReceipt
	err     error
}

// Faucet mints the base asset to a recipient and waits for confirmation.
type Faucet struct {
	cfg     Config
	backend Backend
	token   *contracts.Token
	key     *ecdsa.PrivateKey
	from    common.Address
	limiter *recipientLimiter
	jobs    chan job
	logger  *zap.Logger
}

// New builds a Faucet around a held key. Start must be called before
// RequestFunds.
func New(cfg Config, backend Backend, key *ecdsa.PrivateKey, logger *zap.Logger) *Faucet {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 2_000_000
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return &Faucet{
		cfg:     cfg,
		backend: backend,
		token:   contracts.NewToken(backend, cfg.Token),
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		limiter: newRecipientLimiter(cfg.RatePerSecond, cfg.RateBurst),
		jobs:    make(chan job, cfg.QueueSize),
		logger:  logger,
	}
}

// Address returns the faucet identity's address.
func (f *Faucet) Address() common.Address {
	return f.from
}

// Start syncs the nonce and launches the single-writer loop. The loop owns
// the nonce for the faucet's lifetime; it stops when ctx is cancelled.
func (f *Faucet) Start(ctx context.Context) error {
	chainID, err := f.backend.ChainID(ctx)
	if err != nil {
		return fault.Wrap(fault.Connection, err, "read chain id")
	}
	nonce, err := f.backend.PendingNonceAt(ctx, f.from)
	if err != nil {
		return fault.Wrap(fault.Connection, err, "sync faucet nonce")
	}

	go f.run(ctx, chainID, nonce)
	return nil
}

// RequestFunds queues a mint for the recipient and blocks until it is
// confirmed or fails. On a confirmation timeout the returned receipt still
// carries the submission hash so the caller can poll it externally; the
// faucet never resubmits on its own.
func (f *Faucet) RequestFunds(ctx context.Context, recipient string) (model.FaucetReceipt, error) {
	if !common.IsHexAddress(recipient) {
		return model.FaucetReceipt{}, fault.New(fault.Validation, "invalid recipient address %q", recipient)
	}
	addr := common.HexToAddress(recipient)

	if !f.limiter.allow(addr, time.Now()) {
		return model.FaucetReceipt{}, fault.New(fault.RateLimited, "recipient %s is rate limited", addr.Hex())
	}

	j := job{recipient: addr, reply: make(chan result, 1)}
	select {
	case f.jobs <- j:
	case <-ctx.Done():
		return model.FaucetReceipt{}, fault.Wrap(fault.Timeout, ctx.Err(), "faucet queue wait")
	}

	select {
	case res := <-j.reply:
		return res.receipt, res.err
	case <-ctx.Done():
		// The job may still execute; the actor owns it now. The caller
		// only stops waiting.
		return model.FaucetReceipt{}, fault.Wrap(fault.Timeout, ctx.Err(), "faucet confirmation wait")
	}
}

// run is the single writer. Jobs are processed strictly one at a time:
// dispatch, await confirmation, then dequeue the next.
func (f *Faucet) run(ctx context.Context, chainID *big.Int, nonce uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-f.jobs:
			res := f.process(ctx, chainID, &nonce, j.recipient)
			j.reply <- res
		}
	}
}

func (f *Faucet) process(ctx context.Context, chainID *big.Int, nonce *uint64, recipient common.Address) result {
	balanceBefore, err := f.token.BalanceOf(ctx, recipient)
	if err != nil {
		return result{err: err}
	}

	data, err := f.token.MintCalldata(recipient, f.cfg.Amount)
	if err != nil {
		return result{err: err}
	}
	gasPrice, err := f.backend.SuggestGasPrice(ctx)
	if err != nil {
		return result{err: fault.Wrap(fault.Connection, err, "suggest gas price")}
	}

	tx := types.NewTransaction(*nonce, f.cfg.Token, new(big.Int), f.cfg.GasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), f.key)
	if err != nil {
		return result{err: fault.Wrap(fault.Internal, err, "sign faucet mint")}
	}

	if err := f.backend.SendTransaction(ctx, signed); err != nil {
		// Clean submission failure: nothing consumed the nonce, but the
		// pool's view is authoritative, so resync before the next job.
		if synced, syncErr := f.backend.PendingNonceAt(ctx, f.from); syncErr == nil {
			*nonce = synced
		} else {
			f.logger.Warn("nonce resync failed", zap.Error(syncErr))
		}
		return result{err: fault.Wrap(fault.Connection, err, "submit faucet mint")}
	}
	*nonce++

	f.logger.Info("faucet mint submitted",
		zap.String("recipient", recipient.Hex()),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()),
	)

	receipt := model.FaucetReceipt{
		TxHash:             signed.Hash().Hex(),
		From:               f.from.Hex(),
		To:                 recipient.Hex(),
		Requested:          model.NewBigInt(f.cfg.Amount),
		RequestedFormatted: units.FromFixedPoint(f.cfg.Amount, f.cfg.BaseDecimals),
	}

	mined, err := f.waitMined(ctx, signed.Hash())
	if err != nil {
		// Dispatched but unconfirmed: the hash goes back to the caller
		// and the mint is never retried with a fresh nonce, since the
		// original may still land.
		return result{receipt: receipt, err: err}
	}
	receipt.BlockNumber = mined.BlockNumber.Uint64()

	if mined.Status != types.ReceiptStatusSuccessful {
		return result{receipt: receipt, err: fault.New(fault.Internal, "faucet mint reverted in tx %s", receipt.TxHash)}
	}

	balanceAfter, err := f.token.BalanceOf(ctx, recipient)
	if err != nil {
		return result{receipt: receipt, err: err}
	}
	// The delta, not the requested amount, is what the recipient actually
	// received; the program may cap the mint.
	received := new(big.Int).Sub(balanceAfter, balanceBefore)
	receipt.Received = model.NewBigInt(received)
	receipt.ReceivedFormatted = units.FromFixedPoint(received, f.cfg.BaseDecimals)

	return result{receipt: receipt}
}

func (f *Faucet) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	deadline := time.NewTimer(f.cfg.ConfirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		mined, err := f.backend.TransactionReceipt(ctx, hash)
		if err == nil && mined != nil {
			return mined, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			f.logger.Debug("receipt poll failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fault.New(fault.AmbiguousSubmission, "confirmation interrupted for %s: %v", hash.Hex(), ctx.Err())
		case <-deadline.C:
			return nil, fault.New(fault.AmbiguousSubmission, "confirmation timeout for %s", hash.Hex())
		case <-ticker.C:
		}
	}
}
