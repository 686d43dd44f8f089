package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"insuranceGateway/internal/api"
	"insuranceGateway/internal/assembler"
	"insuranceGateway/internal/chain"
	"insuranceGateway/internal/config"
	"insuranceGateway/internal/contracts"
	"insuranceGateway/internal/faucet"
	"insuranceGateway/internal/indexer"
	"insuranceGateway/internal/orders"
	"insuranceGateway/internal/storage/postgres"
	"insuranceGateway/internal/units"
)

func main() {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "Non-custodial gateway for the price-insurance programs",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("rpc", "", "ledger RPC URL")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("base-token", "", "base asset token address")
	serveCmd.Flags().String("pool", "", "insurance pool address")
	serveCmd.Flags().String("orderbook", "", "orderbook address")
	serveCmd.Flags().Duration("call-timeout", 5*time.Second, "per-call read timeout")
	serveCmd.Flags().Duration("request-timeout", 30*time.Second, "per-request budget")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN for the order index (empty uses the chain scan)")
	serveCmd.Flags().String("faucet-amount", "1000", "base asset amount per faucet request")
	serveCmd.Flags().Float64("faucet-rate-per-minute", 1.0, "faucet requests per minute per recipient")
	serveCmd.Flags().Int("faucet-burst", 1, "faucet burst per recipient")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(serveCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Run the order-event indexer",
		RunE:  runIndex,
	}
	indexCmd.Flags().String("rpc", "", "ledger RPC URL")
	indexCmd.Flags().String("base-token", "", "base asset token address")
	indexCmd.Flags().String("pool", "", "insurance pool address")
	indexCmd.Flags().String("orderbook", "", "orderbook address")
	indexCmd.Flags().String("pg-dsn", "", "Postgres DSN for the order index")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	indexCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().Duration("call-timeout", 5*time.Second, "per-call read timeout")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(indexCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := parseAddresses(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	conn := contracts.NewConnector(client, addrs)

	metaCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	baseMeta, err := conn.BaseToken().Meta(metaCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("read base token metadata: %w", err)
	}
	logger.Info("base token resolved",
		zap.String("address", baseMeta.Address),
		zap.String("symbol", baseMeta.Symbol),
		zap.Uint8("decimals", baseMeta.Decimals),
	)

	builder := assembler.NewBuilder(addrs, conn.Pool(), conn.Orderbook(), baseMeta.Decimals, logger)
	ledger := api.NewLedger(conn, baseMeta)

	var source api.OrderSource
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		source = store
		logger.Info("order reads served from the index")
	} else {
		source = orders.NewScanner(conn.Orderbook(), conn.Pool(), cfg.CallTimeout, logger)
		logger.Info("order reads served by chain scan")
	}

	var dispenser api.Dispenser
	if cfg.FaucetKey != "" {
		key, err := crypto.HexToECDSA(cfg.FaucetKey)
		if err != nil {
			return fmt.Errorf("parse faucet key: %w", err)
		}
		amount, err := units.ToFixedPoint(cfg.FaucetAmount, baseMeta.Decimals)
		if err != nil {
			return fmt.Errorf("parse faucet amount: %w", err)
		}
		f := faucet.New(faucet.Config{
			Token:         addrs.BaseToken,
			Amount:        amount,
			BaseDecimals:  baseMeta.Decimals,
			RatePerSecond: cfg.FaucetRatePerMinute / 60,
			RateBurst:     cfg.FaucetBurst,
		}, client, key, logger)
		if err := f.Start(ctx); err != nil {
			return err
		}
		dispenser = f
		logger.Info("faucet enabled", zap.String("signer", f.Address().Hex()))
	}

	server := api.NewServer(builder, source, ledger, dispenser, api.NewMetrics(), logger, cfg.RequestTimeout)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := parseAddresses(cfg)
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required for indexing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	conn := contracts.NewConnector(client, addrs)
	runner := indexer.NewRunner(indexer.RunConfig{
		Orderbook:         addrs.Orderbook,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		CallTimeout:       cfg.CallTimeout,
	}, client, conn.Orderbook(), conn.Pool(), store, logger)

	logger.Info("index start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("orderbook", addrs.Orderbook.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func parseAddresses(cfg config.Config) (contracts.Addresses, error) {
	var addrs contracts.Addresses
	for _, field := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"base-token", cfg.BaseToken, &addrs.BaseToken},
		{"pool", cfg.Pool, &addrs.Pool},
		{"orderbook", cfg.Orderbook, &addrs.Orderbook},
	} {
		if !common.IsHexAddress(field.value) {
			return contracts.Addresses{}, fmt.Errorf("%s: %q is not a valid address", field.name, field.value)
		}
		*field.dst = common.HexToAddress(field.value)
	}
	if cfg.RPCURL == "" {
		return contracts.Addresses{}, fmt.Errorf("rpc url is required")
	}
	return addrs, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
