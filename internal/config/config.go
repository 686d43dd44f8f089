// Package config merges config file, environment variables, and flags for
// the gateway commands.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds settings for the HTTP gateway and the order-event indexer.
type Config struct {
	RPCURL     string
	ListenAddr string

	BaseToken string
	Pool      string
	Orderbook string

	CallTimeout    time.Duration
	RequestTimeout time.Duration

	PGDSN string

	// Faucet. An empty key disables the endpoint. The key has no flag;
	// it is supplied via GATEWAY_FAUCET_KEY.
	FaucetKey           string
	FaucetAmount        string
	FaucetRatePerMinute float64
	FaucetBurst         int

	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("call-timeout", 5*time.Second)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("faucet-amount", "1000")
	v.SetDefault("faucet-rate-per-minute", 1.0)
	v.SetDefault("faucet-burst", 1)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		ListenAddr:          v.GetString("listen"),
		BaseToken:           v.GetString("base-token"),
		Pool:                v.GetString("pool"),
		Orderbook:           v.GetString("orderbook"),
		CallTimeout:         v.GetDuration("call-timeout"),
		RequestTimeout:      v.GetDuration("request-timeout"),
		PGDSN:               v.GetString("pg-dsn"),
		FaucetKey:           v.GetString("faucet-key"),
		FaucetAmount:        v.GetString("faucet-amount"),
		FaucetRatePerMinute: v.GetFloat64("faucet-rate-per-minute"),
		FaucetBurst:         v.GetInt("faucet-burst"),
		FromBlock:           v.GetUint64("from"),
		ToBlock:             v.GetUint64("to"),
		BatchSize:           v.GetUint64("batch-size"),
		Checkpoint:          v.GetString("checkpoint"),
		CheckpointEnabled:   v.GetBool("checkpoint-enabled"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}
