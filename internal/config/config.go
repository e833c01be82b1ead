package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BTC provider names accepted in btc-providers.
const (
	ProviderBlockstream = "blockstream"
	ProviderMempool     = "mempool"
)

var validate = validator.New()

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel string `validate:"oneof=debug info warn error"`

	// Networks maps a chain name to its RPC URL.
	Networks map[string]string `validate:"dive,keys,required,endkeys,url"`

	// Subgraphs maps a chain name to its payments subgraph URL.
	Subgraphs map[string]string `validate:"dive,keys,required,endkeys,url"`

	// SuperfluidSubgraphs maps a chain name to its Superfluid subgraph URL.
	SuperfluidSubgraphs map[string]string `validate:"dive,keys,required,endkeys,url"`

	// Deployments overrides proxy deployments, "artifact/chain/version" => "address@block".
	Deployments map[string]string

	HasuraURL    string `validate:"omitempty,url"`
	HasuraSecret string
	DatabaseURL  string

	BTCProviders  []string      `validate:"dive,oneof=blockstream mempool"`
	BTCRetries    int           `validate:"gte=0"`
	BTCRetryDelay time.Duration `validate:"gte=0"`

	MaxBlockRange uint64
	RPCRetries    int           `validate:"gte=0"`
	RPCRetryDelay time.Duration `validate:"gte=0"`

	Listen  string
	Request string
	Out     string

	In                string
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         int `validate:"gte=1"`
	Concurrency       int `validate:"gte=1"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("btc-providers", []string{ProviderBlockstream, ProviderMempool})
	v.SetDefault("btc-retries", 3)
	v.SetDefault("btc-retry-delay", 100*time.Millisecond)
	v.SetDefault("max-block-range", uint64(10_000))
	v.SetDefault("rpc-retries", 3)
	v.SetDefault("rpc-retry-delay", 200*time.Millisecond)
	v.SetDefault("listen", ":8080")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("batch-size", 50)
	v.SetDefault("concurrency", 4)

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
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		LogLevel:      strings.ToLower(v.GetString("log-level")),
		Networks:      stringMap(v, "networks"),
		Subgraphs:     stringMap(v, "subgraphs"),
		Deployments:   stringMap(v, "deployments"),
		HasuraURL:     v.GetString("hasura-url"),
		HasuraSecret:  v.GetString("hasura-secret"),
		DatabaseURL:   v.GetString("database-url"),
		BTCProviders:  stringList(v, "btc-providers"),
		BTCRetries:    v.GetInt("btc-retries"),
		BTCRetryDelay: v.GetDuration("btc-retry-delay"),
		MaxBlockRange: v.GetUint64("max-block-range"),
		RPCRetries:    v.GetInt("rpc-retries"),
		RPCRetryDelay: v.GetDuration("rpc-retry-delay"),
		Listen:        v.GetString("listen"),
		Request:       v.GetString("request"),
		Out:           v.GetString("out"),

		In:                v.GetString("in"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetInt("batch-size"),
		Concurrency:       v.GetInt("concurrency"),

		SuperfluidSubgraphs: stringMap(v, "superfluid-subgraphs"),
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
