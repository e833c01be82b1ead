package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"paymentScope/internal/currency"
	"paymentScope/internal/model"
)

const defaultCacheSize = 1024

// Callers hands out a Caller per chain.
type Callers interface {
	Caller(ctx context.Context, chainName string) (Caller, error)
}

// CallersFunc adapts a function to Callers.
type CallersFunc func(ctx context.Context, chainName string) (Caller, error)

func (f CallersFunc) Caller(ctx context.Context, chainName string) (Caller, error) {
	return f(ctx, chainName)
}

// Resolver describes ERC20 currencies from their contract, caching results per chain and address.
type Resolver struct {
	callers Callers
	cache   *lru.Cache[string, currency.Definition]
	logger  *zap.Logger
}

func NewResolver(callers Callers, cacheSize int, logger *zap.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, currency.Definition](cacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{callers: callers, cache: cache, logger: logger}, nil
}

// Resolve returns the definition of an ERC20 storage currency.
func (r *Resolver) Resolve(ctx context.Context, c model.Currency) (*currency.Definition, error) {
	if c.Type != model.CurrencyERC20 && c.Type != model.CurrencyERC777 {
		return nil, fmt.Errorf("cannot resolve %s currency %s from chain", c.Type, c.Value)
	}
	if !common.IsHexAddress(c.Value) {
		return nil, fmt.Errorf("invalid token address %s", c.Value)
	}
	chainName := c.Network
	if chainName == "" {
		chainName = "mainnet"
	}
	key := chainName + ":" + strings.ToLower(c.Value)
	if def, ok := r.cache.Get(key); ok {
		return &def, nil
	}

	caller, err := r.callers.Caller(ctx, chainName)
	if err != nil {
		return nil, err
	}
	meta, err := FetchMetadata(ctx, caller, common.HexToAddress(c.Value), r.logger)
	if err != nil {
		return nil, fmt.Errorf("token %s on %s: %w", c.Value, chainName, err)
	}

	def := currency.Definition{
		Symbol:   meta.Symbol,
		Decimals: int(meta.Decimals),
		Type:     c.Type,
		Network:  chainName,
		Address:  meta.Address,
	}
	def.Hash = currency.Hash(def.Storage())
	r.cache.Add(key, def)
	r.logger.Debug("token resolved from chain",
		zap.String("network", chainName),
		zap.String("token", meta.Address),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
	)
	return &def, nil
}
