package currency

import (
	"strings"

	"paymentScope/internal/model"
)

// Registry resolves currencies by storage form or hash.
type Registry interface {
	FromStorageCurrency(c model.Currency) (*Definition, bool)
	FromHash(hash, network string) (*Definition, bool)
}

// StaticRegistry is an in-memory Registry.
type StaticRegistry struct {
	defs []Definition
}

// NewStaticRegistry builds a registry, filling missing hashes.
func NewStaticRegistry(defs []Definition) *StaticRegistry {
	out := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if def.Hash == "" {
			def.Hash = Hash(def.Storage())
		}
		out = append(out, def)
	}
	return &StaticRegistry{defs: out}
}

// DefaultRegistry lists the fiat, native and token currencies used by the bundled networks.
func DefaultRegistry() *StaticRegistry {
	return NewStaticRegistry([]Definition{
		{Symbol: "USD", Decimals: 2, Type: model.CurrencyISO4217},
		{Symbol: "EUR", Decimals: 2, Type: model.CurrencyISO4217},
		{Symbol: "GBP", Decimals: 2, Type: model.CurrencyISO4217},
		{Symbol: "CHF", Decimals: 2, Type: model.CurrencyISO4217},
		{Symbol: "JPY", Decimals: 0, Type: model.CurrencyISO4217},
		{Symbol: "BTC", Decimals: 8, Type: model.CurrencyBTC, Network: "mainnet"},
		{Symbol: "BTC", Decimals: 8, Type: model.CurrencyBTC, Network: "testnet"},
		{Symbol: "ETH", Decimals: 18, Type: model.CurrencyETH, Network: "mainnet"},
		{Symbol: "ETH", Decimals: 18, Type: model.CurrencyETH, Network: "goerli"},
		{Symbol: "MATIC", Decimals: 18, Type: model.CurrencyETH, Network: "matic"},
		{Symbol: "xDAI", Decimals: 18, Type: model.CurrencyETH, Network: "xdai"},
		{Symbol: "DAI", Decimals: 18, Type: model.CurrencyERC20, Network: "mainnet", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
		{Symbol: "USDC", Decimals: 6, Type: model.CurrencyERC20, Network: "mainnet", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		{Symbol: "USDT", Decimals: 6, Type: model.CurrencyERC20, Network: "mainnet", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{Symbol: "USDT-tron", Decimals: 6, Type: model.CurrencyERC20, Network: "tron", Address: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"},
	})
}

// FromStorageCurrency resolves a storage currency.
func (r *StaticRegistry) FromStorageCurrency(c model.Currency) (*Definition, bool) {
	for i := range r.defs {
		def := &r.defs[i]
		if def.Type != c.Type {
			continue
		}
		switch c.Type {
		case model.CurrencyISO4217:
			if strings.EqualFold(def.Symbol, c.Value) {
				return def, true
			}
		case model.CurrencyERC20, model.CurrencyERC777:
			if strings.EqualFold(def.Address, c.Value) && sameNetwork(def.Network, c.Network) {
				return def, true
			}
		default:
			if sameNetwork(def.Network, c.Network) {
				return def, true
			}
		}
	}
	return nil, false
}

// FromHash resolves a currency hash. An empty network matches any chain.
func (r *StaticRegistry) FromHash(hash, network string) (*Definition, bool) {
	for i := range r.defs {
		def := &r.defs[i]
		if !strings.EqualFold(def.Hash, hash) {
			continue
		}
		if network == "" || def.Network == "" || def.Network == network {
			return def, true
		}
	}
	return nil, false
}

func sameNetwork(a, b string) bool {
	if a == "" {
		a = "mainnet"
	}
	if b == "" {
		b = "mainnet"
	}
	return a == b
}
