// Package currency resolves request currencies and rescales amounts for the conversion oracle.
package currency

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"paymentScope/internal/model"
)

// Definition describes a currency known to the registry.
type Definition struct {
	Symbol   string             `json:"symbol"`
	Decimals int                `json:"decimals"`
	Type     model.CurrencyType `json:"type"`
	Network  string             `json:"network,omitempty"`
	Address  string             `json:"address,omitempty"`
	Hash     string             `json:"hash"`
}

// Storage returns the storage form of the definition.
func (d Definition) Storage() model.Currency {
	switch d.Type {
	case model.CurrencyERC20, model.CurrencyERC777:
		return model.Currency{Type: d.Type, Value: d.Address, Network: d.Network}
	default:
		return model.Currency{Type: d.Type, Value: d.Symbol, Network: d.Network}
	}
}

// Hash returns the currency hash used by conversion proxies.
// Tokens hash to their address; other currencies to the last 20 bytes of the keccak256 of their normalized storage form.
func Hash(c model.Currency) string {
	if c.Type == model.CurrencyERC20 {
		return c.Value
	}
	fields := map[string]string{
		"type":  string(c.Type),
		"value": c.Value,
	}
	// native coins hash without their chain
	if c.Network != "" && c.Type != model.CurrencyETH && c.Type != model.CurrencyBTC {
		fields["network"] = c.Network
	}
	normalized, _ := json.Marshal(fields)
	digest := crypto.Keccak256([]byte(strings.ToLower(string(normalized))))
	return hexutil.Encode(digest[len(digest)-20:])
}
