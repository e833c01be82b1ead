package currency

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a base-unit integer string with the given number of decimals.
func FormatUnits(amount string, decimals int) (string, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount: %q", amount)
	}
	return decimal.NewFromBigInt(value, int32(-decimals)).String(), nil
}

// ParseUnits converts a human amount to base units. Extra precision is truncated.
func ParseUnits(amount string, decimals int) (string, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return value.Shift(int32(decimals)).Truncate(0).String(), nil
}
