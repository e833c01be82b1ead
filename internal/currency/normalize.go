package currency

import (
	"errors"
	"fmt"
	"math/big"

	"paymentScope/internal/model"
)

// OracleDecimals is the fixed decimal convention of the conversion oracle for fiat amounts.
const OracleDecimals = 8

// ErrUnsupportedCurrencyType is returned for currency types the oracle cannot scale.
var ErrUnsupportedCurrencyType = errors.New("unsupported currency type")

// Scale returns the power of ten between the currency and the oracle convention.
func Scale(def Definition) (int, error) {
	switch def.Type {
	case model.CurrencyISO4217:
		if def.Decimals >= OracleDecimals {
			return 0, nil
		}
		return OracleDecimals - def.Decimals, nil
	case model.CurrencyETH, model.CurrencyERC20, model.CurrencyERC777, model.CurrencyBTC:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrencyType, def.Type)
	}
}

// Pad converts an amount in currency units to the oracle convention.
func Pad(amount *big.Int, def Definition) (*big.Int, error) {
	factor, err := scaleFactor(def)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(amount, factor), nil
}

// Unpad converts an oracle amount back to currency units.
func Unpad(amount *big.Int, def Definition) (*big.Int, error) {
	factor, err := scaleFactor(def)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Quo(amount, factor), nil
}

// UnpadString is Unpad over base-unit integer strings.
func UnpadString(amount string, def Definition) (string, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount: %q", amount)
	}
	out, err := Unpad(value, def)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func scaleFactor(def Definition) (*big.Int, error) {
	scale, err := Scale(def)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil), nil
}
