// Package aggregate folds payment events into signed balances.
package aggregate

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"paymentScope/internal/model"
)

// Accumulator holds the running balance of a detection.
type Accumulator struct {
	Balance *big.Int
	events  []model.PaymentEvent
}

func NewAccumulator() *Accumulator {
	return &Accumulator{Balance: big.NewInt(0)}
}

// AddEvent applies one event: payments add, refunds subtract, anything else is kept at zero weight.
func (a *Accumulator) AddEvent(event model.PaymentEvent) error {
	amount, err := parseBigInt(event.Amount)
	if err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount in %s event: %s", event.Name, event.Amount)
	}

	switch event.Name {
	case model.EventPayment:
		a.Balance.Add(a.Balance, amount)
	case model.EventRefund:
		a.Balance.Sub(a.Balance, amount)
	}
	a.events = append(a.events, event)
	return nil
}

// Events returns the accumulated events, stable-sorted by timestamp. Missing timestamps sort first.
func (a *Accumulator) Events() []model.PaymentEvent {
	out := make([]model.PaymentEvent, len(a.events))
	copy(out, a.events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampOf() < out[j].TimestampOf()
	})
	return out
}

// Aggregate folds events into a balance and returns them in chronological order.
func Aggregate(events []model.PaymentEvent) (*big.Int, []model.PaymentEvent, error) {
	acc := NewAccumulator()
	for _, event := range events {
		if err := acc.AddEvent(event); err != nil {
			return nil, nil, err
		}
	}
	return acc.Balance, acc.Events(), nil
}

// FeeBalance sums the fees of payment events collected by feeAddress.
// The returned events carry the fee amount as their amount.
func FeeBalance(events []model.PaymentEvent, feeAddress string) (*big.Int, []model.PaymentEvent, error) {
	acc := NewAccumulator()
	if feeAddress == "" {
		return acc.Balance, acc.Events(), nil
	}
	for _, event := range events {
		if event.Name != model.EventPayment || event.Parameters.FeeAmount == "" {
			continue
		}
		if !strings.EqualFold(event.Parameters.FeeAddress, feeAddress) {
			continue
		}
		fee := event
		fee.Amount = event.Parameters.FeeAmount
		if err := acc.AddEvent(fee); err != nil {
			return nil, nil, err
		}
	}
	return acc.Balance, acc.Events(), nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
