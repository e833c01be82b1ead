package model

import "math/big"

// ErrorCode classifies a failed balance computation.
type ErrorCode string

const (
	ErrorUnknown             ErrorCode = "UNKNOWN"
	ErrorWrongExtension      ErrorCode = "WRONG_EXTENSION"
	ErrorNetworkNotSupported ErrorCode = "NETWORK_NOT_SUPPORTED"
	ErrorVersionNotSupported ErrorCode = "VERSION_NOT_SUPPORTED"
)

// BalanceError is the structured error of a balance computation.
type BalanceError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// BalanceWithEvents is the result of a detection: a balance with its events, or an error.
type BalanceWithEvents struct {
	Balance      *string            `json:"balance"`
	Events       []PaymentEvent     `json:"events"`
	EscrowEvents []PaymentEvent     `json:"escrowEvents,omitempty"`
	FeeBalance   *BalanceWithEvents `json:"feeBalance,omitempty"`
	Error        *BalanceError      `json:"error,omitempty"`
}

// NewBalance builds a successful result.
func NewBalance(balance *big.Int, events []PaymentEvent) BalanceWithEvents {
	value := balance.String()
	if events == nil {
		events = []PaymentEvent{}
	}
	return BalanceWithEvents{Balance: &value, Events: events}
}

// FailedBalance builds a failed result: no balance and no events.
func FailedBalance(code ErrorCode, message string) BalanceWithEvents {
	return BalanceWithEvents{
		Events: []PaymentEvent{},
		Error:  &BalanceError{Code: code, Message: message},
	}
}

// Failed reports whether the result carries an error.
func (b BalanceWithEvents) Failed() bool {
	return b.Error != nil
}
