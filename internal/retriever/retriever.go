// Package retriever turns proxy logs, subgraph rows and indexed payments into payment events.
package retriever

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"paymentScope/internal/model"
)

// ErrMissingReference is returned when a query has no payment reference or destination.
var ErrMissingReference = errors.New("payment reference and destination are required")

// Query describes one retrieval: the events of a reference paid to an address through a proxy.
type Query struct {
	// PaymentReference is the raw 16-hex-character reference.
	PaymentReference string
	ToAddress        string
	ContractAddress  string
	CreationBlock    uint64
	EventName        model.EventName
	Chain            string

	// TokenAddress restricts transfers to one token. Nil selects native transfers on the subgraph
	// and disables the token check on logs.
	TokenAddress    *string
	AcceptedTokens  []string
	MaxRateTimespan uint64
}

func (q Query) validate() error {
	if q.PaymentReference == "" || q.ToAddress == "" {
		return ErrMissingReference
	}
	return nil
}

// Retriever returns the events matching a query.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) (model.TransferEvents, error)
}

// Func adapts a function to Retriever.
type Func func(ctx context.Context, q Query) (model.TransferEvents, error)

func (f Func) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	return f(ctx, q)
}

func tokenMatches(want *string, got string) bool {
	return want == nil || strings.EqualFold(*want, got)
}

func amountString(value *big.Int) string {
	if value == nil {
		return ""
	}
	return value.String()
}

func emptyEvents() model.TransferEvents {
	return model.TransferEvents{PaymentEvents: []model.PaymentEvent{}, EscrowEvents: []model.PaymentEvent{}}
}
