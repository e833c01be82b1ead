package retriever

import (
	"context"
	"fmt"

	"paymentScope/internal/model"
	"paymentScope/internal/reference"
	"paymentScope/internal/thegraph"
)

// PaymentsQuerier is the subgraph read side used by GraphRetriever.
type PaymentsQuerier interface {
	GetPaymentsAndEscrowState(ctx context.Context, vars thegraph.PaymentsVariables) (thegraph.PaymentsAndEscrowState, error)
}

// GraphRetriever reads indexed proxy payments and escrow events from a subgraph.
type GraphRetriever struct {
	client PaymentsQuerier
}

func NewGraphRetriever(client PaymentsQuerier) *GraphRetriever {
	return &GraphRetriever{client: client}
}

func (r *GraphRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}
	hashed, err := reference.Hashed(q.PaymentReference)
	if err != nil {
		return model.TransferEvents{}, err
	}
	state, err := r.client.GetPaymentsAndEscrowState(ctx, thegraph.PaymentsVariables{
		Reference:       hashed,
		To:              q.ToAddress,
		TokenAddress:    q.TokenAddress,
		ContractAddress: q.ContractAddress,
	})
	if err != nil {
		return model.TransferEvents{}, err
	}

	out := emptyEvents()
	for _, payment := range state.Payments {
		out.PaymentEvents = append(out.PaymentEvents, paymentEvent(payment, q))
	}
	for _, escrow := range state.EscrowEvents {
		name, ok := escrowEventName(escrow.EventType)
		if !ok {
			return model.TransferEvents{}, fmt.Errorf("unknown escrow event type %q in tx %s", escrow.EventType, escrow.TxHash)
		}
		out.EscrowEvents = append(out.EscrowEvents, model.PaymentEvent{
			Amount:    "0",
			Name:      name,
			Timestamp: model.Timestamp(escrow.Timestamp),
			Parameters: model.EventParameters{
				Block:    escrow.Block,
				TxHash:   escrow.TxHash,
				From:     escrow.From,
				GasUsed:  escrow.GasUsed,
				GasPrice: escrow.GasPrice,
			},
		})
	}
	return out, nil
}

func paymentEvent(payment thegraph.Payment, q Query) model.PaymentEvent {
	return model.PaymentEvent{
		Amount:    payment.Amount,
		Name:      q.EventName,
		Timestamp: model.Timestamp(payment.Timestamp),
		Parameters: model.EventParameters{
			Block:        payment.Block,
			TxHash:       payment.TxHash,
			To:           q.ToAddress,
			From:         payment.From,
			FeeAddress:   deref(payment.FeeAddress),
			FeeAmount:    deref(payment.FeeAmount),
			TokenAddress: deref(payment.TokenAddress),
			GasUsed:      payment.GasUsed,
			GasPrice:     payment.GasPrice,
		},
	}
}

// escrowEventName maps subgraph escrow event types to event names.
func escrowEventName(eventType string) (model.EventName, bool) {
	switch eventType {
	case "freezeEscrow", "RequestFrozen", string(model.EventFreezeEscrow):
		return model.EventFreezeEscrow, true
	case "initiateEmergencyClaim", "InitiatedEmergencyClaim", string(model.EventInitiateEmergencyClaim):
		return model.EventInitiateEmergencyClaim, true
	case "revertEmergencyClaim", "RevertedEmergencyClaim", string(model.EventRevertEmergencyClaim):
		return model.EventRevertEmergencyClaim, true
	case "paidEscrow", "paidIssuer", string(model.EventPaidEscrow):
		return model.EventPaidEscrow, true
	default:
		return "", false
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
