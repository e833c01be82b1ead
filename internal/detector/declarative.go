package detector

import (
	"context"

	"paymentScope/internal/aggregate"
	"paymentScope/internal/extension"
	"paymentScope/internal/model"
)

// Declarative computes balances from payments and refunds declared by the request parties.
type Declarative struct {
	builder *extension.Builder
}

func NewDeclarative(version string) *Declarative {
	return &Declarative{builder: extension.NewBuilder(model.NetworkAnyDeclarative, version)}
}

func (d *Declarative) ID() model.PaymentNetworkID { return model.NetworkAnyDeclarative }

func (d *Declarative) Extension() *extension.Builder { return d.builder }

// GetBalance adds declared received payments and subtracts declared received refunds.
func (d *Declarative) GetBalance(_ context.Context, req *model.Request) model.BalanceWithEvents {
	ext, ok := req.PaymentExtension(model.NetworkAnyDeclarative)
	if !ok {
		return balanceError(wrongExtension(model.NetworkAnyDeclarative))
	}
	balance, events, err := aggregate.Aggregate(DeclaredEvents(ext))
	if err != nil {
		return balanceError(err)
	}
	return model.NewBalance(balance, events)
}

// DeclaredEvents returns the received payments and refunds declared on an extension.
// Sent declarations are informative and do not count.
func DeclaredEvents(ext model.ExtensionState) []model.PaymentEvent {
	events := make([]model.PaymentEvent, 0, len(ext.Events))
	for _, declared := range ext.Events {
		var name model.EventName
		switch declared.Name {
		case extension.ActionDeclareReceivedPayment:
			name = model.EventPayment
		case extension.ActionDeclareReceivedRefund:
			name = model.EventRefund
		default:
			continue
		}
		events = append(events, model.PaymentEvent{
			Amount:    declared.Parameters.Amount,
			Name:      name,
			Timestamp: model.Timestamp(declared.Timestamp),
			Parameters: model.EventParameters{
				Note:    declared.Parameters.Note,
				TxHash:  declared.Parameters.TxHash,
				Network: declared.Parameters.Network,
			},
		})
	}
	return events
}
