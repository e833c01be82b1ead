package retriever

import (
	"context"
	"errors"

	"paymentScope/internal/hasura"
	"paymentScope/internal/model"
	"paymentScope/internal/reference"
)

// ErrMultipleAcceptedTokens is returned when a Hasura query names more than one token.
var ErrMultipleAcceptedTokens = errors.New("does not support multiple accepted tokens")

// chainAliases maps payment chain names to the names used by the payments index.
var chainAliases = map[string]string{
	"nile": "tron-nile",
}

// HasuraRetriever reads indexed payments for chains served by the payments index, such as Tron.
type HasuraRetriever struct {
	querier hasura.Querier
}

func NewHasuraRetriever(querier hasura.Querier) *HasuraRetriever {
	return &HasuraRetriever{querier: querier}
}

func (r *HasuraRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}
	if len(q.AcceptedTokens) > 1 {
		return model.TransferEvents{}, ErrMultipleAcceptedTokens
	}
	hashed, err := reference.Hashed(q.PaymentReference)
	if err != nil {
		return model.TransferEvents{}, err
	}

	query := hasura.PaymentsQuery{
		PaymentReference: hashed,
		ToAddress:        q.ToAddress,
		Chain:            IndexChain(q.Chain),
		ContractAddress:  q.ContractAddress,
	}
	switch {
	case len(q.AcceptedTokens) == 1:
		query.TokenAddress = q.AcceptedTokens[0]
	case q.TokenAddress != nil:
		query.TokenAddress = *q.TokenAddress
	}

	payments, err := r.querier.GetPaymentsByReference(ctx, query)
	if err != nil {
		return model.TransferEvents{}, err
	}
	out := emptyEvents()
	for _, payment := range payments {
		out.PaymentEvents = append(out.PaymentEvents, model.PaymentEvent{
			Amount:    string(payment.Amount),
			Name:      q.EventName,
			Timestamp: model.Timestamp(payment.Timestamp),
			Parameters: model.EventParameters{
				Block:        payment.BlockNumber,
				TxHash:       payment.TxHash,
				To:           payment.ToAddress,
				From:         payment.FromAddress,
				FeeAddress:   payment.FeeAddress,
				FeeAmount:    string(payment.FeeAmount),
				TokenAddress: payment.TokenAddress,
				EnergyUsed:   string(payment.EnergyUsed),
				EnergyFee:    string(payment.EnergyFee),
				NetFee:       string(payment.NetFee),
			},
		})
	}
	return out, nil
}

// IndexChain returns the chain name the payments index uses for chainName.
func IndexChain(chainName string) string {
	if alias, ok := chainAliases[chainName]; ok {
		return alias
	}
	return chainName
}
