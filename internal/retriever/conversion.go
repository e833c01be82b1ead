package retriever

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"paymentScope/internal/chain"
	"paymentScope/internal/contracts"
	"paymentScope/internal/correlate"
	"paymentScope/internal/currency"
	"paymentScope/internal/model"
	"paymentScope/internal/reference"
	"paymentScope/internal/thegraph"
)

// ConversionRetriever reads conversion payments: a conversion log from the conversion proxy
// joined with the fee-proxy transfer emitted in the same transaction.
// Query.ContractAddress is the conversion proxy.
type ConversionRetriever struct {
	source     chain.LogSource
	conversion *contracts.Decoder
	transfer   *contracts.Decoder
	feeProxy   contracts.Deployment
	currency   currency.Definition
}

// NewConversionRetriever builds a retriever for requests denominated in requestCurrency.
func NewConversionRetriever(
	source chain.LogSource,
	conversion *contracts.Decoder,
	transfer *contracts.Decoder,
	feeProxy contracts.Deployment,
	requestCurrency currency.Definition,
) *ConversionRetriever {
	return &ConversionRetriever{
		source:     source,
		conversion: conversion,
		transfer:   transfer,
		feeProxy:   feeProxy,
		currency:   requestCurrency,
	}
}

func (r *ConversionRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}

	var (
		conversions []contracts.Conversion
		transfers   []contracts.Transfer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conversions, err = fetchConversions(gctx, r.source, r.conversion, q.PaymentReference, q.ContractAddress, q.CreationBlock)
		return err
	})
	g.Go(func() error {
		var err error
		transfers, err = fetchTransfers(gctx, r.source, r.transfer, q.PaymentReference, r.feeProxy.Address, r.feeProxy.CreationBlock)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TransferEvents{}, err
	}

	pairs, err := correlate.Correlate(conversions, transfers, predicates(q, r.currency))
	if err != nil {
		return model.TransferEvents{}, err
	}

	out := emptyEvents()
	for _, pair := range pairs {
		amount, err := currency.Unpad(pair.Conversion.Amount, r.currency)
		if err != nil {
			return model.TransferEvents{}, err
		}
		feeAmount, err := currency.Unpad(pair.Conversion.FeeAmount, r.currency)
		if err != nil {
			return model.TransferEvents{}, err
		}
		ts, err := r.source.BlockTimestamp(ctx, pair.Conversion.Block)
		if err != nil {
			return model.TransferEvents{}, err
		}
		out.PaymentEvents = append(out.PaymentEvents, model.PaymentEvent{
			Amount:    amount.String(),
			Name:      q.EventName,
			Timestamp: model.Timestamp(ts),
			Parameters: model.EventParameters{
				Block:             pair.Conversion.Block,
				TxHash:            pair.TxHash,
				To:                q.ToAddress,
				FeeAddress:        pair.Transfer.FeeAddress,
				FeeAmount:         feeAmount.String(),
				FeeAmountInCrypto: amountString(pair.Transfer.FeeAmount),
				AmountInCrypto:    amountString(pair.Transfer.Amount),
				TokenAddress:      pair.Transfer.TokenAddress,
				MaxRateTimespan:   amountString(pair.Conversion.MaxRateTimespan),
			},
		})
	}
	return out, nil
}

// ConversionQuerier is the subgraph read side used by GraphConversionRetriever.
type ConversionQuerier interface {
	GetConversionPayments(ctx context.Context, vars thegraph.ConversionVariables) ([]thegraph.Payment, error)
}

// GraphConversionRetriever reads conversion payments from a subgraph.
// Rows are checked with the same predicates as correlated logs.
type GraphConversionRetriever struct {
	client   ConversionQuerier
	currency currency.Definition
}

func NewGraphConversionRetriever(client ConversionQuerier, requestCurrency currency.Definition) *GraphConversionRetriever {
	return &GraphConversionRetriever{client: client, currency: requestCurrency}
}

func (r *GraphConversionRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}
	hashed, err := reference.Hashed(q.PaymentReference)
	if err != nil {
		return model.TransferEvents{}, err
	}
	payments, err := r.client.GetConversionPayments(ctx, thegraph.ConversionVariables{
		Reference:       hashed,
		To:              q.ToAddress,
		Currency:        r.currency.Hash,
		MaxRateTimespan: q.MaxRateTimespan,
		ContractAddress: q.ContractAddress,
	})
	if err != nil {
		return model.TransferEvents{}, err
	}

	p := predicates(q, r.currency)
	out := emptyEvents()
	for _, payment := range payments {
		var rate *big.Int
		if payment.MaxRateTimespan != nil {
			rate = new(big.Int).SetUint64(*payment.MaxRateTimespan)
		}
		if !p.Accept(deref(payment.TokenAddress), rate, deref(payment.Currency), q.ToAddress) {
			continue
		}
		amount, err := currency.UnpadString(payment.Amount, r.currency)
		if err != nil {
			return model.TransferEvents{}, fmt.Errorf("payment %s: %w", payment.TxHash, err)
		}
		event := paymentEvent(payment, q)
		event.Amount = amount
		if fee := deref(payment.FeeAmount); fee != "" {
			if event.Parameters.FeeAmount, err = currency.UnpadString(fee, r.currency); err != nil {
				return model.TransferEvents{}, fmt.Errorf("payment %s: %w", payment.TxHash, err)
			}
		}
		event.Parameters.AmountInCrypto = deref(payment.AmountInCrypto)
		event.Parameters.FeeAmountInCrypto = deref(payment.FeeAmountInCrypto)
		if rate != nil {
			event.Parameters.MaxRateTimespan = rate.String()
		}
		out.PaymentEvents = append(out.PaymentEvents, event)
	}
	return out, nil
}

func predicates(q Query, requestCurrency currency.Definition) correlate.Predicates {
	return correlate.Predicates{
		AcceptedTokens:  q.AcceptedTokens,
		MaxRateTimespan: q.MaxRateTimespan,
		CurrencyHash:    requestCurrency.Hash,
		To:              q.ToAddress,
	}
}
