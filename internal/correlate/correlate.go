// Package correlate joins conversion events with the fee-proxy transfers emitted in the same transaction.
package correlate

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"paymentScope/internal/contracts"
)

// ErrProxyLogNotFound is returned when a conversion has no transfer in its transaction.
var ErrProxyLogNotFound = errors.New("proxy log not found")

// Predicates are the inclusion rules a correlated pair must satisfy.
type Predicates struct {
	// AcceptedTokens is the token allow-list. Nil accepts every token.
	AcceptedTokens  []string
	MaxRateTimespan uint64
	CurrencyHash    string
	To              string
}

// Pair is a conversion event and the transfer it paid through.
type Pair struct {
	TxHash     string
	Conversion contracts.Conversion
	Transfer   contracts.Transfer
}

// Correlate joins conversions to transfers by transaction hash and keeps the pairs accepted by p.
// A conversion without a transfer in its transaction fails the whole correlation.
func Correlate(conversions []contracts.Conversion, transfers []contracts.Transfer, p Predicates) ([]Pair, error) {
	byTx := make(map[string]contracts.Transfer, len(transfers))
	for _, transfer := range transfers {
		key := strings.ToLower(transfer.TxHash)
		if _, seen := byTx[key]; !seen {
			byTx[key] = transfer
		}
	}

	pairs := make([]Pair, 0, len(conversions))
	for _, conversion := range conversions {
		transfer, ok := byTx[strings.ToLower(conversion.TxHash)]
		if !ok {
			return nil, fmt.Errorf("%w: tx %s", ErrProxyLogNotFound, conversion.TxHash)
		}
		if !p.Accept(transfer.TokenAddress, conversion.MaxRateTimespan, conversion.Currency, transfer.To) {
			continue
		}
		pairs = append(pairs, Pair{
			TxHash:     conversion.TxHash,
			Conversion: conversion,
			Transfer:   transfer,
		})
	}
	return pairs, nil
}

// Accept reports whether a payment passes every predicate.
// An empty token address is a native payment and is not checked against the allow-list.
func (p Predicates) Accept(tokenAddress string, rateTimespan *big.Int, currency, to string) bool {
	return p.acceptsToken(tokenAddress) &&
		p.acceptsRate(rateTimespan) &&
		strings.EqualFold(p.CurrencyHash, currency) &&
		strings.EqualFold(p.To, to)
}

func (p Predicates) acceptsToken(tokenAddress string) bool {
	if p.AcceptedTokens == nil || tokenAddress == "" {
		return true
	}
	for _, token := range p.AcceptedTokens {
		if strings.EqualFold(token, tokenAddress) {
			return true
		}
	}
	return false
}

func (p Predicates) acceptsRate(rateTimespan *big.Int) bool {
	if rateTimespan == nil {
		return true
	}
	return new(big.Int).SetUint64(p.MaxRateTimespan).Cmp(rateTimespan) >= 0
}
