package detector

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/sync/errgroup"

	"paymentScope/internal/aggregate"
	"paymentScope/internal/extension"
	"paymentScope/internal/model"
)

// Meta sums the balances of the sub payment networks of a request.
type Meta struct {
	factory *Factory
	builder *extension.Builder
}

func NewMeta(factory *Factory, version string) *Meta {
	return &Meta{factory: factory, builder: extension.NewBuilder(model.NetworkMeta, version)}
}

func (d *Meta) ID() model.PaymentNetworkID { return model.NetworkMeta }

func (d *Meta) Extension() *extension.Builder { return d.builder }

// GetBalance adds the payments declared on the meta extension to the results of every sub network detector.
// The first failing sub network fails the whole detection.
func (d *Meta) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	ext, ok := req.PaymentExtension(model.NetworkMeta)
	if !ok {
		return balanceError(wrongExtension(model.NetworkMeta))
	}
	if len(ext.Values.SubNetworks) == 0 {
		return balanceError(missingParameter("subNetworks"))
	}

	keys := make([]string, 0, len(ext.Values.SubNetworks))
	for key := range ext.Values.SubNetworks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pns := make([]PaymentNetwork, len(keys))
	subReqs := make([]*model.Request, len(keys))
	for i, key := range keys {
		sub := ext.Values.SubNetworks[key]
		if !model.IsMetaSubNetwork(sub.ID) {
			return balanceError(fmt.Errorf("sub network %s: %s is not supported for meta-pn detection", key, sub.ID))
		}
		pn, err := d.factory.Create(sub.ID, req.Currency.Type, chainOf(req, sub), sub.Version)
		if err != nil {
			return balanceError(fmt.Errorf("sub network %s: %w", key, err))
		}
		subReq := *req
		subReq.Extensions = map[model.PaymentNetworkID]model.ExtensionState{sub.ID: sub}
		pns[i], subReqs[i] = pn, &subReq
	}

	results := make([]model.BalanceWithEvents, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i := range pns {
		i := i
		g.Go(func() error {
			results[i] = pns[i].GetBalance(gctx, subReqs[i])
			return nil
		})
	}
	_ = g.Wait()

	events := DeclaredEvents(ext)
	var (
		escrowEvents []model.PaymentEvent
		feeEvents    []model.PaymentEvent
		feeTotal     *big.Int
	)
	for _, result := range results {
		if result.Failed() {
			return result
		}
		events = append(events, result.Events...)
		escrowEvents = append(escrowEvents, result.EscrowEvents...)
		if result.FeeBalance == nil || result.FeeBalance.Balance == nil {
			continue
		}
		fee, ok := new(big.Int).SetString(*result.FeeBalance.Balance, 10)
		if !ok {
			return balanceError(fmt.Errorf("invalid fee balance %s", *result.FeeBalance.Balance))
		}
		if feeTotal == nil {
			feeTotal = new(big.Int)
		}
		feeTotal.Add(feeTotal, fee)
		feeEvents = append(feeEvents, result.FeeBalance.Events...)
	}

	balance, sorted, err := aggregate.Aggregate(events)
	if err != nil {
		return balanceError(err)
	}
	out := model.NewBalance(balance, sorted)
	if len(escrowEvents) > 0 {
		out.EscrowEvents = escrowEvents
	}
	if feeTotal != nil {
		acc := aggregate.NewAccumulator()
		for _, event := range feeEvents {
			if err := acc.AddEvent(event); err != nil {
				return balanceError(err)
			}
		}
		feeBalance := model.NewBalance(feeTotal, acc.Events())
		out.FeeBalance = &feeBalance
	}
	return out
}
