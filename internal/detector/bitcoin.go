package detector

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"paymentScope/internal/aggregate"
	"paymentScope/internal/btc"
	"paymentScope/internal/extension"
	"paymentScope/internal/model"
)

// ErrNoBitcoinProviders is returned when bitcoin detection runs without providers.
var ErrNoBitcoinProviders = errors.New("no bitcoin providers configured")

// BitcoinAddressBased detects payments to the payment address and refunds to the refund address.
type BitcoinAddressBased struct {
	id       model.PaymentNetworkID
	network  btc.Network
	builder  *extension.Builder
	detector *btc.Detector
}

func NewBitcoinAddressBased(id model.PaymentNetworkID, network btc.Network, version string, detector *btc.Detector) *BitcoinAddressBased {
	return &BitcoinAddressBased{
		id:       id,
		network:  network,
		builder:  extension.NewBuilder(id, version),
		detector: detector,
	}
}

func (d *BitcoinAddressBased) ID() model.PaymentNetworkID { return d.id }

func (d *BitcoinAddressBased) Extension() *extension.Builder { return d.builder }

func (d *BitcoinAddressBased) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	ext, ok := req.PaymentExtension(d.id)
	if !ok {
		return balanceError(wrongExtension(d.id))
	}
	if d.detector == nil {
		return balanceError(ErrNoBitcoinProviders)
	}

	var payments, refunds btc.Result
	g, gctx := errgroup.WithContext(ctx)
	if address := ext.Values.PaymentAddress; address != "" {
		g.Go(func() error {
			var err error
			payments, err = d.detector.GetBalance(gctx, d.network, address, model.EventPayment)
			return err
		})
	}
	if address := ext.Values.RefundAddress; address != "" {
		g.Go(func() error {
			var err error
			refunds, err = d.detector.GetBalance(gctx, d.network, address, model.EventRefund)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return balanceError(err)
	}

	events := make([]model.PaymentEvent, 0, len(payments.Events)+len(refunds.Events))
	events = append(events, payments.Events...)
	events = append(events, refunds.Events...)
	balance, sorted, err := aggregate.Aggregate(events)
	if err != nil {
		return balanceError(err)
	}
	return model.NewBalance(balance, sorted)
}
