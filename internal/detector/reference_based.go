package detector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"paymentScope/internal/aggregate"
	"paymentScope/internal/extension"
	"paymentScope/internal/model"
	"paymentScope/internal/reference"
)

// Extractor retrieves the events paid to one address under one payment reference.
type Extractor interface {
	Extract(
		ctx context.Context,
		req *model.Request,
		ext model.ExtensionState,
		eventName model.EventName,
		toAddress string,
		paymentReference string,
	) (model.TransferEvents, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req *model.Request, ext model.ExtensionState, eventName model.EventName, toAddress, paymentReference string) (model.TransferEvents, error)

func (f ExtractorFunc) Extract(ctx context.Context, req *model.Request, ext model.ExtensionState, eventName model.EventName, toAddress, paymentReference string) (model.TransferEvents, error) {
	return f(ctx, req, ext, eventName, toAddress, paymentReference)
}

// ReferenceBased detects payments tagged with the request payment reference.
// Payments are matched on the payment address reference and refunds on the refund address reference.
type ReferenceBased struct {
	id        model.PaymentNetworkID
	builder   *extension.Builder
	extractor Extractor
	withFee   bool
}

// NewReferenceBased builds a reference based detector. withFee adds the fee balance to results.
func NewReferenceBased(id model.PaymentNetworkID, version string, extractor Extractor, withFee bool) *ReferenceBased {
	return &ReferenceBased{
		id:        id,
		builder:   extension.NewBuilder(id, version),
		extractor: extractor,
		withFee:   withFee,
	}
}

func (d *ReferenceBased) ID() model.PaymentNetworkID { return d.id }

func (d *ReferenceBased) Extension() *extension.Builder { return d.builder }

func (d *ReferenceBased) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	ext, ok := req.PaymentExtension(d.id)
	if !ok {
		return balanceError(wrongExtension(d.id))
	}
	result, err := d.balance(ctx, req, ext)
	if err != nil {
		return balanceError(err)
	}
	return result
}

func (d *ReferenceBased) balance(ctx context.Context, req *model.Request, ext model.ExtensionState) (model.BalanceWithEvents, error) {
	values := ext.Values
	if values.Salt == "" {
		return model.BalanceWithEvents{}, missingParameter("salt")
	}
	if values.PaymentAddress == "" {
		return model.BalanceWithEvents{}, missingParameter("paymentAddress")
	}

	var payments, refunds model.TransferEvents
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payments, err = d.extract(gctx, req, ext, model.EventPayment, values.PaymentAddress)
		return err
	})
	if values.RefundAddress != "" {
		g.Go(func() error {
			var err error
			refunds, err = d.extract(gctx, req, ext, model.EventRefund, values.RefundAddress)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.BalanceWithEvents{}, err
	}

	events := DeclaredEvents(ext)
	events = append(events, payments.PaymentEvents...)
	events = append(events, refunds.PaymentEvents...)
	balance, sorted, err := aggregate.Aggregate(events)
	if err != nil {
		return model.BalanceWithEvents{}, err
	}

	result := model.NewBalance(balance, sorted)
	if len(payments.EscrowEvents) > 0 {
		result.EscrowEvents = payments.EscrowEvents
	}
	if d.withFee {
		fee, feeEvents, err := aggregate.FeeBalance(sorted, values.FeeAddress)
		if err != nil {
			return model.BalanceWithEvents{}, err
		}
		feeBalance := model.NewBalance(fee, feeEvents)
		result.FeeBalance = &feeBalance
	}
	return result, nil
}

func (d *ReferenceBased) extract(ctx context.Context, req *model.Request, ext model.ExtensionState, eventName model.EventName, address string) (model.TransferEvents, error) {
	ref, err := reference.Calculate(req.RequestID, ext.Values.Salt, address)
	if err != nil {
		return model.TransferEvents{}, err
	}
	return d.extractor.Extract(ctx, req, ext, eventName, address, ref)
}
