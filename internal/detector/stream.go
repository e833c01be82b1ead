package detector

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"paymentScope/internal/aggregate"
	"paymentScope/internal/contracts"
	"paymentScope/internal/extension"
	"paymentScope/internal/model"
	"paymentScope/internal/reference"
	"paymentScope/internal/retriever"
)

// Stream detects ERC777 payments streamed through Superfluid.
//
// A stream may pay a series of recurring requests. Subrequests share the
// payment reference of their master request, and request n of the series is
// credited with the part of the streamed total between n and n+1 times the
// expected amount.
type Stream struct {
	builder   *extension.Builder
	extractor Extractor
}

func NewStream(version string, extractor Extractor) *Stream {
	return &Stream{
		builder:   extension.NewBuilder(model.NetworkERC777Stream, version),
		extractor: extractor,
	}
}

func (d *Stream) ID() model.PaymentNetworkID { return model.NetworkERC777Stream }

func (d *Stream) Extension() *extension.Builder { return d.builder }

func (d *Stream) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	ext, ok := req.PaymentExtension(model.NetworkERC777Stream)
	if !ok {
		return balanceError(wrongExtension(model.NetworkERC777Stream))
	}
	result, err := d.balance(ctx, req, ext)
	if err != nil {
		return balanceError(err)
	}
	return result
}

func (d *Stream) balance(ctx context.Context, req *model.Request, ext model.ExtensionState) (model.BalanceWithEvents, error) {
	values := ext.Values
	if values.Salt == "" {
		return model.BalanceWithEvents{}, missingParameter("salt")
	}
	if values.PaymentAddress == "" {
		return model.BalanceWithEvents{}, missingParameter("paymentAddress")
	}
	expected, err := expectedAmount(req)
	if err != nil {
		return model.BalanceWithEvents{}, err
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
	total, sorted, err := aggregate.Aggregate(events)
	if err != nil {
		return model.BalanceWithEvents{}, err
	}
	if expected != nil {
		total = recurrenceShare(total, expected, values.RecurrenceNumber)
	}
	return model.NewBalance(total, sorted), nil
}

func (d *Stream) extract(ctx context.Context, req *model.Request, ext model.ExtensionState, eventName model.EventName, address string) (model.TransferEvents, error) {
	ref, err := reference.Calculate(streamRequestID(req, ext), ext.Values.Salt, address)
	if err != nil {
		return model.TransferEvents{}, err
	}
	return d.extractor.Extract(ctx, req, ext, eventName, address, ref)
}

// streamRequestID is the request id the stream reference is computed from.
func streamRequestID(req *model.Request, ext model.ExtensionState) string {
	if ext.Values.MasterRequestID != "" {
		return ext.Values.MasterRequestID
	}
	return req.RequestID
}

func expectedAmount(req *model.Request) (*big.Int, error) {
	if req.ExpectedAmount == "" {
		return nil, nil
	}
	expected, ok := new(big.Int).SetString(req.ExpectedAmount, 10)
	if !ok || expected.Sign() < 0 {
		return nil, fmt.Errorf("invalid expected amount %q", req.ExpectedAmount)
	}
	return expected, nil
}

// recurrenceShare returns the part of total credited to request n of a series:
// total - n*expected, bounded to [0, expected].
func recurrenceShare(total, expected *big.Int, n uint64) *big.Int {
	share := new(big.Int).Mul(expected, new(big.Int).SetUint64(n))
	share.Sub(total, share)
	if share.Sign() < 0 {
		return share.SetInt64(0)
	}
	if share.Cmp(expected) > 0 {
		return share.Set(expected)
	}
	return share
}

// streamExtractor reads the Superfluid flows of the request token on the request currency network.
type streamExtractor struct {
	backends *Backends
}

func (e streamExtractor) Extract(
	ctx context.Context,
	req *model.Request,
	ext model.ExtensionState,
	eventName model.EventName,
	toAddress string,
	paymentReference string,
) (model.TransferEvents, error) {
	chainName := req.Currency.Network
	if chainName == "" {
		return model.TransferEvents{}, fmt.Errorf("%w: request currency network must be defined for %s", contracts.ErrNetworkNotSupported, ext.ID)
	}
	client, ok := e.backends.Streams.For(chainName)
	if !ok {
		return model.TransferEvents{}, fmt.Errorf("%w: no superfluid subgraph for network %s", contracts.ErrNetworkNotSupported, chainName)
	}
	token := req.Currency.Value
	return retriever.NewSuperfluidRetriever(client).Retrieve(ctx, retriever.Query{
		PaymentReference: paymentReference,
		ToAddress:        toAddress,
		EventName:        eventName,
		Chain:            chainName,
		TokenAddress:     &token,
	})
}
