package retriever

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"paymentScope/internal/model"
	"paymentScope/internal/thegraph"
)

// superfluidTag prefixes the payment reference in the user data of tagged flows.
const superfluidTag = "0xbeefac"

// noFlowType marks the closing point added for a stream that is still running.
const noFlowType = -1

// StreamQuerier is the subgraph read side used by SuperfluidRetriever.
type StreamQuerier interface {
	GetSuperFluidEvents(ctx context.Context, vars thegraph.SuperfluidVariables) (thegraph.SuperfluidEvents, error)
}

// SuperfluidRetriever turns Superfluid flow updates into payment events. Each
// constant-rate segment of a stream paid to the reference becomes one event
// whose amount is the rate times the segment duration.
type SuperfluidRetriever struct {
	client StreamQuerier
	now    func() time.Time
}

func NewSuperfluidRetriever(client StreamQuerier) *SuperfluidRetriever {
	return &SuperfluidRetriever{client: client, now: time.Now}
}

type flowPoint struct {
	txHash    string
	block     uint64
	timestamp uint64
	rate      *big.Int
	oldRate   *big.Int
	kind      int
}

func (r *SuperfluidRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}
	result, err := r.client.GetSuperFluidEvents(ctx, thegraph.SuperfluidVariables{
		Reference:    superfluidTag + q.PaymentReference,
		To:           q.ToAddress,
		TokenAddress: q.TokenAddress,
	})
	if err != nil {
		return model.TransferEvents{}, err
	}

	points := make([]flowPoint, 0, len(result.Flow)+len(result.Untagged)+1)
	for _, raw := range append(append([]thegraph.FlowUpdatedEvent{}, result.Flow...), result.Untagged...) {
		point, err := parseFlowPoint(raw)
		if err != nil {
			return model.TransferEvents{}, err
		}
		points = append(points, point)
	}
	out := emptyEvents()
	if len(points) == 0 {
		return out, nil
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].timestamp < points[j].timestamp })

	last := points[len(points)-1]
	ongoing := last.rate.Sign() > 0
	if ongoing {
		now := uint64(r.now().Unix())
		if now < last.timestamp {
			now = last.timestamp
		}
		points = append(points, flowPoint{
			txHash:    last.txHash,
			block:     last.block,
			timestamp: now,
			rate:      new(big.Int),
			oldRate:   last.rate,
			kind:      noFlowType,
		})
	}

	// Only a start or update followed by an update or end delimits a paid segment.
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if prev.kind == thegraph.FlowDeleted || cur.kind == thegraph.FlowCreated {
			continue
		}
		diff := new(big.Int).Sub(prev.rate, prev.oldRate)
		if diff.Sign() < 0 {
			// TODO: account for a rate decrease of a running stream instead of skipping the segment.
			continue
		}
		amount := diff.Mul(diff, new(big.Int).SetUint64(cur.timestamp-prev.timestamp))
		out.PaymentEvents = append(out.PaymentEvents, model.PaymentEvent{
			Amount:    amount.String(),
			Name:      q.EventName,
			Timestamp: model.Timestamp(cur.timestamp),
			Parameters: model.EventParameters{
				To:              q.ToAddress,
				Block:           cur.block,
				TxHash:          cur.txHash,
				StreamEventName: streamEventName(cur.kind),
			},
		})
	}
	if ongoing && len(out.PaymentEvents) > 0 {
		out.PaymentEvents[len(out.PaymentEvents)-1].Parameters.StreamEventName = model.StreamStart
	}
	return out, nil
}

func parseFlowPoint(raw thegraph.FlowUpdatedEvent) (flowPoint, error) {
	block, err := strconv.ParseUint(string(raw.BlockNumber), 10, 64)
	if err != nil {
		return flowPoint{}, fmt.Errorf("flow update %s: block number %q: %w", raw.TransactionHash, raw.BlockNumber, err)
	}
	timestamp, err := strconv.ParseUint(string(raw.Timestamp), 10, 64)
	if err != nil {
		return flowPoint{}, fmt.Errorf("flow update %s: timestamp %q: %w", raw.TransactionHash, raw.Timestamp, err)
	}
	rate, ok := new(big.Int).SetString(string(raw.FlowRate), 10)
	if !ok {
		return flowPoint{}, fmt.Errorf("flow update %s: flow rate %q", raw.TransactionHash, raw.FlowRate)
	}
	oldRate, ok := new(big.Int).SetString(string(raw.OldFlowRate), 10)
	if !ok {
		return flowPoint{}, fmt.Errorf("flow update %s: old flow rate %q", raw.TransactionHash, raw.OldFlowRate)
	}
	return flowPoint{
		txHash:    raw.TransactionHash,
		block:     block,
		timestamp: timestamp,
		rate:      rate,
		oldRate:   oldRate,
		kind:      raw.Type,
	}, nil
}

func streamEventName(kind int) string {
	switch kind {
	case thegraph.FlowCreated:
		return model.StreamStart
	case thegraph.FlowUpdated:
		return model.StreamUpdate
	case thegraph.FlowDeleted:
		return model.StreamEnd
	default:
		return ""
	}
}
