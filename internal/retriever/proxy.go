package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"paymentScope/internal/chain"
	"paymentScope/internal/contracts"
	"paymentScope/internal/model"
	"paymentScope/internal/reference"
)

// ProxyRetriever reads reference-tagged transfers straight from proxy contract logs.
type ProxyRetriever struct {
	source  chain.LogSource
	decoder *contracts.Decoder
}

func NewProxyRetriever(source chain.LogSource, decoder *contracts.Decoder) *ProxyRetriever {
	return &ProxyRetriever{source: source, decoder: decoder}
}

// Retrieve fetches the proxy logs of the hashed reference from the proxy creation block to the chain head.
func (r *ProxyRetriever) Retrieve(ctx context.Context, q Query) (model.TransferEvents, error) {
	if err := q.validate(); err != nil {
		return model.TransferEvents{}, err
	}
	transfers, err := fetchTransfers(ctx, r.source, r.decoder, q.PaymentReference, q.ContractAddress, q.CreationBlock)
	if err != nil {
		return model.TransferEvents{}, err
	}

	out := emptyEvents()
	for _, transfer := range transfers {
		if !strings.EqualFold(transfer.To, q.ToAddress) || !tokenMatches(q.TokenAddress, transfer.TokenAddress) {
			continue
		}
		ts, err := r.source.BlockTimestamp(ctx, transfer.Block)
		if err != nil {
			return model.TransferEvents{}, err
		}
		out.PaymentEvents = append(out.PaymentEvents, model.PaymentEvent{
			Amount:    transfer.Amount.String(),
			Name:      q.EventName,
			Timestamp: model.Timestamp(ts),
			Parameters: model.EventParameters{
				Block:        transfer.Block,
				TxHash:       transfer.TxHash,
				To:           q.ToAddress,
				FeeAddress:   transfer.FeeAddress,
				FeeAmount:    amountString(transfer.FeeAmount),
				TokenAddress: transfer.TokenAddress,
			},
		})
	}
	return out, nil
}

// fetchTransfers returns the decoded transfers of contract whose indexed reference is the hashed ref.
func fetchTransfers(
	ctx context.Context,
	source chain.LogSource,
	decoder *contracts.Decoder,
	ref string,
	contract string,
	fromBlock uint64,
) ([]contracts.Transfer, error) {
	topic, logs, err := fetchReferenceLogs(ctx, source, decoder, ref, contract, fromBlock)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.Transfer, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) == 0 || !decoder.CanDecode(log.Topics[0]) {
			continue
		}
		transfer, err := decoder.DecodeTransfer(log)
		if err != nil {
			return nil, fmt.Errorf("decode %s log %s: %w", decoder.Name(), log.TxHash, err)
		}
		if transfer.PaymentReference != topic {
			continue
		}
		out = append(out, transfer)
	}
	return out, nil
}

// fetchConversions is fetchTransfers for conversion proxies.
func fetchConversions(
	ctx context.Context,
	source chain.LogSource,
	decoder *contracts.Decoder,
	ref string,
	contract string,
	fromBlock uint64,
) ([]contracts.Conversion, error) {
	topic, logs, err := fetchReferenceLogs(ctx, source, decoder, ref, contract, fromBlock)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.Conversion, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) == 0 || !decoder.CanDecode(log.Topics[0]) {
			continue
		}
		conversion, err := decoder.DecodeConversion(log)
		if err != nil {
			return nil, fmt.Errorf("decode %s log %s: %w", decoder.Name(), log.TxHash, err)
		}
		if conversion.PaymentReference != topic {
			continue
		}
		out = append(out, conversion)
	}
	return out, nil
}

func fetchReferenceLogs(
	ctx context.Context,
	source chain.LogSource,
	decoder *contracts.Decoder,
	ref string,
	contract string,
	fromBlock uint64,
) (common.Hash, []model.LogRecord, error) {
	topic, err := reference.Topic(ref)
	if err != nil {
		return common.Hash{}, nil, err
	}
	logs, err := source.FetchLogs(ctx, chain.LogQuery{
		FromBlock: fromBlock,
		Addresses: []string{contract},
		Topics:    [][]common.Hash{{decoder.Topic0()}, {topic}},
	})
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("fetch %s logs: %w", decoder.Name(), err)
	}
	return topic, logs, nil
}
