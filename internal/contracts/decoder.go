// Package contracts decodes proxy contract events and resolves proxy deployments.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"paymentScope/internal/model"
)

// Transfer is a decoded reference-tagged transfer emitted by a proxy.
type Transfer struct {
	Contract         string
	TokenAddress     string
	To               string
	Amount           *big.Int
	PaymentReference common.Hash
	FeeAmount        *big.Int
	FeeAddress       string
	TxHash           string
	Block            uint64
}

// Conversion is a decoded conversion event. Amounts are in the oracle convention.
type Conversion struct {
	Contract         string
	Amount           *big.Int
	Currency         string
	PaymentReference common.Hash
	FeeAmount        *big.Int
	MaxRateTimespan  *big.Int
	TxHash           string
	Block            uint64
}

// Decoder decodes one proxy event.
type Decoder struct {
	event abi.Event
}

// NewDecoder returns a decoder for the named event of a parsed ABI.
func NewDecoder(contractABI abi.ABI, eventName string) (*Decoder, error) {
	event, ok := contractABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %s not found in abi", eventName)
	}
	return &Decoder{event: event}, nil
}

// Topic0 returns the event signature hash.
func (d *Decoder) Topic0() common.Hash {
	return d.event.ID
}

// Name returns the event name.
func (d *Decoder) Name() string {
	return d.event.Name
}

// CanDecode checks if the topic0 belongs to the event.
func (d *Decoder) CanDecode(topic0 string) bool {
	return strings.EqualFold(topic0, d.event.ID.Hex())
}

// DecodeTransfer decodes a TransferWithReference or TransferWithReferenceAndFee log.
func (d *Decoder) DecodeTransfer(log model.LogRecord) (Transfer, error) {
	reference, values, err := d.decode(log)
	if err != nil {
		return Transfer{}, err
	}

	transfer := Transfer{
		Contract:         log.Address,
		PaymentReference: reference,
		TxHash:           log.TxHash,
		Block:            log.BlockNumber,
	}
	if transfer.To, err = addressField(values, "to"); err != nil {
		return Transfer{}, err
	}
	if transfer.Amount, err = bigIntField(values, "amount"); err != nil {
		return Transfer{}, err
	}
	if _, ok := values["tokenAddress"]; ok {
		if transfer.TokenAddress, err = addressField(values, "tokenAddress"); err != nil {
			return Transfer{}, err
		}
	}
	if _, ok := values["feeAmount"]; ok {
		if transfer.FeeAmount, err = bigIntField(values, "feeAmount"); err != nil {
			return Transfer{}, err
		}
		if transfer.FeeAddress, err = addressField(values, "feeAddress"); err != nil {
			return Transfer{}, err
		}
	}
	return transfer, nil
}

// DecodeConversion decodes a TransferWithConversionAndReference log.
func (d *Decoder) DecodeConversion(log model.LogRecord) (Conversion, error) {
	reference, values, err := d.decode(log)
	if err != nil {
		return Conversion{}, err
	}

	conversion := Conversion{
		Contract:         log.Address,
		PaymentReference: reference,
		TxHash:           log.TxHash,
		Block:            log.BlockNumber,
	}
	if conversion.Amount, err = bigIntField(values, "amount"); err != nil {
		return Conversion{}, err
	}
	if conversion.Currency, err = addressField(values, "currency"); err != nil {
		return Conversion{}, err
	}
	if conversion.FeeAmount, err = bigIntField(values, "feeAmount"); err != nil {
		return Conversion{}, err
	}
	if conversion.MaxRateTimespan, err = bigIntField(values, "maxRateTimespan"); err != nil {
		return Conversion{}, err
	}
	return conversion, nil
}

func (d *Decoder) decode(log model.LogRecord) (common.Hash, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return common.Hash{}, nil, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return common.Hash{}, nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return common.Hash{}, nil, err
	}
	var indexed struct {
		PaymentReference common.Hash
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return common.Hash{}, nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return common.Hash{}, nil, err
	}
	args := d.event.Inputs.NonIndexed()
	if len(values) != len(args) {
		return common.Hash{}, nil, fmt.Errorf("unexpected %s values: %d", d.event.Name, len(values))
	}
	byName := make(map[string]interface{}, len(args))
	for i, arg := range args {
		byName[arg.Name] = values[i]
	}
	return indexed.PaymentReference, byName, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func addressField(values map[string]interface{}, name string) (string, error) {
	switch v := values[name].(type) {
	case common.Address:
		return v.Hex(), nil
	case *common.Address:
		return v.Hex(), nil
	default:
		return "", fmt.Errorf("unsupported address type %T for %s", values[name], name)
	}
}

func bigIntField(values map[string]interface{}, name string) (*big.Int, error) {
	switch v := values[name].(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T for %s", values[name], name)
	}
}
