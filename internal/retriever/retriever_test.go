package retriever

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"paymentScope/internal/chain"
	"paymentScope/internal/contracts"
	"paymentScope/internal/correlate"
	"paymentScope/internal/currency"
	"paymentScope/internal/hasura"
	"paymentScope/internal/model"
	"paymentScope/internal/thegraph"
)

const (
	testReference = "a0098add01acc736"
	hashedRef     = "0xc7c539abf3cdbbbf3c3a97b741582f8a0dc6a830717acb1fd0a092dc47e1eb90"
	feeProxy      = "0x370DE27fdb7D1Ff1e1BaA7D11c5820a324Cf623C"
	convProxy     = "0xdE5491f774F0Cb009ABcEA7326342E105dbb1B2E"
	payee         = "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"
	token         = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	feeAddress    = "0x0d1d4e623D10F9FBA5Db95830F7d3839406C6AF2"
)

type fakeSource struct {
	logs       []model.LogRecord
	timestamps map[uint64]uint64
	queries    []chain.LogQuery
}

func (f *fakeSource) FetchLogs(_ context.Context, query chain.LogQuery) ([]model.LogRecord, error) {
	f.queries = append(f.queries, query)
	out := make([]model.LogRecord, 0)
	for _, log := range f.logs {
		if strings.EqualFold(log.Address, query.Addresses[0]) && log.BlockNumber >= query.FromBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return f.timestamps[number], nil
}

func mustDecoder(t *testing.T, load func() (abi.ABI, error), event string) (*contracts.Decoder, abi.ABI) {
	t.Helper()
	parsed, err := load()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := contracts.NewDecoder(parsed, event)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder, parsed
}

func feeTransferLog(t *testing.T, txHash string, block uint64, ref common.Hash, to string, amount int64) model.LogRecord {
	t.Helper()
	decoder, parsed := mustDecoder(t, contracts.ERC20FeeProxyABI, "TransferWithReferenceAndFee")
	data, err := parsed.Events["TransferWithReferenceAndFee"].Inputs.NonIndexed().Pack(
		common.HexToAddress(token),
		common.HexToAddress(to),
		big.NewInt(amount),
		big.NewInt(10),
		common.HexToAddress(feeAddress),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return logRecord(feeProxy, decoder.Topic0(), ref, data, txHash, block)
}

func conversionLog(t *testing.T, txHash string, block uint64, ref common.Hash, currencyHash string, amount int64, rate int64) model.LogRecord {
	t.Helper()
	decoder, parsed := mustDecoder(t, contracts.ConversionProxyABI, "TransferWithConversionAndReference")
	data, err := parsed.Events["TransferWithConversionAndReference"].Inputs.NonIndexed().Pack(
		big.NewInt(amount),
		common.HexToAddress(currencyHash),
		big.NewInt(1_000_000),
		big.NewInt(rate),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return logRecord(convProxy, decoder.Topic0(), ref, data, txHash, block)
}

func logRecord(address string, topic0, ref common.Hash, data []byte, txHash string, block uint64) model.LogRecord {
	return model.LogRecord{
		Chain:       "private",
		BlockNumber: block,
		TxHash:      txHash,
		Address:     address,
		Topics:      []string{topic0.Hex(), ref.Hex()},
		Data:        hexutil.Encode(data),
	}
}

func TestProxyRetrieverFiltersReferenceAndDestination(t *testing.T) {
	ref := common.HexToHash(hashedRef)
	other := common.HexToHash("0x01")
	source := &fakeSource{
		logs: []model.LogRecord{
			feeTransferLog(t, "0x01", 10, ref, payee, 500),
			feeTransferLog(t, "0x02", 11, ref, feeAddress, 700),
			feeTransferLog(t, "0x03", 12, other, payee, 900),
			feeTransferLog(t, "0x04", 13, ref, strings.ToLower(payee), 300),
		},
		timestamps: map[uint64]uint64{10: 1000, 13: 1300},
	}
	decoder, _ := mustDecoder(t, contracts.ERC20FeeProxyABI, "TransferWithReferenceAndFee")
	tokenAddress := strings.ToLower(token)

	events, err := NewProxyRetriever(source, decoder).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  feeProxy,
		CreationBlock:    5,
		EventName:        model.EventPayment,
		TokenAddress:     &tokenAddress,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(events.PaymentEvents) != 2 {
		t.Fatalf("expected 2 events, got %+v", events.PaymentEvents)
	}
	first := events.PaymentEvents[0]
	if first.Amount != "500" || first.Name != model.EventPayment || first.TimestampOf() != 1000 {
		t.Fatalf("unexpected event: %+v", first)
	}
	if first.Parameters.FeeAmount != "10" || first.Parameters.TxHash != "0x01" || first.Parameters.Block != 10 {
		t.Fatalf("unexpected parameters: %+v", first.Parameters)
	}

	query := source.queries[0]
	if query.FromBlock != 5 || len(query.Topics) != 2 || query.Topics[1][0] != ref {
		t.Fatalf("unexpected log query: %+v", query)
	}
}

func TestProxyRetrieverTokenMismatch(t *testing.T) {
	ref := common.HexToHash(hashedRef)
	source := &fakeSource{logs: []model.LogRecord{feeTransferLog(t, "0x01", 10, ref, payee, 500)}}
	decoder, _ := mustDecoder(t, contracts.ERC20FeeProxyABI, "TransferWithReferenceAndFee")
	otherToken := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

	events, err := NewProxyRetriever(source, decoder).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  feeProxy,
		EventName:        model.EventPayment,
		TokenAddress:     &otherToken,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(events.PaymentEvents) != 0 {
		t.Fatalf("expected token mismatch to be dropped: %+v", events.PaymentEvents)
	}
}

func TestProxyRetrieverRequiresReference(t *testing.T) {
	decoder, _ := mustDecoder(t, contracts.ERC20FeeProxyABI, "TransferWithReferenceAndFee")
	_, err := NewProxyRetriever(&fakeSource{}, decoder).Retrieve(context.Background(), Query{ToAddress: payee})
	if !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
}

func usd(t *testing.T) currency.Definition {
	t.Helper()
	def, ok := currency.DefaultRegistry().FromStorageCurrency(model.Currency{Type: model.CurrencyISO4217, Value: "USD"})
	if !ok {
		t.Fatalf("USD missing from registry")
	}
	return *def
}

func newConversionRetriever(t *testing.T, source chain.LogSource) *ConversionRetriever {
	t.Helper()
	conversion, _ := mustDecoder(t, contracts.ConversionProxyABI, "TransferWithConversionAndReference")
	transfer, _ := mustDecoder(t, contracts.ERC20FeeProxyABI, "TransferWithReferenceAndFee")
	return NewConversionRetriever(source, conversion, transfer, contracts.Deployment{Address: feeProxy}, usd(t))
}

func TestConversionRetrieverJoinsAndUnpads(t *testing.T) {
	ref := common.HexToHash(hashedRef)
	hash := usd(t).Hash
	source := &fakeSource{
		logs: []model.LogRecord{
			conversionLog(t, "0xaa", 20, ref, hash, 100_000_000, 0),
			feeTransferLog(t, "0xaa", 20, ref, payee, 990000),
			conversionLog(t, "0xbb", 21, ref, hash, 200_000_000, 3600),
			feeTransferLog(t, "0xbb", 21, ref, payee, 1980000),
		},
		timestamps: map[uint64]uint64{20: 2000, 21: 2100},
	}

	events, err := newConversionRetriever(t, source).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  convProxy,
		EventName:        model.EventPayment,
		AcceptedTokens:   []string{strings.ToLower(token)},
		MaxRateTimespan:  1000,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(events.PaymentEvents) != 1 {
		t.Fatalf("expected the stale conversion to be excluded: %+v", events.PaymentEvents)
	}
	got := events.PaymentEvents[0]
	want := model.PaymentEvent{
		Amount:    "100",
		Name:      model.EventPayment,
		Timestamp: model.Timestamp(2000),
		Parameters: model.EventParameters{
			Block:             20,
			TxHash:            "0xaa",
			To:                payee,
			FeeAddress:        common.HexToAddress(feeAddress).Hex(),
			FeeAmount:         "1",
			FeeAmountInCrypto: "10",
			AmountInCrypto:    "990000",
			TokenAddress:      common.HexToAddress(token).Hex(),
			MaxRateTimespan:   "0",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected event:\n got %+v\nwant %+v", got, want)
	}
}

func TestConversionRetrieverOrphanFails(t *testing.T) {
	ref := common.HexToHash(hashedRef)
	source := &fakeSource{
		logs: []model.LogRecord{conversionLog(t, "0xaa", 20, ref, usd(t).Hash, 100_000_000, 0)},
	}
	_, err := newConversionRetriever(t, source).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  convProxy,
		EventName:        model.EventPayment,
	})
	if !errors.Is(err, correlate.ErrProxyLogNotFound) {
		t.Fatalf("expected ErrProxyLogNotFound, got %v", err)
	}
}

type fakeGraph struct {
	vars        thegraph.PaymentsVariables
	state       thegraph.PaymentsAndEscrowState
	convVars    thegraph.ConversionVariables
	conversions []thegraph.Payment
}

func (f *fakeGraph) GetPaymentsAndEscrowState(_ context.Context, vars thegraph.PaymentsVariables) (thegraph.PaymentsAndEscrowState, error) {
	f.vars = vars
	return f.state, nil
}

func (f *fakeGraph) GetConversionPayments(_ context.Context, vars thegraph.ConversionVariables) ([]thegraph.Payment, error) {
	f.convVars = vars
	return f.conversions, nil
}

func strPtr(s string) *string { return &s }

func TestGraphRetrieverMapsPaymentsAndEscrow(t *testing.T) {
	graph := &fakeGraph{state: thegraph.PaymentsAndEscrowState{
		Payments: []thegraph.Payment{{
			Amount: "1000", Block: 12, TxHash: "0xaa", FeeAmount: strPtr("2"), FeeAddress: strPtr(feeAddress),
			From: "0xpayer", Timestamp: 1700000000, GasUsed: "21000", GasPrice: "1",
		}},
		EscrowEvents: []thegraph.EscrowEvent{{From: "0xpayer", Block: 13, Timestamp: 1700000100, TxHash: "0xbb", EventType: "freezeEscrow"}},
	}}

	events, err := NewGraphRetriever(graph).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  feeProxy,
		EventName:        model.EventRefund,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if graph.vars.Reference != hashedRef || graph.vars.TokenAddress != nil {
		t.Fatalf("unexpected variables: %+v", graph.vars)
	}
	if len(events.PaymentEvents) != 1 || events.PaymentEvents[0].Name != model.EventRefund || events.PaymentEvents[0].Parameters.FeeAmount != "2" {
		t.Fatalf("unexpected payments: %+v", events.PaymentEvents)
	}
	if len(events.EscrowEvents) != 1 || events.EscrowEvents[0].Name != model.EventFreezeEscrow {
		t.Fatalf("unexpected escrow events: %+v", events.EscrowEvents)
	}
}

func TestGraphConversionRetrieverAppliesPredicates(t *testing.T) {
	hash := usd(t).Hash
	rate := uint64(0)
	stale := uint64(7200)
	graph := &fakeGraph{conversions: []thegraph.Payment{
		{Amount: "100000000", TxHash: "0xaa", Timestamp: 1, FeeAmount: strPtr("1000000"), Currency: strPtr(hash), MaxRateTimespan: &rate, TokenAddress: strPtr(token), AmountInCrypto: strPtr("990000")},
		{Amount: "100000000", TxHash: "0xbb", Timestamp: 2, Currency: strPtr(hash), MaxRateTimespan: &stale, TokenAddress: strPtr(token)},
	}}

	events, err := NewGraphConversionRetriever(graph, usd(t)).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        payee,
		ContractAddress:  convProxy,
		EventName:        model.EventPayment,
		MaxRateTimespan:  3600,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if graph.convVars.Currency != hash || graph.convVars.MaxRateTimespan != 3600 {
		t.Fatalf("unexpected variables: %+v", graph.convVars)
	}
	if len(events.PaymentEvents) != 1 {
		t.Fatalf("expected one accepted payment, got %+v", events.PaymentEvents)
	}
	got := events.PaymentEvents[0]
	if got.Amount != "100" || got.Parameters.FeeAmount != "1" || got.Parameters.AmountInCrypto != "990000" || got.Parameters.MaxRateTimespan != "0" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

type fakeHasura struct {
	query    hasura.PaymentsQuery
	payments []hasura.Payment
}

func (f *fakeHasura) GetPaymentsByReference(_ context.Context, query hasura.PaymentsQuery) ([]hasura.Payment, error) {
	f.query = query
	return f.payments, nil
}

func TestHasuraRetriever(t *testing.T) {
	querier := &fakeHasura{payments: []hasura.Payment{{
		Chain: "tron-nile", TxHash: "0x123abc", BlockNumber: 79238121, Timestamp: 1738742584,
		TokenAddress: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", FromAddress: "TFromAddress123", ToAddress: "TToAddress456",
		Amount: "100000000", FeeAmount: "1000000", FeeAddress: "TFeeAddress789", EnergyUsed: "65000",
	}}}

	events, err := NewHasuraRetriever(querier).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        "TToAddress456",
		EventName:        model.EventPayment,
		Chain:            "nile",
		AcceptedTokens:   []string{"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"},
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if querier.query.Chain != "tron-nile" || querier.query.TokenAddress != "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t" || querier.query.PaymentReference != hashedRef {
		t.Fatalf("unexpected query: %+v", querier.query)
	}
	if len(events.PaymentEvents) != 1 {
		t.Fatalf("expected one event, got %+v", events.PaymentEvents)
	}
	params := events.PaymentEvents[0].Parameters
	if events.PaymentEvents[0].Amount != "100000000" || params.FeeAmount != "1000000" || params.Block != 79238121 || params.EnergyUsed != "65000" {
		t.Fatalf("unexpected event: %+v", events.PaymentEvents[0])
	}
}

func TestHasuraRetrieverRejectsMultipleTokens(t *testing.T) {
	_, err := NewHasuraRetriever(&fakeHasura{}).Retrieve(context.Background(), Query{
		PaymentReference: testReference,
		ToAddress:        "TToAddress456",
		EventName:        model.EventPayment,
		Chain:            "tron",
		AcceptedTokens:   []string{"T1", "T2"},
	})
	if !errors.Is(err, ErrMultipleAcceptedTokens) {
		t.Fatalf("expected ErrMultipleAcceptedTokens, got %v", err)
	}
}

func TestIndexChain(t *testing.T) {
	if IndexChain("nile") != "tron-nile" || IndexChain("tron") != "tron" {
		t.Fatalf("unexpected chain mapping")
	}
}
