package detector

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap"

	"paymentScope/internal/chain"
	"paymentScope/internal/contracts"
	"paymentScope/internal/currency"
	"paymentScope/internal/hasura"
	"paymentScope/internal/model"
	"paymentScope/internal/retriever"
	"paymentScope/internal/thegraph"
)

// ErrNoPaymentsIndex is returned when a chain read through the payments index has no index configured.
var ErrNoPaymentsIndex = errors.New("no payments index configured")

// feeProxyVersion is the fee proxy version conversion proxies pay through.
const feeProxyVersion = "0.2.0"

// Backends are the data sources detectors read from.
type Backends struct {
	Contracts  contracts.Registry
	Currencies currency.Registry
	Chains     chain.Sources
	Subgraphs  *thegraph.Clients
	Streams    *thegraph.Clients
	Hasura     hasura.Querier
	Tokens     TokenResolver
	Observer   *Observer
}

// TokenResolver describes tokens missing from the currency registry.
type TokenResolver interface {
	Resolve(ctx context.Context, c model.Currency) (*currency.Definition, error)
}

func (b *Backends) requestCurrency(ctx context.Context, c model.Currency) (*currency.Definition, error) {
	if def, ok := b.Currencies.FromStorageCurrency(c); ok {
		return def, nil
	}
	if b.Tokens != nil && (c.Type == model.CurrencyERC20 || c.Type == model.CurrencyERC777) {
		return b.Tokens.Resolve(ctx, c)
	}
	return nil, fmt.Errorf("unknown request currency %s %s", c.Type, c.Value)
}

func (b *Backends) logSource(ctx context.Context, chainName string) (chain.LogSource, error) {
	if b.Chains == nil {
		return nil, fmt.Errorf("%w for network %s", chain.ErrNoEndpoint, chainName)
	}
	return b.Chains.Source(ctx, chainName)
}

func (b *Backends) warnNoSubgraph(chainName string) {
	b.Observer.WarnOnce("subgraph:"+chainName, "no subgraph configured, reading proxy logs over rpc",
		zap.String("network", chainName))
}

// proxyExtractor reads reference-tagged transfers of one proxy artifact.
type proxyExtractor struct {
	backends *Backends
	artifact contracts.Artifact
	abi      func() (abi.ABI, error)
	event    string
	// token filters transfers on the request currency token.
	token bool
	// indexed reads payments from the payments index instead of subgraphs or logs.
	indexed bool
}

func (e proxyExtractor) Extract(
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
	deployment, err := e.backends.Contracts.Deployment(e.artifact, chainName, ext.Version)
	if err != nil {
		return model.TransferEvents{}, err
	}

	q := retriever.Query{
		PaymentReference: paymentReference,
		ToAddress:        toAddress,
		ContractAddress:  deployment.Address,
		CreationBlock:    deployment.CreationBlock,
		EventName:        eventName,
		Chain:            chainName,
		AcceptedTokens:   ext.Values.AcceptedTokens,
	}
	if e.token {
		token := req.Currency.Value
		q.TokenAddress = &token
	}

	r, err := e.retriever(ctx, chainName)
	if err != nil {
		return model.TransferEvents{}, err
	}
	return r.Retrieve(ctx, q)
}

func (e proxyExtractor) retriever(ctx context.Context, chainName string) (retriever.Retriever, error) {
	if e.indexed {
		if e.backends.Hasura == nil {
			return nil, fmt.Errorf("%w for network %s", ErrNoPaymentsIndex, chainName)
		}
		return retriever.NewHasuraRetriever(e.backends.Hasura), nil
	}
	if client, ok := e.backends.Subgraphs.For(chainName); ok {
		return retriever.NewGraphRetriever(client), nil
	}
	e.backends.warnNoSubgraph(chainName)

	source, err := e.backends.logSource(ctx, chainName)
	if err != nil {
		return nil, err
	}
	decoder, err := newDecoder(e.abi, e.event)
	if err != nil {
		return nil, err
	}
	return retriever.NewProxyRetriever(source, decoder), nil
}

// conversionExtractor reads payments made through a conversion proxy.
// The payment chain is the extension network, not the request currency network.
type conversionExtractor struct {
	backends    *Backends
	conversion  contracts.Artifact
	feeProxy    contracts.Artifact
	feeProxyABI func() (abi.ABI, error)
	native      bool
}

func (e conversionExtractor) Extract(
	ctx context.Context,
	req *model.Request,
	ext model.ExtensionState,
	eventName model.EventName,
	toAddress string,
	paymentReference string,
) (model.TransferEvents, error) {
	chainName := ext.Values.Network
	if chainName == "" {
		return model.TransferEvents{}, fmt.Errorf("%w: network must be defined for %s", contracts.ErrNetworkNotSupported, ext.ID)
	}
	requestCurrency, err := e.backends.requestCurrency(ctx, req.Currency)
	if err != nil {
		return model.TransferEvents{}, err
	}
	deployment, err := e.backends.Contracts.Deployment(e.conversion, chainName, ext.Version)
	if err != nil {
		return model.TransferEvents{}, err
	}

	q := retriever.Query{
		PaymentReference: paymentReference,
		ToAddress:        toAddress,
		ContractAddress:  deployment.Address,
		CreationBlock:    deployment.CreationBlock,
		EventName:        eventName,
		Chain:            chainName,
		MaxRateTimespan:  ext.Values.MaxRateTimespan,
	}
	if !e.native {
		q.AcceptedTokens = ext.Values.AcceptedTokens
	}

	if client, ok := e.backends.Subgraphs.For(chainName); ok {
		return retriever.NewGraphConversionRetriever(client, *requestCurrency).Retrieve(ctx, q)
	}
	e.backends.warnNoSubgraph(chainName)

	feeDeployment, err := e.backends.Contracts.Deployment(e.feeProxy, chainName, feeProxyVersion)
	if err != nil {
		return model.TransferEvents{}, err
	}
	source, err := e.backends.logSource(ctx, chainName)
	if err != nil {
		return model.TransferEvents{}, err
	}
	conversionDecoder, err := newDecoder(contracts.ConversionProxyABI, "TransferWithConversionAndReference")
	if err != nil {
		return model.TransferEvents{}, err
	}
	transferDecoder, err := newDecoder(e.feeProxyABI, "TransferWithReferenceAndFee")
	if err != nil {
		return model.TransferEvents{}, err
	}
	r := retriever.NewConversionRetriever(source, conversionDecoder, transferDecoder, feeDeployment, *requestCurrency)
	return r.Retrieve(ctx, q)
}

func newDecoder(load func() (abi.ABI, error), event string) (*contracts.Decoder, error) {
	parsed, err := load()
	if err != nil {
		return nil, err
	}
	return contracts.NewDecoder(parsed, event)
}
