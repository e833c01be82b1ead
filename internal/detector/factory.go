package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paymentScope/internal/btc"
	"paymentScope/internal/chain"
	"paymentScope/internal/contracts"
	"paymentScope/internal/currency"
	"paymentScope/internal/hasura"
	"paymentScope/internal/metrics"
	"paymentScope/internal/model"
	"paymentScope/internal/thegraph"
)

// anyValue matches every currency type or chain in the detector table.
const anyValue = "*"

// Config wires the factory to its data sources. Nil registries fall back to the bundled ones.
type Config struct {
	Contracts  contracts.Registry
	Currencies currency.Registry
	Chains     chain.Sources
	Subgraphs  *thegraph.Clients
	Streams    *thegraph.Clients
	Hasura     hasura.Querier
	Tokens     TokenResolver
	Bitcoin    *btc.Detector
	Recorder   metrics.Recorder
	Observer   *Observer
	Logger     *zap.Logger
}

type tableKey struct {
	currency model.CurrencyType
	chain    string
	id       model.PaymentNetworkID
}

type tableEntry struct {
	// artifact is checked for a deployment when the detector is created.
	artifact contracts.Artifact
	build    func(f *Factory, version string) PaymentNetwork
}

// Factory creates the detector of a payment network.
type Factory struct {
	backends Backends
	bitcoin  *btc.Detector
	recorder metrics.Recorder
	logger   *zap.Logger
	table    map[tableKey]tableEntry
}

func NewFactory(cfg Config) *Factory {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Contracts == nil {
		cfg.Contracts = contracts.DefaultRegistry()
	}
	if cfg.Currencies == nil {
		cfg.Currencies = currency.DefaultRegistry()
	}
	if cfg.Observer == nil {
		cfg.Observer = NewObserver(logger)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}

	f := &Factory{
		backends: Backends{
			Contracts:  cfg.Contracts,
			Currencies: cfg.Currencies,
			Chains:     cfg.Chains,
			Subgraphs:  cfg.Subgraphs,
			Streams:    cfg.Streams,
			Hasura:     cfg.Hasura,
			Tokens:     cfg.Tokens,
			Observer:   cfg.Observer,
		},
		bitcoin:  cfg.Bitcoin,
		recorder: cfg.Recorder,
		logger:   logger,
	}
	f.table = f.detectorTable()
	return f
}

func (f *Factory) detectorTable() map[tableKey]tableEntry {
	b := &f.backends
	erc20Fee := func(indexed bool) tableEntry {
		return tableEntry{
			artifact: contracts.ERC20FeeProxy,
			build: func(f *Factory, version string) PaymentNetwork {
				return NewReferenceBased(model.NetworkERC20FeeProxyContract, version, proxyExtractor{
					backends: b,
					artifact: contracts.ERC20FeeProxy,
					abi:      contracts.ERC20FeeProxyABI,
					event:    "TransferWithReferenceAndFee",
					token:    true,
					indexed:  indexed,
				}, true)
			},
		}
	}

	return map[tableKey]tableEntry{
		{model.CurrencyERC20, anyValue, model.NetworkERC20ProxyContract}: {
			artifact: contracts.ERC20Proxy,
			build: func(f *Factory, version string) PaymentNetwork {
				return NewReferenceBased(model.NetworkERC20ProxyContract, version, proxyExtractor{
					backends: b,
					artifact: contracts.ERC20Proxy,
					abi:      contracts.ERC20ProxyABI,
					event:    "TransferWithReference",
					token:    true,
				}, false)
			},
		},
		{model.CurrencyERC20, anyValue, model.NetworkERC20FeeProxyContract}: erc20Fee(false),
		{model.CurrencyERC20, "tron", model.NetworkERC20FeeProxyContract}:   erc20Fee(true),
		{model.CurrencyERC20, "nile", model.NetworkERC20FeeProxyContract}:   erc20Fee(true),
		{model.CurrencyETH, anyValue, model.NetworkETHFeeProxyContract}: {
			artifact: contracts.ETHFeeProxy,
			build: func(f *Factory, version string) PaymentNetwork {
				return NewReferenceBased(model.NetworkETHFeeProxyContract, version, proxyExtractor{
					backends: b,
					artifact: contracts.ETHFeeProxy,
					abi:      contracts.ETHFeeProxyABI,
					event:    "TransferWithReferenceAndFee",
				}, true)
			},
		},
		{model.CurrencyERC777, anyValue, model.NetworkERC777Stream}: {
			build: func(f *Factory, version string) PaymentNetwork {
				return NewStream(version, streamExtractor{backends: b})
			},
		},
		{anyValue, anyValue, model.NetworkAnyDeclarative}: {
			build: func(f *Factory, version string) PaymentNetwork {
				return NewDeclarative(version)
			},
		},
		{anyValue, anyValue, model.NetworkAnyToERC20Proxy}: {
			artifact: contracts.ERC20ConversionProxy,
			build: func(f *Factory, version string) PaymentNetwork {
				return NewReferenceBased(model.NetworkAnyToERC20Proxy, version, conversionExtractor{
					backends:    b,
					conversion:  contracts.ERC20ConversionProxy,
					feeProxy:    contracts.ERC20FeeProxy,
					feeProxyABI: contracts.ERC20FeeProxyABI,
				}, true)
			},
		},
		{anyValue, anyValue, model.NetworkAnyToETHProxy}: {
			artifact: contracts.ETHConversionProxy,
			build: func(f *Factory, version string) PaymentNetwork {
				return NewReferenceBased(model.NetworkAnyToETHProxy, version, conversionExtractor{
					backends:    b,
					conversion:  contracts.ETHConversionProxy,
					feeProxy:    contracts.ETHFeeProxy,
					feeProxyABI: contracts.ETHFeeProxyABI,
					native:      true,
				}, true)
			},
		},
		{anyValue, anyValue, model.NetworkMeta}: {
			build: func(f *Factory, version string) PaymentNetwork {
				return NewMeta(f, version)
			},
		},
		{model.CurrencyBTC, "mainnet", model.NetworkBitcoinAddressBased}: {
			build: func(f *Factory, version string) PaymentNetwork {
				return NewBitcoinAddressBased(model.NetworkBitcoinAddressBased, btc.Mainnet, version, f.bitcoin)
			},
		},
		{model.CurrencyBTC, "testnet", model.NetworkTestnetBitcoinAddressBased}: {
			build: func(f *Factory, version string) PaymentNetwork {
				return NewBitcoinAddressBased(model.NetworkTestnetBitcoinAddressBased, btc.Testnet, version, f.bitcoin)
			},
		},
	}
}

func (f *Factory) lookup(id model.PaymentNetworkID, currencyType model.CurrencyType, chainName string) (tableEntry, bool) {
	for _, key := range []tableKey{
		{currencyType, chainName, id},
		{currencyType, anyValue, id},
		{anyValue, anyValue, id},
	} {
		if entry, ok := f.table[key]; ok {
			return entry, true
		}
	}
	return tableEntry{}, false
}

// Create returns the detector of id for a currency type on a chain.
// Contract backed detectors must have a deployment of version on chain.
func (f *Factory) Create(id model.PaymentNetworkID, currencyType model.CurrencyType, chainName, version string) (PaymentNetwork, error) {
	entry, ok := f.lookup(id, currencyType, chainName)
	if !ok {
		return nil, fmt.Errorf("the payment network id: %s is not supported for the currency: %s on network %s", id, currencyType, chainName)
	}
	if entry.artifact != "" && chainName != "" {
		if _, err := f.backends.Contracts.Deployment(entry.artifact, chainName, version); err != nil {
			return nil, err
		}
	}
	return instrumented{PaymentNetwork: entry.build(f, version), recorder: f.recorder}, nil
}

// FromRequest returns the detector of the payment network extension of req, or nil when it has none.
func (f *Factory) FromRequest(req *model.Request) (PaymentNetwork, error) {
	ids := req.PaymentNetworks()
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("the request has more than one payment network: %v", ids)
	}

	id := ids[0]
	ext := req.Extensions[id]
	return f.Create(id, req.Currency.Type, chainOf(req, ext), ext.Version)
}

// GetBalance detects the balance of req with the detector of its payment network.
func (f *Factory) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	pn, err := f.FromRequest(req)
	if err != nil {
		return balanceError(err)
	}
	if pn == nil {
		return balanceError(fmt.Errorf("%w: the request has no payment network extension", ErrWrongExtension))
	}
	f.logger.Debug("detecting balance",
		zap.String("request_id", req.RequestID),
		zap.String("payment_network", string(pn.ID())),
	)
	return pn.GetBalance(ctx, req)
}

// chainOf returns the chain a payment network pays on.
func chainOf(req *model.Request, ext model.ExtensionState) string {
	switch ext.ID {
	case model.NetworkAnyToERC20Proxy, model.NetworkAnyToETHProxy:
		return ext.Values.Network
	}
	return req.Currency.Network
}
