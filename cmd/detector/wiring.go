package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"paymentScope/internal/btc"
	"paymentScope/internal/chain"
	"paymentScope/internal/config"
	"paymentScope/internal/contracts"
	"paymentScope/internal/detector"
	"paymentScope/internal/hasura"
	"paymentScope/internal/metrics"
	"paymentScope/internal/retry"
	"paymentScope/internal/storage/postgres"
	"paymentScope/internal/thegraph"
	"paymentScope/internal/token"
)

// app holds the long-lived collaborators of a command.
type app struct {
	factory  *detector.Factory
	registry *prometheus.Registry
	chains   *chain.Registry
	store    *postgres.Store
}

func (a *app) Close() {
	if a.chains != nil {
		a.chains.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	deployments := contracts.DefaultRegistry()
	if err := deployments.ApplyOverrides(cfg.Deployments); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a := &app{
		registry: registry,
		chains: chain.NewRegistry(cfg.Networks, chain.Options{
			MaxBlockRange: cfg.MaxBlockRange,
			Retry:         retry.Exponential(cfg.RPCRetries, cfg.RPCRetryDelay),
			Logger:        logger,
		}),
	}

	if cfg.DatabaseURL != "" {
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
		a.store = store
	}

	var payments hasura.Querier
	switch {
	case cfg.HasuraURL == "" && a.store != nil:
		payments = a.store
	default:
		payments = hasura.NewClient(hasura.Options{URL: cfg.HasuraURL, AdminSecret: cfg.HasuraSecret})
	}

	bitcoin, err := newBitcoinDetector(cfg, recorder, logger)
	if err != nil {
		logger.Warn("bitcoin detection disabled", zap.Error(err))
	}

	tokens, err := token.NewResolver(token.CallersFunc(func(ctx context.Context, chainName string) (token.Caller, error) {
		client, err := a.chains.Client(ctx, chainName)
		if err != nil {
			return nil, err
		}
		return client, nil
	}), 0, logger)
	if err != nil {
		return nil, err
	}

	subgraphs := thegraph.NewClients(cfg.Subgraphs)
	streams := thegraph.NewClients(cfg.SuperfluidSubgraphs)
	a.factory = detector.NewFactory(detector.Config{
		Contracts: deployments,
		Chains:    a.chains,
		Subgraphs: subgraphs,
		Streams:   streams,
		Hasura:    payments,
		Tokens:    tokens,
		Bitcoin:   bitcoin,
		Recorder:  recorder,
		Observer:  detector.NewObserver(logger),
		Logger:    logger,
	})

	logger.Info("detector ready",
		zap.Strings("networks", a.chains.Networks()),
		zap.Strings("subgraphs", subgraphs.Networks()),
		zap.Strings("superfluid_subgraphs", streams.Networks()),
		zap.Strings("btc_providers", cfg.BTCProviders),
		zap.Bool("postgres", a.store != nil),
	)
	return a, nil
}

func newBitcoinDetector(cfg config.Config, observer btc.ProviderObserver, logger *zap.Logger) (*btc.Detector, error) {
	opts := btc.EsploraOptions{
		Retry:  retry.Fixed(cfg.BTCRetries, cfg.BTCRetryDelay),
		Logger: logger,
	}
	providers := make([]btc.Provider, 0, len(cfg.BTCProviders))
	for _, name := range cfg.BTCProviders {
		switch name {
		case config.ProviderBlockstream:
			providers = append(providers, btc.NewBlockstreamProvider(opts))
		case config.ProviderMempool:
			providers = append(providers, btc.NewMempoolProvider(opts))
		default:
			return nil, fmt.Errorf("unknown bitcoin provider %s", name)
		}
	}
	return btc.NewDetector(providers, btc.WithObserver(observer), btc.WithLogger(logger))
}
