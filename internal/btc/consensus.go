package btc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paymentScope/internal/model"
)

// FailedBalance is the balance a provider reports when it could not answer.
const FailedBalance = "-1"

var (
	// ErrNotEnoughProviders is returned when fewer than two providers are configured.
	ErrNotEnoughProviders = errors.New("at least two bitcoin providers are required")
	// ErrNoConsensus is returned when providers do not agree on a balance.
	ErrNoConsensus = errors.New("Error getting the balance from the bitcoin providers")
)

// Result is the balance and events one provider reports for an address.
type Result struct {
	Balance string
	Events  []model.PaymentEvent
}

// Provider reads the incoming transfers of an address.
// It reports FailedBalance instead of an error when it cannot answer.
type Provider interface {
	Name() string
	GetAddressBalanceWithEvents(ctx context.Context, network Network, address string, eventName model.EventName) Result
}

// DecisionKind is the state of a consensus fold.
type DecisionKind int

const (
	NeedMore DecisionKind = iota
	Consensus
	Exhausted
)

// Decision is the outcome of Decide.
type Decision struct {
	Kind  DecisionKind
	Value string
}

// Decide folds provider balances in order. The first balance reported by two providers wins.
// Failed balances never count. remaining is the number of providers not yet queried.
func Decide(results []string, remaining int) Decision {
	counts := make(map[string]int, len(results))
	for _, balance := range results {
		if balance == FailedBalance {
			continue
		}
		counts[balance]++
		if counts[balance] >= 2 {
			return Decision{Kind: Consensus, Value: balance}
		}
	}
	if remaining > 0 {
		return Decision{Kind: NeedMore}
	}
	return Decision{Kind: Exhausted}
}

// ProviderObserver is notified of every provider answer.
type ProviderObserver interface {
	ObserveProviderResult(provider string, ok bool)
}

// Detector queries providers until two of them agree.
type Detector struct {
	providers []Provider
	observer  ProviderObserver
	logger    *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithObserver reports provider answers to observer.
func WithObserver(observer ProviderObserver) Option {
	return func(d *Detector) {
		d.observer = observer
	}
}

// WithLogger sets the detector logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector builds a consensus detector over providers, queried in order.
func NewDetector(providers []Provider, opts ...Option) (*Detector, error) {
	if len(providers) < 2 {
		return nil, ErrNotEnoughProviders
	}
	d := &Detector{providers: providers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// GetBalance returns the agreed balance of address. The first two providers are queried
// concurrently, the others one at a time until a balance is agreed or providers run out.
func (d *Detector) GetBalance(ctx context.Context, network Network, address string, eventName model.EventName) (Result, error) {
	if err := ValidateAddress(network, address); err != nil {
		return Result{}, err
	}
	start := time.Now()

	results := make([]Result, 2, len(d.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			results[i] = d.query(gctx, d.providers[i], network, address, eventName)
			return nil
		})
	}
	_ = g.Wait()

	balances := []string{results[0].Balance, results[1].Balance}
	decision := Decide(balances, len(d.providers)-2)
	for next := 2; decision.Kind == NeedMore; next++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		result := d.query(ctx, d.providers[next], network, address, eventName)
		results = append(results, result)
		balances = append(balances, result.Balance)
		decision = Decide(balances, len(d.providers)-next-1)
	}

	if decision.Kind != Consensus {
		d.logger.Warn("bitcoin providers disagree",
			zap.String("address", address),
			zap.Strings("balances", balances),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Result{}, ErrNoConsensus
	}
	for _, result := range results {
		if result.Balance == decision.Value {
			return result, nil
		}
	}
	return Result{}, fmt.Errorf("%w: agreed balance %s has no provider result", ErrNoConsensus, decision.Value)
}

func (d *Detector) query(ctx context.Context, provider Provider, network Network, address string, eventName model.EventName) Result {
	result := provider.GetAddressBalanceWithEvents(ctx, network, address, eventName)
	if result.Balance == "" {
		result.Balance = FailedBalance
	}
	if d.observer != nil {
		d.observer.ObserveProviderResult(provider.Name(), result.Balance != FailedBalance)
	}
	return result
}
