// Package detector computes request balances for every supported payment network.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paymentScope/internal/contracts"
	"paymentScope/internal/extension"
	"paymentScope/internal/metrics"
	"paymentScope/internal/model"
)

var (
	// ErrWrongExtension is returned when the request does not carry the detector's extension.
	ErrWrongExtension = errors.New("wrong extension")
	// ErrMissingParameter is returned when an extension value required for detection is unset.
	ErrMissingParameter = errors.New("missing required parameter")
)

// PaymentNetwork detects the balance of requests paid through one payment network.
// GetBalance never fails: errors are reported in the result.
type PaymentNetwork interface {
	ID() model.PaymentNetworkID
	GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents
	Extension() *extension.Builder
}

func wrongExtension(id model.PaymentNetworkID) error {
	return fmt.Errorf("%w: the request does not have the extension: %s", ErrWrongExtension, id)
}

func missingParameter(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingParameter, name)
}

// balanceError converts a detection error into a failed balance.
func balanceError(err error) model.BalanceWithEvents {
	code := model.ErrorUnknown
	switch {
	case errors.Is(err, ErrWrongExtension):
		code = model.ErrorWrongExtension
	case errors.Is(err, contracts.ErrNetworkNotSupported):
		code = model.ErrorNetworkNotSupported
	case errors.Is(err, contracts.ErrVersionNotSupported):
		code = model.ErrorVersionNotSupported
	}
	return model.FailedBalance(code, err.Error())
}

// instrumented records the outcome and latency of every detection.
type instrumented struct {
	PaymentNetwork
	recorder metrics.Recorder
}

func (n instrumented) GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents {
	start := time.Now()
	result := n.PaymentNetwork.GetBalance(ctx, req)
	outcome := metrics.OutcomeSuccess
	if result.Failed() {
		outcome = metrics.OutcomeError
	}
	n.recorder.ObserveDetection(string(n.ID()), outcome, time.Since(start))
	return result
}
