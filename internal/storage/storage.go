// Package storage persists balance snapshots.
package storage

import (
	"context"
	"time"

	"paymentScope/internal/model"
)

// Snapshot is the result of one balance detection of a request.
type Snapshot struct {
	RequestID      string                  `json:"requestId"`
	PaymentNetwork model.PaymentNetworkID  `json:"paymentNetwork"`
	DetectedAt     time.Time               `json:"detectedAt"`
	Result         model.BalanceWithEvents `json:"result"`
}

// Storage defines a sink for balance snapshots.
type Storage interface {
	WriteSnapshot(ctx context.Context, snapshot Snapshot) error
	Close()
}

// Fanout writes every snapshot to each sink in order and stops at the first error.
type Fanout []Storage

func (f Fanout) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	for _, sink := range f {
		if err := sink.WriteSnapshot(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) Close() {
	for _, sink := range f {
		sink.Close()
	}
}
