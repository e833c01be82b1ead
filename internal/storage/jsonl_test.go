package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"paymentScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshots.jsonl")
	s := NewJsonlStorage(path)

	balance := "1200"
	snapshots := []Snapshot{
		{
			RequestID:      "0x01",
			PaymentNetwork: model.NetworkAnyDeclarative,
			DetectedAt:     time.Unix(1700000000, 0).UTC(),
			Result:         model.BalanceWithEvents{Balance: &balance, Events: []model.PaymentEvent{{Amount: "1200", Name: model.EventPayment}}},
		},
		{
			RequestID:      "0x02",
			PaymentNetwork: model.NetworkERC20FeeProxyContract,
			DetectedAt:     time.Unix(1700000060, 0).UTC(),
			Result:         model.FailedBalance(model.ErrorNetworkNotSupported, "no deployment"),
		},
	}
	for _, snapshot := range snapshots {
		if err := s.WriteSnapshot(context.Background(), snapshot); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
	}
	s.Close()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var got []Snapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snapshot Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &snapshot); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		got = append(got, snapshot)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if *got[0].Result.Balance != "1200" || got[1].Result.Error.Code != model.ErrorNetworkNotSupported {
		t.Fatalf("unexpected snapshots %+v", got)
	}
	if !got[1].DetectedAt.Equal(snapshots[1].DetectedAt) {
		t.Fatalf("unexpected detection time %s", got[1].DetectedAt)
	}
}

type failingStorage struct{ closed *bool }

func (s failingStorage) WriteSnapshot(context.Context, Snapshot) error {
	return os.ErrPermission
}

func (s failingStorage) Close() { *s.closed = true }

func TestFanout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	closed := false
	fanout := Fanout{NewJsonlStorage(path), failingStorage{closed: &closed}}

	err := fanout.WriteSnapshot(context.Background(), Snapshot{RequestID: "0x01"})
	if err != os.ErrPermission {
		t.Fatalf("expected the failing sink error, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("first sink must have been written: %v", err)
	}
	fanout.Close()
	if !closed {
		t.Fatalf("close must reach every sink")
	}
}
