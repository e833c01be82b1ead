// Package postgres persists balance snapshots and reads indexed payments from Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paymentScope/internal/model"
	"paymentScope/internal/storage"
)

// Schema creates the snapshot tables.
const Schema = `
CREATE TABLE IF NOT EXISTS balance_snapshots (
	request_id      TEXT NOT NULL,
	payment_network TEXT NOT NULL,
	balance         NUMERIC,
	fee_balance     NUMERIC,
	error_code      TEXT,
	error_message   TEXT,
	detected_at     TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (request_id, payment_network)
);

CREATE TABLE IF NOT EXISTS payment_events (
	request_id      TEXT NOT NULL,
	payment_network TEXT NOT NULL,
	event_index     INTEGER NOT NULL,
	name            TEXT NOT NULL,
	amount          NUMERIC NOT NULL,
	ts              BIGINT,
	tx_hash         TEXT,
	block_number    BIGINT,
	parameters      JSONB NOT NULL,
	PRIMARY KEY (request_id, payment_network, event_index)
);
`

// Store provides Postgres persistence for balance snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

type snapshotRow struct {
	balance      *string
	feeBalance   *string
	errorCode    *string
	errorMessage *string
}

func snapshotValues(result model.BalanceWithEvents) snapshotRow {
	row := snapshotRow{balance: result.Balance}
	if result.FeeBalance != nil {
		row.feeBalance = result.FeeBalance.Balance
	}
	if result.Error != nil {
		code := string(result.Error.Code)
		row.errorCode = &code
		row.errorMessage = &result.Error.Message
	}
	return row
}

type eventRow struct {
	index      int
	name       string
	amount     string
	timestamp  *int64
	txHash     string
	block      *int64
	parameters []byte
}

func eventValues(events []model.PaymentEvent) ([]eventRow, error) {
	rows := make([]eventRow, 0, len(events))
	for i, event := range events {
		parameters, err := json.Marshal(event.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal event parameters: %w", err)
		}
		row := eventRow{
			index:      i,
			name:       string(event.Name),
			amount:     event.Amount,
			txHash:     event.Parameters.TxHash,
			parameters: parameters,
		}
		if row.amount == "" {
			row.amount = "0"
		}
		if event.Timestamp != nil {
			ts := int64(*event.Timestamp)
			row.timestamp = &ts
		}
		if event.Parameters.Block != 0 {
			block := int64(event.Parameters.Block)
			row.block = &block
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteSnapshot upserts the snapshot and replaces its events.
func (s *Store) WriteSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	events, err := eventValues(snapshot.Result.Events)
	if err != nil {
		return err
	}
	values := snapshotValues(snapshot.Result)
	network := string(snapshot.PaymentNetwork)

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO balance_snapshots (
			request_id, payment_network, balance, fee_balance, error_code, error_message, detected_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (request_id, payment_network)
		DO UPDATE SET
			balance = EXCLUDED.balance,
			fee_balance = EXCLUDED.fee_balance,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			detected_at = EXCLUDED.detected_at,
			updated_at = now()
	`,
		snapshot.RequestID,
		network,
		values.balance,
		values.feeBalance,
		values.errorCode,
		values.errorMessage,
		snapshot.DetectedAt,
	)
	batch.Queue(`DELETE FROM payment_events WHERE request_id = $1 AND payment_network = $2`, snapshot.RequestID, network)
	for _, e := range events {
		batch.Queue(`
			INSERT INTO payment_events (
				request_id, payment_network, event_index, name, amount, ts, tx_hash, block_number, parameters
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			snapshot.RequestID,
			network,
			e.index,
			e.name,
			e.amount,
			e.timestamp,
			e.txHash,
			e.block,
			e.parameters,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("write snapshot %s: %w", snapshot.RequestID, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
