// Package batch detects the balances of a file of requests, resuming from a checkpoint.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paymentScope/internal/model"
	"paymentScope/internal/storage"
)

const maxLineSize = 4 << 20

// Detector computes the balance of a request.
type Detector interface {
	GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents
}

// RunConfig holds runtime settings for a batch run.
type RunConfig struct {
	Input             string
	BatchSize         int
	Concurrency       int
	CheckpointPath    string
	CheckpointEnabled bool
}

// Stats summarizes a run.
type Stats struct {
	Processed  int
	Failed     int
	Duplicates int
	Skipped    int
}

// Runner reads requests line by line, detects their balances and writes snapshots to storage.
type Runner struct {
	cfg        RunConfig
	detector   Detector
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
	now        func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, detector Detector, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		detector:   detector,
		storage:    storageSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		now:        time.Now,
	}
}

type pending struct {
	line uint64
	req  *model.Request
}

// Run processes the input file. Snapshots of a batch are written in input order
// and the checkpoint moves to the last line of the batch once they are stored.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.detector == nil {
		return stats, fmt.Errorf("detector is nil")
	}
	if r.storage == nil {
		return stats, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Input == "" {
		return stats, fmt.Errorf("input file is required")
	}

	progress := Checkpoint{Input: r.cfg.Input}
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return stats, err
	}
	if ok && cp.Input == r.cfg.Input {
		progress = cp
		r.logger.Info("resume from checkpoint",
			zap.Uint64("line", cp.Line),
			zap.String("last_request_id", cp.LastRequestID),
		)
	}
	resumeAfter := progress.Line

	file, err := os.Open(r.cfg.Input)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		line  uint64
		batch []pending
	)
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var req model.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return stats, fmt.Errorf("decode request on line %d: %w", line, err)
		}
		if line <= resumeAfter {
			r.seen[req.RequestID] = struct{}{}
			stats.Skipped++
			continue
		}
		if r.isDuplicate(req.RequestID) {
			stats.Duplicates++
			continue
		}
		batch = append(batch, pending{line: line, req: &req})

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch, line, &stats, &progress); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}
	if line > resumeAfter {
		if err := r.flush(ctx, batch, line, &stats, &progress); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (r *Runner) flush(ctx context.Context, batch []pending, lastLine uint64, stats *Stats, progress *Checkpoint) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	results := make([]model.BalanceWithEvents, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Concurrency > 0 {
		g.SetLimit(r.cfg.Concurrency)
	}
	for i, item := range batch {
		i, item := i, item
		g.Go(func() error {
			results[i] = r.detector.GetBalance(gctx, item.req)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	detectedAt := r.now().UTC()
	for i, item := range batch {
		snapshot := storage.Snapshot{RequestID: item.req.RequestID, DetectedAt: detectedAt, Result: results[i]}
		if ids := item.req.PaymentNetworks(); len(ids) == 1 {
			snapshot.PaymentNetwork = ids[0]
		}
		if err := r.storage.WriteSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("store snapshot of line %d: %w", item.line, err)
		}
		stats.Processed++
		progress.Processed++
		progress.LastRequestID = item.req.RequestID
		if results[i].Failed() {
			stats.Failed++
			progress.Failed++
			r.logger.Warn("balance detection failed",
				zap.String("request_id", item.req.RequestID),
				zap.String("code", string(results[i].Error.Code)),
				zap.String("message", results[i].Error.Message),
			)
		}
	}

	progress.Line = lastLine
	if err := r.checkpoint.Save(*progress); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	r.logger.Info("batch complete", zap.Int("requests", len(batch)), zap.Uint64("last_line", lastLine))
	return nil
}

func (r *Runner) isDuplicate(requestID string) bool {
	if _, ok := r.seen[requestID]; ok {
		return true
	}
	r.seen[requestID] = struct{}{}
	return false
}
