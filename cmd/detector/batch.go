package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paymentScope/internal/batch"
	"paymentScope/internal/config"
	"paymentScope/internal/storage"
)

func runBatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var sinks storage.Fanout
	if cfg.Out != "" {
		out := storage.NewJsonlStorage(cfg.Out)
		defer out.Close()
		sinks = append(sinks, out)
	}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	if len(sinks) == 0 {
		return fmt.Errorf("an output file or database url is required")
	}

	runner := batch.NewRunner(batch.RunConfig{
		Input:             cfg.In,
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.Concurrency,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
	}, a.factory, sinks, logger)

	logger.Info("batch start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	stats, err := runner.Run(ctx)
	logger.Info("batch done",
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
	)
	return err
}
