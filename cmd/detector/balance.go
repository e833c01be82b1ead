package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paymentScope/internal/config"
	"paymentScope/internal/model"
	"paymentScope/internal/storage"
)

func runBalance(cmd *cobra.Command, _ []string) error {
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

	if cfg.Request == "" {
		return fmt.Errorf("request file is required")
	}
	req, err := readRequest(cfg.Request)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result := a.factory.GetBalance(ctx, req)
	logger.Info("balance detected",
		zap.String("request_id", req.RequestID),
		zap.Bool("failed", result.Failed()),
		zap.Int("events", len(result.Events)),
		zap.Duration("elapsed", time.Since(start)),
	)

	var sinks storage.Fanout
	if cfg.Out != "" {
		out := storage.NewJsonlStorage(cfg.Out)
		defer out.Close()
		sinks = append(sinks, out)
	}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	if len(sinks) > 0 {
		snapshot := storage.Snapshot{RequestID: req.RequestID, DetectedAt: time.Now().UTC(), Result: result}
		if ids := req.PaymentNetworks(); len(ids) == 1 {
			snapshot.PaymentNetwork = ids[0]
		}
		if err := sinks.WriteSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func readRequest(path string) (*model.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var req model.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", path, err)
	}
	if req.RequestID == "" {
		return nil, fmt.Errorf("request %s has no requestId", path)
	}
	return &req, nil
}
