package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paymentScope/internal/reference"
)

func main() {
	root := &cobra.Command{
		Use:          "detector",
		Short:        "Payment detection engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	referenceCmd := &cobra.Command{
		Use:   "reference",
		Short: "Compute the payment reference of a request",
		RunE:  runReference,
	}

	referenceCmd.Flags().String("request-id", "", "request id")
	referenceCmd.Flags().String("salt", "", "payment network salt")
	referenceCmd.Flags().String("address", "", "payment or refund address")

	root.AddCommand(referenceCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Detect the balance of a request",
		RunE:  runBalance,
	}

	addDetectionFlags(balanceCmd.Flags())
	balanceCmd.Flags().String("request", "", "request JSON file")
	balanceCmd.Flags().String("out", "", "append the balance snapshot to this JSONL file")

	root.AddCommand(balanceCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve balance detection over HTTP",
		RunE:  runServe,
	}

	addDetectionFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")

	root.AddCommand(serveCmd)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Detect the balances of a JSONL file of requests",
		RunE:  runBatch,
	}

	addDetectionFlags(batchCmd.Flags())
	batchCmd.Flags().String("in", "", "input requests JSONL")
	batchCmd.Flags().String("out", "./data/snapshots.jsonl", "output snapshots JSONL")
	batchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	batchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	batchCmd.Flags().Int("batch-size", 50, "requests per batch")
	batchCmd.Flags().Int("concurrency", 4, "concurrent detections per batch")

	root.AddCommand(batchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addDetectionFlags(flags *pflag.FlagSet) {
	flags.StringToString("networks", nil, "chain RPC URLs (chain=url, comma-separated)")
	flags.StringToString("subgraphs", nil, "chain payments subgraph URLs (chain=url, comma-separated)")
	flags.StringToString("superfluid-subgraphs", nil, "chain Superfluid subgraph URLs for ERC777 streams (chain=url, comma-separated)")
	flags.StringToString("deployments", nil, "proxy deployment overrides (artifact/chain/version=address@block)")
	flags.String("hasura-url", "", "payments index GraphQL URL")
	flags.String("hasura-secret", "", "payments index admin secret")
	flags.String("database-url", "", "Postgres DSN for snapshots and the payments table")
	flags.StringSlice("btc-providers", []string{"blockstream", "mempool"}, "bitcoin providers in query order")
	flags.Int("btc-retries", 3, "bitcoin provider retries")
	flags.Duration("btc-retry-delay", 100*time.Millisecond, "delay between bitcoin provider retries")
	flags.Uint64("max-block-range", 10_000, "maximum block span of one log query")
	flags.Int("rpc-retries", 3, "rpc retries")
	flags.Duration("rpc-retry-delay", 200*time.Millisecond, "initial delay between rpc retries")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runReference(cmd *cobra.Command, _ []string) error {
	requestID, _ := cmd.Flags().GetString("request-id")
	salt, _ := cmd.Flags().GetString("salt")
	address, _ := cmd.Flags().GetString("address")

	ref, err := reference.Calculate(requestID, salt, address)
	if err != nil {
		return fmt.Errorf("calculate reference: %w", err)
	}
	hashed, err := reference.Hashed(ref)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]string{"reference": ref, "hashed": hashed})
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
