package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"paymentScope/internal/model"
	"paymentScope/internal/retry"
)

const (
	defaultTimestampCacheSize = 4096
	defaultMaxBlockRange      = 10_000
)

// Options tunes a chain client.
type Options struct {
	MaxBlockRange      uint64
	Retry              retry.Policy
	TimestampCacheSize int
	Logger             *zap.Logger
}

// LogQuery selects logs of one contract event between two blocks.
// Topics follows the eth_getLogs positional layout.
type LogQuery struct {
	FromBlock uint64
	ToBlock   *uint64
	Addresses []string
	Topics    [][]common.Hash
}

// LogSource is the read side of a chain used by log retrievers.
type LogSource interface {
	FetchLogs(ctx context.Context, query LogQuery) ([]model.LogRecord, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	name      string
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	tsCache       *lru.Cache[uint64, uint64]
	maxBlockRange uint64
	retry         retry.Policy
	logger        *zap.Logger
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, name, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", name, err)
	}

	size := opts.TimestampCacheSize
	if size <= 0 {
		size = defaultTimestampCacheSize
	}
	cache, err := lru.New[uint64, uint64](size)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	maxRange := opts.MaxBlockRange
	if maxRange == 0 {
		maxRange = defaultMaxBlockRange
	}
	policy := opts.Retry.WithDefaults(retry.Exponential(3, 200*time.Millisecond))
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		name:          name,
		rpcClient:     rpcClient,
		ethClient:     ethclient.NewClient(rpcClient),
		tsCache:       cache,
		maxBlockRange: maxRange,
		retry:         policy,
		logger:        logger.With(zap.String("network", name)),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Name returns the chain name the client was dialed for.
func (c *Client) Name() string {
	return c.name
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.tsCache.Get(number); ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}

	c.tsCache.Add(number, header.Time)
	return header.Time, nil
}

// FilterLogs returns logs in the given range for addresses and topic filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topics [][]common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    topics,
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// FetchLogs returns every log matching the query. The whole range is requested first;
// when the node refuses it the range is split into batches of MaxBlockRange blocks.
func (c *Client) FetchLogs(ctx context.Context, query LogQuery) ([]model.LogRecord, error) {
	addresses, err := ParseAddresses(query.Addresses)
	if err != nil {
		return nil, err
	}

	toBlock := uint64(0)
	if query.ToBlock != nil {
		toBlock = *query.ToBlock
	} else {
		toBlock, err = c.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest block: %w", err)
		}
	}
	if toBlock < query.FromBlock {
		return []model.LogRecord{}, nil
	}

	logs, err := c.FilterLogs(ctx, query.FromBlock, toBlock, addresses, query.Topics)
	if err == nil {
		return c.toRecords(logs), nil
	}
	if !IsRangeError(err) {
		return nil, fmt.Errorf("filter logs %d-%d: %w", query.FromBlock, toBlock, err)
	}

	c.logger.Warn("rpc refused full log range, splitting",
		zap.Uint64("from_block", query.FromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Uint64("batch_size", c.maxBlockRange),
		zap.Error(err),
	)

	ranges, err := SplitRange(query.FromBlock, toBlock, c.maxBlockRange)
	if err != nil {
		return nil, err
	}
	records := make([]model.LogRecord, 0)
	for _, r := range ranges {
		var batch []types.Log
		err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
			var callErr error
			batch, callErr = c.FilterLogs(ctx, r.From, r.To, addresses, query.Topics)
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", r.From, r.To, err)
		}
		records = append(records, c.toRecords(batch)...)
	}
	return records, nil
}

func (c *Client) toRecords(logs []types.Log) []model.LogRecord {
	out := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		out = append(out, buildLogRecord(c.name, log))
	}
	return out
}

var rangeErrorHints = []string{
	"block range",
	"range too large",
	"range is too large",
	"exceed maximum block range",
	"query returned more than",
	"response size exceeded",
	"log response size",
	"too many blocks",
	"limit exceeded",
}

// IsRangeError reports whether the node refused a log query because of its size.
func IsRangeError(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32005 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rangeErrorHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
