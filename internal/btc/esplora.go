package btc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paymentScope/internal/model"
	"paymentScope/internal/retry"
)

// TxsPerPage is the page size of the esplora address transactions endpoint.
const TxsPerPage = 25

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// BlockstreamURLs are the blockstream.info API roots.
var BlockstreamURLs = map[Network]string{
	Mainnet: "https://blockstream.info/api/",
	Testnet: "https://blockstream.info/testnet/api/",
}

// MempoolURLs are the mempool.space API roots.
var MempoolURLs = map[Network]string{
	Mainnet: "https://mempool.space/api/",
	Testnet: "https://mempool.space/testnet/api/",
}

// EsploraOptions tunes an EsploraProvider.
type EsploraOptions struct {
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     *zap.Logger
}

// EsploraProvider reads address transactions from an esplora compatible explorer.
type EsploraProvider struct {
	name       string
	baseURLs   map[Network]string
	httpClient *http.Client
	retry      retry.Policy
	logger     *zap.Logger
}

// NewEsploraProvider builds a provider from API roots per network.
func NewEsploraProvider(name string, baseURLs map[Network]string, opts EsploraOptions) *EsploraProvider {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	policy := opts.Retry.WithDefaults(retry.Fixed(defaultMaxRetries, defaultRetryDelay))
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make(map[Network]string, len(baseURLs))
	for network, base := range baseURLs {
		copied[network] = strings.TrimSuffix(base, "/")
	}
	return &EsploraProvider{
		name:       name,
		baseURLs:   copied,
		httpClient: httpClient,
		retry:      policy,
		logger:     logger.With(zap.String("provider", name)),
	}
}

// NewBlockstreamProvider returns the blockstream.info provider.
func NewBlockstreamProvider(opts EsploraOptions) *EsploraProvider {
	return NewEsploraProvider("blockstream", BlockstreamURLs, opts)
}

// NewMempoolProvider returns the mempool.space provider.
func NewMempoolProvider(opts EsploraOptions) *EsploraProvider {
	return NewEsploraProvider("mempool", MempoolURLs, opts)
}

func (p *EsploraProvider) Name() string {
	return p.name
}

// GetAddressBalanceWithEvents reads every page of address transactions and parses them.
// Any failure is logged and reported as FailedBalance.
func (p *EsploraProvider) GetAddressBalanceWithEvents(ctx context.Context, network Network, address string, eventName model.EventName) Result {
	txs, err := p.fetchAll(ctx, network, address)
	if err != nil {
		p.logger.Warn("bitcoin provider failed",
			zap.String("network", network.String()),
			zap.String("address", address),
			zap.Error(err),
		)
		return Result{Balance: FailedBalance, Events: []model.PaymentEvent{}}
	}
	return Parse(address, txs, eventName)
}

func (p *EsploraProvider) fetchAll(ctx context.Context, network Network, address string) ([]Tx, error) {
	base, ok := p.baseURLs[network]
	if !ok {
		_, err := network.Params()
		if err == nil {
			err = fmt.Errorf("%w: no %s endpoint for %s", ErrInvalidNetwork, p.name, network)
		}
		return nil, err
	}
	addressURL := base + "/address/" + url.PathEscape(address) + "/txs"

	txs, err := p.fetchPage(ctx, addressURL)
	if err != nil {
		return nil, err
	}
	more := len(txs) == TxsPerPage
	for more {
		page, err := p.fetchPage(ctx, addressURL+"/chain/"+txs[len(txs)-1].TxID)
		if err != nil {
			return nil, err
		}
		more = len(page) == TxsPerPage
		txs = append(txs, page...)
	}
	return txs, nil
}

func (p *EsploraProvider) fetchPage(ctx context.Context, pageURL string) ([]Tx, error) {
	var txs []Tx
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return retry.Terminal(err)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.Terminal(fmt.Errorf("error %d: bad response from server %s", resp.StatusCode, pageURL))
		}
		txs = nil
		if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
			return retry.Terminal(fmt.Errorf("decode %s: %w", pageURL, err))
		}
		return nil
	})
	return txs, err
}

// Tx is the subset of an esplora transaction needed to detect payments.
type Tx struct {
	TxID   string `json:"txid"`
	Status struct {
		BlockHeight uint64 `json:"block_height"`
		BlockTime   uint64 `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		Prevout *struct {
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               uint64 `json:"value"`
	} `json:"vout"`
}

// Parse turns transactions into events: every output paying address in a transaction
// that does not spend from address.
func Parse(address string, txs []Tx, eventName model.EventName) Result {
	balance := new(big.Int)
	events := make([]model.PaymentEvent, 0)
	for _, tx := range txs {
		if spendsFrom(tx, address) {
			continue
		}
		for _, out := range tx.Vout {
			if out.ScriptPubKeyAddress != address {
				continue
			}
			balance.Add(balance, new(big.Int).SetUint64(out.Value))
			events = append(events, model.PaymentEvent{
				Amount:    strconv.FormatUint(out.Value, 10),
				Name:      eventName,
				Timestamp: model.Timestamp(tx.Status.BlockTime),
				Parameters: model.EventParameters{
					Block:  tx.Status.BlockHeight,
					TxHash: tx.TxID,
				},
			})
		}
	}
	return Result{Balance: balance.String(), Events: events}
}

func spendsFrom(tx Tx, address string) bool {
	for _, in := range tx.Vin {
		if in.Prevout != nil && in.Prevout.ScriptPubKeyAddress == address {
			return true
		}
	}
	return false
}
