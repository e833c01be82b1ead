// Package thegraph queries payment subgraphs.
package thegraph

import (
	"context"
	"fmt"
	"sort"

	"paymentScope/internal/graphql"
)

const paymentFields = `
      amount
      block
      txHash
      feeAmount
      feeAddress
      from
      timestamp
      tokenAddress
      gasUsed
      gasPrice`

const getPaymentsAndEscrowStateQuery = `query GetPaymentsAndEscrowState($reference: Bytes!, $to: Bytes!, $tokenAddress: Bytes, $contractAddress: Bytes!) {
  payments(
    where: { reference: $reference, to: $to, tokenAddress: $tokenAddress, contractAddress: $contractAddress }
    orderBy: timestamp
    orderDirection: asc
  ) {` + paymentFields + `
  }
  escrowEvents(
    where: { reference: $reference, to: $to, tokenAddress: $tokenAddress, contractAddress: $contractAddress }
    orderBy: timestamp
    orderDirection: asc
  ) {
      from
      block
      timestamp
      txHash
      eventType
      gasUsed
      gasPrice
  }
}`

const getConversionPaymentsQuery = `query GetConversionPayments($reference: Bytes!, $to: Bytes!, $currency: Bytes!, $maxRateTimespan: Int!, $contractAddress: Bytes!) {
  payments(
    where: { reference: $reference, to: $to, currency: $currency, maxRateTimespan_lte: $maxRateTimespan, contractAddress: $contractAddress }
    orderBy: timestamp
    orderDirection: asc
  ) {` + paymentFields + `
      currency
      amountInCrypto
      feeAmountInCrypto
      maxRateTimespan
  }
}`

// Payment is one indexed proxy payment.
type Payment struct {
	Amount            string  `json:"amount"`
	Block             uint64  `json:"block"`
	TxHash            string  `json:"txHash"`
	FeeAmount         *string `json:"feeAmount"`
	FeeAddress        *string `json:"feeAddress"`
	From              string  `json:"from"`
	Timestamp         uint64  `json:"timestamp"`
	TokenAddress      *string `json:"tokenAddress"`
	GasUsed           string  `json:"gasUsed"`
	GasPrice          string  `json:"gasPrice"`
	Currency          *string `json:"currency,omitempty"`
	AmountInCrypto    *string `json:"amountInCrypto,omitempty"`
	FeeAmountInCrypto *string `json:"feeAmountInCrypto,omitempty"`
	MaxRateTimespan   *uint64 `json:"maxRateTimespan,omitempty"`
}

// EscrowEvent is one indexed escrow lifecycle event.
type EscrowEvent struct {
	From      string `json:"from"`
	Block     uint64 `json:"block"`
	Timestamp uint64 `json:"timestamp"`
	TxHash    string `json:"txHash"`
	EventType string `json:"eventType"`
	GasUsed   string `json:"gasUsed"`
	GasPrice  string `json:"gasPrice"`
}

// PaymentsAndEscrowState is the result of GetPaymentsAndEscrowState.
type PaymentsAndEscrowState struct {
	Payments     []Payment     `json:"payments"`
	EscrowEvents []EscrowEvent `json:"escrowEvents"`
}

// PaymentsVariables selects the payments of one reference.
// A nil TokenAddress is sent as null and selects native payments.
type PaymentsVariables struct {
	Reference       string  `json:"reference"`
	To              string  `json:"to"`
	TokenAddress    *string `json:"tokenAddress"`
	ContractAddress string  `json:"contractAddress"`
}

// ConversionVariables selects the conversion payments of one reference.
type ConversionVariables struct {
	Reference       string `json:"reference"`
	To              string `json:"to"`
	Currency        string `json:"currency"`
	MaxRateTimespan uint64 `json:"maxRateTimespan"`
	ContractAddress string `json:"contractAddress"`
}

// Client queries one subgraph.
type Client struct {
	gql *graphql.Client
}

func NewClient(endpoint string, opts ...graphql.Option) *Client {
	return &Client{gql: graphql.NewClient(endpoint, opts...)}
}

// GetPaymentsAndEscrowState returns the payments and escrow events of a reference.
func (c *Client) GetPaymentsAndEscrowState(ctx context.Context, vars PaymentsVariables) (PaymentsAndEscrowState, error) {
	var out PaymentsAndEscrowState
	if err := c.gql.Do(ctx, getPaymentsAndEscrowStateQuery, vars, &out); err != nil {
		return PaymentsAndEscrowState{}, fmt.Errorf("subgraph %s: %w", c.gql.Endpoint(), err)
	}
	return out, nil
}

// GetConversionPayments returns the conversion payments of a reference.
func (c *Client) GetConversionPayments(ctx context.Context, vars ConversionVariables) ([]Payment, error) {
	var out struct {
		Payments []Payment `json:"payments"`
	}
	if err := c.gql.Do(ctx, getConversionPaymentsQuery, vars, &out); err != nil {
		return nil, fmt.Errorf("subgraph %s: %w", c.gql.Endpoint(), err)
	}
	return out.Payments, nil
}

// Clients holds one subgraph client per chain.
type Clients struct {
	byChain map[string]*Client
}

// NewClients builds clients from a chain name to subgraph URL map.
func NewClients(endpoints map[string]string, opts ...graphql.Option) *Clients {
	byChain := make(map[string]*Client, len(endpoints))
	for chainName, url := range endpoints {
		if url == "" {
			continue
		}
		byChain[chainName] = NewClient(url, opts...)
	}
	return &Clients{byChain: byChain}
}

// For returns the client of chainName.
func (c *Clients) For(chainName string) (*Client, bool) {
	if c == nil {
		return nil, false
	}
	client, ok := c.byChain[chainName]
	return client, ok
}

// Networks returns the chains with a subgraph, sorted.
func (c *Clients) Networks() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.byChain))
	for name := range c.byChain {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
