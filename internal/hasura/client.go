// Package hasura reads indexed payments for chains without a subgraph.
package hasura

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"paymentScope/internal/graphql"
)

// DefaultURL is the public payments index.
const DefaultURL = "https://graphql.request.network/v1/graphql"

// Amount decodes an integer amount sent either as a JSON string or a JSON number.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = Amount(n.String())
	return nil
}

// Payment is one row of the payments table.
type Payment struct {
	ID               string `json:"id"`
	Chain            string `json:"chain"`
	TxHash           string `json:"tx_hash"`
	BlockNumber      uint64 `json:"block_number"`
	Timestamp        uint64 `json:"timestamp"`
	ContractAddress  string `json:"contract_address"`
	TokenAddress     string `json:"token_address"`
	FromAddress      string `json:"from_address"`
	ToAddress        string `json:"to_address"`
	Amount           Amount `json:"amount"`
	FeeAmount        Amount `json:"fee_amount"`
	FeeAddress       string `json:"fee_address"`
	PaymentReference string `json:"payment_reference"`
	EnergyUsed       Amount `json:"energy_used,omitempty"`
	EnergyFee        Amount `json:"energy_fee,omitempty"`
	NetFee           Amount `json:"net_fee,omitempty"`
}

// PaymentsQuery filters payments. Empty optional fields are not filtered on.
type PaymentsQuery struct {
	PaymentReference string
	ToAddress        string
	Chain            string
	TokenAddress     string
	ContractAddress  string
}

// Querier reads payments by reference.
type Querier interface {
	GetPaymentsByReference(ctx context.Context, query PaymentsQuery) ([]Payment, error)
}

// Options configures a Client.
type Options struct {
	URL         string
	AdminSecret string
	Headers     map[string]string
}

// Client queries the payments table over Hasura GraphQL.
type Client struct {
	gql *graphql.Client
}

func NewClient(opts Options) *Client {
	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	gqlOpts := []graphql.Option{graphql.WithHeader("x-hasura-admin-secret", opts.AdminSecret)}
	for name, value := range opts.Headers {
		gqlOpts = append(gqlOpts, graphql.WithHeader(name, value))
	}
	return &Client{gql: graphql.NewClient(url, gqlOpts...)}
}

// GetPaymentsByReference returns the payments of a hashed reference to an address, oldest first.
func (c *Client) GetPaymentsByReference(ctx context.Context, query PaymentsQuery) ([]Payment, error) {
	document, variables := buildPaymentsQuery(query)

	var out struct {
		Payments []Payment `json:"payments"`
	}
	err := c.gql.Do(ctx, document, variables, &out)
	var statusErr *graphql.StatusError
	var queryErr *graphql.QueryError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		return nil, fmt.Errorf("Hasura request failed: %s", statusErr.Status)
	case errors.As(err, &queryErr):
		return nil, fmt.Errorf("Hasura query error: %s", strings.Join(queryErr.Messages, "; "))
	default:
		return nil, err
	}
	if out.Payments == nil {
		return []Payment{}, nil
	}
	return out.Payments, nil
}

func buildPaymentsQuery(query PaymentsQuery) (string, map[string]string) {
	params := []string{"$paymentReference: String!", "$toAddress: String!"}
	filters := []string{
		"payment_reference: { _eq: $paymentReference }",
		"to_address: { _eq: $toAddress }",
	}
	variables := map[string]string{
		"paymentReference": query.PaymentReference,
		"toAddress":        query.ToAddress,
	}
	if query.Chain != "" {
		params = append(params, "$chain: String!")
		filters = append(filters, "chain: { _eq: $chain }")
		variables["chain"] = query.Chain
	}
	if query.TokenAddress != "" {
		params = append(params, "$tokenAddress: String!")
		filters = append(filters, "token_address: { _ilike: $tokenAddress }")
		variables["tokenAddress"] = query.TokenAddress
	}
	if query.ContractAddress != "" {
		params = append(params, "$contractAddress: String!")
		filters = append(filters, "contract_address: { _ilike: $contractAddress }")
		variables["contractAddress"] = query.ContractAddress
	}

	document := fmt.Sprintf(`query GetPaymentsByReference(%s) {
  payments(where: { %s }, order_by: { timestamp: asc }) {
    id
    chain
    tx_hash
    block_number
    timestamp
    contract_address
    token_address
    from_address
    to_address
    amount
    fee_amount
    fee_address
    payment_reference
    energy_used
    energy_fee
    net_fee
  }
}`, strings.Join(params, ", "), strings.Join(filters, ", "))
	return document, variables
}
