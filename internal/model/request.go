package model

import "sort"

// CurrencyType is the storage type of a request currency.
type CurrencyType string

const (
	CurrencyBTC     CurrencyType = "BTC"
	CurrencyETH     CurrencyType = "ETH"
	CurrencyERC20   CurrencyType = "ERC20"
	CurrencyERC777  CurrencyType = "ERC777"
	CurrencyISO4217 CurrencyType = "ISO4217"
)

// Currency is the storage form of a currency: a type, a value (symbol or token address) and an optional chain.
type Currency struct {
	Type    CurrencyType `json:"type"`
	Value   string       `json:"value"`
	Network string       `json:"network,omitempty"`
}

// Request is the finalized state of an invoice as read from the request log.
type Request struct {
	RequestID      string                              `json:"requestId"`
	Currency       Currency                            `json:"currency"`
	ExpectedAmount string                              `json:"expectedAmount"`
	Timestamp      uint64                              `json:"timestamp"`
	Extensions     map[PaymentNetworkID]ExtensionState `json:"extensions"`
}

// ExtensionState is the state of one extension attached to a request.
type ExtensionState struct {
	ID      PaymentNetworkID `json:"id"`
	Type    string           `json:"type"`
	Version string           `json:"version"`
	Values  ExtensionValues  `json:"values"`
	Events  []ExtensionEvent `json:"events,omitempty"`
}

// ExtensionValues holds the payment network parameters stored on the request.
type ExtensionValues struct {
	PaymentAddress  string   `json:"paymentAddress,omitempty"`
	RefundAddress   string   `json:"refundAddress,omitempty"`
	Salt            string   `json:"salt,omitempty"`
	Network         string   `json:"network,omitempty"`
	AcceptedTokens  []string `json:"acceptedTokens,omitempty"`
	MaxRateTimespan uint64   `json:"maxRateTimespan,omitempty"`
	FeeAddress      string   `json:"feeAddress,omitempty"`
	FeeAmount       string   `json:"feeAmount,omitempty"`
	PaymentInfo     any      `json:"paymentInfo,omitempty"`
	RefundInfo      any      `json:"refundInfo,omitempty"`

	// Recurring stream requests point at the request that opened the stream.
	MasterRequestID   string `json:"masterRequestId,omitempty"`
	PreviousRequestID string `json:"previousRequestId,omitempty"`
	RecurrenceNumber  uint64 `json:"recurrenceNumber,omitempty"`

	// SubNetworks is only set on meta payment networks, keyed by sub-network identifier.
	SubNetworks map[string]ExtensionState `json:"subNetworks,omitempty"`
}

// ExtensionEvent is an action applied to an extension, as recorded on the request log.
type ExtensionEvent struct {
	Name       string                   `json:"name"`
	Parameters ExtensionEventParameters `json:"parameters"`
	Timestamp  uint64                   `json:"timestamp"`
}

// ExtensionEventParameters are the parameters of declarative actions.
type ExtensionEventParameters struct {
	Amount  string `json:"amount,omitempty"`
	Note    string `json:"note,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Network string `json:"network,omitempty"`
}

// Action is extension data to append to a request's extension log.
type Action struct {
	Action     string           `json:"action"`
	ID         PaymentNetworkID `json:"id"`
	Version    string           `json:"version,omitempty"`
	Parameters map[string]any   `json:"parameters"`
}

// PaymentExtension returns the payment network extension state of the request.
func (r *Request) PaymentExtension(id PaymentNetworkID) (ExtensionState, bool) {
	if r == nil || r.Extensions == nil {
		return ExtensionState{}, false
	}
	ext, ok := r.Extensions[id]
	return ext, ok
}

// PaymentNetworks returns the payment network extensions of the request, sorted.
func (r *Request) PaymentNetworks() []PaymentNetworkID {
	if r == nil {
		return nil
	}
	var ids []PaymentNetworkID
	for id, ext := range r.Extensions {
		if ext.Type == ExtensionTypePaymentNetwork || IsPaymentNetwork(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
