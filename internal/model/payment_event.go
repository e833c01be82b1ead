package model

// EventName determines how an event contributes to a balance.
type EventName string

const (
	EventPayment                EventName = "payment"
	EventRefund                 EventName = "refund"
	EventFreezeEscrow           EventName = "freeze_escrow"
	EventInitiateEmergencyClaim EventName = "initiate_emergency_claim"
	EventRevertEmergencyClaim   EventName = "revert_emergency_claim"
	EventPaidEscrow             EventName = "paid_escrow"
)

// Stream event names carried by ERC777 stream payments.
const (
	StreamStart  = "start_stream"
	StreamUpdate = "update_stream"
	StreamEnd    = "end_stream"
)

// PaymentEvent is a detected payment, refund or lifecycle event.
// Amount is always a non-negative base-unit integer.
type PaymentEvent struct {
	Amount     string          `json:"amount"`
	Name       EventName       `json:"name"`
	Timestamp  *uint64         `json:"timestamp,omitempty"`
	Parameters EventParameters `json:"parameters"`
}

// EventParameters carries the provenance of an event.
type EventParameters struct {
	Block             uint64 `json:"block,omitempty"`
	TxHash            string `json:"txHash,omitempty"`
	To                string `json:"to,omitempty"`
	From              string `json:"from,omitempty"`
	FeeAddress        string `json:"feeAddress,omitempty"`
	FeeAmount         string `json:"feeAmount,omitempty"`
	TokenAddress      string `json:"tokenAddress,omitempty"`
	Note              string `json:"note,omitempty"`
	Network           string `json:"network,omitempty"`
	MaxRateTimespan   string `json:"maxRateTimespan,omitempty"`
	AmountInCrypto    string `json:"amountInCrypto,omitempty"`
	FeeAmountInCrypto string `json:"feeAmountInCrypto,omitempty"`
	GasUsed           string `json:"gasUsed,omitempty"`
	GasPrice          string `json:"gasPrice,omitempty"`
	EnergyUsed        string `json:"energyUsed,omitempty"`
	EnergyFee         string `json:"energyFee,omitempty"`
	NetFee            string `json:"netFee,omitempty"`
	StreamEventName   string `json:"streamEventName,omitempty"`
}

// TransferEvents is what a retriever returns for one query.
type TransferEvents struct {
	PaymentEvents []PaymentEvent
	EscrowEvents  []PaymentEvent
}

// Timestamp returns a pointer to ts.
func Timestamp(ts uint64) *uint64 {
	return &ts
}

// TimestampOf returns the event timestamp, or 0 when the event has none.
func (e PaymentEvent) TimestampOf() uint64 {
	if e.Timestamp == nil {
		return 0
	}
	return *e.Timestamp
}
