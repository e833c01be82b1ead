package thegraph

import (
	"bytes"
	"context"
	"fmt"
)

const flowFields = `
      transactionHash
      blockNumber
      timestamp
      sender
      flowRate
      oldFlowRate
      type`

// Tagged flows carry the payment reference in their user data. Untagged flows are
// the closing events of the same receiver and token, which carry no user data.
const getSuperFluidEventsQuery = `query GetSuperFluidEvents($reference: Bytes!, $to: Bytes!, $tokenAddress: Bytes) {
  flow: flowUpdatedEvents(
    where: { userData: $reference, receiver: $to, token: $tokenAddress }
    orderBy: timestamp
    orderDirection: asc
  ) {` + flowFields + `
  }
  untagged: flowUpdatedEvents(
    where: { userData: "0x", receiver: $to, token: $tokenAddress, type: 2 }
    orderBy: timestamp
    orderDirection: asc
  ) {` + flowFields + `
  }
}`

// Flow update types of the Superfluid constant flow agreement.
const (
	FlowCreated = 0
	FlowUpdated = 1
	FlowDeleted = 2
)

// Number is a subgraph BigInt, sent either as a JSON string or a JSON number.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	*n = Number(data)
	return nil
}

// FlowUpdatedEvent is one change of a Superfluid stream flow rate, in wei per second.
type FlowUpdatedEvent struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     Number `json:"blockNumber"`
	Timestamp       Number `json:"timestamp"`
	Sender          string `json:"sender"`
	FlowRate        Number `json:"flowRate"`
	OldFlowRate     Number `json:"oldFlowRate"`
	Type            int    `json:"type"`
}

// SuperfluidEvents is the result of GetSuperFluidEvents.
type SuperfluidEvents struct {
	Flow     []FlowUpdatedEvent `json:"flow"`
	Untagged []FlowUpdatedEvent `json:"untagged"`
}

// SuperfluidVariables selects the streams of one reference. Reference is the
// user data tag, 0xbeefac followed by the payment reference.
type SuperfluidVariables struct {
	Reference    string  `json:"reference"`
	To           string  `json:"to"`
	TokenAddress *string `json:"tokenAddress"`
}

// GetSuperFluidEvents returns the tagged and untagged flow updates of a receiver.
func (c *Client) GetSuperFluidEvents(ctx context.Context, vars SuperfluidVariables) (SuperfluidEvents, error) {
	var out SuperfluidEvents
	if err := c.gql.Do(ctx, getSuperFluidEventsQuery, vars, &out); err != nil {
		return SuperfluidEvents{}, fmt.Errorf("superfluid subgraph %s: %w", c.gql.Endpoint(), err)
	}
	return out, nil
}
