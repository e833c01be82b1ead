// Package reference derives payment references from request identifiers.
package reference

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Length is the size of a payment reference in bytes.
const Length = 8

// ErrInvalidArgument is returned when an input of Calculate is missing.
var ErrInvalidArgument = errors.New("Invalid argument")

// Calculate returns the payment reference for a request, salt and address.
// The reference is the last 8 bytes of keccak256(lower(requestID + salt + address)), hex encoded.
func Calculate(requestID, salt, address string) (string, error) {
	if requestID == "" || salt == "" || address == "" {
		return "", ErrInvalidArgument
	}
	digest := crypto.Keccak256([]byte(strings.ToLower(requestID + salt + address)))
	return hex.EncodeToString(digest[len(digest)-Length:]), nil
}

// Topic returns the hashed reference, as stored in an indexed bytes topic.
func Topic(ref string) (common.Hash, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(ref), "0x"))
	if err != nil {
		return common.Hash{}, fmt.Errorf("decode reference %q: %w", ref, err)
	}
	if len(raw) == 0 {
		return common.Hash{}, ErrInvalidArgument
	}
	return crypto.Keccak256Hash(raw), nil
}

// Hashed returns the hashed reference as a 0x-prefixed hex string, the key used by subgraphs and Hasura.
func Hashed(ref string) (string, error) {
	topic, err := Topic(ref)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(topic.Bytes()), nil
}
