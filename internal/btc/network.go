// Package btc detects payments to bitcoin addresses through several block explorers.
package btc

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Network is the bitcoin network id used by payment networks: 0 for mainnet, 3 for testnet.
type Network int

const (
	Mainnet Network = 0
	Testnet Network = 3
)

// ErrInvalidNetwork is returned for network ids other than Mainnet and Testnet.
var ErrInvalidNetwork = errors.New("invalid bitcoin network")

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	default:
		return fmt.Sprintf("network(%d)", int(n))
	}
}

// Params returns the chain parameters of the network.
func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	default:
		return nil, fmt.Errorf("%w: 0 (mainnet) or 3 (testnet) was expected but %d was given", ErrInvalidNetwork, int(n))
	}
}

// ValidateAddress checks that address is a valid address of the network.
func ValidateAddress(network Network, address string) error {
	params, err := network.Params()
	if err != nil {
		return err
	}
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	if !decoded.IsForNet(params) {
		return fmt.Errorf("bitcoin address %q is not a %s address", address, network)
	}
	return nil
}
