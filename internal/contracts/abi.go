package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ProxyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": true, "internalType": "bytes", "name": "paymentReference", "type": "bytes"}
    ],
    "name": "TransferWithReference",
    "type": "event"
  }
]`

const erc20FeeProxyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": true, "internalType": "bytes", "name": "paymentReference", "type": "bytes"},
      {"indexed": false, "internalType": "uint256", "name": "feeAmount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "feeAddress", "type": "address"}
    ],
    "name": "TransferWithReferenceAndFee",
    "type": "event"
  }
]`

const ethFeeProxyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": true, "internalType": "bytes", "name": "paymentReference", "type": "bytes"},
      {"indexed": false, "internalType": "uint256", "name": "feeAmount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "feeAddress", "type": "address"}
    ],
    "name": "TransferWithReferenceAndFee",
    "type": "event"
  }
]`

const conversionProxyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "currency", "type": "address"},
      {"indexed": true, "internalType": "bytes", "name": "paymentReference", "type": "bytes"},
      {"indexed": false, "internalType": "uint256", "name": "feeAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "maxRateTimespan", "type": "uint256"}
    ],
    "name": "TransferWithConversionAndReference",
    "type": "event"
  }
]`

type parsedABI struct {
	once sync.Once
	abi  abi.ABI
	err  error
	json string
}

func (p *parsedABI) get() (abi.ABI, error) {
	p.once.Do(func() {
		p.abi, p.err = abi.JSON(strings.NewReader(p.json))
	})
	return p.abi, p.err
}

var (
	erc20ProxyABI      = &parsedABI{json: erc20ProxyABIJSON}
	erc20FeeProxyABI   = &parsedABI{json: erc20FeeProxyABIJSON}
	ethFeeProxyABI     = &parsedABI{json: ethFeeProxyABIJSON}
	conversionProxyABI = &parsedABI{json: conversionProxyABIJSON}
)

// ERC20ProxyABI returns the parsed ERC20 proxy ABI.
func ERC20ProxyABI() (abi.ABI, error) { return erc20ProxyABI.get() }

// ERC20FeeProxyABI returns the parsed ERC20 fee proxy ABI.
func ERC20FeeProxyABI() (abi.ABI, error) { return erc20FeeProxyABI.get() }

// ETHFeeProxyABI returns the parsed native fee proxy ABI.
func ETHFeeProxyABI() (abi.ABI, error) { return ethFeeProxyABI.get() }

// ConversionProxyABI returns the parsed conversion proxy ABI, shared by the ERC20 and native conversion proxies.
func ConversionProxyABI() (abi.ABI, error) { return conversionProxyABI.get() }
