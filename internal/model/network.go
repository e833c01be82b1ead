package model

// PaymentNetworkID identifies a payment network extension.
type PaymentNetworkID string

const (
	NetworkBitcoinAddressBased        PaymentNetworkID = "pn-bitcoin-address-based"
	NetworkTestnetBitcoinAddressBased PaymentNetworkID = "pn-testnet-bitcoin-address-based"
	NetworkERC20ProxyContract         PaymentNetworkID = "pn-erc20-proxy-contract"
	NetworkERC20FeeProxyContract      PaymentNetworkID = "pn-erc20-fee-proxy-contract"
	NetworkETHFeeProxyContract        PaymentNetworkID = "pn-eth-fee-proxy-contract"
	NetworkAnyDeclarative             PaymentNetworkID = "pn-any-declarative"
	NetworkAnyToERC20Proxy            PaymentNetworkID = "pn-any-to-erc20-proxy"
	NetworkAnyToETHProxy              PaymentNetworkID = "pn-any-to-eth-proxy"
	NetworkMeta                       PaymentNetworkID = "pn-meta"
	NetworkERC777Stream               PaymentNetworkID = "pn-erc777-stream"
)

// ExtensionTypePaymentNetwork is the extension type carried by payment networks.
const ExtensionTypePaymentNetwork = "payment-network"

// IsPaymentNetwork reports whether id names a known payment network.
func IsPaymentNetwork(id PaymentNetworkID) bool {
	switch id {
	case NetworkBitcoinAddressBased,
		NetworkTestnetBitcoinAddressBased,
		NetworkERC20ProxyContract,
		NetworkERC20FeeProxyContract,
		NetworkETHFeeProxyContract,
		NetworkAnyDeclarative,
		NetworkAnyToERC20Proxy,
		NetworkAnyToETHProxy,
		NetworkMeta,
		NetworkERC777Stream:
		return true
	default:
		return false
	}
}

// IsMetaSubNetwork reports whether id may be nested under a meta payment network.
func IsMetaSubNetwork(id PaymentNetworkID) bool {
	switch id {
	case NetworkAnyDeclarative, NetworkAnyToERC20Proxy, NetworkAnyToETHProxy:
		return true
	default:
		return false
	}
}
