package contracts

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Artifact names a proxy contract family.
type Artifact string

const (
	ERC20Proxy           Artifact = "erc20-proxy"
	ERC20FeeProxy        Artifact = "erc20-fee-proxy"
	ETHFeeProxy          Artifact = "eth-fee-proxy"
	ERC20ConversionProxy Artifact = "erc20-conversion-proxy"
	ETHConversionProxy   Artifact = "eth-conversion-proxy"
)

var (
	ErrNetworkNotSupported = errors.New("network not supported")
	ErrVersionNotSupported = errors.New("version not supported")
)

// Deployment locates a proxy on one chain.
type Deployment struct {
	Address       string `json:"address"`
	CreationBlock uint64 `json:"creationBlockNumber"`
}

// Registry resolves proxy deployments.
type Registry interface {
	Deployment(artifact Artifact, chain, version string) (Deployment, error)
}

// StaticRegistry is an in-memory Registry, keyed by artifact, version and chain.
type StaticRegistry struct {
	mu          sync.RWMutex
	deployments map[Artifact]map[string]map[string]Deployment
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{deployments: make(map[Artifact]map[string]map[string]Deployment)}
}

// Register adds or replaces a deployment.
func (r *StaticRegistry) Register(artifact Artifact, version, chain string, deployment Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions, ok := r.deployments[artifact]
	if !ok {
		versions = make(map[string]map[string]Deployment)
		r.deployments[artifact] = versions
	}
	chains, ok := versions[version]
	if !ok {
		chains = make(map[string]Deployment)
		versions[version] = chains
	}
	chains[chain] = deployment
}

// Deployment returns the deployment of artifact at version on chain.
func (r *StaticRegistry) Deployment(artifact Artifact, chain, version string) (Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.deployments[artifact]
	if !ok {
		return Deployment{}, fmt.Errorf("unknown artifact %s: %w", artifact, ErrVersionNotSupported)
	}
	chains, ok := versions[version]
	if !ok {
		return Deployment{}, fmt.Errorf("no deployment of %s for version %s: %w", artifact, version, ErrVersionNotSupported)
	}
	deployment, ok := chains[chain]
	if !ok {
		return Deployment{}, fmt.Errorf("no deployment of %s %s for network %s: %w", artifact, version, chain, ErrNetworkNotSupported)
	}
	return deployment, nil
}

// Versions returns the known versions of an artifact, sorted.
func (r *StaticRegistry) Versions(artifact Artifact) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.deployments[artifact]))
	for version := range r.deployments[artifact] {
		out = append(out, version)
	}
	sort.Strings(out)
	return out
}

// ApplyOverrides registers deployments given as "artifact/chain/version" => "address@block".
func (r *StaticRegistry) ApplyOverrides(overrides map[string]string) error {
	for key, value := range overrides {
		parts := strings.Split(key, "/")
		if len(parts) != 3 {
			return fmt.Errorf("invalid deployment key %q, expected artifact/chain/version", key)
		}
		address, blockText, ok := strings.Cut(value, "@")
		if !ok {
			blockText = "0"
		}
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid deployment address for %s: %s", key, address)
		}
		block, err := strconv.ParseUint(blockText, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid creation block for %s: %w", key, err)
		}
		r.Register(Artifact(parts[0]), parts[2], parts[1], Deployment{Address: address, CreationBlock: block})
	}
	return nil
}

// DefaultRegistry returns the known proxy deployments.
func DefaultRegistry() *StaticRegistry {
	r := NewStaticRegistry()

	r.Register(ERC20Proxy, "0.1.0", "private", Deployment{Address: "0x2C2B9C9a4a25e24B174f26114e8926a9f2128FE4"})
	r.Register(ERC20Proxy, "0.1.0", "mainnet", Deployment{Address: "0x5f821c20947ff9be22e823edc5b3c709b33121b3", CreationBlock: 9119380})

	feeProxy := map[string]Deployment{
		"private":   {Address: "0x75c35C980C0d37ef46DF04d31A140b65503c0eEd"},
		"mainnet":   {Address: "0x370DE27fdb7D1Ff1e1BaA7D11c5820a324Cf623C", CreationBlock: 10774767},
		"rinkeby":   {Address: "0xda46309973bFfDdD5a10cE12c44d2EE266f45A44", CreationBlock: 7118080},
		"goerli":    {Address: "0x399F5EE127ce7432E4921a61b8CF52b0af52cbfE", CreationBlock: 7091472},
		"mumbai":    {Address: "0x131eb294E3803F23dc2882AB795631A12D1d8929", CreationBlock: 13127007},
		"celo":      {Address: "0x2171a0dc12a9E5b1659feF2BB20E54c84Fa7dB0C", CreationBlock: 7169237},
		"alfajores": {Address: "0x612cF8a29A9c8965a5fE512b7463165861c07EAa", CreationBlock: 5216414},
		"fuse":      {Address: "0xee07ef5B414955188d2A9fF50bdCE784A49031Fc", CreationBlock: 11068489},
		"xdai":      {Address: "0x0DfbEe143b42B41eFC5A6F87bFD1fFC78c2f0aC9", CreationBlock: 18326896},
	}
	for chain, deployment := range feeProxy {
		r.Register(ERC20FeeProxy, "0.1.0", chain, deployment)
		r.Register(ERC20FeeProxy, "0.2.0", chain, deployment)
	}
	r.Register(ERC20FeeProxy, "0.1.0", "matic", Deployment{Address: "0x2171a0dc12a9E5b1659feF2BB20E54c84Fa7dB0C", CreationBlock: 14163521})
	r.Register(ERC20FeeProxy, "0.2.0", "matic", Deployment{Address: "0x0DfbEe143b42B41eFC5A6F87bFD1fFC78c2f0aC9", CreationBlock: 17427742})

	tronFeeProxy := map[string]Deployment{
		"tron": {Address: "TCUDPYnS9dH3WvFEaE7wN7vnDa51J4R4fd", CreationBlock: 79216121},
		"nile": {Address: "THK5rNmrvCujhmrXa5DB1dASepwXTr9cJs", CreationBlock: 63208782},
	}
	for chain, deployment := range tronFeeProxy {
		r.Register(ERC20FeeProxy, "0.1.0", chain, deployment)
		r.Register(ERC20FeeProxy, "0.2.0", chain, deployment)
	}

	r.Register(ETHFeeProxy, "0.1.0", "private", Deployment{Address: "0xe72Ee2eF7aa2A4537CC1aA0d7f0F4d6eeD5cbEA9"})
	r.Register(ETHFeeProxy, "0.2.0", "private", Deployment{Address: "0xe72Ee2eF7aa2A4537CC1aA0d7f0F4d6eeD5cbEA9"})
	r.Register(ETHFeeProxy, "0.2.0", "mainnet", Deployment{Address: "0xfCFBcfc4f5A421089e3Df45455F7f4985FE2D6a8", CreationBlock: 12487155})

	r.Register(ERC20ConversionProxy, "0.1.0", "private", Deployment{Address: "0xdE5491f774F0Cb009ABcEA7326342E105dbb1B2E"})
	r.Register(ERC20ConversionProxy, "0.1.0", "mainnet", Deployment{Address: "0x4989F84C2F97f1F3F7B8De81ca2cD0bEe1e3e9E4", CreationBlock: 11828561})

	r.Register(ETHConversionProxy, "0.1.0", "private", Deployment{Address: "0x8273e4B8ED6c78e252a9fCa5563Adfcc75C91b2A"})
	r.Register(ETHConversionProxy, "0.2.0", "private", Deployment{Address: "0x8273e4B8ED6c78e252a9fCa5563Adfcc75C91b2A"})
	r.Register(ETHConversionProxy, "0.2.0", "mainnet", Deployment{Address: "0xCa3353a15fCb5C83a1Ff64BFf055781aC5c4d2F4", CreationBlock: 12487160})

	return r
}
