package token

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"paymentScope/internal/model"
)

const usdcAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

type fakeToken struct {
	mu        sync.Mutex
	calls     int
	responses map[string][]byte
}

func (f *fakeToken) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	parsed, _ := ERC20ABI()
	for name, method := range parsed.Methods {
		if bytes.Equal(msg.Data[:4], method.ID) {
			if resp, ok := f.responses[name]; ok {
				return resp, nil
			}
		}
	}
	return nil, errors.New("execution reverted")
}

func packOutput(t *testing.T, parsed abi.ABI, method string, value interface{}) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(value)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func stringToken(t *testing.T) *fakeToken {
	parsed, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return &fakeToken{responses: map[string][]byte{
		"decimals": packOutput(t, parsed, "decimals", uint8(6)),
		"symbol":   packOutput(t, parsed, "symbol", "USDC"),
		"name":     packOutput(t, parsed, "name", "USD Coin"),
	}}
}

func TestFetchMetadata(t *testing.T) {
	meta, err := FetchMetadata(context.Background(), stringToken(t), common.HexToAddress(usdcAddress), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := Metadata{Address: usdcAddress, Symbol: "USDC", Name: "USD Coin", Decimals: 6}
	if meta != want {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestFetchMetadataBytes32Symbol(t *testing.T) {
	parsed, _ := ERC20ABI()
	legacy, err := erc20Bytes32ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller := &fakeToken{responses: map[string][]byte{
		"decimals": packOutput(t, parsed, "decimals", uint8(18)),
		"symbol":   packOutput(t, legacy, "symbol", symbol),
	}}

	meta, err := FetchMetadata(context.Background(), caller, common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Symbol != "MKR" || meta.Decimals != 18 || meta.Name != "" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestFetchMetadataRequiresDecimals(t *testing.T) {
	if _, err := FetchMetadata(context.Background(), &fakeToken{}, common.HexToAddress(usdcAddress), nil); err == nil {
		t.Fatalf("expected error without decimals")
	}
}

func TestResolverCachesDefinitions(t *testing.T) {
	caller := stringToken(t)
	var chains []string
	resolver, err := NewResolver(CallersFunc(func(_ context.Context, chainName string) (Caller, error) {
		chains = append(chains, chainName)
		return caller, nil
	}), 0, nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	c := model.Currency{Type: model.CurrencyERC20, Value: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"}
	def, err := resolver.Resolve(context.Background(), c)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if def.Symbol != "USDC" || def.Decimals != 6 || def.Network != "mainnet" || def.Hash != usdcAddress {
		t.Fatalf("unexpected definition %+v", def)
	}

	calls := caller.calls
	c.Value = usdcAddress
	if _, err := resolver.Resolve(context.Background(), c); err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if caller.calls != calls || len(chains) != 1 {
		t.Fatalf("expected cached definition, got %d calls and chains %v", caller.calls, chains)
	}
}

func TestResolverRejectsNonTokens(t *testing.T) {
	resolver, _ := NewResolver(CallersFunc(func(context.Context, string) (Caller, error) {
		t.Fatalf("no call expected")
		return nil, nil
	}), 0, nil)
	for _, c := range []model.Currency{
		{Type: model.CurrencyISO4217, Value: "USD"},
		{Type: model.CurrencyERC20, Value: "not-an-address"},
	} {
		if _, err := resolver.Resolve(context.Background(), c); err == nil {
			t.Fatalf("expected %+v to be rejected", c)
		}
	}
}
