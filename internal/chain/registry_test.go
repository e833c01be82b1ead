package chain

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRegistryUnknownNetwork(t *testing.T) {
	reg := NewRegistry(map[string]string{"mainnet": "http://127.0.0.1:8545"}, Options{})
	if !reg.Has("mainnet") || reg.Has("matic") {
		t.Fatalf("unexpected endpoint lookup")
	}
	if _, err := reg.Source(context.Background(), "matic"); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected missing endpoint error, got %v", err)
	}
}

func TestRegistryNetworksSorted(t *testing.T) {
	reg := NewRegistry(map[string]string{"xdai": "a", "goerli": "b", "mainnet": "c"}, Options{})
	want := []string{"goerli", "mainnet", "xdai"}
	if got := reg.Networks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("networks mismatch: %v != %v", got, want)
	}
}
