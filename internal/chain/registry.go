// Package chain reads logs and block timestamps from EVM chains.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoEndpoint is returned when no RPC endpoint is configured for a chain.
var ErrNoEndpoint = errors.New("no rpc endpoint configured")

// Sources hands out a LogSource per chain.
type Sources interface {
	Source(ctx context.Context, chainName string) (LogSource, error)
}

// Registry owns one lazily dialed client per configured chain.
type Registry struct {
	opts      Options
	endpoints map[string]string

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry builds a registry from a chain name to RPC URL map.
func NewRegistry(endpoints map[string]string, opts Options) *Registry {
	copied := make(map[string]string, len(endpoints))
	for name, url := range endpoints {
		copied[name] = url
	}
	return &Registry{
		opts:      opts,
		endpoints: copied,
		clients:   make(map[string]*Client),
	}
}

// Source returns the client for chainName, dialing it on first use.
func (r *Registry) Source(ctx context.Context, chainName string) (LogSource, error) {
	return r.Client(ctx, chainName)
}

// Client returns the concrete client for chainName.
func (r *Registry) Client(ctx context.Context, chainName string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[chainName]; ok {
		return client, nil
	}
	url, ok := r.endpoints[chainName]
	if !ok || url == "" {
		return nil, fmt.Errorf("%w for network %s", ErrNoEndpoint, chainName)
	}
	client, err := NewClient(ctx, chainName, url, r.opts)
	if err != nil {
		return nil, err
	}
	r.clients[chainName] = client
	return client, nil
}

// Has reports whether an endpoint is configured for chainName.
func (r *Registry) Has(chainName string) bool {
	_, ok := r.endpoints[chainName]
	return ok
}

// Networks returns the configured chain names, sorted.
func (r *Registry) Networks() []string {
	out := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every dialed client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, client := range r.clients {
		client.Close()
		delete(r.clients, name)
	}
}
