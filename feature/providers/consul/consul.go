// Package consul implements the Consul KV backend.
//
// Concurrency tokens are Consul ModifyIndex values. Writes use the ?cas= check-and-set
// parameter, where an index of 0 means "only create".
package consul

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"

	"github.com/hashicorp/consul/api"
)

const (
	// Name is the provider identifier.
	Name = "consul"
	// DefaultPort is the Consul agent HTTP port.
	DefaultPort = 8500
)

// Backend talks to a Consul agent's KV endpoint.
type Backend struct {
	kv *api.KV
}

// New creates a backend for the agent at target.
func New(cfg Config, target registry.Target) (*Backend, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = target.Address()
	if cfg.Scheme != "" {
		apiCfg.Scheme = cfg.Scheme
	}
	if cfg.Token != "" {
		apiCfg.Token = cfg.Token
	}
	if cfg.Datacenter != "" {
		apiCfg.Datacenter = cfg.Datacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &Backend{kv: client.KV()}, nil
}

// Provider returns the registry entry for Consul.
func Provider(cfg Config) registry.Provider {
	return registry.Provider{
		Name:        Name,
		DefaultPort: DefaultPort,
		Description: "HashiCorp Consul KV (ModifyIndex check-and-set)",
		Factory: func(target registry.Target) (reconcile.Backend, error) {
			return New(cfg, target)
		},
	}
}

// Read fetches the pair for key. A missing key is not an error.
func (b *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	name, err := normalizeKey(key)
	if err != nil {
		return reconcile.ObservedState{}, err
	}
	pair, _, err := b.kv.Get(name, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return reconcile.ObservedState{}, reconcile.Unavailable("consul get", err)
	}
	if pair == nil {
		return reconcile.Missing(), nil
	}
	return reconcile.Found(string(pair.Value), formatIndex(pair.ModifyIndex)), nil
}

// Write stores value with a check-and-set on expected. The create-only token
// maps to index 0.
func (b *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	name, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	index, err := parseIndex(expected)
	if err != nil {
		return false, err
	}

	pair := &api.KVPair{Key: name, Value: []byte(value), ModifyIndex: index}
	ok, _, err := b.kv.CAS(pair, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return false, reconcile.Unavailable("consul cas", err)
	}
	return ok, nil
}

// Remove deletes key if its ModifyIndex still equals expected.
func (b *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	name, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	index, err := parseIndex(expected)
	if err != nil {
		return false, err
	}
	// Index 0 would delete unconditionally; an absent key has nothing to remove.
	if index == 0 {
		return false, nil
	}

	pair := &api.KVPair{Key: name, ModifyIndex: index}
	ok, _, err := b.kv.DeleteCAS(pair, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return false, reconcile.Unavailable("consul delete-cas", err)
	}
	return ok, nil
}

// Consul rejects keys with a leading slash on write. A key of only slashes
// would address the KV root.
func normalizeKey(key string) (string, error) {
	name := strings.TrimLeft(key, "/")
	if strings.TrimSpace(name) == "" {
		return "", reconcile.NewError(reconcile.MissingKey, key, errors.New("key addresses the consul KV root"))
	}
	return name, nil
}

func formatIndex(index uint64) reconcile.Token {
	return reconcile.Token(strconv.FormatUint(index, 10))
}

func parseIndex(t reconcile.Token) (uint64, error) {
	if t == reconcile.CreateOnly {
		return 0, nil
	}
	index, err := strconv.ParseUint(string(t), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid consul modify index %q: %w", t, err)
	}
	return index, nil
}
