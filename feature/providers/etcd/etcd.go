// Package etcd implements the etcd v3 backend.
//
// Concurrency tokens are key ModRevisions. Every mutation is a single transaction
// guarded by a revision compare, so the compare and the write are atomic on the server.
package etcd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// Name is the provider identifier.
	Name = "etcd"
	// DefaultPort is the etcd client port.
	DefaultPort = 2379
)

// KV is the subset of the etcd client used by the backend.
type KV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Txn(ctx context.Context) clientv3.Txn
}

// Backend reconciles keys in etcd.
type Backend struct {
	kv     KV
	closer func() error
}

// NewWithKV creates a backend over an existing KV implementation.
func NewWithKV(kv KV) *Backend {
	return &Backend{kv: kv}
}

// New dials etcd at target. The connection is established lazily by the client,
// so an unreachable endpoint surfaces on the first Read.
func New(cfg Config, target registry.Target) (*Backend, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{target.Address()},
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &Backend{kv: client, closer: client.Close}, nil
}

// Provider returns the registry entry for etcd.
func Provider(cfg Config) registry.Provider {
	return registry.Provider{
		Name:        Name,
		DefaultPort: DefaultPort,
		Description: "etcd v3 (ModRevision transactions)",
		Factory: func(target registry.Target) (reconcile.Backend, error) {
			return New(cfg, target)
		},
	}
}

// Close releases the client connection.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Read returns the value and ModRevision of key.
func (b *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	resp, err := b.kv.Get(ctx, key)
	if err != nil {
		return reconcile.ObservedState{}, reconcile.Unavailable("etcd get", err)
	}
	if len(resp.Kvs) == 0 {
		return reconcile.Missing(), nil
	}
	kv := resp.Kvs[0]
	return reconcile.Found(string(kv.Value), formatRevision(kv.ModRevision)), nil
}

// Write puts value in a transaction guarded by the key's ModRevision, or by
// CreateRevision == 0 for the create-only token.
func (b *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	guard, err := revisionGuard(key, expected)
	if err != nil {
		return false, err
	}
	return b.commit(ctx, "etcd put", guard, clientv3.OpPut(key, value))
}

// Remove deletes key in a transaction guarded by its ModRevision.
func (b *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	if expected == reconcile.CreateOnly {
		return false, nil
	}
	guard, err := revisionGuard(key, expected)
	if err != nil {
		return false, err
	}
	return b.commit(ctx, "etcd delete", guard, clientv3.OpDelete(key))
}

func (b *Backend) commit(ctx context.Context, op string, guard clientv3.Cmp, then clientv3.Op) (bool, error) {
	resp, err := b.kv.Txn(ctx).If(guard).Then(then).Commit()
	if err != nil {
		return false, reconcile.Unavailable(op, err)
	}
	return resp.Succeeded, nil
}

// revisionGuard builds the compare for expected: CreateRevision==0 means the
// key does not exist, otherwise ModRevision must still match.
func revisionGuard(key string, expected reconcile.Token) (clientv3.Cmp, error) {
	if expected == reconcile.CreateOnly {
		return clientv3.Compare(clientv3.CreateRevision(key), "=", 0), nil
	}
	rev, err := strconv.ParseInt(string(expected), 10, 64)
	if err != nil {
		return clientv3.Cmp{}, fmt.Errorf("invalid etcd revision %q: %w", expected, err)
	}
	return clientv3.Compare(clientv3.ModRevision(key), "=", rev), nil
}

func formatRevision(rev int64) reconcile.Token {
	return reconcile.Token(strconv.FormatInt(rev, 10))
}
