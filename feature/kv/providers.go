package kv

import (
	"kv-reconciler/core/database"
	"kv-reconciler/core/registry"
	"kv-reconciler/core/storage"
	"kv-reconciler/feature/providers/cloudfront"
	"kv-reconciler/feature/providers/consul"
	"kv-reconciler/feature/providers/etcd"
	"kv-reconciler/feature/providers/memory"
	"kv-reconciler/feature/providers/s3"
	"kv-reconciler/feature/providers/sqlkv"
)

// Backends carries the per-provider configuration.
type Backends struct {
	Consul     consul.Config
	Etcd       etcd.Config
	Storage    storage.Config
	Database   database.Config
	CloudFront cloudfront.Config
	// Memory is shared by every memory resolution. Nil creates a fresh store.
	Memory *memory.Store
}

// NewRegistry registers every built-in provider and disables the listed ones.
func NewRegistry(b Backends, disabled []string) (*registry.Registry, error) {
	if b.Memory == nil {
		b.Memory = memory.NewStore()
	}

	reg := registry.New()
	for _, p := range []registry.Provider{
		consul.Provider(b.Consul),
		etcd.Provider(b.Etcd),
		s3.Provider(b.Storage),
		sqlkv.Provider(b.Database),
		cloudfront.Provider(b.CloudFront),
		memory.Provider(b.Memory),
	} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	reg.Disable(disabled...)
	return reg, nil
}
