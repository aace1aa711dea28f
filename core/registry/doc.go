// Package registry resolves provider names to key-value backends.
//
// Providers register a Factory under a name together with their default port.
// Resolve fails closed: unknown names yield an UnknownProvider error and providers
// that are disabled, or whose factory cannot build a client, yield ProviderUnavailable.
// Both are reported before any backend I/O takes place.
//
// # Usage
//
//	reg := registry.New()
//	_ = reg.Register(consul.Provider(cfg.Consul))
//	backend, err := reg.Resolve("consul", registry.Target{Host: "127.0.0.1"})
package registry
