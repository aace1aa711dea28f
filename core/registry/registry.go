package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"kv-reconciler/core/reconcile"
)

var (
	ErrProviderExists  = errors.New("provider already registered")
	ErrInvalidProvider = errors.New("invalid provider")
)

// Target is the endpoint a backend should connect to.
type Target struct {
	Host string
	Port int
}

// Address joins host and port. A zero port leaves the host untouched.
func (t Target) Address() string {
	if t.Port == 0 {
		return t.Host
	}
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Factory constructs a backend for a target.
// Returning an error marks the provider unavailable for that call.
type Factory func(target Target) (reconcile.Backend, error)

// Provider describes a registered backend implementation.
type Provider struct {
	// Name is the identifier callers pass to Resolve (e.g., "consul").
	Name string
	// DefaultPort is used when the caller does not supply a port.
	DefaultPort int
	// Description is a short human-readable summary.
	Description string
	// Factory builds the backend.
	Factory Factory
	// OwnsEndpoint marks providers whose endpoint comes from their own
	// configuration. Callers leave the target empty unless a host was asked for.
	OwnsEndpoint bool
	// Close, when set, releases resources shared by the backends the factory built.
	Close func() error
}

// Info is the listing view of a provider.
type Info struct {
	Name        string `json:"name"`
	DefaultPort int    `json:"default_port"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Registry maps provider names to factories. It fails closed: an unknown or
// disabled name never falls back to another provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	disabled  map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		disabled:  make(map[string]struct{}),
	}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) error {
	name := normalize(p.Name)
	if name == "" || p.Factory == nil {
		return fmt.Errorf("%w: name and factory are required", ErrInvalidProvider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("%w: %s", ErrProviderExists, name)
	}
	p.Name = name
	r.providers[name] = p
	return nil
}

// Disable marks providers as unavailable. Resolve returns ProviderUnavailable for them.
func (r *Registry) Disable(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		if n = normalize(n); n != "" {
			r.disabled[n] = struct{}{}
		}
	}
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[normalize(name)]
	return p, ok
}

// Resolve constructs the backend for name. A zero target port is replaced by
// the provider's default port.
func (r *Registry) Resolve(name string, target Target) (reconcile.Backend, error) {
	n := normalize(name)

	r.mu.RLock()
	p, ok := r.providers[n]
	_, off := r.disabled[n]
	r.mu.RUnlock()

	if !ok {
		return nil, reconcile.NewError(reconcile.UnknownProvider, "", fmt.Errorf("%q is not registered", name))
	}
	if off {
		return nil, reconcile.NewError(reconcile.ProviderUnavailable, "", fmt.Errorf("%q is disabled by configuration", n))
	}

	if target.Port == 0 {
		target.Port = p.DefaultPort
	}

	backend, err := p.Factory(target)
	if err != nil {
		return nil, reconcile.NewError(reconcile.ProviderUnavailable, "", fmt.Errorf("%s: %w", n, err))
	}
	if backend == nil {
		return nil, reconcile.NewError(reconcile.ProviderUnavailable, "", fmt.Errorf("%s: factory returned no backend", n))
	}
	return backend, nil
}

// Close releases every provider's shared resources.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, p := range r.providers {
		if p.Close == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Providers lists registered providers ordered by name.
func (r *Registry) Providers() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Info, 0, len(r.providers))
	for name, p := range r.providers {
		_, off := r.disabled[name]
		list = append(list, Info{
			Name:        name,
			DefaultPort: p.DefaultPort,
			Description: p.Description,
			Enabled:     !off,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
