package kv

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidManifest reports a manifest that cannot be applied as a whole.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is a batch of desired states for one provider.
//
//	provider = "consul"
//	host = "10.0.0.5"
//	timeout = 30
//
//	[[entry]]
//	key = "service/web/replicas"
//	value = "3"
//
//	[[entry]]
//	key = "service/old"
//	state = "absent"
type Manifest struct {
	Provider    string          `toml:"provider"`
	Host        string          `toml:"host"`
	Port        int             `toml:"port"`
	Timeout     int             `toml:"timeout"`
	MaxAttempts int             `toml:"max_attempts"`
	DryRun      bool            `toml:"dry_run"`
	Entries     []ManifestEntry `toml:"entry"`
}

// ManifestEntry is one desired key.
type ManifestEntry struct {
	Key   string `toml:"key"`
	Value string `toml:"value"`
	State string `toml:"state"`
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseManifest decodes a manifest from r.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	meta, err := toml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	return &m, nil
}

// Unknown keys are rejected so a typo like "vaule" is not silently dropped.
func checkUndecoded(meta toml.MetaData) error {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return fmt.Errorf("%w: unknown fields %s", ErrInvalidManifest, strings.Join(keys, ", "))
}

// Validate rejects empty manifests and keys listed more than once, since two
// desired states for one key cannot both hold.
func (m *Manifest) Validate() error {
	if len(m.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidManifest)
	}
	seen := make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		if first, ok := seen[e.Key]; ok {
			return fmt.Errorf("%w: key %q appears in entries %d and %d", ErrInvalidManifest, e.Key, first+1, i+1)
		}
		seen[e.Key] = i
	}
	return nil
}

// Requests expands the manifest into one request per entry.
func (m *Manifest) Requests() []Request {
	reqs := make([]Request, 0, len(m.Entries))
	for _, e := range m.Entries {
		reqs = append(reqs, Request{
			Provider:    m.Provider,
			Host:        m.Host,
			Port:        m.Port,
			State:       e.State,
			Key:         e.Key,
			Value:       e.Value,
			Timeout:     m.Timeout,
			MaxAttempts: m.MaxAttempts,
			DryRun:      m.DryRun,
		})
	}
	return reqs
}
