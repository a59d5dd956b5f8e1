// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package pool defines knowledge pools and the registry that binds pools to
// per-collection converter functions.
//
// A knowledge pool names a set of embeddings drawn from one or more source
// collections, sharing one embedding version. Bumping the version forces a
// full re-embed of the pool on the next bulk run.
package pool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/embedsync/core"
)

// Pool is one knowledge pool definition.
type Pool struct {
	// Name identifies the pool. Embedding rows are keyed under it.
	Name string `toml:"name"`

	// EmbeddingVersion is an opaque generation marker for the embedding
	// model/config. Changing it makes every document eligible again.
	EmbeddingVersion string `toml:"embedding_version"`

	// Collections are the source collections feeding this pool, scanned in
	// the order listed.
	Collections []string `toml:"collections"`
}

// Validate checks the pool definition.
func (p Pool) Validate() error {
	if p.Name == "" {
		return core.ErrEmptyPoolName
	}
	if p.EmbeddingVersion == "" {
		return fmt.Errorf("%w: pool %q", core.ErrEmptyEmbeddingVersion, p.Name)
	}
	if len(p.Collections) == 0 {
		return fmt.Errorf("%w: pool %q has no collections", ErrInvalidPool, p.Name)
	}
	for _, collection := range p.Collections {
		// ':' is reserved as the input-id separator.
		if collection == "" || strings.Contains(collection, ":") {
			return fmt.Errorf("%w: pool %q collection %q", ErrInvalidPool, p.Name, collection)
		}
	}
	return nil
}

// Config is the on-disk pool configuration, a TOML file with one [[pool]]
// table per knowledge pool:
//
//	[[pool]]
//	name = "default"
//	embedding_version = "embeddinggemma-v1"
//	collections = ["posts"]
type Config struct {
	Pools []Pool `toml:"pool"`
}

// LoadConfig reads and validates a TOML pool configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("loading pool config %s: %w", path, err)
	}
	for _, p := range cfg.Pools {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// ConverterFunc turns a source document into its ordered chunks. Returning
// zero chunks is valid and means the document contributes nothing.
type ConverterFunc func(doc *core.Document) ([]core.Chunk, error)

// Registry holds pool definitions and per-collection converters. It is safe
// for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	pools      map[string]Pool
	converters map[string]ConverterFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pools:      make(map[string]Pool),
		converters: make(map[string]ConverterFunc),
	}
}

// NewRegistryFromConfig creates a registry pre-populated with the pools of a
// loaded configuration. Converters are registered separately.
func NewRegistryFromConfig(cfg *Config) (*Registry, error) {
	r := NewRegistry()
	for _, p := range cfg.Pools {
		if err := r.AddPool(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddPool registers a pool definition.
func (r *Registry) AddPool(p Pool) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pools[p.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePool, p.Name)
	}
	r.pools[p.Name] = p
	return nil
}

// Pool returns the named pool definition.
func (r *Registry) Pool(name string) (Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	if !ok {
		return Pool{}, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	return p, nil
}

// Pools returns all registered pool definitions.
func (r *Registry) Pools() []Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pools := make([]Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	return pools
}

// PoolsForCollection returns the pools whose collection list contains the
// given collection. The live ingestion path uses it to fan a document change
// out to every affected pool.
func (r *Registry) PoolsForCollection(collection string) []Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Pool
	for _, p := range r.pools {
		for _, c := range p.Collections {
			if c == collection {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

// RegisterConverter binds a converter to a source collection, replacing any
// previous binding.
func (r *Registry) RegisterConverter(collection string, fn ConverterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[collection] = fn
}

// Converter returns the converter bound to a collection.
func (r *Registry) Converter(collection string) (ConverterFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.converters[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoConverter, collection)
	}
	return fn, nil
}
