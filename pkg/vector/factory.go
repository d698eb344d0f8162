// Copyright 2025 Kadir Pekel
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

package vector

import (
	"errors"
	"fmt"
	"sync"
)

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem is chromem-go embedded storage: zero-config, no
	// external process. The default, suited to development and small
	// deployments.
	ProviderChromem ProviderType = "chromem"

	// ProviderQdrant is the Qdrant vector database.
	ProviderQdrant ProviderType = "qdrant"

	// ProviderChroma is the Chroma vector database over HTTP.
	ProviderChroma ProviderType = "chroma"

	// ProviderPinecone is the Pinecone managed cloud service.
	ProviderPinecone ProviderType = "pinecone"

	// ProviderMilvus is the Milvus vector database.
	ProviderMilvus ProviderType = "milvus"

	// ProviderWeaviate is the Weaviate vector database.
	ProviderWeaviate ProviderType = "weaviate"
)

// ProviderConfig selects and configures one vector provider. Exactly the
// section matching Type is read.
type ProviderConfig struct {
	// Type identifies which provider to create.
	Type ProviderType `yaml:"type"`

	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Weaviate *WeaviateConfig `yaml:"weaviate,omitempty"`
	Milvus   *MilvusConfig   `yaml:"milvus,omitempty"`
	Chroma   *ChromaConfig   `yaml:"chroma,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// providerSpec binds one provider type to its required-field check and
// its constructor, so validation and construction stay in one table.
type providerSpec struct {
	check func(*ProviderConfig) error
	build func(*ProviderConfig) (Provider, error)
}

func requireSection[T any](section *T, typeName, field string, present func(*T) bool) error {
	if section == nil {
		return fmt.Errorf("%s configuration is required", typeName)
	}
	if !present(section) {
		return fmt.Errorf("%s %s is required", typeName, field)
	}
	return nil
}

var providerSpecs = map[ProviderType]providerSpec{
	ProviderChromem: {
		check: func(*ProviderConfig) error { return nil },
		build: func(c *ProviderConfig) (Provider, error) {
			cfg := ChromemConfig{}
			if c.Chromem != nil {
				cfg = *c.Chromem
			}
			return NewChromemProvider(cfg)
		},
	},
	ProviderQdrant: {
		check: func(c *ProviderConfig) error {
			return requireSection(c.Qdrant, "qdrant", "host", func(q *QdrantConfig) bool { return q.Host != "" })
		},
		build: func(c *ProviderConfig) (Provider, error) { return NewQdrantProvider(*c.Qdrant) },
	},
	ProviderPinecone: {
		check: func(c *ProviderConfig) error {
			return requireSection(c.Pinecone, "pinecone", "api_key", func(p *PineconeConfig) bool { return p.APIKey != "" })
		},
		build: func(c *ProviderConfig) (Provider, error) { return NewPineconeProvider(*c.Pinecone) },
	},
	ProviderWeaviate: {
		check: func(c *ProviderConfig) error {
			return requireSection(c.Weaviate, "weaviate", "host", func(w *WeaviateConfig) bool { return w.Host != "" })
		},
		build: func(c *ProviderConfig) (Provider, error) { return NewWeaviateProvider(*c.Weaviate) },
	},
	ProviderMilvus: {
		check: func(c *ProviderConfig) error {
			return requireSection(c.Milvus, "milvus", "host", func(m *MilvusConfig) bool { return m.Host != "" })
		},
		build: func(c *ProviderConfig) (Provider, error) { return NewMilvusProvider(*c.Milvus) },
	},
	ProviderChroma: {
		check: func(c *ProviderConfig) error {
			return requireSection(c.Chroma, "chroma", "host", func(ch *ChromaConfig) bool { return ch.Host != "" })
		},
		build: func(c *ProviderConfig) (Provider, error) { return NewChromaProvider(*c.Chroma) },
	},
}

// Validate checks the configuration.
func (c *ProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("provider type is required")
	}
	spec, ok := providerSpecs[c.Type]
	if !ok {
		return fmt.Errorf("unknown provider type: %q", c.Type)
	}
	return spec.check(c)
}

// NewProvider creates a vector provider from configuration. A nil config
// yields the NilProvider, which rejects every operation.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return NilProvider{}, nil
	}

	spec, ok := providerSpecs[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
	if cfg.Type != ProviderChromem {
		if err := spec.check(cfg); err != nil {
			return nil, err
		}
	}
	return spec.build(cfg)
}

// Registry holds named vector providers, so multiple stores can be
// configured side by side and resolved by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under a unique name.
func (r *Registry) Register(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// MustGet retrieves a provider by name or panics. For wiring code that
// has already validated its references.
func (r *Registry) MustGet(name string) Provider {
	p, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("vector provider %q not found", name))
	}
	return p
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Close closes every registered provider and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	r.providers = make(map[string]Provider)

	return errors.Join(errs...)
}
