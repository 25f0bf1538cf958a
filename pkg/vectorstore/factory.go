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

package vectorstore

import (
	"fmt"
	"sync"
)

// BackendType identifies which Provider implementation to construct.
type BackendType string

const (
	// BackendChromem is the embedded, zero-config default used for local
	// development and tests.
	BackendChromem BackendType = "chromem"

	// BackendQdrant talks to a self-hosted or managed Qdrant cluster.
	BackendQdrant BackendType = "qdrant"

	// BackendPinecone talks to a managed Pinecone index.
	BackendPinecone BackendType = "pinecone"
)

// BackendConfig selects and configures one vector-store backend.
type BackendConfig struct {
	Type     BackendType     `yaml:"type"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// NewProvider constructs the Provider named by cfg.Type. A nil cfg, or an
// empty Type, defaults to the embedded chromem backend so the module runs
// with zero external services out of the box.
func NewProvider(cfg *BackendConfig) (Provider, error) {
	if cfg == nil || cfg.Type == "" {
		return NewChromemProvider(ChromemConfig{})
	}

	switch cfg.Type {
	case BackendChromem:
		c := ChromemConfig{}
		if cfg.Chromem != nil {
			c = *cfg.Chromem
		}
		return NewChromemProvider(c)

	case BackendQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant backend selected but no qdrant configuration given")
		}
		return NewQdrantProvider(*cfg.Qdrant)

	case BackendPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("pinecone backend selected but no pinecone configuration given")
		}
		return NewPineconeProvider(*cfg.Pinecone)

	default:
		return nil, fmt.Errorf("unknown vector store backend: %q", cfg.Type)
	}
}

// Registry holds named providers so a pipeline can reference a collection's
// backend by the name stored on the Collection entity rather than a literal
// config struct.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("vectorstore: provider name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("vectorstore: provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
