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

package llm

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"golang.org/x/sync/singleflight"
)

// Factory builds a Provider from a configured LLMProvider row. Exactly one
// Factory is registered per wire-protocol family.
type Factory func(cfg domain.LLMProvider) (Provider, error)

// Registry lazily constructs and caches one Provider per provider name.
// Construction happens at most once per name even under concurrent first
// access: callers racing to resolve the same not-yet-built provider share a
// single in-flight build via singleflight rather than each dialing out.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory // keyed by protocol family name
	providers map[string]Provider
	configs   map[string]domain.LLMProvider
	families  map[string]string // configured provider name -> protocol family

	group singleflight.Group
}

// NewRegistry constructs a Registry with the three built-in families
// registered: "openai" (chat-completions), "anthropic" (Claude Messages
// API), and "watsonx" (IBM-style REST).
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
		configs:   make(map[string]domain.LLMProvider),
		families:  make(map[string]string),
	}
	r.RegisterFactory("openai", newOpenAIProvider)
	r.RegisterFactory("anthropic", newAnthropicProvider)
	r.RegisterFactory("watsonx", newWatsonxProvider)
	return r
}

// RegisterFactory binds a protocol family name to its constructor. Exposed
// so tests can register a stub family without touching the built-ins.
func (r *Registry) RegisterFactory(family string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = f
}

// Configure associates a provider name (an LLMProvider row's logical name,
// e.g. "default-openai") with its family and connection details. It does
// not dial out — the client is built lazily on first Get.
func (r *Registry) Configure(family string, cfg domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[family]; !ok {
		return fmt.Errorf("llm: unknown provider family %q", family)
	}
	r.configs[cfg.Name] = cfg
	r.families[cfg.Name] = family
	return nil
}

// Get returns the cached Provider for name, building it on first use.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.providers[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	cfg, hasCfg := r.configs[name]
	family := r.families[name]
	factory, hasFactory := r.factories[family]
	r.mu.RUnlock()

	if !hasCfg {
		return nil, fmt.Errorf("llm: provider %q is not configured", name)
	}
	if !hasFactory {
		return nil, fmt.Errorf("llm: provider %q has unknown family %q", name, family)
	}

	built, err, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.RLock()
		if p, ok := r.providers[name]; ok {
			r.mu.RUnlock()
			return p, nil
		}
		r.mu.RUnlock()

		p, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("build provider %q: %w", name, err)
		}

		r.mu.Lock()
		r.providers[name] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return built.(Provider), nil
}
