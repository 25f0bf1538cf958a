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

package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// InMemoryCollections, InMemoryPipelineConfigs, InMemoryPromptTemplates,
// InMemoryLLMParameters, and InMemoryLLMProviders are map-backed
// implementations of the corresponding repository interfaces, suitable for
// tests and the zero-config default — the same role InMemoryStore plays for
// pkg/conversation.

type InMemoryCollections struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Collection
}

func NewInMemoryCollections() *InMemoryCollections {
	return &InMemoryCollections{byID: make(map[uuid.UUID]domain.Collection)}
}

func (r *InMemoryCollections) Get(ctx context.Context, id uuid.UUID) (domain.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Collection{}, rerrors.NotFound("repository.Collections", "collection not found: "+id.String())
	}
	return c, nil
}

func (r *InMemoryCollections) List(ctx context.Context, userID uuid.UUID) ([]domain.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Collection
	for _, c := range r.byID {
		if !c.Private || containsUUID(c.MemberUserIDs, userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *InMemoryCollections) Create(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[c.ID]; exists {
		return domain.Collection{}, rerrors.AlreadyExists("repository.Collections", "collection already exists: "+c.ID.String())
	}
	r.byID[c.ID] = c
	return c, nil
}

func (r *InMemoryCollections) Update(ctx context.Context, c domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[c.ID]; !exists {
		return rerrors.NotFound("repository.Collections", "collection not found: "+c.ID.String())
	}
	r.byID[c.ID] = c
	return nil
}

func (r *InMemoryCollections) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func containsUUID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

type InMemoryPipelineConfigs struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.PipelineConfig
}

func NewInMemoryPipelineConfigs() *InMemoryPipelineConfigs {
	return &InMemoryPipelineConfigs{byID: make(map[uuid.UUID]domain.PipelineConfig)}
}

func (r *InMemoryPipelineConfigs) Get(ctx context.Context, id uuid.UUID) (domain.PipelineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byID[id]
	if !ok {
		return domain.PipelineConfig{}, rerrors.NotFound("repository.PipelineConfigs", "pipeline config not found: "+id.String())
	}
	return cfg, nil
}

func (r *InMemoryPipelineConfigs) ListForOwner(ctx context.Context, ownerID uuid.UUID, collectionID *uuid.UUID) ([]domain.PipelineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PipelineConfig
	for _, cfg := range r.byID {
		if cfg.OwnerID != ownerID {
			continue
		}
		if collectionID != nil {
			if cfg.CollectionID == nil || *cfg.CollectionID != *collectionID {
				continue
			}
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (r *InMemoryPipelineConfigs) Default(ctx context.Context, ownerID uuid.UUID, collectionID *uuid.UUID) (domain.PipelineConfig, error) {
	candidates, err := r.ListForOwner(ctx, ownerID, collectionID)
	if err != nil {
		return domain.PipelineConfig{}, err
	}
	for _, cfg := range candidates {
		if cfg.IsDefault {
			return cfg, nil
		}
	}
	if collectionID != nil {
		return r.Default(ctx, ownerID, nil)
	}
	return domain.PipelineConfig{}, rerrors.ConfigurationMissing("repository.PipelineConfigs", "no default pipeline configured for owner "+ownerID.String())
}

func (r *InMemoryPipelineConfigs) Create(ctx context.Context, cfg domain.PipelineConfig) (domain.PipelineConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[cfg.ID] = cfg
	return cfg, nil
}

func (r *InMemoryPipelineConfigs) Update(ctx context.Context, cfg domain.PipelineConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[cfg.ID]; !exists {
		return rerrors.NotFound("repository.PipelineConfigs", "pipeline config not found: "+cfg.ID.String())
	}
	r.byID[cfg.ID] = cfg
	return nil
}

func (r *InMemoryPipelineConfigs) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

type InMemoryPromptTemplates struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.PromptTemplate
}

func NewInMemoryPromptTemplates() *InMemoryPromptTemplates {
	return &InMemoryPromptTemplates{byID: make(map[uuid.UUID]domain.PromptTemplate)}
}

func (r *InMemoryPromptTemplates) Get(ctx context.Context, id uuid.UUID) (domain.PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.PromptTemplate{}, rerrors.NotFound("repository.PromptTemplates", "template not found: "+id.String())
	}
	return t, nil
}

func (r *InMemoryPromptTemplates) ListForOwner(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType) ([]domain.PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PromptTemplate
	for _, t := range r.byID {
		if t.OwnerID == ownerID && t.Type == templateType {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *InMemoryPromptTemplates) Default(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType) (domain.PromptTemplate, error) {
	candidates, err := r.ListForOwner(ctx, ownerID, templateType)
	if err != nil {
		return domain.PromptTemplate{}, err
	}
	for _, t := range candidates {
		if t.IsDefault {
			return t, nil
		}
	}
	return domain.PromptTemplate{}, rerrors.ConfigurationMissing("repository.PromptTemplates", "no default template configured for owner "+ownerID.String())
}

func (r *InMemoryPromptTemplates) Create(ctx context.Context, t domain.PromptTemplate) (domain.PromptTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = t
	return t, nil
}

func (r *InMemoryPromptTemplates) Update(ctx context.Context, t domain.PromptTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[t.ID]; !exists {
		return rerrors.NotFound("repository.PromptTemplates", "template not found: "+t.ID.String())
	}
	r.byID[t.ID] = t
	return nil
}

func (r *InMemoryPromptTemplates) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

type InMemoryLLMParameters struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.LLMParameters
}

func NewInMemoryLLMParameters() *InMemoryLLMParameters {
	return &InMemoryLLMParameters{byID: make(map[uuid.UUID]domain.LLMParameters)}
}

func (r *InMemoryLLMParameters) Get(ctx context.Context, id uuid.UUID) (domain.LLMParameters, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.LLMParameters{}, rerrors.NotFound("repository.LLMParameters", "parameter set not found: "+id.String())
	}
	return p, nil
}

func (r *InMemoryLLMParameters) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.LLMParameters, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LLMParameters
	for _, p := range r.byID {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *InMemoryLLMParameters) Create(ctx context.Context, p domain.LLMParameters) (domain.LLMParameters, error) {
	if err := p.Validate(); err != nil {
		return domain.LLMParameters{}, rerrors.Wrap(rerrors.KindValidation, "repository.LLMParameters", "invalid parameters", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	return p, nil
}

func (r *InMemoryLLMParameters) Update(ctx context.Context, p domain.LLMParameters) error {
	if err := p.Validate(); err != nil {
		return rerrors.Wrap(rerrors.KindValidation, "repository.LLMParameters", "invalid parameters", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; !exists {
		return rerrors.NotFound("repository.LLMParameters", "parameter set not found: "+p.ID.String())
	}
	r.byID[p.ID] = p
	return nil
}

func (r *InMemoryLLMParameters) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

type InMemoryLLMProviders struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.LLMProvider
}

func NewInMemoryLLMProviders() *InMemoryLLMProviders {
	return &InMemoryLLMProviders{byID: make(map[uuid.UUID]domain.LLMProvider)}
}

func (r *InMemoryLLMProviders) Get(ctx context.Context, id uuid.UUID) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.LLMProvider{}, rerrors.NotFound("repository.LLMProviders", "provider not found: "+id.String())
	}
	return p, nil
}

func (r *InMemoryLLMProviders) List(ctx context.Context) ([]domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.LLMProvider, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out, nil
}

func (r *InMemoryLLMProviders) Create(ctx context.Context, p domain.LLMProvider) (domain.LLMProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	return p, nil
}

func (r *InMemoryLLMProviders) Update(ctx context.Context, p domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; !exists {
		return rerrors.NotFound("repository.LLMProviders", "provider not found: "+p.ID.String())
	}
	r.byID[p.ID] = p
	return nil
}

func (r *InMemoryLLMProviders) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

type InMemoryLLMModels struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.LLMModel
}

func NewInMemoryLLMModels() *InMemoryLLMModels {
	return &InMemoryLLMModels{byID: make(map[uuid.UUID]domain.LLMModel)}
}

func (r *InMemoryLLMModels) Get(ctx context.Context, id uuid.UUID) (domain.LLMModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.LLMModel{}, rerrors.NotFound("repository.LLMModels", "model not found: "+id.String())
	}
	return m, nil
}

func (r *InMemoryLLMModels) ListForProvider(ctx context.Context, providerID uuid.UUID, modelType domain.LLMModelType) ([]domain.LLMModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LLMModel
	for _, m := range r.byID {
		if m.ProviderID == providerID && m.Type == modelType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *InMemoryLLMModels) Default(ctx context.Context, providerID uuid.UUID, modelType domain.LLMModelType) (domain.LLMModel, error) {
	candidates, err := r.ListForProvider(ctx, providerID, modelType)
	if err != nil {
		return domain.LLMModel{}, err
	}
	var active []domain.LLMModel
	for _, m := range candidates {
		if m.IsDefault {
			return m, nil
		}
		if m.Active {
			active = append(active, m)
		}
	}
	if len(active) == 1 {
		return active[0], nil
	}
	return domain.LLMModel{}, rerrors.ConfigurationMissing("repository.LLMModels", "no default "+string(modelType)+" model configured for provider "+providerID.String())
}

func (r *InMemoryLLMModels) Create(ctx context.Context, m domain.LLMModel) (domain.LLMModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
	return m, nil
}

func (r *InMemoryLLMModels) Update(ctx context.Context, m domain.LLMModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[m.ID]; !exists {
		return rerrors.NotFound("repository.LLMModels", "model not found: "+m.ID.String())
	}
	r.byID[m.ID] = m
	return nil
}

func (r *InMemoryLLMModels) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}
