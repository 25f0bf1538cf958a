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

// Package repository persists the configuration entities of the data model
// (collections, pipeline configs, prompt templates, LLM parameter sets, LLM
// providers, and LLM models) behind plain Get/List/Create/Update/Delete
// interfaces, no ORM. Conversation state lives in pkg/conversation instead
// — this package only wraps it at the edges (ConversationRepository) to
// give the search facade and the HTTP layer one eager-loaded read.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/domain"
)

type CollectionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Collection, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Collection, error)
	Create(ctx context.Context, c domain.Collection) (domain.Collection, error)
	Update(ctx context.Context, c domain.Collection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PipelineConfigRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.PipelineConfig, error)
	// ListForOwner returns every pipeline config owned by ownerID, optionally
	// scoped to a single collection.
	ListForOwner(ctx context.Context, ownerID uuid.UUID, collectionID *uuid.UUID) ([]domain.PipelineConfig, error)
	// Default returns the owner's default pipeline config for collectionID.
	// When collectionID is non-nil and no collection-scoped default exists,
	// it falls back to the owner's cross-collection default. Returns a
	// ConfigurationMissing error if none is configured.
	Default(ctx context.Context, ownerID uuid.UUID, collectionID *uuid.UUID) (domain.PipelineConfig, error)
	Create(ctx context.Context, cfg domain.PipelineConfig) (domain.PipelineConfig, error)
	Update(ctx context.Context, cfg domain.PipelineConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PromptTemplateRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.PromptTemplate, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType) ([]domain.PromptTemplate, error)
	Default(ctx context.Context, ownerID uuid.UUID, templateType domain.TemplateType) (domain.PromptTemplate, error)
	Create(ctx context.Context, t domain.PromptTemplate) (domain.PromptTemplate, error)
	Update(ctx context.Context, t domain.PromptTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type LLMParametersRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.LLMParameters, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.LLMParameters, error)
	Create(ctx context.Context, p domain.LLMParameters) (domain.LLMParameters, error)
	Update(ctx context.Context, p domain.LLMParameters) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type LLMModelRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.LLMModel, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, modelType domain.LLMModelType) ([]domain.LLMModel, error)
	// Default returns the provider's default model of modelType, or the
	// sole active model of that type if exactly one exists and none is
	// marked default.
	Default(ctx context.Context, providerID uuid.UUID, modelType domain.LLMModelType) (domain.LLMModel, error)
	Create(ctx context.Context, m domain.LLMModel) (domain.LLMModel, error)
	Update(ctx context.Context, m domain.LLMModel) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type LLMProviderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.LLMProvider, error)
	List(ctx context.Context) ([]domain.LLMProvider, error)
	Create(ctx context.Context, p domain.LLMProvider) (domain.LLMProvider, error)
	Update(ctx context.Context, p domain.LLMProvider) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConversationRepository wraps pkg/conversation.Store with an eager-loaded
// GetFull, the single read the search facade and the HTTP layer need for a
// whole-session view. On postgres the SQL implementation (see sql.go) reads
// the session and then loads messages and summaries with one JOIN query; on
// mysql and sqlite it reads them with separate calls.
type ConversationRepository interface {
	conversation.Store
	GetFull(ctx context.Context, sessionID uuid.UUID) (conversation.Full, error)
}

// conversationRepo adapts any conversation.Store into a ConversationRepository
// using the generic, non-JOIN conversation.GetFull. SQLConversationRepository
// does not use it; it provides its own GetFull (see sql.go).
type conversationRepo struct {
	conversation.Store
}

func NewConversationRepository(store conversation.Store) ConversationRepository {
	return conversationRepo{Store: store}
}

func (r conversationRepo) GetFull(ctx context.Context, sessionID uuid.UUID) (conversation.Full, error) {
	return conversation.GetFull(ctx, r.Store, sessionID)
}
