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
	"testing"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCollectionsCreateGetList(t *testing.T) {
	repo := NewInMemoryCollections()
	userID := uuid.New()

	public := domain.Collection{ID: uuid.New(), Name: "public", Status: domain.CollectionCompleted}
	private := domain.Collection{ID: uuid.New(), Name: "private", Private: true, MemberUserIDs: []uuid.UUID{userID}, Status: domain.CollectionCompleted}
	otherPrivate := domain.Collection{ID: uuid.New(), Name: "other", Private: true, Status: domain.CollectionCompleted}

	for _, c := range []domain.Collection{public, private, otherPrivate} {
		_, err := repo.Create(context.Background(), c)
		require.NoError(t, err)
	}

	visible, err := repo.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestInMemoryCollectionsGetNotFound(t *testing.T) {
	repo := NewInMemoryCollections()
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestInMemoryPipelineConfigsDefaultFallsBackAcrossCollections(t *testing.T) {
	repo := NewInMemoryPipelineConfigs()
	owner := uuid.New()
	collection := uuid.New()

	crossCollectionDefault := domain.PipelineConfig{ID: uuid.New(), OwnerID: owner, IsDefault: true}
	_, err := repo.Create(context.Background(), crossCollectionDefault)
	require.NoError(t, err)

	got, err := repo.Default(context.Background(), owner, &collection)
	require.NoError(t, err)
	assert.Equal(t, crossCollectionDefault.ID, got.ID)
}

func TestInMemoryPipelineConfigsDefaultMissingIsConfigurationError(t *testing.T) {
	repo := NewInMemoryPipelineConfigs()
	_, err := repo.Default(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindConfigurationMissing))
}

func TestInMemoryPromptTemplatesDefaultByType(t *testing.T) {
	repo := NewInMemoryPromptTemplates()
	owner := uuid.New()

	tmpl := domain.PromptTemplate{ID: uuid.New(), OwnerID: owner, Type: domain.TemplateRAGQuery, IsDefault: true}
	_, err := repo.Create(context.Background(), tmpl)
	require.NoError(t, err)

	got, err := repo.Default(context.Background(), owner, domain.TemplateRAGQuery)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)

	_, err = repo.Default(context.Background(), owner, domain.TemplateReranking)
	require.Error(t, err)
}

func TestInMemoryLLMParametersRejectsInvalidTemperature(t *testing.T) {
	repo := NewInMemoryLLMParameters()
	_, err := repo.Create(context.Background(), domain.LLMParameters{ID: uuid.New(), Temperature: 5})
	require.Error(t, err)
}

func TestInMemoryLLMProvidersCRUD(t *testing.T) {
	repo := NewInMemoryLLMProviders()
	p := domain.LLMProvider{ID: uuid.New(), Name: "openai", Active: true}

	_, err := repo.Create(context.Background(), p)
	require.NoError(t, err)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	p.Active = false
	require.NoError(t, repo.Update(context.Background(), p))

	got, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, repo.Delete(context.Background(), p.ID))
	_, err = repo.Get(context.Background(), p.ID)
	require.Error(t, err)
}

func TestInMemoryLLMModelsDefaultPrefersExplicitFlag(t *testing.T) {
	repo := NewInMemoryLLMModels()
	providerID := uuid.New()

	plain := domain.LLMModel{ID: uuid.New(), ProviderID: providerID, Model: "plain", Type: domain.ModelGeneration, Active: true}
	marked := domain.LLMModel{ID: uuid.New(), ProviderID: providerID, Model: "marked", Type: domain.ModelGeneration, Active: true, IsDefault: true}
	for _, m := range []domain.LLMModel{plain, marked} {
		_, err := repo.Create(context.Background(), m)
		require.NoError(t, err)
	}

	got, err := repo.Default(context.Background(), providerID, domain.ModelGeneration)
	require.NoError(t, err)
	assert.Equal(t, "marked", got.Model)
}

func TestInMemoryLLMModelsDefaultFallsBackToSoleActiveModel(t *testing.T) {
	repo := NewInMemoryLLMModels()
	providerID := uuid.New()

	model := domain.LLMModel{ID: uuid.New(), ProviderID: providerID, Model: "only", Type: domain.ModelEmbedding, Active: true}
	_, err := repo.Create(context.Background(), model)
	require.NoError(t, err)

	got, err := repo.Default(context.Background(), providerID, domain.ModelEmbedding)
	require.NoError(t, err)
	assert.Equal(t, "only", got.Model)
}

func TestInMemoryLLMModelsDefaultConfigurationMissingWithoutCandidate(t *testing.T) {
	repo := NewInMemoryLLMModels()
	_, err := repo.Default(context.Background(), uuid.New(), domain.ModelGeneration)
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindConfigurationMissing))
}

func TestInMemoryLLMModelsUpdateAndDelete(t *testing.T) {
	repo := NewInMemoryLLMModels()
	m := domain.LLMModel{ID: uuid.New(), ProviderID: uuid.New(), Model: "gen-1", Type: domain.ModelGeneration, Active: true}
	_, err := repo.Create(context.Background(), m)
	require.NoError(t, err)

	m.Active = false
	require.NoError(t, repo.Update(context.Background(), m))
	got, err := repo.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, repo.Delete(context.Background(), m.ID))
	_, err = repo.Get(context.Background(), m.ID)
	require.Error(t, err)
}

func TestConversationRepositoryDelegatesGetFull(t *testing.T) {
	store := conversation.NewInMemoryStore()
	repo := NewConversationRepository(store)

	session := domain.ConversationSession{ID: uuid.New(), Status: domain.SessionActive}
	_, err := repo.CreateSession(context.Background(), session)
	require.NoError(t, err)

	full, err := repo.GetFull(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, full.Session.ID)
}
