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

package ragcore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/rerank"
	"github.com/kadirpekel/ragcore/pkg/repository"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/settings"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

type fakeLLMProvider struct {
	text string
}

func (f fakeLLMProvider) Name() string { return "fake" }

func (f fakeLLMProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerateParams) (llm.GenerateResult, error) {
	return llm.GenerateResult{Text: f.text, InputTokens: 10, OutputTokens: 5}, nil
}

func (f fakeLLMProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeVectorStore struct {
	hits []vectorstore.Hit
}

func (f *fakeVectorStore) Name() string { return "fake-store" }

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	return f.hits, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	return nil
}

func newTestService(t *testing.T) (*Service, uuid.UUID, uuid.UUID) {
	t.Helper()

	registry := llm.NewRegistry()
	registry.RegisterFactory("fake", func(cfg domain.LLMProvider) (llm.Provider, error) {
		return fakeLLMProvider{text: "the answer"}, nil
	})

	providerRow := domain.LLMProvider{ID: uuid.New(), Name: "fake-provider", Active: true}
	require.NoError(t, registry.Configure("fake", providerRow))

	providers := repository.NewInMemoryLLMProviders()
	_, err := providers.Create(context.Background(), providerRow)
	require.NoError(t, err)

	models := repository.NewInMemoryLLMModels()
	genModel := domain.LLMModel{ID: uuid.New(), ProviderID: providerRow.ID, Model: "fake-gen", Type: domain.ModelGeneration, IsDefault: true, Active: true}
	embModel := domain.LLMModel{ID: uuid.New(), ProviderID: providerRow.ID, Model: "fake-embed", Type: domain.ModelEmbedding, IsDefault: true, Active: true}
	_, err = models.Create(context.Background(), genModel)
	require.NoError(t, err)
	_, err = models.Create(context.Background(), embModel)
	require.NoError(t, err)

	collections := repository.NewInMemoryCollections()
	col := domain.Collection{ID: uuid.New(), Name: "docs", Status: domain.CollectionCompleted}
	_, err = collections.Create(context.Background(), col)
	require.NoError(t, err)

	userID := uuid.New()
	pipelines := repository.NewInMemoryPipelineConfigs()
	cfg := domain.PipelineConfig{
		ID:               uuid.New(),
		OwnerID:          userID,
		ProviderID:       providerRow.ID,
		EmbeddingModelID: embModel.ID,
		Retriever:        domain.RetrieverVector,
		IsDefault:        true,
	}
	_, err = pipelines.Create(context.Background(), cfg)
	require.NoError(t, err)

	templates := repository.NewInMemoryPromptTemplates()
	tmpl := domain.PromptTemplate{
		ID:        uuid.New(),
		OwnerID:   userID,
		Type:      domain.TemplateRAGQuery,
		IsDefault: true,
		SystemPrompt: "You are helpful.",
		TemplateFormat: "Context:\n{context}\n\nQuestion: {question}",
		InputVariables: map[string]domain.VariableSpec{
			"context":  {},
			"question": {MinLength: 1},
		},
	}
	_, err = templates.Create(context.Background(), tmpl)
	require.NoError(t, err)

	s := settings.Settings{}
	s.Defaults.RetrievalTopK = 5
	s.Defaults.RerankTopK = 3
	s.Defaults.MaxReasoningDepth = 2

	store := &fakeVectorStore{hits: []vectorstore.Hit{
		{ID: "c1", Content: "relevant passage", Score: 0.9, Metadata: map[string]any{"document_name": "doc-1.pdf", "title": "Doc One"}},
	}}

	deps := ServiceDeps{
		Collections:     collections,
		PipelineConfigs: pipelines,
		Templates:       templates,
		LLMParameters:   repository.NewInMemoryLLMParameters(),
		LLMProviders:    providers,
		LLMModels:       models,
		Providers:       registry,
		VectorStore:     store,
		Reranker:        rerank.Passthrough{},
		Settings:        &s,
	}
	return NewService(deps), userID, col.ID
}

func TestServiceSearchHappyPath(t *testing.T) {
	svc, userID, colID := newTestService(t)

	out, err := svc.Search(context.Background(), Input{
		Question:     "what does the document say",
		CollectionID: colID,
		UserID:       userID,
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out.Answer)
	require.Len(t, out.QueryResults, 1)
	assert.Equal(t, "c1", out.QueryResults[0].ChunkID)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "doc-1.pdf", out.Documents[0].DocumentName)
	assert.Equal(t, 10, out.Metadata.TokenUsage.InputTokens)
	assert.Equal(t, 5, out.Metadata.TokenUsage.OutputTokens)
}

func TestServiceSearchRejectsEmptyQuestion(t *testing.T) {
	svc, userID, colID := newTestService(t)
	_, err := svc.Search(context.Background(), Input{Question: "   ", CollectionID: colID, UserID: userID})
	require.Error(t, err)
}

func TestServiceSearchNotFoundWhenCollectionMissing(t *testing.T) {
	svc, userID, _ := newTestService(t)
	_, err := svc.Search(context.Background(), Input{Question: "hi", CollectionID: uuid.New(), UserID: userID})
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindNotFound))
}

func TestServiceSearchConfigurationMissingWhenNoPipeline(t *testing.T) {
	svc, _, colID := newTestService(t)
	_, err := svc.Search(context.Background(), Input{Question: "hi", CollectionID: colID, UserID: uuid.New()})
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindConfigurationMissing))
}

func TestConversationSearcherDelegatesToService(t *testing.T) {
	svc, userID, colID := newTestService(t)
	searcher := ConversationSearcher{Service: svc}

	answer, tokensIn, tokensOut, err := searcher.Search(context.Background(), userID, colID, "what does the document say")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, 10, tokensIn)
	assert.Equal(t, 5, tokensOut)
}
