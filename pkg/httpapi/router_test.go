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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/rerank"
	"github.com/kadirpekel/ragcore/pkg/repository"
	"github.com/kadirpekel/ragcore/pkg/settings"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, bearerToken string) (Claims, error) {
	userID, err := uuid.Parse(bearerToken)
	if err != nil {
		return Claims{}, fmt.Errorf("bad token: %w", err)
	}
	return Claims{UserID: userID, Role: "user"}, nil
}

type fakeProvider struct{ text string }

func (f fakeProvider) Name() string { return "fake" }
func (f fakeProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerateParams) (llm.GenerateResult, error) {
	return llm.GenerateResult{Text: f.text, InputTokens: 3, OutputTokens: 2}, nil
}
func (f fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeStore struct{ hits []vectorstore.Hit }

func (f *fakeStore) Name() string { return "fake-store" }
func (f *fakeStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}
func (f *fakeStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) error {
	return nil
}
func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]vectorstore.Hit, error) {
	return f.hits, nil
}
func (f *fakeStore) Delete(ctx context.Context, collection string, ids []string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, uuid.UUID, uuid.UUID) {
	t.Helper()

	registry := llm.NewRegistry()
	registry.RegisterFactory("fake", func(cfg domain.LLMProvider) (llm.Provider, error) {
		return fakeProvider{text: "Guido van Rossum created Python"}, nil
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
		ID: uuid.New(), OwnerID: userID, ProviderID: providerRow.ID, EmbeddingModelID: embModel.ID,
		Retriever: domain.RetrieverVector, IsDefault: true,
	}
	_, err = pipelines.Create(context.Background(), cfg)
	require.NoError(t, err)

	templates := repository.NewInMemoryPromptTemplates()
	tmpl := domain.PromptTemplate{
		ID: uuid.New(), OwnerID: userID, Type: domain.TemplateRAGQuery, IsDefault: true,
		SystemPrompt: "helpful", TemplateFormat: "Context:\n{context}\n\nQuestion: {question}",
		InputVariables: map[string]domain.VariableSpec{"context": {}, "question": {MinLength: 1}},
	}
	_, err = templates.Create(context.Background(), tmpl)
	require.NoError(t, err)

	s := settings.Settings{}
	s.Defaults.RetrievalTopK = 5
	s.Defaults.RerankTopK = 3
	s.Defaults.MaxReasoningDepth = 2

	store := &fakeStore{hits: []vectorstore.Hit{
		{ID: "c1", Content: "Python was created by Guido van Rossum.", Score: 0.9, Metadata: map[string]any{"document_name": "python.txt"}},
	}}

	svc := ragcore.NewService(ragcore.ServiceDeps{
		Collections: collections, PipelineConfigs: pipelines, Templates: templates,
		LLMParameters: repository.NewInMemoryLLMParameters(), LLMProviders: providers, LLMModels: models,
		Providers: registry, VectorStore: store, Reranker: rerank.Passthrough{}, Settings: &s,
	})

	mgr := conversation.NewManager(conversation.NewInMemoryStore(), fakeRewriteGenerator{}, ragcore.ConversationSearcher{Service: svc}, "fake-gen")

	router := NewRouter(Deps{Service: svc, Conversations: mgr, Authenticator: stubAuthenticator{}})
	return router, userID, col.ID
}

type fakeRewriteGenerator struct{}

func (fakeRewriteGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "standalone question", nil
}

func doRequest(router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpointHappyPath(t *testing.T) {
	router, userID, colID := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/api/search", userID.String(), map[string]any{
		"question": "Who created Python?", "collection_id": colID, "user_id": userID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Guido")
	require.Len(t, resp.QueryResults, 1)
}

func TestSearchEndpointRequiresAuth(t *testing.T) {
	router, _, colID := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/api/search", "", map[string]any{
		"question": "hi", "collection_id": colID,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchEndpointUnknownCollectionReturns404(t *testing.T) {
	router, userID, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/api/search", userID.String(), map[string]any{
		"question": "hi", "collection_id": uuid.New(), "user_id": userID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSessionLifecycle(t *testing.T) {
	router, userID, colID := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/chat/sessions", userID.String(), map[string]any{
		"user_id": userID, "collection_id": colID, "name": "my session",
		"context_window_size": 4096, "max_messages": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var session conversationSessionOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "my session", session.Name)

	path := "/api/chat/sessions/" + session.ID.String()

	rec = doRequest(router, http.MethodGet, path, userID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPatch, path, userID.String(), map[string]any{"name": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "renamed", session.Name)

	rec = doRequest(router, http.MethodPost, path+"/process", userID.String(), map[string]any{"content": "Who created Python?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var msg conversationMessageOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "assistant", msg.Role)
	assert.Contains(t, msg.Content, "Guido")

	rec = doRequest(router, http.MethodGet, path+"/summaries", userID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodDelete, path, userID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
