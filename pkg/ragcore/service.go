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

// Package ragcore is the top-level composition root: it wires the
// repositories, provider registry, and vector store built elsewhere into
// the facade-level Search Service, the one entry point the HTTP layer and
// the conversation Manager both call to run a question through the full
// pipeline.
package ragcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragcore/pkg/cot"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/pipeline"
	"github.com/kadirpekel/ragcore/pkg/rerank"
	"github.com/kadirpekel/ragcore/pkg/repository"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/search"
	"github.com/kadirpekel/ragcore/pkg/settings"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// reasoningStrategyDecomposition is the only chain-of-thought strategy this
// module implements; it's reported in SearchOutput metadata for parity with
// the cot_reasoning_strategy setting, which has no other value to resolve
// to yet.
const reasoningStrategyDecomposition = "decomposition"

// ServiceDeps wires the Search Service facade to the repositories, provider
// registry, and vector store it needs to resolve a pipeline and run it. One
// ServiceDeps is built once at startup and shared across requests; nothing
// here is request-scoped.
type ServiceDeps struct {
	Collections     repository.CollectionRepository
	PipelineConfigs repository.PipelineConfigRepository
	Templates       repository.PromptTemplateRepository
	LLMParameters   repository.LLMParametersRepository
	LLMProviders    repository.LLMProviderRepository
	LLMModels       repository.LLMModelRepository
	Providers       *llm.Registry
	VectorStore     vectorstore.Provider
	Reranker        rerank.Reranker
	Settings        *settings.Settings
}

// Service is the facade described as the Search Service: it resolves a
// pipeline for a (user, collection) pair, wires up the six pipeline stages
// against that resolution, and runs them against one question.
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

// Input is one search request. It deliberately has no pipeline id field —
// the service always resolves the pipeline from (UserID, CollectionID); a
// client-supplied pipeline id is rejected at the httpapi boundary before a
// request ever reaches here.
type Input struct {
	Question       string
	CollectionID   uuid.UUID
	UserID         uuid.UUID
	ConfigMetadata map[string]any
	// History is the recent conversation turns used for query enhancement,
	// supplied by the conversation Manager when this call is part of
	// process_user_message; empty for a bare /api/search call.
	History []domain.ConversationMessage
}

type DocumentRef struct {
	DocumentName string
	Title        string
	Metadata     map[string]any
}

type QueryResult struct {
	ChunkID    string
	Text       string
	Score      float32
	Embeddings []float32
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

type OutputMetadata struct {
	CoTUsed           bool
	ReasoningStrategy string
	TokenUsage        TokenUsage
	ExecutionTime     time.Duration
}

type Output struct {
	Answer         string
	Documents      []DocumentRef
	QueryResults   []QueryResult
	RewrittenQuery string
	Evaluation     map[string]float64
	CoTOutput      *cot.Result
	Metadata       OutputMetadata
}

// Search resolves the pipeline for (in.UserID, in.CollectionID), runs the
// canonical six-stage pipeline against in.Question, and shapes the result.
func (s *Service) Search(ctx context.Context, in Input) (Output, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return Output{}, rerrors.Validation("ragcore.Service", "question must not be empty")
	}

	col, err := s.deps.Collections.Get(ctx, in.CollectionID)
	if err != nil {
		return Output{}, err
	}

	cfg, err := s.deps.PipelineConfigs.Default(ctx, in.UserID, &in.CollectionID)
	if err != nil {
		return Output{}, err
	}

	genProviderRow, err := s.deps.LLMProviders.Get(ctx, cfg.ProviderID)
	if err != nil {
		return Output{}, err
	}
	genProvider, err := s.deps.Providers.Get(genProviderRow.Name)
	if err != nil {
		return Output{}, err
	}
	genModel, err := s.deps.LLMModels.Default(ctx, cfg.ProviderID, domain.ModelGeneration)
	if err != nil {
		return Output{}, err
	}

	embModel, err := s.deps.LLMModels.Get(ctx, cfg.EmbeddingModelID)
	if err != nil {
		return Output{}, err
	}
	embProviderRow, err := s.deps.LLMProviders.Get(ctx, embModel.ProviderID)
	if err != nil {
		return Output{}, err
	}
	embProvider, err := s.deps.Providers.Get(embProviderRow.Name)
	if err != nil {
		return Output{}, err
	}

	template, err := s.deps.Templates.Default(ctx, in.UserID, domain.TemplateRAGQuery)
	if err != nil {
		return Output{}, err
	}

	genParams := s.resolveGenerateParams(ctx, in.UserID)
	genParams.Model = genModel.Model

	pc := pipeline.NewContext(question, col, cfg, in.UserID.String())
	pc.ConfigMeta = mergeMetadata(cfg.ConfigMetadata, in.ConfigMetadata)

	resolver := settings.NewResolver(pc.ConfigMeta, s.deps.Settings)
	engine := search.NewEngine(s.deps.VectorStore, queryEmbedder{provider: embProvider, model: embModel.Model})

	cotEngine := cot.NewEngine(
		cot.NewLLMDecomposer(genProvider, genModel.Model),
		cot.NewRetrievalExecutor(engine, genProvider, genModel.Model, col, cfg.Retriever, s.deps.Settings.Defaults.RetrievalTopK),
		cot.NewLLMSynthesizer(genProvider, genModel.Model),
		s.deps.Settings.Defaults.MaxReasoningDepth,
	)

	stages := []pipeline.Stage{
		pipeline.NewQueryEnhancementStage(genProvider, genModel.Model, in.History),
		pipeline.NewRetrievalStage(engine, embModel.Model, resolver, s.deps.Settings.Defaults.RetrievalTopK),
		pipeline.NewRerankingStage(s.deps.Reranker, resolver, s.deps.Settings.Defaults.RerankTopK),
		pipeline.NewReasoningStage(cotEngine),
		pipeline.NewGenerationStage(genProvider, &template, genParams),
		pipeline.NewEvaluationStage(genProvider, genModel.Model),
	}

	executor := pipeline.NewExecutor(stages...)
	if err := executor.Run(ctx, pc); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Output{}, rerrors.DeadlineExceeded("ragcore.Service")
		}
		return Output{}, err
	}

	return shapeOutput(pc), nil
}

// resolveGenerateParams looks up the owner's default LLMParameters,
// returning llm.GenerateParams's zero value (provider-side defaults apply)
// when none is configured — generation params are a tuning knob, not a
// required configuration the way the pipeline/provider/template are.
func (s *Service) resolveGenerateParams(ctx context.Context, ownerID uuid.UUID) llm.GenerateParams {
	candidates, err := s.deps.LLMParameters.ListForOwner(ctx, ownerID)
	if err != nil {
		return llm.GenerateParams{}
	}
	for _, p := range candidates {
		if p.IsDefault {
			return llm.FromLLMParameters(p)
		}
	}
	return llm.GenerateParams{}
}

func mergeMetadata(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// queryEmbedder adapts an llm.Provider bound to one embedding model down to
// the single-query search.Embedder the retrieval engine depends on.
type queryEmbedder struct {
	provider llm.Provider
	model    string
}

func (e queryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.provider.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// ConversationSearcher adapts Service to conversation.Searcher so the
// conversation Manager's process_user_message can delegate to the same
// facade a bare /api/search call uses, without pkg/conversation needing to
// import this package's full Input/Output shape.
type ConversationSearcher struct {
	Service *Service
}

func (c ConversationSearcher) Search(ctx context.Context, userID, collectionID uuid.UUID, question string) (answer string, tokensIn, tokensOut int, err error) {
	out, err := c.Service.Search(ctx, Input{Question: question, CollectionID: collectionID, UserID: userID})
	if err != nil {
		return "", 0, 0, err
	}
	return out.Answer, out.Metadata.TokenUsage.InputTokens, out.Metadata.TokenUsage.OutputTokens, nil
}

func shapeOutput(pc *pipeline.Context) Output {
	out := Output{
		Answer:         pc.Answer,
		RewrittenQuery: pc.RewrittenQuery,
		Evaluation:     pc.Evaluation,
		CoTOutput:      pc.CoTOutput,
		Metadata: OutputMetadata{
			CoTUsed:       pc.CoTUsed,
			TokenUsage:    TokenUsage{InputTokens: pc.InputTokens, OutputTokens: pc.OutputTokens},
			ExecutionTime: pc.StageDurations["total"],
		},
	}
	if pc.CoTUsed {
		out.Metadata.ReasoningStrategy = reasoningStrategyDecomposition
	}

	seenDocs := make(map[string]bool, len(pc.QueryResults))
	for _, hit := range pc.QueryResults {
		out.QueryResults = append(out.QueryResults, QueryResult{
			ChunkID:    hit.ID,
			Text:       hit.Content,
			Score:      hit.Score,
			Embeddings: hit.Vector,
		})

		name, _ := hit.Metadata["document_name"].(string)
		if name == "" || seenDocs[name] {
			continue
		}
		seenDocs[name] = true
		title, _ := hit.Metadata["title"].(string)
		out.Documents = append(out.Documents, DocumentRef{
			DocumentName: name,
			Title:        title,
			Metadata:     hit.Metadata,
		})
	}
	return out
}
