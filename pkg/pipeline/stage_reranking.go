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

package pipeline

import (
	"context"

	"github.com/kadirpekel/ragcore/pkg/rerank"
	"github.com/kadirpekel/ragcore/pkg/settings"
)

// RerankingStage reorders QueryResults by a reranker's judgment of
// relevance. It's skipped entirely when config_metadata["skip_reranking"] is
// true or no reranker was configured for this pipeline.
type RerankingStage struct {
	reranker    rerank.Reranker
	resolver    *settings.Resolver
	defaultTopK int
}

func NewRerankingStage(reranker rerank.Reranker, resolver *settings.Resolver, defaultTopK int) *RerankingStage {
	return &RerankingStage{reranker: reranker, resolver: resolver, defaultTopK: defaultTopK}
}

func (s *RerankingStage) Name() string { return "Reranking" }

func (s *RerankingStage) Skip(pc *Context) bool {
	return s.reranker == nil || s.resolver.Bool("skip_reranking", false)
}

func (s *RerankingStage) Execute(ctx context.Context, pc *Context) StageResult {
	query := pc.RewrittenQuery
	if query == "" {
		query = pc.Question
	}
	topK := s.resolver.Int("rerank_top_k", s.resolver.Settings().Defaults.RerankTopK, s.defaultTopK)

	reordered, err := s.reranker.Rerank(ctx, query, pc.QueryResults, topK)
	if err != nil {
		return fail(err)
	}
	pc.QueryResults = reordered
	return ok()
}
