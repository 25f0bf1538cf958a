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

	"github.com/kadirpekel/ragcore/pkg/search"
	"github.com/kadirpekel/ragcore/pkg/settings"
)

// RetrievalStage fetches candidate passages for the (possibly rewritten)
// query from the collection's vector store.
type RetrievalStage struct {
	engine         *search.Engine
	embeddingModel string
	resolver       *settings.Resolver
	defaultTopK    int
}

func NewRetrievalStage(engine *search.Engine, embeddingModel string, resolver *settings.Resolver, defaultTopK int) *RetrievalStage {
	return &RetrievalStage{engine: engine, embeddingModel: embeddingModel, resolver: resolver, defaultTopK: defaultTopK}
}

func (s *RetrievalStage) Name() string { return "Retrieval" }

func (s *RetrievalStage) Execute(ctx context.Context, pc *Context) StageResult {
	query := pc.RewrittenQuery
	if query == "" {
		query = pc.Question
	}
	topK := s.resolver.Int("retrieval_top_k", s.resolver.Settings().Defaults.RetrievalTopK, s.defaultTopK)

	hits, err := s.engine.Retrieve(ctx, pc.Collection, pc.PipelineCfg.Retriever, query, topK)
	if err != nil {
		return fail(err)
	}
	pc.QueryResults = hits
	return ok()
}
