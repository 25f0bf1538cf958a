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

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/rewrite"
)

// QueryEnhancementStage rewrites an ambiguous follow-up question into a
// standalone one, given the session's recent history.
type QueryEnhancementStage struct {
	provider llm.Provider
	model    string
	history  []domain.ConversationMessage
}

func NewQueryEnhancementStage(provider llm.Provider, model string, history []domain.ConversationMessage) *QueryEnhancementStage {
	return &QueryEnhancementStage{provider: provider, model: model, history: history}
}

func (s *QueryEnhancementStage) Name() string { return "QueryEnhancement" }

func (s *QueryEnhancementStage) Execute(ctx context.Context, pc *Context) StageResult {
	gen := modelGenerator{provider: s.provider, model: s.model}
	rewritten, err := rewrite.Rewrite(ctx, gen, pc.Question, s.history)
	if err != nil {
		return fail(err)
	}
	pc.RewrittenQuery = rewritten
	return ok()
}
