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
	"fmt"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/prompt"
)

const (
	contextStrategyConcat    = "concat"
	contextStrategyNumbered  = "numbered_list"
	defaultContextStrategy   = contextStrategyConcat
)

// GenerationStage renders the RAG_QUERY template against the retrieved
// context (and, if reasoning ran, its synthesized answer) and calls the
// configured provider for a final answer.
type GenerationStage struct {
	provider llm.Provider
	template *domain.PromptTemplate
	params   llm.GenerateParams
}

func NewGenerationStage(provider llm.Provider, template *domain.PromptTemplate, params llm.GenerateParams) *GenerationStage {
	return &GenerationStage{provider: provider, template: template, params: params}
}

func (s *GenerationStage) Name() string { return "Generation" }

func (s *GenerationStage) Execute(ctx context.Context, pc *Context) StageResult {
	query := pc.RewrittenQuery
	if query == "" {
		query = pc.Question
	}

	strategy := resolveContextStrategy(s.template, pc.PipelineCfg)
	contextStr := assembleContext(pc, strategy)

	vars := map[string]string{
		"question": query,
		"context":  contextStr,
	}
	if pc.CoTOutput != nil {
		vars["reasoning"] = pc.CoTOutput.Answer
	}

	system, body, err := prompt.RenderWithSystem(s.template, vars)
	if err != nil {
		return fail(err)
	}

	result, err := s.provider.Generate(ctx, system, body, s.params)
	if err != nil {
		return fail(err)
	}
	pc.Answer = result.Text
	pc.InputTokens = result.InputTokens
	pc.OutputTokens = result.OutputTokens
	return ok()
}

// resolveContextStrategy implements the documented precedence: the
// template's own ContextStrategy wins when set; otherwise the pipeline's.
func resolveContextStrategy(tmpl *domain.PromptTemplate, cfg domain.PipelineConfig) string {
	if tmpl.ContextStrategy != "" {
		return tmpl.ContextStrategy
	}
	if cfg.ContextStrategy != "" {
		return cfg.ContextStrategy
	}
	return defaultContextStrategy
}

func assembleContext(pc *Context, strategy string) string {
	if len(pc.QueryResults) == 0 {
		return ""
	}
	var b strings.Builder
	for i, hit := range pc.QueryResults {
		switch strategy {
		case contextStrategyNumbered:
			fmt.Fprintf(&b, "%d. %s\n", i+1, hit.Content)
		default:
			b.WriteString(hit.Content)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}
