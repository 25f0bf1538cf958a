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
	"testing"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassicalMetrics(t *testing.T) {
	hits := []vectorstore.Hit{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	hitRate, mrr := classicalMetrics(hits, []string{"b", "z"})
	assert.Equal(t, 0.5, hitRate)
	assert.Equal(t, 0.5, mrr) // "b" is rank 2 -> 1/2

	hitRate, mrr = classicalMetrics(hits, []string{"missing"})
	assert.Equal(t, 0.0, hitRate)
	assert.Equal(t, 0.0, mrr)

	hitRate, mrr = classicalMetrics(hits, nil)
	assert.Equal(t, 0.0, hitRate)
	assert.Equal(t, 0.0, mrr)
}

type fakeProvider struct {
	text string
	err  error
}

func (f fakeProvider) Name() string { return "fake" }

func (f fakeProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerateParams) (llm.GenerateResult, error) {
	if f.err != nil {
		return llm.GenerateResult{}, f.err
	}
	return llm.GenerateResult{Text: f.text}, nil
}

func (f fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestEvaluationStageSkipsJudgeWhenNotEnabled(t *testing.T) {
	stage := NewEvaluationStage(fakeProvider{text: `{"faithfulness":1}`}, "m")
	pc := newTestContext()
	pc.QueryResults = []vectorstore.Hit{{ID: "a", Content: "x"}}
	pc.ConfigMeta["ground_truth_ids"] = []string{"a"}

	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, 1.0, pc.Evaluation["hit_rate"])
	assert.Equal(t, 1.0, pc.Evaluation["mrr"])
	_, hasJudge := pc.Evaluation["faithfulness"]
	assert.False(t, hasJudge)
}

func TestEvaluationStageRunsJudgeWhenEnabled(t *testing.T) {
	stage := NewEvaluationStage(fakeProvider{text: `{"faithfulness":0.9,"answer_relevance":0.8,"context_relevance":0.7}`}, "m")
	pc := newTestContext()
	pc.ConfigMeta["enable_llm_judge"] = true

	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, 0.9, pc.Evaluation["faithfulness"])
	assert.Equal(t, 0.8, pc.Evaluation["answer_relevance"])
	assert.Equal(t, 0.7, pc.Evaluation["context_relevance"])
}

func TestResolveContextStrategyPrefersTemplate(t *testing.T) {
	tmpl := &domain.PromptTemplate{ContextStrategy: "numbered_list"}
	cfg := domain.PipelineConfig{ContextStrategy: "concat"}
	assert.Equal(t, "numbered_list", resolveContextStrategy(tmpl, cfg))

	tmpl2 := &domain.PromptTemplate{}
	assert.Equal(t, "concat", resolveContextStrategy(tmpl2, cfg))

	assert.Equal(t, defaultContextStrategy, resolveContextStrategy(&domain.PromptTemplate{}, domain.PipelineConfig{}))
}

func TestAssembleContext(t *testing.T) {
	pc := newTestContext()
	pc.QueryResults = []vectorstore.Hit{{Content: "first"}, {Content: "second"}}

	concat := assembleContext(pc, contextStrategyConcat)
	assert.Contains(t, concat, "first")
	assert.Contains(t, concat, "second")

	numbered := assembleContext(pc, contextStrategyNumbered)
	assert.Contains(t, numbered, "1. first")
	assert.Contains(t, numbered, "2. second")

	empty := assembleContext(newTestContext(), contextStrategyConcat)
	assert.Equal(t, "", empty)
}
