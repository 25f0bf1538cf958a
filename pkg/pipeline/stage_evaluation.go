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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// EvaluationStage attaches classical IR metrics (when ground-truth chunk
// ids were supplied) and, only when explicitly requested per-request,
// LLM-as-judge quality ratings.
type EvaluationStage struct {
	provider llm.Provider
	model    string
}

func NewEvaluationStage(provider llm.Provider, model string) *EvaluationStage {
	return &EvaluationStage{provider: provider, model: model}
}

func (s *EvaluationStage) Name() string { return "Evaluation" }

func (s *EvaluationStage) Execute(ctx context.Context, pc *Context) StageResult {
	if groundTruth, ok := pc.ConfigMeta["ground_truth_ids"]; ok {
		ids := toStringSlice(groundTruth)
		if len(ids) > 0 {
			hitRate, mrr := classicalMetrics(pc.QueryResults, ids)
			pc.Evaluation["hit_rate"] = hitRate
			pc.Evaluation["mrr"] = mrr
		}
	}

	if enabled, _ := pc.ConfigMeta["enable_llm_judge"].(bool); enabled && s.provider != nil {
		ratings, err := s.judge(ctx, pc)
		if err != nil {
			return fail(err)
		}
		for k, v := range ratings {
			pc.Evaluation[k] = v
		}
	}
	return ok()
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// classicalMetrics computes hit-rate (fraction of ground-truth ids present
// anywhere in the results) and MRR (reciprocal rank of the first
// ground-truth id found, 0 if none appear).
func classicalMetrics(hits []vectorstore.Hit, groundTruth []string) (hitRate, mrr float64) {
	if len(groundTruth) == 0 {
		return 0, 0
	}
	want := make(map[string]bool, len(groundTruth))
	for _, id := range groundTruth {
		want[id] = true
	}

	found := 0
	firstRank := 0
	for i, h := range hits {
		if want[h.ID] {
			found++
			delete(want, h.ID)
			if firstRank == 0 {
				firstRank = i + 1
			}
		}
	}

	hitRate = float64(found) / float64(len(groundTruth))
	if firstRank > 0 {
		mrr = 1.0 / float64(firstRank)
	}
	return hitRate, mrr
}

const judgeSystemPrompt = `You rate a generated answer against the question and the retrieved context on three axes, each from 0.0 to 1.0: faithfulness (is the answer supported by the context), answer_relevance (does it address the question), context_relevance (was the retrieved context actually useful). Respond with a single JSON object: {"faithfulness": N, "answer_relevance": N, "context_relevance": N}.`

func (s *EvaluationStage) judge(ctx context.Context, pc *Context) (map[string]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\nContext:\n", pc.Question, pc.Answer)
	for _, hit := range pc.QueryResults {
		b.WriteString("- ")
		b.WriteString(hit.Content)
		b.WriteString("\n")
	}

	result, err := s.provider.Generate(ctx, judgeSystemPrompt, b.String(), llm.GenerateParams{Model: s.model, Temperature: 0})
	if err != nil {
		return nil, err
	}

	var ratings map[string]float64
	if err := json.Unmarshal([]byte(result.Text), &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}
