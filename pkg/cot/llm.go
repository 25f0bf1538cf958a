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

package cot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/search"
	"github.com/kadirpekel/ragcore/pkg/tokens"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

const decomposeSystemPrompt = `You break a complex question into an ordered list of simpler sub-questions that, answered in order, let someone answer the original question. Respond with a JSON array of strings only, most foundational sub-question first. Produce at most %d sub-questions.`

// LLMDecomposer asks an llm.Provider to split a question into sub-questions.
type LLMDecomposer struct {
	gen   llm.Provider
	model string
}

func NewLLMDecomposer(gen llm.Provider, model string) *LLMDecomposer {
	return &LLMDecomposer{gen: gen, model: model}
}

func (d *LLMDecomposer) Decompose(ctx context.Context, question string, kind QuestionKind, maxDepth int) ([]string, error) {
	system := fmt.Sprintf(decomposeSystemPrompt, maxDepth)
	user := fmt.Sprintf("Question type: %s\nQuestion: %s", kind, question)

	result, err := d.gen.Generate(ctx, system, user, llm.GenerateParams{Model: d.model, Temperature: 0, MaxNewTokens: 512})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindProvider, "cot.Decompose", "decomposition call failed", err)
	}

	match := jsonArray.FindString(result.Text)
	if match == "" {
		return nil, rerrors.Provider(rerrors.ProviderMalformed, "cot.Decompose", "response contained no JSON array", nil)
	}
	var subQuestions []string
	if err := json.Unmarshal([]byte(match), &subQuestions); err != nil {
		return nil, rerrors.Provider(rerrors.ProviderMalformed, "cot.Decompose", "could not parse sub-question array", err)
	}
	return subQuestions, nil
}

const stepSystemPrompt = `You answer one sub-question using the supplied context passages and any answers already established by earlier sub-questions. End your response with a line of the exact form "Confidence: 0.NN" giving your confidence in the answer, from 0.00 to 1.00.`

var confidenceLine = regexp.MustCompile(`(?i)confidence:\s*([01](?:\.\d+)?)`)

// RetrievalExecutor answers one sub-question by retrieving supporting
// passages for it and asking the model to answer given those passages plus
// any previously established answers.
type RetrievalExecutor struct {
	engine    *search.Engine
	gen       llm.Provider
	model     string
	col       domain.Collection
	retriever domain.RetrieverKind
	topK      int
}

func NewRetrievalExecutor(engine *search.Engine, gen llm.Provider, model string, col domain.Collection, retriever domain.RetrieverKind, topK int) *RetrievalExecutor {
	return &RetrievalExecutor{engine: engine, gen: gen, model: model, col: col, retriever: retriever, topK: topK}
}

func (e *RetrievalExecutor) ExecuteStep(ctx context.Context, subQuestion string, previousAnswers []StepResult) (StepResult, error) {
	hits, err := e.engine.Retrieve(ctx, e.col, e.retriever, subQuestion, e.topK)
	if err != nil {
		return StepResult{}, err
	}

	user := buildStepPrompt(subQuestion, hits, previousAnswers)
	result, err := e.gen.Generate(ctx, stepSystemPrompt, user, llm.GenerateParams{Model: e.model, Temperature: 0.2, MaxNewTokens: 1024})
	if err != nil {
		return StepResult{}, rerrors.Wrap(rerrors.KindProvider, "cot.ExecuteStep", "step generation failed", err)
	}

	answer, confidence := splitConfidence(result.Text)
	return StepResult{SubQuestion: subQuestion, Answer: answer, Confidence: confidence}, nil
}

func buildStepPrompt(subQuestion string, hits []vectorstore.Hit, previousAnswers []StepResult) string {
	var b strings.Builder
	if len(previousAnswers) > 0 {
		b.WriteString("Previously established:\n")
		for _, p := range previousAnswers {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", p.SubQuestion, p.Answer)
		}
		b.WriteString("\n")
	}
	b.WriteString("Context passages:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s\n", h.Content)
	}
	fmt.Fprintf(&b, "\nSub-question: %s\n", subQuestion)
	return b.String()
}

// splitConfidence pulls the trailing "Confidence: 0.NN" line off a step
// answer. If the model didn't follow the format, confidence defaults to 0.5
// — low enough that a chain relying on it won't look falsely certain.
func splitConfidence(text string) (answer string, confidence float64) {
	loc := confidenceLine.FindStringSubmatchIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), 0.5
	}
	confValue, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	if err != nil {
		confValue = 0.5
	}
	answer = strings.TrimSpace(text[:loc[0]])
	return answer, confValue
}

const synthesizeSystemPrompt = `You combine the answers to a sequence of sub-questions into one direct, well-formed answer to the original question. Do not mention the sub-questions or the reasoning process; state the answer itself.`

// LLMSynthesizer combines step answers into a final answer via one more
// generation call.
type LLMSynthesizer struct {
	gen   llm.Provider
	model string
}

func NewLLMSynthesizer(gen llm.Provider, model string) *LLMSynthesizer {
	return &LLMSynthesizer{gen: gen, model: model}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, question string, steps []StepResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", question)
	for _, st := range steps {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", st.SubQuestion, st.Answer)
	}

	result, err := s.gen.Generate(ctx, synthesizeSystemPrompt, b.String(), llm.GenerateParams{Model: s.model, Temperature: 0.2, MaxNewTokens: 1024})
	if err != nil {
		return "", rerrors.Wrap(rerrors.KindProvider, "cot.Synthesize", "synthesis call failed", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// StepBudget divides a model's context window among the expected number of
// reasoning steps, leaving headroom for the prompt already spent, so no
// single step's generation request can exhaust the window before synthesis
// runs. It never returns less than minStepTokens.
func StepBudget(model string, promptTokensSoFar, expectedSteps, minStepTokens int) int {
	if expectedSteps <= 0 {
		expectedSteps = 1
	}
	window := tokens.ContextWindow(model)
	remaining := window - promptTokensSoFar
	if remaining <= 0 {
		return minStepTokens
	}
	perStep := remaining / expectedSteps
	if perStep < minStepTokens {
		return minStepTokens
	}
	return perStep
}
