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

// Package cot implements the chain-of-thought reasoning strategy: classify a
// question as multi-hop, comparative, or analytical; decompose it into
// ordered sub-questions bounded by a configured depth; execute each
// sub-question sequentially, threading prior answers into the next step's
// prompt; and synthesize a final answer with a confidence equal to the
// weakest step.
//
// Steps never run in parallel — each depends on the previous step's answer,
// unlike the bounded fan-out pkg/search and pkg/embed use within a single
// step.
package cot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// QuestionKind classifies why a question needs multi-step reasoning.
type QuestionKind string

const (
	KindSimple      QuestionKind = "simple" // doesn't need decomposition
	KindMultiHop    QuestionKind = "multi_hop"
	KindComparative QuestionKind = "comparative"
	KindAnalytical  QuestionKind = "analytical"
)

var (
	comparativeWords = regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference between|better than|which is)\b`)
	analyticalWords  = regexp.MustCompile(`(?i)\b(why|how does|analyze|explain the (reason|cause)|what causes)\b`)
	multiHopWords    = regexp.MustCompile(`(?i)\b(and then|after that|as a result|who .* that|which .* who)\b`)
)

// Classify inspects question and decides whether it needs chain-of-thought
// handling, and which kind. Comparative, analytical, and multi-hop keyword
// patterns are checked first; a question matching none of them is still
// classified multi-hop when NeedsReasoning reports it (more than 15 words,
// or joined by a connector: "and", "also", "additionally", "furthermore"),
// and simple otherwise.
func Classify(question string) QuestionKind {
	switch {
	case comparativeWords.MatchString(question):
		return KindComparative
	case analyticalWords.MatchString(question):
		return KindAnalytical
	case multiHopWords.MatchString(question):
		return KindMultiHop
	case NeedsReasoning(question):
		return KindMultiHop
	default:
		return KindSimple
	}
}

var connectorWords = []string{" and ", " also ", " additionally ", " furthermore "}

// NeedsReasoning is the module-wide heuristic for whether a question is
// complex enough to route through chain-of-thought at all: more than 15
// words, or joined by a connector word.
func NeedsReasoning(question string) bool {
	words := strings.Fields(question)
	if len(words) > 15 {
		return true
	}
	lower := " " + strings.ToLower(question) + " "
	for _, c := range connectorWords {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// Decomposer breaks a question into an ordered list of sub-questions. In
// production this is backed by an LLM call (see LLMDecomposer); tests can
// substitute a fixed decomposition.
type Decomposer interface {
	Decompose(ctx context.Context, question string, kind QuestionKind, maxDepth int) ([]string, error)
}

// StepExecutor answers one sub-question, optionally informed by the
// answers to previous steps.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, subQuestion string, previousAnswers []StepResult) (StepResult, error)
}

// Synthesizer combines per-step answers into one final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, steps []StepResult) (string, error)
}

// StepResult is one sub-question's answer and the confidence the executor
// assigned it.
type StepResult struct {
	SubQuestion string
	Answer      string
	Confidence  float64 // [0,1]
}

// Result is the outcome of a full chain-of-thought run.
type Result struct {
	Kind       QuestionKind
	Steps      []StepResult
	Answer     string
	Confidence float64 // min across Steps; 1.0 if no steps ran (single-shot fallback)
	Fallback   bool    // true if decomposition failed and a single-shot answer was used instead
}

// Engine runs the full classify -> decompose -> execute -> synthesize loop.
type Engine struct {
	decomposer  Decomposer
	executor    StepExecutor
	synthesizer Synthesizer
	maxDepth    int
}

func NewEngine(d Decomposer, e StepExecutor, s Synthesizer, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	return &Engine{decomposer: d, executor: e, synthesizer: s, maxDepth: maxDepth}
}

// Run executes chain-of-thought reasoning for question. Decomposition is
// attempted once; if it fails, Run falls back to a single-shot answer via
// the executor rather than retrying the decomposition call. Run itself
// retries nothing, and LLMDecomposer makes a single generation call per
// Decompose. On fallback, Result.Fallback is true and
// Result.Confidence is fixed at 1.0 since there's no per-step confidence to
// aggregate.
func (e *Engine) Run(ctx context.Context, question string) (Result, error) {
	kind := Classify(question)
	if kind == KindSimple {
		step, err := e.executor.ExecuteStep(ctx, question, nil)
		if err != nil {
			return Result{}, rerrors.Wrap(rerrors.KindInternal, "cot.Run", "single-shot execution failed", err)
		}
		return Result{Kind: kind, Steps: []StepResult{step}, Answer: step.Answer, Confidence: step.Confidence}, nil
	}

	subQuestions, err := e.decomposer.Decompose(ctx, question, kind, e.maxDepth)
	if err != nil || len(subQuestions) == 0 {
		step, execErr := e.executor.ExecuteStep(ctx, question, nil)
		if execErr != nil {
			return Result{}, rerrors.Wrap(rerrors.KindInternal, "cot.Run", "fallback single-shot execution failed", execErr)
		}
		return Result{Kind: kind, Steps: []StepResult{step}, Answer: step.Answer, Confidence: 1.0, Fallback: true}, nil
	}
	if len(subQuestions) > e.maxDepth {
		subQuestions = subQuestions[:e.maxDepth]
	}

	var steps []StepResult
	for _, sq := range subQuestions {
		result, err := e.executor.ExecuteStep(ctx, sq, steps)
		if err != nil {
			return Result{}, rerrors.Wrap(rerrors.KindInternal, "cot.Run", fmt.Sprintf("step %q failed", sq), err)
		}
		steps = append(steps, result)
	}

	answer, err := e.synthesizer.Synthesize(ctx, question, steps)
	if err != nil {
		return Result{}, rerrors.Wrap(rerrors.KindInternal, "cot.Run", "synthesis failed", err)
	}

	return Result{Kind: kind, Steps: steps, Answer: answer, Confidence: minConfidence(steps)}, nil
}

func minConfidence(steps []StepResult) float64 {
	if len(steps) == 0 {
		return 0
	}
	min := steps[0].Confidence
	for _, s := range steps[1:] {
		if s.Confidence < min {
			min = s.Confidence
		}
	}
	return min
}
