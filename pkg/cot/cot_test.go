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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]QuestionKind{
		"What is the capital of France?":                                             KindSimple,
		"Compare the capital of France versus the capital of Germany":                KindComparative,
		"Why does the retrieval pipeline re-rank hits before generation?":             KindAnalytical,
		"Who is the author that wrote the book which the director who adapted it read": KindMultiHop,
		"Tell me about onboarding and also explain how billing works for new accounts": KindMultiHop,
	}
	for q, want := range cases {
		assert.Equal(t, want, Classify(q), q)
	}
}

func TestNeedsReasoning(t *testing.T) {
	assert.False(t, NeedsReasoning("What time is it?"))
	assert.True(t, NeedsReasoning("Please explain the onboarding flow and also describe how the billing cycle interacts with proration"))
}

type fixedDecomposer struct {
	subs []string
	err  error
}

func (f fixedDecomposer) Decompose(ctx context.Context, question string, kind QuestionKind, maxDepth int) ([]string, error) {
	return f.subs, f.err
}

type recordingExecutor struct {
	calls [][]StepResult
}

func (r *recordingExecutor) ExecuteStep(ctx context.Context, subQuestion string, previousAnswers []StepResult) (StepResult, error) {
	r.calls = append(r.calls, previousAnswers)
	return StepResult{SubQuestion: subQuestion, Answer: "answer to " + subQuestion, Confidence: 0.9}, nil
}

type fixedSynthesizer struct {
	answer string
}

func (f fixedSynthesizer) Synthesize(ctx context.Context, question string, steps []StepResult) (string, error) {
	return f.answer, nil
}

func TestEngineRunDecomposesAndThreadsAnswers(t *testing.T) {
	decomposer := fixedDecomposer{subs: []string{"sub one", "sub two", "sub three"}}
	executor := &recordingExecutor{}
	synth := fixedSynthesizer{answer: "final answer"}

	engine := NewEngine(decomposer, executor, synth, 5)
	result, err := engine.Run(context.Background(), "a sufficiently long question that also triggers decomposition because it is long")
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.Answer)
	assert.Len(t, result.Steps, 3)
	assert.False(t, result.Fallback)

	require.Len(t, executor.calls, 3)
	assert.Empty(t, executor.calls[0])
	assert.Len(t, executor.calls[1], 1)
	assert.Len(t, executor.calls[2], 2)
}

func TestEngineRunRespectsMaxDepth(t *testing.T) {
	decomposer := fixedDecomposer{subs: []string{"a", "b", "c", "d", "e"}}
	executor := &recordingExecutor{}
	synth := fixedSynthesizer{answer: "final"}

	engine := NewEngine(decomposer, executor, synth, 2)
	result, err := engine.Run(context.Background(), "a sufficiently long question that also triggers decomposition because it is long")
	require.NoError(t, err)
	assert.Len(t, result.Steps, 2)
}

func TestEngineRunFallsBackOnDecompositionFailure(t *testing.T) {
	decomposer := fixedDecomposer{err: errors.New("boom")}
	executor := &recordingExecutor{}
	synth := fixedSynthesizer{answer: "unused"}

	engine := NewEngine(decomposer, executor, synth, 5)
	result, err := engine.Run(context.Background(), "a sufficiently long question that also triggers decomposition because it is long")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, 1.0, result.Confidence)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Answer, "answer to")
}

func TestEngineRunSimpleQuestionSkipsDecomposition(t *testing.T) {
	decomposer := fixedDecomposer{subs: []string{"should not be used"}}
	executor := &recordingExecutor{}
	synth := fixedSynthesizer{answer: "unused"}

	engine := NewEngine(decomposer, executor, synth, 5)
	result, err := engine.Run(context.Background(), "What time is it?")
	require.NoError(t, err)

	assert.Equal(t, KindSimple, result.Kind)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestMinConfidence(t *testing.T) {
	steps := []StepResult{{Confidence: 0.9}, {Confidence: 0.4}, {Confidence: 0.7}}
	assert.Equal(t, 0.4, minConfidence(steps))
	assert.Equal(t, 0.0, minConfidence(nil))
}

func TestSplitConfidence(t *testing.T) {
	answer, conf := splitConfidence("The answer is 42.\nConfidence: 0.85")
	assert.Equal(t, "The answer is 42.", answer)
	assert.InDelta(t, 0.85, conf, 0.001)

	answer, conf = splitConfidence("No confidence line here")
	assert.Equal(t, "No confidence line here", answer)
	assert.Equal(t, 0.5, conf)
}
