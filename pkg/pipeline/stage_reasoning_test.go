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

	"github.com/kadirpekel/ragcore/pkg/cot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCoTDecomposer struct{ subs []string }

func (f fixedCoTDecomposer) Decompose(ctx context.Context, question string, kind cot.QuestionKind, maxDepth int) ([]string, error) {
	return f.subs, nil
}

type fixedCoTExecutor struct{}

func (fixedCoTExecutor) ExecuteStep(ctx context.Context, subQuestion string, previous []cot.StepResult) (cot.StepResult, error) {
	return cot.StepResult{SubQuestion: subQuestion, Answer: "a", Confidence: 0.8}, nil
}

type fixedCoTSynthesizer struct{}

func (fixedCoTSynthesizer) Synthesize(ctx context.Context, question string, steps []cot.StepResult) (string, error) {
	return "synthesized", nil
}

func TestReasoningStageSkipByHeuristic(t *testing.T) {
	stage := NewReasoningStage(cot.NewEngine(fixedCoTDecomposer{}, fixedCoTExecutor{}, fixedCoTSynthesizer{}, 3))

	pc := newTestContext()
	pc.Question = "short question"
	assert.True(t, stage.Skip(pc))

	pc.Question = "please explain the onboarding flow and also describe how billing proration works for new accounts"
	assert.False(t, stage.Skip(pc))
}

func TestReasoningStageRespectsExplicitOverride(t *testing.T) {
	stage := NewReasoningStage(cot.NewEngine(fixedCoTDecomposer{}, fixedCoTExecutor{}, fixedCoTSynthesizer{}, 3))

	pc := newTestContext()
	pc.Question = "short"
	pc.ConfigMeta["cot_enabled"] = true
	assert.False(t, stage.Skip(pc))

	pc.Question = "please explain the onboarding flow and also describe how billing proration works for new accounts"
	pc.ConfigMeta["cot_enabled"] = false
	assert.True(t, stage.Skip(pc))
}

func TestReasoningStageExecute(t *testing.T) {
	stage := NewReasoningStage(cot.NewEngine(fixedCoTDecomposer{subs: []string{"sub1"}}, fixedCoTExecutor{}, fixedCoTSynthesizer{}, 3))

	pc := newTestContext()
	pc.Question = "please explain the onboarding flow and also describe how billing proration works for new accounts"
	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.True(t, pc.CoTUsed)
	require.NotNil(t, pc.CoTOutput)
	assert.Equal(t, "synthesized", pc.CoTOutput.Answer)
}
