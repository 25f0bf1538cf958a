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
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/llm"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate() *domain.PromptTemplate {
	return &domain.PromptTemplate{
		SystemPrompt:   "You are helpful.",
		TemplateFormat: "Context:\n{context}\n\nQuestion: {question}",
		InputVariables: map[string]domain.VariableSpec{
			"context":  {},
			"question": {MinLength: 1},
		},
	}
}

func TestGenerationStageRendersAndCallsProvider(t *testing.T) {
	stage := NewGenerationStage(fakeProvider{text: "the answer"}, testTemplate(), llm.GenerateParams{Model: "m"})

	pc := newTestContext()
	pc.Question = "what is x"
	pc.QueryResults = []vectorstore.Hit{{Content: "x is y"}}

	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, "the answer", pc.Answer)
}

func TestGenerationStageIncludesReasoningWhenPresent(t *testing.T) {
	stage := NewGenerationStage(fakeProvider{text: "final"}, testTemplate(), llm.GenerateParams{Model: "m"})

	pc := newTestContext()
	pc.Question = "what is x"
	pc.CoTOutput = &cot.Result{Answer: "reasoned answer"}

	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, "final", pc.Answer)
}

func TestGenerationStagePropagatesRenderErrors(t *testing.T) {
	tmpl := &domain.PromptTemplate{
		TemplateFormat: "{question}",
		InputVariables: map[string]domain.VariableSpec{"question": {MinLength: 100}},
	}
	stage := NewGenerationStage(fakeProvider{text: "unused"}, tmpl, llm.GenerateParams{Model: "m"})

	pc := newTestContext()
	pc.Question = "short"
	result := stage.Execute(context.Background(), pc)
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}
