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

// Package llm wraps the three wire-protocol families this module speaks to
// vendors with — chat-completions style (OpenAI), Anthropic's Messages API,
// and IBM watsonx's REST API — behind one Provider interface, and caches one
// client per configured provider name in a Registry.
package llm

import (
	"context"

	"github.com/kadirpekel/ragcore/pkg/domain"
)

// GenerateParams carries the resolved generation parameters for one call.
// Resolution (pipeline override -> Settings -> default) happens in
// pkg/settings before a Provider ever sees this struct.
type GenerateParams struct {
	Model             string
	MaxNewTokens      int
	Temperature       float64
	TopK              int
	TopP              float64
	RepetitionPenalty *float64
	StopSequences     []string
}

// FromLLMParameters copies the tunable fields of a domain.LLMParameters into
// a GenerateParams, leaving Model/StopSequences for the caller to fill in.
func FromLLMParameters(p domain.LLMParameters) GenerateParams {
	return GenerateParams{
		MaxNewTokens:      p.MaxNewTokens,
		Temperature:       p.Temperature,
		TopK:              p.TopK,
		TopP:              p.TopP,
		RepetitionPenalty: p.RepetitionPenalty,
	}
}

// GenerateResult is one completion.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is one configured vendor endpoint: a single LLMProvider row bound
// to credentials, capable of both generation and embedding calls. Not every
// provider supports both — an embedding-only deployment returns
// rerrors.KindConfigurationMissing from Generate, and vice versa.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (GenerateResult, error)
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}
