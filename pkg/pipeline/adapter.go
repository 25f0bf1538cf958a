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

	"github.com/kadirpekel/ragcore/pkg/llm"
)

// modelGenerator narrows an llm.Provider bound to one model down to the
// single-string-in-single-string-out Generate signature that pkg/rewrite
// and pkg/rerank depend on, so those packages don't need to know about
// GenerateParams or token accounting.
type modelGenerator struct {
	provider llm.Provider
	model    string
}

func (g modelGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := g.provider.Generate(ctx, systemPrompt, userPrompt, llm.GenerateParams{Model: g.model, Temperature: 0})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// queryEmbedder adapts an llm.Provider bound to one embedding model down to
// the single-query EmbedQuery signature pkg/search depends on.
type queryEmbedder struct {
	provider llm.Provider
	model    string
}

func (e queryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.provider.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}
