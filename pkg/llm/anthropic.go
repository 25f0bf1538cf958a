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

package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// anthropicProvider speaks Anthropic's Messages API. It never implements
// Embed: Anthropic doesn't offer an embeddings endpoint, so a
// PipelineConfig that names an anthropic provider for its embedding model
// is a configuration error caught at pipeline-build time, not here.
type anthropicProvider struct {
	client anthropic.Client
	cfg    domain.LLMProvider
}

func newAnthropicProvider(cfg domain.LLMProvider) (Provider, error) {
	if cfg.Credential == "" {
		return nil, rerrors.ConfigurationMissing("llm.anthropic", "provider credential (API key) is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.Credential)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic:" + p.cfg.Name }

func (p *anthropicProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (GenerateResult, error) {
	maxTokens := int64(params.MaxNewTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Temperature: anthropic.Float(params.Temperature),
		TopP:        anthropic.Float(params.TopP),
	}
	if params.TopK > 0 {
		req.TopK = anthropic.Int(int64(params.TopK))
	}
	if len(params.StopSequences) > 0 {
		req.StopSequences = params.StopSequences
	}

	resp, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return GenerateResult{}, classifyAnthropicError(err)
	}
	if len(resp.Content) == 0 {
		return GenerateResult{}, rerrors.Provider(rerrors.ProviderMalformed, "llm.anthropic", "response contained no content blocks", nil)
	}

	var text string
	for _, block := range resp.Content {
		if tb := block.AsText(); tb.Text != "" {
			text += tb.Text
		}
	}

	return GenerateResult{
		Text:         text,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (p *anthropicProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, rerrors.ConfigurationMissing("llm.anthropic", fmtUnsupported("embeddings", p.Name()).Error())
}

func classifyAnthropicError(err error) error {
	apiErr, _ := err.(*anthropic.Error)
	if apiErr != nil {
		switch apiErr.StatusCode {
		case 401, 403:
			return rerrors.Provider(rerrors.ProviderAuth, "llm.anthropic", apiErr.Message, err)
		case 429:
			return rerrors.Provider(rerrors.ProviderRateLimited, "llm.anthropic", apiErr.Message, err)
		case 408, 504:
			return rerrors.Provider(rerrors.ProviderTimeout, "llm.anthropic", apiErr.Message, err)
		default:
			return rerrors.Provider(rerrors.ProviderUnavailable, "llm.anthropic", apiErr.Message, err)
		}
	}
	return rerrors.Provider(rerrors.ProviderTimeout, "llm.anthropic", "request failed before a response was received", err)
}
