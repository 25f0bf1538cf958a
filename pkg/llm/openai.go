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
	"fmt"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// openAIProvider speaks the chat-completions wire protocol via the official
// SDK, covering both OpenAI itself and any OpenAI-compatible endpoint
// (self-hosted vLLM, Azure OpenAI) reachable through a custom BaseURL.
type openAIProvider struct {
	client openai.Client
	cfg    domain.LLMProvider
}

func newOpenAIProvider(cfg domain.LLMProvider) (Provider, error) {
	if cfg.Credential == "" {
		return nil, rerrors.ConfigurationMissing("llm.openai", "provider credential (API key) is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.Credential)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.OrgID != "" {
		opts = append(opts, option.WithOrganization(cfg.OrgID))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithProject(cfg.ProjectID))
	}
	return &openAIProvider{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (p *openAIProvider) Name() string { return "openai:" + p.cfg.Name }

func (p *openAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (GenerateResult, error) {
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(params.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(params.Temperature),
		TopP:        openai.Float(params.TopP),
	}
	if params.MaxNewTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(params.MaxNewTokens))
	}
	if len(params.StopSequences) > 0 {
		req.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: params.StopSequences}
	}

	resp, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return GenerateResult{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResult{}, rerrors.Provider(rerrors.ProviderMalformed, "llm.openai", "response contained no choices", nil)
	}

	return GenerateResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: shared.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	// The SDK surfaces HTTP failures as *openai.Error with a StatusCode; a
	// plain network error (no status) means the request never reached the
	// server, which we treat as a timeout for retry-policy purposes.
	var apiErr *openai.Error
	if ok := asOpenAIError(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401, 403:
			return rerrors.Provider(rerrors.ProviderAuth, "llm.openai", apiErr.Message, err)
		case 429:
			return rerrors.Provider(rerrors.ProviderRateLimited, "llm.openai", apiErr.Message, err)
		case 408, 504:
			return rerrors.Provider(rerrors.ProviderTimeout, "llm.openai", apiErr.Message, err)
		default:
			return rerrors.Provider(rerrors.ProviderUnavailable, "llm.openai", apiErr.Message, err)
		}
	}
	return rerrors.Provider(rerrors.ProviderTimeout, "llm.openai", "request failed before a response was received", err)
}

func asOpenAIError(err error, target **openai.Error) bool {
	apiErr, ok := err.(*openai.Error)
	if ok {
		*target = apiErr
	}
	return ok
}

func fmtUnsupported(op, name string) error {
	return fmt.Errorf("llm: %s does not support %s", name, op)
}
