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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/httpclient"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// watsonxProvider speaks IBM watsonx.ai's REST text-generation API, which has
// no official Go SDK in this module's dependency set. It reuses the
// project's shared retrying HTTP client rather than hand-rolling another one.
type watsonxProvider struct {
	http      *httpclient.Client
	baseURL   string
	projectID string
	apiKey    string
}

const watsonxDefaultBaseURL = "https://us-south.ml.cloud.ibm.com"

func newWatsonxProvider(cfg domain.LLMProvider) (Provider, error) {
	if cfg.Credential == "" {
		return nil, rerrors.ConfigurationMissing("llm.watsonx", "provider credential (API key) is required")
	}
	if cfg.ProjectID == "" {
		return nil, rerrors.ConfigurationMissing("llm.watsonx", "project_id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = watsonxDefaultBaseURL
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		httpclient.WithMaxRetries(3),
		httpclient.WithBaseDelay(2*time.Second),
	)

	return &watsonxProvider{http: client, baseURL: baseURL, projectID: cfg.ProjectID, apiKey: cfg.Credential}, nil
}

func (p *watsonxProvider) Name() string { return "watsonx" }

type watsonxGenerateRequest struct {
	ModelID   string                 `json:"model_id"`
	Input     string                 `json:"input"`
	ProjectID string                 `json:"project_id"`
	Parameters map[string]any        `json:"parameters"`
}

type watsonxGenerateResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
		InputTokens   int    `json:"input_token_count"`
		OutputTokens  int    `json:"generated_token_count"`
	} `json:"results"`
}

func (p *watsonxProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (GenerateResult, error) {
	body := watsonxGenerateRequest{
		ModelID:   params.Model,
		Input:     systemPrompt + "\n\n" + userPrompt,
		ProjectID: p.projectID,
		Parameters: map[string]any{
			"max_new_tokens": params.MaxNewTokens,
			"temperature":    params.Temperature,
			"top_p":          params.TopP,
			"top_k":          params.TopK,
		},
	}
	if len(params.StopSequences) > 0 {
		body.Parameters["stop_sequences"] = params.StopSequences
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return GenerateResult{}, rerrors.Internal("llm.watsonx", "marshal request", err)
	}

	url := p.baseURL + "/ml/v1/text/generation?version=2024-05-31"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return GenerateResult{}, rerrors.Internal("llm.watsonx", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return GenerateResult{}, classifyWatsonxError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, rerrors.Internal("llm.watsonx", "read response", err)
	}
	if resp.StatusCode >= 400 {
		return GenerateResult{}, statusToProviderError(resp.StatusCode, string(respBody))
	}

	var parsed watsonxGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return GenerateResult{}, rerrors.Provider(rerrors.ProviderMalformed, "llm.watsonx", "could not parse response JSON", err)
	}
	if len(parsed.Results) == 0 {
		return GenerateResult{}, rerrors.Provider(rerrors.ProviderMalformed, "llm.watsonx", "response contained no results", nil)
	}

	r := parsed.Results[0]
	return GenerateResult{Text: r.GeneratedText, InputTokens: r.InputTokens, OutputTokens: r.OutputTokens}, nil
}

func (p *watsonxProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := struct {
		ModelID   string   `json:"model_id"`
		ProjectID string   `json:"project_id"`
		Inputs    []string `json:"inputs"`
	}{ModelID: model, ProjectID: p.projectID, Inputs: texts}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, rerrors.Internal("llm.watsonx", "marshal embed request", err)
	}

	url := p.baseURL + "/ml/v1/text/embeddings?version=2024-05-31"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, rerrors.Internal("llm.watsonx", "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, classifyWatsonxError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rerrors.Internal("llm.watsonx", "read embed response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusToProviderError(resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Results []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, rerrors.Provider(rerrors.ProviderMalformed, "llm.watsonx", "could not parse embed response JSON", err)
	}

	out := make([][]float32, len(parsed.Results))
	for i, r := range parsed.Results {
		out[i] = r.Embedding
	}
	return out, nil
}

func classifyWatsonxError(err error) error {
	if re, ok := err.(*httpclient.RetryableError); ok {
		return statusToProviderError(re.StatusCode, re.Message)
	}
	return rerrors.Provider(rerrors.ProviderTimeout, "llm.watsonx", "request failed before a response was received", err)
}

func statusToProviderError(status int, message string) error {
	switch status {
	case 401, 403:
		return rerrors.Provider(rerrors.ProviderAuth, "llm.watsonx", message, nil)
	case 429:
		return rerrors.Provider(rerrors.ProviderRateLimited, "llm.watsonx", message, nil)
	case 408, 504:
		return rerrors.Provider(rerrors.ProviderTimeout, "llm.watsonx", message, nil)
	default:
		return rerrors.Provider(rerrors.ProviderUnavailable, "llm.watsonx", fmt.Sprintf("HTTP %d: %s", status, message), nil)
	}
}
