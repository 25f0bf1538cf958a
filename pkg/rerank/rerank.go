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

// Package rerank reorders retrieval hits by query relevance, replacing
// their vector-similarity scores with relevance-ranked scores.
//
// A reranker's output score is NOT comparable to the score a retriever
// produced: vector similarity measures embedding-space distance, while a
// reranker score measures the rank position an LLM (or cross-encoder)
// assigned the hit for this specific query. Callers must not mix scores
// from before and after reranking in the same sort.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// Generator produces text completions, satisfied by the LLM provider
// registry's generation client.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Reranker reorders hits by relevance to query, returning at most topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []vectorstore.Hit, topK int) ([]vectorstore.Hit, error)
}

const systemPrompt = `You are a search result reranking system. Score and rank search results by relevance to a query. Reply with only a JSON array of result IDs ordered most-relevant first, e.g. ["id3","id1","id2"].`

// LLMReranker asks a Generator to order candidate hits and maps that order
// back onto descending scores (1.0, 0.95, ... floored at 0.1); hits the
// model did not mention follow in retrieval order with their original scores.
type LLMReranker struct {
	gen        Generator
	maxCandidates int
}

// NewLLMReranker builds a reranker that sends at most maxCandidates hits to
// the model per call (0 selects a default of 20).
func NewLLMReranker(gen Generator, maxCandidates int) *LLMReranker {
	if maxCandidates <= 0 {
		maxCandidates = 20
	}
	return &LLMReranker{gen: gen, maxCandidates: maxCandidates}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, hits []vectorstore.Hit, topK int) ([]vectorstore.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	candidates := hits
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}

	prompt := buildPrompt(query, candidates)
	response, err := r.gen.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return topN(hits, topK), rerrors.Wrap(rerrors.KindProvider, "rerank.LLMReranker", "rerank call failed, falling back to retrieval order", err)
	}

	order, err := parseOrder(response)
	if err != nil || len(order) == 0 {
		return topN(hits, topK), nil
	}

	byID := make(map[string]vectorstore.Hit, len(candidates))
	for _, h := range candidates {
		byID[h.ID] = h
	}

	reranked := make([]vectorstore.Hit, 0, len(order))
	seen := make(map[string]bool, len(order))
	for i, id := range order {
		h, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		score := 1.0 - float32(i)*0.05
		if score < 0.1 {
			score = 0.1
		}
		h.Score = score
		reranked = append(reranked, h)
	}
	// Hits the model didn't mention keep their place at the tail, in
	// original retrieval order, rather than being dropped silently.
	for _, h := range candidates {
		if !seen[h.ID] {
			reranked = append(reranked, h)
		}
	}

	return topN(reranked, topK), nil
}

func topN(hits []vectorstore.Hit, topK int) []vectorstore.Hit {
	if topK <= 0 || topK >= len(hits) {
		return hits
	}
	return hits[:topK]
}

func buildPrompt(query string, hits []vectorstore.Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nCandidates:\n", query)
	for _, h := range hits {
		content := h.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		fmt.Fprintf(&b, "- id=%s: %s\n", h.ID, content)
	}
	return b.String()
}

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

func parseOrder(response string) ([]string, error) {
	match := jsonArray.FindString(response)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found in rerank response")
	}
	var ids []string
	if err := json.Unmarshal([]byte(match), &ids); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	return ids, nil
}
