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

// Package search implements the retrieval half of a pipeline run: vector,
// keyword, and hybrid retrieval over a Collection's vector store, fanning
// vector and keyword legs out in parallel only within a single retrieval
// call — never across Chain-of-Thought steps, which stay sequential.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/concurrent"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// Embedder embeds a single query string into the collection's vector space.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine retrieves candidate passages for one query against one collection.
type Engine struct {
	store    vectorstore.Provider
	embedder Embedder
}

func NewEngine(store vectorstore.Provider, embedder Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// leg identifies one retrieval strategy for the fan-out helper.
type leg string

func (l leg) TargetID() string { return string(l) }

const (
	legVector  leg = "vector"
	legKeyword leg = "keyword"
)

// Retrieve runs collection's configured RetrieverKind and returns at most
// topK hits ordered by descending score.
func (e *Engine) Retrieve(ctx context.Context, col domain.Collection, kind domain.RetrieverKind, query string, topK int) ([]vectorstore.Hit, error) {
	switch kind {
	case domain.RetrieverVector:
		return e.vectorSearch(ctx, col, query, topK)
	case domain.RetrieverKeyword:
		return e.keywordSearch(ctx, col, query, topK)
	case domain.RetrieverHybrid:
		return e.hybridSearch(ctx, col, query, topK)
	default:
		return nil, rerrors.Validation("search.Retrieve", "unknown retriever kind: "+string(kind))
	}
}

func (e *Engine) vectorSearch(ctx context.Context, col domain.Collection, query string, topK int) ([]vectorstore.Hit, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindProvider, "search.vectorSearch", "embed query", err)
	}
	hits, err := e.store.Search(ctx, col.VectorHandle, vec, topK, nil)
	if err != nil {
		return nil, rerrors.VectorStore("search.vectorSearch", "vector search failed", err)
	}
	return hits, nil
}

// keywordSearch does a lightweight term-overlap scan over the collection's
// indexed content. It's not full BM25 — this module carries no dedicated
// keyword/full-text engine — but it gives the hybrid leg a genuinely
// different signal than embedding similarity, which is the point.
func (e *Engine) keywordSearch(ctx context.Context, col domain.Collection, query string, topK int) ([]vectorstore.Hit, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindProvider, "search.keywordSearch", "embed query", err)
	}
	// Over-fetch by vector similarity, then re-score by term overlap so the
	// keyword leg doesn't require a second index.
	candidates, err := e.store.Search(ctx, col.VectorHandle, vec, topK*4, nil)
	if err != nil {
		return nil, rerrors.VectorStore("search.keywordSearch", "candidate search failed", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	for i := range candidates {
		candidates[i].Score = termOverlapScore(terms, candidates[i].Content)
	}
	vectorstore.SortHits(candidates)
	if topK > 0 && topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func termOverlapScore(terms []string, content string) float32 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matches++
		}
	}
	return float32(matches) / float32(len(terms))
}

// hybridSearch runs the vector and keyword legs concurrently (bounded
// parallelism within this single call, per the module's concurrency model)
// and merges by summing each hit's raw scores across the legs it appeared
// in (vector similarity plus keyword term-overlap fraction, neither
// normalized).
func (e *Engine) hybridSearch(ctx context.Context, col domain.Collection, query string, topK int) ([]vectorstore.Hit, error) {
	legs := []leg{legVector, legKeyword}
	results := concurrent.Run(ctx, legs, 2, func(ctx context.Context, l leg) ([]vectorstore.Hit, error) {
		if l == legVector {
			return e.vectorSearch(ctx, col, query, topK*2)
		}
		return e.keywordSearch(ctx, col, query, topK*2)
	})

	merged := make(map[string]vectorstore.Hit)
	scores := make(map[string]float32)
	for _, r := range results {
		if r.Err != nil {
			return nil, rerrors.VectorStore("search.hybridSearch", "leg "+r.TargetID+" failed", r.Err)
		}
		for _, h := range r.Value {
			merged[h.ID] = h
			scores[h.ID] += h.Score
		}
	}

	hits := make([]vectorstore.Hit, 0, len(merged))
	for id, h := range merged {
		h.Score = scores[id]
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
