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

// Package embed batches embedding calls against an llm.Provider, fanning
// batches out up to a caller-supplied concurrency limit. This is one of the
// two places parallelism is allowed to cross a single logical request — the
// other is within-step hybrid retrieval fan-out in pkg/search.
package embed

import (
	"context"
	"fmt"

	"github.com/kadirpekel/ragcore/pkg/concurrent"
)

// Generator embeds text. Satisfied by an llm.Provider.
type Generator interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type batch struct {
	id    string
	texts []string
}

func (b batch) TargetID() string { return b.id }

// Batch embeds texts in groups of batchSize, running up to concurrencyLimit
// groups at once, and returns vectors in the same order as texts. If any
// batch fails, Batch returns the first error encountered; partial results
// from other batches are discarded since a caller can't safely use a
// vector set with a hole in it.
func Batch(ctx context.Context, gen Generator, model string, texts []string, batchSize, concurrencyLimit int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	groups := concurrent.Batches(texts, batchSize)
	targets := make([]batch, len(groups))
	for i, g := range groups {
		targets[i] = batch{id: fmt.Sprintf("batch-%d", i), texts: g}
	}

	results := concurrent.Run(ctx, targets, concurrencyLimit, func(ctx context.Context, b batch) ([][]float32, error) {
		return gen.Embed(ctx, model, b.texts)
	})

	out := make([][]float32, 0, len(texts))
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("embed %s: %w", r.TargetID, r.Err)
		}
		out = append(out, r.Value...)
	}
	return out, nil
}
