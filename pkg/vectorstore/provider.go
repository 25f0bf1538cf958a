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

// Package vectorstore defines the narrow contract every embedding backend
// implements: ensure a collection exists, upsert vectors with content and
// metadata, search by nearest neighbor, and delete by ID.
package vectorstore

import (
	"context"
	"sort"
)

// Record is one vector to be indexed.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Hit is one retrieved nearest neighbor. Score is cosine similarity in
// [-1, 1] for providers that support it; some wire protocols expose a
// different similarity measure, in which case the provider documents the
// deviation on its Name().
type Hit struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
	Vector   []float32
}

// Provider is the contract every vector-store adapter satisfies. It is
// intentionally small: strategies needing filters, namespaces, or
// multi-vector documents express them through Metadata rather than growing
// this interface.
type Provider interface {
	Name() string

	// EnsureCollection creates collection with the given vector dimension if
	// it doesn't already exist. Implementations must be idempotent.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Upsert adds or overwrites records by ID. It must call EnsureCollection
	// itself if the backend requires a pre-existing collection and the
	// caller hasn't already created one — qdrant does this implicitly using
	// the first record's vector length.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns at most topK hits ordered by descending score, with a
	// lexicographic ID tie-break for equal scores. filter is an optional set
	// of exact-match metadata constraints; nil means unfiltered.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error)

	Delete(ctx context.Context, collection string, ids []string) error
}

// SortHits orders hits by descending score, breaking ties on ID so repeated
// searches over unchanged data are deterministic across backends that don't
// guarantee a stable order themselves.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
