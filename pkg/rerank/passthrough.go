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

package rerank

import (
	"context"

	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// Passthrough implements Reranker without reordering: it only truncates
// hits to topK, preserving the retriever's own ranking. Pipelines that
// don't configure a reranker (or that disable reranking via
// skip_reranking) can use this instead of a nil Reranker wherever the
// caller wants every pipeline to hold a concrete Reranker value.
type Passthrough struct{}

func (Passthrough) Rerank(ctx context.Context, query string, hits []vectorstore.Hit, topK int) ([]vectorstore.Hit, error) {
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

var _ Reranker = Passthrough{}
