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

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

type searchRequest struct {
	Question       string         `json:"question"`
	CollectionID   uuid.UUID      `json:"collection_id"`
	UserID         uuid.UUID      `json:"user_id"`
	ConfigMetadata map[string]any `json:"config_metadata,omitempty"`
}

type documentRef struct {
	DocumentName string         `json:"document_name"`
	Title        string         `json:"title,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type queryResult struct {
	ChunkID    string    `json:"chunk_id"`
	Text       string    `json:"text"`
	Score      float32   `json:"score"`
	Embeddings []float32 `json:"embeddings,omitempty"`
}

type searchResponse struct {
	Answer         string             `json:"answer"`
	Documents      []documentRef      `json:"documents"`
	QueryResults   []queryResult      `json:"query_results"`
	RewrittenQuery string             `json:"rewritten_query,omitempty"`
	Evaluation     map[string]float64 `json:"evaluation,omitempty"`
	Metadata       searchMetadata     `json:"metadata"`
}

type searchMetadata struct {
	CoTUsed           bool   `json:"cot_used"`
	ReasoningStrategy string `json:"reasoning_strategy,omitempty"`
	InputTokens       int    `json:"input_tokens"`
	OutputTokens      int    `json:"output_tokens"`
	ExecutionTimeMS   int64  `json:"execution_time_ms"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}

	out, err := h.deps.Service.Search(r.Context(), ragcore.Input{
		Question:       req.Question,
		CollectionID:   req.CollectionID,
		UserID:         req.UserID,
		ConfigMetadata: req.ConfigMetadata,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeSearchResponse(out))
}

func shapeSearchResponse(out ragcore.Output) searchResponse {
	resp := searchResponse{
		Answer:         out.Answer,
		RewrittenQuery: out.RewrittenQuery,
		Evaluation:     out.Evaluation,
		Metadata: searchMetadata{
			CoTUsed:           out.Metadata.CoTUsed,
			ReasoningStrategy: out.Metadata.ReasoningStrategy,
			InputTokens:       out.Metadata.TokenUsage.InputTokens,
			OutputTokens:      out.Metadata.TokenUsage.OutputTokens,
			ExecutionTimeMS:   out.Metadata.ExecutionTime.Milliseconds(),
		},
	}
	for _, d := range out.Documents {
		resp.Documents = append(resp.Documents, documentRef{DocumentName: d.DocumentName, Title: d.Title, Metadata: d.Metadata})
	}
	for _, q := range out.QueryResults {
		resp.QueryResults = append(resp.QueryResults, queryResult{ChunkID: q.ChunkID, Text: q.Text, Score: q.Score, Embeddings: q.Embeddings})
	}
	return resp
}
