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

// Package pipeline runs a search request through an ordered sequence of
// stages — query enhancement, retrieval, reranking, reasoning, generation,
// evaluation — each reading from and writing into a shared Context, with the
// executor short-circuiting on the first stage that fails.
package pipeline

import (
	"time"

	"github.com/kadirpekel/ragcore/pkg/cot"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/vectorstore"
)

// Context carries one search request's state through every stage. Stages
// mutate it in place rather than threading a growing return type through the
// executor.
type Context struct {
	// Request inputs, fixed for the run.
	Question     string
	Collection   domain.Collection
	PipelineCfg  domain.PipelineConfig
	UserID       string
	ConfigMeta   map[string]any

	// Populated by QueryEnhancement.
	RewrittenQuery string

	// Populated by Retrieval and possibly reordered by Reranking.
	QueryResults []vectorstore.Hit

	// Populated by Reasoning, only when chain-of-thought ran.
	CoTUsed   bool
	CoTOutput *cot.Result

	// Populated by Generation.
	Answer       string
	InputTokens  int
	OutputTokens int

	// Populated by Evaluation.
	Evaluation map[string]float64

	// StageDurations records each stage's wall time by name, in run order.
	StageDurations map[string]time.Duration
}

// NewContext builds a Context for one search request.
func NewContext(question string, col domain.Collection, cfg domain.PipelineConfig, userID string) *Context {
	meta := cfg.ConfigMetadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &Context{
		Question:       question,
		Collection:     col,
		PipelineCfg:    cfg,
		UserID:         userID,
		ConfigMeta:     meta,
		Evaluation:     map[string]float64{},
		StageDurations: map[string]time.Duration{},
	}
}
