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

package pipeline

import (
	"context"

	"github.com/kadirpekel/ragcore/pkg/cot"
)

// ReasoningStage runs chain-of-thought decomposition when the question
// looks complex enough to need it, unless the caller has explicitly forced
// it on or off via config_metadata["cot_enabled"].
type ReasoningStage struct {
	engine *cot.Engine
}

func NewReasoningStage(engine *cot.Engine) *ReasoningStage {
	return &ReasoningStage{engine: engine}
}

func (s *ReasoningStage) Name() string { return "Reasoning" }

func (s *ReasoningStage) Skip(pc *Context) bool {
	if forced, ok := pc.ConfigMeta["cot_enabled"].(bool); ok {
		return !forced
	}
	return !cot.NeedsReasoning(pc.Question)
}

func (s *ReasoningStage) Execute(ctx context.Context, pc *Context) StageResult {
	result, err := s.engine.Run(ctx, pc.Question)
	if err != nil {
		return fail(err)
	}
	pc.CoTUsed = true
	pc.CoTOutput = &result
	return ok()
}
