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
	"testing"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEnhancementStagePassesThroughUnambiguousQuestion(t *testing.T) {
	stage := NewQueryEnhancementStage(fakeProvider{text: "should not be used"}, "m", nil)

	pc := newTestContext()
	pc.Question = "What is the refund policy?"
	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, "What is the refund policy?", pc.RewrittenQuery)
}

func TestQueryEnhancementStageRewritesAmbiguousFollowUp(t *testing.T) {
	history := []domain.ConversationMessage{{Role: domain.RoleUser, Content: "What is the refund policy?"}}
	stage := NewQueryEnhancementStage(fakeProvider{text: "What is the refund policy for annual plans?"}, "m", history)

	pc := newTestContext()
	pc.Question = "What about annual plans?"
	result := stage.Execute(context.Background(), pc)
	require.True(t, result.Success)
	assert.Equal(t, "What is the refund policy for annual plans?", pc.RewrittenQuery)
}
