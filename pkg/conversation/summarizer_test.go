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

package conversation

import (
	"testing"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func sampleMessages() []domain.ConversationMessage {
	return []domain.ConversationMessage{
		{Role: domain.RoleUser, Content: "What pricing plans do you offer for enterprise customers?"},
		{Role: domain.RoleAssistant, Content: "We offer three enterprise pricing plans."},
		{Role: domain.RoleUser, Content: "Let's go with the pricing plan that includes support."},
		{Role: domain.RoleAssistant, Content: "Good choice, that plan includes 24/7 support."},
		{Role: domain.RoleUser, Content: "What about onboarding timelines?"},
	}
}

func TestSummarizeRecentPlusSummaryIncludesRecentVerbatim(t *testing.T) {
	text, _, _, _ := summarize(domain.StrategyRecentPlusSummary, sampleMessages())
	assert.Contains(t, text, "Most recent turns")
}

func TestSummarizeKeyPointsOnlyExtractsDecisionsAndTopics(t *testing.T) {
	text, topics, decisions, _ := summarize(domain.StrategyKeyPointsOnly, sampleMessages())
	assert.Contains(t, text, "Key points")
	assert.NotEmpty(t, topics)
	assert.NotEmpty(t, decisions)
}

func TestSummarizeTopicBasedGroupsByTopic(t *testing.T) {
	text, topics, _, _ := summarize(domain.StrategyTopicBased, sampleMessages())
	assert.NotEmpty(t, topics)
	assert.NotEmpty(t, text)
}

func TestSummarizeHierarchicalProducesOverviewAndDetail(t *testing.T) {
	text, _, _, _ := summarize(domain.StrategyHierarchical, sampleMessages())
	assert.Contains(t, text, "Overview")
	assert.Contains(t, text, "Detail")
}

func TestExtractUnresolvedSkipsAnsweredQuestions(t *testing.T) {
	unresolved := extractUnresolved(sampleMessages())
	assert.Len(t, unresolved, 1)
	assert.Contains(t, unresolved[0], "onboarding")
}

func TestExtractDecisionsFindsDecisionMarkers(t *testing.T) {
	decisions := extractDecisions(sampleMessages())
	assert.NotEmpty(t, decisions)
}
