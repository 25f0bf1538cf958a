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
	"fmt"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/domain"
)

// summarize dispatches to one of the four summarization strategies and
// returns the summary text plus the metadata fields a ConversationSummary
// carries alongside it. None of the four strategies call out to an LLM here;
// they're deterministic, extractive compressions over the message set. A
// caller that wants an abstractive summary instead can pass the result of
// these through a generator of its own before persisting.
func summarize(strategy domain.SummaryStrategy, messages []domain.ConversationMessage) (text string, keyTopics, decisions, unresolved []string) {
	switch strategy {
	case domain.StrategyKeyPointsOnly:
		return summarizeKeyPointsOnly(messages)
	case domain.StrategyTopicBased:
		return summarizeTopicBased(messages)
	case domain.StrategyHierarchical:
		return summarizeHierarchical(messages)
	default:
		return summarizeRecentPlusSummary(messages)
	}
}

// summarizeRecentPlusSummary keeps the last few turns verbatim and
// compresses everything older into a single narrative paragraph.
func summarizeRecentPlusSummary(messages []domain.ConversationMessage) (string, []string, []string, []string) {
	const keepRecent = 3
	cut := len(messages) - keepRecent
	if cut < 0 {
		cut = 0
	}
	older, recent := messages[:cut], messages[cut:]

	var b strings.Builder
	if len(older) > 0 {
		b.WriteString("Earlier in the conversation: ")
		for _, m := range older {
			fmt.Fprintf(&b, "%s said %q. ", m.Role, truncateForSummary(m.Content))
		}
	}
	if len(recent) > 0 {
		b.WriteString("\nMost recent turns:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	return b.String(), extractKeyTopics(messages), extractDecisions(messages), extractUnresolved(messages)
}

// summarizeKeyPointsOnly drops conversational framing and keeps only the
// bullet-worthy substance: key topics, decisions, and unresolved questions.
func summarizeKeyPointsOnly(messages []domain.ConversationMessage) (string, []string, []string, []string) {
	topics := extractKeyTopics(messages)
	decisions := extractDecisions(messages)
	unresolved := extractUnresolved(messages)

	var b strings.Builder
	b.WriteString("Key points:\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "- topic: %s\n", t)
	}
	for _, d := range decisions {
		fmt.Fprintf(&b, "- decision: %s\n", d)
	}
	for _, u := range unresolved {
		fmt.Fprintf(&b, "- open question: %s\n", u)
	}
	return b.String(), topics, decisions, unresolved
}

// summarizeTopicBased groups messages under their inferred topic rather than
// preserving chronological order.
func summarizeTopicBased(messages []domain.ConversationMessage) (string, []string, []string, []string) {
	topics := extractKeyTopics(messages)
	grouped := make(map[string][]string)
	for _, m := range messages {
		topic := topicFor(m.Content, topics)
		grouped[topic] = append(grouped[topic], truncateForSummary(m.Content))
	}

	var b strings.Builder
	for _, topic := range topics {
		fmt.Fprintf(&b, "%s:\n", topic)
		for _, line := range grouped[topic] {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
	}
	return b.String(), topics, extractDecisions(messages), extractUnresolved(messages)
}

// summarizeHierarchical produces a two-level outline: a one-line synopsis of
// the whole conversation, followed by per-exchange detail.
func summarizeHierarchical(messages []domain.ConversationMessage) (string, []string, []string, []string) {
	topics := extractKeyTopics(messages)

	var b strings.Builder
	fmt.Fprintf(&b, "Overview: a %d-message conversation covering %s.\n", len(messages), strings.Join(topics, ", "))
	b.WriteString("Detail:\n")
	for i := 0; i+1 < len(messages); i += 2 {
		fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", truncateForSummary(messages[i].Content), truncateForSummary(messages[i+1].Content))
	}
	return b.String(), topics, extractDecisions(messages), extractUnresolved(messages)
}

func truncateForSummary(s string) string {
	const max = 160
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "of": true, "to": true, "in": true, "on": true, "for": true,
	"and": true, "or": true, "what": true, "how": true, "why": true, "do": true,
	"does": true, "did": true, "it": true, "this": true, "that": true, "with": true,
}

// extractKeyTopics picks up to five non-stopword terms of four or more
// letters that occur at least twice across user turns, in order of first
// appearance, as a stand-in for topic modeling. If no term repeats, the
// first five distinct terms are used instead.
func extractKeyTopics(messages []domain.ConversationMessage) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(m.Content)) {
			word = strings.Trim(word, ".,?!;:\"'")
			if len(word) < 4 || stopWords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}
	const maxTopics = 5
	var topics []string
	for _, w := range order {
		if counts[w] < 2 {
			continue
		}
		topics = append(topics, w)
		if len(topics) >= maxTopics {
			break
		}
	}
	if len(topics) == 0 && len(order) > 0 {
		topics = order[:min(maxTopics, len(order))]
	}
	return topics
}

func topicFor(content string, topics []string) string {
	lower := strings.ToLower(content)
	for _, t := range topics {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return "general"
}

var decisionMarkers = []string{"we'll", "we will", "let's", "decided to", "going with", "i'll use"}

func extractDecisions(messages []domain.ConversationMessage) []string {
	var out []string
	for _, m := range messages {
		lower := strings.ToLower(m.Content)
		for _, marker := range decisionMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, truncateForSummary(m.Content))
				break
			}
		}
	}
	return out
}

func extractUnresolved(messages []domain.ConversationMessage) []string {
	var out []string
	for i, m := range messages {
		if m.Role != domain.RoleUser || !strings.HasSuffix(strings.TrimSpace(m.Content), "?") {
			continue
		}
		if i+1 < len(messages) && messages[i+1].Role == domain.RoleAssistant {
			continue
		}
		out = append(out, truncateForSummary(m.Content))
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
