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

// Package rewrite resolves ambiguous follow-up questions into standalone
// queries before retrieval, using recent conversation turns as context.
package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/domain"
)

// Generator produces text completions. It's satisfied by the LLM provider
// registry's generation client; kept as a narrow local interface so this
// package doesn't import pkg/llm.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	pronounStart = regexp.MustCompile(`(?i)^(it|this|that|they|them|these|those|he|she)\b`)
	continuation = regexp.MustCompile(`(?i)^(also|additionally|furthermore|what about|and )\b`)
	temporal     = regexp.MustCompile(`(?i)\b(earlier|before|previously|last time|you (said|mentioned))\b`)
)

// IsAmbiguous reports whether question likely depends on prior conversation
// turns to resolve: it opens on a bare pronoun, opens as a continuation of a
// prior thought, or refers back in time to something already discussed.
func IsAmbiguous(question string) bool {
	q := strings.TrimSpace(question)
	return pronounStart.MatchString(q) || continuation.MatchString(q) || temporal.MatchString(q)
}

const systemPrompt = `You rewrite a user's follow-up question into a standalone question that can be understood without the prior conversation. Preserve the user's intent exactly. Reply with only the rewritten question, nothing else.`

// Rewrite turns question into a standalone query given recent history. It
// only calls the generator when IsAmbiguous(question) is true; otherwise it
// returns question unchanged. history is filtered to user-authored turns
// only — assistant responses are excluded so the rewrite prompt can't be
// steered by the model's own prior phrasing.
func Rewrite(ctx context.Context, gen Generator, question string, history []domain.ConversationMessage) (string, error) {
	if !IsAmbiguous(question) {
		return question, nil
	}

	var userTurns []string
	for _, m := range history {
		if m.Role == domain.RoleUser {
			userTurns = append(userTurns, m.Content)
		}
	}
	if len(userTurns) == 0 {
		return question, nil
	}

	const maxTurns = 5
	if len(userTurns) > maxTurns {
		userTurns = userTurns[len(userTurns)-maxTurns:]
	}

	var b strings.Builder
	for i, t := range userTurns {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	fmt.Fprintf(&b, "\nFollow-up question: %s", question)

	rewritten, err := gen.Generate(ctx, systemPrompt, b.String())
	if err != nil {
		// Fail open: an unresolved ambiguous question still reaches
		// retrieval rather than aborting the request.
		return question, nil
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question, nil
	}
	return rewritten, nil
}
