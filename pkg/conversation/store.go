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

// Package conversation implements the session state machine (created ->
// active <-> paused -> archived, with a separate expired transition from a
// periodic sweep), message persistence, context assembly, question
// enhancement, and the four summarization strategies.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
)

// Store persists sessions, messages, and summaries. InMemoryStore and
// SQLStore are the two provided implementations.
type Store interface {
	CreateSession(ctx context.Context, session domain.ConversationSession) (domain.ConversationSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.ConversationSession, error)
	UpdateSession(ctx context.Context, session domain.ConversationSession) error
	ListSessions(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.ConversationSession, error)

	AppendMessage(ctx context.Context, msg domain.ConversationMessage) (domain.ConversationMessage, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationMessage, error)

	CreateSummary(ctx context.Context, summary domain.ConversationSummary) (domain.ConversationSummary, error)
	ListSummaries(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationSummary, error)

	// ExpireStale transitions every non-pinned session whose UpdatedAt is
	// older than cutoff to SessionExpired, returning how many were changed.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// GetFull eager-loads a session with its messages and summaries in one
// logical read, avoiding the N+1 pattern a naive per-field fetch would incur.
// It's implemented once here in terms of the narrower Store methods (three
// calls: session, messages, summaries) rather than duplicated per backend;
// the JOIN-based variant for SQL lives in
// repository.SQLConversationRepository.GetFull (pkg/repository/sql.go).
func GetFull(ctx context.Context, store Store, sessionID uuid.UUID) (Full, error) {
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return Full{}, err
	}
	messages, err := store.ListMessages(ctx, sessionID)
	if err != nil {
		return Full{}, err
	}
	summaries, err := store.ListSummaries(ctx, sessionID)
	if err != nil {
		return Full{}, err
	}
	return Full{Session: session, Messages: messages, Summaries: summaries}, nil
}

// Full is a session with its entire message and summary history, the shape
// returned by GetFull and by repository.SQLConversationRepository.GetFull.
type Full struct {
	Session   domain.ConversationSession
	Messages  []domain.ConversationMessage
	Summaries []domain.ConversationSummary
}
