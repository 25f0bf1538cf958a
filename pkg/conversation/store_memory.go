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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

// InMemoryStore keeps sessions, messages, and summaries in process memory,
// guarded by a single RWMutex. Suitable for tests and the zero-config
// default; not durable across restarts.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]domain.ConversationSession
	messages  map[uuid.UUID][]domain.ConversationMessage
	summaries map[uuid.UUID][]domain.ConversationSummary
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[uuid.UUID]domain.ConversationSession),
		messages:  make(map[uuid.UUID][]domain.ConversationMessage),
		summaries: make(map[uuid.UUID][]domain.ConversationSummary),
	}
}

func (s *InMemoryStore) CreateSession(ctx context.Context, session domain.ConversationSession) (domain.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session, nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id uuid.UUID) (domain.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ConversationSession{}, rerrors.NotFound("conversation.Store", "session not found: "+id.String())
	}
	return session, nil
}

func (s *InMemoryStore) UpdateSession(ctx context.Context, session domain.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return rerrors.NotFound("conversation.Store", "session not found: "+session.ID.String())
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ConversationSession
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if !includeArchived && sess.Status == domain.SessionArchived {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *InMemoryStore) AppendMessage(ctx context.Context, msg domain.ConversationMessage) (domain.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return domain.ConversationMessage{}, rerrors.NotFound("conversation.Store", "session not found: "+msg.SessionID.String())
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return msg, nil
}

func (s *InMemoryStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationMessage, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *InMemoryStore) CreateSummary(ctx context.Context, summary domain.ConversationSummary) (domain.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.SessionID] = append(s.summaries[summary.SessionID], summary)
	return summary, nil
}

func (s *InMemoryStore) ListSummaries(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationSummary, len(s.summaries[sessionID]))
	copy(out, s.summaries[sessionID])
	return out, nil
}

func (s *InMemoryStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, sess := range s.sessions {
		if sess.Pinned || sess.Status == domain.SessionExpired {
			continue
		}
		if sess.UpdatedAt.Before(cutoff) {
			sess.Status = domain.SessionExpired
			s.sessions[id] = sess
			count++
		}
	}
	return count, nil
}
