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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() domain.ConversationSession {
	now := time.Now()
	return domain.ConversationSession{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		CollectionID:      uuid.New(),
		Name:              "test session",
		Status:            domain.SessionActive,
		ContextWindowSize: 4096,
		MaxMessages:       100,
		SessionMetadata:   map[string]any{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestInMemoryStoreCreateAndGetSession(t *testing.T) {
	store := NewInMemoryStore()
	session := newTestSession()

	created, err := store.CreateSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, session.ID, created.ID)

	fetched, err := store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Name, fetched.Name)
}

func TestInMemoryStoreGetSessionNotFound(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.GetSession(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindNotFound))
}

func TestInMemoryStoreAppendMessageRequiresExistingSession(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.AppendMessage(context.Background(), domain.ConversationMessage{SessionID: uuid.New()})
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.KindNotFound))
}

func TestInMemoryStoreListSessionsFiltersArchivedByDefault(t *testing.T) {
	store := NewInMemoryStore()
	userID := uuid.New()

	active := newTestSession()
	active.UserID = userID
	_, err := store.CreateSession(context.Background(), active)
	require.NoError(t, err)

	archived := newTestSession()
	archived.UserID = userID
	archived.Status = domain.SessionArchived
	_, err = store.CreateSession(context.Background(), archived)
	require.NoError(t, err)

	visible, err := store.ListSessions(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := store.ListSessions(context.Background(), userID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInMemoryStoreExpireStaleSkipsPinned(t *testing.T) {
	store := NewInMemoryStore()

	stale := newTestSession()
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
	_, err := store.CreateSession(context.Background(), stale)
	require.NoError(t, err)

	pinned := newTestSession()
	pinned.Pinned = true
	pinned.UpdatedAt = time.Now().Add(-48 * time.Hour)
	_, err = store.CreateSession(context.Background(), pinned)
	require.NoError(t, err)

	count, err := store.ExpireStale(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fetchedStale, err := store.GetSession(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, fetchedStale.Status)

	fetchedPinned, err := store.GetSession(context.Background(), pinned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, fetchedPinned.Status)
}

func TestGetFullAssemblesSessionMessagesAndSummaries(t *testing.T) {
	store := NewInMemoryStore()
	session := newTestSession()
	_, err := store.CreateSession(context.Background(), session)
	require.NoError(t, err)

	_, err = store.AppendMessage(context.Background(), domain.ConversationMessage{ID: uuid.New(), SessionID: session.ID, Role: domain.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = store.CreateSummary(context.Background(), domain.ConversationSummary{ID: uuid.New(), SessionID: session.ID, Summary: "recap"})
	require.NoError(t, err)

	full, err := GetFull(context.Background(), store, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, full.Session.ID)
	assert.Len(t, full.Messages, 1)
	assert.Len(t, full.Summaries, 1)
}
