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
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGenerator struct {
	response string
}

func (f fixedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, nil
}

type recordingGenerator struct {
	prompt string
}

func (r *recordingGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	r.prompt = userPrompt
	return "standalone question", nil
}

type fixedSearcher struct {
	answer string
}

func (f fixedSearcher) Search(ctx context.Context, userID, collectionID uuid.UUID, question string) (string, int, int, error) {
	return f.answer, 10, 20, nil
}

func newTestManager() (*Manager, Store, uuid.UUID) {
	store := NewInMemoryStore()
	mgr := NewManager(store, fixedGenerator{response: "standalone question"}, fixedSearcher{answer: "the answer"}, "gpt-4o")
	session, err := mgr.CreateSession(context.Background(), uuid.New(), uuid.New(), "my session", 4096, 100)
	if err != nil {
		panic(err)
	}
	return mgr, store, session.ID
}

func TestManagerCreateSessionRejectsEmptyName(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), fixedGenerator{}, fixedSearcher{}, "gpt-4o")
	_, err := mgr.CreateSession(context.Background(), uuid.New(), uuid.New(), "  ", 1000, 10)
	require.Error(t, err)
}

func TestManagerAddMessageComputesTokenCount(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	msg, err := mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "hello there")
	require.NoError(t, err)
	require.NotNil(t, msg.TokenCount)
	assert.Greater(t, *msg.TokenCount, 0)
}

func TestManagerAddMessageRejectsInactiveSession(t *testing.T) {
	mgr, store, sessionID := newTestManager()
	session, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	session.Status = domain.SessionPaused
	require.NoError(t, store.UpdateSession(context.Background(), session))

	_, err = mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "hello")
	require.Error(t, err)
}

func TestManagerProcessUserMessagePersistsBothTurns(t *testing.T) {
	mgr, store, sessionID := newTestManager()
	reply, err := mgr.ProcessUserMessage(context.Background(), sessionID, "what about pricing?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply.Content)

	messages, err := store.ListMessages(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
}

func TestManagerEnhanceQuestionDedupesHistory(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	rec := &recordingGenerator{}
	mgr.gen = rec
	_, err := mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "tell me about pricing")
	require.NoError(t, err)
	_, err = mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "tell me about pricing")
	require.NoError(t, err)

	enhanced, err := mgr.EnhanceQuestion(context.Background(), sessionID, "what about it?")
	require.NoError(t, err)
	assert.Equal(t, "standalone question", enhanced)
	assert.Equal(t, 1, strings.Count(rec.prompt, "tell me about pricing"))
}

func TestManagerEnhanceQuestionLeavesUnambiguousQuestionAlone(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	enhanced, err := mgr.EnhanceQuestion(context.Background(), sessionID, "what is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "what is the capital of France?", enhanced)
}

func TestManagerPauseAndResumeSession(t *testing.T) {
	mgr, store, sessionID := newTestManager()
	require.NoError(t, mgr.PauseSession(context.Background(), sessionID))

	session, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaused, session.Status)

	require.NoError(t, mgr.ResumeSession(context.Background(), sessionID))
	session, err = store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
}

func TestManagerPauseRejectsWrongState(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	require.NoError(t, mgr.PauseSession(context.Background(), sessionID))
	err := mgr.PauseSession(context.Background(), sessionID)
	require.Error(t, err)
}

func TestManagerArchiveSession(t *testing.T) {
	mgr, store, sessionID := newTestManager()
	require.NoError(t, mgr.ArchiveSession(context.Background(), sessionID))

	session, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionArchived, session.Status)
}

func TestManagerExportSessionFormats(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	_, err := mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "hello")
	require.NoError(t, err)

	for _, format := range []string{"json", "markdown", "text"} {
		out, err := mgr.ExportSession(context.Background(), sessionID, format)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
}

func TestManagerExportSessionRejectsUnknownFormat(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	_, err := mgr.ExportSession(context.Background(), sessionID, "xml")
	require.Error(t, err)
}

func TestManagerRenameUpdatesNameAndPinned(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	pinned := true
	session, err := mgr.Rename(context.Background(), sessionID, "new name", &pinned)
	require.NoError(t, err)
	assert.Equal(t, "new name", session.Name)
	assert.True(t, session.Pinned)
}

func TestManagerSummarizeOnDemand(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	for i := 0; i < 3; i++ {
		_, err := mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "a message about pricing")
		require.NoError(t, err)
	}

	summary, err := mgr.Summarize(context.Background(), sessionID, domain.StrategyKeyPointsOnly, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyKeyPointsOnly, summary.Strategy)
	assert.Greater(t, summary.SummarizedMessageCount, 0)

	summaries, err := mgr.ListSummaries(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestManagerSummarizeRejectsEmptyHistory(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	_, err := mgr.Summarize(context.Background(), sessionID, domain.StrategyKeyPointsOnly, 0)
	require.Error(t, err)
}

func TestManagerAddMessageRejectsExpiredSession(t *testing.T) {
	mgr, store, sessionID := newTestManager()
	session, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	session.Status = domain.SessionExpired
	require.NoError(t, store.UpdateSession(context.Background(), session))

	_, err = mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "hello")
	require.Error(t, err)
}

func TestManagerGetContextKeepsWithinBudget(t *testing.T) {
	mgr, _, sessionID := newTestManager()
	for i := 0; i < 5; i++ {
		_, err := mgr.AddMessage(context.Background(), sessionID, domain.RoleUser, domain.MessageQuestion, "a short message")
		require.NoError(t, err)
	}

	messages, err := mgr.GetContext(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, messages)

	used := 0
	for _, m := range messages {
		require.NotNil(t, m.TokenCount)
		used += *m.TokenCount
	}
	assert.LessOrEqual(t, used, 4096)
}
