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
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
	"github.com/kadirpekel/ragcore/pkg/rewrite"
	"github.com/kadirpekel/ragcore/pkg/tokens"
)

// contextWindowThreshold is the fraction of a session's ContextWindowSize at
// which SummarizeIfNeeded decides older messages should be compressed.
const contextWindowThreshold = 0.8

// Searcher is the narrow slice of the search facade the Manager needs to
// answer a question once it has been enhanced. It's kept local so this
// package doesn't have to import the facade's full request/response shape.
type Searcher interface {
	Search(ctx context.Context, userID, collectionID uuid.UUID, question string) (answer string, tokensIn, tokensOut int, err error)
}

// Manager implements the conversation state machine and the eight
// operations of the Conversation Manager: create_session, add_message,
// get_context, enhance_question, process_user_message, summarize_if_needed,
// export_session, and cleanup_expired_sessions.
type Manager struct {
	store    Store
	gen      rewrite.Generator
	searcher Searcher
	model    string
}

func NewManager(store Store, gen rewrite.Generator, searcher Searcher, model string) *Manager {
	return &Manager{store: store, gen: gen, searcher: searcher, model: model}
}

// CreateSession starts a new session in the "active" state.
func (m *Manager) CreateSession(ctx context.Context, userID, collectionID uuid.UUID, name string, contextWindowSize, maxMessages int) (domain.ConversationSession, error) {
	if strings.TrimSpace(name) == "" {
		return domain.ConversationSession{}, rerrors.Validation("conversation.Manager", "session name must not be empty")
	}
	now := time.Now()
	session := domain.ConversationSession{
		ID:                uuid.New(),
		UserID:            userID,
		CollectionID:      collectionID,
		Name:              name,
		Status:            domain.SessionActive,
		ContextWindowSize: contextWindowSize,
		MaxMessages:       maxMessages,
		SessionMetadata:   map[string]any{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return m.store.CreateSession(ctx, session)
}

// AddMessage appends a message to an active session. Its token count is
// always computed from content with the manager's model; callers cannot
// supply one.
func (m *Manager) AddMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, msgType domain.MessageType, content string) (domain.ConversationMessage, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	if session.Status == domain.SessionExpired {
		return domain.ConversationMessage{}, rerrors.SessionExpired("conversation.Manager", "session has expired")
	}
	if session.Status != domain.SessionActive {
		return domain.ConversationMessage{}, rerrors.Validation("conversation.Manager", "cannot add a message to a session that is not active")
	}

	count := tokens.Count(m.model, content)
	msg := domain.ConversationMessage{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Role:       role,
		Type:       msgType,
		Content:    content,
		TokenCount: &count,
		Metadata:   map[string]any{},
		CreatedAt:  time.Now(),
	}
	msg, err = m.store.AppendMessage(ctx, msg)
	if err != nil {
		return domain.ConversationMessage{}, err
	}

	session.UpdatedAt = time.Now()
	if err := m.store.UpdateSession(ctx, session); err != nil {
		return domain.ConversationMessage{}, err
	}
	return msg, nil
}

// GetContext assembles the recent-message window a generation prompt should
// see, substituting any summary covering the oldest messages in place of
// those messages themselves, and keeping the total under the session's
// ContextWindowSize.
func (m *Manager) GetContext(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationMessage, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := m.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summaries, err := m.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	subsumed := 0
	for _, s := range summaries {
		if s.SummarizedMessageCount > subsumed {
			subsumed = s.SummarizedMessageCount
		}
	}
	if subsumed > len(messages) {
		subsumed = len(messages)
	}
	remaining := messages[subsumed:]

	budget := session.ContextWindowSize
	if budget <= 0 {
		budget = 4096
	}

	var latestSummary *domain.ConversationSummary
	if len(summaries) > 0 {
		latestSummary = &summaries[len(summaries)-1]
		budget -= tokens.Count(m.model, latestSummary.Summary)
	}

	var out []domain.ConversationMessage
	used := 0
	for i := len(remaining) - 1; i >= 0; i-- {
		msg := remaining[i]
		msgTokens := 0
		if msg.TokenCount != nil {
			msgTokens = *msg.TokenCount
		} else {
			msgTokens = tokens.Count(m.model, msg.Content)
		}
		if used+msgTokens > budget {
			break
		}
		out = append([]domain.ConversationMessage{msg}, out...)
		used += msgTokens
	}

	if latestSummary != nil {
		summaryMsg := domain.ConversationMessage{
			ID:        latestSummary.ID,
			SessionID: sessionID,
			Role:      domain.RoleSystem,
			Type:      domain.MessageSummary,
			Content:   latestSummary.Summary,
			CreatedAt: latestSummary.CreatedAt,
		}
		out = append([]domain.ConversationMessage{summaryMsg}, out...)
	}
	return out, nil
}

// EnhanceQuestion resolves an ambiguous follow-up into a standalone
// question using the session's recent user turns, delegating the actual
// pronoun/continuation heuristics and rewrite call to pkg/rewrite.
func (m *Manager) EnhanceQuestion(ctx context.Context, sessionID uuid.UUID, question string) (string, error) {
	messages, err := m.store.ListMessages(ctx, sessionID)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool)
	var userTurns []domain.ConversationMessage
	for _, msg := range messages {
		if msg.Role != domain.RoleUser {
			continue
		}
		if seen[msg.Content] {
			continue
		}
		seen[msg.Content] = true
		userTurns = append(userTurns, msg)
	}

	return rewrite.Rewrite(ctx, m.gen, question, userTurns)
}

// ProcessUserMessage runs the full turn: enhance the question, answer it via
// the search facade, and persist both the user's message and the assistant's
// reply as a single logical step.
func (m *Manager) ProcessUserMessage(ctx context.Context, sessionID uuid.UUID, question string) (domain.ConversationMessage, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.ConversationMessage{}, err
	}

	if _, err := m.AddMessage(ctx, sessionID, domain.RoleUser, domain.MessageQuestion, question); err != nil {
		return domain.ConversationMessage{}, err
	}

	enhanced, err := m.EnhanceQuestion(ctx, sessionID, question)
	if err != nil {
		return domain.ConversationMessage{}, err
	}

	start := time.Now()
	answer, tokensIn, tokensOut, err := m.searcher.Search(ctx, session.UserID, session.CollectionID, enhanced)
	if err != nil {
		return domain.ConversationMessage{}, err
	}
	elapsed := time.Since(start)

	count := tokensIn + tokensOut
	answerMsg := domain.ConversationMessage{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Role:          domain.RoleAssistant,
		Type:          domain.MessageAnswer,
		Content:       answer,
		TokenCount:    &count,
		ExecutionTime: &elapsed,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now(),
	}
	answerMsg, err = m.store.AppendMessage(ctx, answerMsg)
	if err != nil {
		return domain.ConversationMessage{}, err
	}

	if err := m.SummarizeIfNeeded(ctx, sessionID); err != nil {
		return answerMsg, err
	}
	return answerMsg, nil
}

// SummarizeIfNeeded compresses all not-yet-summarized messages once their
// cumulative token count crosses contextWindowThreshold of the session's
// ContextWindowSize. Summarized messages are never deleted, only marked
// subsumed by the resulting ConversationSummary's SummarizedMessageCount.
func (m *Manager) SummarizeIfNeeded(ctx context.Context, sessionID uuid.UUID) error {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	messages, err := m.store.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	summaries, err := m.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return err
	}

	subsumed := 0
	for _, s := range summaries {
		if s.SummarizedMessageCount > subsumed {
			subsumed = s.SummarizedMessageCount
		}
	}
	unsummarized := messages[subsumed:]

	total := 0
	for _, msg := range unsummarized {
		if msg.TokenCount != nil {
			total += *msg.TokenCount
		} else {
			total += tokens.Count(m.model, msg.Content)
		}
	}

	threshold := int(float64(session.ContextWindowSize) * contextWindowThreshold)
	if session.ContextWindowSize <= 0 || total < threshold || len(unsummarized) == 0 {
		return nil
	}

	strategy := domain.StrategyRecentPlusSummary
	summaryText, keyTopics, decisions, unresolved := summarize(strategy, unsummarized)
	summaryTokens := tokens.Count(m.model, summaryText)

	summary := domain.ConversationSummary{
		ID:                     uuid.New(),
		SessionID:              sessionID,
		Summary:                summaryText,
		SummarizedMessageCount: subsumed + len(unsummarized),
		TokensSaved:            total - summaryTokens,
		KeyTopics:              keyTopics,
		ImportantDecisions:     decisions,
		UnresolvedQuestions:    unresolved,
		Strategy:               strategy,
		CreatedAt:              time.Now(),
	}
	_, err = m.store.CreateSummary(ctx, summary)
	return err
}

// Summarize runs one summarization pass on demand, independent of the
// context-window threshold SummarizeIfNeeded checks. messageCount bounds how
// many of the oldest not-yet-summarized messages are folded in; 0 means all
// of them.
func (m *Manager) Summarize(ctx context.Context, sessionID uuid.UUID, strategy domain.SummaryStrategy, messageCount int) (domain.ConversationSummary, error) {
	messages, err := m.store.ListMessages(ctx, sessionID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	summaries, err := m.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}

	subsumed := 0
	for _, s := range summaries {
		if s.SummarizedMessageCount > subsumed {
			subsumed = s.SummarizedMessageCount
		}
	}
	unsummarized := messages[subsumed:]
	if messageCount > 0 && messageCount < len(unsummarized) {
		unsummarized = unsummarized[:messageCount]
	}
	if len(unsummarized) == 0 {
		return domain.ConversationSummary{}, rerrors.Validation("conversation.Manager", "no unsummarized messages to summarize")
	}

	summaryText, keyTopics, decisions, unresolved := summarize(strategy, unsummarized)
	summaryTokens := tokens.Count(m.model, summaryText)
	total := 0
	for _, msg := range unsummarized {
		if msg.TokenCount != nil {
			total += *msg.TokenCount
		} else {
			total += tokens.Count(m.model, msg.Content)
		}
	}

	summary := domain.ConversationSummary{
		ID:                     uuid.New(),
		SessionID:              sessionID,
		Summary:                summaryText,
		SummarizedMessageCount: subsumed + len(unsummarized),
		TokensSaved:            total - summaryTokens,
		KeyTopics:              keyTopics,
		ImportantDecisions:     decisions,
		UnresolvedQuestions:    unresolved,
		Strategy:               strategy,
		CreatedAt:              time.Now(),
	}
	return m.store.CreateSummary(ctx, summary)
}

// ListSummaries returns every summary recorded for a session, oldest first.
func (m *Manager) ListSummaries(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationSummary, error) {
	return m.store.ListSummaries(ctx, sessionID)
}

// ExportSession renders a session and its full history in one of three
// formats.
func (m *Manager) ExportSession(ctx context.Context, sessionID uuid.UUID, format string) (string, error) {
	full, err := GetFull(ctx, m.store, sessionID)
	if err != nil {
		return "", err
	}
	switch format {
	case "json":
		return exportJSON(full)
	case "markdown":
		return exportMarkdown(full), nil
	case "text":
		return exportText(full), nil
	default:
		return "", rerrors.Validation("conversation.Manager", "unknown export format: "+format)
	}
}

// CleanupExpiredSessions sweeps every session whose UpdatedAt predates
// cutoff into the expired state, independent of the created/active/paused/
// archived lifecycle arrows.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, cutoff time.Time) (int, error) {
	return m.store.ExpireStale(ctx, cutoff)
}

// GetSession returns one session by id, for read-only views the HTTP layer
// renders directly.
func (m *Manager) GetSession(ctx context.Context, sessionID uuid.UUID) (domain.ConversationSession, error) {
	return m.store.GetSession(ctx, sessionID)
}

// ListSessions returns a user's sessions, optionally including archived ones.
func (m *Manager) ListSessions(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.ConversationSession, error) {
	return m.store.ListSessions(ctx, userID, includeArchived)
}

// Rename changes a session's display name and/or pinned flag; empty name
// leaves the existing name unchanged.
func (m *Manager) Rename(ctx context.Context, sessionID uuid.UUID, name string, pinned *bool) (domain.ConversationSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.ConversationSession{}, err
	}
	if strings.TrimSpace(name) != "" {
		session.Name = name
	}
	if pinned != nil {
		session.Pinned = *pinned
	}
	session.UpdatedAt = time.Now()
	if err := m.store.UpdateSession(ctx, session); err != nil {
		return domain.ConversationSession{}, err
	}
	return session, nil
}

// PauseSession and ResumeSession move a session between active and paused.
func (m *Manager) PauseSession(ctx context.Context, sessionID uuid.UUID) error {
	return m.transition(ctx, sessionID, domain.SessionActive, domain.SessionPaused)
}

func (m *Manager) ResumeSession(ctx context.Context, sessionID uuid.UUID) error {
	return m.transition(ctx, sessionID, domain.SessionPaused, domain.SessionActive)
}

// ArchiveSession moves a session out of the active/paused lifecycle
// permanently.
func (m *Manager) ArchiveSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionActive && session.Status != domain.SessionPaused {
		return rerrors.Validation("conversation.Manager", "only an active or paused session can be archived")
	}
	session.Status = domain.SessionArchived
	session.UpdatedAt = time.Now()
	return m.store.UpdateSession(ctx, session)
}

func (m *Manager) transition(ctx context.Context, sessionID uuid.UUID, from, to domain.SessionStatus) error {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != from {
		return rerrors.Validation("conversation.Manager", "session is not in the expected state for this transition")
	}
	session.Status = to
	session.UpdatedAt = time.Now()
	return m.store.UpdateSession(ctx, session)
}
