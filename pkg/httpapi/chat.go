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

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

type conversationSessionInput struct {
	UserID            uuid.UUID `json:"user_id"`
	CollectionID      uuid.UUID `json:"collection_id"`
	Name              string    `json:"name"`
	ContextWindowSize int       `json:"context_window_size"`
	MaxMessages       int       `json:"max_messages"`
}

type conversationSessionPatch struct {
	Name   *string `json:"name,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

type conversationSessionOutput struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	CollectionID      uuid.UUID `json:"collection_id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	ContextWindowSize int       `json:"context_window_size"`
	MaxMessages       int       `json:"max_messages"`
	Pinned            bool      `json:"pinned"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func shapeSession(s domain.ConversationSession) conversationSessionOutput {
	return conversationSessionOutput{
		ID: s.ID, UserID: s.UserID, CollectionID: s.CollectionID, Name: s.Name,
		Status: string(s.Status), ContextWindowSize: s.ContextWindowSize, MaxMessages: s.MaxMessages,
		Pinned: s.Pinned, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

type conversationMessageInput struct {
	Content string `json:"content"`
}

type conversationMessageOutput struct {
	ID              uuid.UUID      `json:"id"`
	SessionID       uuid.UUID      `json:"session_id"`
	Role            string         `json:"role"`
	Type            string         `json:"type"`
	Content         string         `json:"content"`
	TokenCount      *int           `json:"token_count,omitempty"`
	ExecutionTimeMS *int64         `json:"execution_time_ms,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func shapeMessage(m domain.ConversationMessage) conversationMessageOutput {
	out := conversationMessageOutput{
		ID: m.ID, SessionID: m.SessionID, Role: string(m.Role), Type: string(m.Type),
		Content: m.Content, TokenCount: m.TokenCount, Metadata: m.Metadata, CreatedAt: m.CreatedAt,
	}
	if m.ExecutionTime != nil {
		ms := m.ExecutionTime.Milliseconds()
		out.ExecutionTimeMS = &ms
	}
	return out
}

func sessionIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "sessionID"))
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req conversationSessionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}
	session, err := h.deps.Conversations.CreateSession(r.Context(), req.UserID, req.CollectionID, req.Name, req.ContextWindowSize, req.MaxMessages)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeSession(session))
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	session, err := h.deps.Conversations.GetSession(r.Context(), sessionID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeSession(session))
}

func (h *handlers) patchSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	var req conversationSessionPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	session, err := h.deps.Conversations.Rename(r.Context(), sessionID, name, req.Pinned)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeSession(session))
}

// deleteSession archives the session rather than erasing history: the data
// model keeps conversation rows as an append-only log, and archived is
// already the terminal, filterable-out state ListSessions supports.
func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	if err := h.deps.Conversations.ArchiveSession(r.Context(), sessionID); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	var req conversationMessageInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}
	msg, err := h.deps.Conversations.AddMessage(r.Context(), sessionID, domain.RoleUser, domain.MessageQuestion, req.Content)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeMessage(msg))
}

func (h *handlers) processMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	var req conversationMessageInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}

	reply, err := h.deps.Conversations.ProcessUserMessage(r.Context(), sessionID, req.Content)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeMessage(reply))
}

type conversationSummaryInput struct {
	Strategy               domain.SummaryStrategy `json:"strategy"`
	MessageCountToSummarize int                    `json:"message_count_to_summarize"`
}

type conversationSummaryOutput struct {
	ID                     uuid.UUID `json:"id"`
	SessionID              uuid.UUID `json:"session_id"`
	Summary                string    `json:"summary"`
	SummarizedMessageCount int       `json:"summarized_message_count"`
	TokensSaved            int       `json:"tokens_saved"`
	KeyTopics              []string  `json:"key_topics,omitempty"`
	ImportantDecisions     []string  `json:"important_decisions,omitempty"`
	UnresolvedQuestions    []string  `json:"unresolved_questions,omitempty"`
	Strategy               string    `json:"strategy"`
	CreatedAt              time.Time `json:"created_at"`
}

func shapeSummary(s domain.ConversationSummary) conversationSummaryOutput {
	return conversationSummaryOutput{
		ID: s.ID, SessionID: s.SessionID, Summary: s.Summary, SummarizedMessageCount: s.SummarizedMessageCount,
		TokensSaved: s.TokensSaved, KeyTopics: s.KeyTopics, ImportantDecisions: s.ImportantDecisions,
		UnresolvedQuestions: s.UnresolvedQuestions, Strategy: string(s.Strategy), CreatedAt: s.CreatedAt,
	}
}

func (h *handlers) createSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	var req conversationSummaryInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", string(rerrors.KindValidation))
		return
	}
	if req.Strategy == "" {
		req.Strategy = domain.StrategyRecentPlusSummary
	}
	summary, err := h.deps.Conversations.Summarize(r.Context(), sessionID, req.Strategy, req.MessageCountToSummarize)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shapeSummary(summary))
}

func (h *handlers) listSummaries(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id", string(rerrors.KindValidation))
		return
	}
	summaries, err := h.deps.Conversations.ListSummaries(r.Context(), sessionID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	out := make([]conversationSummaryOutput, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, shapeSummary(s))
	}
	writeJSON(w, http.StatusOK, out)
}
