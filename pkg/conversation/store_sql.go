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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store over database/sql, supporting postgres, mysql,
// and sqlite through the same three blank-imported drivers the rest of this
// module's persistence layer uses.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const (
	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id VARCHAR(36) PRIMARY KEY,
    user_id VARCHAR(36) NOT NULL,
    collection_id VARCHAR(36) NOT NULL,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(20) NOT NULL,
    context_window_size INTEGER NOT NULL,
    max_messages INTEGER NOT NULL,
    pinned BOOLEAN NOT NULL DEFAULT FALSE,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_sessions_user_id ON conversation_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_conv_sessions_updated_at ON conversation_sessions(updated_at);
`
	createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL,
    role VARCHAR(20) NOT NULL,
    type VARCHAR(30) NOT NULL,
    content TEXT NOT NULL,
    token_count INTEGER,
    execution_time_ms INTEGER,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES conversation_sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_conv_messages_session_id ON conversation_messages(session_id);
`
	createSummariesTableSQL = `
CREATE TABLE IF NOT EXISTS conversation_summaries (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL,
    summary TEXT NOT NULL,
    summarized_message_count INTEGER NOT NULL,
    tokens_saved INTEGER NOT NULL,
    key_topics TEXT,
    important_decisions TEXT,
    unresolved_questions TEXT,
    strategy VARCHAR(30) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES conversation_sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_conv_summaries_session_id ON conversation_summaries(session_id);
`
)

// NewSQLStore opens a conversation Store against an existing *sql.DB.
// dialect selects placeholder syntax: "postgres" uses $N, "mysql" and
// "sqlite" use ?.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, rerrors.ConfigurationMissing("conversation.SQLStore", "database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, rerrors.Validation("conversation.SQLStore", "unsupported dialect: "+dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, rerrors.Internal("conversation.SQLStore", "init schema", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range []string{createSessionsTableSQL, createMessagesTableSQL, createSummariesTableSQL} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) ph(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) CreateSession(ctx context.Context, session domain.ConversationSession) (domain.ConversationSession, error) {
	meta, err := json.Marshal(session.SessionMetadata)
	if err != nil {
		return domain.ConversationSession{}, rerrors.Internal("conversation.SQLStore", "marshal metadata", err)
	}
	query := fmt.Sprintf(`INSERT INTO conversation_sessions
		(id, user_id, collection_id, name, status, context_window_size, max_messages, pinned, metadata, created_at, updated_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))
	_, err = s.db.ExecContext(ctx, query,
		session.ID.String(), session.UserID.String(), session.CollectionID.String(), session.Name, string(session.Status),
		session.ContextWindowSize, session.MaxMessages, session.Pinned, string(meta), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return domain.ConversationSession{}, rerrors.Internal("conversation.SQLStore", "insert session", err)
	}
	return session, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id uuid.UUID) (domain.ConversationSession, error) {
	query := fmt.Sprintf(`SELECT id, user_id, collection_id, name, status, context_window_size, max_messages, pinned, metadata, created_at, updated_at
		FROM conversation_sessions WHERE id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id.String())

	var sess domain.ConversationSession
	var idStr, userIDStr, collectionIDStr, status, meta string
	if err := row.Scan(&idStr, &userIDStr, &collectionIDStr, &sess.Name, &status, &sess.ContextWindowSize, &sess.MaxMessages, &sess.Pinned, &meta, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.ConversationSession{}, rerrors.NotFound("conversation.SQLStore", "session not found: "+id.String())
		}
		return domain.ConversationSession{}, rerrors.Internal("conversation.SQLStore", "scan session", err)
	}
	sess.ID, _ = uuid.Parse(idStr)
	sess.UserID, _ = uuid.Parse(userIDStr)
	sess.CollectionID, _ = uuid.Parse(collectionIDStr)
	sess.Status = domain.SessionStatus(status)
	_ = json.Unmarshal([]byte(meta), &sess.SessionMetadata)
	return sess, nil
}

func (s *SQLStore) UpdateSession(ctx context.Context, session domain.ConversationSession) error {
	meta, err := json.Marshal(session.SessionMetadata)
	if err != nil {
		return rerrors.Internal("conversation.SQLStore", "marshal metadata", err)
	}
	query := fmt.Sprintf(`UPDATE conversation_sessions SET name=%s, status=%s, context_window_size=%s, max_messages=%s, pinned=%s, metadata=%s, updated_at=%s WHERE id=%s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	result, err := s.db.ExecContext(ctx, query, session.Name, string(session.Status), session.ContextWindowSize, session.MaxMessages, session.Pinned, string(meta), session.UpdatedAt, session.ID.String())
	if err != nil {
		return rerrors.Internal("conversation.SQLStore", "update session", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return rerrors.NotFound("conversation.SQLStore", "session not found: "+session.ID.String())
	}
	return nil
}

func (s *SQLStore) ListSessions(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.ConversationSession, error) {
	query := fmt.Sprintf(`SELECT id, user_id, collection_id, name, status, context_window_size, max_messages, pinned, metadata, created_at, updated_at
		FROM conversation_sessions WHERE user_id = %s`, s.ph(1))
	if !includeArchived {
		query += fmt.Sprintf(" AND status != %s", s.ph(2))
	}
	args := []any{userID.String()}
	if !includeArchived {
		args = append(args, string(domain.SessionArchived))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rerrors.Internal("conversation.SQLStore", "list sessions", err)
	}
	defer rows.Close()

	var out []domain.ConversationSession
	for rows.Next() {
		var sess domain.ConversationSession
		var idStr, userIDStr, collectionIDStr, status, meta string
		if err := rows.Scan(&idStr, &userIDStr, &collectionIDStr, &sess.Name, &status, &sess.ContextWindowSize, &sess.MaxMessages, &sess.Pinned, &meta, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, rerrors.Internal("conversation.SQLStore", "scan session", err)
		}
		sess.ID, _ = uuid.Parse(idStr)
		sess.UserID, _ = uuid.Parse(userIDStr)
		sess.CollectionID, _ = uuid.Parse(collectionIDStr)
		sess.Status = domain.SessionStatus(status)
		_ = json.Unmarshal([]byte(meta), &sess.SessionMetadata)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendMessage(ctx context.Context, msg domain.ConversationMessage) (domain.ConversationMessage, error) {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return domain.ConversationMessage{}, rerrors.Internal("conversation.SQLStore", "marshal metadata", err)
	}
	var execMS *int64
	if msg.ExecutionTime != nil {
		ms := msg.ExecutionTime.Milliseconds()
		execMS = &ms
	}

	query := fmt.Sprintf(`INSERT INTO conversation_messages
		(id, session_id, role, type, content, token_count, execution_time_ms, metadata, created_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
	_, err = s.db.ExecContext(ctx, query, msg.ID.String(), msg.SessionID.String(), string(msg.Role), string(msg.Type), msg.Content, msg.TokenCount, execMS, string(meta), msg.CreatedAt)
	if err != nil {
		return domain.ConversationMessage{}, rerrors.Internal("conversation.SQLStore", "insert message", err)
	}
	return msg, nil
}

func (s *SQLStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationMessage, error) {
	query := fmt.Sprintf(`SELECT id, session_id, role, type, content, token_count, execution_time_ms, metadata, created_at
		FROM conversation_messages WHERE session_id = %s ORDER BY created_at ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, sessionID.String())
	if err != nil {
		return nil, rerrors.Internal("conversation.SQLStore", "list messages", err)
	}
	defer rows.Close()

	var out []domain.ConversationMessage
	for rows.Next() {
		var msg domain.ConversationMessage
		var idStr, sessionIDStr, role, msgType, meta string
		var execMS *int64
		if err := rows.Scan(&idStr, &sessionIDStr, &role, &msgType, &msg.Content, &msg.TokenCount, &execMS, &meta, &msg.CreatedAt); err != nil {
			return nil, rerrors.Internal("conversation.SQLStore", "scan message", err)
		}
		msg.ID, _ = uuid.Parse(idStr)
		msg.SessionID, _ = uuid.Parse(sessionIDStr)
		msg.Role = domain.MessageRole(role)
		msg.Type = domain.MessageType(msgType)
		if execMS != nil {
			d := time.Duration(*execMS) * time.Millisecond
			msg.ExecutionTime = &d
		}
		_ = json.Unmarshal([]byte(meta), &msg.Metadata)
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateSummary(ctx context.Context, summary domain.ConversationSummary) (domain.ConversationSummary, error) {
	topics, _ := json.Marshal(summary.KeyTopics)
	decisions, _ := json.Marshal(summary.ImportantDecisions)
	unresolved, _ := json.Marshal(summary.UnresolvedQuestions)

	query := fmt.Sprintf(`INSERT INTO conversation_summaries
		(id, session_id, summary, summarized_message_count, tokens_saved, key_topics, important_decisions, unresolved_questions, strategy, created_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))
	_, err := s.db.ExecContext(ctx, query, summary.ID.String(), summary.SessionID.String(), summary.Summary, summary.SummarizedMessageCount, summary.TokensSaved, string(topics), string(decisions), string(unresolved), string(summary.Strategy), summary.CreatedAt)
	if err != nil {
		return domain.ConversationSummary{}, rerrors.Internal("conversation.SQLStore", "insert summary", err)
	}
	return summary, nil
}

func (s *SQLStore) ListSummaries(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationSummary, error) {
	query := fmt.Sprintf(`SELECT id, session_id, summary, summarized_message_count, tokens_saved, key_topics, important_decisions, unresolved_questions, strategy, created_at
		FROM conversation_summaries WHERE session_id = %s ORDER BY created_at ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, sessionID.String())
	if err != nil {
		return nil, rerrors.Internal("conversation.SQLStore", "list summaries", err)
	}
	defer rows.Close()

	var out []domain.ConversationSummary
	for rows.Next() {
		var sum domain.ConversationSummary
		var idStr, sessionIDStr, strategy, topics, decisions, unresolved string
		if err := rows.Scan(&idStr, &sessionIDStr, &sum.Summary, &sum.SummarizedMessageCount, &sum.TokensSaved, &topics, &decisions, &unresolved, &strategy, &sum.CreatedAt); err != nil {
			return nil, rerrors.Internal("conversation.SQLStore", "scan summary", err)
		}
		sum.ID, _ = uuid.Parse(idStr)
		sum.SessionID, _ = uuid.Parse(sessionIDStr)
		sum.Strategy = domain.SummaryStrategy(strategy)
		_ = json.Unmarshal([]byte(topics), &sum.KeyTopics)
		_ = json.Unmarshal([]byte(decisions), &sum.ImportantDecisions)
		_ = json.Unmarshal([]byte(unresolved), &sum.UnresolvedQuestions)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	query := fmt.Sprintf(`UPDATE conversation_sessions SET status = %s WHERE pinned = %s AND status != %s AND updated_at < %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	result, err := s.db.ExecContext(ctx, query, string(domain.SessionExpired), false, string(domain.SessionExpired), cutoff)
	if err != nil {
		return 0, rerrors.Internal("conversation.SQLStore", "expire stale sessions", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
