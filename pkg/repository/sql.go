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

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/ragcore/pkg/conversation"
	"github.com/kadirpekel/ragcore/pkg/domain"
	"github.com/kadirpekel/ragcore/pkg/rerrors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createCollectionsTableSQL = `
CREATE TABLE IF NOT EXISTS collections (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    vector_handle VARCHAR(255) NOT NULL,
    private BOOLEAN NOT NULL DEFAULT FALSE,
    member_user_ids TEXT,
    status VARCHAR(20) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// SQLCollections implements CollectionRepository over database/sql. Grounded
// on pkg/memory/session_service_sql.go's dialect-branching pattern, same as
// pkg/conversation's SQLStore.
type SQLCollections struct {
	db      *sql.DB
	dialect string
}

func NewSQLCollections(db *sql.DB, dialect string) (*SQLCollections, error) {
	if err := validateDialect(db, dialect); err != nil {
		return nil, err
	}
	if _, err := db.Exec(createCollectionsTableSQL); err != nil {
		return nil, rerrors.Internal("repository.Collections", "init schema", err)
	}
	return &SQLCollections{db: db, dialect: dialect}, nil
}

func validateDialect(db *sql.DB, dialect string) error {
	if db == nil {
		return rerrors.ConfigurationMissing("repository", "database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
		return nil
	default:
		return rerrors.Validation("repository", "unsupported dialect: "+dialect)
	}
}

func ph(dialect string, n int) string {
	if dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *SQLCollections) Get(ctx context.Context, id uuid.UUID) (domain.Collection, error) {
	query := fmt.Sprintf(`SELECT id, name, vector_handle, private, member_user_ids, status, created_at, updated_at
		FROM collections WHERE id = %s`, ph(r.dialect, 1))
	row := r.db.QueryRowContext(ctx, query, id.String())

	var c domain.Collection
	var idStr, status, members string
	if err := row.Scan(&idStr, &c.Name, &c.VectorHandle, &c.Private, &members, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Collection{}, rerrors.NotFound("repository.Collections", "collection not found: "+id.String())
		}
		return domain.Collection{}, rerrors.Internal("repository.Collections", "scan collection", err)
	}
	c.ID, _ = uuid.Parse(idStr)
	c.Status = domain.CollectionStatus(status)
	_ = json.Unmarshal([]byte(members), &c.MemberUserIDs)
	return c, nil
}

func (r *SQLCollections) List(ctx context.Context, userID uuid.UUID) ([]domain.Collection, error) {
	query := `SELECT id, name, vector_handle, private, member_user_ids, status, created_at, updated_at FROM collections`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, rerrors.Internal("repository.Collections", "list collections", err)
	}
	defer rows.Close()

	var out []domain.Collection
	for rows.Next() {
		var c domain.Collection
		var idStr, status, members string
		if err := rows.Scan(&idStr, &c.Name, &c.VectorHandle, &c.Private, &members, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, rerrors.Internal("repository.Collections", "scan collection", err)
		}
		c.ID, _ = uuid.Parse(idStr)
		c.Status = domain.CollectionStatus(status)
		_ = json.Unmarshal([]byte(members), &c.MemberUserIDs)
		if !c.Private || containsUUID(c.MemberUserIDs, userID) {
			out = append(out, c)
		}
	}
	return out, rows.Err()
}

func (r *SQLCollections) Create(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	members, _ := json.Marshal(c.MemberUserIDs)
	query := fmt.Sprintf(`INSERT INTO collections (id, name, vector_handle, private, member_user_ids, status, created_at, updated_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s)`,
		ph(r.dialect, 1), ph(r.dialect, 2), ph(r.dialect, 3), ph(r.dialect, 4), ph(r.dialect, 5), ph(r.dialect, 6), ph(r.dialect, 7), ph(r.dialect, 8))
	_, err := r.db.ExecContext(ctx, query, c.ID.String(), c.Name, c.VectorHandle, c.Private, string(members), string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Collection{}, rerrors.Internal("repository.Collections", "insert collection", err)
	}
	return c, nil
}

func (r *SQLCollections) Update(ctx context.Context, c domain.Collection) error {
	members, _ := json.Marshal(c.MemberUserIDs)
	query := fmt.Sprintf(`UPDATE collections SET name=%s, vector_handle=%s, private=%s, member_user_ids=%s, status=%s, updated_at=%s WHERE id=%s`,
		ph(r.dialect, 1), ph(r.dialect, 2), ph(r.dialect, 3), ph(r.dialect, 4), ph(r.dialect, 5), ph(r.dialect, 6), ph(r.dialect, 7))
	result, err := r.db.ExecContext(ctx, query, c.Name, c.VectorHandle, c.Private, string(members), string(c.Status), c.UpdatedAt, c.ID.String())
	if err != nil {
		return rerrors.Internal("repository.Collections", "update collection", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return rerrors.NotFound("repository.Collections", "collection not found: "+c.ID.String())
	}
	return nil
}

func (r *SQLCollections) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM collections WHERE id = %s`, ph(r.dialect, 1))
	_, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return rerrors.Internal("repository.Collections", "delete collection", err)
	}
	return nil
}

// SQLConversationRepository wraps pkg/conversation's SQLStore and overrides
// GetFull, the eager-loading read SPEC_FULL.md §9 calls out: on postgres it
// reads the session and then messages and summaries in one FULL OUTER JOIN
// query; on mysql and sqlite it lists them with two separate calls.
type SQLConversationRepository struct {
	conversationStore
	db      *sql.DB
	dialect string
}

// conversationStore is the subset of conversation.Store this repository
// delegates to unmodified; kept as an interface field (rather than embedding
// *conversation.SQLStore directly) so any conversation.Store backend can be
// wrapped, not only the SQL one.
type conversationStore interface {
	CreateSession(ctx context.Context, session domain.ConversationSession) (domain.ConversationSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.ConversationSession, error)
	UpdateSession(ctx context.Context, session domain.ConversationSession) error
	ListSessions(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.ConversationSession, error)
	AppendMessage(ctx context.Context, msg domain.ConversationMessage) (domain.ConversationMessage, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationMessage, error)
	CreateSummary(ctx context.Context, summary domain.ConversationSummary) (domain.ConversationSummary, error)
	ListSummaries(ctx context.Context, sessionID uuid.UUID) ([]domain.ConversationSummary, error)
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

func NewSQLConversationRepository(store conversationStore, db *sql.DB, dialect string) (*SQLConversationRepository, error) {
	if err := validateDialect(db, dialect); err != nil {
		return nil, err
	}
	return &SQLConversationRepository{conversationStore: store, db: db, dialect: dialect}, nil
}

func (r *SQLConversationRepository) GetFull(ctx context.Context, sessionID uuid.UUID) (conversation.Full, error) {
	var result conversation.Full
	session, err := r.conversationStore.GetSession(ctx, sessionID)
	if err != nil {
		return result, err
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.role, m.type, m.content, m.token_count, m.execution_time_ms, m.metadata, m.created_at,
		       s.id, s.summary, s.summarized_message_count, s.tokens_saved, s.key_topics, s.important_decisions, s.unresolved_questions, s.strategy, s.created_at
		FROM conversation_messages m
		FULL OUTER JOIN conversation_summaries s ON s.session_id = m.session_id
		WHERE m.session_id = %s OR s.session_id = %s`, ph(r.dialect, 1), ph(r.dialect, 2))

	if r.dialect != "postgres" {
		// SQLite and MySQL don't support FULL OUTER JOIN; two simple reads
		// are clearer than emulating it with a UNION of LEFT JOINs here.
		messages, err := r.conversationStore.ListMessages(ctx, sessionID)
		if err != nil {
			return result, err
		}
		summaries, err := r.conversationStore.ListSummaries(ctx, sessionID)
		if err != nil {
			return result, err
		}
		result.Session, result.Messages, result.Summaries = session, messages, summaries
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, query, sessionID.String(), sessionID.String())
	if err != nil {
		return result, rerrors.Internal("repository.Conversations", "joined session read", err)
	}
	defer rows.Close()

	seenMessages := make(map[string]bool)
	seenSummaries := make(map[string]bool)
	for rows.Next() {
		var msgID, role, msgType, content, msgMeta sql.NullString
		var tokenCount sql.NullInt64
		var execMS sql.NullInt64
		var msgCreated sql.NullTime
		var sumID, summary, topics, decisions, unresolved, strategy sql.NullString
		var sumCount, sumSaved sql.NullInt64
		var sumCreated sql.NullTime

		if err := rows.Scan(&msgID, &role, &msgType, &content, &tokenCount, &execMS, &msgMeta, &msgCreated,
			&sumID, &summary, &sumCount, &sumSaved, &topics, &decisions, &unresolved, &strategy, &sumCreated); err != nil {
			return result, rerrors.Internal("repository.Conversations", "scan joined row", err)
		}

		if msgID.Valid && !seenMessages[msgID.String] {
			seenMessages[msgID.String] = true
			msg := domain.ConversationMessage{
				SessionID: sessionID,
				Role:      domain.MessageRole(role.String),
				Type:      domain.MessageType(msgType.String),
				Content:   content.String,
				CreatedAt: msgCreated.Time,
			}
			msg.ID, _ = uuid.Parse(msgID.String)
			if tokenCount.Valid {
				tc := int(tokenCount.Int64)
				msg.TokenCount = &tc
			}
			if execMS.Valid {
				d := time.Duration(execMS.Int64) * time.Millisecond
				msg.ExecutionTime = &d
			}
			if msgMeta.Valid {
				_ = json.Unmarshal([]byte(msgMeta.String), &msg.Metadata)
			}
			result.Messages = append(result.Messages, msg)
		}

		if sumID.Valid && !seenSummaries[sumID.String] {
			seenSummaries[sumID.String] = true
			sum := domain.ConversationSummary{
				SessionID:              sessionID,
				Summary:                summary.String,
				SummarizedMessageCount: int(sumCount.Int64),
				TokensSaved:            int(sumSaved.Int64),
				Strategy:               domain.SummaryStrategy(strategy.String),
				CreatedAt:              sumCreated.Time,
			}
			sum.ID, _ = uuid.Parse(sumID.String)
			_ = json.Unmarshal([]byte(topics.String), &sum.KeyTopics)
			_ = json.Unmarshal([]byte(decisions.String), &sum.ImportantDecisions)
			_ = json.Unmarshal([]byte(unresolved.String), &sum.UnresolvedQuestions)
			result.Summaries = append(result.Summaries, sum)
		}
	}
	result.Session = session
	return result, rows.Err()
}
