package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/skinclarityclub/insight-engine/internal/privacy"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// AppendConversationEntry stores one immutable query/response turn.
// Queries are privacy-cleaned before they hit disk. Idempotent: re-appending
// an entry with the same ID is a no-op.
func (s *Store) AppendConversationEntry(ctx context.Context, entry *models.ConversationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.TimestampEpoch == 0 {
		entry.TimestampEpoch = time.Now().UnixMilli()
	}
	entry.Confidence = models.Clamp01(entry.Confidence)

	contextJSON, err := entry.Context.Value()
	if err != nil {
		return err
	}

	const query = `
		INSERT OR IGNORE INTO conversation_entries
		(id, session_id, user_id, timestamp_epoch, user_query, assistant_response,
		 context, feedback, follow_up, query_type, confidence, response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.ExecContext(ctx, query,
		entry.ID, entry.SessionID, entry.UserID, entry.TimestampEpoch,
		privacy.Clean(entry.UserQuery), entry.AssistantResponse,
		contextJSON, entry.Feedback, entry.FollowUp,
		string(entry.QueryType), entry.Confidence, entry.ResponseTimeMs,
	)
	return err
}

// RecentEntries returns a user's most recent turns, newest first.
func (s *Store) RecentEntries(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, session_id, user_id, timestamp_epoch, user_query, assistant_response,
		       context, feedback, follow_up, query_type, confidence, response_time_ms
		FROM conversation_entries
		WHERE user_id = ?
		ORDER BY timestamp_epoch DESC
		LIMIT ?
	`
	rows, err := s.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntryRows(rows)
}

// SessionEntries returns all turns of one session in chronological order.
func (s *Store) SessionEntries(ctx context.Context, sessionID string) ([]*models.ConversationEntry, error) {
	const query = `
		SELECT id, session_id, user_id, timestamp_epoch, user_query, assistant_response,
		       context, feedback, follow_up, query_type, confidence, response_time_ms
		FROM conversation_entries
		WHERE session_id = ?
		ORDER BY timestamp_epoch ASC
	`
	rows, err := s.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntryRows(rows)
}

// scanEntry scans a single conversation entry from a row scanner.
func scanEntry(scanner interface{ Scan(...interface{}) error }) (*models.ConversationEntry, error) {
	var e models.ConversationEntry
	if err := scanner.Scan(
		&e.ID, &e.SessionID, &e.UserID, &e.TimestampEpoch,
		&e.UserQuery, &e.AssistantResponse, &e.Context,
		&e.Feedback, &e.FollowUp, &e.QueryType, &e.Confidence, &e.ResponseTimeMs,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanEntryRows scans multiple entries. Caller closes rows.
func scanEntryRows(rows *sql.Rows) ([]*models.ConversationEntry, error) {
	var entries []*models.ConversationEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
