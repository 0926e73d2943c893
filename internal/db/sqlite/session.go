package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// CreateSession starts a new conversation window for a user.
func (s *Store) CreateSession(ctx context.Context, userID string) (*models.SessionMemory, error) {
	now := time.Now().UnixMilli()
	session := &models.SessionMemory{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		StartTimeEpoch:    now,
		LastActivityEpoch: now,
		Status:            models.SessionStatusActive,
	}

	const query = `
		INSERT INTO session_memories
		(session_id, user_id, start_time_epoch, last_activity_epoch,
		 context_summary, active_topics, user_intent, status)
		VALUES (?, ?, ?, ?, '', '[]', '', 'active')
	`
	if _, err := s.ExecContext(ctx, query,
		session.SessionID, session.UserID,
		session.StartTimeEpoch, session.LastActivityEpoch,
	); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.SessionMemory, error) {
	const query = `
		SELECT session_id, user_id, start_time_epoch, last_activity_epoch,
		       context_summary, active_topics, user_intent, satisfaction_score, status
		FROM session_memories
		WHERE session_id = ?
	`

	var m models.SessionMemory
	err := s.QueryRowContext(ctx, query, sessionID).Scan(
		&m.SessionID, &m.UserID, &m.StartTimeEpoch, &m.LastActivityEpoch,
		&m.ContextSummary, &m.ActiveTopics, &m.UserIntent, &m.SatisfactionScore, &m.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// TouchSession records activity on a session: bumps last_activity and merges
// the inferred intent and active topics. last_activity never moves backward.
func (s *Store) TouchSession(ctx context.Context, sessionID, intent string, topics []string) error {
	topicsJSON, err := models.JSONStringArray(topics).Value()
	if err != nil {
		return err
	}

	const query = `
		UPDATE session_memories
		SET last_activity_epoch = MAX(last_activity_epoch, ?),
		    user_intent = CASE WHEN ? != '' THEN ? ELSE user_intent END,
		    active_topics = CASE WHEN ? != '[]' THEN ? ELSE active_topics END
		WHERE session_id = ?
	`
	_, err = s.ExecContext(ctx, query,
		time.Now().UnixMilli(), intent, intent, topicsJSON, topicsJSON, sessionID,
	)
	return err
}

// ExpireSessions marks active sessions idle for longer than inactiveFor as
// expired and returns how many were closed.
func (s *Store) ExpireSessions(ctx context.Context, inactiveFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-inactiveFor).UnixMilli()

	const query = `
		UPDATE session_memories
		SET status = 'expired'
		WHERE status = 'active' AND last_activity_epoch < ?
	`
	result, err := s.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
