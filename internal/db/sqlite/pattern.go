package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// UpsertQueryPattern stores or replaces one aggregated query pattern.
// Patterns beyond models.MaxQueryPatterns are trimmed, least frequent first.
func (s *Store) UpsertQueryPattern(ctx context.Context, pattern *models.QueryPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if pattern.CreatedAtEpoch == 0 {
		pattern.CreatedAtEpoch = time.Now().UnixMilli()
	}

	hours, err := pattern.HourHistogram.Value()
	if err != nil {
		return err
	}
	days, err := pattern.DayHistogram.Value()
	if err != nil {
		return err
	}
	followUps, err := pattern.FollowUps.Value()
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO query_patterns
		(id, user_id, query_text, frequency, confidence,
		 hour_histogram, day_histogram, follow_ups, last_seen_epoch, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			query_text = excluded.query_text,
			frequency = excluded.frequency,
			confidence = excluded.confidence,
			hour_histogram = excluded.hour_histogram,
			day_histogram = excluded.day_histogram,
			follow_ups = excluded.follow_ups,
			last_seen_epoch = excluded.last_seen_epoch
	`
	if _, err := s.ExecContext(ctx, query,
		pattern.ID, pattern.UserID, pattern.QueryText,
		pattern.Frequency, pattern.Confidence,
		hours, days, followUps,
		pattern.LastSeenEpoch, pattern.CreatedAtEpoch,
	); err != nil {
		return err
	}

	// Keep only the most frequent patterns per user.
	const trim = `
		DELETE FROM query_patterns
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM query_patterns
			WHERE user_id = ?
			ORDER BY frequency DESC, last_seen_epoch DESC
			LIMIT ?
		)
	`
	_, err = s.ExecContext(ctx, trim, pattern.UserID, pattern.UserID, models.MaxQueryPatterns)
	return err
}

// ListQueryPatterns returns a user's patterns, most frequent first.
func (s *Store) ListQueryPatterns(ctx context.Context, userID string, limit int) ([]*models.QueryPattern, error) {
	if limit <= 0 || limit > models.MaxQueryPatterns {
		limit = models.MaxQueryPatterns
	}

	const query = `
		SELECT id, user_id, query_text, frequency, confidence,
		       hour_histogram, day_histogram, follow_ups, last_seen_epoch, created_at_epoch
		FROM query_patterns
		WHERE user_id = ?
		ORDER BY frequency DESC, last_seen_epoch DESC
		LIMIT ?
	`
	rows, err := s.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*models.QueryPattern
	for rows.Next() {
		var p models.QueryPattern
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.QueryText, &p.Frequency, &p.Confidence,
			&p.HourHistogram, &p.DayHistogram, &p.FollowUps,
			&p.LastSeenEpoch, &p.CreatedAtEpoch,
		); err != nil {
			return nil, err
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// AddInteractionPattern records one classified turn sequence.
func (s *Store) AddInteractionPattern(ctx context.Context, pattern *models.InteractionPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if pattern.DetectedAtEpoch == 0 {
		pattern.DetectedAtEpoch = time.Now().UnixMilli()
	}

	steps, err := pattern.Steps.Value()
	if err != nil {
		return err
	}

	const query = `
		INSERT OR REPLACE INTO interaction_patterns
		(id, user_id, session_id, kind, length, support, steps, detected_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.ExecContext(ctx, query,
		pattern.ID, pattern.UserID, pattern.SessionID, string(pattern.Kind),
		pattern.Length, pattern.Support, steps, pattern.DetectedAtEpoch,
	)
	return err
}

// AddInsight stores one learning insight.
func (s *Store) AddInsight(ctx context.Context, insight *models.LearningInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	if insight.CreatedAtEpoch == 0 {
		insight.CreatedAtEpoch = time.Now().UnixMilli()
	}

	const query = `
		INSERT OR REPLACE INTO learning_insights
		(id, user_id, category, content, confidence, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.ExecContext(ctx, query,
		insight.ID, insight.UserID, insight.Category, insight.Content,
		models.Clamp01(insight.Confidence), insight.CreatedAtEpoch,
	)
	return err
}

// ListInsights returns a user's insights, newest first.
func (s *Store) ListInsights(ctx context.Context, userID string, limit int) ([]*models.LearningInsight, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, user_id, category, content, confidence, created_at_epoch
		FROM learning_insights
		WHERE user_id = ?
		ORDER BY created_at_epoch DESC
		LIMIT ?
	`
	rows, err := s.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []*models.LearningInsight
	for rows.Next() {
		var i models.LearningInsight
		if err := rows.Scan(&i.ID, &i.UserID, &i.Category, &i.Content, &i.Confidence, &i.CreatedAtEpoch); err != nil {
			return nil, err
		}
		insights = append(insights, &i)
	}
	return insights, rows.Err()
}

// SaveBehaviorSnapshot persists the JSON-encoded behavior model.
func (s *Store) SaveBehaviorSnapshot(ctx context.Context, model *models.UserBehaviorModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO behavior_snapshots (user_id, model, updated_at_epoch)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			model = excluded.model,
			updated_at_epoch = excluded.updated_at_epoch
	`
	_, err = s.ExecContext(ctx, query, model.UserID, string(data), time.Now().UnixMilli())
	return err
}

// LoadBehaviorSnapshot restores the persisted behavior model.
// Returns (nil, nil) when no snapshot exists.
func (s *Store) LoadBehaviorSnapshot(ctx context.Context, userID string) (*models.UserBehaviorModel, error) {
	const query = `SELECT model FROM behavior_snapshots WHERE user_id = ?`

	var data string
	err := s.QueryRowContext(ctx, query, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var model models.UserBehaviorModel
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return nil, err
	}
	return &model, nil
}
