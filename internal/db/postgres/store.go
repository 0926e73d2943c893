package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skinclarityclub/insight-engine/internal/db"
	"github.com/skinclarityclub/insight-engine/internal/privacy"
	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/models"
	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

var _ db.Store = (*Store)(nil)

// StoreConfig holds database configuration.
type StoreConfig struct {
	DSN           string
	LogLevel      logger.LogLevel
	PseudonymSalt string
}

// Store wraps the GORM connection and implements db.Store.
type Store struct {
	db   *gorm.DB
	salt string
}

// NewStore opens the database and runs pending migrations.
func NewStore(cfg StoreConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, salt: cfg.PseudonymSalt}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetProfile retrieves a user profile. Returns (nil, nil) when absent.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var row UserProfile
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profileFromRow(&row), nil
}

// UpsertProfile creates the profile on first contact, then applies the patch.
func (s *Store) UpsertProfile(ctx context.Context, patch *models.ProfilePatch) (*models.UserProfile, error) {
	profile, err := s.GetProfile(ctx, patch.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = models.NewUserProfile(patch.UserID)
	}
	patch.Apply(profile)
	profile.LastActiveEpoch = time.Now().UnixMilli()

	row := profileToRow(profile)
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateSession starts a new conversation window for a user.
func (s *Store) CreateSession(ctx context.Context, userID string) (*models.SessionMemory, error) {
	now := time.Now().UnixMilli()
	row := SessionMemory{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		StartTimeEpoch:    now,
		LastActivityEpoch: now,
		ActiveTopics:      models.JSONStringArray{},
		Status:            string(models.SessionStatusActive),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return sessionFromRow(&row), nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.SessionMemory, error) {
	var row SessionMemory
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sessionFromRow(&row), nil
}

// TouchSession records activity: bumps last_activity and merges intent/topics.
func (s *Store) TouchSession(ctx context.Context, sessionID, intent string, topics []string) error {
	updates := map[string]interface{}{
		"last_activity_epoch": gorm.Expr("GREATEST(last_activity_epoch, ?)", time.Now().UnixMilli()),
	}
	if intent != "" {
		updates["user_intent"] = intent
	}
	if len(topics) > 0 {
		topicsJSON, err := models.JSONStringArray(topics).Value()
		if err != nil {
			return err
		}
		updates["active_topics"] = topicsJSON
	}
	return s.db.WithContext(ctx).
		Model(&SessionMemory{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}

// ExpireSessions marks idle active sessions as expired.
func (s *Store) ExpireSessions(ctx context.Context, inactiveFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-inactiveFor).UnixMilli()
	result := s.db.WithContext(ctx).
		Model(&SessionMemory{}).
		Where("status = ? AND last_activity_epoch < ?", string(models.SessionStatusActive), cutoff).
		Update("status", string(models.SessionStatusExpired))
	return result.RowsAffected, result.Error
}

// AppendConversationEntry stores one immutable turn, privacy-cleaned.
func (s *Store) AppendConversationEntry(ctx context.Context, entry *models.ConversationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.TimestampEpoch == 0 {
		entry.TimestampEpoch = time.Now().UnixMilli()
	}

	row := ConversationEntry{
		ID:                entry.ID,
		SessionID:         entry.SessionID,
		UserID:            entry.UserID,
		TimestampEpoch:    entry.TimestampEpoch,
		UserQuery:         privacy.Clean(entry.UserQuery),
		AssistantResponse: entry.AssistantResponse,
		Context:           entry.Context,
		Feedback:          entry.Feedback,
		FollowUp:          entry.FollowUp,
		QueryType:         string(entry.QueryType),
		Confidence:        models.Clamp01(entry.Confidence),
		ResponseTimeMs:    entry.ResponseTimeMs,
	}
	// Idempotent append: a replayed ID is ignored.
	return s.db.WithContext(ctx).
		Where("id = ?", entry.ID).
		FirstOrCreate(&row).Error
}

// RecentEntries returns the newest turns for a user.
func (s *Store) RecentEntries(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []ConversationEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp_epoch DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

// SessionEntries returns a session's turns in chronological order.
func (s *Store) SessionEntries(ctx context.Context, sessionID string) ([]*models.ConversationEntry, error) {
	var rows []ConversationEntry
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp_epoch ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

// UpsertQueryPattern stores or replaces one pattern and trims beyond the cap.
func (s *Store) UpsertQueryPattern(ctx context.Context, pattern *models.QueryPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if pattern.CreatedAtEpoch == 0 {
		pattern.CreatedAtEpoch = time.Now().UnixMilli()
	}

	row := QueryPattern{
		ID:             pattern.ID,
		UserID:         pattern.UserID,
		QueryText:      pattern.QueryText,
		Frequency:      pattern.Frequency,
		Confidence:     pattern.Confidence,
		HourHistogram:  pattern.HourHistogram,
		DayHistogram:   pattern.DayHistogram,
		FollowUps:      pattern.FollowUps,
		LastSeenEpoch:  pattern.LastSeenEpoch,
		CreatedAtEpoch: pattern.CreatedAtEpoch,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return err
	}

	return s.db.WithContext(ctx).Exec(`
		DELETE FROM query_patterns
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM query_patterns
			WHERE user_id = ?
			ORDER BY frequency DESC, last_seen_epoch DESC
			LIMIT ?
		)`, pattern.UserID, pattern.UserID, models.MaxQueryPatterns).Error
}

// ListQueryPatterns returns a user's patterns, most frequent first.
func (s *Store) ListQueryPatterns(ctx context.Context, userID string, limit int) ([]*models.QueryPattern, error) {
	if limit <= 0 || limit > models.MaxQueryPatterns {
		limit = models.MaxQueryPatterns
	}
	var rows []QueryPattern
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("frequency DESC, last_seen_epoch DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	patterns := make([]*models.QueryPattern, 0, len(rows))
	for i := range rows {
		patterns = append(patterns, patternFromRow(&rows[i]))
	}
	return patterns, nil
}

// AddInteractionPattern records one classified turn sequence.
func (s *Store) AddInteractionPattern(ctx context.Context, pattern *models.InteractionPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	if pattern.DetectedAtEpoch == 0 {
		pattern.DetectedAtEpoch = time.Now().UnixMilli()
	}
	row := InteractionPattern{
		ID:              pattern.ID,
		UserID:          pattern.UserID,
		SessionID:       pattern.SessionID,
		Kind:            string(pattern.Kind),
		Length:          pattern.Length,
		Support:         pattern.Support,
		Steps:           pattern.Steps,
		DetectedAtEpoch: pattern.DetectedAtEpoch,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// AddInsight stores one learning insight.
func (s *Store) AddInsight(ctx context.Context, insight *models.LearningInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	if insight.CreatedAtEpoch == 0 {
		insight.CreatedAtEpoch = time.Now().UnixMilli()
	}
	row := LearningInsight{
		ID:             insight.ID,
		UserID:         insight.UserID,
		Category:       insight.Category,
		Content:        insight.Content,
		Confidence:     models.Clamp01(insight.Confidence),
		CreatedAtEpoch: insight.CreatedAtEpoch,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// ListInsights returns a user's insights, newest first.
func (s *Store) ListInsights(ctx context.Context, userID string, limit int) ([]*models.LearningInsight, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []LearningInsight
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_epoch DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	insights := make([]*models.LearningInsight, 0, len(rows))
	for i := range rows {
		r := rows[i]
		insights = append(insights, &models.LearningInsight{
			ID: r.ID, UserID: r.UserID, Category: r.Category,
			Content: r.Content, Confidence: r.Confidence, CreatedAtEpoch: r.CreatedAtEpoch,
		})
	}
	return insights, nil
}

// SaveBehaviorSnapshot persists the JSON-encoded behavior model.
func (s *Store) SaveBehaviorSnapshot(ctx context.Context, model *models.UserBehaviorModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return err
	}
	row := BehaviorSnapshot{
		UserID:         model.UserID,
		Model:          string(data),
		UpdatedAtEpoch: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// LoadBehaviorSnapshot restores the persisted behavior model.
func (s *Store) LoadBehaviorSnapshot(ctx context.Context, userID string) (*models.UserBehaviorModel, error) {
	var row BehaviorSnapshot
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var model models.UserBehaviorModel
	if err := json.Unmarshal([]byte(row.Model), &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// SearchMemory ranks a user's stored memory against a free-text query.
// Candidates are pre-filtered with ILIKE, then scored and fused in memory the
// same way the sqlite backend does.
func (s *Store) SearchMemory(ctx context.Context, criteria search.Criteria) ([]search.Result, error) {
	if criteria.Limit <= 0 {
		criteria.Limit = 20
	}
	terms := similarity.Terms(criteria.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	var lists [][]search.Result

	if criteria.WantsType(search.DocEntry) {
		tx := s.db.WithContext(ctx).
			Where("user_id = ?", criteria.UserID).
			Order("timestamp_epoch DESC").
			Limit(200)
		orTx := s.db
		first := true
		for term := range terms {
			pattern := "%" + term + "%"
			if first {
				orTx = s.db.Where("user_query ILIKE ? OR assistant_response ILIKE ?", pattern, pattern)
				first = false
			} else {
				orTx = orTx.Or("user_query ILIKE ? OR assistant_response ILIKE ?", pattern, pattern)
			}
		}
		var rows []ConversationEntry
		if err := tx.Where(orTx).Find(&rows).Error; err != nil {
			return nil, err
		}

		var results []search.Result
		for i := range rows {
			r := rows[i]
			score := search.OverlapScore(criteria.Query, r.UserQuery+" "+r.AssistantResponse)
			if score <= 0 {
				continue
			}
			results = append(results, search.Result{
				Type: search.DocEntry, ID: r.ID, Content: r.UserQuery,
				Score: score, CreatedAtEpoch: r.TimestampEpoch,
			})
		}
		lists = append(lists, results)
	}

	if criteria.WantsType(search.DocPattern) {
		patterns, err := s.ListQueryPatterns(ctx, criteria.UserID, 0)
		if err != nil {
			return nil, err
		}
		var results []search.Result
		for _, p := range patterns {
			overlap := search.OverlapScore(criteria.Query, p.QueryText)
			if overlap <= 0 {
				continue
			}
			power := search.PredictivePower(p.Frequency, p.Confidence)
			results = append(results, search.Result{
				Type: search.DocPattern, ID: p.ID, Content: p.QueryText,
				Score: 0.6*overlap + 0.4*power, CreatedAtEpoch: p.LastSeenEpoch,
			})
		}
		lists = append(lists, results)
	}

	if criteria.WantsType(search.DocInsight) {
		insights, err := s.ListInsights(ctx, criteria.UserID, 100)
		if err != nil {
			return nil, err
		}
		var results []search.Result
		for _, i := range insights {
			score := search.OverlapScore(criteria.Query, i.Content)
			if score <= 0 {
				continue
			}
			results = append(results, search.Result{
				Type: search.DocInsight, ID: i.ID, Content: i.Content,
				Score: score, CreatedAtEpoch: i.CreatedAtEpoch,
			})
		}
		lists = append(lists, results)
	}

	fused := search.Fuse(lists...)
	if len(fused) > criteria.Limit {
		fused = fused[:criteria.Limit]
	}
	return fused, nil
}

// EraseUser implements hard and soft privacy erasure, same semantics as the
// sqlite backend.
func (s *Store) EraseUser(ctx context.Context, userID string, hard bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hard {
			for _, model := range []interface{}{
				&UserProfile{}, &SessionMemory{}, &ConversationEntry{},
				&QueryPattern{}, &InteractionPattern{}, &LearningInsight{},
				&BehaviorSnapshot{},
			} {
				if err := tx.Where("user_id = ?", userID).Delete(model).Error; err != nil {
					return err
				}
			}
			return nil
		}

		pseudonym := privacy.Pseudonym(userID, s.salt)

		if err := tx.Model(&ConversationEntry{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"user_query": privacy.RedactedText, "assistant_response": privacy.RedactedText,
			"context": "{}", "feedback": "",
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&SessionMemory{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"context_summary": "", "user_intent": "", "active_topics": "[]",
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&QueryPattern{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"query_text": privacy.RedactedText, "follow_ups": "[]",
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&BehaviorSnapshot{}).Error; err != nil {
			return err
		}

		for _, model := range []interface{}{
			&UserProfile{}, &SessionMemory{}, &ConversationEntry{},
			&QueryPattern{}, &InteractionPattern{}, &LearningInsight{},
		} {
			if err := tx.Model(model).Where("user_id = ?", userID).
				Update("user_id", pseudonym).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Row conversion helpers.

func profileFromRow(r *UserProfile) *models.UserProfile {
	return &models.UserProfile{
		UserID:                 r.UserID,
		Expertise:              models.ExpertiseLevel(r.ExpertiseLevel),
		Communication:          models.CommunicationStyle(r.CommunicationStyle),
		BusinessFocus:          r.BusinessFocus,
		PreferredAnalysisDepth: models.AnalysisDepth(r.PreferredAnalysisDepth),
		Timezone:               r.Timezone,
		Language:               r.Language,
		LastActiveEpoch:        r.LastActiveEpoch,
		CreatedAtEpoch:         r.CreatedAtEpoch,
		UpdatedAtEpoch:         r.UpdatedAtEpoch,
	}
}

func profileToRow(p *models.UserProfile) *UserProfile {
	return &UserProfile{
		UserID:                 p.UserID,
		ExpertiseLevel:         string(p.Expertise),
		CommunicationStyle:     string(p.Communication),
		BusinessFocus:          p.BusinessFocus,
		PreferredAnalysisDepth: string(p.PreferredAnalysisDepth),
		Timezone:               p.Timezone,
		Language:               p.Language,
		LastActiveEpoch:        p.LastActiveEpoch,
		CreatedAtEpoch:         p.CreatedAtEpoch,
		UpdatedAtEpoch:         p.UpdatedAtEpoch,
	}
}

func sessionFromRow(r *SessionMemory) *models.SessionMemory {
	return &models.SessionMemory{
		SessionID:         r.SessionID,
		UserID:            r.UserID,
		StartTimeEpoch:    r.StartTimeEpoch,
		LastActivityEpoch: r.LastActivityEpoch,
		ContextSummary:    r.ContextSummary,
		ActiveTopics:      r.ActiveTopics,
		UserIntent:        r.UserIntent,
		SatisfactionScore: r.SatisfactionScore,
		Status:            models.SessionStatus(r.Status),
	}
}

func patternFromRow(r *QueryPattern) *models.QueryPattern {
	return &models.QueryPattern{
		ID:             r.ID,
		UserID:         r.UserID,
		QueryText:      r.QueryText,
		Frequency:      r.Frequency,
		Confidence:     r.Confidence,
		HourHistogram:  r.HourHistogram,
		DayHistogram:   r.DayHistogram,
		FollowUps:      r.FollowUps,
		LastSeenEpoch:  r.LastSeenEpoch,
		CreatedAtEpoch: r.CreatedAtEpoch,
	}
}

func entriesFromRows(rows []ConversationEntry) []*models.ConversationEntry {
	entries := make([]*models.ConversationEntry, 0, len(rows))
	for i := range rows {
		r := rows[i]
		entries = append(entries, &models.ConversationEntry{
			ID:                r.ID,
			SessionID:         r.SessionID,
			UserID:            r.UserID,
			TimestampEpoch:    r.TimestampEpoch,
			UserQuery:         r.UserQuery,
			AssistantResponse: r.AssistantResponse,
			Context:           r.Context,
			Feedback:          r.Feedback,
			FollowUp:          r.FollowUp,
			QueryType:         models.QueryType(r.QueryType),
			Confidence:        r.Confidence,
			ResponseTimeMs:    r.ResponseTimeMs,
		})
	}
	return entries
}
