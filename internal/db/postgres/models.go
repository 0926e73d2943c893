// Package postgres provides the GORM/PostgreSQL-backed Session & Profile
// Store. It implements the same contract as the sqlite package, for
// deployments that already run Postgres.
package postgres

import (
	"database/sql"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// UserProfile is the gorm row model for user_profiles.
type UserProfile struct {
	UserID                 string                 `gorm:"primaryKey"`
	ExpertiseLevel         string                 `gorm:"not null;default:'intermediate'"`
	CommunicationStyle     string                 `gorm:"not null;default:'consultative'"`
	BusinessFocus          models.JSONStringArray `gorm:"type:text;not null;default:'[]'"`
	PreferredAnalysisDepth string                 `gorm:"not null;default:'standard'"`
	Timezone               string                 `gorm:"not null;default:'UTC'"`
	Language               string                 `gorm:"not null;default:'en'"`
	LastActiveEpoch        int64                  `gorm:"not null"`
	CreatedAtEpoch         int64                  `gorm:"not null"`
	UpdatedAtEpoch         int64                  `gorm:"not null"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// SessionMemory is the gorm row model for session_memories.
type SessionMemory struct {
	SessionID         string                 `gorm:"primaryKey"`
	UserID            string                 `gorm:"index;not null"`
	StartTimeEpoch    int64                  `gorm:"not null"`
	LastActivityEpoch int64                  `gorm:"index:idx_sessions_activity,sort:desc;not null"`
	ContextSummary    string                 `gorm:"not null;default:''"`
	ActiveTopics      models.JSONStringArray `gorm:"type:text;not null;default:'[]'"`
	UserIntent        string                 `gorm:"not null;default:''"`
	SatisfactionScore sql.NullFloat64
	Status            string `gorm:"not null;default:'active';check:status IN ('active','expired','closed')"`
}

func (SessionMemory) TableName() string { return "session_memories" }

// ConversationEntry is the gorm row model for conversation_entries.
type ConversationEntry struct {
	ID                string         `gorm:"primaryKey"`
	SessionID         string         `gorm:"index;not null"`
	UserID            string         `gorm:"index:idx_entries_user;not null"`
	TimestampEpoch    int64          `gorm:"index:idx_entries_user,sort:desc;not null"`
	UserQuery         string         `gorm:"type:text;not null"`
	AssistantResponse string         `gorm:"type:text;not null"`
	Context           models.JSONMap `gorm:"type:text;not null;default:'{}'"`
	Feedback          string         `gorm:"not null;default:''"`
	FollowUp          string         `gorm:"not null;default:''"`
	QueryType         string         `gorm:"not null;default:'simple';check:query_type IN ('simple','complex','clarification')"`
	Confidence        float64        `gorm:"not null;default:0"`
	ResponseTimeMs    int64          `gorm:"not null;default:0"`
}

func (ConversationEntry) TableName() string { return "conversation_entries" }

// QueryPattern is the gorm row model for query_patterns.
type QueryPattern struct {
	ID             string                 `gorm:"primaryKey"`
	UserID         string                 `gorm:"index:idx_patterns_user;not null"`
	QueryText      string                 `gorm:"type:text;not null"`
	Frequency      int                    `gorm:"index:idx_patterns_user,sort:desc;not null;default:1"`
	Confidence     float64                `gorm:"not null;default:0"`
	HourHistogram  models.JSONIntArray    `gorm:"type:text;not null;default:'[]'"`
	DayHistogram   models.JSONIntArray    `gorm:"type:text;not null;default:'[]'"`
	FollowUps      models.JSONStringArray `gorm:"type:text;not null;default:'[]'"`
	LastSeenEpoch  int64                  `gorm:"not null"`
	CreatedAtEpoch int64                  `gorm:"not null"`
}

func (QueryPattern) TableName() string { return "query_patterns" }

// InteractionPattern is the gorm row model for interaction_patterns.
type InteractionPattern struct {
	ID              string                 `gorm:"primaryKey"`
	UserID          string                 `gorm:"index;not null"`
	SessionID       string                 `gorm:"not null"`
	Kind            string                 `gorm:"not null;check:kind IN ('sequence','cycle','branching','exploratory')"`
	Length          int                    `gorm:"not null;default:0"`
	Support         int                    `gorm:"not null;default:1"`
	Steps           models.JSONStringArray `gorm:"type:text;not null;default:'[]'"`
	DetectedAtEpoch int64                  `gorm:"not null"`
}

func (InteractionPattern) TableName() string { return "interaction_patterns" }

// LearningInsight is the gorm row model for learning_insights.
type LearningInsight struct {
	ID             string  `gorm:"primaryKey"`
	UserID         string  `gorm:"index;not null"`
	Category       string  `gorm:"not null"`
	Content        string  `gorm:"type:text;not null"`
	Confidence     float64 `gorm:"not null;default:0"`
	CreatedAtEpoch int64   `gorm:"not null"`
}

func (LearningInsight) TableName() string { return "learning_insights" }

// BehaviorSnapshot is the gorm row model for behavior_snapshots.
type BehaviorSnapshot struct {
	UserID         string `gorm:"primaryKey"`
	Model          string `gorm:"type:text;not null"`
	UpdatedAtEpoch int64  `gorm:"not null"`
}

func (BehaviorSnapshot) TableName() string { return "behavior_snapshots" }
