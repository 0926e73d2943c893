// Package db defines the durable Session & Profile Store contract.
// The sqlite and postgres subpackages implement it; everything above the
// store consumes this interface so backends can be swapped at wiring time.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// ErrNotFound is returned when a looked-up row does not exist and the caller
// asked for a hard failure rather than a nil result.
var ErrNotFound = errors.New("db: not found")

// Store is the durable home of all user-owned entities. All writes are
// idempotent upserts keyed by stable IDs; row access is scoped by user ID.
type Store interface {
	// Profiles.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, patch *models.ProfilePatch) (*models.UserProfile, error)

	// Sessions.
	CreateSession(ctx context.Context, userID string) (*models.SessionMemory, error)
	GetSession(ctx context.Context, sessionID string) (*models.SessionMemory, error)
	TouchSession(ctx context.Context, sessionID, intent string, topics []string) error
	ExpireSessions(ctx context.Context, inactiveFor time.Duration) (int64, error)

	// Conversation history (append-only).
	AppendConversationEntry(ctx context.Context, entry *models.ConversationEntry) error
	RecentEntries(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error)
	SessionEntries(ctx context.Context, sessionID string) ([]*models.ConversationEntry, error)

	// Behavior patterns and insights.
	UpsertQueryPattern(ctx context.Context, pattern *models.QueryPattern) error
	ListQueryPatterns(ctx context.Context, userID string, limit int) ([]*models.QueryPattern, error)
	AddInteractionPattern(ctx context.Context, pattern *models.InteractionPattern) error
	AddInsight(ctx context.Context, insight *models.LearningInsight) error
	ListInsights(ctx context.Context, userID string, limit int) ([]*models.LearningInsight, error)

	// Behavior model persistence (JSON snapshot; rebuildable derived state).
	SaveBehaviorSnapshot(ctx context.Context, model *models.UserBehaviorModel) error
	LoadBehaviorSnapshot(ctx context.Context, userID string) (*models.UserBehaviorModel, error)

	// Ranked memory search.
	SearchMemory(ctx context.Context, criteria search.Criteria) ([]search.Result, error)

	// Privacy erasure. Hard mode cascades deletes across every owned table;
	// soft mode redacts free text and pseudonymizes the user identifier while
	// preserving row counts for aggregate analytics.
	EraseUser(ctx context.Context, userID string, hard bool) error

	Close() error
}
