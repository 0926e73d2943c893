package postgres

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrations is the ordered migration list. New schema changes append a new
// entry; existing entries are immutable once shipped.
var migrations = []*gormigrate.Migration{
	{
		ID: "202501_initial_schema",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&UserProfile{},
				&SessionMemory{},
				&ConversationEntry{},
				&QueryPattern{},
				&InteractionPattern{},
				&LearningInsight{},
				&BehaviorSnapshot{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				"user_profiles",
				"session_memories",
				"conversation_entries",
				"query_patterns",
				"interaction_patterns",
				"learning_insights",
				"behavior_snapshots",
			)
		},
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations).Migrate()
}
