// Package sqlite provides the SQLite-backed Session & Profile Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/skinclarityclub/insight-engine/internal/db"
)

var _ db.Store = (*Store)(nil)

// StoreConfig holds database configuration.
type StoreConfig struct {
	Path string
	// MaxConns caps open connections (default 4).
	MaxConns int
	// PseudonymSalt seeds pseudonym derivation during soft erasure.
	PseudonymSalt string
}

// Store wraps the SQLite connection and implements db.Store.
type Store struct {
	db   *sql.DB
	salt string
}

// NewStore opens the database, enables WAL mode, and bootstraps the schema.
func NewStore(cfg StoreConfig) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// WAL allows concurrent readers while a writer is active; the busy
	// timeout makes concurrent writers retry instead of failing immediately.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: sqlDB, salt: cfg.PseudonymSalt}
	if err := store.bootstrap(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// ExecContext executes a statement against the underlying database.
func (s *Store) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query against the underlying database.
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query against the underlying database.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// bootstrap creates all tables and indexes if they do not exist.
func (s *Store) bootstrap() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		expertise_level TEXT NOT NULL DEFAULT 'intermediate',
		communication_style TEXT NOT NULL DEFAULT 'consultative',
		business_focus TEXT NOT NULL DEFAULT '[]',
		preferred_analysis_depth TEXT NOT NULL DEFAULT 'standard',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		language TEXT NOT NULL DEFAULT 'en',
		last_active_epoch INTEGER NOT NULL,
		created_at_epoch INTEGER NOT NULL,
		updated_at_epoch INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_memories (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_time_epoch INTEGER NOT NULL,
		last_activity_epoch INTEGER NOT NULL,
		context_summary TEXT NOT NULL DEFAULT '',
		active_topics TEXT NOT NULL DEFAULT '[]',
		user_intent TEXT NOT NULL DEFAULT '',
		satisfaction_score REAL,
		status TEXT NOT NULL DEFAULT 'active'
			CHECK (status IN ('active', 'expired', 'closed'))
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON session_memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON session_memories(last_activity_epoch DESC);

	CREATE TABLE IF NOT EXISTS conversation_entries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		timestamp_epoch INTEGER NOT NULL,
		user_query TEXT NOT NULL,
		assistant_response TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '{}',
		feedback TEXT NOT NULL DEFAULT '',
		follow_up TEXT NOT NULL DEFAULT '',
		query_type TEXT NOT NULL DEFAULT 'simple'
			CHECK (query_type IN ('simple', 'complex', 'clarification')),
		confidence REAL NOT NULL DEFAULT 0,
		response_time_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_entries_user ON conversation_entries(user_id, timestamp_epoch DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_session ON conversation_entries(session_id, timestamp_epoch);

	CREATE TABLE IF NOT EXISTS query_patterns (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		confidence REAL NOT NULL DEFAULT 0,
		hour_histogram TEXT NOT NULL DEFAULT '[]',
		day_histogram TEXT NOT NULL DEFAULT '[]',
		follow_ups TEXT NOT NULL DEFAULT '[]',
		last_seen_epoch INTEGER NOT NULL,
		created_at_epoch INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_user ON query_patterns(user_id, frequency DESC);

	CREATE TABLE IF NOT EXISTS interaction_patterns (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL
			CHECK (kind IN ('sequence', 'cycle', 'branching', 'exploratory')),
		length INTEGER NOT NULL DEFAULT 0,
		support INTEGER NOT NULL DEFAULT 1,
		steps TEXT NOT NULL DEFAULT '[]',
		detected_at_epoch INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interaction_patterns(user_id);

	CREATE TABLE IF NOT EXISTS learning_insights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		created_at_epoch INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_user ON learning_insights(user_id);

	CREATE TABLE IF NOT EXISTS behavior_snapshots (
		user_id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		updated_at_epoch INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
