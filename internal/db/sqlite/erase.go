package sqlite

import (
	"context"
	"fmt"

	"github.com/skinclarityclub/insight-engine/internal/privacy"
)

// userTables lists every table carrying a user_id column, for cascading
// erasure. behavior_snapshots is keyed directly by user_id.
var userTables = []string{
	"user_profiles",
	"session_memories",
	"conversation_entries",
	"query_patterns",
	"interaction_patterns",
	"learning_insights",
	"behavior_snapshots",
}

// EraseUser implements privacy erasure.
//
// Hard mode removes every row the user owns across all tables. Soft mode
// redacts free-text fields and swaps the user identifier for a derived
// pseudonym; row counts and aggregate pattern statistics survive so global
// analytics keep working.
func (s *Store) EraseUser(ctx context.Context, userID string, hard bool) error {
	if hard {
		return s.eraseHard(ctx, userID)
	}
	return s.eraseSoft(ctx, userID)
}

func (s *Store) eraseHard(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range userTables {
		// #nosec G202 -- table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("erase %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) eraseSoft(ctx context.Context, userID string) error {
	pseudonym := privacy.Pseudonym(userID, s.salt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Redact free text before reassigning ownership.
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_entries
		SET user_query = ?, assistant_response = ?, context = '{}', feedback = ''
		WHERE user_id = ?
	`, privacy.RedactedText, privacy.RedactedText, userID); err != nil {
		return fmt.Errorf("redact entries: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE session_memories
		SET context_summary = '', user_intent = '', active_topics = '[]'
		WHERE user_id = ?
	`, userID); err != nil {
		return fmt.Errorf("redact sessions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE query_patterns SET query_text = ?, follow_ups = '[]' WHERE user_id = ?
	`, privacy.RedactedText, userID); err != nil {
		return fmt.Errorf("redact patterns: %w", err)
	}

	// The behavior snapshot embeds raw query text; drop it rather than
	// attempting in-place JSON surgery. It is rebuildable derived state.
	if _, err := tx.ExecContext(ctx, `DELETE FROM behavior_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("drop snapshot: %w", err)
	}

	for _, table := range userTables {
		if table == "behavior_snapshots" {
			continue
		}
		// #nosec G202 -- table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET user_id = ? WHERE user_id = ?`, pseudonym, userID); err != nil {
			return fmt.Errorf("pseudonymize %s: %w", table, err)
		}
	}
	return tx.Commit()
}
