// Package models contains domain models for insight-engine.
package models

import (
	"database/sql"
	"time"
)

// SessionStatus represents the lifecycle state of a conversation window.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
	SessionStatusClosed  SessionStatus = "closed"
)

// SessionMemory is one active conversation window for a user.
// Invariant: LastActivityEpoch >= StartTimeEpoch.
type SessionMemory struct {
	SessionID         string          `db:"session_id" json:"session_id"`
	UserID            string          `db:"user_id" json:"user_id"`
	StartTimeEpoch    int64           `db:"start_time_epoch" json:"start_time_epoch"`
	LastActivityEpoch int64           `db:"last_activity_epoch" json:"last_activity_epoch"`
	ContextSummary    string          `db:"context_summary" json:"context_summary"`
	ActiveTopics      JSONStringArray `db:"active_topics" json:"active_topics"`
	UserIntent        string          `db:"user_intent" json:"user_intent"`
	SatisfactionScore sql.NullFloat64 `db:"satisfaction_score" json:"satisfaction_score,omitempty"`
	Status            SessionStatus   `db:"status" json:"status"`
}

// Touch updates LastActivityEpoch, preserving the ordering invariant.
func (s *SessionMemory) Touch() {
	now := time.Now().UnixMilli()
	if now < s.StartTimeEpoch {
		now = s.StartTimeEpoch
	}
	s.LastActivityEpoch = now
}

// QueryType classifies a conversation turn.
type QueryType string

const (
	QuerySimple        QueryType = "simple"
	QueryComplex       QueryType = "complex"
	QueryClarification QueryType = "clarification"
)

// ConversationEntry is the immutable record of one query/response turn.
// Append-only; this is the source of truth for behavior-model training.
type ConversationEntry struct {
	ID                string    `db:"id" json:"id"`
	SessionID         string    `db:"session_id" json:"session_id"`
	UserID            string    `db:"user_id" json:"user_id"`
	TimestampEpoch    int64     `db:"timestamp_epoch" json:"timestamp_epoch"`
	UserQuery         string    `db:"user_query" json:"user_query"`
	AssistantResponse string    `db:"assistant_response" json:"assistant_response"`
	Context           JSONMap   `db:"context" json:"context,omitempty"`
	Feedback          string    `db:"feedback" json:"feedback,omitempty"`
	FollowUp          string    `db:"follow_up" json:"follow_up,omitempty"`
	QueryType         QueryType `db:"query_type" json:"query_type"`
	Confidence        float64   `db:"confidence" json:"confidence"`
	ResponseTimeMs    int64     `db:"response_time_ms" json:"response_time_ms"`
}

// Complexity returns the analyzed complexity recorded for this turn, zero
// when the turn carries no analysis context.
func (e *ConversationEntry) Complexity() float64 {
	if e.Context == nil {
		return 0
	}
	if v, ok := e.Context["complexity"].(float64); ok {
		return v
	}
	return 0
}
