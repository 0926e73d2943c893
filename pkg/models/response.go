// Package models contains domain models for insight-engine.
package models

import "time"

// ErrorCode identifies a class of engine failure.
type ErrorCode string

const (
	ErrAnalysisDegraded  ErrorCode = "analysis_degraded"
	ErrSourceUnavailable ErrorCode = "source_unavailable"
	ErrPersistence       ErrorCode = "persistence_error"
	ErrPipelineFailure   ErrorCode = "pipeline_failure"
)

// ErrorSeverity grades an EngineError.
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// EngineError is a recorded, non-fatal failure inside the pipeline.
// No error ever propagates as an unhandled fault to the caller.
type EngineError struct {
	Code           ErrorCode     `json:"code"`
	Source         string        `json:"source,omitempty"`
	Message        string        `json:"message"`
	Severity       ErrorSeverity `json:"severity"`
	TimestampEpoch int64         `json:"timestamp_epoch"`
}

// NewEngineError builds an EngineError stamped with the current time.
func NewEngineError(code ErrorCode, source, message string, severity ErrorSeverity) EngineError {
	return EngineError{
		Code:           code,
		Source:         source,
		Message:        message,
		Severity:       severity,
		TimestampEpoch: time.Now().UnixMilli(),
	}
}

// PriorityTier buckets data sources by how aggressively to query them.
type PriorityTier string

const (
	PriorityHigh   PriorityTier = "high"
	PriorityMedium PriorityTier = "medium"
	PriorityLow    PriorityTier = "low"
)

// DataSourceRelevance scores one data source against a semantic analysis.
// Ephemeral, recomputed per query.
type DataSourceRelevance struct {
	Source           string       `json:"source"`
	Score            float64      `json:"score"`
	Priority         PriorityTier `json:"priority"`
	EstimatedRecords int          `json:"estimated_records"`
	Reasoning        []string     `json:"reasoning"`
	Confidence       float64      `json:"confidence"`
}

// SourceQuery is the shape all external sources accept: a query kind plus a
// time window and a result limit.
type SourceQuery struct {
	Kind        string                 `json:"kind"`
	Params      map[string]interface{} `json:"params,omitempty"`
	WindowStart time.Time              `json:"window_start"`
	WindowEnd   time.Time              `json:"window_end"`
	Limit       int                    `json:"limit"`
}

// SourceRecords is the payload returned by one source fetch.
type SourceRecords struct {
	Source  string                   `json:"source"`
	Kind    string                   `json:"kind"`
	Records []map[string]interface{} `json:"records"`
}

// IntegrationMetadata summarizes one integration run.
type IntegrationMetadata struct {
	TotalRecords   int           `json:"total_records"`
	SourcesQueried []string      `json:"sources_queried"`
	CacheHits      int           `json:"cache_hits"`
	Errors         []EngineError `json:"errors"`
	DurationMs     int64         `json:"duration_ms"`
	Degraded       bool          `json:"degraded,omitempty"`
}

// IntegrationResult is the unified, permission-filtered view across sources.
type IntegrationResult struct {
	Success            bool                     `json:"success"`
	Relevance          []DataSourceRelevance    `json:"relevance"`
	Data               map[string]SourceRecords `json:"data"`
	Insights           []string                 `json:"insights"`
	CrossSourceSummary string                   `json:"cross_source_summary,omitempty"`
	SuggestedSources   []string                 `json:"suggested_sources,omitempty"`
	SuggestedQueries   []string                 `json:"suggested_queries,omitempty"`
	Metadata           IntegrationMetadata      `json:"metadata"`
}

// AssistantResponse is the engine's answer to one user query.
// Every public entry point guarantees a structurally valid response.
type AssistantResponse struct {
	Answer      string               `json:"answer"`
	Analysis    *SemanticAnalysis    `json:"analysis,omitempty"`
	Integration *IntegrationResult   `json:"integration,omitempty"`
	Predictions []BehaviorPrediction `json:"predictions,omitempty"`
	FollowUps   []string             `json:"follow_ups,omitempty"`
	Style       *ResponseStyle       `json:"style,omitempty"`
	Confidence  float64              `json:"confidence"`
	SessionID   string               `json:"session_id"`
	DurationMs  int64                `json:"duration_ms"`
	Degraded    bool                 `json:"degraded,omitempty"`
}
