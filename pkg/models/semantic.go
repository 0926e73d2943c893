// Package models contains domain models for insight-engine.
package models

import "math"

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	return ClampRange(v, 0, 1)
}

// ClampRange clamps v into [lo,hi].
func ClampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

// EntityType classifies a business entity mention.
type EntityType string

const (
	EntityMetric          EntityType = "metric"
	EntityKPI             EntityType = "kpi"
	EntityProduct         EntityType = "product"
	EntityCampaign        EntityType = "campaign"
	EntityCustomerSegment EntityType = "customer_segment"
	EntityChannel         EntityType = "channel"
	EntityCourse          EntityType = "course"
	EntityContent         EntityType = "content"
	EntityTeam            EntityType = "team"
	EntityDateRange       EntityType = "date_range"
)

// BusinessEntity is a typed, confidence-scored mention found in a query.
type BusinessEntity struct {
	Text      string     `json:"text"`
	Type      EntityType `json:"type"`
	Relevance float64    `json:"relevance"`
}

// EntityRelationship links two detected entities.
type EntityRelationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
}

// BusinessCategory is the broad business domain of a query.
type BusinessCategory string

const (
	CategoryAnalytics       BusinessCategory = "analytics"
	CategoryFinance         BusinessCategory = "finance"
	CategoryMarketing       BusinessCategory = "marketing"
	CategoryOperations      BusinessCategory = "operations"
	CategoryCustomerService BusinessCategory = "customer_service"
	CategoryStrategic       BusinessCategory = "strategic"
	CategoryTechnical       BusinessCategory = "technical"
	CategoryGeneral         BusinessCategory = "general"
)

// Urgency classifies how time-sensitive a query is.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies from low (0) to critical (3).
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	default:
		return 1
	}
}

// BusinessIntent is the classified intent of one query.
type BusinessIntent struct {
	PrimaryIntent     string           `json:"primary_intent"`
	Category          BusinessCategory `json:"category"`
	Urgency           Urgency          `json:"urgency"`
	Complexity        float64          `json:"complexity"`
	RequiredExpertise ExpertiseLevel   `json:"required_expertise"`
	Confidence        float64          `json:"confidence"`
}

// SemanticAnalysis is the structured output of the context analyzer for one
// query. Ephemeral; recomputed per request.
type SemanticAnalysis struct {
	Query                string               `json:"query"`
	Language             string               `json:"language"`
	Embedding            []float64            `json:"embedding,omitempty"`
	EmbeddingConfidence  float64              `json:"embedding_confidence"`
	Intent               BusinessIntent       `json:"intent"`
	Entities             []BusinessEntity     `json:"entities"`
	Relationships        []EntityRelationship `json:"relationships"`
	ContextualImportance float64              `json:"contextual_importance"`
	DomainRelevance      map[string]float64   `json:"domain_relevance"`
	AttentionWeights     []float64            `json:"attention_weights,omitempty"`
	Confidence           float64              `json:"confidence"`
	Degraded             bool                 `json:"degraded,omitempty"`
}

// FallbackAnalysis is the low-confidence analysis produced when any analyzer
// stage fails. Callers always receive a structurally valid analysis.
func FallbackAnalysis(query string) *SemanticAnalysis {
	return &SemanticAnalysis{
		Query:    query,
		Language: "en",
		Intent: BusinessIntent{
			PrimaryIntent:     "general inquiry",
			Category:          CategoryGeneral,
			Urgency:           UrgencyNormal,
			Complexity:        0.3,
			RequiredExpertise: ExpertiseBeginner,
			Confidence:        0.3,
		},
		ContextualImportance: 0.3,
		DomainRelevance:      map[string]float64{string(CategoryGeneral): 0.3},
		Confidence:           0.3,
		Degraded:             true,
	}
}
