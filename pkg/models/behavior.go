// Package models contains domain models for insight-engine.
package models

import "time"

// MaxQueryPatterns caps retained query patterns per user to bound memory.
const MaxQueryPatterns = 100

// QueryPattern aggregates statistics over near-duplicate queries.
// Patterns are merged via fuzzy string similarity, not exact match.
type QueryPattern struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	QueryText      string          `db:"query_text" json:"query_text"`
	Frequency      int             `db:"frequency" json:"frequency"`
	Confidence     float64         `db:"confidence" json:"confidence"`
	HourHistogram  JSONIntArray    `db:"hour_histogram" json:"hour_histogram"`
	DayHistogram   JSONIntArray    `db:"day_histogram" json:"day_histogram"`
	FollowUps      JSONStringArray `db:"follow_ups" json:"follow_ups"`
	LastSeenEpoch  int64           `db:"last_seen_epoch" json:"last_seen_epoch"`
	CreatedAtEpoch int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// Record folds one observed turn into the pattern: frequency increments,
// confidence rolls toward the observed value, and histograms track timing.
func (p *QueryPattern) Record(at time.Time, confidence float64) {
	if len(p.HourHistogram) != 24 {
		p.HourHistogram = make(JSONIntArray, 24)
	}
	if len(p.DayHistogram) != 7 {
		p.DayHistogram = make(JSONIntArray, 7)
	}
	p.HourHistogram[at.Hour()]++
	p.DayHistogram[int(at.Weekday())]++
	p.Frequency++
	// Rolling average so early samples do not dominate forever.
	p.Confidence += (confidence - p.Confidence) / float64(p.Frequency)
	p.Confidence = Clamp01(p.Confidence)
	p.LastSeenEpoch = at.UnixMilli()
}

// InteractionKind classifies a sequence of turns within one session.
type InteractionKind string

const (
	InteractionSequence    InteractionKind = "sequence"
	InteractionCycle       InteractionKind = "cycle"
	InteractionBranching   InteractionKind = "branching"
	InteractionExploratory InteractionKind = "exploratory"
)

// InteractionPattern is a classified turn sequence observed in a session.
type InteractionPattern struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	Kind            InteractionKind `db:"kind" json:"kind"`
	Length          int             `db:"length" json:"length"`
	Support         int             `db:"support" json:"support"`
	Steps           JSONStringArray `db:"steps" json:"steps"`
	DetectedAtEpoch int64           `db:"detected_at_epoch" json:"detected_at_epoch"`
}

// PreferenceWeights are six scalar sliders describing response preferences.
// Conciseness and SpeedBias live in [-1,1]; the rest in [0,1].
type PreferenceWeights struct {
	Conciseness      float64 `json:"conciseness"`
	TechnicalDepth   float64 `json:"technical_depth"`
	VisualPreference float64 `json:"visual_preference"`
	AnalysisDepth    float64 `json:"analysis_depth"`
	SpeedBias        float64 `json:"speed_bias"`
	Proactivity      float64 `json:"proactivity"`
}

// Clamp forces every slider back into its documented interval.
func (w *PreferenceWeights) Clamp() {
	w.Conciseness = ClampRange(w.Conciseness, -1, 1)
	w.TechnicalDepth = Clamp01(w.TechnicalDepth)
	w.VisualPreference = Clamp01(w.VisualPreference)
	w.AnalysisDepth = Clamp01(w.AnalysisDepth)
	w.SpeedBias = ClampRange(w.SpeedBias, -1, 1)
	w.Proactivity = Clamp01(w.Proactivity)
}

// DefaultPreferenceWeights is the neutral starting point for a new model.
func DefaultPreferenceWeights() PreferenceWeights {
	return PreferenceWeights{
		TechnicalDepth:   0.5,
		VisualPreference: 0.3,
		AnalysisDepth:    0.5,
		Proactivity:      0.5,
	}
}

// ExpertiseScore tracks per-domain expertise plus a derived overall score.
type ExpertiseScore struct {
	Overall float64            `json:"overall"`
	Domains map[string]float64 `json:"domains"`
}

// RecomputeOverall sets Overall to the mean of all domain scores.
func (e *ExpertiseScore) RecomputeOverall() {
	if len(e.Domains) == 0 {
		return
	}
	var sum float64
	for _, v := range e.Domains {
		sum += v
	}
	e.Overall = Clamp01(sum / float64(len(e.Domains)))
}

// CommunicationTone tracks inferred formality and directness, both [0,1].
type CommunicationTone struct {
	Formality  float64 `json:"formality"`
	Directness float64 `json:"directness"`
}

// UserBehaviorModel is the evolving per-user model.
// Process-local and rebuildable: losing it degrades prediction quality only.
type UserBehaviorModel struct {
	UserID              string                `json:"user_id"`
	QueryPatterns       []*QueryPattern       `json:"query_patterns"`
	InteractionPatterns []*InteractionPattern `json:"interaction_patterns"`
	Preferences         PreferenceWeights     `json:"preferences"`
	Expertise           ExpertiseScore        `json:"expertise"`
	Tone                CommunicationTone     `json:"tone"`
	TotalTurns          int                   `json:"total_turns"`
	UpdatedAtEpoch      int64                 `json:"updated_at_epoch"`
}

// NewUserBehaviorModel returns a model with neutral defaults.
func NewUserBehaviorModel(userID string) *UserBehaviorModel {
	return &UserBehaviorModel{
		UserID:      userID,
		Preferences: DefaultPreferenceWeights(),
		Expertise: ExpertiseScore{
			Overall: 0.4,
			Domains: make(map[string]float64),
		},
		Tone:           CommunicationTone{Formality: 0.5, Directness: 0.5},
		UpdatedAtEpoch: time.Now().UnixMilli(),
	}
}

// PredictionCategory selects a branch of behavior prediction.
type PredictionCategory string

const (
	PredictQueryType          PredictionCategory = "query-type"
	PredictContentPreference  PredictionCategory = "content-preference"
	PredictInteractionPattern PredictionCategory = "interaction-pattern"
	PredictTimingPattern      PredictionCategory = "timing-pattern"
)

// PredictionTimeframe indicates how soon a predicted action is expected.
type PredictionTimeframe string

const (
	TimeframeImmediate PredictionTimeframe = "immediate"
	TimeframeShort     PredictionTimeframe = "short"
	TimeframeLong      PredictionTimeframe = "long"
)

// BehaviorPrediction is a scored guess at what the user will want next.
// Ephemeral: generated on demand and cached briefly.
type BehaviorPrediction struct {
	Action     string              `json:"action"`
	Category   PredictionCategory  `json:"category"`
	Confidence float64             `json:"confidence"`
	Timeframe  PredictionTimeframe `json:"timeframe"`
	Reasoning  []string            `json:"reasoning"`
}

// ResponseStyle is the recommendation derived from preference weights.
type ResponseStyle struct {
	Style      string   `json:"style"`
	Reasoning  []string `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}
