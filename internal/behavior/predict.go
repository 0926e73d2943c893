package behavior

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/models"
	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

// predictionTTL is the default bound on staleness of served predictions.
const predictionTTL = 5 * time.Minute

// maxFollowUps caps suggested follow-up queries per response.
const maxFollowUps = 5

// PredictionContext carries the current turn's signals so predictions lean
// toward what the user is doing right now.
type PredictionContext struct {
	Query    string
	Category models.BusinessCategory
	Urgency  models.Urgency
}

// Predict returns scored predictions for the requested categories (all
// categories when empty), sorted by confidence descending. Results are
// cached per (user, categories, context category) in five-minute buckets.
func (e *Engine) Predict(ctx context.Context, userID string, pctx PredictionContext, categories []models.PredictionCategory) ([]models.BehaviorPrediction, error) {
	key := predictionKey(userID, pctx, categories, e.now(), e.ttl)
	var cached []models.BehaviorPrediction
	if hit, err := e.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	m, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	want := map[models.PredictionCategory]bool{}
	for _, c := range categories {
		want[c] = true
	}
	all := len(want) == 0

	var preds []models.BehaviorPrediction
	if all || want[models.PredictQueryType] {
		preds = append(preds, e.predictQueryTypes(m, pctx)...)
	}
	if all || want[models.PredictTimingPattern] {
		preds = append(preds, e.predictTiming(m)...)
	}
	if all || want[models.PredictContentPreference] {
		preds = append(preds, predictContent(m)...)
	}
	if all || want[models.PredictInteractionPattern] {
		preds = append(preds, predictInteraction(m)...)
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})

	if err := e.cache.Set(ctx, key, preds, e.ttl); err != nil {
		log.Debug().Err(err).Msg("prediction cache write failed")
	}
	return preds, nil
}

func (e *Engine) predictQueryTypes(m *models.UserBehaviorModel, pctx PredictionContext) []models.BehaviorPrediction {
	patterns := topPatterns(m.QueryPatterns, 3)
	var preds []models.BehaviorPrediction
	for _, p := range patterns {
		conf := search.PredictivePower(p.Frequency, p.Confidence)
		if pctx.Query != "" {
			// patterns overlapping the live query are better bets
			overlap := similarity.WordOverlap(pctx.Query, p.QueryText)
			conf = models.Clamp01(conf * (0.9 + 0.2*overlap))
		}
		if conf < 0.2 {
			continue
		}
		timeframe := models.TimeframeShort
		if pctx.Urgency.Rank() >= models.UrgencyHigh.Rank() {
			timeframe = models.TimeframeImmediate
		}
		preds = append(preds, models.BehaviorPrediction{
			Action:     fmt.Sprintf("likely to ask about: %s", p.QueryText),
			Category:   models.PredictQueryType,
			Confidence: conf,
			Timeframe:  timeframe,
			Reasoning:  []string{fmt.Sprintf("asked %d similar queries before", p.Frequency)},
		})
	}
	return preds
}

func (e *Engine) predictTiming(m *models.UserBehaviorModel) []models.BehaviorPrediction {
	now := e.now()
	hour := now.Hour()
	var preds []models.BehaviorPrediction
	for _, p := range topPatterns(m.QueryPatterns, 5) {
		if len(p.HourHistogram) != 24 || p.Frequency < 3 {
			continue
		}
		share := float64(p.HourHistogram[hour]) / float64(p.Frequency)
		if share < 0.5 {
			continue
		}
		preds = append(preds, models.BehaviorPrediction{
			Action:     fmt.Sprintf("usually asks %q around this hour", p.QueryText),
			Category:   models.PredictTimingPattern,
			Confidence: models.Clamp01(share * p.Confidence),
			Timeframe:  models.TimeframeImmediate,
			Reasoning:  []string{fmt.Sprintf("%.0f%% of occurrences fall in hour %d", share*100, hour)},
		})
	}
	return preds
}

func predictContent(m *models.UserBehaviorModel) []models.BehaviorPrediction {
	w := m.Preferences
	turns := float64(m.TotalTurns)
	// preference predictions only once there is some evidence
	if turns < 3 {
		return nil
	}
	evidence := models.Clamp01(turns / 20)

	var preds []models.BehaviorPrediction
	add := func(cond bool, action, reason string, strength float64) {
		if !cond {
			return
		}
		preds = append(preds, models.BehaviorPrediction{
			Action:     action,
			Category:   models.PredictContentPreference,
			Confidence: models.Clamp01(strength * evidence),
			Timeframe:  models.TimeframeLong,
			Reasoning:  []string{reason},
		})
	}
	add(w.VisualPreference >= 0.6, "will want charts with the data",
		"visual preference trending high", w.VisualPreference)
	add(w.TechnicalDepth >= 0.7, "will want methodology and technical depth",
		"technical depth trending high", w.TechnicalDepth)
	add(w.AnalysisDepth >= 0.7, "will want deep analysis, not summaries",
		"analysis depth trending high", w.AnalysisDepth)
	add(w.Conciseness >= 0.5, "will want short answers first",
		"conciseness trending high", w.Conciseness)
	add(w.Proactivity >= 0.7, "will welcome proactive suggestions",
		"proactivity trending high", w.Proactivity)
	return preds
}

func predictInteraction(m *models.UserBehaviorModel) []models.BehaviorPrediction {
	if len(m.InteractionPatterns) == 0 {
		return nil
	}
	counts := map[models.InteractionKind]int{}
	for _, p := range m.InteractionPatterns {
		counts[p.Kind]++
	}
	var top models.InteractionKind
	var topCount int
	for _, kind := range []models.InteractionKind{
		models.InteractionSequence, models.InteractionCycle,
		models.InteractionBranching, models.InteractionExploratory,
	} {
		if counts[kind] > topCount {
			top, topCount = kind, counts[kind]
		}
	}
	if topCount == 0 {
		return nil
	}

	actions := map[models.InteractionKind]string{
		models.InteractionSequence:    "tends to drill down on the previous answer",
		models.InteractionCycle:       "tends to revisit earlier questions",
		models.InteractionBranching:   "tends to pivot to related topics",
		models.InteractionExploratory: "tends to jump between unrelated topics",
	}
	share := float64(topCount) / float64(len(m.InteractionPatterns))
	return []models.BehaviorPrediction{{
		Action:     actions[top],
		Category:   models.PredictInteractionPattern,
		Confidence: models.Clamp01(share * models.Clamp01(float64(len(m.InteractionPatterns))/10)),
		Timeframe:  models.TimeframeShort,
		Reasoning:  []string{fmt.Sprintf("%d of %d observed shapes are %s", topCount, len(m.InteractionPatterns), top)},
	}}
}

// PredictFollowUps suggests up to five follow-up queries for the current
// query, drawn from recorded pattern follow-ups.
func (e *Engine) PredictFollowUps(ctx context.Context, userID, query string) ([]string, error) {
	m, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	appendFollowUps := func(p *models.QueryPattern) {
		for _, f := range p.FollowUps {
			key := strings.ToLower(strings.TrimSpace(f))
			if key == "" || seen[key] || len(out) >= maxFollowUps {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
	}

	// follow-ups of the matching pattern first, then of frequent patterns
	for _, p := range m.QueryPatterns {
		if similarity.IsMatch(query, p.QueryText) {
			appendFollowUps(p)
		}
	}
	for _, p := range topPatterns(m.QueryPatterns, 5) {
		if len(out) >= maxFollowUps {
			break
		}
		appendFollowUps(p)
	}
	return out, nil
}

// RecommendedStyle derives a response style from the model and profile.
func (e *Engine) RecommendedStyle(ctx context.Context, userID string, profile *models.UserProfile) (*models.ResponseStyle, error) {
	m, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	style := string(models.StyleConsultative)
	if profile != nil && profile.Communication != "" {
		style = string(profile.Communication)
	}
	var reasons []string

	w := m.Preferences
	switch {
	case m.Tone.Directness >= 0.7 && w.Conciseness >= 0.3:
		style = string(models.StyleDirect)
		reasons = append(reasons, "direct tone and preference for short answers")
	case m.Tone.Formality >= 0.7:
		style = string(models.StyleFormal)
		reasons = append(reasons, "consistently formal phrasing")
	case m.Tone.Formality <= 0.3:
		style = string(models.StyleCasual)
		reasons = append(reasons, "consistently casual phrasing")
	}

	if w.TechnicalDepth >= 0.7 {
		reasons = append(reasons, "include technical depth")
	}
	if w.VisualPreference >= 0.6 {
		reasons = append(reasons, "prefer visual presentation")
	}
	if w.AnalysisDepth >= 0.7 {
		reasons = append(reasons, "go deep rather than summarize")
	} else if w.Conciseness >= 0.5 {
		reasons = append(reasons, "lead with the short answer")
	}

	confidence := models.Clamp01(0.3 + float64(m.TotalTurns)*0.03)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return &models.ResponseStyle{
		Style:      style,
		Reasoning:  reasons,
		Confidence: confidence,
	}, nil
}

func topPatterns(patterns []*models.QueryPattern, n int) []*models.QueryPattern {
	sorted := make([]*models.QueryPattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Frequency > sorted[j].Frequency
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func predictionKey(userID string, pctx PredictionContext, categories []models.PredictionCategory, now time.Time, ttl time.Duration) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = string(c)
	}
	sort.Strings(parts)
	bucket := now.Unix() / int64(ttl/time.Second)
	return fmt.Sprintf("pred:%s:%s:%s:%s:%d",
		userID, strings.Join(parts, ","), pctx.Category, pctx.Urgency, bucket)
}
