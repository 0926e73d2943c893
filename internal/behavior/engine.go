// Package behavior maintains per-user behavior models: recurring query
// patterns, interaction shapes, preference weights and expertise scores.
// Models live in memory, load lazily from snapshots and flush periodically;
// losing one degrades prediction quality, never correctness.
package behavior

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/internal/db"
	"github.com/skinclarityclub/insight-engine/pkg/models"
	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

// expertiseGain scales how fast complex queries raise domain expertise.
const expertiseGain = 0.02

// Engine owns the in-memory behavior models.
type Engine struct {
	store     db.Store
	cache     cache.Cache
	extractor SignalExtractor
	ttl       time.Duration
	now       func() time.Time

	mu     sync.Mutex
	models map[string]*modelEntry
}

type modelEntry struct {
	model *models.UserBehaviorModel
	dirty bool
}

// NewEngine wires the engine. extractor may be nil to use KeywordExtractor.
func NewEngine(store db.Store, c cache.Cache, extractor SignalExtractor) *Engine {
	if extractor == nil {
		extractor = KeywordExtractor{}
	}
	e := &Engine{
		store:     store,
		cache:     c,
		extractor: extractor,
		ttl:       predictionTTL,
		now:       time.Now,
		models:    make(map[string]*modelEntry),
	}
	return e
}

// SetClock overrides the engine clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetPredictionTTL overrides how long served predictions stay cached.
func (e *Engine) SetPredictionTTL(ttl time.Duration) {
	if ttl > 0 {
		e.ttl = ttl
	}
}

// model returns the (locked-caller-only) entry for userID, loading the
// snapshot on first touch.
func (e *Engine) model(ctx context.Context, userID string) *modelEntry {
	if entry, ok := e.models[userID]; ok {
		return entry
	}
	m, err := e.store.LoadBehaviorSnapshot(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("behavior snapshot load failed, starting fresh")
	}
	if m == nil {
		m = models.NewUserBehaviorModel(userID)
	}
	entry := &modelEntry{model: m}
	e.models[userID] = entry
	return entry
}

// Snapshot returns a copy-free view of the user's model for read-only use.
func (e *Engine) Snapshot(ctx context.Context, userID string) (*models.UserBehaviorModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model(ctx, userID).model, nil
}

// UpdateModel folds one completed turn into the user's model. history is the
// session's prior entries, newest first.
func (e *Engine) UpdateModel(ctx context.Context, analysis *models.SemanticAnalysis, entry *models.ConversationEntry, history []*models.ConversationEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	me := e.model(ctx, entry.UserID)
	m := me.model
	now := e.now()

	pattern := e.foldQueryPattern(ctx, m, entry, analysis, now)
	e.detectInteraction(ctx, m, entry, analysis.Intent.Complexity, history, now)

	for _, sig := range e.extractor.Extract(entry, analysis) {
		applySignal(&m.Preferences, sig)
	}
	m.Preferences.Clamp()
	toneSignals(&m.Tone, entry.UserQuery)

	domain := string(analysis.Intent.Category)
	m.Expertise.Domains[domain] = models.Clamp01(
		m.Expertise.Domains[domain] + expertiseGain*analysis.Intent.Complexity*analysis.Confidence)
	m.Expertise.RecomputeOverall()

	m.TotalTurns++
	m.UpdatedAtEpoch = now.UnixMilli()
	me.dirty = true

	if pattern != nil {
		if err := e.store.UpsertQueryPattern(ctx, pattern); err != nil {
			log.Warn().Err(err).Str("user_id", entry.UserID).Msg("query pattern persist failed")
		}
	}
	return nil
}

// foldQueryPattern merges the turn into an existing near-duplicate pattern
// or opens a new one, keeping at most MaxQueryPatterns by frequency.
func (e *Engine) foldQueryPattern(_ context.Context, m *models.UserBehaviorModel, entry *models.ConversationEntry, analysis *models.SemanticAnalysis, now time.Time) *models.QueryPattern {
	var match *models.QueryPattern
	for _, p := range m.QueryPatterns {
		if similarity.IsMatch(entry.UserQuery, p.QueryText) {
			match = p
			break
		}
	}
	if match == nil {
		match = &models.QueryPattern{
			ID:             uuid.NewString(),
			UserID:         entry.UserID,
			QueryText:      entry.UserQuery,
			CreatedAtEpoch: now.UnixMilli(),
		}
		m.QueryPatterns = append(m.QueryPatterns, match)
	}
	match.Record(now, analysis.Confidence)
	if entry.FollowUp != "" && !contains(match.FollowUps, entry.FollowUp) {
		match.FollowUps = append(match.FollowUps, entry.FollowUp)
	}

	if len(m.QueryPatterns) > models.MaxQueryPatterns {
		sort.SliceStable(m.QueryPatterns, func(i, j int) bool {
			return m.QueryPatterns[i].Frequency > m.QueryPatterns[j].Frequency
		})
		m.QueryPatterns = m.QueryPatterns[:models.MaxQueryPatterns]
	}
	return match
}

// detectInteraction classifies the turn against session history and records
// non-trivial shapes.
func (e *Engine) detectInteraction(ctx context.Context, m *models.UserBehaviorModel, entry *models.ConversationEntry, complexity float64, history []*models.ConversationEntry, now time.Time) {
	if len(history) == 0 {
		return
	}

	kind := classifyTurn(entry.UserQuery, complexity, history)

	// only record shapes with at least two turns of evidence
	steps := make(models.JSONStringArray, 0, 5)
	for i := len(history) - 1; i >= 0 && len(steps) < 4; i-- {
		steps = append(steps, history[i].UserQuery)
	}
	steps = append(steps, entry.UserQuery)

	pattern := &models.InteractionPattern{
		ID:              uuid.NewString(),
		UserID:          entry.UserID,
		SessionID:       entry.SessionID,
		Kind:            kind,
		Length:          len(steps),
		Support:         1,
		Steps:           steps,
		DetectedAtEpoch: now.UnixMilli(),
	}
	m.InteractionPatterns = append(m.InteractionPatterns, pattern)
	if len(m.InteractionPatterns) > models.MaxQueryPatterns {
		m.InteractionPatterns = m.InteractionPatterns[len(m.InteractionPatterns)-models.MaxQueryPatterns:]
	}

	if err := e.store.AddInteractionPattern(ctx, pattern); err != nil {
		log.Warn().Err(err).Str("user_id", entry.UserID).Msg("interaction pattern persist failed")
	}
}

// classifyTurn labels how the query relates to session history (newest
// first): revisiting an earlier query is a cycle, three or more distinct
// topics across the recent turns is branching, steadily rising complexity
// is exploratory, then term overlap with the previous turn decides between
// refinement, pivot and topic jump.
func classifyTurn(query string, complexity float64, history []*models.ConversationEntry) models.InteractionKind {
	for i, prev := range history {
		if i == 0 {
			continue
		}
		if similarity.IsMatch(query, prev.UserQuery) {
			return models.InteractionCycle
		}
	}

	if topicCount(query, history) >= 3 {
		return models.InteractionBranching
	}
	if complexityRising(complexity, history) {
		return models.InteractionExploratory
	}

	overlap := similarity.Jaccard(similarity.Terms(query), similarity.Terms(history[0].UserQuery))
	switch {
	case overlap >= 0.5:
		return models.InteractionSequence
	case overlap > 0:
		return models.InteractionBranching
	default:
		return models.InteractionExploratory
	}
}

// topicCount clusters the current query and the recent turns by shared
// terms; turns sharing no term with any cluster open a new topic.
func topicCount(query string, history []*models.ConversationEntry) int {
	texts := []string{query}
	for i := 0; i < len(history) && i < 4; i++ {
		texts = append(texts, history[i].UserQuery)
	}

	var clusters []map[string]bool
	for _, text := range texts {
		terms := similarity.Terms(text)
		if len(terms) == 0 {
			continue
		}
		joined := false
		for _, rep := range clusters {
			if similarity.Jaccard(terms, rep) > 0 {
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, terms)
		}
	}
	return len(clusters)
}

// complexityRising reports strictly increasing complexity across the last
// few turns. Needs at least two prior turns with recorded complexity.
func complexityRising(current float64, history []*models.ConversationEntry) bool {
	points := []float64{current}
	for i := 0; i < len(history) && len(points) < 4; i++ {
		c := history[i].Complexity()
		if c == 0 {
			break
		}
		points = append(points, c)
	}
	if len(points) < 3 {
		return false
	}
	// points run newest to oldest
	for i := 0; i+1 < len(points); i++ {
		if points[i] <= points[i+1] {
			return false
		}
	}
	return true
}

// Flush persists every dirty model. Called periodically and on shutdown.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for userID, entry := range e.models {
		if !entry.dirty {
			continue
		}
		if err := e.store.SaveBehaviorSnapshot(ctx, entry.model); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("behavior snapshot flush failed")
			lastErr = err
			continue
		}
		entry.dirty = false
	}
	return lastErr
}

// Evict drops a user's in-memory model, flushing it first if dirty.
// Used by privacy erasure.
func (e *Engine) Evict(ctx context.Context, userID string, persist bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.models[userID]
	if !ok {
		return nil
	}
	if persist && entry.dirty {
		if err := e.store.SaveBehaviorSnapshot(ctx, entry.model); err != nil {
			return err
		}
	}
	delete(e.models, userID)
	return nil
}

func contains(list models.JSONStringArray, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
