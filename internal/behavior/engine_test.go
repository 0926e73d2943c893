package behavior

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/internal/db/sqlite"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

type EngineSuite struct {
	suite.Suite
	store  *sqlite.Store
	engine *Engine
	ctx    context.Context
}

func (s *EngineSuite) SetupTest() {
	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path: filepath.Join(s.T().TempDir(), "behavior.db"),
	})
	s.Require().NoError(err)
	s.store = store
	s.engine = NewEngine(store, cache.NewMemory(time.Minute, time.Minute), nil)
	s.ctx = context.Background()
}

func (s *EngineSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *EngineSuite) entry(userID, query string) *models.ConversationEntry {
	return &models.ConversationEntry{
		ID:                "e-" + query,
		SessionID:         "sess-1",
		UserID:            userID,
		TimestampEpoch:    time.Now().UnixMilli(),
		UserQuery:         query,
		AssistantResponse: "ok",
		QueryType:         models.QuerySimple,
	}
}

func (s *EngineSuite) analysis(complexity, confidence float64) *models.SemanticAnalysis {
	return &models.SemanticAnalysis{
		Intent: models.BusinessIntent{
			Category:   models.CategoryFinance,
			Complexity: complexity,
			Urgency:    models.UrgencyNormal,
		},
		Confidence: confidence,
	}
}

func (s *EngineSuite) TestNearDuplicateQueriesMergeIntoOnePattern() {
	a := s.analysis(0.4, 0.8)
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends"), nil))
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends!"), nil))
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "Show me revenue trends"), nil))

	m, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(m.QueryPatterns, 1)
	s.Equal(3, m.QueryPatterns[0].Frequency)
}

func (s *EngineSuite) TestDistinctQueriesOpenSeparatePatterns() {
	a := s.analysis(0.4, 0.8)
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends"), nil))
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "list open support tickets"), nil))

	m, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(m.QueryPatterns, 2)
}

func (s *EngineSuite) TestExpertiseGrowsWithComplexQueries() {
	before, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	start := before.Expertise.Domains["finance"]

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, s.analysis(0.9, 0.9), s.entry("u1", "cohort churn regression"), nil))
	}

	after, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Greater(after.Expertise.Domains["finance"], start)
	s.Greater(after.Expertise.Overall, 0.0)
}

func (s *EngineSuite) TestPreferenceNudgesClamped() {
	a := s.analysis(0.3, 0.7)
	for i := 0; i < 50; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "visualize revenue as a chart"), nil))
	}
	m, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.LessOrEqual(m.Preferences.VisualPreference, 1.0)
	s.Greater(m.Preferences.VisualPreference, 0.3)
}

func (s *EngineSuite) TestInteractionClassification() {
	history := []*models.ConversationEntry{
		s.entry("u1", "show me revenue trends"),
	}

	tests := []struct {
		name  string
		query string
		want  models.InteractionKind
	}{
		{"refinement", "revenue trends by product", models.InteractionSequence},
		{"pivot with shared context", "revenue impact of campaigns", models.InteractionBranching},
		{"unrelated", "list open support tickets", models.InteractionExploratory},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.Equal(tc.want, classifyTurn(tc.query, 0, history))
		})
	}
}

func (s *EngineSuite) TestCycleDetection() {
	history := []*models.ConversationEntry{
		s.entry("u1", "what about marketing spend"),
		s.entry("u1", "show me revenue trends"),
	}
	s.Equal(models.InteractionCycle, classifyTurn("show me revenue trends", 0, history))
}

func (s *EngineSuite) TestManyDistinctTopicsIsBranching() {
	// newest first: three turns with no shared vocabulary
	history := []*models.ConversationEntry{
		s.entry("u1", "rank marketing campaigns"),
		s.entry("u1", "list open support tickets"),
	}
	s.Equal(models.InteractionBranching, classifyTurn("show me revenue trends", 0, history))
}

func (s *EngineSuite) TestRisingComplexityIsExploratory() {
	older := s.entry("u1", "show revenue")
	older.Context = models.JSONMap{"complexity": 0.3}
	newer := s.entry("u1", "revenue trends by product")
	newer.Context = models.JSONMap{"complexity": 0.5}
	history := []*models.ConversationEntry{newer, older}

	// shared vocabulary would read as a refinement, but complexity climbs
	// every turn
	s.Equal(models.InteractionExploratory,
		classifyTurn("revenue trend regression by product cohort", 0.8, history))
}

func (s *EngineSuite) TestFlushPersistsSnapshot() {
	s.Require().NoError(s.engine.UpdateModel(s.ctx, s.analysis(0.5, 0.8), s.entry("u1", "show me revenue trends"), nil))
	s.Require().NoError(s.engine.Flush(s.ctx))

	loaded, err := s.store.LoadBehaviorSnapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	s.Equal(1, loaded.TotalTurns)
	s.Len(loaded.QueryPatterns, 1)
}

func (s *EngineSuite) TestEvictThenReloadFromSnapshot() {
	s.Require().NoError(s.engine.UpdateModel(s.ctx, s.analysis(0.5, 0.8), s.entry("u1", "show me revenue trends"), nil))
	s.Require().NoError(s.engine.Evict(s.ctx, "u1", true))

	m, err := s.engine.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(1, m.TotalTurns)
}

func (s *EngineSuite) TestPredictQueryTypesFromFrequentPatterns() {
	a := s.analysis(0.4, 0.8)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends"), nil))
	}

	preds, err := s.engine.Predict(s.ctx, "u1",
		PredictionContext{Query: "show me revenue trends", Category: models.CategoryFinance},
		[]models.PredictionCategory{models.PredictQueryType})
	s.Require().NoError(err)
	s.Require().NotEmpty(preds)
	s.Equal(models.PredictQueryType, preds[0].Category)
	s.Contains(preds[0].Action, "revenue trends")
	for i := 1; i < len(preds); i++ {
		s.LessOrEqual(preds[i].Confidence, preds[i-1].Confidence)
	}
}

func (s *EngineSuite) TestUrgentContextShortensPredictionTimeframe() {
	a := s.analysis(0.4, 0.8)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends"), nil))
	}

	preds, err := s.engine.Predict(s.ctx, "u1",
		PredictionContext{Urgency: models.UrgencyCritical},
		[]models.PredictionCategory{models.PredictQueryType})
	s.Require().NoError(err)
	s.Require().NotEmpty(preds)
	s.Equal(models.TimeframeImmediate, preds[0].Timeframe)
}

func (s *EngineSuite) TestBrevityCuesNudgeConciseness() {
	extractor := KeywordExtractor{}
	tests := []struct {
		name  string
		query string
	}{
		{"bare stem", "keep it brief"},
		{"adverb", "briefly, how did q2 go"},
		{"tl;dr", "tl;dr on the campaign results"},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			signals := extractor.Extract(s.entry("u1", tc.query), s.analysis(0.3, 0.7))
			var nudged bool
			for _, sig := range signals {
				if sig.Slider == SliderConciseness && sig.Delta > 0 {
					nudged = true
				}
			}
			s.True(nudged, "expected a conciseness signal for %q", tc.query)
		})
	}
}

func (s *EngineSuite) TestPredictionCacheHonorsConfiguredTTL() {
	now := time.Now()
	s.engine.SetClock(func() time.Time { return now })
	s.engine.SetPredictionTTL(time.Minute)
	cats := []models.PredictionCategory{models.PredictQueryType}

	a := s.analysis(0.4, 0.8)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "show me revenue trends"), nil))
	}
	first, err := s.engine.Predict(s.ctx, "u1", PredictionContext{}, cats)
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	// a second frequent pattern appears, but the bucket is still warm
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.engine.UpdateModel(s.ctx, a, s.entry("u1", "list open support tickets"), nil))
	}
	cached, err := s.engine.Predict(s.ctx, "u1", PredictionContext{}, cats)
	s.Require().NoError(err)
	s.Len(cached, 1)

	now = now.Add(2 * time.Minute)
	fresh, err := s.engine.Predict(s.ctx, "u1", PredictionContext{}, cats)
	s.Require().NoError(err)
	s.Len(fresh, 2)
}

func (s *EngineSuite) TestPredictFollowUpsFromPatternHistory() {
	a := s.analysis(0.4, 0.8)
	e := s.entry("u1", "show me revenue trends")
	e.FollowUp = "break it down by region"
	s.Require().NoError(s.engine.UpdateModel(s.ctx, a, e, nil))

	followUps, err := s.engine.PredictFollowUps(s.ctx, "u1", "show me revenue trends")
	s.Require().NoError(err)
	s.Contains(followUps, "break it down by region")
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}
