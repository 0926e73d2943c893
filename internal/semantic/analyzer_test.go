package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

type AnalyzerSuite struct {
	suite.Suite
	analyzer *Analyzer
}

func (s *AnalyzerSuite) SetupTest() {
	s.analyzer = NewAnalyzer(nil, cache.NewMemory(time.Minute, time.Minute), nil)
}

func (s *AnalyzerSuite) TestRevenueTrendQuery() {
	analysis := s.analyzer.Analyze(context.Background(), Request{
		UserID: "u1",
		Query:  "Show me the revenue trends for this quarter",
		Role:   access.RoleAnalyst,
	})

	s.Require().NotNil(analysis)
	s.False(analysis.Degraded)
	s.Equal(models.CategoryFinance, analysis.Intent.Category)
	s.Equal("data retrieval", analysis.Intent.PrimaryIntent)
	s.Len(analysis.Embedding, EmbeddingDim)

	var revenue *models.BusinessEntity
	for i := range analysis.Entities {
		if analysis.Entities[i].Text == "revenue" {
			revenue = &analysis.Entities[i]
		}
	}
	s.Require().NotNil(revenue, "revenue entity expected")
	s.Equal(models.EntityMetric, revenue.Type)
	s.GreaterOrEqual(revenue.Relevance, 0.8)
}

func (s *AnalyzerSuite) TestEmptyQueryFallsBack() {
	analysis := s.analyzer.Analyze(context.Background(), Request{UserID: "u1", Query: "   "})
	s.Require().NotNil(analysis)
	s.True(analysis.Degraded)
	s.Equal("general inquiry", analysis.Intent.PrimaryIntent)
	s.InDelta(0.3, analysis.Confidence, 0.001)
}

func (s *AnalyzerSuite) TestAttentionWeightsStrictlyDecrease() {
	weights := attentionWeights(6, access.RoleUser)
	s.Require().Len(weights, 6)
	for i := 1; i < len(weights); i++ {
		s.Less(weights[i], weights[i-1], "weight %d should decay", i)
	}
	s.Greater(weights[0], 0.0)
}

func (s *AnalyzerSuite) TestRoleScalesAttention() {
	admin := attentionWeights(3, access.RoleAdmin)
	viewer := attentionWeights(3, access.RoleViewer)
	for i := range admin {
		s.Greater(admin[i], viewer[i])
	}
}

func (s *AnalyzerSuite) TestUrgencyDetection() {
	tests := []struct {
		name  string
		query string
		want  models.Urgency
	}{
		{"critical phrase", "critical drop in conversion rates, need numbers", models.UrgencyCritical},
		{"asap", "send me the churn report asap", models.UrgencyHigh},
		{"relaxed", "whenever you get a chance, list last month's campaigns", models.UrgencyLow},
		{"default", "show me product engagement", models.UrgencyNormal},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			analysis := s.analyzer.Analyze(context.Background(), Request{UserID: "u1", Query: tc.query})
			s.Equal(tc.want, analysis.Intent.Urgency)
		})
	}
}

func (s *AnalyzerSuite) TestComplexityRisesWithJargon() {
	simple := s.analyzer.Analyze(context.Background(), Request{UserID: "u1", Query: "show revenue"})
	dense := s.analyzer.Analyze(context.Background(), Request{
		UserID: "u1",
		Query:  "run a cohort retention regression with attribution segmentation and churn seasonality across the funnel",
	})
	s.Greater(dense.Intent.Complexity, simple.Intent.Complexity)
	s.GreaterOrEqual(dense.Intent.RequiredExpertise.Rank(), simple.Intent.RequiredExpertise.Rank())
}

func (s *AnalyzerSuite) TestHistoryRaisesContextImportance() {
	history := []*models.ConversationEntry{
		{UserQuery: "show me revenue trends", AssistantResponse: "revenue grew 12% this quarter"},
		{UserQuery: "what about marketing spend", AssistantResponse: "spend was flat"},
	}
	followUp := s.analyzer.Analyze(context.Background(), Request{
		UserID:  "u1",
		Query:   "break down that revenue growth by product",
		History: history,
		Role:    access.RoleUser,
	})
	cold := s.analyzer.Analyze(context.Background(), Request{
		UserID: "u1",
		Query:  "break down that revenue growth by product",
		Role:   access.RoleUser,
	})
	s.Greater(followUp.ContextualImportance, cold.ContextualImportance)
	s.Len(followUp.AttentionWeights, len(history))
}

func (s *AnalyzerSuite) TestDomainRelevanceNormalized() {
	analysis := s.analyzer.Analyze(context.Background(), Request{
		UserID: "u1",
		Query:  "compare campaign engagement against revenue and profit margins",
	})
	var total float64
	for _, v := range analysis.DomainRelevance {
		total += v
	}
	s.InDelta(1.0, total, 0.001)
}

func (s *AnalyzerSuite) TestEntityRelationships() {
	analysis := s.analyzer.Analyze(context.Background(), Request{
		UserID: "u1",
		Query:  "revenue for the quarter",
	})
	var found bool
	for _, rel := range analysis.Relationships {
		if rel.Source == "revenue" && rel.Target == "quarter" {
			found = true
			s.Equal("measured_over", rel.Relation)
		}
	}
	s.True(found, "expected revenue->quarter relationship")
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	e := HashingEmbedder{}
	a, err := e.Embed(context.Background(), "show revenue trends", "en", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), "show revenue trends", "en", 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatalf("vectors diverge at %d", i)
		}
	}
}
