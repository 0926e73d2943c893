package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

type IntegratorSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *IntegratorSuite) SetupTest() {
	s.ctx = context.Background()
}

func financeAnalysis() *models.SemanticAnalysis {
	return &models.SemanticAnalysis{
		Query:    "show me revenue trends for this quarter",
		Language: "en",
		Intent: models.BusinessIntent{
			PrimaryIntent: "data retrieval",
			Category:      models.CategoryFinance,
			Urgency:       models.UrgencyNormal,
			Complexity:    0.4,
			Confidence:    0.8,
		},
		Entities: []models.BusinessEntity{
			{Text: "revenue", Type: models.EntityMetric, Relevance: 0.9},
			{Text: "quarter", Type: models.EntityDateRange, Relevance: 0.7},
		},
		Confidence: 0.8,
	}
}

func commerceSource(records int) *StaticSource {
	rows := make([]map[string]interface{}, records)
	for i := range rows {
		rows[i] = map[string]interface{}{"order_id": i, "total": 100.0, "email": "a@b.c"}
	}
	return &StaticSource{SourceName: SourceCommerce, ByKind: map[string][]map[string]interface{}{"orders": rows}}
}

func customerSource(records int) *StaticSource {
	rows := make([]map[string]interface{}, records)
	for i := range rows {
		rows[i] = map[string]interface{}{"customer_id": i, "segment": "smb", "revenue": 5000.0}
	}
	return &StaticSource{SourceName: SourceCustomers, ByKind: map[string][]map[string]interface{}{"customers": rows}}
}

func (s *IntegratorSuite) newIntegrator(sources ...Source) *Integrator {
	return NewIntegrator(sources, cache.NewMemory(time.Minute, time.Minute), access.NewStatic(), nil, 4)
}

func (s *IntegratorSuite) TestRelevanceSortedNonIncreasing() {
	in := s.newIntegrator(commerceSource(3), customerSource(2),
		&StaticSource{SourceName: SourceCourses}, &StaticSource{SourceName: SourceMarketing})

	relevance := in.ScoreSources(financeAnalysis())
	s.Require().Len(relevance, 4)
	for i := 1; i < len(relevance); i++ {
		s.GreaterOrEqual(relevance[i-1].Score, relevance[i].Score)
	}
	for _, rel := range relevance {
		s.GreaterOrEqual(rel.Score, 0.0)
		s.LessOrEqual(rel.Score, 1.0)
	}
}

func (s *IntegratorSuite) TestCustomerStoreBaseline() {
	in := s.newIntegrator(customerSource(2))
	relevance := in.ScoreSources(financeAnalysis())
	s.Require().Len(relevance, 1)
	s.InDelta(customerStoreBaseline, relevance[0].Score, 0.001)
}

func (s *IntegratorSuite) TestCriticalUrgencyFocusesTopSource() {
	in := s.newIntegrator(commerceSource(3), customerSource(2), &StaticSource{SourceName: SourceMarketing})
	analysis := financeAnalysis()
	analysis.Intent.Urgency = models.UrgencyCritical

	relevance := in.ScoreSources(analysis)
	s.Equal(models.PriorityHigh, relevance[0].Priority)
	for _, rel := range relevance[1:] {
		s.Equal(models.PriorityLow, rel.Priority)
	}
}

func (s *IntegratorSuite) TestIntegrateMergesSources() {
	in := s.newIntegrator(commerceSource(3), customerSource(2))
	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()})

	s.Require().True(result.Success)
	s.Equal(5, result.Metadata.TotalRecords)
	s.Equal([]string{SourceCommerce, SourceCustomers}, result.Metadata.SourcesQueried)
	s.NotEmpty(result.Insights)
	s.NotEmpty(result.CrossSourceSummary)
}

func (s *IntegratorSuite) TestRepeatedQueryHitsCache() {
	commerce := commerceSource(3)
	in := s.newIntegrator(commerce, customerSource(2))
	req := Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()}

	now := time.Now()
	in.SetClock(func() time.Time { return now })

	first := in.Integrate(s.ctx, req)
	s.Require().True(first.Success)
	s.Equal(0, first.Metadata.CacheHits)
	fetchesAfterFirst := commerce.Fetches()

	second := in.Integrate(s.ctx, req)
	s.Require().True(second.Success)
	s.GreaterOrEqual(second.Metadata.CacheHits, 1)
	s.Equal(first.Metadata.SourcesQueried, second.Metadata.SourcesQueried)
	s.Equal(fetchesAfterFirst, commerce.Fetches(), "cache hit must bypass fetch")
}

func (s *IntegratorSuite) TestOneFailingSourceIsPartialSuccess() {
	broken := &StaticSource{SourceName: SourceCommerce, Err: errors.New("connector down")}
	in := s.newIntegrator(broken, customerSource(2))

	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()})
	s.Require().True(result.Success)
	s.Require().Len(result.Metadata.Errors, 1)
	s.Equal(models.ErrSourceUnavailable, result.Metadata.Errors[0].Code)
	s.Contains(result.Data, SourceCustomers)
	s.NotContains(result.Data, SourceCommerce)
}

func (s *IntegratorSuite) TestAllSourcesFailingDegrades() {
	in := s.newIntegrator(
		&StaticSource{SourceName: SourceCommerce, Err: errors.New("down")},
		&StaticSource{SourceName: SourceCustomers, Err: errors.New("down")},
	)

	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()})
	s.False(result.Success)
	s.True(result.Metadata.Degraded)

	var critical bool
	for _, e := range result.Metadata.Errors {
		if e.Severity == models.SeverityCritical {
			critical = true
		}
	}
	s.True(critical, "expected one critical error")
}

func (s *IntegratorSuite) TestSensitiveFieldsFilteredForViewer() {
	oracle := &access.Static{
		Roles:    map[string]access.Role{"u1": access.RoleViewer},
		Features: map[string]bool{},
	}
	in := NewIntegrator([]Source{commerceSource(1), customerSource(1)},
		cache.NewMemory(time.Minute, time.Minute), oracle, nil, 4)
	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleViewer, Analysis: financeAnalysis()})

	s.Require().True(result.Success)
	for _, rec := range result.Data[SourceCommerce].Records {
		s.NotContains(rec, "email")
		s.Contains(rec, "order_id")
	}
	for _, rec := range result.Data[SourceCustomers].Records {
		s.NotContains(rec, "revenue")
		s.Contains(rec, "segment")
	}
}

func (s *IntegratorSuite) TestPrivilegedRoleSeesEverything() {
	in := s.newIntegrator(commerceSource(1))
	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAnalyst, Analysis: financeAnalysis()})

	s.Require().True(result.Success)
	for _, rec := range result.Data[SourceCommerce].Records {
		s.Contains(rec, "email")
	}
}

func (s *IntegratorSuite) TestFreeTierGetsNoSuggestions() {
	oracle := access.NewStatic()
	oracle.Tiers["u1"] = access.TierFree
	in := NewIntegrator([]Source{commerceSource(2), customerSource(2)},
		cache.NewMemory(time.Minute, time.Minute), oracle, nil, 4)

	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()})
	s.Require().True(result.Success)
	s.Empty(result.SuggestedSources)
	s.Empty(result.SuggestedQueries)
}

func (s *IntegratorSuite) TestPaidTierGetsQuerySuggestions() {
	in := s.newIntegrator(commerceSource(2), customerSource(2))
	result := in.Integrate(s.ctx, Request{UserID: "u1", Role: access.RoleAdmin, Analysis: financeAnalysis()})

	s.Require().True(result.Success)
	s.Contains(result.SuggestedQueries, "compare revenue month over month")
}

func (s *IntegratorSuite) TestQueryWindowFollowsDateRange() {
	in := s.newIntegrator(commerceSource(1))
	now := time.Now()
	in.SetClock(func() time.Time { return now })

	queries := in.BuildQueries(SourceCommerce, financeAnalysis())
	s.Require().NotEmpty(queries)
	// quarter entity widens the window to 90 days; edges are bucketed to
	// the cache TTL
	s.WithinDuration(now.AddDate(0, 0, -90), queries[0].WindowStart, resultTTL)
	s.WithinDuration(now, queries[0].WindowEnd, resultTTL)
}

func (s *IntegratorSuite) TestConfiguredResultTTLBucketsWindow() {
	in := s.newIntegrator(commerceSource(1))
	in.SetResultTTL(time.Hour)
	now := time.Now()
	in.SetClock(func() time.Time { return now })

	queries := in.BuildQueries(SourceCommerce, financeAnalysis())
	s.Require().NotEmpty(queries)
	s.Equal(now.Truncate(time.Hour), queries[0].WindowEnd)
}

func TestIntegratorSuite(t *testing.T) {
	suite.Run(t, new(IntegratorSuite))
}
