package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/behavior"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/internal/db/sqlite"
	"github.com/skinclarityclub/insight-engine/internal/integration"
	"github.com/skinclarityclub/insight-engine/internal/semantic"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

type OrchestratorSuite struct {
	suite.Suite
	store *sqlite.Store
	ctx   context.Context
}

func (s *OrchestratorSuite) SetupTest() {
	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path: filepath.Join(s.T().TempDir(), "assistant.db"),
	})
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *OrchestratorSuite) newOrchestrator(sources ...integration.Source) *Orchestrator {
	if len(sources) == 0 {
		sources = []integration.Source{
			&integration.StaticSource{
				SourceName: integration.SourceCustomers,
				ByKind: map[string][]map[string]interface{}{
					"customers": {{"customer_id": 1, "segment": "smb"}},
				},
			},
		}
	}
	c := cache.NewMemory(time.Minute, time.Minute)
	oracle := access.NewStatic()
	return New(Config{
		Store:      s.store,
		Analyzer:   semantic.NewAnalyzer(nil, c, nil),
		Behavior:   behavior.NewEngine(s.store, c, nil),
		Integrator: integration.NewIntegrator(sources, c, oracle, nil, 4),
		Oracle:     oracle,
	})
}

func (s *OrchestratorSuite) TestQueryReturnsWellFormedResponse() {
	o := s.newOrchestrator()
	resp := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show me revenue trends for this quarter"})

	s.Require().NotNil(resp)
	s.NotEmpty(resp.Answer)
	s.NotEmpty(resp.SessionID)
	s.NotNil(resp.Analysis)
	s.NotNil(resp.Integration)
	s.False(resp.Degraded)
	s.GreaterOrEqual(resp.Confidence, 0.1)
	s.LessOrEqual(resp.Confidence, 1.0)
}

func (s *OrchestratorSuite) TestSessionContinuity() {
	o := s.newOrchestrator()
	first := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show me revenue trends"})
	o.Wait()

	second := o.Query(s.ctx, QueryRequest{UserID: "u1", SessionID: first.SessionID, Query: "break that down by product"})
	s.Equal(first.SessionID, second.SessionID)
	o.Wait()

	entries, err := s.store.SessionEntries(s.ctx, first.SessionID)
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *OrchestratorSuite) TestUnknownSessionOpensNewOne() {
	o := s.newOrchestrator()
	resp := o.Query(s.ctx, QueryRequest{UserID: "u1", SessionID: "no-such-session", Query: "show revenue"})
	s.NotEmpty(resp.SessionID)
	s.NotEqual("no-such-session", resp.SessionID)
}

func (s *OrchestratorSuite) TestAllSourcesFailingStillAnswers() {
	o := s.newOrchestrator(&integration.StaticSource{
		SourceName: integration.SourceCustomers,
		Err:        errors.New("connector down"),
	})
	resp := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show me revenue trends"})

	s.Require().NotNil(resp)
	s.True(resp.Degraded)
	s.Equal(apologyAnswer, resp.Answer)
	s.GreaterOrEqual(resp.Confidence, minConfidence)
}

func (s *OrchestratorSuite) TestNewSessionSeedsHistoryFromRecentTurns() {
	o := s.newOrchestrator()
	first := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show me revenue trends"})
	s.Require().NotEmpty(first.SessionID)
	o.Wait()

	// no session ID: a fresh session opens, carrying recent turns forward
	second := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "revenue trends by product"})
	s.Require().NotEqual(first.SessionID, second.SessionID)
	o.Wait()

	m, err := o.behavior.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.NotEmpty(m.InteractionPatterns, "second turn should classify against carried-over history")
}

func (s *OrchestratorSuite) TestTurnFeedsBehaviorModel() {
	o := s.newOrchestrator()
	o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show me revenue trends"})
	o.Wait()

	m, err := o.behavior.Snapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(1, m.TotalTurns)
	s.Len(m.QueryPatterns, 1)
}

func (s *OrchestratorSuite) TestFollowUpsDedupedAndCapped() {
	o := s.newOrchestrator()
	merged := o.mergeFollowUps(
		[]string{"compare revenue month over month", "Compare revenue month over month", "rank products"},
		&models.IntegrationResult{SuggestedQueries: []string{"compare revenue month over month", "a", "b", "c", "d"}},
	)
	s.Len(merged, 5)
	s.Equal("compare revenue month over month", merged[0])
	s.Equal("rank products", merged[1])
}

func (s *OrchestratorSuite) TestResponsesReachSubscriber() {
	o := s.newOrchestrator()
	var got *models.AssistantResponse
	o.OnResponse = func(r *models.AssistantResponse) { got = r }

	resp := o.Query(s.ctx, QueryRequest{UserID: "u1", Query: "show revenue"})
	s.Require().NotNil(got)
	s.Equal(resp.SessionID, got.SessionID)
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}
