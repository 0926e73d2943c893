package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	var err error
	s.store, err = NewStore(StoreConfig{
		Path:          filepath.Join(s.T().TempDir(), "engine.db"),
		PseudonymSalt: "test-salt",
	})
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestGetProfile_Missing() {
	profile, err := s.store.GetProfile(s.ctx, "nobody")
	s.Require().NoError(err)
	assert.Nil(s.T(), profile)
}

func (s *StoreSuite) TestUpsertProfile_CreateThenUpdate() {
	created, err := s.store.UpsertProfile(s.ctx, &models.ProfilePatch{UserID: "u1"})
	s.Require().NoError(err)
	assert.Equal(s.T(), models.ExpertiseIntermediate, created.Expertise)

	expert := models.ExpertiseExpert
	focus := models.JSONStringArray{"finance"}
	updated, err := s.store.UpsertProfile(s.ctx, &models.ProfilePatch{
		UserID:        "u1",
		Expertise:     &expert,
		BusinessFocus: &focus,
	})
	s.Require().NoError(err)
	assert.Equal(s.T(), models.ExpertiseExpert, updated.Expertise)
	assert.Equal(s.T(), focus, updated.BusinessFocus)

	fetched, err := s.store.GetProfile(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(fetched)
	assert.Equal(s.T(), models.ExpertiseExpert, fetched.Expertise)
	assert.Equal(s.T(), created.CreatedAtEpoch, fetched.CreatedAtEpoch)
}

func (s *StoreSuite) TestSession_LifecycleAndInvariant() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)

	s.Require().NoError(s.store.TouchSession(s.ctx, session.SessionID, "analyze revenue", []string{"revenue"}))

	fetched, err := s.store.GetSession(s.ctx, session.SessionID)
	s.Require().NoError(err)
	s.Require().NotNil(fetched)
	assert.Equal(s.T(), "analyze revenue", fetched.UserIntent)
	assert.Equal(s.T(), models.JSONStringArray{"revenue"}, fetched.ActiveTopics)
	assert.GreaterOrEqual(s.T(), fetched.LastActivityEpoch, fetched.StartTimeEpoch)
}

func (s *StoreSuite) TestExpireSessions() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)

	// Nothing is old enough yet.
	n, err := s.store.ExpireSessions(s.ctx, time.Hour)
	s.Require().NoError(err)
	assert.Zero(s.T(), n)

	// With a zero inactivity window everything active expires.
	time.Sleep(5 * time.Millisecond)
	n, err = s.store.ExpireSessions(s.ctx, 0)
	s.Require().NoError(err)
	assert.EqualValues(s.T(), 1, n)

	fetched, err := s.store.GetSession(s.ctx, session.SessionID)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.SessionStatusExpired, fetched.Status)
}

func (s *StoreSuite) TestAppendConversationEntry_IdempotentAndOrdered() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)

	entry := &models.ConversationEntry{
		ID:             "e1",
		SessionID:      session.SessionID,
		UserID:         "u1",
		UserQuery:      "show revenue trends",
		QueryType:      models.QuerySimple,
		Confidence:     0.9,
		TimestampEpoch: 1000,
	}
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, entry))
	// Replaying the same entry must not duplicate it.
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, entry))

	second := &models.ConversationEntry{
		ID:             "e2",
		SessionID:      session.SessionID,
		UserID:         "u1",
		UserQuery:      "break it down by product",
		QueryType:      models.QueryComplex,
		Confidence:     0.7,
		TimestampEpoch: 2000,
	}
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, second))

	ordered, err := s.store.SessionEntries(s.ctx, session.SessionID)
	s.Require().NoError(err)
	s.Require().Len(ordered, 2)
	assert.Equal(s.T(), "e1", ordered[0].ID)
	assert.Equal(s.T(), "e2", ordered[1].ID)

	recent, err := s.store.RecentEntries(s.ctx, "u1", 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	assert.Equal(s.T(), "e2", recent[0].ID)
}

func (s *StoreSuite) TestQueryPattern_UpsertAndCap() {
	now := time.Now().UnixMilli()
	for i := 0; i < models.MaxQueryPatterns+10; i++ {
		pattern := &models.QueryPattern{
			UserID:        "u1",
			QueryText:     "query " + string(rune('a'+i%26)) + " variant",
			Frequency:     i + 1,
			Confidence:    0.5,
			LastSeenEpoch: now,
		}
		s.Require().NoError(s.store.UpsertQueryPattern(s.ctx, pattern))
	}

	patterns, err := s.store.ListQueryPatterns(s.ctx, "u1", 0)
	s.Require().NoError(err)
	assert.Len(s.T(), patterns, models.MaxQueryPatterns)
	// Most frequent retained and listed first.
	assert.Equal(s.T(), models.MaxQueryPatterns+10, patterns[0].Frequency)
}

func (s *StoreSuite) TestBehaviorSnapshot_RoundTrip() {
	missing, err := s.store.LoadBehaviorSnapshot(s.ctx, "u1")
	s.Require().NoError(err)
	assert.Nil(s.T(), missing)

	model := models.NewUserBehaviorModel("u1")
	model.TotalTurns = 7
	model.Preferences.TechnicalDepth = 0.8
	s.Require().NoError(s.store.SaveBehaviorSnapshot(s.ctx, model))

	loaded, err := s.store.LoadBehaviorSnapshot(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	assert.Equal(s.T(), 7, loaded.TotalTurns)
	assert.Equal(s.T(), 0.8, loaded.Preferences.TechnicalDepth)
}

func (s *StoreSuite) TestSearchMemory_RanksByRelevance() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)

	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, &models.ConversationEntry{
		ID: "relevant", SessionID: session.SessionID, UserID: "u1",
		UserQuery:         "revenue trends for the quarter",
		AssistantResponse: "revenue grew 12%",
		TimestampEpoch:    1000, QueryType: models.QuerySimple,
	}))
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, &models.ConversationEntry{
		ID: "unrelated", SessionID: session.SessionID, UserID: "u1",
		UserQuery:         "schedule a meeting with marketing",
		AssistantResponse: "done",
		TimestampEpoch:    2000, QueryType: models.QuerySimple,
	}))
	s.Require().NoError(s.store.UpsertQueryPattern(s.ctx, &models.QueryPattern{
		UserID: "u1", QueryText: "revenue trends report",
		Frequency: 8, Confidence: 0.9, LastSeenEpoch: 3000,
	}))

	results, err := s.store.SearchMemory(s.ctx, search.Criteria{
		UserID: "u1",
		Query:  "revenue trends",
		Limit:  10,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(s.T(), results[i-1].Score, results[i].Score)
	}
	assert.NotEqual(s.T(), "unrelated", results[0].ID)
}

func (s *StoreSuite) TestEraseUser_Soft() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)
	_, err = s.store.UpsertProfile(s.ctx, &models.ProfilePatch{UserID: "u1"})
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, &models.ConversationEntry{
		ID: "e1", SessionID: session.SessionID, UserID: "u1",
		UserQuery:         "show my revenue",
		AssistantResponse: "here it is",
		QueryType:         models.QuerySimple,
	}))
	s.Require().NoError(s.store.UpsertQueryPattern(s.ctx, &models.QueryPattern{
		UserID: "u1", QueryText: "show my revenue", Frequency: 3, LastSeenEpoch: 1,
	}))

	s.Require().NoError(s.store.EraseUser(s.ctx, "u1", false))

	// Original identity is gone.
	profile, err := s.store.GetProfile(s.ctx, "u1")
	s.Require().NoError(err)
	assert.Nil(s.T(), profile)

	// Row counts survive under the pseudonym, free text does not.
	var entryCount, patternCount int
	var query, response string
	s.Require().NoError(s.store.QueryRowContext(s.ctx,
		`SELECT COUNT(*) FROM conversation_entries`).Scan(&entryCount))
	s.Require().NoError(s.store.QueryRowContext(s.ctx,
		`SELECT COUNT(*) FROM query_patterns`).Scan(&patternCount))
	s.Require().NoError(s.store.QueryRowContext(s.ctx,
		`SELECT user_query, assistant_response FROM conversation_entries`).Scan(&query, &response))

	assert.Equal(s.T(), 1, entryCount)
	assert.Equal(s.T(), 1, patternCount)
	assert.NotContains(s.T(), query, "revenue")
	assert.NotContains(s.T(), response, "here")

	// Aggregate statistics remain intact.
	var frequency int
	s.Require().NoError(s.store.QueryRowContext(s.ctx,
		`SELECT frequency FROM query_patterns`).Scan(&frequency))
	assert.Equal(s.T(), 3, frequency)
}

func (s *StoreSuite) TestEraseUser_Hard() {
	session, err := s.store.CreateSession(s.ctx, "u1")
	s.Require().NoError(err)
	_, err = s.store.UpsertProfile(s.ctx, &models.ProfilePatch{UserID: "u1"})
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendConversationEntry(s.ctx, &models.ConversationEntry{
		ID: "e1", SessionID: session.SessionID, UserID: "u1",
		UserQuery: "anything", AssistantResponse: "ok", QueryType: models.QuerySimple,
	}))
	s.Require().NoError(s.store.SaveBehaviorSnapshot(s.ctx, models.NewUserBehaviorModel("u1")))

	s.Require().NoError(s.store.EraseUser(s.ctx, "u1", true))

	for _, table := range userTables {
		var count int
		// #nosec G202 -- fixed table list
		s.Require().NoError(s.store.QueryRowContext(s.ctx,
			`SELECT COUNT(*) FROM `+table).Scan(&count))
		assert.Zero(s.T(), count, table)
	}
}
