package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type MemorySuite struct {
	suite.Suite
	cache *Memory
	ctx   context.Context
}

func (s *MemorySuite) SetupTest() {
	s.cache = NewMemory(5*time.Minute, time.Minute)
	s.ctx = context.Background()
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemorySuite))
}

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func (s *MemorySuite) TestSetGet_RoundTrip() {
	in := payload{Name: "revenue", Score: 0.92}
	s.Require().NoError(s.cache.Set(s.ctx, "k1", in, time.Minute))

	var out payload
	found, err := s.cache.Get(s.ctx, "k1", &out)
	s.Require().NoError(err)
	assert.True(s.T(), found)
	assert.Equal(s.T(), in, out)
}

func (s *MemorySuite) TestGet_MissingKey() {
	var out payload
	found, err := s.cache.Get(s.ctx, "absent", &out)
	s.Require().NoError(err)
	assert.False(s.T(), found)
}

func (s *MemorySuite) TestGet_ReturnsCopyNotReference() {
	in := payload{Name: "orders", Score: 0.5}
	s.Require().NoError(s.cache.Set(s.ctx, "k", in, time.Minute))

	var first payload
	_, err := s.cache.Get(s.ctx, "k", &first)
	s.Require().NoError(err)
	first.Score = 99

	var second payload
	_, err = s.cache.Get(s.ctx, "k", &second)
	s.Require().NoError(err)
	assert.Equal(s.T(), 0.5, second.Score)
}

func (s *MemorySuite) TestExpiry() {
	s.Require().NoError(s.cache.Set(s.ctx, "short", payload{Name: "x"}, 20*time.Millisecond))

	var out payload
	found, _ := s.cache.Get(s.ctx, "short", &out)
	assert.True(s.T(), found)

	time.Sleep(40 * time.Millisecond)

	found, _ = s.cache.Get(s.ctx, "short", &out)
	assert.False(s.T(), found)
}

func (s *MemorySuite) TestDeleteAndFlush() {
	s.Require().NoError(s.cache.Set(s.ctx, "a", payload{}, time.Minute))
	s.Require().NoError(s.cache.Set(s.ctx, "b", payload{}, time.Minute))
	assert.Equal(s.T(), 2, s.cache.Len(s.ctx))

	s.Require().NoError(s.cache.Delete(s.ctx, "a"))
	assert.Equal(s.T(), 1, s.cache.Len(s.ctx))

	s.Require().NoError(s.cache.Flush(s.ctx))
	assert.Equal(s.T(), 0, s.cache.Len(s.ctx))
}
