package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SearchSuite struct {
	suite.Suite
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchSuite))
}

func (s *SearchSuite) TestCriteria_WantsType() {
	all := Criteria{}
	assert.True(s.T(), all.WantsType(DocEntry))
	assert.True(s.T(), all.WantsType(DocPattern))

	only := Criteria{Types: []DocType{DocPattern}}
	assert.True(s.T(), only.WantsType(DocPattern))
	assert.False(s.T(), only.WantsType(DocEntry))
}

func (s *SearchSuite) TestPredictivePower() {
	tests := []struct {
		name       string
		frequency  int
		confidence float64
		expected   float64
	}{
		{name: "single observation", frequency: 1, confidence: 0.8, expected: 0.08},
		{name: "saturated frequency", frequency: 50, confidence: 0.8, expected: 0.8},
		{name: "zero confidence", frequency: 10, confidence: 0, expected: 0},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			assert.InDelta(s.T(), tt.expected, PredictivePower(tt.frequency, tt.confidence), 1e-12)
		})
	}
}

func (s *SearchSuite) TestFuse_SortsDescendingWithRecencyTieBreak() {
	fused := Fuse([]Result{
		{Type: DocEntry, ID: "a", Score: 0.3, CreatedAtEpoch: 100},
		{Type: DocEntry, ID: "b", Score: 0.9, CreatedAtEpoch: 50},
		{Type: DocEntry, ID: "c", Score: 0.3, CreatedAtEpoch: 200},
	})

	s.Require().Len(fused, 3)
	assert.Equal(s.T(), "b", fused[0].ID)
	// Equal scores: newer entry first.
	assert.Equal(s.T(), "c", fused[1].ID)
	assert.Equal(s.T(), "a", fused[2].ID)
}

func (s *SearchSuite) TestFuse_DeduplicatesAcrossLists() {
	entries := []Result{{Type: DocEntry, ID: "x", Score: 0.4}}
	patterns := []Result{
		{Type: DocPattern, ID: "x", Score: 0.4},
		{Type: DocEntry, ID: "x", Score: 0.6},
	}

	fused := Fuse(entries, patterns)

	// Same ID under different types stays distinct.
	s.Require().Len(fused, 2)

	var entryScore float64
	for _, r := range fused {
		if r.Type == DocEntry {
			entryScore = r.Score
		}
	}
	// Highest score wins, plus the multi-list bonus.
	assert.InDelta(s.T(), 0.65, entryScore, 1e-12)
}

func (s *SearchSuite) TestFuse_Empty() {
	assert.Empty(s.T(), Fuse())
	assert.Empty(s.T(), Fuse(nil, nil))
}
