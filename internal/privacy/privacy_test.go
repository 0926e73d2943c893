package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PrivacySuite struct {
	suite.Suite
}

func TestPrivacySuite(t *testing.T) {
	suite.Run(t, new(PrivacySuite))
}

func (s *PrivacySuite) TestStripPrivateTags() {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no tags", input: "show revenue", expected: "show revenue"},
		{name: "single tag", input: "before <private>secret</private> after", expected: "before  after"},
		{name: "multiline tag", input: "a <private>line1\nline2</private> b", expected: "a  b"},
		{name: "multiple tags", input: "<private>x</private>mid<private>y</private>", expected: "mid"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			assert.Equal(s.T(), tt.expected, StripPrivateTags(tt.input))
		})
	}
}

func (s *PrivacySuite) TestClean_MasksPII() {
	cleaned := Clean("email me at jane.doe@example.com or call +1 555-123-4567 today")
	assert.NotContains(s.T(), cleaned, "jane.doe@example.com")
	assert.NotContains(s.T(), cleaned, "555-123-4567")
	assert.Contains(s.T(), cleaned, "[email]")
	assert.Contains(s.T(), cleaned, "[phone]")
}

func (s *PrivacySuite) TestRedact() {
	assert.Equal(s.T(), RedactedText, Redact("anything at all"))
	assert.Equal(s.T(), "", Redact("   "))
}

func (s *PrivacySuite) TestPseudonym_StableAndDistinct() {
	p1 := Pseudonym("user-1", "salt")
	p2 := Pseudonym("user-1", "salt")
	p3 := Pseudonym("user-2", "salt")
	p4 := Pseudonym("user-1", "other-salt")

	assert.Equal(s.T(), p1, p2)
	assert.NotEqual(s.T(), p1, p3)
	assert.NotEqual(s.T(), p1, p4)
	assert.Contains(s.T(), p1, "anon-")
	assert.Len(s.T(), p1, len("anon-")+12)
}
