// Package similarity provides text similarity utilities for matching
// near-duplicate queries and ranking memory search results.
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// QueryMatchThreshold is the normalized edit-distance similarity above which
// two queries are considered the same pattern.
const QueryMatchThreshold = 0.8

// Normalized returns an edit-distance similarity in [0,1]: 1 means identical,
// 0 means entirely different. Comparison is case-insensitive with collapsed
// whitespace so paraphrases with trivial differences still match.
func Normalized(a, b string) float64 {
	a = canonical(a)
	b = canonical(b)
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// IsMatch reports whether two queries belong to the same pattern.
func IsMatch(a, b string) bool {
	return Normalized(a, b) >= QueryMatchThreshold
}

// canonical lowercases and collapses whitespace.
func canonical(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Terms tokenizes text into a set of meaningful lowercase terms,
// dropping stop words and words shorter than three characters.
func Terms(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})

	terms := make(map[string]bool)
	for _, word := range words {
		if len(word) >= 3 && !stopWords[word] {
			terms[word] = true
		}
	}
	return terms
}

// Jaccard calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func Jaccard(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// WordOverlap returns the fraction of query terms present in text, in [0,1].
// Used for ranking memory search results against a free-text query.
func WordOverlap(query, text string) float64 {
	queryTerms := Terms(query)
	if len(queryTerms) == 0 {
		return 0.0
	}
	textTerms := Terms(text)

	matched := 0
	for term := range queryTerms {
		if textTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "from": true, "with": true,
	"about": true, "into": true, "through": true, "during": true,
	"this": true, "that": true, "these": true, "those": true,
	"was": true, "were": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"can": true, "what": true, "when": true, "where": true, "how": true,
	"why": true, "which": true, "who": true, "its": true, "our": true,
	"your": true, "please": true, "show": true, "tell": true, "get": true,
}
