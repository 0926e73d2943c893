// Package search provides relevance ranking for memory search across
// conversation entries, query patterns, and learning insights.
package search

import (
	"sort"

	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

// DocType identifies which table a search result came from.
type DocType string

const (
	DocEntry   DocType = "entry"
	DocPattern DocType = "pattern"
	DocInsight DocType = "insight"
)

// Criteria describes one memory search.
type Criteria struct {
	UserID string
	Query  string
	Types  []DocType // empty means all types
	Limit  int
}

// WantsType reports whether the criteria include the given document type.
func (c Criteria) WantsType(t DocType) bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, want := range c.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Result is one ranked memory search hit.
type Result struct {
	Type           DocType                `json:"type"`
	ID             string                 `json:"id"`
	Content        string                 `json:"content"`
	Score          float64                `json:"score"`
	CreatedAtEpoch int64                  `json:"created_at_epoch"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// OverlapScore scores free text against the search query by word overlap.
func OverlapScore(query, text string) float64 {
	return similarity.WordOverlap(query, text)
}

// PredictivePower estimates how useful a query pattern is for prediction:
// patterns seen often with high confidence rank above one-off matches.
// Frequency saturates at 10 observations.
func PredictivePower(frequency int, confidence float64) float64 {
	freqFactor := float64(frequency) / 10.0
	if freqFactor > 1 {
		freqFactor = 1
	}
	return freqFactor * confidence
}

// Fuse merges multiple ranked lists into one, deduplicating by (Type, ID).
// A document appearing in several lists keeps its highest score plus a small
// multi-list bonus. The fused list is sorted by score descending; ties break
// by recency so newer memories surface first.
func Fuse(lists ...[]Result) []Result {
	type key struct {
		docType DocType
		id      string
	}

	best := make(map[key]Result)
	seenIn := make(map[key]int)
	var order []key

	for _, list := range lists {
		for _, item := range list {
			k := key{docType: item.Type, id: item.ID}
			seenIn[k]++
			existing, ok := best[k]
			if !ok {
				order = append(order, k)
				best[k] = item
				continue
			}
			if item.Score > existing.Score {
				best[k] = item
			}
		}
	}

	result := make([]Result, 0, len(best))
	for _, k := range order {
		item := best[k]
		if seenIn[k] > 1 {
			item.Score += 0.05 * float64(seenIn[k]-1)
		}
		result = append(result, item)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].CreatedAtEpoch > result[j].CreatedAtEpoch
	})
	return result
}
