package sqlite

import (
	"context"
	"strings"

	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

// SearchMemory ranks a user's stored memory against a free-text query.
// Entries and insights score by word overlap; patterns combine overlap with
// predictive power. Candidate lists are fused and sorted by score, with
// recency breaking ties.
func (s *Store) SearchMemory(ctx context.Context, criteria search.Criteria) ([]search.Result, error) {
	if criteria.Limit <= 0 {
		criteria.Limit = 20
	}

	terms := similarity.Terms(criteria.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	var lists [][]search.Result

	if criteria.WantsType(search.DocEntry) {
		entries, err := s.searchEntries(ctx, criteria, terms)
		if err != nil {
			return nil, err
		}
		lists = append(lists, entries)
	}
	if criteria.WantsType(search.DocPattern) {
		patterns, err := s.searchPatterns(ctx, criteria)
		if err != nil {
			return nil, err
		}
		lists = append(lists, patterns)
	}
	if criteria.WantsType(search.DocInsight) {
		insights, err := s.searchInsights(ctx, criteria)
		if err != nil {
			return nil, err
		}
		lists = append(lists, insights)
	}

	fused := search.Fuse(lists...)
	if len(fused) > criteria.Limit {
		fused = fused[:criteria.Limit]
	}
	return fused, nil
}

// searchEntries pre-filters conversation entries via LIKE, then scores the
// candidates in memory by word overlap against the query.
func (s *Store) searchEntries(ctx context.Context, criteria search.Criteria, terms map[string]bool) ([]search.Result, error) {
	var conditions []string
	var args []interface{}
	args = append(args, criteria.UserID)

	for term := range terms {
		conditions = append(conditions, "(user_query LIKE ? OR assistant_response LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	// #nosec G202 -- conditions are built from fixed placeholders, not user input
	query := `
		SELECT id, user_query, assistant_response, timestamp_epoch
		FROM conversation_entries
		WHERE user_id = ? AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY timestamp_epoch DESC
		LIMIT 200
	`

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []search.Result
	for rows.Next() {
		var id, userQuery, response string
		var epoch int64
		if err := rows.Scan(&id, &userQuery, &response, &epoch); err != nil {
			return nil, err
		}
		score := search.OverlapScore(criteria.Query, userQuery+" "+response)
		if score <= 0 {
			continue
		}
		results = append(results, search.Result{
			Type:           search.DocEntry,
			ID:             id,
			Content:        userQuery,
			Score:          score,
			CreatedAtEpoch: epoch,
		})
	}
	return results, rows.Err()
}

// searchPatterns scores query patterns by overlap weighted with how
// predictive the pattern has proven to be.
func (s *Store) searchPatterns(ctx context.Context, criteria search.Criteria) ([]search.Result, error) {
	patterns, err := s.ListQueryPatterns(ctx, criteria.UserID, 0)
	if err != nil {
		return nil, err
	}

	var results []search.Result
	for _, p := range patterns {
		overlap := search.OverlapScore(criteria.Query, p.QueryText)
		if overlap <= 0 {
			continue
		}
		power := search.PredictivePower(p.Frequency, p.Confidence)
		results = append(results, search.Result{
			Type:           search.DocPattern,
			ID:             p.ID,
			Content:        p.QueryText,
			Score:          0.6*overlap + 0.4*power,
			CreatedAtEpoch: p.LastSeenEpoch,
			Metadata: map[string]interface{}{
				"frequency":  p.Frequency,
				"confidence": p.Confidence,
			},
		})
	}
	return results, nil
}

func (s *Store) searchInsights(ctx context.Context, criteria search.Criteria) ([]search.Result, error) {
	insights, err := s.ListInsights(ctx, criteria.UserID, 100)
	if err != nil {
		return nil, err
	}

	var results []search.Result
	for _, i := range insights {
		score := search.OverlapScore(criteria.Query, i.Content)
		if score <= 0 {
			continue
		}
		results = append(results, search.Result{
			Type:           search.DocInsight,
			ID:             i.ID,
			Content:        i.Content,
			Score:          score,
			CreatedAtEpoch: i.CreatedAtEpoch,
			Metadata:       map[string]interface{}{"category": i.Category},
		})
	}
	return results, nil
}
