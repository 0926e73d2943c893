package integration

import (
	"fmt"
	"sort"
	"time"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// customerStoreBaseline is the fixed relevance of the unified customer
// store: it underlies cross-source synthesis regardless of category.
const customerStoreBaseline = 0.75

// sourceAffinity describes what makes a source relevant.
type sourceAffinity struct {
	categories map[models.BusinessCategory]float64
	entities   map[models.EntityType]float64
	base       float64
}

var affinities = map[string]sourceAffinity{
	SourceCommerce: {
		base: 0.2,
		categories: map[models.BusinessCategory]float64{
			models.CategoryFinance:   0.3,
			models.CategoryAnalytics: 0.25,
			models.CategoryMarketing: 0.15,
		},
		entities: map[models.EntityType]float64{
			models.EntityProduct: 0.25,
			models.EntityMetric:  0.2,
			models.EntityKPI:     0.15,
		},
	},
	SourceCourses: {
		base: 0.15,
		categories: map[models.BusinessCategory]float64{
			models.CategoryAnalytics:       0.2,
			models.CategoryCustomerService: 0.15,
		},
		entities: map[models.EntityType]float64{
			models.EntityCourse:  0.4,
			models.EntityContent: 0.2,
			models.EntityMetric:  0.1,
		},
	},
	SourceMarketing: {
		base: 0.2,
		categories: map[models.BusinessCategory]float64{
			models.CategoryMarketing: 0.4,
			models.CategoryAnalytics: 0.15,
		},
		entities: map[models.EntityType]float64{
			models.EntityCampaign: 0.35,
			models.EntityChannel:  0.25,
			models.EntityContent:  0.15,
		},
	},
	SourceFinance: {
		base: 0.2,
		categories: map[models.BusinessCategory]float64{
			models.CategoryFinance:   0.45,
			models.CategoryStrategic: 0.2,
		},
		entities: map[models.EntityType]float64{
			models.EntityMetric: 0.25,
			models.EntityKPI:    0.2,
		},
	},
}

// ScoreSources ranks the registered sources against the analysis. The
// result is sorted by score descending with deterministic tie-breaks and
// tiered into priorities by urgency.
func (in *Integrator) ScoreSources(analysis *models.SemanticAnalysis) []models.DataSourceRelevance {
	relevance := make([]models.DataSourceRelevance, 0, len(in.sources))
	for _, src := range in.sources {
		relevance = append(relevance, scoreSource(src.Name(), analysis))
	}

	sort.SliceStable(relevance, func(i, j int) bool {
		if relevance[i].Score != relevance[j].Score {
			return relevance[i].Score > relevance[j].Score
		}
		return relevance[i].Source < relevance[j].Source
	})

	for i := range relevance {
		relevance[i].Priority = tierFor(i, relevance[i].Score, analysis.Intent.Urgency)
	}
	return relevance
}

func scoreSource(name string, analysis *models.SemanticAnalysis) models.DataSourceRelevance {
	if name == SourceCustomers {
		return models.DataSourceRelevance{
			Source:           name,
			Score:            customerStoreBaseline,
			EstimatedRecords: 100,
			Reasoning:        []string{"unified customer store underlies cross-source synthesis"},
			Confidence:       0.9,
		}
	}

	aff, ok := affinities[name]
	if !ok {
		return models.DataSourceRelevance{
			Source:     name,
			Score:      0.3,
			Reasoning:  []string{"no affinity profile, neutral score"},
			Confidence: 0.4,
		}
	}

	score := aff.base
	var reasons []string
	if w, ok := aff.categories[analysis.Intent.Category]; ok {
		score += w
		reasons = append(reasons, fmt.Sprintf("category %s matches", analysis.Intent.Category))
	}
	seen := map[models.EntityType]bool{}
	for _, ent := range analysis.Entities {
		if seen[ent.Type] {
			continue
		}
		seen[ent.Type] = true
		if w, ok := aff.entities[ent.Type]; ok {
			score += w * ent.Relevance
			reasons = append(reasons, fmt.Sprintf("%s entity %q", ent.Type, ent.Text))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "baseline affinity only")
	}

	return models.DataSourceRelevance{
		Source:           name,
		Score:            models.Clamp01(score),
		EstimatedRecords: int(models.Clamp01(score) * 200),
		Reasoning:        reasons,
		Confidence:       models.Clamp01(0.5 + 0.5*analysis.Confidence),
	}
}

// tierFor buckets a ranked source by urgency: critical queries focus on the
// single best source, urgent ones on the top three, and everything else is
// tiered by raw score.
func tierFor(rank int, score float64, urgency models.Urgency) models.PriorityTier {
	switch urgency {
	case models.UrgencyCritical:
		if rank == 0 {
			return models.PriorityHigh
		}
		return models.PriorityLow
	case models.UrgencyHigh:
		switch {
		case rank == 0:
			return models.PriorityHigh
		case rank < 3:
			return models.PriorityMedium
		default:
			return models.PriorityLow
		}
	default:
		switch {
		case score >= 0.7:
			return models.PriorityHigh
		case score >= 0.4:
			return models.PriorityMedium
		default:
			return models.PriorityLow
		}
	}
}

// windowFor derives the query time window from detected date-range entities,
// defaulting to the last 30 days.
func windowFor(analysis *models.SemanticAnalysis, now time.Time, ttl time.Duration) (time.Time, time.Time) {
	// bucket the window edge so identical queries inside one TTL window
	// produce identical cache keys
	now = now.Truncate(ttl)
	days := 30
	for _, ent := range analysis.Entities {
		if ent.Type != models.EntityDateRange {
			continue
		}
		switch ent.Text {
		case "today", "yesterday":
			days = 1
		case "week":
			days = 7
		case "month":
			days = 30
		case "quarter":
			days = 90
		case "year":
			days = 365
		}
		break
	}
	return now.AddDate(0, 0, -days), now
}

// BuildQueries produces the concrete queries to run against one source.
func (in *Integrator) BuildQueries(sourceName string, analysis *models.SemanticAnalysis) []models.SourceQuery {
	start, end := windowFor(analysis, in.now(), in.ttl)
	limit := 100
	if analysis.Intent.Urgency == models.UrgencyCritical {
		// keep critical responses fast
		limit = 25
	}

	kinds := kindsFor(sourceName, analysis)
	queries := make([]models.SourceQuery, 0, len(kinds))
	for _, kind := range kinds {
		q := models.SourceQuery{
			Kind:        kind,
			WindowStart: start,
			WindowEnd:   end,
			Limit:       limit,
		}
		if len(analysis.Entities) > 0 {
			terms := make([]string, 0, len(analysis.Entities))
			for _, ent := range analysis.Entities {
				terms = append(terms, ent.Text)
			}
			q.Params = map[string]interface{}{"entities": terms}
		}
		queries = append(queries, q)
	}
	return queries
}

func kindsFor(sourceName string, analysis *models.SemanticAnalysis) []string {
	hasType := func(t models.EntityType) bool {
		for _, ent := range analysis.Entities {
			if ent.Type == t {
				return true
			}
		}
		return false
	}

	switch sourceName {
	case SourceCommerce:
		kinds := []string{"orders"}
		if hasType(models.EntityProduct) {
			kinds = append(kinds, "products")
		}
		return kinds
	case SourceCourses:
		kinds := []string{"courses"}
		if analysis.Intent.Category == models.CategoryAnalytics || hasType(models.EntityMetric) {
			kinds = append(kinds, "engagement")
		}
		return kinds
	case SourceCustomers:
		return []string{"customers"}
	case SourceMarketing:
		return []string{"campaigns"}
	case SourceFinance:
		return []string{"transactions"}
	default:
		return []string{"records"}
	}
}
