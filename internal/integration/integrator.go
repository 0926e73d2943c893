// Package integration assembles a relevance-ranked, permission-filtered
// view across independent business data sources for one analyzed query.
package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// resultTTL is the default bound on staleness of cached source results.
const resultTTL = 5 * time.Minute

// SemanticFilter post-filters fetched records against the analysis.
// The default implementation passes everything through.
type SemanticFilter interface {
	Filter(analysis *models.SemanticAnalysis, records *models.SourceRecords) *models.SourceRecords
}

// PassThroughFilter keeps all records.
type PassThroughFilter struct{}

// Filter implements SemanticFilter.
func (PassThroughFilter) Filter(_ *models.SemanticAnalysis, records *models.SourceRecords) *models.SourceRecords {
	return records
}

// Request is one integration run.
type Request struct {
	UserID   string
	Role     access.Role
	Analysis *models.SemanticAnalysis
}

// Integrator fans queries out across sources, merges and filters results.
type Integrator struct {
	sources []Source
	cache   cache.Cache
	oracle  access.Oracle
	filter  SemanticFilter
	fanout  int
	ttl     time.Duration
	now     func() time.Time

	cacheHits      metric.Int64Counter
	sourceFailures metric.Int64Counter
}

// NewIntegrator wires the integrator. filter may be nil for pass-through.
func NewIntegrator(sources []Source, c cache.Cache, oracle access.Oracle, filter SemanticFilter, fanout int) *Integrator {
	if filter == nil {
		filter = PassThroughFilter{}
	}
	if fanout < 1 {
		fanout = 4
	}
	meter := otel.Meter("insight-engine/integration")
	hits, _ := meter.Int64Counter("integration.cache_hits")
	failures, _ := meter.Int64Counter("integration.source_failures")
	return &Integrator{
		sources:        sources,
		cache:          c,
		oracle:         oracle,
		filter:         filter,
		fanout:         fanout,
		ttl:            resultTTL,
		now:            time.Now,
		cacheHits:      hits,
		sourceFailures: failures,
	}
}

// SetClock overrides the integrator clock. Test hook.
func (in *Integrator) SetClock(now func() time.Time) { in.now = now }

// SetResultTTL overrides how long fetched source results stay cached.
// Query windows are bucketed to the same duration.
func (in *Integrator) SetResultTTL(ttl time.Duration) {
	if ttl > 0 {
		in.ttl = ttl
	}
}

// Integrate runs the full pipeline: score, select, fan out, filter, merge.
// Partial source failures are recorded, never fatal; only a total failure
// yields a degraded fallback result.
func (in *Integrator) Integrate(ctx context.Context, req Request) *models.IntegrationResult {
	start := in.now()
	relevance := in.ScoreSources(req.Analysis)

	selected := make([]models.DataSourceRelevance, 0, len(relevance))
	for _, rel := range relevance {
		if rel.Priority != models.PriorityLow {
			selected = append(selected, rel)
		}
	}
	if len(selected) == 0 && len(relevance) > 0 {
		selected = relevance[:1]
	}

	var (
		mu        sync.Mutex
		data      = make(map[string]models.SourceRecords)
		errs      []models.EngineError
		cacheHits int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.fanout)
	for _, rel := range selected {
		src := in.sourceByName(rel.Source)
		if src == nil {
			continue
		}
		g.Go(func() error {
			records, hits, err := in.fetchSource(gctx, src, req.Analysis)
			mu.Lock()
			defer mu.Unlock()
			cacheHits += hits
			if err != nil {
				in.sourceFailures.Add(ctx, 1)
				errs = append(errs, models.NewEngineError(
					models.ErrSourceUnavailable, src.Name(), err.Error(), models.SeverityWarning))
				return nil
			}
			if len(records.Records) > 0 || records.Kind != "" {
				data[src.Name()] = *records
			}
			return nil
		})
	}
	// tasks never return errors; failures land in errs
	_ = g.Wait()

	in.cacheHits.Add(ctx, int64(cacheHits))

	if len(data) == 0 && len(errs) > 0 && len(errs) >= len(selected) {
		return in.fallbackResult(relevance, errs, start)
	}

	for name, records := range data {
		filtered := in.applyRoleFilter(req.UserID, req.Role, records)
		filtered = *in.filter.Filter(req.Analysis, &filtered)
		data[name] = filtered
	}

	queried := make([]string, 0, len(data))
	total := 0
	for name, records := range data {
		queried = append(queried, name)
		total += len(records.Records)
	}
	sort.Strings(queried)

	insights, summary := in.describe(req.Analysis, data, queried)
	suggestedSources, suggestedQueries := in.suggest(req.UserID, req.Analysis, relevance, data)

	return &models.IntegrationResult{
		Success:            true,
		Relevance:          relevance,
		Data:               data,
		Insights:           insights,
		CrossSourceSummary: summary,
		SuggestedSources:   suggestedSources,
		SuggestedQueries:   suggestedQueries,
		Metadata: models.IntegrationMetadata{
			TotalRecords:   total,
			SourcesQueried: queried,
			CacheHits:      cacheHits,
			Errors:         errs,
			DurationMs:     in.now().Sub(start).Milliseconds(),
		},
	}
}

// fetchSource runs every query for one source, consulting the result cache
// per (source, query) before fetching.
func (in *Integrator) fetchSource(ctx context.Context, src Source, analysis *models.SemanticAnalysis) (*models.SourceRecords, int, error) {
	queries := in.BuildQueries(src.Name(), analysis)
	merged := &models.SourceRecords{Source: src.Name()}
	var kinds []string
	hits := 0

	for _, q := range queries {
		key := resultKey(src.Name(), q)
		var cached models.SourceRecords
		if hit, err := in.cache.Get(ctx, key, &cached); err == nil && hit {
			hits++
			merged.Records = append(merged.Records, cached.Records...)
			kinds = append(kinds, cached.Kind)
			continue
		}

		records, err := src.Fetch(ctx, q)
		if err != nil {
			return nil, hits, err
		}
		if err := in.cache.Set(ctx, key, records, in.ttl); err != nil {
			log.Debug().Err(err).Str("source", src.Name()).Msg("result cache write failed")
		}
		merged.Records = append(merged.Records, records.Records...)
		kinds = append(kinds, records.Kind)
	}

	merged.Kind = strings.Join(kinds, "+")
	return merged, hits, nil
}

func resultKey(source string, q models.SourceQuery) string {
	payload, _ := json.Marshal(q)
	sum := sha3.Sum256(payload)
	return fmt.Sprintf("src:%s:%x", source, sum[:12])
}

func (in *Integrator) sourceByName(name string) Source {
	for _, src := range in.sources {
		if src.Name() == name {
			return src
		}
	}
	return nil
}

// sensitiveKeys are stripped for non-privileged roles unless the access
// oracle grants the matching field feature.
var sensitiveKeys = map[string]bool{
	"email": true, "phone": true, "address": true, "revenue": true,
	"cost": true, "margin": true, "profit": true, "salary": true,
	"payment_method": true, "tax_id": true,
}

// applyRoleFilter keeps only permitted record fields for non-privileged
// callers. Privileged roles see everything.
func (in *Integrator) applyRoleFilter(userID string, role access.Role, records models.SourceRecords) models.SourceRecords {
	if access.Privileged(role) {
		return records
	}

	filtered := make([]map[string]interface{}, 0, len(records.Records))
	for _, rec := range records.Records {
		kept := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			if sensitiveKeys[k] && !in.oracle.HasFeatureAccess(userID, "field:"+k) {
				continue
			}
			kept[k] = v
		}
		filtered = append(filtered, kept)
	}
	records.Records = filtered
	return records
}

// describe produces per-source insights and, with two or more populated
// sources, a cross-source summary.
func (in *Integrator) describe(analysis *models.SemanticAnalysis, data map[string]models.SourceRecords, queried []string) ([]string, string) {
	var insights []string
	populated := 0
	total := 0
	for _, name := range queried {
		records := data[name]
		n := len(records.Records)
		total += n
		if n == 0 {
			insights = append(insights, fmt.Sprintf("%s returned no records in the selected window", name))
			continue
		}
		populated++
		insights = append(insights, fmt.Sprintf("%s contributed %d %s records", name, n, records.Kind))
	}

	var summary string
	if populated >= 2 {
		summary = fmt.Sprintf("combined %d records from %d sources for %s analysis",
			total, populated, analysis.Intent.Category)
	}
	return insights, summary
}

// suggest lists relevant sources that were not queried plus follow-up query
// ideas for the detected category.
func (in *Integrator) suggest(userID string, analysis *models.SemanticAnalysis, relevance []models.DataSourceRelevance, data map[string]models.SourceRecords) ([]string, []string) {
	// proactive cross-source suggestions are a paid-tier feature
	if in.oracle.Tier(userID) == access.TierFree {
		return nil, nil
	}

	var sources []string
	for _, rel := range relevance {
		if _, ok := data[rel.Source]; !ok && rel.Score >= 0.3 {
			sources = append(sources, rel.Source)
		}
	}

	var queries []string
	switch analysis.Intent.Category {
	case models.CategoryFinance:
		queries = append(queries, "compare revenue month over month")
	case models.CategoryMarketing:
		queries = append(queries, "rank campaigns by conversion")
	case models.CategoryCustomerService:
		queries = append(queries, "show churn risk by segment")
	case models.CategoryAnalytics:
		queries = append(queries, "break the trend down by channel")
	}
	return sources, queries
}

func (in *Integrator) fallbackResult(relevance []models.DataSourceRelevance, errs []models.EngineError, start time.Time) *models.IntegrationResult {
	errs = append(errs, models.NewEngineError(
		models.ErrPipelineFailure, "", "all selected sources failed", models.SeverityCritical))
	return &models.IntegrationResult{
		Success:   false,
		Relevance: relevance,
		Data:      map[string]models.SourceRecords{},
		Metadata: models.IntegrationMetadata{
			SourcesQueried: []string{},
			Errors:         errs,
			DurationMs:     in.now().Sub(start).Milliseconds(),
			Degraded:       true,
		},
	}
}
