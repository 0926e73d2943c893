package semantic

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/pkg/models"
	"github.com/skinclarityclub/insight-engine/pkg/similarity"
)

// attentionDecay controls how quickly older conversation turns lose weight.
const attentionDecay = 0.35

// Enricher augments extracted entities with knowledge-graph context.
// Implementations may be unavailable at runtime; the analyzer treats a nil
// Enricher as a no-op.
type Enricher interface {
	RecordRelationships(ctx context.Context, entities []models.BusinessEntity, rels []models.EntityRelationship) error
	NeighborBoost(ctx context.Context, entity models.BusinessEntity) (float64, error)
}

// Request carries everything the analyzer needs for one query.
type Request struct {
	UserID  string
	Query   string
	Role    access.Role
	History []*models.ConversationEntry // newest first
}

// Analyzer runs the staged semantic pipeline: language detection, embedding,
// intent and entity extraction, attention weighting and knowledge enhancement.
type Analyzer struct {
	embedder Embedder
	cache    cache.Cache
	enricher Enricher
	codec    tokenizer.Codec

	cacheHits metric.Int64Counter
	failures  metric.Int64Counter
}

// NewAnalyzer wires the analyzer. enricher may be nil.
func NewAnalyzer(embedder Embedder, c cache.Cache, enricher Enricher) *Analyzer {
	if embedder == nil {
		embedder = HashingEmbedder{}
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warn().Err(err).Msg("tokenizer unavailable, falling back to word counts")
		codec = nil
	}
	meter := otel.Meter("insight-engine/semantic")
	hits, _ := meter.Int64Counter("semantic.embedding.cache_hits")
	fails, _ := meter.Int64Counter("semantic.analysis.failures")
	return &Analyzer{
		embedder:  embedder,
		cache:     c,
		enricher:  enricher,
		codec:     codec,
		cacheHits: hits,
		failures:  fails,
	}
}

// Analyze runs the full pipeline. It never returns an error: any stage
// failure downgrades to a low-confidence fallback analysis so the caller
// always has something to work with.
func (a *Analyzer) Analyze(ctx context.Context, req Request) *models.SemanticAnalysis {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return models.FallbackAnalysis(req.Query)
	}

	language := a.detectLanguage(query)

	emb, err := a.cachedEmbed(ctx, query, language, len(req.History))
	if err != nil {
		a.failures.Add(ctx, 1)
		log.Error().Err(err).Str("user_id", req.UserID).Msg("embedding failed, degrading analysis")
		return models.FallbackAnalysis(req.Query)
	}

	normalized := strings.ToLower(query)
	intent, domainRelevance := a.extractIntent(normalized)
	entities, relationships := a.extractEntities(normalized)
	weights := attentionWeights(len(req.History), req.Role)
	importance := contextImportance(query, req.History, weights)

	a.enhance(ctx, req.Role, entities)
	if a.enricher != nil && len(entities) > 0 {
		if err := a.enricher.RecordRelationships(ctx, entities, relationships); err != nil {
			log.Debug().Err(err).Msg("graph enrichment skipped")
		}
	}

	confidence := models.Clamp01(0.4*emb.Confidence + 0.35*importance + 0.25*intent.Confidence)

	log.Debug().
		Str("user_id", req.UserID).
		Str("category", string(intent.Category)).
		Float64("confidence", confidence).
		Dur("took", time.Since(start)).
		Msg("semantic analysis complete")

	return &models.SemanticAnalysis{
		Query:                req.Query,
		Language:             language,
		Embedding:            emb.Vector,
		EmbeddingConfidence:  emb.Confidence,
		Intent:               *intent,
		Entities:             entities,
		Relationships:        relationships,
		ContextualImportance: importance,
		DomainRelevance:      domainRelevance,
		AttentionWeights:     weights,
		Confidence:           confidence,
	}
}

// detectLanguage returns an ISO 639-1 code, defaulting to English for text
// too short to classify reliably.
func (a *Analyzer) detectLanguage(query string) string {
	if len(query) < 20 {
		return "en"
	}
	info := whatlanggo.Detect(query)
	if info.Confidence < 0.5 {
		return "en"
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "en"
	}
	return code
}

func (a *Analyzer) extractIntent(normalized string) (*models.BusinessIntent, map[string]float64) {
	words := strings.Fields(normalized)

	// category scoring over the keyword vocabulary; core terms count
	// double and ties resolve in categoryOrder
	relevance := map[string]float64{}
	var best models.BusinessCategory
	var bestScore float64
	var total float64
	for _, cat := range categoryOrder {
		var score float64
		for _, kw := range categoryVocab[cat] {
			if containsWord(words, kw) {
				score++
				if coreTerms[kw] {
					score++
				}
			}
		}
		if score > 0 {
			relevance[string(cat)] = score
			total += score
		}
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}
	if total > 0 {
		for k := range relevance {
			relevance[k] = relevance[k] / total
		}
	}
	if bestScore == 0 {
		best = models.CategoryGeneral
	}

	primary := "general inquiry"
	for _, cue := range intentCues {
		if strings.Contains(normalized, cue.Phrase) {
			primary = cue.Intent
			break
		}
	}

	// cues are ordered strongest first, so the first match wins
	urgency := models.UrgencyNormal
	for _, cue := range urgencyCues {
		if strings.Contains(normalized, cue.Phrase) {
			urgency = cue.Urgency
			break
		}
	}

	complexity := a.complexity(normalized, words)

	conf := 0.4
	if bestScore > 0 {
		conf += 0.3
	}
	if primary != "general inquiry" {
		conf += 0.2
	}

	return &models.BusinessIntent{
		PrimaryIntent:     primary,
		Category:          best,
		Urgency:           urgency,
		Complexity:        complexity,
		RequiredExpertise: models.ExpertiseForScore(complexity),
		Confidence:        models.Clamp01(conf),
	}, relevance
}

// complexity blends query length in tokens with domain-jargon density.
func (a *Analyzer) complexity(normalized string, words []string) float64 {
	var tokens int
	if a.codec != nil {
		if ids, _, err := a.codec.Encode(normalized); err == nil {
			tokens = len(ids)
		}
	}
	if tokens == 0 {
		tokens = len(words)
	}
	lengthFactor := math.Min(1, float64(tokens)/40)

	var tech float64
	for _, w := range words {
		if technicalTerms[strings.Trim(w, ".,?!")] {
			tech++
		}
	}
	density := 0.0
	if len(words) > 0 {
		density = math.Min(1, tech/float64(len(words))*5)
	}
	return models.Clamp01(0.6*lengthFactor + 0.4*density)
}

func (a *Analyzer) extractEntities(normalized string) ([]models.BusinessEntity, []models.EntityRelationship) {
	words := strings.Fields(normalized)
	var entities []models.BusinessEntity
	seen := map[string]bool{}
	for _, v := range entityVocab {
		if seen[v.Keyword] || !containsWord(words, v.Keyword) {
			continue
		}
		seen[v.Keyword] = true
		entities = append(entities, models.BusinessEntity{
			Text:      v.Keyword,
			Type:      v.Type,
			Relevance: v.Relevance,
		})
	}

	var rels []models.EntityRelationship
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			rel := "related_to"
			if entities[i].Type == models.EntityMetric && entities[j].Type == models.EntityDateRange {
				rel = "measured_over"
			}
			rels = append(rels, models.EntityRelationship{
				Source:     entities[i].Text,
				Target:     entities[j].Text,
				Relation:   rel,
				Confidence: math.Min(entities[i].Relevance, entities[j].Relevance) * 0.8,
			})
		}
	}
	return entities, rels
}

// attentionWeights produces one weight per history turn, newest first,
// strictly decreasing with age and scaled by the caller's role.
func attentionWeights(historyLen int, role access.Role) []float64 {
	if historyLen == 0 {
		return nil
	}
	rw := access.RoleWeight(role)
	weights := make([]float64, historyLen)
	for i := 0; i < historyLen; i++ {
		weights[i] = math.Exp(-attentionDecay*float64(i)) * rw
	}
	return weights
}

// contextImportance measures how much the current query leans on prior
// turns: the attention-weighted term overlap with recent history.
func contextImportance(query string, history []*models.ConversationEntry, weights []float64) float64 {
	if len(history) == 0 {
		return 0.5
	}
	var signal, norm float64
	for i, entry := range history {
		if i >= len(weights) {
			break
		}
		overlap := similarity.WordOverlap(query, entry.UserQuery+" "+entry.AssistantResponse)
		signal += overlap * weights[i]
		norm += weights[i]
	}
	if norm == 0 {
		return 0.5
	}
	return models.Clamp01(0.5 + 0.5*(signal/norm))
}

// enhance rescales entity relevance by role weight and, when a graph
// enricher is present, by neighborhood density in the knowledge graph.
func (a *Analyzer) enhance(ctx context.Context, role access.Role, entities []models.BusinessEntity) {
	rw := access.RoleWeight(role)
	for i := range entities {
		score := entities[i].Relevance * (0.8 + 0.4*rw)
		if a.enricher != nil {
			if boost, err := a.enricher.NeighborBoost(ctx, entities[i]); err == nil {
				score += boost
			}
		}
		entities[i].Relevance = models.Clamp01(score)
	}
}

func containsWord(words []string, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(strings.Join(words, " "), kw)
	}
	for _, w := range words {
		if strings.Trim(w, ".,?!:;\"'()") == kw {
			return true
		}
	}
	return false
}
