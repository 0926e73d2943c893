// Package assistant orchestrates the full query pipeline: session handling,
// semantic analysis, concurrent prediction and data integration, response
// assembly and best-effort learning updates.
package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/behavior"
	"github.com/skinclarityclub/insight-engine/internal/db"
	"github.com/skinclarityclub/insight-engine/internal/integration"
	"github.com/skinclarityclub/insight-engine/internal/semantic"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// apologyAnswer is served when the pipeline cannot produce anything better.
const apologyAnswer = "I'm sorry, I couldn't process that request right now. Please try again in a moment."

// minConfidence is the floor attached to apology responses.
const minConfidence = 0.1

// QueryRequest is one user turn.
type QueryRequest struct {
	UserID    string
	SessionID string
	Query     string
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	store        db.Store
	analyzer     *semantic.Analyzer
	behavior     *behavior.Engine
	integrator   *integration.Integrator
	oracle       access.Oracle
	historyDepth int
	maxFollowUps int
	now          func() time.Time

	// OnResponse, when set, receives every completed response (used by the
	// SSE event stream).
	OnResponse func(*models.AssistantResponse)

	persistWG sync.WaitGroup
}

// Config bundles the orchestrator dependencies.
type Config struct {
	Store        db.Store
	Analyzer     *semantic.Analyzer
	Behavior     *behavior.Engine
	Integrator   *integration.Integrator
	Oracle       access.Oracle
	HistoryDepth int
	MaxFollowUps int
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	historyDepth := cfg.HistoryDepth
	if historyDepth <= 0 {
		historyDepth = 10
	}
	maxFollowUps := cfg.MaxFollowUps
	if maxFollowUps <= 0 {
		maxFollowUps = 5
	}
	return &Orchestrator{
		store:        cfg.Store,
		analyzer:     cfg.Analyzer,
		behavior:     cfg.Behavior,
		integrator:   cfg.Integrator,
		oracle:       cfg.Oracle,
		historyDepth: historyDepth,
		maxFollowUps: maxFollowUps,
		now:          time.Now,
	}
}

// Wait blocks until queued background persistence finishes. Test and
// shutdown hook.
func (o *Orchestrator) Wait() { o.persistWG.Wait() }

// Query runs one turn end to end. It always returns a structurally valid
// response; pipeline failures degrade, they never propagate.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) *models.AssistantResponse {
	start := o.now()

	session, history, err := o.resolveSession(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("session resolution failed")
		return o.apology(req.SessionID, start)
	}

	role := o.oracle.Role(req.UserID)
	analysis := o.analyzer.Analyze(ctx, semantic.Request{
		UserID:  req.UserID,
		Query:   req.Query,
		Role:    role,
		History: history,
	})

	var (
		predictions []models.BehaviorPrediction
		followUps   []string
		result      *models.IntegrationResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pctx := behavior.PredictionContext{
			Query:    req.Query,
			Category: analysis.Intent.Category,
			Urgency:  analysis.Intent.Urgency,
		}
		predictions, err = o.behavior.Predict(gctx, req.UserID, pctx, nil)
		if err != nil {
			log.Warn().Err(err).Str("user_id", req.UserID).Msg("prediction failed")
		}
		followUps, err = o.behavior.PredictFollowUps(gctx, req.UserID, req.Query)
		if err != nil {
			log.Warn().Err(err).Str("user_id", req.UserID).Msg("follow-up prediction failed")
		}
		return nil
	})
	g.Go(func() error {
		result = o.integrator.Integrate(gctx, integration.Request{
			UserID:   req.UserID,
			Role:     role,
			Analysis: analysis,
		})
		return nil
	})
	_ = g.Wait()

	profile, err := o.store.GetProfile(ctx, req.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("profile load failed")
	}
	style, err := o.behavior.RecommendedStyle(ctx, req.UserID, profile)
	if err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("style recommendation failed")
		style = nil
	}

	response := &models.AssistantResponse{
		Answer:      composeAnswer(analysis, result),
		Analysis:    analysis,
		Integration: result,
		Predictions: predictions,
		FollowUps:   o.mergeFollowUps(followUps, result),
		Style:       style,
		Confidence:  responseConfidence(analysis, result),
		SessionID:   session.SessionID,
		DurationMs:  o.now().Sub(start).Milliseconds(),
		Degraded:    analysis.Degraded || (result != nil && result.Metadata.Degraded),
	}

	o.persistTurn(session, history, analysis, response, req)

	if o.OnResponse != nil {
		o.OnResponse(response)
	}
	return response
}

// resolveSession loads the referenced session or opens a new one, returning
// session history newest first.
func (o *Orchestrator) resolveSession(ctx context.Context, req QueryRequest) (*models.SessionMemory, []*models.ConversationEntry, error) {
	var session *models.SessionMemory
	if req.SessionID != "" {
		var err error
		session, err = o.store.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, nil, err
		}
		if session != nil && session.Status != models.SessionStatusActive {
			session = nil
		}
	}
	if session == nil {
		var err error
		session, err = o.store.CreateSession(ctx, req.UserID)
		if err != nil {
			return nil, nil, err
		}
	}

	entries, err := o.store.SessionEntries(ctx, session.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.SessionID).Msg("history load failed")
		entries = nil
	}
	if len(entries) == 0 {
		// fresh session: seed context from the user's latest turns so the
		// analyzer still sees what they were last working on
		entries, err = o.store.RecentEntries(ctx, req.UserID, o.historyDepth)
		if err != nil {
			log.Warn().Err(err).Str("user_id", req.UserID).Msg("recent history load failed")
			entries = nil
		}
	}
	// newest first, bounded depth
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimestampEpoch > entries[j].TimestampEpoch
	})
	if len(entries) > o.historyDepth {
		entries = entries[:o.historyDepth]
	}
	return session, entries, nil
}

// persistTurn appends the conversation entry and feeds the learning loop,
// asynchronously and best-effort.
func (o *Orchestrator) persistTurn(session *models.SessionMemory, history []*models.ConversationEntry, analysis *models.SemanticAnalysis, response *models.AssistantResponse, req QueryRequest) {
	entry := &models.ConversationEntry{
		ID:                uuid.NewString(),
		SessionID:         session.SessionID,
		UserID:            req.UserID,
		TimestampEpoch:    o.now().UnixMilli(),
		UserQuery:         req.Query,
		AssistantResponse: response.Answer,
		Context:           models.JSONMap{"complexity": analysis.Intent.Complexity},
		QueryType:         queryType(analysis),
		Confidence:        response.Confidence,
		ResponseTimeMs:    response.DurationMs,
	}
	if len(response.FollowUps) > 0 {
		entry.FollowUp = response.FollowUps[0]
	}

	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := o.store.AppendConversationEntry(ctx, entry); err != nil {
			log.Error().Err(err).Str("user_id", req.UserID).Msg("conversation persist failed")
		}
		topics := make([]string, 0, len(analysis.Entities))
		for _, ent := range analysis.Entities {
			topics = append(topics, ent.Text)
		}
		if err := o.store.TouchSession(ctx, session.SessionID, analysis.Intent.PrimaryIntent, topics); err != nil {
			log.Error().Err(err).Str("session_id", session.SessionID).Msg("session touch failed")
		}
		if err := o.behavior.UpdateModel(ctx, analysis, entry, history); err != nil {
			log.Error().Err(err).Str("user_id", req.UserID).Msg("behavior update failed")
		}
	}()
}

func (o *Orchestrator) mergeFollowUps(predicted []string, result *models.IntegrationResult) []string {
	seen := map[string]bool{}
	var out []string
	add := func(items []string) {
		for _, item := range items {
			key := strings.ToLower(strings.TrimSpace(item))
			if key == "" || seen[key] || len(out) >= o.maxFollowUps {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	add(predicted)
	if result != nil {
		add(result.SuggestedQueries)
	}
	return out
}

func (o *Orchestrator) apology(sessionID string, start time.Time) *models.AssistantResponse {
	return &models.AssistantResponse{
		Answer:     apologyAnswer,
		Confidence: minConfidence,
		SessionID:  sessionID,
		DurationMs: o.now().Sub(start).Milliseconds(),
		Degraded:   true,
	}
}

// composeAnswer turns the integration result into a short narrative answer.
func composeAnswer(analysis *models.SemanticAnalysis, result *models.IntegrationResult) string {
	if result == nil || !result.Success {
		return apologyAnswer
	}

	var b strings.Builder
	meta := result.Metadata
	if meta.TotalRecords == 0 {
		fmt.Fprintf(&b, "I looked across %d sources but found no matching records for %q.",
			len(meta.SourcesQueried), analysis.Query)
	} else {
		fmt.Fprintf(&b, "I found %d relevant records across %s.",
			meta.TotalRecords, strings.Join(meta.SourcesQueried, ", "))
	}
	if len(result.Insights) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(result.Insights, ". "))
		b.WriteString(".")
	}
	if result.CrossSourceSummary != "" {
		b.WriteString(" ")
		b.WriteString(result.CrossSourceSummary)
		b.WriteString(".")
	}
	return b.String()
}

func responseConfidence(analysis *models.SemanticAnalysis, result *models.IntegrationResult) float64 {
	conf := analysis.Confidence
	if result == nil || !result.Success {
		conf *= 0.5
	} else if result.Metadata.TotalRecords > 0 {
		conf = models.Clamp01(conf + 0.1)
	}
	if conf < minConfidence {
		conf = minConfidence
	}
	return conf
}

func queryType(analysis *models.SemanticAnalysis) models.QueryType {
	switch {
	case analysis.Intent.PrimaryIntent == "clarification":
		return models.QueryClarification
	case analysis.Intent.Complexity >= 0.5:
		return models.QueryComplex
	default:
		return models.QuerySimple
	}
}
