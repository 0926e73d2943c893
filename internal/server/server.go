// Package server exposes the engine over HTTP: query, profile, style,
// memory search, privacy erasure, and an SSE stream of completed responses.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/skinclarityclub/insight-engine/internal/assistant"
	"github.com/skinclarityclub/insight-engine/internal/behavior"
	"github.com/skinclarityclub/insight-engine/internal/db"
	"github.com/skinclarityclub/insight-engine/internal/search"
	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// Service is the HTTP surface over the orchestrator and store.
type Service struct {
	store        db.Store
	orchestrator *assistant.Orchestrator
	behavior     *behavior.Engine
	broadcaster  *Broadcaster
	router       chi.Router
	startTime    time.Time
}

// New wires the service and its routes. The orchestrator's responses are
// forwarded to the SSE broadcaster.
func New(store db.Store, orchestrator *assistant.Orchestrator, engine *behavior.Engine) *Service {
	s := &Service{
		store:        store,
		orchestrator: orchestrator,
		behavior:     engine,
		broadcaster:  NewBroadcaster(),
		router:       chi.NewRouter(),
		startTime:    time.Now(),
	}
	orchestrator.OnResponse = func(resp *models.AssistantResponse) {
		s.broadcaster.Broadcast(resp)
	}
	s.setupRoutes()
	return s
}

// Router returns the configured handler.
func (s *Service) Router() http.Handler { return s.router }

func (s *Service) setupRoutes() {
	s.router.Use(requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/v1/events", s.broadcaster.ServeHTTP)

	s.router.Post("/v1/assistant/query", s.handleQuery)
	s.router.Get("/v1/memory/search", s.handleMemorySearch)

	s.router.Route("/v1/users/{id}", func(r chi.Router) {
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
		r.Get("/style", s.handleGetStyle)
		r.Delete("/", s.handleEraseUser)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: message, Code: code})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"sse_clients":    s.broadcaster.ClientCount(),
	})
}

type queryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id and query are required")
		return
	}

	response := s.orchestrator.Query(r.Context(), assistant.QueryRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Query:     req.Query,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "not_found", "no profile for user")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type profileUpdate struct {
	Expertise              *models.ExpertiseLevel     `json:"expertise_level,omitempty"`
	Communication          *models.CommunicationStyle `json:"communication_style,omitempty"`
	BusinessFocus          *models.JSONStringArray    `json:"business_focus,omitempty"`
	PreferredAnalysisDepth *models.AnalysisDepth      `json:"preferred_analysis_depth,omitempty"`
	Timezone               *string                    `json:"timezone,omitempty"`
	Language               *string                    `json:"language,omitempty"`
}

func (s *Service) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var update profileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	profile, err := s.store.UpsertProfile(r.Context(), &models.ProfilePatch{
		UserID:                 userID,
		Expertise:              update.Expertise,
		Communication:          update.Communication,
		BusinessFocus:          update.BusinessFocus,
		PreferredAnalysisDepth: update.PreferredAnalysisDepth,
		Timezone:               update.Timezone,
		Language:               update.Language,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Service) handleGetStyle(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	style, err := s.behavior.RecommendedStyle(r.Context(), userID, profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "engine_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, style)
}

func (s *Service) handleEraseUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	hard := r.URL.Query().Get("hard") == "true"

	// drop the in-memory model first so no flush resurrects erased data
	if err := s.behavior.Evict(r.Context(), userID, false); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("model evict failed during erasure")
	}
	if err := s.store.EraseUser(r.Context(), userID, hard); err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	mode := "soft"
	if hard {
		mode = "hard"
	}
	log.Info().Str("user_id", userID).Str("mode", mode).Msg("user erased")
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased", "mode": mode})
}

func (s *Service) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	query := q.Get("q")
	if userID == "" || query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id and q are required")
		return
	}

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var types []search.DocType
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			types = append(types, search.DocType(strings.TrimSpace(t)))
		}
	}

	results, err := s.store.SearchMemory(r.Context(), search.Criteria{
		UserID: userID,
		Query:  query,
		Types:  types,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Shutdown waits for queued background work.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
