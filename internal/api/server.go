// Package api provides the HTTP trigger surface for the pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/discovery"
	"github.com/scenariq/scenariq/internal/embeddings"
	"github.com/scenariq/scenariq/internal/learning"
	"github.com/scenariq/scenariq/internal/logging"
	"github.com/scenariq/scenariq/internal/normalize"
	"github.com/scenariq/scenariq/internal/orchestrator"
	"github.com/scenariq/scenariq/internal/simulation"
	"github.com/scenariq/scenariq/internal/storage"
	"github.com/scenariq/scenariq/internal/vectors"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	wsHub      *WebSocketHub

	engine     *simulation.Engine
	normalizer *normalize.Normalizer
	orch       *orchestrator.Orchestrator
	registry   *discovery.Registry
	sims       *storage.SimulationStore
	decisions  *storage.DecisionStore
	learning   *learning.Store
	embedder   *embeddings.Service
	profiles   *vectors.Index

	// threshold is the extraction cut-off applied when a request does not
	// carry its own
	threshold float64

	log *logging.Logger
}

// Config for the server
type Config struct {
	Port       int
	Engine     *simulation.Engine
	Normalizer *normalize.Normalizer
	Orch       *orchestrator.Orchestrator
	Registry   *discovery.Registry
	Sims       *storage.SimulationStore
	Decisions  *storage.DecisionStore
	Learning   *learning.Store
	Embedder   *embeddings.Service
	Profiles   *vectors.Index
	Threshold  float64
	Hub        *WebSocketHub
	Log        *logging.Logger
}

// New creates the API server
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logging.New(logging.INFO, nil)
	}
	if cfg.Hub == nil {
		cfg.Hub = NewWebSocketHub(cfg.Log)
	}

	s := &Server{
		wsHub:      cfg.Hub,
		engine:     cfg.Engine,
		normalizer: cfg.Normalizer,
		orch:       cfg.Orch,
		registry:   cfg.Registry,
		sims:       cfg.Sims,
		decisions:  cfg.Decisions,
		learning:   cfg.Learning,
		embedder:   cfg.Embedder,
		profiles:   cfg.Profiles,
		threshold:  cfg.Threshold,
		log:        cfg.Log,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Simulations
		r.Post("/simulations", s.handleRunSimulation)
		r.Post("/simulations/ingest", s.handleIngestPayload)
		r.Get("/simulations", s.handleListSimulations)
		r.Get("/simulations/{id}", s.handleGetSimulation)

		// Decisions
		r.Get("/decisions", s.handleListDecisions)
		r.Get("/decisions/{id}", s.handleGetDecision)
		r.Get("/decisions/{id}/selection", s.handleGetSelection)
		r.Post("/decisions/{id}/approve", s.handleApproveDecision)
		r.Post("/decisions/{id}/reject", s.handleRejectDecision)
		r.Post("/decisions/{id}/retry", s.handleRetryDecision)

		// Executors
		r.Get("/executors", s.handleListExecutors)
		r.Post("/executors", s.handleRegisterExecutor)
		r.Delete("/executors/{id}", s.handleUnregisterExecutor)

		// Learning
		r.Get("/learning", s.handleQueryLearning)

		// Stats
		r.Get("/stats", s.handleGetStats)
	})

	// WebSocket
	r.Get("/ws", s.wsHub.handleWebSocket)

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.wsHub.Run()

	s.log.Info("API server starting on http://localhost%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decisionStatusCode maps orchestrator errors onto HTTP statuses
func decisionStatusCode(err error) int {
	switch {
	case errors.Is(err, core.ErrDecisionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDecisionTerminal),
		errors.Is(err, core.ErrAlreadyExecuted),
		errors.Is(err, core.ErrNotApprovable):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- Simulation handlers ---

type runSimulationRequest struct {
	simulation.Params
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	TemplateID          string  `json:"template_id,omitempty"`
}

type pipelineResponse struct {
	Result    *core.SimulationResult `json:"result"`
	Plan      *core.ActionPlan       `json:"plan"`
	Decisions []*core.Decision       `json:"decisions"`
	Executed  int                    `json:"executed"`
}

// handleRunSimulation runs a Monte Carlo simulation and pushes the result
// through the whole pipeline
func (s *Server) handleRunSimulation(w http.ResponseWriter, r *http.Request) {
	var req runSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	out, err := s.engine.Run(req.Params)
	if err != nil {
		if errors.Is(err, core.ErrInvalidParams) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.normalizer.FromOutput(out, req.Params)
	s.processAndRespond(w, r, result, req.ConfidenceThreshold, req.TemplateID)
}

type ingestRequest struct {
	Payload             map[string]interface{} `json:"payload"`
	TemplateID          string                 `json:"template_id,omitempty"`
	ConfidenceThreshold float64                `json:"confidence_threshold,omitempty"`
}

// handleIngestPayload normalizes an externally produced raw payload and
// pushes it through the pipeline. Normalization never fails; unrecognized
// payloads degrade to a diagnostic result.
func (s *Server) handleIngestPayload(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result := s.normalizer.Normalize(req.Payload, req.TemplateID)
	s.processAndRespond(w, r, result, req.ConfidenceThreshold, req.TemplateID)
}

func (s *Server) processAndRespond(w http.ResponseWriter, r *http.Request, result *core.SimulationResult, threshold float64, templateID string) {
	ctx := r.Context()

	if threshold <= 0 {
		threshold = s.threshold
	}

	if err := s.sims.Insert(ctx, result); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcome, err := s.orch.ProcessResult(ctx, result, threshold, templateID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, pipelineResponse{
		Result:    result,
		Plan:      outcome.Plan,
		Decisions: outcome.Decisions,
		Executed:  outcome.Executed,
	})
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	results, err := s.sims.List(r.Context(), 50)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.sims.Get(r.Context(), core.SimulationID(id))
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// --- Decision handlers ---

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	status := core.DecisionStatus(r.URL.Query().Get("status"))
	simID := core.SimulationID(r.URL.Query().Get("simulation"))

	decisions, err := s.decisions.List(r.Context(), status, simID, 100)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.decisions.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, decisionStatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

// handleGetSelection returns the scoring audit trail for a recently
// executed decision. Entries expire, so a 404 here does not mean the
// decision itself is gone.
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sel, ok := s.orch.Selection(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "no selection recorded for decision "+id)
		return
	}
	s.respondJSON(w, http.StatusOK, sel)
}

func (s *Server) handleApproveDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.orch.Approve(r.Context(), id)
	if err != nil {
		s.respondError(w, decisionStatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleRejectDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.orch.Reject(r.Context(), id)
	if err != nil {
		s.respondError(w, decisionStatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleRetryDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.orch.Retry(r.Context(), id)
	if err != nil {
		s.respondError(w, decisionStatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, d)
}

// --- Executor handlers ---

func (s *Server) handleListExecutors(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.registry.GetAll())
}

func (s *Server) handleRegisterExecutor(w http.ResponseWriter, r *http.Request) {
	var e core.Executor
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := s.registry.Register(r.Context(), &e); err != nil {
		s.respondError(w, decisionStatusCode(err), err.Error())
		return
	}

	s.indexProfile(r.Context(), &e)

	s.respondJSON(w, http.StatusCreated, &e)
}

// indexProfile embeds the executor's profile text and upserts it into the
// vector index. Failures only degrade scoring, so they are logged and dropped.
func (s *Server) indexProfile(ctx context.Context, e *core.Executor) {
	if s.embedder == nil || s.profiles == nil {
		return
	}

	vector, err := s.embedder.Embed(ctx, discovery.ProfileText(e))
	if err != nil {
		s.log.Warn("Failed to embed executor profile %s: %v", e.ID, err)
		return
	}
	if err := s.profiles.UpsertProfile(ctx, e.ID, e.Name, vector); err != nil {
		s.log.Warn("Failed to index executor profile %s: %v", e.ID, err)
	}
}

func (s *Server) handleUnregisterExecutor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Unregister(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrExecutorNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.profiles != nil {
		if err := s.profiles.Delete(r.Context(), id); err != nil {
			s.log.Warn("Failed to remove executor profile %s from index: %v", id, err)
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

// --- Learning handlers ---

func (s *Server) handleQueryLearning(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("action")
	simType := core.SimulationType(r.URL.Query().Get("type"))

	records, err := s.learning.Query(r.Context(), pattern, simType, 100)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, records)
}

// --- Stats ---

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, _ := s.decisions.List(ctx, core.DecisionPending, "", 0)
	completed, _ := s.decisions.List(ctx, core.DecisionCompleted, "", 0)
	failed, _ := s.decisions.List(ctx, core.DecisionFailed, "", 0)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"registry":            s.registry.Stats(),
		"decisions_pending":   len(pending),
		"decisions_completed": len(completed),
		"decisions_failed":    len(failed),
		"websocket_clients":   s.wsHub.ClientCount(),
	})
}
