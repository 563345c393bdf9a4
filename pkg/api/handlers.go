package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/models"
	"dev/bravebird/tracker-check/pkg/temporal/workflows"
)

// WorkflowClient is the subset of the Temporal client the handlers use.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Handlers contains API handlers
type Handlers struct {
	checker        *checker.Checker
	temporalClient WorkflowClient
	logger         *zap.Logger
	upgrader       websocket.Upgrader

	// Only one browser session runs at a time.
	mu sync.Mutex
}

// NewHandlers creates new API handlers. temporalClient may be nil, in which
// case the asynchronous check endpoints report 503.
func NewHandlers(c *checker.Checker, temporalClient WorkflowClient, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		checker:        c,
		temporalClient: temporalClient,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router registers every route on a new mux router.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/trackers", h.ListTrackers).Methods("GET")

	// Synchronous checks; stream must be registered before {domain}
	apiRouter.HandleFunc("/check/stream", h.StreamChecks).Methods("GET")
	apiRouter.HandleFunc("/check/{domain}", h.CheckDomain).Methods("GET")

	// Checks run on the Temporal worker
	apiRouter.HandleFunc("/checks", h.StartCheck).Methods("POST")
	apiRouter.HandleFunc("/checks/{id}", h.GetCheck).Methods("GET")

	return router
}

// ==================== Tracker Handlers ====================

// ListTrackers returns the tracker table
func (h *Handlers) ListTrackers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.checker.Trackers())
}

// ==================== Check Handlers ====================

func (h *Handlers) check(ctx context.Context, domain string) (models.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checker.Check(ctx, domain)
}

// CheckDomain checks a single domain and returns its record
func (h *Handlers) CheckDomain(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	id := uuid.New().String()

	result, err := h.check(r.Context(), domain)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, checker.ErrEmptyDomain) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("Check failed", zap.String("id", id), zap.String("domain", domain), zap.Error(err))
		respondJSON(w, status, models.CheckResponse{ID: id, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, models.CheckResponse{ID: id, Result: &result})
}

// StreamChecks reads a list of domains from the socket and writes one
// message per checked domain. The first failure is reported and ends the
// stream.
func (h *Handlers) StreamChecks(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req models.StreamRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("Invalid stream request", zap.Error(err))
		if err := conn.WriteJSON(models.CheckResponse{Error: "invalid request: " + err.Error()}); err != nil {
			h.logger.Debug("Failed to report invalid stream request", zap.Error(err))
		}
		return
	}

	ctx := r.Context()
	for _, domain := range req.Domains {
		id := uuid.New().String()

		result, err := h.check(ctx, domain)
		if err != nil {
			h.logger.Warn("Streamed check failed", zap.String("id", id), zap.String("domain", domain), zap.Error(err))
			if err := conn.WriteJSON(models.CheckResponse{ID: id, Error: err.Error()}); err != nil {
				h.logger.Debug("Failed to report streamed check failure", zap.String("id", id), zap.Error(err))
			}
			return
		}

		if err := conn.WriteJSON(models.CheckResponse{ID: id, Result: &result}); err != nil {
			h.logger.Debug("Stream closed by client", zap.Error(err))
			return
		}
	}

	err = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	if err != nil {
		h.logger.Debug("Failed to close stream", zap.Error(err))
	}
}

// ==================== Workflow Handlers ====================

// StartCheck starts a tracker check workflow for the posted domains
func (h *Handlers) StartCheck(w http.ResponseWriter, r *http.Request) {
	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	var req models.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	domains := make([]string, 0, len(req.Domains))
	for _, d := range req.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		http.Error(w, "No domains given", http.StatusBadRequest)
		return
	}

	checkID := "tracker-check-" + uuid.New().String()
	run, err := h.temporalClient.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        checkID,
		TaskQueue: workflows.TaskQueue,
	}, workflows.TrackerCheckWorkflow, workflows.CheckInput{
		CheckID: checkID,
		Domains: domains,
	})
	if err != nil {
		http.Error(w, "Failed to start check: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("Check workflow started", zap.String("id", run.GetID()), zap.Int("domains", len(domains)))
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     run.GetID(),
		"run_id": run.GetRunID(),
	})
}

// GetCheck returns the results a check workflow has collected so far
func (h *Handlers) GetCheck(w http.ResponseWriter, r *http.Request) {
	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	resp, err := h.temporalClient.QueryWorkflow(r.Context(), id, "", workflows.ProgressQuery)
	if err != nil {
		http.Error(w, "Check not found: "+err.Error(), http.StatusNotFound)
		return
	}

	var out workflows.CheckOutput
	if err := resp.Get(&out); err != nil {
		http.Error(w, "Failed to decode check: "+err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, out)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
