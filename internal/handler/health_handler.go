package handler

import (
	"context"
	"net/http"
	"time"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"

	"github.com/gorilla/mux"
)

// HealthChecks are the checks the health endpoints run. Nil fields are
// reported healthy.
type HealthChecks struct {
	Database func(ctx context.Context) error
	State    func(ctx context.Context) error
	Sources  func() map[string]bool
}

type HealthHandler struct {
	checks HealthChecks
	log    *logger.Logger
}

func NewHealthHandler(checks HealthChecks, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		log:    log.With("health"),
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func run(ctx context.Context, check func(context.Context) error) bool {
	return check == nil || check(ctx) == nil
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	response.Services.Database = run(ctx, h.checks.Database)
	response.Services.State = run(ctx, h.checks.State)
	response.Services.Sources = map[string]bool{}
	if h.checks.Sources != nil {
		response.Services.Sources = h.checks.Sources()
	}

	sourcesUp := true
	for _, up := range response.Services.Sources {
		sourcesUp = sourcesUp && up
	}

	if !response.Services.Database || !response.Services.State || !sourcesUp {
		response.Status = "degraded"
		h.log.Warn("Health check degraded - DB: %v, State: %v, Sources: %v",
			response.Services.Database, response.Services.State, response.Services.Sources)
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// Readiness only depends on storage; a broker outage degrades health but
// the HTTP source and the scheduler keep working.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := run(ctx, h.checks.Database)
	stateOK := run(ctx, h.checks.State)

	if !dbOK || !stateOK {
		h.log.Warn("Readiness check failed - DB: %v, State: %v", dbOK, stateOK)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
