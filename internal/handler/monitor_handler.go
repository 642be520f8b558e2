package handler

import (
	"net/http"
	"time"

	"GapWatchAPI/internal/gap"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

type MonitorHandler struct {
	monitorService service.IMonitorService
	log            *logger.Logger
	now            func() time.Time
}

func NewMonitorHandler(monitorService service.IMonitorService, log *logger.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With("monitors"),
		now:            time.Now,
	}
}

// RegisterRoutes puts reads on r and writes on w, which may carry auth.
func (h *MonitorHandler) RegisterRoutes(r, w *mux.Router) {
	r.HandleFunc("/monitors", h.List).Methods("GET")
	r.HandleFunc("/monitors/{id}", h.Get).Methods("GET")
	r.HandleFunc("/monitors/{id}/status", h.Status).Methods("GET")
	r.HandleFunc("/monitors/validate", h.Validate).Methods("POST")

	w.HandleFunc("/monitors", h.Create).Methods("POST")
	w.HandleFunc("/monitors/{id}", h.Update).Methods("PUT")
	w.HandleFunc("/monitors/{id}", h.Delete).Methods("DELETE")
	w.HandleFunc("/monitors/{id}/check", h.Check).Methods("POST")
	w.HandleFunc("/monitors/{id}/reset", h.Reset).Methods("POST")
}

func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.monitorService.ListMonitors(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list monitors", err)
		return
	}
	if monitors == nil {
		monitors = []*models.Monitor{}
	}
	respondJSON(w, http.StatusOK, monitors)
}

func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.monitorService.GetMonitor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get monitor", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *MonitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMonitorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.monitorService.CreateMonitor(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.log, "create monitor", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *MonitorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateMonitorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.monitorService.UpdateMonitor(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondServiceError(w, h.log, "update monitor", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *MonitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.monitorService.DeleteMonitor(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "delete monitor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.monitorService.Status(r.Context(), mux.Vars(r)["id"], h.now())
	if err != nil {
		respondServiceError(w, h.log, "load monitor status", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// Check runs the rule immediately instead of waiting for the scheduler.
func (h *MonitorHandler) Check(w http.ResponseWriter, r *http.Request) {
	res, err := h.monitorService.Check(r.Context(), mux.Vars(r)["id"], h.now())
	if err != nil {
		respondServiceError(w, h.log, "check monitor", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *MonitorHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.monitorService.ResetState(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "reset monitor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// Validate checks a rule configuration without storing anything.
func (h *MonitorHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var cfg gap.Config
	if err := decodeJSON(r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp := validateResponse{Valid: true}
	if err := gap.Validate(cfg); err != nil {
		resp.Valid = false
		if ve, ok := err.(*gap.ValidationError); ok {
			for _, p := range ve.Problems {
				resp.Problems = append(resp.Problems, p.Error())
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
