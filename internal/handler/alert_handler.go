package handler

import (
	"net/http"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService service.IAlertService
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		log:          log.With("alerts"),
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts", h.GetAlertHistory).Methods("GET")
	r.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	r.HandleFunc("/monitors/{id}/alerts", h.GetMonitorAlerts).Methods("GET")
}

func (h *AlertHandler) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)
	offset := queryInt(r, "offset", 0, 0)

	alerts, err := h.alertService.GetAlertHistory(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, h.log, "get alert history", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(alerts))
}

func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.alertService.GetAlert(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get alert", err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *AlertHandler) GetMonitorAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)

	alerts, err := h.alertService.GetMonitorAlerts(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondServiceError(w, h.log, "get monitor alerts", err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(alerts))
}

func nonNil(alerts []models.Alert) []models.Alert {
	if alerts == nil {
		return []models.Alert{}
	}
	return alerts
}
