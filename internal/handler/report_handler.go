package handler

import (
	"fmt"
	"net/http"
	"time"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/report"
	"GapWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

type ReportHandler struct {
	monitorService service.IMonitorService
	alertService   service.IAlertService
	log            *logger.Logger
}

func NewReportHandler(monitorService service.IMonitorService, alertService service.IAlertService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		monitorService: monitorService,
		alertService:   alertService,
		log:            log.With("reports"),
	}
}

func (h *ReportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/reports/alerts.pdf", h.AlertsPDF).Methods("GET")
}

func (h *ReportHandler) AlertsPDF(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 500, 5000)

	monitors, err := h.monitorService.ListMonitors(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list monitors", err)
		return
	}
	alerts, err := h.alertService.GetAlertHistory(r.Context(), limit, 0)
	if err != nil {
		respondServiceError(w, h.log, "get alert history", err)
		return
	}

	now := time.Now()
	pdf, err := report.AlertReport(monitors, alerts, now)
	if err != nil {
		respondServiceError(w, h.log, "render report", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="gapwatch-alerts-%s.pdf"`, now.UTC().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
