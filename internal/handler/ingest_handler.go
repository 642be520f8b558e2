package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

// CreatedAtHeader overrides the receipt time of a pushed message.
const CreatedAtHeader = "X-Message-Created-At"

// IngestHandler is the HTTP message source: producers push payloads for a
// single monitor.
type IngestHandler struct {
	monitorService service.IMonitorService
	maxBody        int64
	log            *logger.Logger
	now            func() time.Time
}

func NewIngestHandler(monitorService service.IMonitorService, maxBody int64, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		monitorService: monitorService,
		maxBody:        maxBody,
		log:            log.With("ingest"),
		now:            time.Now,
	}
}

func (h *IngestHandler) RegisterRoutes(w *mux.Router) {
	w.HandleFunc("/monitors/{id}/messages", h.Push).Methods("POST")
}

func (h *IngestHandler) Push(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	createdAt := h.now()
	if v := r.Header.Get(CreatedAtHeader); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, CreatedAtHeader+" must be an RFC3339 timestamp")
			return
		}
		createdAt = t
	}

	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	metrics.MessagesReceived.WithLabelValues(models.SourceHTTP).Inc()

	msg := models.InboundMessage{
		SourceKind: models.SourceHTTP,
		Topic:      id,
		Payload:    json.RawMessage(payload),
		CreatedAt:  createdAt,
	}
	if err := h.monitorService.HandleMessage(r.Context(), id, msg); err != nil {
		metrics.MessageErrors.WithLabelValues(models.SourceHTTP).Inc()
		respondServiceError(w, h.log, "record message", err)
		return
	}

	st, err := h.monitorService.Status(r.Context(), id, h.now())
	if err != nil {
		respondServiceError(w, h.log, "load monitor status", err)
		return
	}
	respondJSON(w, http.StatusAccepted, st)
}
