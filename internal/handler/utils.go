package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"GapWatchAPI/internal/gap"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/repository"
	"GapWatchAPI/internal/service"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		return
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondServiceError maps service and repository errors onto HTTP status
// codes. Anything unrecognised is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, log *logger.Logger, action string, err error) {
	var ve *gap.ValidationError
	switch {
	case errors.As(err, &ve):
		details := make([]string, 0, len(ve.Problems))
		for _, p := range ve.Problems {
			details = append(details, p.Error())
		}
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: details})
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict), errors.Is(err, service.ErrMonitorDisabled):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error("Failed to %s: %v", action, err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", action))
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func queryInt(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
