package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_pickup/internal/domain"
)

// MaxRequestBodySize caps JSON request bodies.
const MaxRequestBodySize = 1 << 20

type ErrorResponse struct {
	Error   string    `json:"error"`
	Code    string    `json:"code"`
	Details string    `json:"details,omitempty"`
	Order   *OrderDTO `json:"order,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: message,
	})
}

// handleServiceError maps domain errors onto HTTP statuses. Finalized orders carry their
// stored snapshot so clients can show what actually happened.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var finalized *domain.FinalizedError
	if errors.As(err, &finalized) && finalized.Order != nil {
		status, code := http.StatusConflict, "already_finalized"
		if errors.Is(err, domain.ErrExpired) {
			status, code = http.StatusGone, "expired"
		}
		dto := toOrderDTO(finalized.Order, false)
		respondJSON(w, status, ErrorResponse{
			Error:   http.StatusText(status),
			Code:    code,
			Details: err.Error(),
			Order:   &dto,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrExpired):
		respondError(w, http.StatusGone, "expired", err.Error())
	case errors.Is(err, domain.ErrAlreadyFinalized):
		respondError(w, http.StatusConflict, "already_finalized", err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrInternal):
		slog.ErrorContext(r.Context(), "service unavailable", "error", err, "request_id", getRequestID(r))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "temporarily unavailable, retry later")
	default:
		slog.ErrorContext(r.Context(), "unexpected error", "error", err, "request_id", getRequestID(r))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}
