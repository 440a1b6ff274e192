// Package response writes the JSON envelopes used by every errdesk endpoint.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/errdesk/internal/intake"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// NewPaginationMeta builds the meta block for a page of results.
func NewPaginationMeta(page, limit, total int) PaginationMeta {
	if page < 1 {
		page = 1
	}
	return PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
	}
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// FromError maps an intake error onto its HTTP status and error code.
// Unclassified errors become a 500 and are logged.
func FromError(w http.ResponseWriter, err error) {
	var verr *intake.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), map[string]string{"field": verr.Field})
	case errors.Is(err, intake.ErrValidation):
		Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, intake.ErrNotFound):
		Error(w, http.StatusNotFound, "NOT_FOUND", "Error not found", nil)
	case errors.Is(err, intake.ErrInvalidTransition):
		Error(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, intake.ErrConflict):
		Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, intake.ErrPersistence):
		slog.Error("persistence failure", "error", err)
		Error(w, http.StatusServiceUnavailable, "PERSISTENCE_ERROR", "Error store is unavailable", nil)
	default:
		slog.Error("unhandled error", "error", err)
		Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
