// internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
)

const maxBodyBytes = 1 << 20

// Envelope wraps every API response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorDetails accompanies error envelopes that have more to say than the message
type ErrorDetails struct {
	Code       string                     `json:"code"`
	Field      string                     `json:"field,omitempty"`
	Available  *int                       `json:"available,omitempty"`
	Requested  *int                       `json:"requested,omitempty"`
	Shortfalls []domain.MaterialShortfall `json:"shortfalls,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: status < 400, Message: message, Data: data})
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, details := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), op+" failed", slog.String("error", err.Error()))
		message = "internal server error"
	}
	respondJSON(w, status, message, details)
}

func classify(err error) (int, *ErrorDetails) {
	var (
		stockErr    *domain.InsufficientStockError
		materialErr *domain.InsufficientMaterialError
		validErr    *domain.ValidationError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, &ErrorDetails{Code: "NOT_FOUND"}
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, &ErrorDetails{
			Code:      "INSUFFICIENT_STOCK",
			Available: &stockErr.Available,
			Requested: &stockErr.Requested,
		}
	case errors.As(err, &materialErr):
		return http.StatusBadRequest, &ErrorDetails{Code: "INSUFFICIENT_MATERIAL", Shortfalls: materialErr.Shortfalls}
	case errors.As(err, &validErr):
		return http.StatusBadRequest, &ErrorDetails{Code: "VALIDATION", Field: validErr.Field}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, &ErrorDetails{Code: "CONFLICT"}
	default:
		return http.StatusInternalServerError, nil
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("is not valid JSON: %v", err))
	}
	if dec.More() {
		return domain.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(name, "is not a valid UUID")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
