package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

const maxBodyBytes = 1 << 20

// alreadyProcessedMessage is what clients see for any state-machine conflict.
const alreadyProcessedMessage = "this request was already processed"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// respondError maps err to a status and writes it. Server-side failures hide their details.
func respondError(w http.ResponseWriter, message string, err error) {
	status := mapDomainError(err)
	switch {
	case status == http.StatusConflict && !errors.Is(err, usecase.ErrInconsistentLedger):
		writeError(w, status, alreadyProcessedMessage, "")
	case status >= http.StatusInternalServerError:
		writeError(w, status, message, http.StatusText(status))
	default:
		writeError(w, status, message, err.Error())
	}
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", dto.ErrInvalidRequest, err)
	}
	return nil
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooSmall),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrPrincipalOutOfRange),
		errors.Is(err, domain.ErrReasonRequired),
		errors.Is(err, domain.ErrReasonTooLong),
		errors.Is(err, domain.ErrMetadataTooLarge),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, dto.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrAlreadyFinalized),
		errors.Is(err, usecase.ErrInconsistentLedger):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConflictExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// callerID returns the authenticated caller or an empty string.
func callerID(r *http.Request) string {
	if actor, ok := domain.ActorFromContext(r.Context()); ok {
		return actor.ID
	}
	return ""
}
