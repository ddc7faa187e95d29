package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound},
		{"transaction not found", domain.ErrTransactionNotFound, http.StatusNotFound},
		{"plan not found", domain.ErrPlanNotFound, http.StatusNotFound},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"principal out of range", domain.ErrPrincipalOutOfRange, http.StatusBadRequest},
		{"reason required", domain.ErrReasonRequired, http.StatusBadRequest},
		{"bad request body", fmt.Errorf("%w: eof", dto.ErrInvalidRequest), http.StatusBadRequest},
		{"illegal transition", domain.ErrIllegalTransition, http.StatusConflict},
		{"already finalized", fmt.Errorf("tx-1: %w", domain.ErrAlreadyFinalized), http.StatusConflict},
		{"inconsistent ledger", usecase.ErrInconsistentLedger, http.StatusConflict},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"expired token", domain.ErrExpiredToken, http.StatusUnauthorized},
		{"conflict exhausted", domain.ErrConflictExhausted, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRespondError_Messages(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantError   string
		wantMessage string
	}{
		{"transition conflict is generic", domain.ErrAlreadyFinalized, alreadyProcessedMessage, ""},
		{"internal error hides details", errors.New("pq: connection refused"), "op failed", "Internal Server Error"},
		{"client error shows details", domain.ErrInvalidAmount, "op failed", domain.ErrInvalidAmount.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			respondError(rr, "op failed", tt.err)

			var resp dto.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error != tt.wantError || resp.Message != tt.wantMessage {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"approved","extra":1}`))

	var body dto.TransitionRequest
	err := decodeJSON(req, &body)
	if !errors.Is(err, dto.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := callerID(req); got != "" {
		t.Fatalf("expected empty caller, got %q", got)
	}

	req = req.WithContext(domain.ContextWithActor(req.Context(), domain.Actor{ID: "user-1"}))
	if got := callerID(req); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
}
