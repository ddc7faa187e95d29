package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
)

// AuditService lists the audit trail.
type AuditService interface {
	ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// AuditHandler serves the admin audit trail.
type AuditHandler struct {
	auditUC AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditUC AuditService) *AuditHandler {
	return &AuditHandler{auditUC: auditUC}
}

// List returns audit rows filtered by actor_id, action, resource_type, resource_id, since and until.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		ActorID:      q.Get("actor_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        parseIntQuery(r, "limit", 20),
		Offset:       parseIntQuery(r, "offset", 0),
	}

	var err error
	if filter.StartDate, err = parseTimeQuery(r, "since"); err != nil {
		respondError(w, "invalid query", err)
		return
	}
	if filter.EndDate, err = parseTimeQuery(r, "until"); err != nil {
		respondError(w, "invalid query", err)
		return
	}

	logs, err := h.auditUC.ListAuditLogs(r.Context(), filter)
	if err != nil {
		respondError(w, "failed to list audit logs", err)
		return
	}

	resp := dto.AuditLogsFromDomain(logs)
	writeJSON(w, http.StatusOK, dto.ListAuditLogsResponse{AuditLogs: resp, Count: len(resp)})
}

// parseTimeQuery reads an optional RFC 3339 timestamp.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", dto.ErrInvalidRequest, key)
	}
	return &ts, nil
}
