package domain

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for privileged operations.
type AuditLog struct {
	ID           string
	ActorID      string // Who performed the action
	Action       string // What action (account.adjust, transaction.transition, etc.)
	ResourceType string // Type of resource (account, transaction)
	ResourceID   string
	Reason       string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	CreatedAt    time.Time
}

// JSON is a loosely typed JSON object.
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionAccountCreate         AuditAction = "account.create"
	AuditActionAccountDelete         AuditAction = "account.delete"
	AuditActionAccountAdjust         AuditAction = "account.adjust"
	AuditActionTransactionTransition AuditAction = "transaction.transition"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// Resource types recorded on audit rows and outbox events.
const (
	ResourceTypeAccount     = "account"
	ResourceTypeTransaction = "transaction"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
