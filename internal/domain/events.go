package domain

import "time"

// Event types
const (
	EventTypeAccountCreated           = "account.created"
	EventTypeAccountDeleted           = "account.deleted"
	EventTypeAccountAdjusted          = "account.adjusted"
	EventTypeTransactionRecorded      = "transaction.recorded"
	EventTypeTransactionStatusChanged = "transaction.status_changed"
	EventTypeInterestAccrued          = "interest.accrued"
)

// Aggregate types
const (
	AggregateTypeAccount     = "account"
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionStatusChangedEvent is the notification payload for status changes.
type TransactionStatusChangedEvent struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	From          string `json:"from"`
	To            string `json:"to"`
	Actor         string `json:"actor"`
}

// InterestAccruedEvent payload
type InterestAccruedEvent struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	PlanID        string `json:"plan_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
}

// AccountAdjustedEvent payload
type AccountAdjustedEvent struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Delta         string `json:"delta"`
	Reason        string `json:"reason"`
	AdminID       string `json:"admin_id"`
}

// Payload flattens an event struct into the outbox map form.
func Payload(v any) map[string]any {
	return map[string]any(MarshalState(v))
}
