package memory

import (
	"context"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Create appends an audit row inside tx.
func (r *AuditRepository) Create(ctx context.Context, tx usecase.Tx, log *domain.AuditLog) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	c := *log
	st.audit = append(st.audit, &c)
	return nil
}

// List returns matching audit rows, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	rows := r.store.snapshot().audit

	out := make([]*domain.AuditLog, 0)
	for i := len(rows) - 1; i >= 0; i-- {
		log := rows[i]
		switch {
		case filter.ActorID != "" && log.ActorID != filter.ActorID,
			filter.Action != "" && log.Action != filter.Action,
			filter.ResourceType != "" && log.ResourceType != filter.ResourceType,
			filter.ResourceID != "" && log.ResourceID != filter.ResourceID,
			filter.StartDate != nil && log.CreatedAt.Before(*filter.StartDate),
			filter.EndDate != nil && log.CreatedAt.After(*filter.EndDate):
			continue
		}
		c := *log
		out = append(out, &c)
	}

	return page(out, filter.Limit, filter.Offset), nil
}
