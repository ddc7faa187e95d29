package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stores an event inside tx.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Tx, event *domain.OutboxEvent) error {
	st, err := r.store.stateFor(tx)
	if err != nil {
		return err
	}
	c := *event
	st.outbox[event.ID] = &c
	return nil
}

// GetUnpublished returns the oldest unpublished events.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	out := make([]*domain.OutboxEvent, 0)
	for _, e := range r.store.snapshot().outbox {
		if !e.Published {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, 0), nil
}

// MarkPublished flags an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	return r.store.update(ctx, func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return fmt.Errorf("outbox event %s not found", id)
		}
		c := *e
		c.Published = true
		c.PublishedAt = &publishedAt
		st.outbox[id] = &c
		return nil
	})
}

// DeletePublished drops delivered events published before the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return r.store.update(ctx, func(st *state) error {
		for id, e := range st.outbox {
			if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
				delete(st.outbox, id)
			}
		}
		return nil
	})
}
