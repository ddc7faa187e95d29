package usecase

import (
	"context"
	"time"

	"github.com/iho/yieldledger/internal/domain"
)

// actorFrom returns the caller. Calls without an actor come from trusted in-process code
// such as the scheduler or the CLI, and run as the system administrator.
func actorFrom(ctx context.Context) domain.Actor {
	if actor, ok := domain.ActorFromContext(ctx); ok {
		return actor
	}
	return domain.Actor{ID: domain.SystemActor, IsAdmin: true}
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor := actorFrom(ctx)
	if !actor.IsAdmin {
		return actor, domain.ErrForbidden
	}
	return actor, nil
}

func requireAccess(ctx context.Context, accountID string) (domain.Actor, error) {
	actor := actorFrom(ctx)
	if !actor.CanAccess(accountID) {
		return actor, domain.ErrForbidden
	}
	return actor, nil
}

// journal writes audit rows and outbox events inside a caller's transaction.
type journal struct {
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
}

func (j journal) event(ctx context.Context, tx Tx, aggregateType, aggregateID, eventType string, payload any, now time.Time) error {
	if j.outboxRepo == nil {
		return nil
	}
	return j.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            j.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.Payload(payload),
		CreatedAt:     now,
	})
}

func (j journal) audit(ctx context.Context, tx Tx, log *domain.AuditLog) error {
	if j.auditRepo == nil {
		return nil
	}
	log.ID = j.idGen.Generate()
	if log.Status == "" {
		log.Status = string(domain.AuditStatusSuccess)
	}
	return j.auditRepo.Create(ctx, tx, log)
}
