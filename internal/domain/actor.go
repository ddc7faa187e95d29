package domain

import (
	"context"
	"errors"
)

// SystemActor identifies engine-initiated changes such as scheduled accrual.
const SystemActor = "system"

// Actor is the verified caller of an operation.
// IsAdmin is resolved once by the identity provider and trusted as-is.
type Actor struct {
	ID      string
	IsAdmin bool
}

// CanAccess reports whether the actor may act on accountID.
func (a Actor) CanAccess(accountID string) bool {
	return a.IsAdmin || a.ID == accountID
}

type actorContextKey struct{}

// ContextWithActor returns a copy of ctx carrying actor.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorIDFromContext returns the actor id or SystemActor when none is present.
func ActorIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.ID != "" {
		return actor.ID
	}
	return SystemActor
}

// Authentication errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("insufficient permissions for this operation")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)
