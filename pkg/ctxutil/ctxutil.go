// Package ctxutil carries request-scoped values: the authenticated actor and
// the correlation id.
package ctxutil

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type (
	actorKey     struct{}
	requestIDKey struct{}
)

// WithActor returns ctx carrying the authenticated actor.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromCtx returns the actor stored by WithActor. An actor without an id
// counts as absent.
func ActorFromCtx(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	if !ok || a.ID == uuid.Nil {
		return domain.Actor{}, false
	}
	return a, true
}

// UserIDFromCtx returns the id of the authenticated actor.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	a, ok := ActorFromCtx(ctx)
	return a.ID, ok
}

// WithRequestID returns ctx carrying the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromCtx returns the correlation id or "".
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
