package model

import (
	"context"

	"github.com/google/uuid"
)

type actorKey struct{}

// Actor is the authenticated caller as handed over by the auth layer.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.UserID != uuid.Nil
}

// ActorID returns the caller's user id, or nil when unauthenticated.
func ActorID(ctx context.Context) *uuid.UUID {
	a, ok := ActorFrom(ctx)
	if !ok {
		return nil
	}
	id := a.UserID
	return &id
}
