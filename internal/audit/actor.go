package audit

import "context"

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	UserID string
	Role   string
}

var SystemActor = Actor{UserID: "system", Role: "system"}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the request actor, or SystemActor when none is attached.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok && a.UserID != "" {
		return a
	}
	return SystemActor
}
