package shared

import "context"

// Actor is the authenticated identity asserted by the upstream gateway. The
// service performs no authentication of its own; it trusts this assertion.
type Actor struct {
	UserID int64
	OrgID  int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the actor placed by the identity middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
