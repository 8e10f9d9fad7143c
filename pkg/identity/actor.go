package identity

import "context"

// Actor is the acting principal for a request, as asserted by the external
// identity layer. Role follows that layer's vocabulary (patient, doctor,
// responder, device, admin).
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type contextKey string

const actorContextKey contextKey = "actor"

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok
}

// System is the actor attached to events the platform raises on its own,
// such as lazy override expiry.
var System = Actor{ID: "", Role: "system"}
