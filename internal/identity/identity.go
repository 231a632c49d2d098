// Package identity carries the already-authenticated acting user through a request context.
package identity

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActor returns a context carrying the acting user id
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(userID))
}

// ActorFrom returns the acting user id, if any
func ActorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}
