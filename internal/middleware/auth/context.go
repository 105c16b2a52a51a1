package auth

import (
	"context"

	"github.com/Skotchmaster/learnhub/internal/tokens"
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, id tokens.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (tokens.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(tokens.Identity)
	return id, ok
}
