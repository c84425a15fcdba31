package domain

import "context"

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type identityContextKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.ID != ""
}
