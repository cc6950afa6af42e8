package auth

import "context"

// contextKey is the key for storing the resolved identity in a context
type contextKey string

const identityContextKey contextKey = "identity"

// SetIdentityInContext stores the resolved identity in the context
func SetIdentityInContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the resolved identity from the context
func IdentityFromContext(ctx context.Context) (*Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, ErrNoIdentity
	}
	return identity, nil
}
