package auth

import (
	"context"

	"eastviewpta.org/internal/pta"
)

// Identity is the resolved caller attached to a request.
type Identity struct {
	ID   string   `json:"id"`
	Role pta.Role `json:"role"`
}

// Actor converts the identity into the form workflow operations take.
func (i Identity) Actor() pta.Actor {
	return pta.Actor{ID: i.ID, Role: i.Role}
}

type identityContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the verified identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || v.ID == "" {
		return Identity{}, false
	}
	return v, true
}

// ActorFromContext returns the caller as a workflow actor. Anonymous
// callers get the zero Actor.
func ActorFromContext(ctx context.Context) pta.Actor {
	id, _ := IdentityFromContext(ctx)
	return id.Actor()
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.ID, ok
}

// ContextWithToken stores the raw bearer token inside the context. Outbound
// clients read it back per call instead of keeping a shared default header.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
