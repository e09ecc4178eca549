package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"eastviewpta.org/internal/pta"
)

// IdentityLookup reads the current state of a user.
type IdentityLookup interface {
	GetUser(ctx context.Context, id string) (pta.User, error)
}

// Verifier turns a bearer token into a verified Identity. Approval is
// re-checked against the store on every call.
type Verifier struct {
	tokens *Tokens
	users  IdentityLookup
}

func NewVerifier(tokens *Tokens, users IdentityLookup) *Verifier {
	return &Verifier{tokens: tokens, users: users}
}

// Verify resolves raw into the caller's identity. The role returned is the
// one stored now, not the one embedded at issue time.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrUnauthenticated
	}
	claims, err := v.tokens.Parse(raw)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	u, err := v.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, pta.ErrNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	if u.Status != pta.UserApproved {
		return Identity{}, ErrNotApproved
	}
	return Identity{ID: u.ID, Role: u.Role}, nil
}

// VerifyOptional is Verify for public routes: any rejection means "no
// identity" rather than a failed request.
func (v *Verifier) VerifyOptional(ctx context.Context, raw string) (Identity, bool) {
	id, err := v.Verify(ctx, raw)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// Gate admits identities whose role is on its allow-list. A gate with an
// empty list admits every verified identity.
type Gate struct {
	name  string
	allow []pta.Role
}

var (
	Authenticated = Gate{name: "authenticated"}
	BoardOrAdmin  = NewGate("board", pta.RoleBoard)
	AdminOnly     = NewGate("admin")
)

// NewGate builds an allow-list gate. Admin is always on the list.
func NewGate(name string, roles ...pta.Role) Gate {
	allow := []pta.Role{pta.RoleAdmin}
	for _, r := range roles {
		if !slices.Contains(allow, r) {
			allow = append(allow, r)
		}
	}
	return Gate{name: name, allow: allow}
}

func (g Gate) Name() string { return g.name }

func (g Gate) Allows(role pta.Role) bool {
	return len(g.allow) == 0 || slices.Contains(g.allow, role)
}

// Check returns ErrForbidden when the identity's role is not admitted.
func (g Gate) Check(id Identity) error {
	if !g.Allows(id.Role) {
		return ErrForbidden
	}
	return nil
}
