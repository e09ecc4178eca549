package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eastviewpta.org/internal/pta"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type userTable struct {
	mu    sync.Mutex
	users map[string]pta.User
	err   error
}

func (u *userTable) GetUser(_ context.Context, id string) (pta.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return pta.User{}, u.err
	}
	user, ok := u.users[id]
	if !ok {
		return pta.User{}, pta.ErrNotFound
	}
	return user, nil
}

func (u *userTable) GetUserByEmail(_ context.Context, email string) (pta.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == email {
			return user, nil
		}
	}
	return pta.User{}, pta.ErrNotFound
}

func (u *userTable) set(user pta.User) {
	u.mu.Lock()
	u.users[user.ID] = user
	u.mu.Unlock()
}

func newTokens(t *testing.T, opts ...TokenOption) *Tokens {
	t.Helper()
	tokens, err := NewTokens(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestTokensIssueAndParse(t *testing.T) {
	tokens := newTokens(t, WithIssuer("test-issuer"), WithTTL(30*time.Minute))
	token, expiresAt, err := tokens.Issue("user-42", pta.RoleBoard)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}
	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-42" || claims.Issuer != "test-issuer" || claims.Role != "board" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestTokensRejectTampering(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.Issue("user-1", pta.RoleMember)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewTokens(strings.Repeat("x", 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
	if _, err := tokens.Parse(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for mangled token, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none to be rejected, got %v", err)
	}
}

func TestTokensExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := newTokens(t, WithTTL(time.Hour), WithClock(clock))
	token, _, err := tokens.Issue("user-1", pta.RoleMember)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := tokens.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens(""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, err := NewTokens("short"); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestVerifierOutcomes(t *testing.T) {
	tokens := newTokens(t)
	users := &userTable{users: map[string]pta.User{}}
	v := NewVerifier(tokens, users)
	ctx := context.Background()

	users.set(pta.User{ID: "u1", Role: pta.RoleMember, Status: pta.UserPending})
	token, _, err := tokens.Issue("u1", pta.RoleMember)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.Verify(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := v.Verify(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := v.Verify(ctx, token); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved for pending user, got %v", err)
	}

	// Approval takes effect for the token already in hand.
	users.set(pta.User{ID: "u1", Role: pta.RoleMember, Status: pta.UserApproved})
	id, err := v.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify after approval: %v", err)
	}
	if id.ID != "u1" || id.Role != pta.RoleMember {
		t.Fatalf("unexpected identity %+v", id)
	}

	users.set(pta.User{ID: "u1", Role: pta.RoleBoard, Status: pta.UserApproved})
	if id, _ := v.Verify(ctx, token); id.Role != pta.RoleBoard {
		t.Fatalf("expected stored role to win, got %s", id.Role)
	}

	users.set(pta.User{ID: "u1", Role: pta.RoleMember, Status: pta.UserSuspended})
	if _, err := v.Verify(ctx, token); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected suspension to apply immediately, got %v", err)
	}

	ghost, _, _ := tokens.Issue("deleted", pta.RoleAdmin)
	if _, err := v.Verify(ctx, ghost); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing identity, got %v", err)
	}

	users.err = errors.New("db down")
	if _, err := v.Verify(ctx, token); err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected lookup failure to propagate, got %v", err)
	}
	if _, ok := v.VerifyOptional(ctx, token); ok {
		t.Fatal("optional mode should degrade to anonymous")
	}
}

func TestGates(t *testing.T) {
	cases := []struct {
		gate Gate
		role pta.Role
		want bool
	}{
		{AdminOnly, pta.RoleAdmin, true},
		{AdminOnly, pta.RoleBoard, false},
		{AdminOnly, pta.RoleMember, false},
		{BoardOrAdmin, pta.RoleAdmin, true},
		{BoardOrAdmin, pta.RoleBoard, true},
		{BoardOrAdmin, pta.RoleMember, false},
		{Authenticated, pta.RoleMember, true},
	}
	for _, tc := range cases {
		err := tc.gate.Check(Identity{ID: "x", Role: tc.role})
		if tc.want && err != nil {
			t.Fatalf("%s gate rejected %s: %v", tc.gate.Name(), tc.role, err)
		}
		if !tc.want && !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s gate admitted %s", tc.gate.Name(), tc.role)
		}
	}
	if !NewGate("custom").Allows(pta.RoleAdmin) {
		t.Fatal("admin must always be admitted")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := BearerToken(tc.in); got != tc.want {
			t.Fatalf("BearerToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), Identity{ID: "user-7", Role: pta.RoleAdmin})
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s, ok=%v", id, ok)
	}
	if a := ActorFromContext(ctx); a.Role != pta.RoleAdmin {
		t.Fatalf("unexpected actor %+v", a)
	}
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("unexpected identity in empty context")
	}
	ctx = ContextWithToken(ctx, "tok")
	if tok, ok := TokenFromContext(ctx); !ok || tok != "tok" {
		t.Fatalf("unexpected token %q", tok)
	}
}

func TestLogin(t *testing.T) {
	SetPasswordCostForTests(4)
	defer SetPasswordCostForTests(DefaultPasswordCost)

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	users := &userTable{users: map[string]pta.User{}}
	users.set(pta.User{ID: "u1", Email: "pat@example.org", PasswordHash: hash, Role: pta.RoleMember, Status: pta.UserPending})
	users.set(pta.User{ID: "u2", Email: "sus@example.org", PasswordHash: hash, Role: pta.RoleMember, Status: pta.UserSuspended})
	tokens := newTokens(t)
	a := NewAuthenticator(users, tokens)
	ctx := context.Background()

	sess, err := a.Login(ctx, " PAT@example.org", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := tokens.Parse(sess.Token)
	if err != nil || claims.Subject != "u1" {
		t.Fatalf("unexpected session token: %v %+v", err, claims)
	}
	if _, err := a.Login(ctx, "pat@example.org", "wrong"); !errors.Is(err, pta.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Login(ctx, "nobody@example.org", "correct horse"); !errors.Is(err, pta.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Login(ctx, "sus@example.org", "correct horse"); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}
