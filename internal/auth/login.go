package auth

import (
	"context"
	"errors"
	"time"

	"eastviewpta.org/internal/pta"
)

// CredentialStore finds accounts by e-mail.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (pta.User, error)
}

// Session is what login and registration hand back to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      pta.User  `json:"user"`
}

type Authenticator struct {
	users  CredentialStore
	tokens *Tokens
}

func NewAuthenticator(users CredentialStore, tokens *Tokens) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// Login checks the password and issues a token. Pending accounts still get
// a token so they can see their own status; suspended ones do not.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	email = pta.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, pta.ErrInvalidCredentials
	}
	u, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, pta.ErrNotFound) {
		return Session{}, pta.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return Session{}, pta.ErrInvalidCredentials
	}
	if u.Status == pta.UserSuspended {
		return Session{}, ErrNotApproved
	}
	return a.SessionFor(u)
}

// SessionFor issues a token for an already authenticated user.
func (a *Authenticator) SessionFor(u pta.User) (Session, error) {
	token, exp, err := a.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}
