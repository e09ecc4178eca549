package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"eastviewpta.org/internal/pta"
)

const (
	DefaultIssuer   = "eastviewpta"
	DefaultTokenTTL = 7 * 24 * time.Hour
	minSecretLen    = 16
	clockSkew       = 5 * time.Second
)

// Claims represents JWT claims issued at login and registration. Role is
// informational only; the verifier always re-reads the stored role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and parses HS256 bearer tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*Tokens)

func WithIssuer(issuer string) TokenOption {
	return func(t *Tokens) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			t.issuer = issuer
		}
	}
}

func WithTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokens builds a token issuer. The secret must be at least 16 bytes.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth secret must be at least %d bytes", minSecretLen)
	}
	t := &Tokens{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token binding the user's id and role with an expiry.
func (t *Tokens) Issue(userID string, role pta.Role) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("userID is required")
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the token signature and required claims. Every failure
// collapses to ErrInvalidToken.
func (t *Tokens) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := t.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *Tokens) validateClaims(claims *Claims) error {
	if claims.Issuer != t.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := t.now().UTC()
	if !now.Before(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return errors.New("token not yet valid")
	}
	if claims.IssuedAt.Time.After(now.Add(clockSkew)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
