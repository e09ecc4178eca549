package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrNotApproved     = errors.New("account is not approved")
	ErrForbidden       = errors.New("insufficient role")
	ErrMissingSecret   = errors.New("auth secret is not configured")
)
