package httpapi

import (
	"net/http"

	"eastviewpta.org/internal/auth"
)

const authHeader = "Authorization"

// requireGate verifies the bearer token against the store and then checks
// the role against the gate. Both failures short-circuit before the handler.
func (a *API) requireGate(g auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get(authHeader))
			id, err := a.verifier.Verify(r.Context(), token)
			if err != nil {
				handleError(w, r, err)
				return
			}
			if err := g.Check(id); err != nil {
				handleError(w, r, err)
				return
			}
			ctx := auth.ContextWithIdentity(r.Context(), id)
			ctx = auth.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// optionalAuth attaches an identity when a valid token is present and never
// fails the request otherwise.
func (a *API) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get(authHeader))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := a.verifier.VerifyOptional(r.Context(), token)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithToken(ctx, token)))
	})
}
